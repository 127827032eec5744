// Package notify raises desktop notifications for the team running the
// assistant.
package notify

import (
	"github.com/gen2brain/beeep"
	"github.com/pkg/errors"
)

// Desktop shows notifications through the OS notification center.
type Desktop struct {
	// AppName prefixes every title.
	AppName string
	send    func(title, message string) error
}

func NewDesktop(appName string) *Desktop {
	return &Desktop{AppName: appName, send: func(title, message string) error {
		return beeep.Notify(title, message, "")
	}}
}

func (d *Desktop) Notify(title, message string) error {
	if d.AppName != "" {
		title = d.AppName + ": " + title
	}
	if err := d.send(title, message); err != nil {
		return errors.Wrap(err, "sending desktop notification")
	}
	return nil
}

// Discard drops every notification; it is used when notifications are
// disabled.
type Discard struct{}

func (Discard) Notify(string, string) error { return nil }
