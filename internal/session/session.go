// Package session holds per-user conversation state for the booking flow
// and the stores that persist it between messages.
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// ErrCorrupt marks persisted state that cannot be decoded, such as an
// unknown step name.
var ErrCorrupt = errors.New("corrupt session state")

// Step is the question the booking flow is waiting on.
type Step int

const (
	StepNone Step = iota
	StepCollectName
	StepCollectEmail
	StepCollectDate
	StepCollectTime
	StepCollectNotes
	StepFinalize
)

var stepNames = map[Step]string{
	StepCollectName:  "collectName",
	StepCollectEmail: "collectEmail",
	StepCollectDate:  "collectDate",
	StepCollectTime:  "collectTime",
	StepCollectNotes: "collectNotes",
	StepFinalize:     "finalize",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	if s == StepNone {
		return "none"
	}
	return "unknown"
}

func (s Step) MarshalText() ([]byte, error) {
	name, ok := stepNames[s]
	if !ok {
		return nil, errors.Wrapf(ErrCorrupt, "step %d", int(s))
	}
	return []byte(name), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	for step, name := range stepNames {
		if name == string(b) {
			*s = step
			return nil
		}
	}
	return errors.Wrapf(ErrCorrupt, "unknown step %q", string(b))
}

// Data is what the user has told us so far.
type Data struct {
	Phone    string `json:"phone,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Date     string `json:"date,omitempty"` // YYYY-MM-DD
	Time     string `json:"time,omitempty"` // HH:MM
	TimeZone string `json:"timeZone,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Booking is an in-progress scheduling conversation.
type Booking struct {
	Step Step `json:"step"`
	Data Data `json:"data"`
}

// Cursor lets "show more" continue where the last slot list stopped.
type Cursor struct {
	NextSearch  time.Time `json:"nextSearchIso"`
	TimeZone    string    `json:"timeZone"`
	SlotMinutes int       `json:"slotMinutes"`
}

// State is everything stored for one user.
type State struct {
	Booking *Booking `json:"scheduling,omitempty"`
	Cursor  *Cursor  `json:"availabilitySuggestions,omitempty"`
}

func (s State) Empty() bool {
	return s.Booking == nil && s.Cursor == nil
}

// Store persists State per user. Get returns the zero State for unknown
// users; Set with an empty State removes the entry.
type Store interface {
	Get(ctx context.Context, userID string) (State, error)
	Set(ctx context.Context, userID string, st State) error
}

// Encode and Decode are the wire form shared by the byte-oriented stores.
func Encode(st State) ([]byte, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return nil, errors.Wrap(err, "encoding session")
	}
	return b, nil
}

func Decode(b []byte) (State, error) {
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		if errors.Is(err, ErrCorrupt) {
			return State{}, err
		}
		return State{}, errors.Wrap(ErrCorrupt, err.Error())
	}
	return st, nil
}
