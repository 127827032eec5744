package booking

import (
	"time"

	"github.com/pkg/errors"

	"github.com/christopherklint97/citabot/internal/availability"
	"github.com/christopherklint97/citabot/internal/calendar"
	"github.com/christopherklint97/citabot/internal/caltime"
	"github.com/christopherklint97/citabot/internal/nlparse"
	"github.com/christopherklint97/citabot/internal/store"
)

// Settings are the business rules of the booking conversation.
type Settings struct {
	OrganizationName string
	// TimeZone is used when the user names none.
	TimeZone           string
	StartHour          int
	EndHour            int
	AppointmentMinutes int
	MinimumNotice      time.Duration
	LookaheadDays      int
	// MaxSlots is the length of a slot listing; AlternativeSlots is how many
	// replacements are offered after a rejected time.
	MaxSlots         int
	AlternativeSlots int
	// StartKeywords start a booking in addition to the built-in phrases.
	StartKeywords []string
}

func DefaultSettings() Settings {
	return Settings{
		OrganizationName:   "Citabot",
		TimeZone:           "America/Mexico_City",
		StartHour:          9,
		EndHour:            15,
		AppointmentMinutes: 30,
		MinimumNotice:      60 * time.Minute,
		LookaheadDays:      14,
		MaxSlots:           5,
		AlternativeSlots:   2,
		StartKeywords:      []string{"agendar", "reservar", "agenda una cita", "quiero una cita"},
	}
}

func (s Settings) Validate() error {
	if _, err := caltime.ResolveZone(s.TimeZone); err != nil {
		return errors.Wrap(err, "default time zone")
	}
	if s.StartHour < 0 || s.EndHour > 24 || s.StartHour >= s.EndHour {
		return errors.Errorf("business hours %d-%d are not a valid range", s.StartHour, s.EndHour)
	}
	if s.AppointmentMinutes <= 0 || s.AppointmentMinutes > (s.EndHour-s.StartHour)*60 {
		return errors.Errorf("appointment length %d minutes does not fit business hours", s.AppointmentMinutes)
	}
	if s.MinimumNotice < 0 {
		return errors.New("minimum notice must not be negative")
	}
	if s.LookaheadDays <= 0 || s.MaxSlots <= 0 {
		return errors.New("lookahead days and max slots must be positive")
	}
	return nil
}

// Policy is the availability view of the settings.
func (s Settings) Policy() availability.Policy {
	return availability.Policy{
		StartHour:     s.StartHour,
		EndHour:       s.EndHour,
		SlotMinutes:   s.AppointmentMinutes,
		MinimumNotice: s.MinimumNotice,
		LookaheadDays: s.LookaheadDays,
		MaxSlots:      s.MaxSlots,
	}
}

// Event is the calendar entry for a booking record. Start and end are
// written on the wall clock of the record's zone.
func (s Settings) Event(b store.Booking) (calendar.NewEvent, error) {
	loc, err := caltime.ResolveZone(b.TimeZone)
	if err != nil {
		return calendar.NewEvent{}, err
	}
	date := caltime.DateOf(b.StartTime, loc)
	tm := caltime.TimeOf(b.StartTime, loc)
	end := caltime.AddMinutes(date, tm, int(b.EndTime.Sub(b.StartTime)/time.Minute))
	return calendar.NewEvent{
		Summary:     eventSummary(s.OrganizationName, b.Name),
		Description: eventDescription(b.Name, b.Email, b.Phone, b.Notes),
		Start:       caltime.ISODateTime(date, tm),
		End:         end.ISO,
		TimeZone:    b.TimeZone,
		Attendees:   []calendar.Attendee{{Email: b.Email, DisplayName: b.Name}},
	}, nil
}

func (s Settings) hours() nlparse.BusinessHours {
	return nlparse.BusinessHours{StartHour: s.StartHour, EndHour: s.EndHour}
}

func (s Settings) duration() time.Duration {
	return time.Duration(s.AppointmentMinutes) * time.Minute
}
