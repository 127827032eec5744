package booking

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/christopherklint97/citabot/internal/availability"
	"github.com/christopherklint97/citabot/internal/caltime"
	"github.com/christopherklint97/citabot/internal/nlparse"
	"github.com/christopherklint97/citabot/internal/session"
)

func (a *Assistant) collectName(t *turn) {
	name := strings.Join(strings.Fields(t.raw), " ")
	t.state.Booking.Data.Name = name
	t.setStep(session.StepCollectEmail)
	t.say(a.askEmail(name))
}

func (a *Assistant) collectEmail(t *turn) {
	email, ok := extractEmail(t.raw)
	if !ok {
		t.say(msgInvalidEmail)
		return
	}
	t.state.Booking.Data.Email = email
	t.setStep(session.StepCollectDate)
	t.say(a.askDate())
}

// extractEmail accepts either a bare address or one inside a sentence such
// as "mi correo es ana@example.com".
func extractEmail(text string) (string, bool) {
	for _, field := range strings.Fields(text) {
		if !strings.Contains(field, "@") {
			continue
		}
		field = strings.ToLower(strings.Trim(field, ".,;:!?¡¿()<>\"'"))
		if emailPattern.MatchString(field) {
			return field, true
		}
		return "", false
	}
	return "", false
}

func (a *Assistant) collectDate(t *turn) {
	date, ok := nlparse.ParseDate(t.raw, t.now)
	if !ok {
		t.say(a.askDateAgain())
		return
	}
	a.chooseDate(t, date)
}

// chooseDate lists the free times on date and moves to collectTime, or
// stays on collectDate when the date cannot be booked.
func (a *Assistant) chooseDate(t *turn, date caltime.DateParts) {
	b := t.state.Booking
	rejectDate := func(msg string) {
		b.Data.Date, b.Data.Time = "", ""
		t.state.Cursor = nil
		t.setStep(session.StepCollectDate)
		t.say(msg)
	}

	switch {
	case date.Before(caltime.DateOf(t.now, a.loc)):
		rejectDate(pastDate(date))
		return
	case isWeekendDate(date):
		rejectDate(a.weekend(date))
		return
	}

	slots, err := a.engine.SlotsOnDate(t.ctx, date, a.loc, a.settings.MaxSlots)
	if err != nil {
		a.logger.Error("listing slots for date", zap.Stringer("date", date), zap.Error(err))
		t.say(msgCalendarError)
		return
	}
	if len(slots) == 0 {
		rejectDate(noSlotsOn(date))
		return
	}

	b.Data.Date, b.Data.Time = date.String(), ""
	t.setStep(session.StepCollectTime)
	a.offer(t, timeList(dateHeader(date, a.settings.TimeZone), slots), slots, a.settings.TimeZone)
	t.say(a.askTime())
}

func (a *Assistant) collectTime(t *turn) {
	b := t.state.Booking
	if dateChangePattern.MatchString(t.norm) {
		b.Data.Date, b.Data.Time = "", ""
		t.state.Cursor = nil
		t.setStep(session.StepCollectDate)
		t.say(a.askDate())
		return
	}

	date, err := caltime.ParseDateParts(b.Data.Date)
	if d, ok := nlparse.ParseDate(t.raw, t.now); ok && (err != nil || d != date) {
		if !nlparse.HasTimeReference(t.raw) {
			a.chooseDate(t, d)
			return
		}
		// date and time in one message: switch the date, then read the time
		date, err = d, nil
		b.Data.Date = d.String()
		t.dirty = true
	}
	if err != nil {
		b.Data.Date = ""
		t.setStep(session.StepCollectDate)
		t.say(a.askDate())
		return
	}

	if asapPattern.MatchString(t.norm) {
		a.earliestOn(t, date)
		return
	}

	r := nlparse.ParseTime(t.raw, a.settings.hours())
	switch r.Status {
	case nlparse.TimeInvalid:
		t.say(msgTimeNotUnderst)
		return
	case nlparse.TimeClarify:
		t.say(a.clarifyTime(r.Suggestion))
		return
	case nlparse.TimeOutOfRange:
		t.say(a.outOfRange())
		return
	}

	zone, loc, ok := a.zoneFor(t)
	if !ok {
		t.say(invalidZone(zone))
		return
	}
	start := caltime.InLocation(date, r.Time, loc)

	verdict, err := a.checkSlot(t.ctx, start, loc)
	switch verdict {
	case slotWeekend:
		b.Data.Date = ""
		t.state.Cursor = nil
		t.setStep(session.StepCollectDate)
		t.say(a.weekend(date))
	case slotPastClosing:
		t.say(a.outOfRange())
	case slotTooSoon:
		a.offerAlternatives(t, a.engine.EarliestStart(), loc, zone, a.notice())
	case slotBusy:
		a.offerAlternatives(t, start, loc, zone, slotOccupied())
	case slotUnchecked:
		a.logger.Error("checking calendar conflicts", zap.String("user", t.user), zap.Error(err))
		t.say(msgCalendarError)
	case slotFree:
		b.Data.Time = r.Time.String()
		b.Data.TimeZone = zone
		t.state.Cursor = nil
		t.setStep(session.StepCollectNotes)
		t.say(timeConfirmed(date, r.Time, zone), msgAskNotes)
	}
}

func (a *Assistant) collectNotes(t *turn) {
	notes := strings.TrimSpace(t.raw)
	if noNotesPattern.MatchString(t.norm) {
		notes = ""
	}
	t.state.Booking.Data.Notes = notes
	t.setStep(session.StepFinalize)
	a.save(t)
	a.finalize(t)
}

type slotVerdict int

const (
	slotFree slotVerdict = iota
	slotWeekend
	slotPastClosing
	slotTooSoon
	slotBusy
	// slotUnchecked means the calendar could not be asked.
	slotUnchecked
)

// checkSlot validates an appointment starting at start, with business hours
// read on the wall clock of loc.
func (a *Assistant) checkSlot(ctx context.Context, start time.Time, loc *time.Location) (slotVerdict, error) {
	if caltime.IsWeekend(start, loc) {
		return slotWeekend, nil
	}
	end := start.Add(a.settings.duration())
	closing := caltime.InLocation(caltime.DateOf(start, loc), caltime.TimeParts{Hour: a.settings.EndHour}, loc)
	if end.After(closing) {
		return slotPastClosing, nil
	}
	if start.Before(a.engine.EarliestStart()) {
		return slotTooSoon, nil
	}
	busy, err := a.gateway.HasConflict(ctx, start, end)
	if err != nil {
		return slotUnchecked, err
	}
	if busy {
		return slotBusy, nil
	}
	return slotFree, nil
}

func isWeekendDate(d caltime.DateParts) bool {
	w := d.Weekday()
	return w == time.Saturday || w == time.Sunday
}

// offer shows text and remembers where the listed slots stop so "show
// more" can continue from there.
func (a *Assistant) offer(t *turn, text string, slots []availability.Slot, zone string) {
	t.say(text)
	t.dirty = true
	if len(slots) == 0 {
		t.state.Cursor = nil
		return
	}
	t.state.Cursor = &session.Cursor{
		NextSearch:  slots[len(slots)-1].End,
		TimeZone:    zone,
		SlotMinutes: a.settings.AppointmentMinutes,
	}
}

// offerAlternatives follows a rejection with the nearest free slots from
// the given instant.
func (a *Assistant) offerAlternatives(t *turn, from time.Time, loc *time.Location, zone, lead string) {
	slots, err := a.engine.FindSlots(t.ctx, availability.Query{
		Start:    from,
		MaxSlots: a.settings.AlternativeSlots,
		Location: loc,
	})
	if err != nil {
		a.logger.Warn("finding alternative slots", zap.Error(err))
	}
	if len(slots) == 0 {
		t.say(lead + " " + noSlotsAhead(a.settings.LookaheadDays))
		return
	}
	a.offer(t, slotList(lead+" Estos son los horarios más cercanos disponibles:", slots), slots, zone)
}

func (a *Assistant) earliestOn(t *turn, date caltime.DateParts) {
	slot, err := a.engine.Earliest(t.ctx, &date, a.loc)
	if err != nil && slot == nil {
		a.logger.Error("finding earliest slot", zap.Stringer("date", date), zap.Error(err))
		t.say(msgCalendarError)
		return
	}
	if slot == nil {
		t.say(noSlotsOn(date))
		return
	}
	a.offer(t, earliestOnDate(*slot, a.settings.TimeZone), []availability.Slot{*slot}, a.settings.TimeZone)
}
