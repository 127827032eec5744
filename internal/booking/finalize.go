package booking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/christopherklint97/citabot/internal/calendar"
	"github.com/christopherklint97/citabot/internal/caltime"
	"github.com/christopherklint97/citabot/internal/session"
	"github.com/christopherklint97/citabot/internal/store"
)

// finalize re-validates the collected slot and writes the event. Once the
// write is attempted the session ends, whatever the calendar answers.
func (a *Assistant) finalize(t *turn) {
	b := t.state.Booking
	d := b.Data
	if d.Name == "" || d.Email == "" {
		t.reset()
		t.say(msgRestart)
		return
	}
	if !a.gateway.Configured() {
		t.reset()
		t.say(msgNotConfigured)
		return
	}

	date, derr := caltime.ParseDateParts(d.Date)
	tm, terr := caltime.ParseTimeParts(d.Time)
	if derr != nil || terr != nil {
		b.Data.Date, b.Data.Time = "", ""
		t.setStep(session.StepCollectDate)
		t.say("Necesitamos confirmar la fecha de nuevo. " + a.askDate())
		return
	}
	zone := d.TimeZone
	if zone == "" {
		zone = a.settings.TimeZone
	}
	loc, err := caltime.ResolveZone(zone)
	if err != nil {
		b.Data.Time, b.Data.TimeZone = "", ""
		t.setStep(session.StepCollectTime)
		t.say(invalidZone(zone))
		return
	}
	start := caltime.InLocation(date, tm, loc)

	a.commitMu.Lock()
	defer a.commitMu.Unlock()

	verdict, err := a.checkSlot(t.ctx, start, loc)
	switch verdict {
	case slotWeekend:
		b.Data.Date, b.Data.Time = "", ""
		t.setStep(session.StepCollectDate)
		t.say(a.weekend(date))
	case slotPastClosing:
		b.Data.Time = ""
		t.setStep(session.StepCollectTime)
		t.say(a.outOfRange())
	case slotTooSoon:
		b.Data.Time = ""
		t.setStep(session.StepCollectTime)
		a.offerAlternatives(t, a.engine.EarliestStart(), loc, zone, a.notice())
	case slotBusy:
		b.Data.Time = ""
		t.setStep(session.StepCollectTime)
		a.offerAlternatives(t, start, loc, zone, "Lo siento, ese horario se acaba de ocupar.")
	case slotUnchecked:
		a.logger.Error("checking calendar conflicts before booking", zap.String("user", t.user), zap.Error(err))
		b.Data.Time = ""
		t.setStep(session.StepCollectTime)
		t.say(msgFinalizeRetry)
	case slotFree:
		a.create(t, date, tm, zone, start)
	}
}

func (a *Assistant) create(t *turn, date caltime.DateParts, tm caltime.TimeParts, zone string, start time.Time) {
	d := t.state.Booking.Data
	record := store.Booking{
		UserID:    t.user,
		Name:      d.Name,
		Email:     d.Email,
		Phone:     d.Phone,
		Notes:     d.Notes,
		StartTime: start,
		EndTime:   start.Add(a.settings.duration()),
		TimeZone:  zone,
	}
	logger := a.logger.With(zap.String("user", t.user), zap.Time("start", start), zap.String("zone", zone))

	var created *calendar.Created
	ev, err := a.settings.Event(record)
	if err == nil {
		created, err = a.gateway.CreateEvent(t.ctx, ev)
	}
	if err != nil {
		logger.Error("creating calendar event", zap.Error(err))
		record.Status = store.StatusFailed
		record.Error = err.Error()
		a.record(t.ctx, record)
		a.notify("Cita sin agendar", fmt.Sprintf("No se pudo agendar la cita de %s (%s) para el %s a las %s.",
			d.Name, d.Email, caltime.FormatDate(date), caltime.FormatTime(tm)))
		t.reset()
		t.say(msgCreateFailed)
		return
	}

	logger.Info("appointment booked", zap.String("event", created.ID))
	record.Status = store.StatusBooked
	record.CalendarID = created.ID
	a.record(t.ctx, record)
	a.notify("Nueva cita agendada", fmt.Sprintf("%s (%s) el %s a las %s (%s).",
		d.Name, d.Email, caltime.FormatLongDate(date), caltime.FormatTime(tm), zone))
	t.reset()
	t.say(a.confirmation(d.Name, date, tm, zone, created.HTMLLink))
}

func (a *Assistant) record(ctx context.Context, b store.Booking) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.RecordBooking(ctx, b); err != nil {
		a.logger.Warn("recording booking", zap.Error(err))
	}
}

func (a *Assistant) notify(title, message string) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Notify(title, message); err != nil {
		a.logger.Warn("sending notification", zap.Error(err))
	}
}
