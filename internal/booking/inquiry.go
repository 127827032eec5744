package booking

import (
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/christopherklint97/citabot/internal/availability"
	"github.com/christopherklint97/citabot/internal/caltime"
	"github.com/christopherklint97/citabot/internal/nlparse"
	"github.com/christopherklint97/citabot/internal/session"
)

// inquiryPattern marks a message with a date as a question about
// availability rather than small talk ("nos vemos mañana").
var inquiryPattern = regexp.MustCompile(`\b(?:disponib\w*|horarios?|espacio|lugar|libre|cita|llamada|puedo|pueden|podria|tienen|hay)\b`)

// intercept answers availability questions that can arrive outside the
// regular step order. It reports whether the message was consumed.
func (a *Assistant) intercept(t *turn) bool {
	step := t.step()
	switch step {
	case session.StepNone, session.StepCollectDate, session.StepCollectTime:
	default:
		return false
	}

	if showMorePattern.MatchString(t.norm) {
		a.showMore(t)
		return true
	}

	switch step {
	case session.StepNone:
		return a.interceptIdle(t)
	case session.StepCollectDate:
		if asapPattern.MatchString(t.norm) {
			a.asap(t, nil, "Si te funciona, escribe esa fecha para continuar.")
			return true
		}
		if _, ok := nlparse.ParseDate(t.raw, t.now); !ok && availabilityQueryPattern.MatchString(t.norm) {
			a.listUpcoming(t)
			return true
		}
	case session.StepCollectTime:
		if _, ok := nlparse.ParseDate(t.raw, t.now); !ok && availabilityQueryPattern.MatchString(t.norm) {
			date, err := caltime.ParseDateParts(t.state.Booking.Data.Date)
			if err != nil {
				return false
			}
			a.chooseDate(t, date)
			return true
		}
	}
	return false
}

func (a *Assistant) interceptIdle(t *turn) bool {
	if a.start.match(t.norm) {
		return false
	}
	date, hasDate := nlparse.ParseDate(t.raw, t.now)

	switch {
	case asapPattern.MatchString(t.norm):
		var anchor *caltime.DateParts
		if hasDate {
			anchor = &date
		}
		a.asap(t, anchor, msgBookHint)
	case t.state.Cursor != nil && dateChangePattern.MatchString(t.norm):
		t.say(msgAskWhichDate)
	case hasDate && (inquiryPattern.MatchString(t.norm) || availabilityQueryPattern.MatchString(t.norm)):
		a.dateInquiry(t, date)
	case availabilityQueryPattern.MatchString(t.norm):
		a.listUpcoming(t)
	default:
		return false
	}
	return true
}

func (a *Assistant) calendarReady(t *turn) bool {
	if a.gateway.Configured() {
		return true
	}
	t.say(msgNotConfigured)
	return false
}

func (a *Assistant) listUpcoming(t *turn) {
	if !a.calendarReady(t) {
		return
	}
	slots, err := a.engine.FindSlots(t.ctx, availability.Query{Start: t.now, Location: a.loc})
	if err != nil && len(slots) == 0 {
		a.logger.Error("listing upcoming slots", zap.Error(err))
		t.say(msgCalendarError)
		return
	}
	if len(slots) == 0 {
		a.offer(t, noSlotsAhead(a.settings.LookaheadDays), nil, a.settings.TimeZone)
		return
	}
	text := slotList(upcomingHeader(a.settings.TimeZone), slots) + "\n" + msgMoreHint
	if t.state.Booking == nil {
		text += " " + msgBookHint
	}
	a.offer(t, text, slots, a.settings.TimeZone)
}

func (a *Assistant) showMore(t *turn) {
	c := t.state.Cursor
	if c == nil {
		t.say(msgNeedListFirst)
		return
	}
	if !a.calendarReady(t) {
		return
	}
	zone, loc := c.TimeZone, a.loc
	if resolved, err := caltime.ResolveZone(zone); err == nil {
		loc = resolved
	} else {
		zone = a.settings.TimeZone
	}

	slots, err := a.engine.More(t.ctx, c.NextSearch, loc, c.SlotMinutes, a.settings.MaxSlots)
	if err != nil && len(slots) == 0 {
		a.logger.Error("listing more slots", zap.Error(err))
		t.say(msgCalendarError)
		return
	}
	if len(slots) == 0 {
		a.offer(t, msgNoMoreSlots, nil, zone)
		return
	}
	a.offer(t, slotList("Estos son los siguientes horarios disponibles:", slots)+"\n"+msgMoreHint, slots, zone)
}

// asap offers the first free slot, on date when one is given.
func (a *Assistant) asap(t *turn, date *caltime.DateParts, hint string) {
	if !a.calendarReady(t) {
		return
	}
	slot, err := a.engine.Earliest(t.ctx, date, a.loc)
	if err != nil && slot == nil {
		a.logger.Error("finding earliest slot", zap.Error(err))
		t.say(msgCalendarError)
		return
	}
	if slot == nil {
		if date != nil {
			t.say(noSlotsOn(*date))
		} else {
			t.say(noSlotsAhead(a.settings.LookaheadDays))
		}
		return
	}
	a.offer(t, earliestSlot(*slot, a.settings.TimeZone)+" "+hint, []availability.Slot{*slot}, a.settings.TimeZone)
}

// dateInquiry answers "¿tienen espacio el martes?" with the free times on
// that date, or "¿el martes a las 11?" with a yes or the nearest options.
func (a *Assistant) dateInquiry(t *turn, date caltime.DateParts) {
	zone, loc, ok := a.zoneFor(t)
	if !ok {
		t.say(invalidZone(zone))
		return
	}
	if !a.calendarReady(t) {
		return
	}
	switch {
	case date.Before(caltime.DateOf(t.now, loc)):
		t.say(pastDate(date))
		return
	case isWeekendDate(date):
		t.say(a.weekend(date))
		return
	}

	var r nlparse.TimeResult
	if nlparse.HasTimeReference(t.raw) {
		r = nlparse.ParseTime(t.raw, a.settings.hours())
	}
	switch r.Status {
	case nlparse.TimeInvalid:
		a.listDate(t, date, loc, zone)
		return
	case nlparse.TimeClarify:
		t.say(a.clarifyTime(r.Suggestion))
		return
	case nlparse.TimeOutOfRange:
		t.say(a.outOfRange())
		return
	}

	start := caltime.InLocation(date, r.Time, loc)
	verdict, err := a.checkSlot(t.ctx, start, loc)
	switch verdict {
	case slotWeekend:
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
		t.say(timeAvailable(date, r.Time, zone))
	}
}

func (a *Assistant) listDate(t *turn, date caltime.DateParts, loc *time.Location, zone string) {
	slots, err := a.engine.SlotsOnDate(t.ctx, date, loc, a.settings.MaxSlots)
	if err != nil && len(slots) == 0 {
		a.logger.Error("listing slots for date", zap.Stringer("date", date), zap.Error(err))
		t.say(msgCalendarError)
		return
	}
	if len(slots) == 0 {
		t.say(noSlotsOn(date))
		return
	}
	a.offer(t, timeList(dateHeader(date, zone), slots)+"\n"+msgBookHint, slots, zone)
}
