package calendar

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	ical "github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/christopherklint97/citabot/internal/caltime"
)

// ErrReadOnly is returned when writing to a calendar fetched over HTTP.
var ErrReadOnly = errors.New("calendar source is read-only")

const (
	icsLayout = "2006-01-02T15:04:05"
	prodID    = "-//citabot//citabot//ES"
)

// ICS is a Gateway over an iCalendar document. A file path source is read
// and written; an http(s) URL source (a published calendar feed) is read
// only. Recurring events are expanded inside the listing window.
type ICS struct {
	source     string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	// serializes read-modify-write of the file
	mu sync.Mutex
}

func NewICS(source string, logger *zap.Logger) *ICS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ICS{
		source:     source,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

func (c *ICS) Configured() bool {
	return c.source != ""
}

func (c *ICS) remote() bool {
	return strings.HasPrefix(c.source, "http://") || strings.HasPrefix(c.source, "https://")
}

func (c *ICS) ListEvents(ctx context.Context, w Window) ([]Event, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	c.mu.Lock()
	cals, err := c.load(ctx)
	c.mu.Unlock()
	if err != nil {
		if !c.remote() && errors.Is(err, os.ErrNotExist) {
			// nothing booked yet
			return nil, nil
		}
		return nil, err
	}

	var events []Event
	for _, cal := range cals {
		for _, component := range cal.Children {
			if component.Name != ical.CompEvent {
				continue
			}
			events = append(events, c.expand(ical.Event{Component: component}, w)...)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, _ := events[i].Start.Instant()
		b, _ := events[j].Start.Instant()
		return a.Before(b)
	})

	c.logger.Debug("ics events listed", zap.Int("count", len(events)), zap.Time("from", w.Min), zap.Time("to", w.Max))
	return events, nil
}

// expand returns the occurrences of ev that overlap w.
func (c *ICS) expand(ev ical.Event, w Window) []Event {
	uid, _ := ev.Props.Text(ical.PropUID)
	start, err := ev.DateTimeStart(time.UTC)
	if err != nil {
		c.logger.Debug("skipping event with unreadable start", zap.String("uid", uid), zap.Error(err))
		return nil
	}
	end, err := ev.DateTimeEnd(time.UTC)
	if err != nil || end.IsZero() {
		c.logger.Debug("skipping event with unreadable end", zap.String("uid", uid), zap.Error(err))
		return nil
	}
	duration := end.Sub(start)

	summary, _ := ev.Props.Text(ical.PropSummary)
	status, _ := ev.Props.Text(ical.PropStatus)
	allDay := false
	if prop := ev.Props.Get(ical.PropDateTimeStart); prop != nil {
		allDay = prop.ValueType() == ical.ValueDate
	}

	set, err := ev.RecurrenceSet(time.UTC)
	if err != nil {
		c.logger.Debug("ignoring unreadable recurrence", zap.String("uid", uid), zap.Error(err))
	}
	occurrences := occurrencesIn(set, start, duration, w)

	var out []Event
	for _, occ := range occurrences {
		occEnd := occ.Add(duration)
		if !occ.Before(w.Max) || !occEnd.After(w.Min) {
			continue
		}
		out = append(out, Event{
			ID:      uid,
			Summary: summary,
			Status:  strings.ToLower(status),
			Start:   eventTime(occ, allDay),
			End:     eventTime(occEnd, allDay),
		})
	}
	return out
}

// occurrencesIn lists the starts of a possibly recurring event whose span
// can touch w. A nil set means a single occurrence at start.
func occurrencesIn(set *rrule.Set, start time.Time, duration time.Duration, w Window) []time.Time {
	if set == nil {
		return []time.Time{start}
	}
	return set.Between(w.Min.Add(-duration), w.Max, true)
}

func eventTime(t time.Time, allDay bool) EventTime {
	if allDay {
		return EventTime{Date: t.Format("2006-01-02")}
	}
	return EventTime{DateTime: t.UTC().Format(time.RFC3339)}
}

func (c *ICS) HasConflict(ctx context.Context, start, end time.Time) (bool, error) {
	return Conflicts(ctx, c, start, end)
}

// CreateEvent appends a VEVENT to the calendar file.
func (c *ICS) CreateEvent(ctx context.Context, ne NewEvent) (*Created, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if c.remote() {
		return nil, ErrReadOnly
	}

	loc, err := caltime.ResolveZone(ne.TimeZone)
	if err != nil {
		return nil, err
	}
	start, err := time.ParseInLocation(icsLayout, ne.Start, loc)
	if err != nil {
		return nil, errors.Wrap(err, "parsing event start")
	}
	end, err := time.ParseInLocation(icsLayout, ne.End, loc)
	if err != nil {
		return nil, errors.Wrap(err, "parsing event end")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cals, err := c.load(ctx)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	var cal *ical.Calendar
	if len(cals) > 0 {
		cal = cals[0]
	} else {
		cal = ical.NewCalendar()
	}
	if cal.Props.Get(ical.PropProductID) == nil {
		cal.Props.SetText(ical.PropProductID, prodID)
	}
	if cal.Props.Get(ical.PropVersion) == nil {
		cal.Props.SetText(ical.PropVersion, "2.0")
	}

	uid := uuid.NewString()
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, c.now().UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	event.Props.SetText(ical.PropSummary, ne.Summary)
	if ne.Description != "" {
		event.Props.SetText(ical.PropDescription, ne.Description)
	}
	event.Props.SetText(ical.PropStatus, "CONFIRMED")
	for _, a := range ne.Attendees {
		prop := ical.NewProp(ical.PropAttendee)
		prop.Value = "mailto:" + a.Email
		if a.DisplayName != "" {
			prop.Params.Set(ical.ParamCommonName, a.DisplayName)
		}
		event.Props.Add(prop)
	}
	cal.Children = append(cal.Children, event.Component)

	if err := c.save(cal); err != nil {
		return nil, err
	}

	c.logger.Info("ics event created", zap.String("uid", uid), zap.Time("start", start))
	return &Created{ID: uid}, nil
}

// load decodes every calendar in the source. Callers hold c.mu.
func (c *ICS) load(ctx context.Context) ([]*ical.Calendar, error) {
	r, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	dec := ical.NewDecoder(r)
	var cals []*ical.Calendar
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parsing calendar")
		}
		cals = append(cals, cal)
	}
	return cals, nil
}

func (c *ICS) open(ctx context.Context) (io.ReadCloser, error) {
	if !c.remote() {
		f, err := os.Open(c.source)
		if err != nil {
			return nil, errors.Wrap(err, "opening calendar file")
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.source, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching calendar")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("calendar fetch returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// save writes the calendar atomically (tmp + rename).
func (c *ICS) save(cal *ical.Calendar) error {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return errors.Wrap(err, "encoding calendar")
	}

	if err := os.MkdirAll(filepath.Dir(c.source), 0755); err != nil {
		return errors.Wrap(err, "creating calendar directory")
	}
	tmp := c.source + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(err, "writing temp calendar file")
	}
	if err := os.Rename(tmp, c.source); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "renaming calendar file")
	}
	return nil
}
