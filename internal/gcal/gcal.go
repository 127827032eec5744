// Package gcal is the Google Calendar gateway.
package gcal

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	gcalendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/christopherklint97/citabot/internal/calendar"
	"github.com/christopherklint97/citabot/internal/caltime"
)

const wallLayout = "2006-01-02T15:04:05"

type Options struct {
	CredentialsPath string
	TokenPath       string
	CalendarID      string
	// RequestsPerSecond caps API calls; zero means 5.
	RequestsPerSecond float64
}

// Client talks to one Google calendar. The API service is built lazily from
// the OAuth client credentials and the saved token.
type Client struct {
	opts    Options
	limiter *rate.Limiter
	logger  *zap.Logger

	mu  sync.Mutex
	svc *gcalendar.Service
}

func New(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CalendarID == "" {
		opts.CalendarID = "primary"
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// NewWithService wraps an already built service.
func NewWithService(svc *gcalendar.Service, calendarID string, logger *zap.Logger) *Client {
	c := New(Options{CalendarID: calendarID}, logger)
	c.svc = svc
	return c
}

// Configured reports whether credentials and a saved token are present.
func (c *Client) Configured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.svc != nil {
		return true
	}
	return fileExists(c.opts.CredentialsPath) && fileExists(c.opts.TokenPath)
}

func (c *Client) service(ctx context.Context) (*gcalendar.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.svc != nil {
		return c.svc, nil
	}
	if !fileExists(c.opts.CredentialsPath) || !fileExists(c.opts.TokenPath) {
		return nil, calendar.ErrNotConfigured
	}

	cfg, err := oauthConfig(c.opts.CredentialsPath)
	if err != nil {
		return nil, err
	}
	tok, err := loadToken(c.opts.TokenPath)
	if err != nil {
		return nil, err
	}
	src := newPersistingSource(cfg.TokenSource(context.Background(), tok), c.opts.TokenPath, tok, c.logger)
	svc, err := gcalendar.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, errors.Wrap(err, "creating calendar service")
	}
	c.svc = svc
	return svc, nil
}

func (c *Client) ListEvents(ctx context.Context, w calendar.Window) ([]calendar.Event, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var out []calendar.Event
	call := svc.Events.List(c.opts.CalendarID).
		TimeMin(w.Min.Format(time.RFC3339)).
		TimeMax(w.Max.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250)
	err = call.Pages(ctx, func(page *gcalendar.Events) error {
		for _, item := range page.Items {
			out = append(out, toEvent(item))
		}
		if page.NextPageToken == "" {
			return nil
		}
		return c.limiter.Wait(ctx)
	})
	if err != nil {
		c.logError("listing events", err)
		return nil, errors.Wrap(err, "listing google calendar events")
	}

	c.logger.Debug("google calendar events fetched", zap.Int("count", len(out)))
	return out, nil
}

func (c *Client) HasConflict(ctx context.Context, start, end time.Time) (bool, error) {
	return calendar.Conflicts(ctx, c, start, end)
}

// CreateEvent inserts the appointment and has Google email the attendees.
func (c *Client) CreateEvent(ctx context.Context, ne calendar.NewEvent) (*calendar.Created, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}
	start, err := eventDateTime(ne.Start, ne.TimeZone)
	if err != nil {
		return nil, err
	}
	end, err := eventDateTime(ne.End, ne.TimeZone)
	if err != nil {
		return nil, err
	}

	ev := &gcalendar.Event{
		Summary:                 ne.Summary,
		Description:             ne.Description,
		Start:                   start,
		End:                     end,
		GuestsCanSeeOtherGuests: googleapi.Bool(true),
		GuestsCanInviteOthers:   googleapi.Bool(false),
		GuestsCanModify:         false,
	}
	for _, a := range ne.Attendees {
		ev.Attendees = append(ev.Attendees, &gcalendar.EventAttendee{
			Email:       a.Email,
			DisplayName: a.DisplayName,
		})
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	created, err := svc.Events.Insert(c.opts.CalendarID, ev).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		c.logError("creating event", err)
		return nil, errors.Wrap(err, "creating google calendar event")
	}

	c.logger.Info("google calendar event created", zap.String("id", created.Id), zap.String("start", ne.Start))
	return &calendar.Created{ID: created.Id, HTMLLink: created.HtmlLink}, nil
}

func (c *Client) logError(op string, err error) {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 401 {
		c.logger.Error("google token rejected, run 'citabot calendar auth' again", zap.String("op", op), zap.Error(err))
		return
	}
	c.logger.Error("google calendar request failed", zap.String("op", op), zap.Error(err))
}

func toEvent(item *gcalendar.Event) calendar.Event {
	ev := calendar.Event{ID: item.Id, Summary: item.Summary, Status: item.Status}
	if item.Start != nil {
		ev.Start = calendar.EventTime{DateTime: item.Start.DateTime, Date: item.Start.Date}
	}
	if item.End != nil {
		ev.End = calendar.EventTime{DateTime: item.End.DateTime, Date: item.End.Date}
	}
	return ev
}

// eventDateTime sends IANA zones by name. Fixed offsets such as "UTC-5" are
// not accepted as a timeZone by the API, so those go out as RFC 3339 with
// the offset applied.
func eventDateTime(wall, zone string) (*gcalendar.EventDateTime, error) {
	if _, err := time.LoadLocation(zone); err == nil && zone != "" {
		return &gcalendar.EventDateTime{DateTime: wall, TimeZone: zone}, nil
	}
	loc, err := caltime.ResolveZone(zone)
	if err != nil {
		return nil, err
	}
	t, err := time.ParseInLocation(wallLayout, wall, loc)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing event time %q", wall)
	}
	return &gcalendar.EventDateTime{DateTime: t.Format(time.RFC3339)}, nil
}

func oauthConfig(credentialsPath string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading google credentials")
	}
	cfg, err := google.ConfigFromJSON(b, gcalendar.CalendarEventsScope)
	if err != nil {
		return nil, errors.Wrap(err, "parsing google credentials")
	}
	return cfg, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
