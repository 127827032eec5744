package msgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/christopherklint97/citabot/internal/calendar"
	"github.com/christopherklint97/citabot/internal/caltime"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0"
	wallLayout   = "2006-01-02T15:04:05"
	maxRetries   = 3
)

// Client is a Microsoft Graph calendar gateway for the signed-in user.
type Client struct {
	auth       *Auth
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	backoff    func(attempt int) time.Duration
}

func NewClient(auth *Auth, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		auth:    auth,
		baseURL: graphBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		backoff: backoff,
	}
}

func (c *Client) Configured() bool {
	return c.auth != nil && c.auth.Configured()
}

type calendarViewResponse struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

type graphEvent struct {
	ID          string        `json:"id"`
	Subject     string        `json:"subject"`
	Start       graphDateTime `json:"start"`
	End         graphDateTime `json:"end"`
	IsCancelled bool          `json:"isCancelled"`
	IsAllDay    bool          `json:"isAllDay"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// ListEvents reads the calendar view, which expands recurring series.
func (c *Client) ListEvents(ctx context.Context, w calendar.Window) ([]calendar.Event, error) {
	if !c.Configured() {
		return nil, calendar.ErrNotConfigured
	}
	token, err := c.auth.EnsureValidToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"startDateTime": {w.Min.UTC().Format(wallLayout)},
		"endDateTime":   {w.Max.UTC().Format(wallLayout)},
		"$select":       {"id,subject,start,end,isCancelled,isAllDay"},
		"$top":          {"100"},
		"$orderby":      {"start/dateTime"},
	}

	requestURL := c.baseURL + "/me/calendarView?" + params.Encode()
	var all []calendar.Event
	for requestURL != "" {
		events, next, err := c.fetchPage(ctx, token, requestURL)
		if err != nil {
			c.logger.Error("graph calendar listing failed", zap.Error(err))
			return nil, err
		}
		all = append(all, events...)
		requestURL = next
	}

	c.logger.Debug("graph calendar events fetched", zap.Int("count", len(all)))
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, token, requestURL string) ([]calendar.Event, string, error) {
	body, err := c.do(ctx, token, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, "", err
	}

	var view calendarViewResponse
	if err := json.Unmarshal(body, &view); err != nil {
		return nil, "", errors.Wrap(err, "parsing graph response")
	}

	events := make([]calendar.Event, 0, len(view.Value))
	for _, ge := range view.Value {
		start, err := parseGraphDateTime(ge.Start)
		if err != nil {
			c.logger.Debug("skipping event with unparseable start time", zap.String("id", ge.ID), zap.Error(err))
			continue
		}
		end, err := parseGraphDateTime(ge.End)
		if err != nil {
			c.logger.Debug("skipping event with unparseable end time", zap.String("id", ge.ID), zap.Error(err))
			continue
		}

		ev := calendar.Event{ID: ge.ID, Summary: ge.Subject}
		if ge.IsCancelled {
			ev.Status = calendar.StatusCancelled
		}
		if ge.IsAllDay {
			ev.Start = calendar.EventTime{Date: start.Format("2006-01-02")}
			ev.End = calendar.EventTime{Date: end.Format("2006-01-02")}
		} else {
			ev.Start = calendar.EventTime{DateTime: start.Format(time.RFC3339)}
			ev.End = calendar.EventTime{DateTime: end.Format(time.RFC3339)}
		}
		events = append(events, ev)
	}
	return events, view.NextLink, nil
}

func (c *Client) HasConflict(ctx context.Context, start, end time.Time) (bool, error) {
	return calendar.Conflicts(ctx, c, start, end)
}

type newGraphEvent struct {
	Subject   string          `json:"subject"`
	Body      graphBody       `json:"body"`
	Start     graphDateTime   `json:"start"`
	End       graphDateTime   `json:"end"`
	Attendees []graphAttendee `json:"attendees,omitempty"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphAttendee struct {
	EmailAddress graphEmail `json:"emailAddress"`
	Type         string     `json:"type"`
}

type graphEmail struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type createdEvent struct {
	ID      string `json:"id"`
	WebLink string `json:"webLink"`
}

// CreateEvent posts the appointment; Graph sends the invitations.
func (c *Client) CreateEvent(ctx context.Context, ne calendar.NewEvent) (*calendar.Created, error) {
	if !c.Configured() {
		return nil, calendar.ErrNotConfigured
	}
	start, err := toGraphDateTime(ne.Start, ne.TimeZone)
	if err != nil {
		return nil, err
	}
	end, err := toGraphDateTime(ne.End, ne.TimeZone)
	if err != nil {
		return nil, err
	}
	token, err := c.auth.EnsureValidToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := newGraphEvent{
		Subject: ne.Summary,
		Body:    graphBody{ContentType: "text", Content: ne.Description},
		Start:   start,
		End:     end,
	}
	for _, a := range ne.Attendees {
		payload.Attendees = append(payload.Attendees, graphAttendee{
			EmailAddress: graphEmail{Address: a.Email, Name: a.DisplayName},
			Type:         "required",
		})
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling event")
	}

	body, err := c.do(ctx, token, http.MethodPost, c.baseURL+"/me/events", data)
	if err != nil {
		c.logger.Error("graph event creation failed", zap.Error(err))
		return nil, err
	}
	var created createdEvent
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, errors.Wrap(err, "parsing created event")
	}

	c.logger.Info("graph event created", zap.String("id", created.ID), zap.String("start", ne.Start))
	return &calendar.Created{ID: created.ID, HTMLLink: created.WebLink}, nil
}

// do sends one request, retrying throttling and server errors with
// exponential backoff.
func (c *Client) do(ctx context.Context, token, method, requestURL string, payload []byte) ([]byte, error) {
	var resp *http.Response
	for attempt := 0; attempt <= maxRetries; attempt++ {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
		if err != nil {
			return nil, errors.Wrap(err, "creating graph request")
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Prefer", `outlook.timezone="UTC"`)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return nil, errors.Wrap(err, "graph API request failed")
			}
			if err := sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return nil, errors.Errorf("graph API returned status %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.logger.Debug("graph API retrying", zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1))
			if err := sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading graph response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("graph API error (status %d): %s", resp.StatusCode, truncateStr(string(data), 200))
	}
	return data, nil
}

// toGraphDateTime passes IANA zones through. Fixed offsets are converted to
// UTC since Graph only knows named zones.
func toGraphDateTime(wall, zone string) (graphDateTime, error) {
	if _, err := time.LoadLocation(zone); err == nil && zone != "" {
		return graphDateTime{DateTime: wall, TimeZone: zone}, nil
	}
	loc, err := caltime.ResolveZone(zone)
	if err != nil {
		return graphDateTime{}, err
	}
	t, err := time.ParseInLocation(wallLayout, wall, loc)
	if err != nil {
		return graphDateTime{}, errors.Wrapf(err, "parsing event time %q", wall)
	}
	return graphDateTime{DateTime: t.UTC().Format(wallLayout), TimeZone: "UTC"}, nil
}

func parseGraphDateTime(gdt graphDateTime) (time.Time, error) {
	// With Prefer: outlook.timezone="UTC" the times come back in UTC as
	// "2006-01-02T15:04:05.0000000".
	loc := time.UTC
	if gdt.TimeZone != "" && gdt.TimeZone != "UTC" {
		if l, err := time.LoadLocation(gdt.TimeZone); err == nil {
			loc = l
		}
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		wallLayout,
	} {
		if t, err := time.ParseInLocation(layout, gdt.DateTime, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("cannot parse datetime %q", gdt.DateTime)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
