// Package booking runs the Spanish conversation that collects a user's
// details and books an appointment on the external calendar.
package booking

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/christopherklint97/citabot/internal/availability"
	"github.com/christopherklint97/citabot/internal/calendar"
	"github.com/christopherklint97/citabot/internal/caltime"
	"github.com/christopherklint97/citabot/internal/nlparse"
	"github.com/christopherklint97/citabot/internal/session"
	"github.com/christopherklint97/citabot/internal/store"
)

// Message is one inbound chat message. A zero ReceivedAt means the message
// is handled as received now.
type Message struct {
	UserID     string
	Text       string
	ReceivedAt time.Time
}

// Reply is the outcome of handling a message. When Handled is false the
// message was not about scheduling and the caller should answer it some
// other way.
type Reply struct {
	Handled  bool
	Messages []string
}

// Recorder keeps a history of booking attempts.
type Recorder interface {
	RecordBooking(ctx context.Context, b store.Booking) error
}

// Notifier tells the team about bookings.
type Notifier interface {
	Notify(title, message string) error
}

type Option func(*Assistant)

func WithClock(c caltime.Clock) Option {
	return func(a *Assistant) { a.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(a *Assistant) { a.recorder = r }
}

func WithNotifier(n Notifier) Option {
	return func(a *Assistant) { a.notifier = n }
}

type Assistant struct {
	settings Settings
	loc      *time.Location
	sessions session.Store
	gateway  calendar.Gateway
	engine   *availability.Engine
	clock    caltime.Clock
	logger   *zap.Logger
	recorder Recorder
	notifier Notifier
	start    startMatcher

	// commitMu makes the final conflict check and the event creation one
	// step, so two users cannot both book the same slot.
	commitMu sync.Mutex
}

func New(settings Settings, sessions session.Store, gateway calendar.Gateway, opts ...Option) (*Assistant, error) {
	if err := settings.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid booking settings")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if gateway == nil {
		return nil, errors.New("calendar gateway is required")
	}
	loc, err := caltime.ResolveZone(settings.TimeZone)
	if err != nil {
		return nil, err
	}
	if settings.AlternativeSlots <= 0 {
		settings.AlternativeSlots = 2
	}

	a := &Assistant{
		settings: settings,
		loc:      loc,
		sessions: sessions,
		gateway:  gateway,
		clock:    caltime.SystemClock{},
		logger:   zap.NewNop(),
		start:    newStartMatcher(settings.StartKeywords),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.engine = availability.NewEngine(gateway, settings.Policy(), a.clock, a.logger.Named("availability"))
	return a, nil
}

func (a *Assistant) Settings() Settings {
	return a.settings
}

// Engine exposes the slot search used by the conversation.
func (a *Assistant) Engine() *availability.Engine {
	return a.engine
}

// turn is the working state of one Handle call.
type turn struct {
	ctx   context.Context
	user  string
	raw   string
	norm  string
	now   time.Time
	state session.State
	dirty bool
	out   []string
}

func (t *turn) say(msgs ...string) {
	t.out = append(t.out, msgs...)
}

func (t *turn) step() session.Step {
	if t.state.Booking == nil {
		return session.StepNone
	}
	return t.state.Booking.Step
}

func (t *turn) setStep(s session.Step) {
	t.state.Booking.Step = s
	t.dirty = true
}

func (t *turn) reset() {
	t.state = session.State{}
	t.dirty = true
}

// Handle processes one message and persists the resulting session before
// returning the reply.
func (a *Assistant) Handle(ctx context.Context, msg Message) Reply {
	text := strings.TrimSpace(msg.Text)
	if text == "" || msg.UserID == "" {
		return Reply{}
	}
	logger := a.logger.With(zap.String("user", msg.UserID))

	now := msg.ReceivedAt
	if now.IsZero() {
		now = a.clock.Now()
	}
	t := &turn{
		ctx:  ctx,
		user: msg.UserID,
		raw:  text,
		norm: nlparse.Normalize(text),
		now:  now,
	}
	st, err := a.sessions.Get(ctx, msg.UserID)
	switch {
	case errors.Is(err, session.ErrCorrupt):
		logger.Warn("discarding corrupt session", zap.Error(err))
		t.reset()
	case err != nil:
		logger.Error("loading session", zap.Error(err))
		return Reply{}
	default:
		t.state = st
	}

	handled := a.dispatch(t)
	if t.dirty {
		a.save(t)
	}
	logger.Debug("message handled", zap.Bool("handled", handled), zap.Stringer("step", t.step()))
	return Reply{Handled: handled, Messages: t.out}
}

func (a *Assistant) save(t *turn) {
	if err := a.sessions.Set(t.ctx, t.user, t.state); err != nil {
		a.logger.Error("saving session", zap.String("user", t.user), zap.Error(err))
		return
	}
	t.dirty = false
}

func (a *Assistant) dispatch(t *turn) bool {
	if t.state.Booking != nil && cancelPattern.MatchString(t.norm) {
		t.reset()
		t.say(msgCancelled)
		return true
	}
	if a.intercept(t) {
		return true
	}
	if t.state.Booking != nil {
		a.advance(t)
		return true
	}
	if a.start.match(t.norm) {
		a.begin(t)
		return true
	}
	return false
}

func (a *Assistant) begin(t *turn) {
	if !a.gateway.Configured() {
		t.say(msgNotConfigured)
		return
	}
	t.state = session.State{Booking: &session.Booking{
		Step: session.StepCollectName,
		Data: session.Data{Phone: t.user},
	}}
	t.dirty = true
	t.say(msgAskName)
}

func (a *Assistant) advance(t *turn) {
	switch t.step() {
	case session.StepCollectName:
		a.collectName(t)
	case session.StepCollectEmail:
		a.collectEmail(t)
	case session.StepCollectDate:
		a.collectDate(t)
	case session.StepCollectTime:
		a.collectTime(t)
	case session.StepCollectNotes:
		a.collectNotes(t)
	case session.StepFinalize:
		a.finalize(t)
	default:
		a.logger.Warn("unknown booking step", zap.String("user", t.user), zap.Stringer("step", t.step()))
		t.reset()
		t.say(msgRestart)
	}
}

// zoneFor returns the zone named in the message, falling back to the
// session's zone and then the business zone.
func (a *Assistant) zoneFor(t *turn) (string, *time.Location, bool) {
	zone := nlparse.ExtractZone(t.raw)
	if zone == "" && t.state.Booking != nil {
		zone = t.state.Booking.Data.TimeZone
	}
	if zone == "" {
		return a.settings.TimeZone, a.loc, true
	}
	loc, err := caltime.ResolveZone(zone)
	if err != nil {
		return zone, nil, false
	}
	return zone, loc, true
}
