// Package scheduler retries calendar writes that failed while a user was
// booking.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/christopherklint97/citabot/internal/booking"
	"github.com/christopherklint97/citabot/internal/calendar"
	"github.com/christopherklint97/citabot/internal/caltime"
	"github.com/christopherklint97/citabot/internal/store"
)

// BookingStore is the part of the booking history the retrier touches.
type BookingStore interface {
	FailedBookings(ctx context.Context) ([]store.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int, status, calendarID, errText string) error
}

// Result counts what one retry pass did.
type Result struct {
	Booked  int
	Skipped int
	Failed  int
}

type Retrier struct {
	bookings BookingStore
	gateway  calendar.Gateway
	settings booking.Settings
	clock    caltime.Clock
	logger   *zap.Logger
	notifier booking.Notifier
}

func New(bookings BookingStore, gateway calendar.Gateway, settings booking.Settings, clock caltime.Clock, logger *zap.Logger) *Retrier {
	if clock == nil {
		clock = caltime.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{
		bookings: bookings,
		gateway:  gateway,
		settings: settings,
		clock:    clock,
		logger:   logger,
	}
}

// SetNotifier reports successful retries to the team.
func (r *Retrier) SetNotifier(n booking.Notifier) {
	r.notifier = n
}

// Run retries once immediately and then on every tick aligned to interval
// until ctx is cancelled.
func (r *Retrier) Run(ctx context.Context, interval time.Duration) error {
	r.logger.Info("retry worker started", zap.Duration("interval", interval))
	r.pass(ctx)

	for {
		next := nextAlignedTick(r.clock.Now(), interval)
		r.logger.Debug("next retry", zap.Time("at", next))

		select {
		case <-ctx.Done():
			r.logger.Info("retry worker stopped")
			return nil
		case <-time.After(time.Until(next)):
		}

		r.pass(ctx)
	}
}

func (r *Retrier) pass(ctx context.Context) {
	res, err := r.RetryFailed(ctx)
	if err != nil {
		r.logger.Error("retrying failed bookings", zap.Error(err))
		return
	}
	if res != (Result{}) {
		r.logger.Info("retry pass finished",
			zap.Int("booked", res.Booked), zap.Int("skipped", res.Skipped), zap.Int("failed", res.Failed))
	}
}

// RetryFailed re-creates the calendar event for every failed booking whose
// appointment is still ahead and whose slot is still free.
func (r *Retrier) RetryFailed(ctx context.Context) (Result, error) {
	var res Result
	if !r.gateway.Configured() {
		return res, calendar.ErrNotConfigured
	}
	failed, err := r.bookings.FailedBookings(ctx)
	if err != nil {
		return res, err
	}

	earliest := r.clock.Now().Add(r.settings.MinimumNotice)
	for _, b := range failed {
		logger := r.logger.With(zap.Int("booking", b.ID), zap.String("user", b.UserID))

		if b.StartTime.Before(earliest) {
			res.Skipped++
			continue
		}

		busy, err := r.gateway.HasConflict(ctx, b.StartTime, b.EndTime)
		if err != nil {
			logger.Warn("checking conflicts", zap.Error(err))
			res.Failed++
			continue
		}
		if busy {
			res.Skipped++
			r.update(ctx, logger, b.ID, store.StatusFailed, "", "slot is no longer free")
			continue
		}

		ev, err := r.settings.Event(b)
		if err != nil {
			res.Failed++
			r.update(ctx, logger, b.ID, store.StatusFailed, "", err.Error())
			continue
		}
		created, err := r.gateway.CreateEvent(ctx, ev)
		if err != nil {
			logger.Warn("retry failed", zap.Error(err))
			res.Failed++
			r.update(ctx, logger, b.ID, store.StatusFailed, "", err.Error())
			continue
		}

		res.Booked++
		r.update(ctx, logger, b.ID, store.StatusBooked, created.ID, "")
		logger.Info("booking retried", zap.String("event", created.ID))
		if r.notifier != nil {
			msg := fmt.Sprintf("%s (%s) quedó agendada tras reintentar.", b.Name, b.Email)
			if err := r.notifier.Notify("Cita agendada", msg); err != nil {
				logger.Warn("sending notification", zap.Error(err))
			}
		}
	}
	return res, nil
}

func (r *Retrier) update(ctx context.Context, logger *zap.Logger, id int, status, calendarID, errText string) {
	if err := r.bookings.UpdateBookingStatus(ctx, id, status, calendarID, errText); err != nil {
		logger.Error("updating booking status", zap.Error(err))
	}
}

// nextAlignedTick returns the next instant after now that falls on a
// multiple of interval within the hour, e.g. :00, :15, :30 for 15 minutes.
func nextAlignedTick(now time.Time, interval time.Duration) time.Time {
	mins := int(interval.Minutes())
	if mins <= 0 {
		mins = 60
	}

	nextMinute := ((now.Minute() / mins) + 1) * mins

	next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	return next.Add(time.Duration(nextMinute) * time.Minute)
}
