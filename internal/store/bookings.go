package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

const (
	StatusBooked = "booked"
	StatusFailed = "failed"
)

// Booking is one attempt to write an appointment to the calendar.
type Booking struct {
	ID         int
	CalendarID string
	UserID     string
	Name       string
	Email      string
	Phone      string
	Notes      string
	StartTime  time.Time
	EndTime    time.Time
	TimeZone   string
	Status     string
	Error      string
	CreatedAt  time.Time
}

const bookingColumns = `id, calendar_id, user_id, name, email, phone, notes, start_time, end_time, time_zone, status, error, created_at`

// RecordBooking stores b and satisfies the booking recorder hook.
func (db *DB) RecordBooking(ctx context.Context, b Booking) error {
	_, err := db.InsertBooking(ctx, &b)
	return err
}

func (db *DB) InsertBooking(ctx context.Context, b *Booking) (int64, error) {
	status := b.Status
	if status == "" {
		status = StatusBooked
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO bookings (calendar_id, user_id, name, email, phone, notes, start_time, end_time, time_zone, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.CalendarID, b.UserID, b.Name, b.Email, b.Phone, b.Notes,
		b.StartTime.UTC().Format(time.RFC3339),
		b.EndTime.UTC().Format(time.RFC3339),
		b.TimeZone, status, b.Error,
	)
	if err != nil {
		return 0, errors.Wrap(err, "inserting booking")
	}
	return result.LastInsertId()
}

// BookingsBetween lists bookings whose appointment starts in [from, to).
func (db *DB) BookingsBetween(ctx context.Context, from, to time.Time) ([]Booking, error) {
	return db.queryBookings(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE start_time >= ? AND start_time < ?
		 ORDER BY start_time ASC`,
		from.UTC().Format(time.RFC3339),
		to.UTC().Format(time.RFC3339),
	)
}

// FailedBookings lists calendar writes that need manual follow-up.
func (db *DB) FailedBookings(ctx context.Context) ([]Booking, error) {
	return db.queryBookings(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE status = 'failed'
		 ORDER BY created_at ASC`,
	)
}

// UpdateBookingStatus marks a booking after a retry.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int, status, calendarID, errText string) error {
	_, err := db.ExecContext(ctx,
		"UPDATE bookings SET status = ?, calendar_id = ?, error = ? WHERE id = ?",
		status, calendarID, errText, id,
	)
	return errors.Wrapf(err, "updating booking %d", id)
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying bookings")
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		var calendarID, phone, notes, errText sql.NullString
		var startStr, endStr, createdStr string

		if err := rows.Scan(
			&b.ID, &calendarID, &b.UserID, &b.Name, &b.Email, &phone, &notes,
			&startStr, &endStr, &b.TimeZone, &b.Status, &errText, &createdStr,
		); err != nil {
			return nil, errors.Wrap(err, "scanning booking")
		}

		b.CalendarID = calendarID.String
		b.Phone = phone.String
		b.Notes = notes.String
		b.Error = errText.String

		if t, err := time.Parse(time.RFC3339, startStr); err == nil {
			b.StartTime = t
		}
		if t, err := time.Parse(time.RFC3339, endStr); err == nil {
			b.EndTime = t
		}
		if t, err := time.Parse("2006-01-02 15:04:05", createdStr); err == nil {
			b.CreatedAt = t
		} else if t, err := time.Parse(time.RFC3339, createdStr); err == nil {
			b.CreatedAt = t
		}

		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}
