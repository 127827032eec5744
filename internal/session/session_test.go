package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() State {
	return State{
		Booking: &Booking{
			Step: StepCollectTime,
			Data: Data{Phone: "5215550001", Name: "Ana", Email: "ana@example.com", Date: "2024-05-15"},
		},
		Cursor: &Cursor{
			NextSearch:  time.Date(2024, 5, 15, 16, 0, 0, 0, time.UTC),
			TimeZone:    "America/Mexico_City",
			SlotMinutes: 30,
		},
	}
}

func TestStepText(t *testing.T) {
	b, err := StepCollectDate.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "collectDate", string(b))

	var s Step
	require.NoError(t, s.UnmarshalText([]byte("finalize")))
	assert.Equal(t, StepFinalize, s)

	err = s.UnmarshalText([]byte("collectPhone"))
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, err = StepNone.MarshalText()
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestEncodeDecode(t *testing.T) {
	b, err := Encode(sample())
	require.NoError(t, err)
	assert.Contains(t, string(b), `"step":"collectTime"`)
	assert.Contains(t, string(b), `"nextSearchIso":"2024-05-15T16:00:00Z"`)

	st, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, sample(), st)
}

func TestDecodeCorrupt(t *testing.T) {
	for _, raw := range []string{
		`{"scheduling":{"step":"collectPhone","data":{}}}`,
		`{"scheduling":`,
	} {
		_, err := Decode([]byte(raw))
		assert.True(t, errors.Is(err, ErrCorrupt), raw)
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	st := sample()
	require.NoError(t, m.Set(ctx, "u1", st))

	st.Booking.Data.Name = "changed"
	got, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Booking.Data.Name)

	got.Booking.Step = StepFinalize
	again, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StepCollectTime, again.Booking.Step)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	r := NewRedisStore(RedisOptions{Addr: addr, TTL: time.Minute})
	defer r.Close()
	require.NoError(t, r.Ping(context.Background()))
	testStore(t, r)
}

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, got.Empty())

	require.NoError(t, s.Set(ctx, "u1", sample()))
	require.NoError(t, s.Set(ctx, "u2", State{Booking: &Booking{Step: StepCollectName, Data: Data{Phone: "u2"}}}))

	got, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, sample(), got)

	require.NoError(t, s.Set(ctx, "u1", State{}))
	got, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Empty())

	got, err = s.Get(ctx, "u2")
	require.NoError(t, err)
	require.NotNil(t, got.Booking)
	assert.Equal(t, StepCollectName, got.Booking.Step)
	require.NoError(t, s.Set(ctx, "u2", State{}))
}
