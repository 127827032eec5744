package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/christopherklint97/citabot/internal/session"
)

const sessionKeyPrefix = "session:"

// Sessions adapts the state table to session.Store.
type Sessions struct {
	db *DB
}

func (db *DB) Sessions() *Sessions {
	return &Sessions{db: db}
}

func (s *Sessions) Get(_ context.Context, userID string) (session.State, error) {
	raw, err := s.db.GetState(sessionKeyPrefix + userID)
	if err != nil {
		return session.State{}, errors.Wrap(err, "reading session")
	}
	if raw == "" {
		return session.State{}, nil
	}
	return session.Decode([]byte(raw))
}

func (s *Sessions) Set(_ context.Context, userID string, st session.State) error {
	key := sessionKeyPrefix + userID
	if st.Empty() {
		return errors.Wrap(s.db.DeleteState(key), "deleting session")
	}
	b, err := session.Encode(st)
	if err != nil {
		return err
	}
	return errors.Wrap(s.db.SetState(key, string(b)), "writing session")
}
