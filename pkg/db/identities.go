package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/urmzd/peerlobby/pkg/identity"
)

// Identities returns the identity.Store for a profile.
func (db *DB) Identities(profileID int64) identity.Store {
	return &identityStore{db: db, profileID: profileID}
}

type identityStore struct {
	db        *DB
	profileID int64
}

func (s *identityStore) GetClientID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT client_id FROM identities WHERE profile_id = ?`, s.profileID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", identity.ErrNotFound
	}
	return id, err
}

func (s *identityStore) SaveClientID(ctx context.Context, clientID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identities (profile_id, client_id) VALUES (?, ?)
		ON CONFLICT (profile_id) DO UPDATE SET client_id = excluded.client_id
	`, s.profileID, clientID)
	return err
}
