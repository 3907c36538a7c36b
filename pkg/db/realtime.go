package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/peerlobby/pkg/cloud"
)

// DefaultPollInterval is how often watchers look for new record versions.
const DefaultPollInterval = 200 * time.Millisecond

// RealtimeStore implements cloud.Store on the realtime_records table.
// Processes sharing the database file share the records, so devices on one
// host can form a lobby without a remote database.
type RealtimeStore struct {
	db   *DB
	poll time.Duration

	mu           sync.Mutex
	onDisconnect []string
	closed       bool
}

var _ cloud.Store = (*RealtimeStore)(nil)

// Realtime returns a new realtime client of this database. Closing it runs
// its disconnect registrations but leaves the database open.
func (db *DB) Realtime(poll time.Duration) *RealtimeStore {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &RealtimeStore{db: db, poll: poll}
}

func (s *RealtimeStore) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cloud.ErrStoreClosed
	}
	return nil
}

func (s *RealtimeStore) Set(ctx context.Context, path string, value []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO realtime_records (path, value, version, deleted, updated_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(version), 0) + 1 FROM realtime_records), 0, ?)
		ON CONFLICT (path) DO UPDATE SET
		    value = excluded.value,
		    version = excluded.version,
		    deleted = 0,
		    updated_at = excluded.updated_at
	`, path, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

func (s *RealtimeStore) Remove(ctx context.Context, path string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.remove(ctx, path)
}

func (s *RealtimeStore) remove(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE realtime_records
		SET deleted = 1,
		    value = x'',
		    version = (SELECT COALESCE(MAX(version), 0) + 1 FROM realtime_records),
		    updated_at = ?
		WHERE path = ? AND deleted = 0
	`, time.Now().UnixMilli(), path)
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listRecords(ctx context.Context, q querier, prefix string) ([]cloud.Record, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT path, value, updated_at FROM realtime_records
		WHERE deleted = 0 AND substr(path, 1, ?) = ?
		ORDER BY path
	`, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []cloud.Record
	for rows.Next() {
		var r cloud.Record
		var updated int64
		if err := rows.Scan(&r.Path, &r.Value, &updated); err != nil {
			return nil, err
		}
		r.UpdatedAt = time.UnixMilli(updated)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RealtimeStore) List(ctx context.Context, prefix string) ([]cloud.Record, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	recs, err := listRecords(ctx, s.db, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return recs, nil
}

// Watch replays the live records and then polls for newer versions.
func (s *RealtimeStore) Watch(ctx context.Context, prefix string) (<-chan cloud.Change, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var since int64
	var existing []cloud.Record
	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM realtime_records`).Scan(&since); err != nil {
			return err
		}
		var err error
		existing, err = listRecords(ctx, tx, prefix)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", prefix, err)
	}

	ch := make(chan cloud.Change, len(existing)+64)
	for _, r := range existing {
		ch <- cloud.Change{Kind: cloud.ChangePut, Record: r}
	}

	go s.pollChanges(ctx, prefix, since, ch)
	return ch, nil
}

func (s *RealtimeStore) pollChanges(ctx context.Context, prefix string, since int64, ch chan<- cloud.Change) {
	defer close(ch)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		changes, last, err := s.changesSince(ctx, prefix, since)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Str("prefix", prefix).Msg("Realtime poll failed")
			}
			continue
		}
		since = last

		for _, c := range changes {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *RealtimeStore) changesSince(ctx context.Context, prefix string, since int64) ([]cloud.Change, int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, value, version, deleted, updated_at FROM realtime_records
		WHERE version > ? AND substr(path, 1, ?) = ?
		ORDER BY version
	`, since, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, since, err
	}
	defer func() { _ = rows.Close() }()

	var out []cloud.Change
	for rows.Next() {
		var c cloud.Change
		var version, updated int64
		var deleted bool
		if err := rows.Scan(&c.Path, &c.Value, &version, &deleted, &updated); err != nil {
			return nil, since, err
		}
		c.UpdatedAt = time.UnixMilli(updated)
		c.Kind = cloud.ChangePut
		if deleted {
			c.Kind = cloud.ChangeDelete
			c.Value = nil
		}
		since = version
		out = append(out, c)
	}
	return out, since, rows.Err()
}

func (s *RealtimeStore) OnDisconnectRemove(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cloud.ErrStoreClosed
	}
	s.onDisconnect = append(s.onDisconnect, path)
	return nil
}

func (s *RealtimeStore) Ping(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Close removes this client's disconnect registrations.
func (s *RealtimeStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	paths := s.onDisconnect
	s.onDisconnect = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, p := range paths {
		if err := s.remove(ctx, p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Failed to remove on disconnect")
		}
	}
	return nil
}

// Compact deletes tombstones older than cutoff. The newest row always
// survives so versions keep increasing.
func (s *RealtimeStore) Compact(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM realtime_records
		WHERE deleted = 1 AND updated_at < ?
		  AND version < (SELECT MAX(version) FROM realtime_records)
	`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("compact: %w", err)
	}
	return res.RowsAffected()
}
