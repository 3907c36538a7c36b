package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const notifyChannel = "realtime_changes"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS realtime_records (
    path       TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type notification struct {
	Kind ChangeKind `json:"kind"`
	Path string     `json:"path"`
}

// PostgresStore is a Store backed by a Postgres table. Changes are pushed
// to watchers with LISTEN/NOTIFY.
type PostgresStore struct {
	pool *pgxpool.Pool

	mu           sync.Mutex
	onDisconnect []string
	closed       bool
}

// OpenPostgres connects to url and ensures the records table exists.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	log.Info().Msg("Postgres realtime store ready")
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) notify(ctx context.Context, tx pgx.Tx, kind ChangeKind, path string) error {
	payload, err := json.Marshal(notification{Kind: kind, Path: path})
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload))
	return err
}

func (p *PostgresStore) Set(ctx context.Context, path string, value []byte) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO realtime_records (path, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		path, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	if err := p.notify(ctx, tx, ChangePut, path); err != nil {
		return fmt.Errorf("notify %s: %w", path, err)
	}
	return tx.Commit(ctx)
}

func (p *PostgresStore) Remove(ctx context.Context, path string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM realtime_records WHERE path = $1`, path)
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	if err := p.notify(ctx, tx, ChangeDelete, path); err != nil {
		return fmt.Errorf("notify %s: %w", path, err)
	}
	return tx.Commit(ctx)
}

func (p *PostgresStore) List(ctx context.Context, prefix string) ([]Record, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT path, value, updated_at FROM realtime_records
		WHERE starts_with(path, $1) ORDER BY path`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Path, &r.Value, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) get(ctx context.Context, path string) (Record, error) {
	r := Record{Path: path}
	err := p.pool.QueryRow(ctx,
		`SELECT value, updated_at FROM realtime_records WHERE path = $1`, path,
	).Scan(&r.Value, &r.UpdatedAt)
	return r, err
}

// Watch holds a dedicated connection for LISTEN until ctx is done.
func (p *PostgresStore) Watch(ctx context.Context, prefix string) (<-chan Change, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen: %w", err)
	}

	existing, err := p.List(ctx, prefix)
	if err != nil {
		conn.Release()
		return nil, err
	}

	ch := make(chan Change, len(existing)+256)
	for _, r := range existing {
		ch <- Change{Kind: ChangePut, Record: r}
	}

	go func() {
		defer close(ch)
		defer func() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
			conn.Release()
		}()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Str("prefix", prefix).Msg("Postgres watch ended")
				}
				return
			}

			var msg notification
			if err := json.Unmarshal([]byte(n.Payload), &msg); err != nil {
				log.Warn().Err(err).Msg("Bad change notification")
				continue
			}
			if !HasPrefix(msg.Path, prefix) {
				continue
			}

			change := Change{Kind: msg.Kind, Record: Record{Path: msg.Path}}
			if msg.Kind == ChangePut {
				rec, err := p.get(ctx, msg.Path)
				if errors.Is(err, pgx.ErrNoRows) {
					continue
				}
				if err != nil {
					log.Warn().Err(err).Str("path", msg.Path).Msg("Failed to read changed record")
					continue
				}
				change.Record = rec
			}

			select {
			case ch <- change:
			default:
				log.Warn().Str("path", msg.Path).Msg("Watcher full, dropping change")
			}
		}
	}()

	return ch, nil
}

func (p *PostgresStore) OnDisconnectRemove(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrStoreClosed
	}
	p.onDisconnect = append(p.onDisconnect, path)
	return nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close removes disconnect-registered paths and closes the pool.
func (p *PostgresStore) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	paths := p.onDisconnect
	p.onDisconnect = nil
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	for _, path := range paths {
		if err := p.Remove(ctx, path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to remove on disconnect")
		}
	}
	p.pool.Close()
	return nil
}
