// Package cloud realizes the lobby transport on top of a realtime database:
// presence records announce devices and per-recipient inbox paths carry
// messages.
package cloud

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrStoreClosed is returned by a Store after Close.
var ErrStoreClosed = errors.New("store closed")

// ChangeKind distinguishes writes from removals.
type ChangeKind string

const (
	ChangePut    ChangeKind = "put"
	ChangeDelete ChangeKind = "delete"
)

// Record is one value at a path.
type Record struct {
	Path      string    `json:"path"`
	Value     []byte    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Change is delivered to watchers. Value is empty for deletes.
type Change struct {
	Kind ChangeKind
	Record
}

// Store is the subset of a realtime database the transport relies on.
// Watch first replays every existing record under prefix as a put, then
// streams changes until ctx is done.
type Store interface {
	Set(ctx context.Context, path string, value []byte) error
	Remove(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]Record, error)
	Watch(ctx context.Context, prefix string) (<-chan Change, error)

	// OnDisconnectRemove registers path for removal when this client's
	// connection ends, whether by Close or by the backend noticing.
	OnDisconnectRemove(ctx context.Context, path string) error

	Ping(ctx context.Context) error
	Close() error
}

// HasPrefix reports whether path lies under prefix.
func HasPrefix(path, prefix string) bool {
	return strings.HasPrefix(path, prefix)
}
