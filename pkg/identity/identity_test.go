package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	id      string
	saves   int
	failGet error
}

func (m *memStore) GetClientID(ctx context.Context) (string, error) {
	if m.failGet != nil {
		return "", m.failGet
	}
	if m.id == "" {
		return "", ErrNotFound
	}
	return m.id, nil
}

func (m *memStore) SaveClientID(ctx context.Context, id string) error {
	m.id = id
	m.saves++
	return nil
}

func TestNew(t *testing.T) {
	a := New("")
	b := New("Kitchen TV")

	_, err := uuid.Parse(a.ClientID)
	require.NoError(t, err)
	assert.NotEqual(t, a.ClientID, b.ClientID)
	assert.Equal(t, "Kitchen TV", b.Name)
	assert.Equal(t, DefaultName(a.ClientID), a.Name)
	assert.Len(t, a.Name, len("Device-")+6)
}

func TestProcess_Stable(t *testing.T) {
	first := Process("one")
	second := Process("two")
	assert.Equal(t, first, second)
}

func TestLoadOrCreate(t *testing.T) {
	store := &memStore{}

	created, err := LoadOrCreate(t.Context(), store, "Remote")
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)

	loaded, err := LoadOrCreate(t.Context(), store, "Remote")
	require.NoError(t, err)
	assert.Equal(t, created.ClientID, loaded.ClientID)
	assert.Equal(t, 1, store.saves)
}

func TestLoadOrCreate_StoreError(t *testing.T) {
	store := &memStore{failGet: errors.New("disk gone")}
	_, err := LoadOrCreate(t.Context(), store, "")
	assert.Error(t, err)
	assert.Zero(t, store.saves)
}
