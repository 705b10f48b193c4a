package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type snapshot struct {
	ID          int64      `msgpack:"id"`
	PublishedAt *time.Time `msgpack:"published_at"`
}

// mockStore serves canned Get results.
type mockStore struct {
	data  []byte
	found bool
	err   error
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return m.data, m.found, m.err
}

func (m *mockStore) Put(ctx context.Context, key string, value any, ttl time.Duration, tags []string) error {
	return nil
}

func (m *mockStore) Forget(ctx context.Context, key string) error { return nil }

func (m *mockStore) FlushTags(ctx context.Context, tags []string) error { return nil }

func TestDecode(t *testing.T) {
	published := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	data, err := msgpack.Marshal([]*snapshot{{ID: 1, PublishedAt: &published}, {ID: 2}})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	got, err := Decode[[]*snapshot](data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("unexpected result %+v", got)
	}
	if got[0].PublishedAt == nil || !got[0].PublishedAt.Equal(published) {
		t.Errorf("expected published time %v, got %v", published, got[0].PublishedAt)
	}
	if got[1].PublishedAt != nil {
		t.Errorf("expected nil time, got %v", got[1].PublishedAt)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := Decode[*snapshot]([]byte{0xc1})
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestGetTyped(t *testing.T) {
	ctx := context.Background()
	data, _ := msgpack.Marshal(&snapshot{ID: 9})

	tests := []struct {
		name      string
		store     *mockStore
		wantFound bool
		wantErr   bool
	}{
		{name: "hit", store: &mockStore{data: data, found: true}, wantFound: true},
		{name: "miss", store: &mockStore{}},
		{name: "store failure", store: &mockStore{err: errors.New("unreachable")}, wantErr: true},
		{name: "corrupt", store: &mockStore{data: []byte{0xc1}, found: true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found, err := GetTyped[*snapshot](ctx, tt.store, "k")
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if found && got.ID != 9 {
				t.Errorf("expected ID 9, got %d", got.ID)
			}
		})
	}
}
