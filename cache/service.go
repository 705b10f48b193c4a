package cache

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// Disabled as a TTL means the value is not cached at all.
	Disabled time.Duration = 0
	// Forever as a TTL stores the value until its tags are flushed.
	Forever time.Duration = -1
)

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// Store is a tagged key/value cache holding msgpack snapshots.
//
// Get returns the encoded snapshot; Decode or GetTyped restore it. Put skips
// the write for a Disabled ttl and keeps the entry without expiry for any
// negative ttl. FlushTags removes every entry stored with any of the tags and
// leaves entries with disjoint tag sets alone.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value any, ttl time.Duration, tags []string) error
	Forget(ctx context.Context, key string) error
	FlushTags(ctx context.Context, tags []string) error
}

// Decode restores a snapshot produced by a Store.
func Decode[T any](data []byte) (T, error) {
	var out T
	if err := msgpack.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, &DecodeError{Err: err}
	}
	return out, nil
}

// GetTyped is a type-safe wrapper around Store.Get.
func GetTyped[T any](ctx context.Context, store Store, key string) (T, bool, error) {
	var zero T
	data, found, err := store.Get(ctx, key)
	if err != nil || !found {
		return zero, false, err
	}
	out, err := Decode[T](data)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

// DecodeError reports a snapshot that could not be restored.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "cache: corrupt entry: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }
