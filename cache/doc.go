// Package cache provides the tagged cache store contract, key derivation and
// store construction used by the repository caching decorator.
//
// # Overview
//
// This package exports two main interfaces and their default implementations:
//
//   - Store: a tagged key/value cache holding msgpack snapshots
//   - KeySerializer: builds stable cache keys from method names and arguments
//
// Stores are built once per process and shared by every decorated repository:
//
//	store, err := cache.NewStore(cache.DefaultConfig())
//	serializer := cache.NewDefaultKeySerializer()
//	key := cache.HashKey(serializer, "article", "GetByID", int64(7), true)
//
// # TTL Sentinels
//
// Put takes a ttl per entry. Disabled (zero) skips the write entirely and
// Forever (negative) keeps the entry until one of its tags is flushed. The in
// memory backend still bounds every entry by Config.Residency so memory use
// stays capped; the Redis backend stores such entries without expiry.
//
// # Tags
//
// Every entry is stored with a tag set. FlushTags drops all entries carrying
// any of the given tags. Writers flush the tag set shared by the reads they
// affect, which is how cached reads are invalidated.
//
// # Key Serialization Strategy
//
// The default key serializer uses reflection to handle various Go types:
//
//   - Basic types: direct string representation
//   - Pointers: followed, nil pointers encode as "nil"
//   - Slices/arrays: recursive serialization of elements
//   - Maps: sorted key-value pairs for deterministic output
//   - Structs: exported fields with name:value pairs
//   - encoding.TextMarshaler values such as time.Time: their text form
//   - Functions and channels: their address, stable only within one process
//
// HashKey hashes the serialized form with xxhash and prefixes it with the
// namespace, so keys stay short and readable in Redis.
//
// # Backends
//
// Config.Backend selects "memory" (sturdyc with a versioned tag index) or
// "redis" (go-redis, tag sets flushed by a Lua script).
package cache
