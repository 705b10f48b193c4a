package repositorycache

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/goliatone/go-content-repository/cache"
	"github.com/goliatone/go-content-repository/entity"
)

// Intercept runs fetch behind the cache of c under operation op. Specialised
// repositories use it to cache read methods beyond the Repository contract.
//
// Operations outside the allow-list call fetch directly. Otherwise the
// result is looked up under a key built from op and args; on a miss fetch
// runs and its result is stored with c's tags plus any tags attached to ctx
// by WithCacheTags. Errors from fetch are returned and never cached. Store
// failures are logged and counted but never returned.
//
// A fetch that returns the decorated repository (or the decorator) is not
// cached. The decorator is returned in its place whenever R can hold it, so
// calls chained off the result stay cached.
func Intercept[T entity.Entity, R any](ctx context.Context, c *CachedRepository[T], op string, fetch func(context.Context) (R, error), args ...any) (R, error) {
	if !c.Cacheable(op) {
		return fetch(ctx)
	}

	key := cache.HashKey(c.serializer, c.namespace, op, args...)
	logger := c.logger.With(slog.String("op", op), slog.String("key", key))

	if cached, ok := lookup[T, R](ctx, c, key, op, logger); ok {
		c.metrics.CacheHit(c.namespace, op)
		return cached, nil
	}
	c.metrics.CacheMiss(c.namespace, op)

	result, err := fetch(ctx)
	if err != nil {
		return result, err
	}

	if isSelf(result, c, c.base) {
		logger.Debug("result references the repository, not caching")
		if wrapped, ok := any(c).(R); ok {
			return wrapped, nil
		}
		return result, nil
	}

	tags := dedupeStrings(append(c.Tags(), cacheTagsFromContext(ctx)...))
	storeCtx, cancel := c.storeContext(ctx)
	defer cancel()
	if err := c.store.Put(storeCtx, key, result, c.ttl, tags); err != nil {
		c.metrics.CacheError(c.namespace, "put")
		logger.Warn("cache put failed", slog.Any("error", err))
	}
	return result, nil
}

func lookup[T entity.Entity, R any](ctx context.Context, c *CachedRepository[T], key, op string, logger *slog.Logger) (R, bool) {
	var zero R

	storeCtx, cancel := c.storeContext(ctx)
	defer cancel()

	data, found, err := c.store.Get(storeCtx, key)
	if err != nil {
		c.metrics.CacheError(c.namespace, "get")
		logger.Warn("cache get failed", slog.Any("error", err))
		return zero, false
	}
	if !found {
		return zero, false
	}

	value, err := cache.Decode[R](data)
	if err != nil {
		c.metrics.CacheError(c.namespace, "decode")
		logger.Warn("cache entry could not be decoded", slog.Any("error", err))
		if err := c.store.Forget(storeCtx, key); err != nil {
			logger.Debug("cache forget failed", slog.Any("error", err))
		}
		return zero, false
	}
	return value, true
}

func (c *CachedRepository[T]) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// isSelf reports whether result is one of refs. Only comparable values of
// the same dynamic type are compared.
func isSelf(result any, refs ...any) bool {
	if result == nil {
		return false
	}
	rt := reflect.TypeOf(result)
	if !rt.Comparable() {
		return false
	}
	for _, ref := range refs {
		if ref != nil && reflect.TypeOf(ref) == rt && ref == result {
			return true
		}
	}
	return false
}
