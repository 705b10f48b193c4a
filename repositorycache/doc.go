// Package repositorycache provides a caching decorator for the content
// repositories.
//
// # Overview
//
// CachedRepository[T] wraps any repository.Repository[T] and serves the
// operations on its allow-list cache-aside: the result is looked up in a
// shared cache.Store first and the base repository is only called on a miss.
// Writes always pass through; the base repository flushes the shared tags
// once its transaction commits, which drops every cached read of the table.
//
// # Basic Usage
//
//	store, _ := cache.NewStore(cache.DefaultConfig())
//	base, _ := repository.NewArticleRepository(db, repository.WithInvalidator(store, "articles"))
//
//	cached, err := repositorycache.New[*entity.Article](base, store, nil,
//		repositorycache.WithTags("articles"),
//		repositorycache.WithTTL(10*time.Minute),
//	)
//
//	article, err := cached.GetByID(ctx, 7)  // miss, stored
//	article, err = cached.GetByID(ctx, 7)   // hit
//
// # Allow-list
//
// By default All and GetByID are cached. WithCacheable replaces the list; the
// map is checked when the decorator is built, so unknown operation names and
// write operations are rejected with INVALID_ARGUMENT instead of being
// ignored at call time.
//
// # Keys
//
// Keys are cache.HashKey(namespace, operation, args...). The namespace
// defaults to the snake case entity type name ("article"). GetByID keys use
// the id and the resolved active-only flag, so WithInactive() and
// ActiveOnly(false) share an entry. All keys use the trimmed search term.
//
// # Tags
//
// Every entry is stored under WithTags, plus tags attached to the request
// context with WithCacheTags. Without WithTags the namespace is the only tag.
//
// # Failure Handling
//
// Errors from the base repository are returned unchanged and never cached.
// Store failures, undecodable entries and store calls exceeding
// WithStoreTimeout degrade to a pass-through read; they are logged at warn
// level and counted in the cache errors metric.
//
// # Custom reads
//
// Intercept applies the same logic to read methods of specialised
// repositories. A fetch returning the repository itself is never cached.
package repositorycache
