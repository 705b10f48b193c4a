// Package repository implements the article and user data access layer on
// top of bun.
//
// Reads join every relation the entity declares and select joined columns
// under dotted aliases ("user.email"), so each row is un-flattened and
// mapped into a typed entity by the mapper package:
//
//	repo, err := repository.NewArticleRepository(db,
//		repository.WithInvalidator(store, "articles"),
//		repository.WithLogger(logger),
//	)
//	article, err := repo.GetByID(ctx, 7)
//	draft, err := repo.GetByID(ctx, 8, repository.WithInactive())
//
// # Active records
//
// A Spec may name an activity column. Records whose activity column is NULL
// are inactive: All never returns them and GetByID hides them unless asked.
// For articles this is published_at, so drafts are inactive.
//
// # Writes
//
// CreateOrUpdate and Delete run in a single transaction. The body returns a
// txResult that either commits a value or rolls back with an error; transient
// lock and serialization failures restart the body up to WithAttempts times.
// Updates write only changed columns. Delete clears the activity column of an
// active record and removes an inactive one.
//
// After a write commits, the tags given to WithInvalidator are flushed so
// cached reads of the table are dropped.
package repository
