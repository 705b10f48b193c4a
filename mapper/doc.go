// Package mapper rebuilds entities from the flat rows returned by join queries.
//
// A join selects related columns under dotted aliases ("user.email"). Unflatten
// turns such a row into a nested map, and MapOne assigns every key to a field
// declared by the target entity, building related entities from their branch:
//
//	row := map[string]any{"id": 1, "title": "Hi", "user.id": 2, "user.email": "a@b.c"}
//	nested, err := mapper.Unflatten(row)
//	article, err := mapper.MapOne(nested, entity.NewArticle)
//
// Keys that do not match a declared field, values that cannot be coerced to the
// field kind and nil values for non nullable fields are reported as *Error.
package mapper
