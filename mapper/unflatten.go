package mapper

import (
	"fmt"
	"sort"
	"strings"
)

// PathSeparator splits nested paths in flattened rows.
const PathSeparator = "."

// Unflatten turns a row keyed by dotted paths into a nested map. Keys are
// processed in sorted order so a collision is reported the same way on every
// run.
func Unflatten(row map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(row))
	for _, key := range keys {
		if err := assignPath(out, key, row[key]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func assignPath(root map[string]any, key string, value any) error {
	parts := strings.Split(key, PathSeparator)
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, key)
		}
	}

	node := root
	for i, part := range parts[:len(parts)-1] {
		existing, ok := node[part]
		if !ok {
			child := make(map[string]any)
			node[part] = child
			node = child
			continue
		}
		child, isBranch := existing.(map[string]any)
		if !isBranch {
			return fmt.Errorf("%w: %q is a value, cannot hold %q", ErrPathCollision, strings.Join(parts[:i+1], PathSeparator), key)
		}
		node = child
	}

	leaf := parts[len(parts)-1]
	if existing, ok := node[leaf]; ok {
		if _, isBranch := existing.(map[string]any); isBranch {
			return fmt.Errorf("%w: %q is a branch, cannot hold a value", ErrPathCollision, key)
		}
		return fmt.Errorf("%w: %q assigned twice", ErrPathCollision, key)
	}
	node[leaf] = value
	return nil
}

// Flatten is the inverse of Unflatten. Empty branches disappear, so the round
// trip holds for maps without empty nested maps.
func Flatten(nested map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", nested)
	return out
}

func flattenInto(out map[string]any, prefix string, node map[string]any) {
	for k, v := range node {
		path := k
		if prefix != "" {
			path = prefix + PathSeparator + k
		}
		if child, ok := v.(map[string]any); ok {
			flattenInto(out, path, child)
			continue
		}
		out[path] = v
	}
}
