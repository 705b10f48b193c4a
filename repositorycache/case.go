package repositorycache

import (
	"strings"
	"unicode"

	"github.com/goliatone/go-content-repository/entity"
)

// namespaceOf is the default key namespace for T: the snake case entity type
// name, "article" for *entity.Article.
func namespaceOf[T entity.Entity]() string {
	var zero T
	return toSnake(entity.TypeName(zero))
}

// toSnake converts a type name to snake case. "ArticleDraft" becomes
// "article_draft", "HTTPCache2" becomes "http_cache_2". Any run of
// non-alphanumeric runes collapses into one underscore.
func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	sep := false
	split := func() {
		if b.Len() > 0 && !sep {
			b.WriteByte('_')
			sep = true
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					split()
				}
			}
			b.WriteRune(unicode.ToLower(r))
			sep = false
		case unicode.IsDigit(r):
			if i > 0 && !unicode.IsDigit(runes[i-1]) {
				split()
			}
			b.WriteRune(r)
			sep = false
		case unicode.IsLower(r):
			b.WriteRune(r)
			sep = false
		default:
			split()
		}
	}

	return strings.Trim(b.String(), "_")
}
