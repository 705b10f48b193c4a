package cache

import (
	"strings"
	"testing"
	"time"
)

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

type searchFilters struct {
	Search *string
	limit  int
}

func strPtr(s string) *string { return &s }

func TestDefaultKeySerializer_SerializeKey(t *testing.T) {
	serializer := NewDefaultKeySerializer()
	published := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		method string
		args   []any
		want   string
	}{
		{
			name:   "no args",
			method: "All",
			want:   "All",
		},
		{
			name:   "id and active flag",
			method: "GetByID",
			args:   []any{int64(42), true},
			want:   joinWithSeparator("GetByID", "42", "true"),
		},
		{
			name:   "nil interface",
			method: "All",
			args:   []any{nil},
			want:   joinWithSeparator("All", "nil"),
		},
		{
			name:   "filters without search",
			method: "All",
			args:   []any{searchFilters{}},
			want:   joinWithSeparator("All", "struct:{Search:nil}"),
		},
		{
			name:   "filters with search ignores unexported fields",
			method: "All",
			args:   []any{searchFilters{Search: strPtr("go"), limit: 5}},
			want:   joinWithSeparator("All", "struct:{Search:go}"),
		},
		{
			name:   "pointer to filters",
			method: "All",
			args:   []any{&searchFilters{Search: strPtr("go")}},
			want:   joinWithSeparator("All", "struct:{Search:go}"),
		},
		{
			name:   "time uses its text form",
			method: "Since",
			args:   []any{published},
			want:   joinWithSeparator("Since", "text:2024-03-01T10:00:00Z"),
		},
		{
			name:   "nil slice and map",
			method: "Find",
			args:   []any{([]int)(nil), (map[string]int)(nil)},
			want:   joinWithSeparator("Find", "slice:nil", "map:nil"),
		},
		{
			name:   "nested slice",
			method: "Find",
			args:   []any{[][]int{{1, 2}, {3}}},
			want:   joinWithSeparator("Find", "slice[2]:{slice[2]:{1,2},slice[1]:{3}}"),
		},
		{
			name:   "array",
			method: "Find",
			args:   []any{[2]string{"a", "b"}},
			want:   joinWithSeparator("Find", "array[2]:{a,b}"),
		},
		{
			name:   "map keys are sorted",
			method: "Find",
			args:   []any{map[string]any{"title": "x", "body": "y", "id": 3}},
			want:   joinWithSeparator("Find", "map[3]:{body=y,id=3,title=x}"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey(tt.method, tt.args...)
			if got != tt.want {
				t.Errorf("SerializeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_Functions(t *testing.T) {
	serializer := NewDefaultKeySerializer()
	fn := func() {}

	key1 := serializer.SerializeKey("WithFunc", fn)
	key2 := serializer.SerializeKey("WithFunc", fn)
	if key1 != key2 {
		t.Errorf("function serialization should be stable: %v != %v", key1, key2)
	}
	if !strings.HasPrefix(key1, joinWithSeparator("WithFunc", "func:")) {
		t.Errorf("expected func: prefix, got %v", key1)
	}

	ch := make(chan int)
	if key := serializer.SerializeKey("WithChan", ch); !strings.HasPrefix(key, joinWithSeparator("WithChan", "chan:")) {
		t.Errorf("expected chan: prefix, got %v", key)
	}
}

func TestDefaultKeySerializer_MapOrderStability(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	first := serializer.SerializeKey("Find", map[int]string{1: "a", 2: "b", 3: "c", 4: "d"})
	for i := 0; i < 20; i++ {
		if got := serializer.SerializeKey("Find", map[int]string{4: "d", 3: "c", 2: "b", 1: "a"}); got != first {
			t.Fatalf("map serialization should not depend on iteration order: %v != %v", got, first)
		}
	}
}

func TestHashKey(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	a := HashKey(serializer, "article", "GetByID", int64(1), true)
	b := HashKey(serializer, "article", "GetByID", int64(1), true)
	if a != b {
		t.Errorf("same call should hash to the same key: %s != %s", a, b)
	}
	if !strings.HasPrefix(a, "article:") || len(a) != len("article:")+16 {
		t.Errorf("unexpected key shape %q", a)
	}

	distinct := []string{
		HashKey(serializer, "article", "GetByID", int64(1), false),
		HashKey(serializer, "article", "GetByID", int64(2), true),
		HashKey(serializer, "user", "GetByID", int64(1), true),
		HashKey(serializer, "article", "All", int64(1), true),
	}
	for _, other := range distinct {
		if other == a {
			t.Errorf("expected %s to differ from %s", other, a)
		}
	}
}

func BenchmarkHashKey(b *testing.B) {
	serializer := NewDefaultKeySerializer()
	args := []any{searchFilters{Search: strPtr("bench")}, int64(9)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		HashKey(serializer, "article", "All", args...)
	}
}
