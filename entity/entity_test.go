package entity

import (
	"testing"
	"time"

	"github.com/goliatone/go-content-repository/errcodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type tablelessEntity struct{ User }

func (tablelessEntity) TableName() string { return "" }

type columnlessEntity struct{ User }

func (columnlessEntity) Columns() []string { return nil }

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		entity  Entity
		wantErr bool
	}{
		{name: "article", entity: NewArticle()},
		{name: "user", entity: NewUser()},
		{name: "nil", entity: nil, wantErr: true},
		{name: "no table", entity: &tablelessEntity{}, wantErr: true},
		{name: "no columns", entity: &columnlessEntity{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.entity)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errcodes.Is(err, errcodes.InvalidInstance), "got %v", err)
		})
	}
}

func TestArticle_Set(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := NewArticle()

	require.NoError(t, a.Set("id", int64(4)))
	require.NoError(t, a.Set("user_id", int64(2)))
	require.NoError(t, a.Set("title", "Hello"))
	require.NoError(t, a.Set("body", "World"))
	require.NoError(t, a.Set("published_at", now))
	require.NoError(t, a.Set("user", &User{ID: 2, Email: "a@b.c"}))

	assert.Equal(t, int64(4), a.ID)
	assert.Equal(t, "Hello", a.Title)
	assert.True(t, a.IsPublished())
	assert.Equal(t, "a@b.c", a.User.Email)

	require.NoError(t, a.Set("published_at", nil))
	assert.False(t, a.IsPublished())

	assert.Error(t, a.Set("title", 12))
	assert.Error(t, a.Set("id", "4"))
	assert.Error(t, a.Set("slug", "x"))
}

func TestArticle_Values(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := &Article{ID: 1, UserID: 3, Title: "t", Body: "b", PublishedAt: &now, User: &User{ID: 3}}

	values := a.Values()
	assert.Equal(t, map[string]any{
		"id":           int64(1),
		"user_id":      int64(3),
		"title":        "t",
		"body":         "b",
		"published_at": now,
	}, values)

	a.PublishedAt = nil
	assert.Nil(t, a.Values()["published_at"])
}

func TestArticle_DecodeMsgpack(t *testing.T) {
	local := time.Local
	time.Local = time.FixedZone("UTC+5", 5*60*60)
	t.Cleanup(func() { time.Local = local })

	published := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	stored := []*Article{
		{ID: 1, UserID: 3, Title: "t", Body: "b", PublishedAt: &published, User: &User{ID: 3, Email: "a@b.c"}},
		{ID: 2, UserID: 3, Title: "draft"},
		nil,
	}

	data, err := msgpack.Marshal(stored)
	require.NoError(t, err)

	var restored []*Article
	require.NoError(t, msgpack.Unmarshal(data, &restored))

	assert.Equal(t, stored, restored)
	require.NotNil(t, restored[0].PublishedAt)
	assert.Equal(t, time.UTC, restored[0].PublishedAt.Location())
	assert.Nil(t, restored[1].PublishedAt)
}

func TestHelpers(t *testing.T) {
	a := NewArticle()

	f, ok := FieldByName(a, "published_at")
	require.True(t, ok)
	assert.Equal(t, KindTime, f.Kind)
	assert.True(t, f.Nullable)

	_, ok = FieldByName(a, "missing")
	assert.False(t, ok)

	assert.True(t, HasColumn(a, "body"))
	assert.False(t, HasColumn(a, "user"))

	assert.Equal(t, "Article", TypeName(a))
	assert.Len(t, RelationsOf(a), 1)
	assert.Empty(t, RelationsOf(NewUser()))
}
