package entity

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Article is a piece of content owned by a User. An article with a nil
// PublishedAt is a draft and is hidden from active reads.
type Article struct {
	ID          int64      `json:"id" msgpack:"id"`
	UserID      int64      `json:"user_id" msgpack:"user_id"`
	Title       string     `json:"title" msgpack:"title"`
	Body        string     `json:"body" msgpack:"body"`
	PublishedAt *time.Time `json:"published_at" msgpack:"published_at"`
	User        *User      `json:"user,omitempty" msgpack:"user,omitempty"`
}

var _ Entity = (*Article)(nil)
var _ Relational = (*Article)(nil)

const (
	ArticleTitleMax = 200
	ArticleBodyMax  = 1000
)

func NewArticle() *Article { return &Article{} }

func (a *Article) TableName() string { return "articles" }

func (a *Article) Columns() []string {
	return []string{"id", "user_id", "title", "body", "published_at"}
}

func (a *Article) Fields() []Field {
	return []Field{
		{Name: "id", Kind: KindInt},
		{Name: "user_id", Kind: KindInt},
		{Name: "title", Kind: KindString},
		{Name: "body", Kind: KindString},
		{Name: "published_at", Kind: KindTime, Nullable: true},
		{Name: "user", Kind: KindEntity, Nullable: true, New: func() Entity { return NewUser() }},
	}
}

func (a *Article) Relations() []Relation {
	return []Relation{{
		Name:       "user",
		Table:      "users",
		LocalKey:   "user_id",
		ForeignKey: "id",
		Columns:    []string{"id", "email"},
	}}
}

func (a *Article) Set(name string, value any) error {
	var ok bool
	switch name {
	case "id":
		a.ID, ok = value.(int64)
	case "user_id":
		a.UserID, ok = value.(int64)
	case "title":
		a.Title, ok = value.(string)
	case "body":
		a.Body, ok = value.(string)
	case "published_at":
		switch v := value.(type) {
		case nil:
			a.PublishedAt, ok = nil, true
		case time.Time:
			a.PublishedAt, ok = &v, true
		case *time.Time:
			a.PublishedAt, ok = v, true
		}
	case "user":
		switch v := value.(type) {
		case nil:
			a.User, ok = nil, true
		case *User:
			a.User, ok = v, true
		}
	default:
		return unknownField(a, name)
	}
	if !ok {
		return assignError(a, name, value)
	}
	return nil
}

func (a *Article) Values() map[string]any {
	var published any
	if a.PublishedAt != nil {
		published = *a.PublishedAt
	}
	return map[string]any{
		"id":           a.ID,
		"user_id":      a.UserID,
		"title":        a.Title,
		"body":         a.Body,
		"published_at": published,
	}
}

// DecodeMsgpack restores a cached snapshot with PublishedAt in UTC, matching
// rows hydrated from the database.
func (a *Article) DecodeMsgpack(dec *msgpack.Decoder) error {
	type snapshot Article
	if err := dec.Decode((*snapshot)(a)); err != nil {
		return err
	}
	if a.PublishedAt != nil {
		utc := a.PublishedAt.UTC()
		a.PublishedAt = &utc
	}
	return nil
}

// IsPublished reports whether the article is visible to active reads.
func (a *Article) IsPublished() bool {
	return a.PublishedAt != nil
}
