package repository

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-repository/entity"
	"github.com/goliatone/go-content-repository/errcodes"
)

// ArticleRepository reads published articles joined with their author and
// writes article rows.
type ArticleRepository struct {
	*Base[*entity.Article]
}

var _ Repository[*entity.Article] = (*ArticleRepository)(nil)

// ArticleSpec is the query and write behaviour of the articles table.
func ArticleSpec() Spec {
	return Spec{
		Alias:          "article",
		ActivityColumn: "published_at",
		SearchColumns:  []string{"title", "body"},
		OrderBy: []Order{
			{Column: "published_at", Desc: true},
			{Column: "id", Desc: true},
		},
		CreateStamp: "published_at",
		Validate:    validateArticle,
	}
}

func NewArticleRepository(db bun.IDB, opts ...Option) (*ArticleRepository, error) {
	base, err := NewBase(db, entity.NewArticle, ArticleSpec(), opts...)
	if err != nil {
		return nil, err
	}
	return &ArticleRepository{Base: base}, nil
}

// validateArticle enforces column limits. Inserts must carry every required
// column; updates only check what they change.
func validateArticle(values map[string]any, create bool) error {
	key := func(name string, rules ...validation.Rule) *validation.KeyRules {
		k := validation.Key(name, rules...)
		if !create {
			k = k.Optional()
		}
		return k
	}

	err := validation.Validate(values, validation.Map(
		key("user_id", validation.Required, validation.Min(int64(1))),
		key("title", validation.RuneLength(0, entity.ArticleTitleMax)),
		key("body", validation.RuneLength(0, entity.ArticleBodyMax)),
	).AllowExtraKeys())
	if err == nil {
		return nil
	}

	ve := goerrors.FromOzzoValidation(err, "invalid article")
	domain := errcodes.New(errcodes.ValidationParam, err.Error())
	domain.ValidationErrors = ve.ValidationErrors
	domain.Source = err
	return domain
}
