package repository

import (
	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-repository/entity"
)

// UserRepository reads users. Writes are not supported and fail with
// GENERIC_ERROR.
type UserRepository struct {
	*Base[*entity.User]
}

var _ Repository[*entity.User] = (*UserRepository)(nil)

func UserSpec() Spec {
	return Spec{
		Alias:    "user",
		OrderBy:  []Order{{Column: "id"}},
		ReadOnly: true,
	}
}

func NewUserRepository(db bun.IDB, opts ...Option) (*UserRepository, error) {
	base, err := NewBase(db, entity.NewUser, UserSpec(), opts...)
	if err != nil {
		return nil, err
	}
	return &UserRepository{Base: base}, nil
}
