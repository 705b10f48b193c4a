package entity

// User owns articles.
type User struct {
	ID    int64  `json:"id" msgpack:"id"`
	Email string `json:"email" msgpack:"email"`
}

var _ Entity = (*User)(nil)

func NewUser() *User { return &User{} }

func (u *User) TableName() string { return "users" }

func (u *User) Columns() []string { return []string{"id", "email"} }

func (u *User) Fields() []Field {
	return []Field{
		{Name: "id", Kind: KindInt},
		{Name: "email", Kind: KindString},
	}
}

func (u *User) Set(name string, value any) error {
	var ok bool
	switch name {
	case "id":
		u.ID, ok = value.(int64)
	case "email":
		u.Email, ok = value.(string)
	default:
		return unknownField(u, name)
	}
	if !ok {
		return assignError(u, name, value)
	}
	return nil
}

func (u *User) Values() map[string]any {
	return map[string]any{"id": u.ID, "email": u.Email}
}
