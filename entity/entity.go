// Package entity declares the records handled by the repositories and the
// metadata the mapper and query builders need to work with them.
//
// Entities describe themselves explicitly: a backing table, an ordered column
// list, field declarations with their kinds and the relations joined into
// read queries. Field assignment goes through Set, so there is no reflection
// over struct fields when rows are mapped.
package entity

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-content-repository/errcodes"
)

// Kind describes how a raw column value is coerced before assignment.
type Kind int

const (
	KindInt Kind = iota
	KindString
	KindTime
	KindEntity
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindEntity:
		return "entity"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field declares one assignable field of an entity.
type Field struct {
	Name     string
	Kind     Kind
	Nullable bool
	// New builds an empty related entity for KindEntity fields.
	New func() Entity
}

// Relation declares a table joined into read queries. Columns of the joined
// table are selected under the "<Name>.<column>" alias.
type Relation struct {
	Name       string
	Table      string
	LocalKey   string
	ForeignKey string
	Columns    []string
}

// Entity is a record backed by a table.
type Entity interface {
	TableName() string
	Columns() []string
	Fields() []Field
	// Set assigns an already coerced value to the named field.
	Set(name string, value any) error
	// Values returns the plain column representation of the record.
	Values() map[string]any
}

// Relational is implemented by entities whose reads join other tables.
type Relational interface {
	Relations() []Relation
}

// RelationsOf returns the relations declared by e, if any.
func RelationsOf(e Entity) []Relation {
	if r, ok := e.(Relational); ok {
		return r.Relations()
	}
	return nil
}

// Validate checks that e declares a table and at least one column. Entities
// failing this check must not be used for I/O.
func Validate(e Entity) error {
	if e == nil {
		return errcodes.New(errcodes.InvalidInstance, "<nil>", "entity.Entity")
	}
	name := TypeName(e)
	if strings.TrimSpace(e.TableName()) == "" || len(e.Columns()) == 0 {
		return errcodes.New(errcodes.InvalidInstance, name, "an entity with table and columns")
	}
	for _, rel := range RelationsOf(e) {
		if rel.Name == "" || rel.Table == "" || rel.LocalKey == "" || rel.ForeignKey == "" || len(rel.Columns) == 0 {
			return errcodes.New(errcodes.InvalidInstance, name+"."+rel.Name, "a complete relation")
		}
	}
	return nil
}

// FieldByName looks up a declared field.
func FieldByName(e Entity, name string) (Field, bool) {
	for _, f := range e.Fields() {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasColumn reports whether name is one of e's columns.
func HasColumn(e Entity, name string) bool {
	for _, c := range e.Columns() {
		if c == name {
			return true
		}
	}
	return false
}

// TypeName returns the bare type name of e, without package or pointer marks.
func TypeName(e any) string {
	name := fmt.Sprintf("%T", e)
	name = strings.TrimLeft(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func assignError(e Entity, field string, value any) error {
	return fmt.Errorf("%s: cannot assign %T to field %q", TypeName(e), value, field)
}

func unknownField(e Entity, field string) error {
	return fmt.Errorf("%s: unknown field %q", TypeName(e), field)
}
