package mapper

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-content-repository/entity"
)

var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrPathCollision = errors.New("path collision")
	ErrUnknownField  = errors.New("unknown field")
	ErrTypeMismatch  = errors.New("type mismatch")
	ErrNilValue      = errors.New("nil value for non nullable field")
)

// Error reports a field that could not be mapped.
type Error struct {
	Entity string
	Field  string
	Value  any
	Err    error
}

func (e *Error) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("map %s.%s: %v", e.Entity, e.Field, e.Err)
	}
	return fmt.Sprintf("map %s.%s: %v (%T)", e.Entity, e.Field, e.Err, e.Value)
}

func (e *Error) Unwrap() error { return e.Err }

// TimeLayouts are tried in order when a time column arrives as text.
var TimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// MapOne builds a T from a nested mapping. Every key must name a declared
// field of T; nested entities are built from their branch.
func MapOne[T entity.Entity](nested map[string]any, newT func() T) (T, error) {
	target := newT()
	if err := mapInto(target, nested, ""); err != nil {
		var zero T
		return zero, err
	}
	return target, nil
}

// MapMany applies MapOne to every row, keeping row order.
func MapMany[T entity.Entity](rows []map[string]any, newT func() T) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		item, err := MapOne(row, newT)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// MapRows un-flattens each dotted row and maps it to T.
func MapRows[T entity.Entity](rows []map[string]any, newT func() T) ([]T, error) {
	nested := make([]map[string]any, 0, len(rows))
	for i, row := range rows {
		n, err := Unflatten(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		nested = append(nested, n)
	}
	return MapMany(nested, newT)
}

func mapInto(target entity.Entity, nested map[string]any, prefix string) error {
	typeName := entity.TypeName(target)
	for _, key := range slices.Sorted(maps.Keys(nested)) {
		raw := nested[key]
		field, ok := entity.FieldByName(target, key)
		if !ok {
			return &Error{Entity: typeName, Field: prefix + key, Value: raw, Err: ErrUnknownField}
		}

		value, err := coerceField(field, raw, prefix+key)
		if err != nil {
			var mErr *Error
			if errors.As(err, &mErr) {
				return err
			}
			return &Error{Entity: typeName, Field: prefix + key, Value: raw, Err: err}
		}

		if err := target.Set(field.Name, value); err != nil {
			return &Error{Entity: typeName, Field: prefix + key, Value: raw, Err: fmt.Errorf("%w: %v", ErrTypeMismatch, err)}
		}
	}
	return nil
}

func coerceField(field entity.Field, raw any, path string) (any, error) {
	if raw == nil {
		if !field.Nullable {
			return nil, ErrNilValue
		}
		return nil, nil
	}

	switch field.Kind {
	case entity.KindInt:
		return CoerceInt(raw)
	case entity.KindString:
		return CoerceString(raw)
	case entity.KindTime:
		return CoerceTime(raw)
	case entity.KindEntity:
		branch, ok := raw.(map[string]any)
		if !ok || field.New == nil {
			return nil, ErrTypeMismatch
		}
		if field.Nullable && allNil(branch) {
			return nil, nil
		}
		related := field.New()
		if err := mapInto(related, branch, path+PathSeparator); err != nil {
			return nil, err
		}
		return related, nil
	default:
		return nil, fmt.Errorf("%w: unsupported kind %s", ErrTypeMismatch, field.Kind)
	}
}

// Coerce converts raw to the Go type used for kind. Nil passes through.
func Coerce(kind entity.Kind, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch kind {
	case entity.KindInt:
		return CoerceInt(raw)
	case entity.KindString:
		return CoerceString(raw)
	case entity.KindTime:
		return CoerceTime(raw)
	default:
		return nil, fmt.Errorf("%w: cannot coerce %s", ErrTypeMismatch, kind)
	}
}

// CoerceInt converts integers, integral floats and numeric text to int64.
func CoerceInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return uintToInt(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt(v)
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case json.Number:
		return parseInt(v.String())
	case string:
		return parseInt(v)
	case []byte:
		return parseInt(string(v))
	default:
		return 0, ErrTypeMismatch
	}
}

// CoerceString accepts text values.
func CoerceString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", ErrTypeMismatch
	}
}

// CoerceTime accepts time values and text in one of TimeLayouts. Text without
// a zone is read as UTC and every result is returned in UTC.
func CoerceTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, ErrNilValue
		}
		return v.UTC(), nil
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	default:
		return time.Time{}, ErrTypeMismatch
	}
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range TimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable time %q", ErrTypeMismatch, s)
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrTypeMismatch, s)
	}
	return n, nil
}

func uintToInt(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d overflows int64", ErrTypeMismatch, v)
	}
	return int64(v), nil
}

func floatToInt(v float64) (int64, error) {
	if v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrTypeMismatch, v)
	}
	return int64(v), nil
}

func allNil(m map[string]any) bool {
	for _, v := range m {
		if v != nil {
			return false
		}
	}
	return true
}
