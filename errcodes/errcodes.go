// Package errcodes defines the closed set of domain error codes returned by
// repositories, the entity mapper and the caching decorator constructors.
//
// Every domain error is a *goerrors.Error carrying a numeric Code, a TextCode
// naming the code, a category and a message rendered from the code template.
// Callers should switch on the numeric code, not on the message text:
//
//	if errcodes.Is(err, errcodes.ResourceNotFound) {
//		// 404
//	}
package errcodes

import (
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Code is a stable numeric domain error code.
type Code int

const (
	GenericError     Code = 1000
	GenericSQLError  Code = 1500
	InvalidInstance  Code = 1001
	InvalidArgument  Code = 1002
	ResourceNotFound Code = 1003
	ValidationParam  Code = 1004
)

type definition struct {
	name     string
	template string
	category goerrors.Category
}

var definitions = map[Code]definition{
	GenericError: {
		name:     "GENERIC_ERROR",
		template: "Something went wrong, please try again later.",
		category: goerrors.CategoryInternal,
	},
	GenericSQLError: {
		name:     "GENERIC_SQL_ERROR",
		template: "Something went wrong, while inserting data into the database: %s",
		category: goerrors.CategoryOperation,
	},
	InvalidInstance: {
		name:     "INVALID_INSTANCE",
		template: "%s must be an instance of %s!",
		category: goerrors.CategoryInternal,
	},
	InvalidArgument: {
		name:     "INVALID_ARGUMENT",
		template: "Invalid argument(s): %s",
		category: goerrors.CategoryBadInput,
	},
	ResourceNotFound: {
		name:     "RESOURCE_NOT_FOUND",
		template: "%s not found!",
		category: goerrors.CategoryNotFound,
	},
	ValidationParam: {
		name:     "VALIDATION_PARAM",
		template: "%s",
		category: goerrors.CategoryValidation,
	},
}

// String returns the symbolic name of the code.
func (c Code) String() string {
	if d, ok := definitions[c]; ok {
		return d.name
	}
	return fmt.Sprintf("UNKNOWN_%d", int(c))
}

// Template returns the printf template used to render messages for c.
func (c Code) Template() string {
	return lookup(c).template
}

func lookup(c Code) definition {
	if d, ok := definitions[c]; ok {
		return d
	}
	return definitions[GenericError]
}

// New builds a domain error for code, rendering its template with attrs.
// Unknown codes fall back to GENERIC_ERROR.
func New(code Code, attrs ...any) *goerrors.Error {
	if _, ok := definitions[code]; !ok {
		code = GenericError
	}
	d := definitions[code]

	err := goerrors.New(render(d.template, attrs), d.category).
		WithCode(int(code)).
		WithTextCode(d.name)

	if len(attrs) > 0 {
		err = err.WithMetadata(map[string]any{"attributes": attrs})
	}
	return err
}

// Wrap builds a domain error for code that keeps source in its chain. When no
// attributes are given the source message fills the template.
//
// goerrors.Wrap keeps the code of a wrapped *goerrors.Error, so the domain
// error is assembled here to make sure the new code wins.
func Wrap(source error, code Code, attrs ...any) *goerrors.Error {
	if source == nil {
		return nil
	}
	if len(attrs) == 0 {
		attrs = []any{Message(source)}
	}
	err := New(code, attrs...)
	err.Source = source
	return err
}

// Message returns the human readable part of err. Domain errors yield their
// rendered message, any other error its Error() text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var domain *goerrors.Error
	if goerrors.As(err, &domain) {
		return domain.Message
	}
	return err.Error()
}

// CodeOf returns the first domain code found in err's chain.
func CodeOf(err error) (Code, bool) {
	for err != nil {
		var domain *goerrors.Error
		if !goerrors.As(err, &domain) {
			return 0, false
		}
		if _, ok := definitions[Code(domain.Code)]; ok {
			return Code(domain.Code), true
		}
		err = domain.Source
	}
	return 0, false
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}

// Format renders err as "[ERROR][code] - message", the shape used in logs and
// API payloads. Non domain errors are rendered as GENERIC_ERROR.
func Format(err error) string {
	if err == nil {
		return ""
	}
	code, ok := CodeOf(err)
	if !ok {
		code = GenericError
	}
	return fmt.Sprintf("[ERROR][%d] - %s", int(code), Message(err))
}

func render(template string, attrs []any) string {
	verbs := strings.Count(template, "%") - 2*strings.Count(template, "%%")
	switch {
	case verbs == 0:
		return template
	case len(attrs) < verbs:
		padded := make([]any, verbs)
		copy(padded, attrs)
		for i := len(attrs); i < verbs; i++ {
			padded[i] = "?"
		}
		attrs = padded
	case len(attrs) > verbs:
		attrs = attrs[:verbs]
	}
	return fmt.Sprintf(template, attrs...)
}
