package errcodes

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestNew_RendersTemplates(t *testing.T) {
	tests := []struct {
		name     string
		code     Code
		attrs    []any
		want     string
		textCode string
		category goerrors.Category
	}{
		{
			name:     "generic error ignores attributes",
			code:     GenericError,
			attrs:    []any{"ignored"},
			want:     "Something went wrong, please try again later.",
			textCode: "GENERIC_ERROR",
			category: goerrors.CategoryInternal,
		},
		{
			name:     "invalid instance with two attributes",
			code:     InvalidInstance,
			attrs:    []any{"Article", "Entity"},
			want:     "Article must be an instance of Entity!",
			textCode: "INVALID_INSTANCE",
			category: goerrors.CategoryInternal,
		},
		{
			name:     "missing attributes are padded",
			code:     InvalidInstance,
			attrs:    []any{"Article"},
			want:     "Article must be an instance of ?!",
			textCode: "INVALID_INSTANCE",
			category: goerrors.CategoryInternal,
		},
		{
			name:     "resource not found",
			code:     ResourceNotFound,
			attrs:    []any{"article 7"},
			want:     "article 7 not found!",
			textCode: "RESOURCE_NOT_FOUND",
			category: goerrors.CategoryNotFound,
		},
		{
			name:     "validation param passes message through",
			code:     ValidationParam,
			attrs:    []any{"title: too long", "extra"},
			want:     "title: too long",
			textCode: "VALIDATION_PARAM",
			category: goerrors.CategoryValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.attrs...)
			if err.Message != tt.want {
				t.Errorf("Message = %q, want %q", err.Message, tt.want)
			}
			if err.Code != int(tt.code) {
				t.Errorf("Code = %d, want %d", err.Code, tt.code)
			}
			if err.TextCode != tt.textCode {
				t.Errorf("TextCode = %q, want %q", err.TextCode, tt.textCode)
			}
			if err.Category != tt.category {
				t.Errorf("Category = %q, want %q", err.Category, tt.category)
			}
		})
	}
}

func TestNew_UnknownCodeFallsBack(t *testing.T) {
	err := New(Code(42))
	if err.Code != int(GenericError) {
		t.Errorf("expected fallback to %d, got %d", GenericError, err.Code)
	}
}

func TestWrap_OverridesInnerCode(t *testing.T) {
	inner := New(ResourceNotFound, "article 3")
	outer := Wrap(inner, GenericSQLError)

	code, ok := CodeOf(outer)
	if !ok || code != GenericSQLError {
		t.Fatalf("CodeOf = %v,%v want %v", code, ok, GenericSQLError)
	}
	if !errors.Is(outer, inner) {
		t.Error("expected inner error to stay in the chain")
	}
	want := "Something went wrong, while inserting data into the database: article 3 not found!"
	if outer.Message != want {
		t.Errorf("Message = %q, want %q", outer.Message, want)
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, GenericSQLError) != nil {
		t.Error("expected nil for nil source")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   Code
		wantOK bool
	}{
		{name: "nil", err: nil, wantOK: false},
		{name: "plain error", err: errors.New("boom"), wantOK: false},
		{name: "domain error", err: New(InvalidArgument, "id"), want: InvalidArgument, wantOK: true},
		{name: "fmt wrapped domain error", err: fmt.Errorf("ctx: %w", New(ValidationParam, "x")), want: ValidationParam, wantOK: true},
		{name: "uncoded go-errors error", err: goerrors.New("plain"), wantOK: false},
		{
			name:   "uncoded wrapping coded",
			err:    &goerrors.Error{Message: "outer", Source: New(ResourceNotFound, "x")},
			want:   ResourceNotFound,
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CodeOf(tt.err)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("CodeOf() = %v,%v want %v,%v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	if got := Format(New(ResourceNotFound, "user 9")); got != "[ERROR][1003] - user 9 not found!" {
		t.Errorf("Format() = %q", got)
	}
	if got := Format(errors.New("disk full")); got != "[ERROR][1000] - disk full" {
		t.Errorf("Format() = %q", got)
	}
	if Format(nil) != "" {
		t.Error("expected empty string for nil")
	}
}

func TestCode_String(t *testing.T) {
	if GenericSQLError.String() != "GENERIC_SQL_ERROR" {
		t.Errorf("unexpected name %q", GenericSQLError.String())
	}
	if Code(7).String() != "UNKNOWN_7" {
		t.Errorf("unexpected name %q", Code(7).String())
	}
}
