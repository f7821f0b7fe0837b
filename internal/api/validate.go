package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwulff/gridboard/internal/domain"
	"github.com/jwulff/gridboard/internal/storage"
)

// A single validator instance is used, because it caches struct parsing.
var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// validateStruct runs the struct's validate tags and reports violations as
// one ErrInvalid naming each field by its JSON name.
func validateStruct(v any) error {
	err := validate.Struct(v)
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	details := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		details = append(details, describe(fe))
	}
	return storage.Invalidf("invalid layout: %s", strings.Join(details, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
	}
}

func checkRect(r domain.Rect) error {
	return validateStruct(r)
}

func checkRects(rects []domain.WidgetRect) error {
	for _, wr := range rects {
		if err := validateStruct(wr); err != nil {
			return err
		}
	}
	return nil
}

// checkDocument validates every rectangle an import document carries. The
// message names the offending position in the document.
func checkDocument(doc *domain.Document) error {
	if doc == nil {
		return nil
	}
	for i, w := range doc.Widgets {
		if w.Layout == nil {
			continue
		}
		if err := checkRect(*w.Layout); err != nil {
			return at(err, "widgets[%d]", i)
		}
	}
	for i, g := range doc.Groups {
		if g.Layout != nil {
			if err := checkRect(*g.Layout); err != nil {
				return at(err, "groups[%d]", i)
			}
		}
		for j, m := range g.Members {
			if err := checkRect(m.Rect()); err != nil {
				return at(err, "groups[%d].members[%d]", i, j)
			}
		}
	}
	return nil
}

func at(err error, format string, args ...any) error {
	var invalid storage.ErrInvalid
	if !errors.As(err, &invalid) {
		return err
	}
	return storage.Invalidf("%s: %s", fmt.Sprintf(format, args...), invalid.Message)
}
