package tracker

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"booklist/internal/models"
)

// ValidationError lists the form fields that failed validation. Nothing is
// sent to the store when one is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, name := range fieldOrder {
		if msg, ok := e.Fields[name]; ok {
			msgs = append(msgs, msg)
		}
	}
	return strings.Join(msgs, "; ")
}

var fieldOrder = []string{"title", "author", "about", "like", "rating", "sortField", "sortDirection"}

// NewBook is the add-book form
type NewBook struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author" validate:"required"`
	About  string `json:"about"`
	Like   string `json:"like"`
}

type bookEdit struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author" validate:"required"`
	Rating int    `json:"rating" validate:"min=0,max=5"`
}

type viewParams struct {
	SortField     string `json:"sortField" validate:"omitempty,oneof=createdTime title author rating"`
	SortDirection string `json:"sortDirection" validate:"omitempty,oneof=asc desc"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// toValidationError converts validator output into a ValidationError
func toValidationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(ve))}
	for _, fe := range ve {
		out.Fields[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s must be between %d and %d", fe.Field(), models.MinRating, models.MaxRating)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
