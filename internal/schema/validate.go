package schema

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Struct runs validator tags on a decoded value and reports failures as a ValidationError.
func Struct(name string, v any) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})

	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%s: %w", name, err)
	}
	ve := &ValidationError{Schema: name}
	for _, fe := range verrs {
		ve.Errors = append(ve.Errors, FieldError{Field: fe.Namespace(), Message: "failed " + fe.Tag()})
	}
	return ve
}
