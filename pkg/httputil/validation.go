package httputil

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/i18n"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names so details match the request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate validates a struct and returns a localized validation error
func Validate(ctx context.Context, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.BadRequest(err.Error())
	}

	localizer := i18n.LocalizerFromContext(ctx)
	details := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		details[e.Field()] = formatValidationError(localizer, e)
	}

	return errors.Validation(details)
}

func formatValidationError(l *i18n.Localizer, e validator.FieldError) string {
	params := map[string]string{"field": e.Field(), "param": e.Param()}
	switch e.Tag() {
	case "required", "oneof", "min", "max", "numeric":
		return l.T("validation."+e.Tag(), params)
	default:
		return l.T("validation.default", params)
	}
}
