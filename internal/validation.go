package internal

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one field of a request that failed validation
type FieldError struct {
	// Path of the field using the JSON names, e.g. "time.end" or "links[0].url"
	Field string `json:"field"`
	// The validation rule that failed
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		if err := validate.RegisterValidation("notblank", validators.NotBlank); err != nil {
			panic(err)
		}
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateRequest validates the given request struct. The returned error is an *HTTPError listing the offending
// fields
func validateRequest(req interface{}) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return MakeError(http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
	}
	fields := make([]FieldError, len(verrs))
	messages := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{
			Field:   fieldPath(fe),
			Rule:    fe.Tag(),
			Message: fieldMessage(fe),
		}
		messages[i] = fields[i].Message
	}
	return MakeErrorWithData(http.StatusBadRequest, ErrCodeValidationFailed, strings.Join(messages, "; "), fields)
}

// fieldPath strips the name of the validated struct type from the field's namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", field, strings.ToLower(fe.Param()))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
}
