package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes caps request bodies read by the decode helpers.
const MaxBodyBytes = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks s against its `validate` struct tags. Field failures come
// back as *ValidationError.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return &ValidationError{Errors: fieldErrs}
	}
	return err
}

// ValidationError carries the per-field failures of a Validate call.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", fe.Field(), describe(fe)))
	}
	return strings.Join(msgs, "; ")
}

// Fields maps each failing field to a readable message.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		fields[fe.Field()] = describe(fe)
	}
	return fields
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "uuid":
		return "must be a valid UUID"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}

// DecodeAndValidate decodes a required JSON body into dst and validates it.
func DecodeAndValidate(r *http.Request, dst any) error {
	return decode(r, dst, false)
}

// DecodeOptional is DecodeAndValidate for endpoints whose body may be empty.
// An empty body leaves dst at its zero value, which is still validated.
func DecodeOptional(r *http.Request, dst any) error {
	return decode(r, dst, true)
}

func decode(r *http.Request, dst any, optional bool) error {
	if r.Body != nil && r.Body != http.NoBody {
		body := io.LimitReader(r.Body, MaxBodyBytes+1)
		data, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("invalid request body: %w", err)
		}
		if len(data) > MaxBodyBytes {
			return fmt.Errorf("invalid request body: exceeds %d bytes", MaxBodyBytes)
		}
		if len(strings.TrimSpace(string(data))) > 0 {
			if err := json.Unmarshal(data, dst); err != nil {
				return fmt.Errorf("invalid request body: %w", err)
			}
		} else if !optional {
			return errors.New("invalid request body: empty")
		}
	} else if !optional {
		return errors.New("invalid request body: empty")
	}
	return Validate(dst)
}
