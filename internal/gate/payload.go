package gate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Submission is a contact attempt that passed structural validation.
type Submission struct {
	Name     string `json:"name" validate:"notblank"`
	Email    string `json:"email" validate:"notblank,contains=@"`
	Subject  string `json:"subject" validate:"notblank"`
	Message  string `json:"message" validate:"notblank"`
	Honeypot string `json:"honeypot"`
}

// ValidationError describes why a payload is not well-formed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + e.Reason
}

var payloadFields = []string{"name", "email", "subject", "message", "honeypot"}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	if err != nil {
		panic(fmt.Sprintf("gate: register notblank: %v", err))
	}
	return v
}

// ParsePayload turns untyped input into a Submission. It expects the
// shape produced by decoding a JSON object: a map with all five fields
// present as strings. A *ValidationError is returned for bad input; any
// other error is an internal fault.
func ParsePayload(payload any) (Submission, error) {
	obj, ok := payload.(map[string]any)
	if !ok || obj == nil {
		return Submission{}, &ValidationError{Reason: "payload must be an object"}
	}

	vals := make(map[string]string, len(payloadFields))
	for _, f := range payloadFields {
		raw, present := obj[f]
		if !present {
			return Submission{}, &ValidationError{Reason: fmt.Sprintf("missing field %q", f)}
		}
		s, isString := raw.(string)
		if !isString {
			return Submission{}, &ValidationError{Reason: fmt.Sprintf("field %q must be a string", f)}
		}
		vals[f] = s
	}

	sub := Submission{
		Name:     vals["name"],
		Email:    vals["email"],
		Subject:  vals["subject"],
		Message:  vals["message"],
		Honeypot: vals["honeypot"],
	}

	if err := validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Submission{}, &ValidationError{Reason: describe(verrs[0])}
		}
		return Submission{}, fmt.Errorf("validate submission: %w", err)
	}
	return sub, nil
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "notblank":
		return fmt.Sprintf("field %q must not be empty", field)
	case "contains":
		return fmt.Sprintf("field %q must contain %q", field, fe.Param())
	default:
		return fmt.Sprintf("field %q failed %s", field, fe.Tag())
	}
}
