package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	// MinPasswordLength is the shortest password accepted at sign up
	MinPasswordLength = 8

	// MaxSlotsPerEvent bounds the slots generated for a single event
	MaxSlotsPerEvent = 1000
)

// phoneRegex matches an international number after sanitizing: optional +, 7 to 15 digits
var phoneRegex = regexp.MustCompile(`^\+?\d{7,15}$`)

// SanitizePhone removes common separators from a phone number
func SanitizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(strings.TrimSpace(phone))
}

// IsValidPhone reports whether phone is a plausible international number
func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(SanitizePhone(phone))
}

// IsValidPassword reports whether a password meets the length policy
func IsValidPassword(password string) bool {
	return len([]rune(password)) >= MinPasswordLength
}

// IsValidSlotCount reports whether n slots may be generated for one event
func IsValidSlotCount(n int64) bool {
	return n >= 1 && n <= MaxSlotsPerEvent
}

// Register adds the custom tags to v
func Register(v *validator.Validate) error {
	tags := map[string]validator.Func{
		"password": func(fl validator.FieldLevel) bool {
			return IsValidPassword(fl.Field().String())
		},
		"slotcount": func(fl validator.FieldLevel) bool {
			return IsValidSlotCount(fl.Field().Int())
		},
		"phone": func(fl validator.FieldLevel) bool {
			return IsValidPhone(fl.Field().String())
		},
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %q validation: %w", tag, err)
		}
	}
	return nil
}

// RegisterBindings installs the custom tags on gin's default binding validator
func RegisterBindings() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
	}
	return Register(v)
}

// Describe turns a validation error into a short client-facing message
func Describe(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return err.Error()
	}
	fe := errs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "password":
		return fmt.Sprintf("%s must be at least %d characters", field, MinPasswordLength)
	case "slotcount":
		return fmt.Sprintf("%s must be between 1 and %d", field, MaxSlotsPerEvent)
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed the %q check", field, fe.Tag())
	}
}
