package validation

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// E.164 format
var phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// Register adds the domain validators to a validator instance. Gin's binding
// engine is the usual target so request structs can use the tags directly.
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("phone", validatePhone); err != nil {
		return err
	}
	return v.RegisterValidation("payment_method", validatePaymentMethod)
}

func validatePhone(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

func validatePaymentMethod(fl validator.FieldLevel) bool {
	switch strings.ToLower(strings.TrimSpace(fl.Field().String())) {
	case "cash", "card", "wallet":
		return true
	}
	return false
}
