package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentPayload struct {
	Method string `validate:"payment_method"`
}

type phonePayload struct {
	Phone string `validate:"phone"`
}

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	require.NoError(t, Register(v))
	return v
}

func TestPaymentMethod(t *testing.T) {
	v := newValidator(t)

	for _, method := range []string{"cash", "card", "wallet", "CASH", " card "} {
		assert.NoError(t, v.Struct(paymentPayload{Method: method}), method)
	}
	for _, method := range []string{"", "crypto", "check"} {
		assert.Error(t, v.Struct(paymentPayload{Method: method}), method)
	}
}

func TestPhone(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.Struct(phonePayload{Phone: "+14155550123"}))
	assert.NoError(t, v.Struct(phonePayload{Phone: "99365123456"}))
	assert.Error(t, v.Struct(phonePayload{Phone: "not-a-phone"}))
	assert.Error(t, v.Struct(phonePayload{Phone: "0123"}))
}
