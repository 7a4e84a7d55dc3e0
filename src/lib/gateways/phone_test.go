package gateways

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0712345678":       "254712345678",
		"+254712345678":    "254712345678",
		"254712345678":     "254712345678",
		"712345678":        "254712345678",
		"0712 345 678":     "254712345678",
		" +254 712-345678": "254712345678",
		"0110123456":       "254110123456",
	}
	for input, expected := range cases {
		assert.Equal(t, expected, NormalizePhone(input), input)
	}
}

func TestNormalizePhoneIsIdempotent(t *testing.T) {
	for _, input := range []string{"0712345678", "+254712345678", "712345678"} {
		once := NormalizePhone(input)
		assert.Equal(t, once, NormalizePhone(once))
	}
}

func TestValidatePhone(t *testing.T) {
	p, err := ValidatePhone("0712345678")
	assert.NoError(t, err)
	assert.Equal(t, "254712345678", p)

	_, err = ValidatePhone("07123")
	assert.Error(t, err)
	_, err = ValidatePhone("07123456789a")
	assert.Error(t, err)
}
