package gateways

import (
	"regexp"
	"strings"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

const CountryCode = "254"

var msisdnPattern = regexp.MustCompile(`^254\d{9}$`)

// NormalizePhone rewrites a payer handle to the international form Daraja expects:
// "+254712345678", "0712345678" and "712345678" all become "254712345678".
func NormalizePhone(phone string) string {
	p := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
	p = strings.TrimPrefix(p, "+")
	if strings.HasPrefix(p, "0") {
		p = CountryCode + p[1:]
	}
	if !strings.HasPrefix(p, CountryCode) {
		p = CountryCode + p
	}
	return p
}

func ValidatePhone(phone string) (string, error) {
	p := NormalizePhone(phone)
	if !msisdnPattern.MatchString(p) {
		return "", types.NewValidationError("phone", "must be a valid Safaricom number, e.g. 0712345678")
	}
	return p, nil
}
