// internal/phone/phone.go
package phone

import (
	"fmt"
	"strings"

	"donation-service/internal/domain"
)

// Format selects the output representation of a normalized number.
type Format string

const (
	// FormatMpesa is the representation the Daraja API expects: 2547XXXXXXXX.
	FormatMpesa         Format = "mpesa"
	FormatInternational Format = "international" // +2547XXXXXXXX
	FormatLocal         Format = "local"         // 07XXXXXXXX
)

const (
	countryCode      = "254"
	trunkPrefix      = "0"
	subscriberDigits = 9
)

// ErrInvalidPhone is the domain sentinel, so callers can match either name.
var ErrInvalidPhone = domain.ErrInvalidPhone

// Normalize maps the accepted Kenyan number spellings onto the requested format.
// Accepted inputs: 07XXXXXXXX, 01XXXXXXXX, 2547XXXXXXXX, +2547XXXXXXXX and the bare
// nine digit subscriber number. Spaces, dashes, dots and parentheses are ignored.
// Anything else is rejected with ErrInvalidPhone rather than guessed at.
func Normalize(raw string, format Format) (string, error) {
	subscriber, err := subscriberNumber(raw)
	if err != nil {
		return "", err
	}

	switch format {
	case "", FormatMpesa:
		return countryCode + subscriber, nil
	case FormatInternational:
		return "+" + countryCode + subscriber, nil
	case FormatLocal:
		return trunkPrefix + subscriber, nil
	default:
		return "", fmt.Errorf("unsupported phone format %q", format)
	}
}

// Mpesa is shorthand for Normalize(raw, FormatMpesa).
func Mpesa(raw string) (string, error) {
	return Normalize(raw, FormatMpesa)
}

func subscriberNumber(raw string) (string, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPhone)
	}

	plus := strings.HasPrefix(s, "+")
	s = strings.TrimPrefix(s, "+")
	if !isDigits(s) {
		return "", fmt.Errorf("%w: %q contains non-digit characters", ErrInvalidPhone, raw)
	}

	var sub string
	switch {
	case strings.HasPrefix(s, countryCode) && len(s) == len(countryCode)+subscriberDigits:
		sub = s[len(countryCode):]
	case plus:
		// a leading + is only meaningful with the Kenyan country code
		return "", fmt.Errorf("%w: %q is not a Kenyan number", ErrInvalidPhone, raw)
	case strings.HasPrefix(s, trunkPrefix) && len(s) == len(trunkPrefix)+subscriberDigits:
		sub = s[len(trunkPrefix):]
	case len(s) == subscriberDigits:
		sub = s
	default:
		return "", fmt.Errorf("%w: %q has an unrecognized length or prefix", ErrInvalidPhone, raw)
	}

	if sub[0] != '7' && sub[0] != '1' {
		return "", fmt.Errorf("%w: %q is not a mobile number", ErrInvalidPhone, raw)
	}
	return sub, nil
}

// Mask hides the middle of a number for logging: 254712345678 -> 2547*****678.
func Mask(p string) string {
	if len(p) < 8 {
		return "***"
	}
	return p[:4] + strings.Repeat("*", len(p)-7) + p[len(p)-3:]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
