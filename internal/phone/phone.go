// Package phone canonicalizes Israeli phone numbers into the single
// identity key used for dedup, ban checks and cancellation lookup.
package phone

import (
	"fmt"
	"regexp"
	"strings"

	"kartis/internal/apperrors"
)

var israeliFormat = regexp.MustCompile(`^0\d{9}$`)

// Normalize canonicalizes an Israeli phone number to the 0XXXXXXXXX form.
// Accepted inputs include 050-123-4567, (050) 123 4567 and +972501234567;
// anything that does not reduce to ten digits starting with 0 fails with a
// validation error.
func Normalize(raw string) (string, error) {
	normalized := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, raw)

	if strings.HasPrefix(normalized, "+972") {
		normalized = "0" + normalized[4:]
	}

	if !israeliFormat.MatchString(normalized) {
		return "", fmt.Errorf("%w: invalid Israeli phone number format", apperrors.ErrValidation)
	}

	return normalized, nil
}
