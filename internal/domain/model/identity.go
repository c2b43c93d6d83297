package model

import "strings"

// NormalizeDigits strips everything but ASCII digits.
func NormalizeDigits(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhoneBR returns DDD + number: a leading 55 country code is removed
// and anything still longer than 11 digits keeps its last 11.
func NormalizePhoneBR(v string) string {
	digits := NormalizeDigits(v)
	if len(digits) > 11 && strings.HasPrefix(digits, "55") {
		digits = digits[2:]
	}
	if len(digits) > 11 {
		digits = digits[len(digits)-11:]
	}
	return digits
}
