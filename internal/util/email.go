package util

import (
	"net/mail"
	"strings"
)

// NormalizeEmail validates user input and returns the bare lowercased
// address. Returns ("", false) when the input is not a usable address.
func NormalizeEmail(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", false
	}

	return strings.ToLower(addr.Address), true
}
