package httpapi

import (
	"net/mail"
	"strings"
)

func normalizeEmail(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 254 {
		return false
	}
	_, err := mail.ParseAddress(s)
	return err == nil
}

func validName(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) >= 1 && len(s) <= 100
}

func validPassword(s string) bool {
	return len(s) >= 8 && len(s) <= 256
}
