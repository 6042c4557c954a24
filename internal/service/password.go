package service

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	minPasswordLength = 8
	// bcrypt ignores (and x/crypto rejects) input past 72 bytes.
	maxPasswordBytes = 72
)

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "passw0rd": {},
	"12345678": {}, "123456789": {}, "1234567890": {}, "87654321": {},
	"qwerty123": {}, "qwertyuiop": {}, "iloveyou": {}, "sunshine": {},
	"princess": {}, "football": {}, "baseball": {}, "welcome1": {},
	"letmein1": {}, "trustno1": {}, "superman": {}, "starwars": {},
	"whatever": {}, "dragon123": {}, "monkey123": {}, "abc12345": {},
	"11111111": {}, "00000000": {}, "admin123": {}, "changeme": {},
}

// ValidatePassword runs the password policy and returns every violation.
// username and email are the other values the user typed.
func ValidatePassword(password, username, email string) []string {
	var problems []string

	if l := len([]rune(password)); l < minPasswordLength {
		problems = append(problems, fmt.Sprintf("This password is too short. It must contain at least %d characters.", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		problems = append(problems, fmt.Sprintf("This password is too long. It must contain at most %d bytes.", maxPasswordBytes))
	}
	if _, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; ok {
		problems = append(problems, "This password is too common.")
	}
	if password != "" && isAllDigits(password) {
		problems = append(problems, "This password is entirely numeric.")
	}
	if attr := similarAttribute(password, username, email); attr != "" {
		problems = append(problems, fmt.Sprintf("The password is too similar to the %s.", attr))
	}

	return problems
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// similarAttribute returns the name of the attribute the password overlaps with.
func similarAttribute(password, username, email string) string {
	pw := strings.ToLower(password)
	if pw == "" {
		return ""
	}
	candidates := []struct {
		name  string
		value string
	}{
		{"username", username},
		{"email address", email},
	}
	if at := strings.Index(email, "@"); at > 0 {
		candidates = append(candidates, struct {
			name  string
			value string
		}{"email address", email[:at]})
	}
	for _, c := range candidates {
		v := strings.ToLower(strings.TrimSpace(c.value))
		if len(v) < 3 {
			continue
		}
		if strings.Contains(pw, v) || strings.Contains(v, pw) {
			return c.name
		}
	}
	return ""
}
