// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"time"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// MinSignupAge is the youngest age accepted at signup.
const MinSignupAge = 15

// ValidateUsername checks handle format: letters, digits and underscores,
// at least 3 characters.
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters long")
	}
	if len(username) > 30 {
		return fmt.Errorf("username must not exceed 30 characters")
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username may contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidateEmail checks that email parses as an address and is not
// unreasonably long.
func ValidateEmail(email string) error {
	if len(email) > 254 {
		return fmt.Errorf("email must not exceed 254 characters")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("email address is not valid")
	}
	return nil
}

// ValidatePassword checks password length bounds.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	if len(password) > 128 {
		return fmt.Errorf("password must not exceed 128 characters")
	}
	return nil
}

// ValidateBirthday enforces the minimum signup age.
func ValidateBirthday(birthday time.Time, now time.Time) error {
	if birthday.IsZero() {
		return fmt.Errorf("birthday is required")
	}
	if birthday.After(now) {
		return fmt.Errorf("birthday cannot be in the future")
	}
	age := now.Year() - birthday.Year()
	if now.Month() < birthday.Month() ||
		(now.Month() == birthday.Month() && now.Day() < birthday.Day()) {
		age--
	}
	if age < MinSignupAge {
		return fmt.Errorf("you must be at least %d years old to sign up", MinSignupAge)
	}
	return nil
}
