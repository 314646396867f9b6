package utils

import (
	"regexp"
	"strings"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	// Pakistani mobile numbers: 03XXXXXXXXX or +923XXXXXXXXX
	phoneRegex = regexp.MustCompile(`^(\+92|0)3[0-9]{9}$`)
)

// ValidateUsername checks username format
func ValidateUsername(username string) (bool, string) {
	if !usernameRegex.MatchString(username) {
		return false, "Username must be 3-30 characters and contain only letters, numbers and underscores"
	}
	return true, ""
}

// ValidateEmail checks email format
func ValidateEmail(email string) (bool, string) {
	if !emailRegex.MatchString(email) {
		return false, "Please provide a valid email address"
	}
	return true, ""
}

// ValidatePassword enforces the password policy
func ValidatePassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters long"
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return false, "Password must contain uppercase, lowercase and a digit"
	}
	return true, ""
}

// ValidatePhone checks and normalizes a Pakistani mobile number. Returns the
// normalized local form (03XXXXXXXXX) as the second value on success, or an
// error message on failure.
func ValidatePhone(phone string) (bool, string) {
	p := strings.ReplaceAll(phone, " ", "")
	p = strings.ReplaceAll(p, "-", "")
	if !phoneRegex.MatchString(p) {
		return false, "Please provide a valid Pakistani mobile number (03XXXXXXXXX)"
	}
	if strings.HasPrefix(p, "+92") {
		p = "0" + p[3:]
	}
	return true, p
}

// ValidateName checks a display name
func ValidateName(name string) (bool, string) {
	if len(name) < 1 || len(name) > 50 {
		return false, "Name must be between 1 and 50 characters"
	}
	for _, r := range name {
		if !(r == ' ' || r == '-' || r == '\'' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false, "Name may contain only letters, spaces, hyphens and apostrophes"
		}
	}
	return true, ""
}
