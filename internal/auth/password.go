package auth

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinProviderPasswordLength is the floor the identity provider itself enforces.
// Registration applies the stricter StrongPassword policy on top.
const MinProviderPasswordLength = 6

// HashPassword returns a bcrypt hash of pwd.
func HashPassword(pwd string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
}

// CheckPassword compares pwd against hash.
func CheckPassword(hash []byte, pwd string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(pwd))
}

// StrongPassword requires at least 8 characters with an upper-case letter,
// a lower-case letter and a digit.
func StrongPassword(pwd string) bool {
	if len([]rune(pwd)) < 8 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range pwd {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}
