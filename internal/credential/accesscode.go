// Package credential issues the secret access codes students and staff present at login.
package credential

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet excludes glyphs that are easy to confuse on a printed card (I, L, O, 0, 1).
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	MinLength     = 6
	MaxLength     = 8
	DefaultLength = 8
)

// Issuer generates fixed-length access codes.
type Issuer struct {
	length int
}

// NewIssuer returns an issuer for codes of the given length. Lengths outside
// [MinLength, MaxLength] fall back to DefaultLength.
func NewIssuer(length int) *Issuer {
	if length < MinLength || length > MaxLength {
		length = DefaultLength
	}
	return &Issuer{length: length}
}

// Generate draws each character uniformly from Alphabet.
// Codes are not checked for uniqueness.
func (i *Issuer) Generate() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	var b strings.Builder
	b.Grow(i.length)
	for n := 0; n < i.length; n++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate access code: %w", err)
		}
		b.WriteByte(Alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// Normalize trims and upper-cases a code typed by a user.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code has an allowed length and only alphabet characters.
func Valid(code string) bool {
	if len(code) < MinLength || len(code) > MaxLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
