package room

import (
	"math/rand"
	"strings"
)

// Room code alphabet. Excludes visually ambiguous characters: I, O, 0, 1.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 6
)

// GenerateCode returns a random room code. Uniqueness against live rooms is
// the caller's responsibility.
func GenerateCode() string {
	var sb strings.Builder
	sb.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		sb.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return sb.String()
}

// NormalizeCode uppercases and trims a client-supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidCode reports whether a normalized code has the right length and
// alphabet.
func IsValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
