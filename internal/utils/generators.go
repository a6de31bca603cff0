package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	AccessCodeLength   = 6
	accessCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateAccessCode draws a human-enterable code uniformly from A-Z0-9.
func GenerateAccessCode() (string, error) {
	max := big.NewInt(int64(len(accessCodeAlphabet)))
	code := make([]byte, AccessCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = accessCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// IsAccessCode reports whether s has the shape of a generated code.
func IsAccessCode(s string) bool {
	if len(s) != AccessCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
