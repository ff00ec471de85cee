package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	letterBytes = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	NumberBytes = "0123456789"
	UpperBytes  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

func RandomString(size int, charSetOptions ...string) (string, error) {
	charSet := letterBytes
	if len(charSetOptions) > 0 {
		charSet = ""
		for _, cs := range charSetOptions {
			charSet += cs
		}
	}

	b := make([]byte, size)
	for i := range b {
		randInt, err := rand.Int(rand.Reader, big.NewInt(int64(len(charSet))))
		if err != nil {
			return "", fmt.Errorf("error generating random number in RandomString: %w", err)
		}

		b[i] = charSet[randInt.Int64()]
	}
	return string(b), nil
}

func TruncateString(str string, borderSizeToKeep int) string {
	if len(str) <= 2*borderSizeToKeep {
		return str
	}
	return str[:borderSizeToKeep] + "..." + str[len(str)-borderSizeToKeep:]
}

// ClampString cuts str down to maxLen bytes. Wire formats with hard field
// limits (SWIFT, ISO 20022) use this instead of TruncateString, which keeps
// both ends.
func ClampString(str string, maxLen int) string {
	if len(str) <= maxLen {
		return str
	}
	return str[:maxLen]
}

// FoldASCII uppercases str and replaces every byte outside the SWIFT X
// character set with a space.
func FoldASCII(str string) string {
	var b strings.Builder
	b.Grow(len(str))
	for _, r := range strings.ToUpper(str) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune(" /-?:().,'+", r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}
