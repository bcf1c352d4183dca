// Package util provides utility functions for the ClientFlow automation engine.
package util

import (
	cryptorand "crypto/rand"
	"math/rand/v2"
	"strings"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
// Uses math/rand/v2; these IDs are identifiers, not secrets.
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateReferralCode generates a cryptographically random uppercase
// alphanumeric code of the specified length. Referral codes are guessable
// entry points into the reward funnel, so crypto/rand is required here.
func GenerateReferralCode(length int) string {
	if length <= 0 {
		return ""
	}

	const chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// Largest multiple of len(chars) that fits in a byte. Bytes at or above
	// it are rejected so every character stays equally likely.
	const limit = 256 - 256%len(chars)

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := cryptorand.Read(buf); err != nil {
			// crypto/rand never fails on supported platforms; fall back anyway.
			for len(out) < length {
				out = append(out, chars[rand.IntN(len(chars))])
			}
			break
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, chars[int(b)%len(chars)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out)
}
