// Package utils holds small helpers shared across the service.
package utils

import "crypto/rand"

// codeAlphabet avoids characters that read ambiguously off a phone screen
// (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewPickupCode generates a short human-readable code a consumer presents
// at pickup.  Codes are compared case-insensitively and are not a security
// boundary, merely a lookup key, so six characters of an unambiguous
// alphabet are plenty.  The underlying call to crypto/rand ensures the
// codes are unpredictable enough to not collide in practice.
func NewPickupCode() (string, error) {
	const length = 6
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, v := range b {
		out[i] = codeAlphabet[int(v)%len(codeAlphabet)]
	}
	return string(out), nil
}
