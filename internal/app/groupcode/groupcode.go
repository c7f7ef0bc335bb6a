// Package groupcode produces the short join codes users type to find a
// group. Codes are 6 characters drawn uniformly from [A-Z0-9], a space of
// 36^6 (about 2.1 billion), so random collisions are rare but possible;
// EnsureUnique layers an existence check with bounded retries on top.
package groupcode

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const (
	charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// Length of a generated code.
	Length = 6

	// maxAttempts bounds how many fresh codes EnsureUnique will try
	// before falling back to the timestamp-suffix scheme.
	maxAttempts = 10
)

// Generate returns a random Length-character code over [A-Z0-9].
func Generate() string {
	b := make([]byte, Length)
	for i := range b {
		b[i] = charset[rand.IntN(len(charset))]
	}
	return string(b)
}

// ExistsFunc reports whether a code is already taken. An error from the
// check is treated conservatively as "taken".
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// EnsureUnique generates codes until exists rejects one, up to maxAttempts.
// On exhaustion it falls back to a degraded scheme: a short random prefix
// plus a base-36 timestamp suffix, which reduces but does not eliminate
// collision probability. EnsureUnique never fails; callers that need a hard
// uniqueness guarantee must also hold a unique constraint at the store
// level and handle the duplicate write there.
func EnsureUnique(ctx context.Context, exists ExistsFunc) string {
	for i := 0; i < maxAttempts; i++ {
		code := Generate()
		taken, err := exists(ctx, code)
		if err != nil {
			// Assume taken; the next attempt may hit a healthy path.
			continue
		}
		if !taken {
			return code
		}
	}

	// Degraded path: timestamp-derived suffix. Weak uniqueness only.
	suffix := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	if len(suffix) > Length-2 {
		suffix = suffix[len(suffix)-(Length-2):]
	}
	prefix := Generate()[:Length-len(suffix)]
	return prefix + suffix
}

// Normalize upper-cases and trims a user-supplied code so lookups are
// case-insensitive.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsWellFormed reports whether code has the canonical shape after
// normalization. The degraded fallback codes also satisfy this.
func IsWellFormed(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(charset, rune(code[i])) {
			return false
		}
	}
	return true
}
