// Package token inspects bearer tokens on the client side.
//
// Nothing here verifies signatures: the client never holds the signing key.
// The package only answers two questions the session layer needs before it
// trusts a cached token: is it shaped like a JWT, and is it close enough to
// its expiry that it should be treated as already expired. Both answers fail
// closed: anything that can't be decoded counts as expired.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// MinLength is the shortest string accepted as a token.
	MinLength = 10

	// ExpiryBuffer is subtracted from exp, so a token is considered expired
	// this long before the backend would reject it.
	ExpiryBuffer = 5 * time.Minute
)

var (
	ErrMalformed = errors.New("malformed token")
	ErrNoExpiry  = errors.New("token has no exp claim")
)

// now is a test seam.
var now = time.Now

var parser = jwt.NewParser()

// IsValidFormat reports whether tok has the three non-empty dot separated
// segments of a JWT and is at least MinLength long.
func IsValidFormat(tok string) bool {
	if len(tok) < MinLength {
		return false
	}
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// IsExpired reports whether tok should no longer be used.
func IsExpired(tok string) bool {
	return IsExpiredAt(tok, now())
}

// IsExpiredAt is IsExpired evaluated at t: expired iff t >= exp - ExpiryBuffer,
// or when the payload or its exp claim can't be read.
func IsExpiredAt(tok string, t time.Time) bool {
	exp, err := ExpiresAt(tok)
	if err != nil {
		return true
	}
	return !t.Before(exp.Add(-ExpiryBuffer))
}

// ExpiresAt returns the exp claim of tok.
func ExpiresAt(tok string) (time.Time, error) {
	claims, err := DecodePayload(tok)
	if err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// DecodePayload returns the unverified claims of tok. The regular JWT parser
// is tried first; if the header or encoding trips it up, the payload segment
// is decoded on its own with a more forgiving base64 reading.
func DecodePayload(tok string) (jwt.MapClaims, error) {
	if !IsValidFormat(tok) {
		return nil, ErrMalformed
	}

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tok, claims); err == nil {
		return claims, nil
	}

	payload := strings.Split(tok, ".")[1]
	raw, err := looseDecode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	claims = jwt.MapClaims{}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return claims, nil
}

// looseDecode accepts either base64 alphabet, with or without padding, and
// ignores embedded whitespace.
func looseDecode(seg string) ([]byte, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		case '-':
			return '+'
		case '_':
			return '/'
		}
		return r
	}, seg)

	s = strings.TrimRight(s, "=")
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return base64.StdEncoding.DecodeString(s)
}
