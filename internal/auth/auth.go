// Package auth guards the probe admin surface with shared tokens.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

type Validator interface {
	Validate(token string) error
}

// Tokens accepts any of a fixed set of shared tokens. An empty set denies
// everything.
type Tokens []string

func (ts Tokens) Validate(token string) error {
	if token == "" {
		return ErrUnauthorized
	}
	ok := 0
	for _, t := range ts {
		if t == "" {
			continue
		}
		ok |= subtle.ConstantTimeCompare([]byte(t), []byte(token))
	}
	if ok != 1 {
		return ErrUnauthorized
	}
	return nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
