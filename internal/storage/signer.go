package storage

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidMediaToken = errors.New("invalid media token")
	ErrExpiredMediaToken = errors.New("media token expired")
)

// Signer issues and verifies short-lived tokens for artifact playback URLs.
// The capture UI gets a signed URL back from generation and can hand it to a
// <video> tag without any session plumbing.
type Signer struct {
	key []byte
	ttl time.Duration
}

func NewSigner(key string, ttl time.Duration) *Signer {
	return &Signer{key: []byte(key), ttl: ttl}
}

type mediaClaims struct {
	Path string `json:"path"`
	jwt.RegisteredClaims
}

// Sign returns a token bound to one media path.
func (s *Signer) Sign(path string) (string, error) {
	claims := mediaClaims{
		Path: path,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify checks the token and that it was issued for the requested path.
func (s *Signer) Verify(token, path string) error {
	var claims mediaClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidMediaToken
		}
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredMediaToken
		}
		return ErrInvalidMediaToken
	}
	if !parsed.Valid || claims.Path != path {
		return ErrInvalidMediaToken
	}
	return nil
}
