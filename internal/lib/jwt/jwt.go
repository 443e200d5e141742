package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	PurposeVerification = "email_verification"
	PurposeAccess       = "access"
	PurposeRefresh      = "refresh"
)

var (
	ErrNoSecret     = errors.New("token secret is not configured")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// NewToken signs an HS256 token carrying the subject user id, a purpose tag
// and an absolute expiry.
func NewToken(userID, purpose string, ttl time.Duration, secret string) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}

	claims := jwt.MapClaims{
		"sub":     userID,
		"purpose": purpose,
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(secret))
}

// Parse validates the signature and expiry and returns the subject user id
// and the purpose the token was issued for.
func Parse(tokenStr, secret string) (string, string, error) {
	const op = "lib.jwt.Parse"

	if secret == "" {
		return "", "", ErrNoSecret
	}

	claims := jwt.MapClaims{}

	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%s: unexpected signing method", op)
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", ErrTokenExpired
		}
		return "", "", ErrInvalidToken
	}

	if !parsed.Valid {
		return "", "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", "", ErrInvalidToken
	}

	purpose, ok := claims["purpose"].(string)
	if !ok {
		return "", "", ErrInvalidToken
	}

	return sub, purpose, nil
}
