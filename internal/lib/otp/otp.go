package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	ErrNotGenerated = errors.New("otp not generated")
	ErrExpired      = errors.New("otp expired")
	ErrMismatch     = errors.New("otp mismatch")
)

// Generate returns a uniformly random 6-digit code.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("lib.otp.Generate: %w", err)
	}

	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Verify checks a submitted code against the stored one. The comparison is
// byte-for-byte, no trimming or normalization. Clearing the stored pair after
// a successful check is the caller's job.
func Verify(code *string, expiresAt *time.Time, submitted string, now time.Time) error {
	if code == nil || expiresAt == nil {
		return ErrNotGenerated
	}

	if now.After(*expiresAt) {
		return ErrExpired
	}

	if submitted != *code {
		return ErrMismatch
	}

	return nil
}
