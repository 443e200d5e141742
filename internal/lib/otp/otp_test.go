package otp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := Generate()
		require.NoError(t, err)
		require.Len(t, code, 6)

		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9')
		}
	}
}

func TestVerify(t *testing.T) {
	now := time.Now()
	code := "123456"
	future := now.Add(10 * time.Minute)
	past := now.Add(-time.Minute)

	t.Run("ok", func(t *testing.T) {
		assert.NoError(t, Verify(&code, &future, "123456", now))
	})

	t.Run("not generated", func(t *testing.T) {
		assert.ErrorIs(t, Verify(nil, nil, "123456", now), ErrNotGenerated)
		assert.ErrorIs(t, Verify(&code, nil, "123456", now), ErrNotGenerated)
		assert.ErrorIs(t, Verify(nil, &future, "123456", now), ErrNotGenerated)
	})

	t.Run("expired at ttl plus one minute", func(t *testing.T) {
		issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		expiry := issued.Add(10 * time.Minute)

		assert.ErrorIs(t, Verify(&code, &expiry, "123456", issued.Add(11*time.Minute)), ErrExpired)
	})

	t.Run("mismatch", func(t *testing.T) {
		assert.ErrorIs(t, Verify(&code, &future, "654321", now), ErrMismatch)
	})

	t.Run("no normalization", func(t *testing.T) {
		assert.ErrorIs(t, Verify(&code, &future, " 123456", now), ErrMismatch)
	})

	t.Run("expired beats mismatch", func(t *testing.T) {
		assert.ErrorIs(t, Verify(&code, &past, "654321", now), ErrExpired)
	})
}
