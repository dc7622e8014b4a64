package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerSignAndVerify(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("req-1", "req-1/statistics-report-tickets.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	claims, err := signer.Verify(token, false)
	require.NoError(t, err)
	require.Equal(t, "req-1", claims.RequestID)
	require.Equal(t, "req-1/statistics-report-tickets.pdf", claims.Path)
	require.WithinDuration(t, expiresAt, claims.ExpiresAt, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	issued := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issued }
	token, _, err := signer.Sign("req-1", "req-1/chart.png")
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = signer.Verify(token, false)
	require.ErrorIs(t, err, ErrTokenExpired)

	claims, err := signer.Verify(token, true)
	require.NoError(t, err)
	require.Equal(t, "req-1/chart.png", claims.Path)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Sign("req-1", "req-1/chart.png")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "req-2"
	_, err = signer.Verify(strings.Join(parts, "."), false)
	require.ErrorIs(t, err, ErrTokenSignature)

	other := NewSignedURLSigner("other", time.Hour)
	_, err = other.Verify(token, false)
	require.ErrorIs(t, err, ErrTokenSignature)

	_, err = signer.Verify("not-a-token", false)
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestSignedURLSignerRequiresSecret(t *testing.T) {
	signer := NewSignedURLSigner("", time.Hour)
	_, _, err := signer.Sign("req-1", "req-1/chart.png")
	require.Error(t, err)
}
