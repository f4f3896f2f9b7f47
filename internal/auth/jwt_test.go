package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{Secret: strings.Repeat("k", 32)})
	require.NoError(t, err)
	return m
}

func TestNewManagerRejectsShortSecret(t *testing.T) {
	_, err := NewManager(Config{Secret: "short"})
	require.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestManager(t)

	token, err := m.GenerateToken(42, "alice")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, 42, claims.UserID)
	require.Equal(t, "alice", claims.Username)

	_, err = m.ValidateRefreshToken(token)
	require.Error(t, err, "access token must not validate as refresh token")
}

func TestRefreshTokensAreUnique(t *testing.T) {
	m := newTestManager(t)

	a, err := m.GenerateRefreshToken(1, "alice", 0)
	require.NoError(t, err)
	b, err := m.GenerateRefreshToken(1, "alice", 0)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	claims, err := m.ValidateRefreshToken(a)
	require.NoError(t, err)
	require.Equal(t, 1, claims.UserID)

	_, err = m.ValidateToken(a)
	require.Error(t, err)
}

func TestRefreshDays(t *testing.T) {
	m := newTestManager(t)
	require.Equal(t, 7, m.RefreshDays(false))
	require.Equal(t, 30, m.RefreshDays(true))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("password123")
	require.NoError(t, err)
	require.NoError(t, CheckPassword(hash, "password123"))
	require.Error(t, CheckPassword(hash, "wrong"))
}

func TestGenerateVerificationCode(t *testing.T) {
	code, err := GenerateVerificationCode()
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, r := range code {
		require.True(t, r >= '0' && r <= '9')
	}
}
