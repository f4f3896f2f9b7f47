package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func parseExpiresAt(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return parseExpiresAtString(t)
	case []byte:
		return parseExpiresAtString(string(t))
	default:
		return time.Time{}, false
	}
}

func parseExpiresAtString(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	layouts := []string{
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05Z07:00",
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseRevoked(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case int64:
		return t != 0, true
	case string:
		s := strings.TrimSpace(strings.ToLower(t))
		switch s {
		case "":
			return false, false
		case "true":
			return true, true
		case "false":
			return false, true
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n != 0, true
		}
		return false, false
	case []byte:
		return parseRevoked(string(t))
	default:
		return false, false
	}
}

// SaveRefreshToken stores the hash of a refresh token. Saving the same token
// twice refreshes its expiry and clears the revoked flag.
func (s *Store) SaveRefreshToken(ctx context.Context, userID int, token string, expiresAt time.Time, ttlDays int) error {
	th := hashToken(token)
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at, ttl_days) VALUES (?, ?, ?, ?)
		ON CONFLICT(token_hash) DO UPDATE SET expires_at = excluded.expires_at, ttl_days = excluded.ttl_days, revoked = 0`,
		userID, th, expiresAt.UTC(), ttlDays,
	)
	return err
}

// ValidateRefreshToken returns the owner and lifetime of a stored token that
// is neither revoked nor expired.
func (s *Store) ValidateRefreshToken(ctx context.Context, token string) (userID, ttlDays int, err error) {
	var expiresAt, revoked any
	err = s.q.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked, ttl_days FROM refresh_tokens WHERE token_hash = ?", hashToken(token),
	).Scan(&userID, &expiresAt, &revoked, &ttlDays)
	if err != nil {
		return 0, 0, notFound(err, "refresh token")
	}
	r, ok := parseRevoked(revoked)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected revoked type: %T", revoked)
	}
	if r {
		return 0, 0, ErrRefreshTokenRevoked
	}
	if t, ok := parseExpiresAt(expiresAt); ok && time.Now().After(t) {
		return 0, 0, ErrRefreshTokenExpired
	}
	return userID, ttlDays, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := s.q.ExecContext(ctx, "UPDATE refresh_tokens SET revoked = 1 WHERE token_hash = ?", hashToken(token))
	return err
}

// RevokeUserRefreshTokens revokes every token of a user.
func (s *Store) RevokeUserRefreshTokens(ctx context.Context, userID int) error {
	_, err := s.q.ExecContext(ctx, "UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?", userID)
	return err
}

// PruneRefreshTokens deletes expired or revoked tokens.
func (s *Store) PruneRefreshTokens(ctx context.Context) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE revoked = 1 OR expires_at < ?", now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
