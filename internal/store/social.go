package store

import (
	"context"
	"errors"
	"fmt"

	"progress/internal/models"
)

var (
	ErrSelfFollow   = errors.New("cannot follow yourself")
	ErrNotFollowing = errors.New("not following this user")
)

// Follow records a follower → followee edge. The single row is read back as
// both the follower's "following" and the followee's "followers" entry.
func (s *Store) Follow(ctx context.Context, followerID, followeeID int) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?)",
		followerID, followeeID, now(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("already following: %w", ErrConflict)
	}
	return err
}

func (s *Store) Unfollow(ctx context.Context, followerID, followeeID int) error {
	res, err := s.q.ExecContext(ctx,
		"DELETE FROM follows WHERE follower_id = ? AND followee_id = ?",
		followerID, followeeID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFollowing
	}
	return nil
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followeeID int) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		"SELECT count(*) FROM follows WHERE follower_id = ? AND followee_id = ?",
		followerID, followeeID,
	).Scan(&n)
	return n > 0, err
}

func (s *Store) userRefs(ctx context.Context, query string, userID int) ([]models.UserRef, error) {
	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := []models.UserRef{}
	for rows.Next() {
		var r models.UserRef
		if err := rows.Scan(&r.ID, &r.Username, &r.Avatar); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// Followers lists users following userID.
func (s *Store) Followers(ctx context.Context, userID int) ([]models.UserRef, error) {
	return s.userRefs(ctx,
		`SELECT u.id, u.username, u.avatar FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id = ? ORDER BY f.created_at DESC`, userID)
}

// Following lists users that userID follows.
func (s *Store) Following(ctx context.Context, userID int) ([]models.UserRef, error) {
	return s.userRefs(ctx,
		`SELECT u.id, u.username, u.avatar FROM follows f
		JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = ? ORDER BY f.created_at DESC`, userID)
}

// FollowCounts returns (followers, following) for userID.
func (s *Store) FollowCounts(ctx context.Context, userID int) (int, int, error) {
	var followers, following int
	err := s.q.QueryRowContext(ctx,
		`SELECT
			(SELECT count(*) FROM follows WHERE followee_id = ?),
			(SELECT count(*) FROM follows WHERE follower_id = ?)`,
		userID, userID,
	).Scan(&followers, &following)
	return followers, following, err
}
