package store

import (
	"context"

	"progress/internal/models"
)

// SavePushSubscription upserts a subscription for the user's endpoint.
func (s *Store) SavePushSubscription(ctx context.Context, sub *models.PushSubscription) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, endpoint) DO UPDATE SET p256dh = excluded.p256dh, auth = excluded.auth`,
		sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth,
	)
	if err != nil {
		return err
	}
	return s.q.QueryRowContext(ctx,
		"SELECT id FROM push_subscriptions WHERE user_id = ? AND endpoint = ?", sub.UserID, sub.Endpoint,
	).Scan(&sub.ID)
}

func (s *Store) DeletePushSubscription(ctx context.Context, userID int, endpoint string) error {
	res, err := s.q.ExecContext(ctx,
		"DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?", userID, endpoint)
	if err != nil {
		return err
	}
	return rowsAffected(res, "push subscription")
}

// PurgePushEndpoint removes an endpoint for every user. Used when the push
// service reports it gone.
func (s *Store) PurgePushEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint)
	return err
}

func (s *Store) PushSubscriptions(ctx context.Context, userID int) ([]models.PushSubscription, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, user_id, endpoint, p256dh, auth FROM push_subscriptions WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []models.PushSubscription{}
	for rows.Next() {
		var sub models.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
