package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"progress/internal/config"
	"progress/internal/logger"
	"progress/internal/models"
)

// Payload is the notification shown by the service worker.
type Payload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	Badge string         `json:"badge,omitempty"`
	Tag   string         `json:"tag,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Store is the subscription storage the sender reads and prunes.
type Store interface {
	PushSubscriptions(ctx context.Context, userID int) ([]models.PushSubscription, error)
	PurgePushEndpoint(ctx context.Context, endpoint string) error
}

// Result summarizes one SendToUser call.
type Result struct {
	Subscriptions int `json:"subscriptions"`
	Sent          int `json:"sent"`
	Failed        int `json:"failed"`
}

// Sender delivers Web Push notifications signed with the configured VAPID keys.
type Sender struct {
	store   Store
	cfg     config.PushConfig
	options webpush.Options
}

func New(cfg config.PushConfig, st Store) *Sender {
	return &Sender{
		store: st,
		cfg:   cfg,
		options: webpush.Options{
			Subscriber:      cfg.VAPIDSubject,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             30,
		},
	}
}

// Configured reports whether all VAPID settings are present.
func (s *Sender) Configured() bool {
	return s != nil && s.cfg.VAPIDPublicKey != "" && s.cfg.VAPIDPrivateKey != "" && s.cfg.VAPIDSubject != ""
}

func (s *Sender) PublicKey() string {
	return s.cfg.VAPIDPublicKey
}

// SendToUser pushes payload to every subscription of the user. Subscriptions
// the push service reports as gone (404, 410) or rejects for key mismatch
// (403) are deleted so the client re-subscribes.
func (s *Sender) SendToUser(ctx context.Context, userID int, payload Payload) (Result, error) {
	var res Result
	if !s.Configured() {
		logger.Debug("web push not configured, skipping notification", "user", userID)
		return res, nil
	}

	subs, err := s.store.PushSubscriptions(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("failed to fetch subscriptions: %w", err)
	}
	res.Subscriptions = len(subs)
	if len(subs) == 0 {
		return res, fmt.Errorf("no push subscriptions found for user %d", userID)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return res, fmt.Errorf("failed to marshal payload: %w", err)
	}

	log := logger.With("component", "push", "user", userID)
	for _, sub := range subs {
		status, err := s.send(ctx, body, sub)
		if err != nil {
			log.Warn("push failed", "endpoint", sub.Endpoint, "err", err)
			res.Failed++
			continue
		}
		switch {
		case status == http.StatusGone || status == http.StatusNotFound || status == http.StatusForbidden:
			if err := s.store.PurgePushEndpoint(ctx, sub.Endpoint); err != nil {
				log.Error("failed to remove subscription", "endpoint", sub.Endpoint, "err", err)
			} else {
				log.Info("removed stale subscription", "endpoint", sub.Endpoint, "status", status)
			}
			res.Failed++
		case status >= 400:
			res.Failed++
		default:
			res.Sent++
		}
	}

	log.Debug("push summary", "subscriptions", res.Subscriptions, "sent", res.Sent, "failed", res.Failed)
	if res.Sent == 0 {
		return res, fmt.Errorf("failed to send any push notifications (attempted %d)", res.Failed)
	}
	return res, nil
}

func (s *Sender) send(ctx context.Context, body []byte, sub models.PushSubscription) (int, error) {
	opts := s.options
	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &opts)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return resp.StatusCode, nil
		}
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Debug("push service error response", "status", resp.StatusCode, "body", string(msg))
	}
	return resp.StatusCode, nil
}
