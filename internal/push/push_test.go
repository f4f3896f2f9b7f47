package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/require"

	"progress/internal/config"
	"progress/internal/models"
)

type memStore struct {
	subs   []models.PushSubscription
	purged []string
}

func (m *memStore) PushSubscriptions(_ context.Context, userID int) ([]models.PushSubscription, error) {
	var out []models.PushSubscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) PurgePushEndpoint(_ context.Context, endpoint string) error {
	m.purged = append(m.purged, endpoint)
	return nil
}

// statusClient answers each endpoint with a fixed status.
type statusClient map[string]int

func (c statusClient) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: c[req.URL.String()],
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}, nil
}

func newSubscription(t *testing.T, userID int, endpoint string) models.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return models.PushSubscription{
		UserID:   userID,
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
	}
}

func newTestSender(t *testing.T, st Store, client statusClient) *Sender {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	s := New(config.PushConfig{VAPIDPublicKey: pub, VAPIDPrivateKey: priv, VAPIDSubject: "mailto:ops@example.com"}, st)
	s.options.HTTPClient = client
	return s
}

func TestUnconfiguredSenderIsNoop(t *testing.T) {
	s := New(config.PushConfig{}, &memStore{})
	require.False(t, s.Configured())
	res, err := s.SendToUser(context.Background(), 1, Payload{Title: "hi"})
	require.NoError(t, err)
	require.Zero(t, res.Subscriptions)
}

func TestSendToUserWithoutSubscriptions(t *testing.T) {
	s := newTestSender(t, &memStore{}, statusClient{})
	_, err := s.SendToUser(context.Background(), 1, Payload{Title: "hi"})
	require.Error(t, err)
}

func TestSendToUserPurgesGoneEndpoints(t *testing.T) {
	st := &memStore{subs: []models.PushSubscription{
		newSubscription(t, 1, "https://push.example.com/ok"),
		newSubscription(t, 1, "https://push.example.com/gone"),
		newSubscription(t, 2, "https://push.example.com/other"),
	}}
	s := newTestSender(t, st, statusClient{
		"https://push.example.com/ok":   http.StatusCreated,
		"https://push.example.com/gone": http.StatusGone,
	})

	res, err := s.SendToUser(context.Background(), 1, Payload{Title: "Goal reminder", Body: "2 goals due soon"})
	require.NoError(t, err)
	require.Equal(t, Result{Subscriptions: 2, Sent: 1, Failed: 1}, res)
	require.Equal(t, []string{"https://push.example.com/gone"}, st.purged)
}
