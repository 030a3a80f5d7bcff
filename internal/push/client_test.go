package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-reminder-go/internal/codec"
	"meeting-reminder-go/internal/models"
	"meeting-reminder-go/internal/vapid"
)

func newTestSubscription(t *testing.T, endpoint string) models.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return models.PushSubscription{
		Endpoint: endpoint,
		P256dh:   codec.Base64URLEncode(key.PublicKey().Bytes()),
		Auth:     codec.Base64URLEncode(auth),
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	pub, priv, err := vapid.GenerateKeys()
	require.NoError(t, err)
	keys, err := vapid.ParseKeyPair(pub, priv)
	require.NoError(t, err)
	return NewClient(vapid.NewSigner(keys, "admin@example.com"))
}

func TestSendHeadersAndBody(t *testing.T) {
	client := newTestClient(t)
	payload := []byte(`{"title":"Upcoming Meeting"}`)

	var gotReq *http.Request
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	status, err := client.Send(context.Background(), newTestSubscription(t, srv.URL+"/push/v1/ep"), payload)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)

	require.NotNil(t, gotReq)
	assert.Equal(t, http.MethodPost, gotReq.Method)
	assert.Equal(t, "aes128gcm", gotReq.Header.Get("Content-Encoding"))
	assert.Equal(t, "application/octet-stream", gotReq.Header.Get("Content-Type"))
	assert.Equal(t, "86400", gotReq.Header.Get("TTL"))
	assert.True(t, strings.HasPrefix(gotReq.Header.Get("Authorization"), "vapid t="))

	// aes128gcm header + ciphertext; never the raw payload
	assert.Greater(t, len(gotBody), 86)
	assert.NotContains(t, string(gotBody), "Upcoming Meeting")
}

func TestSendReportsGoneStatus(t *testing.T) {
	client := newTestClient(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	status, err := client.Send(context.Background(), newTestSubscription(t, srv.URL), []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusGone, status)
}

func TestSendRejectsBadSubscriptionKeys(t *testing.T) {
	client := newTestClient(t)
	sub := newTestSubscription(t, "https://push.example/ep")

	bad := sub
	bad.P256dh = "%%%"
	_, err := client.Send(context.Background(), bad, []byte("{}"))
	assert.Error(t, err)

	bad = sub
	bad.Auth = codec.Base64URLEncode([]byte("short"))
	_, err = client.Send(context.Background(), bad, []byte("{}"))
	assert.Error(t, err)
}

func TestSendNetworkFailure(t *testing.T) {
	client := newTestClient(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	status, err := client.Send(context.Background(), newTestSubscription(t, srv.URL), []byte("{}"))
	assert.Error(t, err)
	assert.Zero(t, status)
}
