// Package push delivers encrypted payloads to subscriber push endpoints.
package push

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"meeting-reminder-go/internal/codec"
	"meeting-reminder-go/internal/models"
	"meeting-reminder-go/internal/vapid"
	"meeting-reminder-go/internal/webpush"
)

// Sender delivers one payload to one subscription and reports the push
// service's HTTP status.
type Sender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error)
}

// defaultTTL is how long, in seconds, the push service may hold and retry
// delivery. One day: the reminder is stale after that anyway.
const defaultTTL = 86400

// Client is the HTTP implementation of Sender. It signs a VAPID token per
// request and encrypts the payload with the subscription's keys.
type Client struct {
	httpc  *http.Client
	signer *vapid.Signer
	ttl    int
}

func NewClient(signer *vapid.Signer) *Client {
	return &Client{
		httpc:  &http.Client{Timeout: 30 * time.Second},
		signer: signer,
		ttl:    defaultTTL,
	}
}

func (c *Client) Send(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error) {
	p256dh, err := codec.Base64URLDecode(sub.P256dh)
	if err != nil {
		return 0, fmt.Errorf("decode p256dh: %w", err)
	}
	auth, err := codec.Base64URLDecode(sub.Auth)
	if err != nil {
		return 0, fmt.Errorf("decode auth: %w", err)
	}

	body, err := webpush.Encrypt(payload, p256dh, auth)
	if err != nil {
		return 0, fmt.Errorf("encrypt payload: %w", err)
	}

	authz, err := c.signer.AuthorizationHeader(sub.Endpoint)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", authz)
	req.Header.Set("Content-Encoding", "aes128gcm")
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("TTL", strconv.Itoa(c.ttl))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
