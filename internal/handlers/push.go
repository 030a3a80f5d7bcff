package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"meeting-reminder-go/internal/codec"
	"meeting-reminder-go/internal/models"
	"meeting-reminder-go/internal/platform"
)

// GetVAPIDKeyHandler returns the public VAPID key the browser subscribes with.
func (h *Handler) GetVAPIDKeyHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"publicKey": h.VAPIDPublicKey,
	})
}

// SubscribePushHandler saves a push subscription, replacing any previous
// record for the same endpoint.
func (h *Handler) SubscribePushHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if reason := validateSubscription(req.Endpoint, req.Keys.P256dh, req.Keys.Auth); reason != "" {
		h.writeError(w, http.StatusBadRequest, reason)
		return
	}

	sub := models.PushSubscription{
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.Store.SavePushSubscription(r.Context(), sub); err != nil {
		h.Log.WithError(err).Error("failed to save subscription", map[string]interface{}{
			"endpoint": req.Endpoint,
		})
		h.writeError(w, http.StatusInternalServerError, "Failed to save subscription")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
}

func validateSubscription(endpoint, p256dh, auth string) string {
	if endpoint == "" {
		return "Missing endpoint"
	}
	point, err := codec.Base64URLDecode(p256dh)
	if err != nil || len(point) != 65 || point[0] != 0x04 {
		return "Invalid p256dh key"
	}
	secret, err := codec.Base64URLDecode(auth)
	if err != nil || len(secret) != 16 {
		return "Invalid auth secret"
	}
	return ""
}

// UnsubscribePushHandler removes a subscription. Removing an endpoint that
// was already gone succeeds, so the client can always converge.
func (h *Handler) UnsubscribePushHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		h.writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if err := h.Store.DeletePushSubscription(r.Context(), req.Endpoint); err != nil {
		h.Log.WithError(err).Error("failed to delete subscription", map[string]interface{}{
			"endpoint": req.Endpoint,
		})
		h.writeError(w, http.StatusInternalServerError, "Failed to delete subscription")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}

type statusRequest struct {
	Endpoint string                `json:"endpoint"`
	Report   platform.ClientReport `json:"client"`
}

// PushStatusHandler reports where the client sits in the subscription
// lifecycle, combining its self-reported capabilities with whether its
// endpoint is on record.
func (h *Handler) PushStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Report.UserAgent == "" {
		req.Report.UserAgent = r.UserAgent()
	}

	subscribed := false
	if req.Endpoint != "" {
		var err error
		subscribed, err = h.Store.HasPushSubscription(r.Context(), req.Endpoint)
		if err != nil {
			h.Log.WithError(err).Error("failed to look up subscription", nil)
			h.writeError(w, http.StatusInternalServerError, "Failed to look up subscription")
			return
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": platform.Status(req.Report, subscribed),
	})
}

// PushSupportHandler answers whether the reporting client can receive push
// notifications, with a user-facing reason when it cannot.
func (h *Handler) PushSupportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var report platform.ClientReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if report.UserAgent == "" {
		report.UserAgent = r.UserAgent()
	}

	h.writeJSON(w, http.StatusOK, platform.Check(report))
}

// DispatchHandler triggers one scheduler pass immediately instead of waiting
// for the next tick. Deduplication makes extra passes harmless.
func (h *Handler) DispatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := h.Runner.Tick(r.Context()); err != nil {
		h.Log.WithError(err).Error("manual dispatch failed", nil)
		h.writeError(w, http.StatusInternalServerError, "Dispatch failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "dispatched"})
}
