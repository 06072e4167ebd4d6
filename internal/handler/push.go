package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/connectra/internal/logger"
	"github.com/connectra/internal/middleware"
	"github.com/connectra/internal/push"
	"github.com/connectra/internal/storage"
)

// PushHandler manages web-push subscriptions for the requesting user.
type PushHandler struct {
	store  storage.SubscriptionStore
	sender *push.Sender
}

func NewPushHandler(store storage.SubscriptionStore, sender *push.Sender) *PushHandler {
	return &PushHandler{store: store, sender: sender}
}

type pushSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type subscribeRequest struct {
	Subscription pushSubscription `json:"subscription"`
}

// VAPIDPublicKey hands the browser the key it needs for PushManager.subscribe.
func (h *PushHandler) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.sender.PublicKey()})
}

// Subscribe stores the browser's push subscription for the current user.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Subscription.Endpoint == "" || req.Subscription.Keys.P256dh == "" || req.Subscription.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "subscription.endpoint and subscription.keys required")
		return
	}
	raw, err := json.Marshal(req.Subscription)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription")
		return
	}
	if err := h.store.Add(r.Context(), username, raw); err != nil {
		logger.Errorf("push subscribe user=%s: %v", username, err)
		writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe removes the subscription with the given endpoint.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint required")
		return
	}
	if err := h.store.RemoveByEndpoint(r.Context(), username, req.Endpoint); err != nil {
		logger.Errorf("push unsubscribe user=%s: %v", username, err)
		writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SenderNotifier adapts push.Sender to the PushNotifier interface used by
// the message handler; a nil Sender disables pushes.
type SenderNotifier struct {
	Sender *push.Sender
}

func (n *SenderNotifier) Notify(ctx context.Context, username, title, body string, data map[string]string) {
	if n == nil || n.Sender == nil {
		return
	}
	n.Sender.Notify(ctx, username, title, body, data)
}
