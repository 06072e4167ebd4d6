// Package push delivers Web Push notifications to subscribed browsers.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/connectra/internal/logger"
	"github.com/connectra/internal/storage"
)

const notificationTTL = 30

// Sender pushes notifications to every stored subscription of a user.
type Sender struct {
	store      storage.SubscriptionStore
	keys       *VAPIDKeys
	subscriber string
}

func NewSender(store storage.SubscriptionStore, keys *VAPIDKeys, subscriber string) *Sender {
	return &Sender{store: store, keys: keys, subscriber: subscriber}
}

// PublicKey exposes the VAPID public key for browser subscription.
func (s *Sender) PublicKey() string {
	return s.keys.PublicKey
}

type notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notify sends the notification to all of username's subscriptions.
// Endpoints the push service reports as gone are pruned from the store.
func (s *Sender) Notify(ctx context.Context, username, title, body string, data map[string]string) {
	subs, err := s.store.List(ctx, username)
	if err != nil {
		logger.Errorf("push: list subscriptions for %s: %v", username, err)
		return
	}
	if len(subs) == 0 {
		return
	}
	payload, err := json.Marshal(notification{Title: title, Body: body, Data: data})
	if err != nil {
		logger.Errorf("push: marshal notification: %v", err)
		return
	}
	for _, raw := range subs {
		var sub webpush.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			logger.Errorf("push: bad subscription for %s: %v", username, err)
			continue
		}
		if err := s.send(payload, &sub); err != nil {
			logger.Errorf("push: send to %s: %v", username, err)
		}
		if isGone(err) {
			if err := s.store.RemoveByEndpoint(ctx, username, sub.Endpoint); err != nil {
				logger.Errorf("push: prune endpoint for %s: %v", username, err)
			}
		}
	}
}

func (s *Sender) send(payload []byte, sub *webpush.Subscription) error {
	resp, err := webpush.SendNotification(payload, sub, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.keys.PublicKey,
		VAPIDPrivateKey: s.keys.PrivateKey,
		TTL:             notificationTTL,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return errGone{status: resp.StatusCode}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service status %d", resp.StatusCode)
	}
	return nil
}

type errGone struct {
	status int
}

func (e errGone) Error() string {
	return fmt.Sprintf("subscription gone (status %d)", e.status)
}

func isGone(err error) bool {
	_, ok := err.(errGone)
	return ok
}
