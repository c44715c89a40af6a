package notify

import (
	"context"
	"encoding/json"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Notifier sends Web Push notifications to recipients with no live channel.
type Notifier struct {
	db         *sqlx.DB
	publicKey  string
	privateKey string
	subscriber string
	logger     *zap.Logger
}

// Subscription is a stored Web Push subscription.
type Subscription struct {
	Endpoint  string `db:"endpoint"`
	KeyP256dh string `db:"p256dh"`
	KeyAuth   string `db:"auth"`
}

// NewNotifier creates a Notifier. Returns nil if VAPID keys are empty; a nil
// Notifier is safe to call and does nothing.
func NewNotifier(db *sqlx.DB, publicKey, privateKey, subscriber string, logger *zap.Logger) *Notifier {
	if publicKey == "" || privateKey == "" {
		return nil
	}
	return &Notifier{
		db:         db,
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		logger:     logger,
	}
}

// VAPIDPublicKey returns the public key clients subscribe with.
func (n *Notifier) VAPIDPublicKey() string {
	if n == nil {
		return ""
	}
	return n.publicKey
}

// Subscribe stores a subscription for the user, reviving it if it was
// previously revoked.
func (n *Notifier) Subscribe(ctx context.Context, userID, endpoint, p256dh, auth string) error {
	if n == nil {
		return nil
	}
	_, err := n.db.ExecContext(ctx, `INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (endpoint) DO UPDATE SET
            user_id = EXCLUDED.user_id,
            p256dh = EXCLUDED.p256dh,
            auth = EXCLUDED.auth,
            revoked_at = NULL`,
		userID, endpoint, p256dh, auth)
	return err
}

type payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// NotifyNewMessage pushes a "new message" notification to every active
// subscription of the recipient. Sends are asynchronous and best-effort.
func (n *Notifier) NotifyNewMessage(ctx context.Context, recipientID, senderName, preview string) {
	if n == nil {
		return
	}

	var subs []Subscription
	err := n.db.SelectContext(ctx, &subs, `SELECT endpoint, p256dh, auth FROM push_subscriptions
        WHERE user_id = $1 AND revoked_at IS NULL`, recipientID)
	if err != nil {
		n.logger.Warn("load push subscriptions failed",
			zap.String("user_id", recipientID), zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	body := preview
	if body == "" {
		body = "sent you a photo"
	}
	data, _ := json.Marshal(payload{
		Title: "New message from " + senderName,
		Body:  body,
		URL:   "/messages/" + recipientID,
	})

	for _, sub := range subs {
		go n.sendToSubscription(sub, data)
	}
}

func (n *Notifier) sendToSubscription(sub Subscription, data []byte) {
	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.KeyP256dh,
			Auth:   sub.KeyAuth,
		},
	}

	resp, err := webpush.SendNotification(data, s, &webpush.Options{
		VAPIDPublicKey:  n.publicKey,
		VAPIDPrivateKey: n.privateKey,
		Subscriber:      n.subscriber,
		TTL:             86400,
	})
	if err != nil {
		n.logger.Warn("web push send failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// 404/410 means the subscription expired; revoke it.
	if resp.StatusCode == 404 || resp.StatusCode == 410 {
		if _, err := n.db.Exec(`UPDATE push_subscriptions SET revoked_at = NOW() WHERE endpoint = $1`, sub.Endpoint); err != nil {
			n.logger.Warn("revoke expired subscription failed", zap.Error(err))
		}
	}
}
