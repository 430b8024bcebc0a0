package pushsvc

import (
	"context"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/findme/internal/push"
)

// VAPIDSender отправляет уведомления через webpush-go.
type VAPIDSender struct {
	opts *webpush.Options
}

func NewVAPIDSender(keys *push.VAPIDKeys) *VAPIDSender {
	return &VAPIDSender{opts: &webpush.Options{
		Subscriber:      keys.Subject,
		VAPIDPublicKey:  keys.PublicKey,
		VAPIDPrivateKey: keys.PrivateKey,
		TTL:             30,
	}}
}

func (v *VAPIDSender) Send(ctx context.Context, payload []byte, sub push.Subscription) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
	}, v.opts)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
