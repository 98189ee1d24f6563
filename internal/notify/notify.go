// Package notify delivers fire-and-forget messages to other parties:
// user notifications and shipment registrations.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

const (
	TopicNotifications = "notifications"
	TopicShipments     = "shipments.register"
)

// Publisher writes one keyed JSON event to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type Type string

const (
	TypeDraftAssigned     Type = "draft_assigned"
	TypeDraftUnassigned   Type = "draft_unassigned"
	TypePreviewSent       Type = "preview_sent"
	TypeRevisionRequested Type = "revision_requested"
	TypeDraftApproved     Type = "draft_approved"
	TypeDraftCanceled     Type = "draft_canceled"
	TypeDraftCommitted    Type = "draft_committed"
	TypePaymentSucceeded  Type = "payment_succeeded"
	TypePaymentFailed     Type = "payment_failed"
	TypePaymentRefunded   Type = "payment_refunded"
)

type Notification struct {
	UserID  uint           `json:"user_id"`
	Type    Type           `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

type Notifier struct {
	pub Publisher
}

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func (n *Notifier) Send(ctx context.Context, msg Notification) error {
	if err := n.pub.Publish(ctx, TopicNotifications, strconv.FormatUint(uint64(msg.UserID), 10), msg); err != nil {
		return fmt.Errorf("send %s to user %d: %w", msg.Type, msg.UserID, err)
	}
	return nil
}

// Deliver sends msg and logs a failure instead of returning it.
func Deliver(ctx context.Context, n *Notifier, msg Notification) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, msg); err != nil {
		slog.Warn("notification not delivered", "user_id", msg.UserID, "type", msg.Type, "err", err)
	}
}

type ShipmentRequest struct {
	OrderID     string         `json:"order_id"`
	DraftID     string         `json:"draft_id"`
	Carrier     string         `json:"carrier"`
	ServiceCode string         `json:"service_code,omitempty"`
	Address     map[string]any `json:"address"`
}

// ShipmentRegistrar hands committed orders to the fulfilment worker.
type ShipmentRegistrar struct {
	pub Publisher
}

func NewShipmentRegistrar(pub Publisher) *ShipmentRegistrar {
	return &ShipmentRegistrar{pub: pub}
}

func (r *ShipmentRegistrar) Register(ctx context.Context, req ShipmentRequest) error {
	if err := r.pub.Publish(ctx, TopicShipments, req.OrderID, req); err != nil {
		return fmt.Errorf("register shipment for order %s: %w", req.OrderID, err)
	}
	return nil
}
