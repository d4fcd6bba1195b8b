package realtime

import (
	"context"

	"Tribe/logger"
	"Tribe/module/social/model"
)

// NotificationWriter is the persistence half of dispatch.
type NotificationWriter interface {
	Insert(ctx context.Context, recipient, sender, kind, subjectID string) (*model.Notification, error)
}

// Notifier persists a notification record and, when the recipient is
// online, delivers it live to each of their connections. Offline
// recipients find the record on their next history pull; there is no
// retry or queue (at-most-once live, durable for later pull).
type Notifier struct {
	store NotificationWriter
	hub   *Hub
}

func NewNotifier(store NotificationWriter, hub *Hub) *Notifier {
	return &Notifier{store: store, hub: hub}
}

// Dispatch must only be called after the triggering mutation committed,
// and never when actor == resource owner (callers check).
func (n *Notifier) Dispatch(ctx context.Context, recipient, sender, kind, subjectID string) error {
	rec, err := n.store.Insert(ctx, recipient, sender, kind, subjectID)
	if err != nil {
		return err
	}
	if !n.hub.IsOnline(ctx, recipient) {
		return nil
	}
	f, err := NewFrame(KindNewNotification, rec)
	if err != nil {
		return err
	}
	if err := n.hub.SendUser(recipient, f); err != nil {
		// record is durable; live delivery is best effort
		logger.Warnf("[notify] live delivery recipient=%s err=%v", recipient, err)
	}
	return nil
}
