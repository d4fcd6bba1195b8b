package storage

import (
	"context"
	"time"

	"Tribe/module/social/model"
	"Tribe/tools/errs"
	"Tribe/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationStore struct {
	c *mongo.Collection
}

func (s *NotificationStore) Insert(ctx context.Context, recipient, sender, kind, subjectID string) (*model.Notification, error) {
	n := &model.Notification{
		ID:        ids.GenerateString(),
		Recipient: recipient,
		Sender:    sender,
		Kind:      kind,
		SubjectID: subjectID,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, n); err != nil {
		return nil, errs.WrapMsg(err, "insert notification", "recipient", recipient)
	}
	return n, nil
}

func (s *NotificationStore) ListByRecipient(ctx context.Context, recipient string) ([]*model.Notification, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"recipient": recipient},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "list notifications", "recipient", recipient)
	}
	var out []*model.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode notifications")
	}
	return out, nil
}

// MarkRead flips read on one record owned by recipient; records are
// retained, never deleted.
func (s *NotificationStore) MarkRead(ctx context.Context, id, recipient string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "recipient": recipient},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return errs.WrapMsg(err, "mark read", "id", id)
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound.WrapMsg("notification", "id", id)
	}
	return nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, recipient string) error {
	_, err := s.c.UpdateMany(ctx,
		bson.M{"recipient": recipient, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	return errs.WrapMsg(err, "mark all read", "recipient", recipient)
}
