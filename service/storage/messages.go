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

type MessageStore struct {
	c    *mongo.Collection
	conv *mongo.Collection
}

// Insert persists the message and upserts the pair's conversation in the
// same call path. conversationID must be the sorted-pair room key so
// both directions land in one document.
func (s *MessageStore) Insert(ctx context.Context, conversationID, senderID, receiverID, text string) (*model.Message, error) {
	m := &model.Message{
		ID:         ids.GenerateString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return nil, errs.WrapMsg(err, "insert message", "conv", conversationID)
	}
	_, err := s.conv.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{
			"$set":      bson.M{"last_message": text, "updated_at": m.CreatedAt},
			"$addToSet": bson.M{"participants": bson.M{"$each": []string{senderID, receiverID}}},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "upsert conversation", "conv", conversationID)
	}
	return m, nil
}

// History returns the full exchange between two users, oldest first.
func (s *MessageStore) History(ctx context.Context, a, b string) ([]*model.Message, error) {
	filter := bson.M{"$or": []bson.M{
		{"sender_id": a, "receiver_id": b},
		{"sender_id": b, "receiver_id": a},
	}}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "message history", "a", a, "b", b)
	}
	var out []*model.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode messages")
	}
	return out, nil
}

func (s *MessageStore) Conversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	cur, err := s.conv.Find(ctx,
		bson.M{"participants": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "list conversations", "user", userID)
	}
	var out []*model.Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode conversations")
	}
	return out, nil
}

type TribeStore struct {
	c    *mongo.Collection
	msgs *mongo.Collection
}

func (s *TribeStore) FindByID(ctx context.Context, id string) (*model.Tribe, error) {
	var t model.Tribe
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrNotFound.WrapMsg("tribe", "id", id)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find tribe", "id", id)
	}
	return &t, nil
}

func (s *TribeStore) List(ctx context.Context) ([]*model.Tribe, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "list tribes")
	}
	var out []*model.Tribe
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode tribes")
	}
	return out, nil
}

func (s *TribeStore) Create(ctx context.Context, creatorID, name, description string) (*model.Tribe, error) {
	t := &model.Tribe{
		ID:          ids.GenerateString(),
		Name:        name,
		Description: description,
		CreatorID:   creatorID,
		Members:     []string{creatorID},
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return nil, errs.WrapMsg(err, "insert tribe", "name", name)
	}
	return t, nil
}

// Join adds userID to the member set; joining twice is a no-op.
func (s *TribeStore) Join(ctx context.Context, tribeID, userID string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": tribeID},
		bson.M{"$addToSet": bson.M{"members": userID}},
	)
	if err != nil {
		return errs.WrapMsg(err, "join tribe", "tribe", tribeID)
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound.WrapMsg("tribe", "id", tribeID)
	}
	return nil
}

func (s *TribeStore) Leave(ctx context.Context, tribeID, userID string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": tribeID},
		bson.M{"$pull": bson.M{"members": userID}},
	)
	if err != nil {
		return errs.WrapMsg(err, "leave tribe", "tribe", tribeID)
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound.WrapMsg("tribe", "id", tribeID)
	}
	return nil
}

func (s *TribeStore) IsMember(ctx context.Context, tribeID, userID string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": tribeID, "members": userID})
	if err != nil {
		return false, errs.WrapMsg(err, "tribe membership", "tribe", tribeID)
	}
	return n > 0, nil
}

func (s *TribeStore) InsertMessage(ctx context.Context, tribeID, senderID, text string) (*model.TribeMessage, error) {
	m := &model.TribeMessage{
		ID:        ids.GenerateString(),
		TribeID:   tribeID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.msgs.InsertOne(ctx, m); err != nil {
		return nil, errs.WrapMsg(err, "insert tribe message", "tribe", tribeID)
	}
	return m, nil
}

func (s *TribeStore) Messages(ctx context.Context, tribeID string) ([]*model.TribeMessage, error) {
	cur, err := s.msgs.Find(ctx,
		bson.M{"tribe_id": tribeID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "tribe messages", "tribe", tribeID)
	}
	var out []*model.TribeMessage
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode tribe messages")
	}
	return out, nil
}
