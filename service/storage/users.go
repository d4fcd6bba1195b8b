package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"Tribe/module/social/model"
	"Tribe/tools/errs"
	"Tribe/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserStore struct {
	c *mongo.Collection
}

func hashPassword(pw string) string {
	sum := sha256.Sum256([]byte(pw))
	return hex.EncodeToString(sum[:])
}

func (s *UserStore) Create(ctx context.Context, name, username, password string) (*model.User, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"username": username})
	if err != nil {
		return nil, errs.WrapMsg(err, "check username", "username", username)
	}
	if n > 0 {
		return nil, errs.ErrArgs.WrapMsg("username taken", "username", username)
	}
	u := &model.User{
		ID:           ids.GenerateString(),
		Name:         name,
		Username:     username,
		PasswordHash: hashPassword(password),
		Followers:    []string{},
		Following:    []string{},
		BlockedUsers: []string{},
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		return nil, errs.WrapMsg(err, "insert user", "username", username)
	}
	return u, nil
}

func (s *UserStore) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	var u model.User
	err := s.c.FindOne(ctx, bson.M{"username": username}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrUnauthorized.WrapMsg("bad credentials")
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find user", "username", username)
	}
	if u.PasswordHash != hashPassword(password) {
		return nil, errs.ErrUnauthorized.WrapMsg("bad credentials")
	}
	return &u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrNotFound.WrapMsg("user", "id", id)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find user", "id", id)
	}
	return &u, nil
}

func (s *UserStore) List(ctx context.Context) ([]*model.User, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "list users")
	}
	var out []*model.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode users")
	}
	return out, nil
}

// Follow links actor -> target with two single-document updates;
// $addToSet keeps both arrays duplicate-free under races. Returns the
// updated target plus whether the follower set actually grew, so
// callers can skip side effects on a repeat follow.
func (s *UserStore) Follow(ctx context.Context, actorID, targetID string) (*model.User, bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": targetID},
		bson.M{"$addToSet": bson.M{"followers": actorID}},
	)
	if err != nil {
		return nil, false, errs.WrapMsg(err, "follow target", "target", targetID)
	}
	if res.MatchedCount == 0 {
		return nil, false, errs.ErrNotFound.WrapMsg("user", "id", targetID)
	}
	changed := res.ModifiedCount > 0
	if _, err := s.c.UpdateOne(ctx,
		bson.M{"_id": actorID},
		bson.M{"$addToSet": bson.M{"following": targetID}},
	); err != nil {
		return nil, false, errs.WrapMsg(err, "follow actor", "actor", actorID)
	}
	u, err := s.FindByID(ctx, targetID)
	if err != nil {
		return nil, false, err
	}
	return u, changed, nil
}

func (s *UserStore) Unfollow(ctx context.Context, actorID, targetID string) (*model.User, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": targetID},
		bson.M{"$pull": bson.M{"followers": actorID}},
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "unfollow target", "target", targetID)
	}
	if res.MatchedCount == 0 {
		return nil, errs.ErrNotFound.WrapMsg("user", "id", targetID)
	}
	if _, err := s.c.UpdateOne(ctx,
		bson.M{"_id": actorID},
		bson.M{"$pull": bson.M{"following": targetID}},
	); err != nil {
		return nil, errs.WrapMsg(err, "unfollow actor", "actor", actorID)
	}
	return s.FindByID(ctx, targetID)
}

func (s *UserStore) Block(ctx context.Context, actorID, targetID string) (*model.User, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": actorID},
		bson.M{"$addToSet": bson.M{"blocked_users": targetID}},
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "block", "target", targetID)
	}
	if res.MatchedCount == 0 {
		return nil, errs.ErrNotFound.WrapMsg("user", "id", actorID)
	}
	return s.FindByID(ctx, actorID)
}

func (s *UserStore) Unblock(ctx context.Context, actorID, targetID string) (*model.User, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": actorID},
		bson.M{"$pull": bson.M{"blocked_users": targetID}},
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "unblock", "target", targetID)
	}
	if res.MatchedCount == 0 {
		return nil, errs.ErrNotFound.WrapMsg("user", "id", actorID)
	}
	return s.FindByID(ctx, actorID)
}

// EitherBlocked reports whether either side blocks the other.
func (s *UserStore) EitherBlocked(ctx context.Context, a, b string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"$or": []bson.M{
		{"_id": a, "blocked_users": b},
		{"_id": b, "blocked_users": a},
	}})
	if err != nil {
		return false, errs.WrapMsg(err, "blocked check", "a", a, "b", b)
	}
	return n > 0, nil
}

// UpdateProfile sets only the provided (non-nil) fields.
func (s *UserStore) UpdateProfile(ctx context.Context, userID string, name, bio, avatarURL *string) (*model.User, error) {
	set := bson.M{}
	if name != nil {
		set["name"] = *name
	}
	if bio != nil {
		set["bio"] = *bio
	}
	if avatarURL != nil {
		set["avatar_url"] = *avatarURL
	}
	if len(set) == 0 {
		return nil, errs.ErrArgs.WrapMsg("no profile fields to update")
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return nil, errs.WrapMsg(err, "update profile", "user", userID)
	}
	if res.MatchedCount == 0 {
		return nil, errs.ErrNotFound.WrapMsg("user", "id", userID)
	}
	return s.FindByID(ctx, userID)
}
