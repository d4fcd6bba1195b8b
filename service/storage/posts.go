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

type PostStore struct {
	c *mongo.Collection
}

func (s *PostStore) Insert(ctx context.Context, userID, content, imageURL string) (*model.Post, error) {
	p := &model.Post{
		ID:        ids.GenerateString(),
		UserID:    userID,
		Content:   content,
		ImageURL:  imageURL,
		Likes:     []string{},
		Comments:  []model.Comment{},
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return nil, errs.WrapMsg(err, "insert post", "user", userID)
	}
	return p, nil
}

func (s *PostStore) FindByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrNotFound.WrapMsg("post", "id", id)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find post", "id", id)
	}
	return &p, nil
}

// List returns all posts, newest first.
func (s *PostStore) List(ctx context.Context) ([]*model.Post, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "list posts")
	}
	var out []*model.Post
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode posts")
	}
	return out, nil
}

// Delete removes the post if ownerID owns it. Missing post maps to
// NotFound, wrong owner to Unauthorized.
func (s *PostStore) Delete(ctx context.Context, id, ownerID string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "user_id": ownerID})
	if err != nil {
		return errs.WrapMsg(err, "delete post", "id", id)
	}
	if res.DeletedCount == 0 {
		n, err := s.c.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return errs.WrapMsg(err, "delete post recheck", "id", id)
		}
		if n == 0 {
			return errs.ErrNotFound.WrapMsg("post", "id", id)
		}
		return errs.ErrUnauthorized.WrapMsg("not post owner", "id", id)
	}
	return nil
}

// ToggleLike flips userID's membership in the like set with two
// single-document operators. $pull only matches when the like exists and
// $addToSet never duplicates, so two sessions racing the same toggle
// land exactly one like (the loser of the race unlikes).
func (s *PostStore) ToggleLike(ctx context.Context, postID, userID string) (*model.Post, bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": postID, "likes": userID},
		bson.M{"$pull": bson.M{"likes": userID}},
	)
	if err != nil {
		return nil, false, errs.WrapMsg(err, "unlike", "post", postID)
	}
	liked := false
	if res.ModifiedCount == 0 {
		res, err = s.c.UpdateOne(ctx,
			bson.M{"_id": postID},
			bson.M{"$addToSet": bson.M{"likes": userID}},
		)
		if err != nil {
			return nil, false, errs.WrapMsg(err, "like", "post", postID)
		}
		if res.MatchedCount == 0 {
			return nil, false, errs.ErrNotFound.WrapMsg("post", "id", postID)
		}
		liked = true
	}
	p, err := s.FindByID(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	return p, liked, nil
}

func (s *PostStore) AddComment(ctx context.Context, postID, userID, text string) (*model.Post, error) {
	cm := model.Comment{
		ID:        ids.GenerateString(),
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": postID},
		bson.M{"$push": bson.M{"comments": cm}},
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "add comment", "post", postID)
	}
	if res.MatchedCount == 0 {
		return nil, errs.ErrNotFound.WrapMsg("post", "id", postID)
	}
	return s.FindByID(ctx, postID)
}

// DeleteComment removes a comment when actorID wrote it or owns the post.
func (s *PostStore) DeleteComment(ctx context.Context, postID, commentID, actorID string) (*model.Post, error) {
	p, err := s.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	var found *model.Comment
	for i := range p.Comments {
		if p.Comments[i].ID == commentID {
			found = &p.Comments[i]
			break
		}
	}
	if found == nil {
		return nil, errs.ErrNotFound.WrapMsg("comment", "id", commentID)
	}
	if found.UserID != actorID && p.UserID != actorID {
		return nil, errs.ErrUnauthorized.WrapMsg("not comment author or post owner")
	}
	if _, err := s.c.UpdateOne(ctx,
		bson.M{"_id": postID},
		bson.M{"$pull": bson.M{"comments": bson.M{"id": commentID}}},
	); err != nil {
		return nil, errs.WrapMsg(err, "delete comment", "post", postID)
	}
	return s.FindByID(ctx, postID)
}
