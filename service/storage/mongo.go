package storage

import (
	"context"
	"time"

	"Tribe/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	collUsers         = "users"
	collPosts         = "posts"
	collMessages      = "messages"
	collConversations = "conversations"
	collTribes        = "tribes"
	collTribeMessages = "tribe_messages"
	collNotifications = "notifications"
)

// Mongo wraps one database handle; repositories hang off it.
type Mongo struct {
	db *mongo.Database
}

func NewMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cli, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errs.WrapMsg(err, "mongo connect", "uri", uri)
	}
	if err := cli.Ping(cctx, readpref.Primary()); err != nil {
		return nil, errs.WrapMsg(err, "mongo ping")
	}
	return &Mongo{db: cli.Database(dbName)}, nil
}

func (m *Mongo) Posts() *PostStore                 { return &PostStore{c: m.db.Collection(collPosts)} }
func (m *Mongo) Users() *UserStore                 { return &UserStore{c: m.db.Collection(collUsers)} }
func (m *Mongo) Messages() *MessageStore           { return &MessageStore{c: m.db.Collection(collMessages), conv: m.db.Collection(collConversations)} }
func (m *Mongo) Tribes() *TribeStore               { return &TribeStore{c: m.db.Collection(collTribes), msgs: m.db.Collection(collTribeMessages)} }
func (m *Mongo) Notifications() *NotificationStore { return &NotificationStore{c: m.db.Collection(collNotifications)} }

func (m *Mongo) Close(ctx context.Context) error {
	return m.db.Client().Disconnect(ctx)
}
