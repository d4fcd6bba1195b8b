package storage

import (
	"context"
	"time"

	"Tribe/tools/errs"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PresenceMirror keeps a redis view of who is online. The in-process
// tracker stays authoritative; the mirror exists so sibling nodes and
// ops tooling can answer lookups without asking the hub.
//
// key: tribe:presence:<user>, value: node id, TTL bounds staleness.
type PresenceMirror struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPresenceMirror(c RedisConfig, ttl time.Duration) (*PresenceMirror, error) {
	rdb := redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, errs.WrapMsg(err, "redis ping", "addr", c.Addr)
	}
	return &PresenceMirror{rdb: rdb, ttl: ttl}, nil
}

func presenceKey(user string) string { return "tribe:presence:" + user }

// Online marks the user online on nodeID and renews the TTL.
func (m *PresenceMirror) Online(ctx context.Context, user, nodeID string) error {
	return m.rdb.Set(ctx, presenceKey(user), nodeID, m.ttl).Err()
}

// Offline deletes the key.
func (m *PresenceMirror) Offline(ctx context.Context, user string) error {
	return m.rdb.Del(ctx, presenceKey(user)).Err()
}

// Lookup reports whether the user is online anywhere and on which node.
func (m *PresenceMirror) Lookup(ctx context.Context, user string) (nodeID string, online bool, err error) {
	val, err := m.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (m *PresenceMirror) Close() error { return m.rdb.Close() }
