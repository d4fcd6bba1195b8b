package main

import (
	"context"
	"hash/fnv"
	"time"

	"Tribe/global"
	"Tribe/logger"
	mw "Tribe/middleware/security"
	"Tribe/module/message"
	"Tribe/module/notification"
	"Tribe/module/post"
	"Tribe/module/user"
	"Tribe/service/natsx"
	"Tribe/service/realtime"
	"Tribe/service/storage"
	"Tribe/tools/ids"
	jwtlib "Tribe/tools/security"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := global.Load()
	ids.SetNodeID(nodeNum(cfg.NodeID))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := storage.NewMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Errorf("mongo: %v", err)
		return
	}
	defer db.Close(context.Background())

	var mirror realtime.Mirror
	if cfg.RedisAddr != "" {
		m, merr := storage.NewPresenceMirror(storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.PresenceTTL)
		if merr != nil {
			logger.Errorf("redis: %v", merr)
			return
		}
		defer m.Close()
		mirror = m
	}

	var bus realtime.Bus
	if len(cfg.NatsServers) > 0 {
		nc, nerr := natsx.Connect(natsx.Config{Servers: cfg.NatsServers, Name: "tribe-" + cfg.NodeID})
		if nerr != nil {
			logger.Errorf("nats: %v", nerr)
			return
		}
		defer nc.Close()
		bus = nc
	}

	hub, err := realtime.NewHub(cfg.NodeID, mirror, bus)
	if err != nil {
		logger.Errorf("hub: %v", err)
		return
	}

	jwtOpts := jwtlib.DefaultOptions([]byte(cfg.JWTSecret))
	verify := func(token string) (string, error) { return jwtlib.Verify(jwtOpts, token) }
	wsrv := realtime.NewWSServer(hub, verify, cfg.SendBuffer)

	notifier := realtime.NewNotifier(db.Notifications(), hub)

	users := user.NewHandler(db.Users(), hub, notifier, jwtOpts)
	posts := post.NewHandler(db.Posts(), db.Users(), hub, notifier)
	messages := message.NewHandler(db.Messages(), db.Tribes(), db.Users(), hub)
	notifications := notification.NewHandler(db.Notifications())

	r := gin.New()
	r.Use(gin.Recovery())

	users.RegisterAuth(r.Group("/api/auth"))
	r.GET("/ws", wsrv.HandleWS)

	authed := r.Group("/api", mw.Middleware(jwtOpts))
	users.Register(authed.Group("/users"))
	posts.Register(authed.Group("/posts"))
	messages.RegisterMessages(authed.Group("/messages"))
	messages.RegisterTribes(authed.Group("/tribes"))
	notifications.Register(authed.Group("/notifications"))

	logger.Infof("tribe gateway node=%s listening on %s", cfg.NodeID, cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		logger.Errorf("http server: %v", err)
	}
}

// nodeNum folds the node name into the snowflake node space.
func nodeNum(name string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum32() % 1024)
}
