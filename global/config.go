package global

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the whole process configuration, filled from TRIBE_* env
// vars. Zero values are normalized by norm().
type Config struct {
	Addr   string // HTTP listen address
	NodeID string // gateway node id, participates in fan-out origin tags

	MongoURI string
	MongoDB  string

	RedisAddr     string // empty disables the presence mirror
	RedisPassword string
	RedisDB       int

	NatsServers []string // empty disables cross-node fan-out

	JWTSecret string

	PresenceTTL time.Duration // redis presence key TTL
	SendBuffer  int           // per-connection outbound queue size
}

func Load() *Config {
	c := &Config{
		Addr:          os.Getenv("TRIBE_ADDR"),
		NodeID:        os.Getenv("TRIBE_NODE_ID"),
		MongoURI:      os.Getenv("TRIBE_MONGO_URI"),
		MongoDB:       os.Getenv("TRIBE_MONGO_DB"),
		RedisAddr:     os.Getenv("TRIBE_REDIS_ADDR"),
		RedisPassword: os.Getenv("TRIBE_REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("TRIBE_JWT_SECRET"),
	}
	if v := os.Getenv("TRIBE_NATS_SERVERS"); v != "" {
		c.NatsServers = strings.Split(v, ",")
	}
	if v := os.Getenv("TRIBE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
	if v := os.Getenv("TRIBE_PRESENCE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PresenceTTL = d
		}
	}
	if v := os.Getenv("TRIBE_SEND_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SendBuffer = n
		}
	}
	c.norm()
	return c
}

func (c *Config) norm() {
	if c.Addr == "" {
		c.Addr = ":5001"
	}
	if c.NodeID == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "node-1"
		}
		c.NodeID = host
	}
	if c.MongoURI == "" {
		c.MongoURI = "mongodb://localhost:27017"
	}
	if c.MongoDB == "" {
		c.MongoDB = "tribe"
	}
	if c.JWTSecret == "" {
		c.JWTSecret = "dev-secret-change-me"
	}
	if c.PresenceTTL <= 0 {
		c.PresenceTTL = 60 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
}
