package global

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"TRIBE_ADDR", "TRIBE_NODE_ID", "TRIBE_MONGO_URI", "TRIBE_MONGO_DB",
		"TRIBE_REDIS_ADDR", "TRIBE_REDIS_PASSWORD", "TRIBE_REDIS_DB",
		"TRIBE_NATS_SERVERS", "TRIBE_JWT_SECRET", "TRIBE_PRESENCE_TTL",
		"TRIBE_SEND_BUFFER",
	} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.Addr != ":5001" {
		t.Fatalf("Addr default, got %q", c.Addr)
	}
	if c.MongoURI != "mongodb://localhost:27017" || c.MongoDB != "tribe" {
		t.Fatalf("mongo defaults, got %q %q", c.MongoURI, c.MongoDB)
	}
	if c.PresenceTTL != 60*time.Second {
		t.Fatalf("PresenceTTL default, got %v", c.PresenceTTL)
	}
	if c.SendBuffer != 256 {
		t.Fatalf("SendBuffer default, got %d", c.SendBuffer)
	}
	if c.RedisAddr != "" || len(c.NatsServers) != 0 {
		t.Fatalf("mirror and bus stay off without env, got %q %v", c.RedisAddr, c.NatsServers)
	}
}

func TestLoadReadsEveryEnvVar(t *testing.T) {
	t.Setenv("TRIBE_ADDR", ":6001")
	t.Setenv("TRIBE_NODE_ID", "gw-2")
	t.Setenv("TRIBE_MONGO_URI", "mongodb://db:27017")
	t.Setenv("TRIBE_MONGO_DB", "tribe_test")
	t.Setenv("TRIBE_REDIS_ADDR", "redis:6379")
	t.Setenv("TRIBE_REDIS_PASSWORD", "hunter2")
	t.Setenv("TRIBE_REDIS_DB", "3")
	t.Setenv("TRIBE_NATS_SERVERS", "nats://a:4222,nats://b:4222")
	t.Setenv("TRIBE_JWT_SECRET", "s3cret")
	t.Setenv("TRIBE_PRESENCE_TTL", "90s")
	t.Setenv("TRIBE_SEND_BUFFER", "512")

	c := Load()
	if c.Addr != ":6001" || c.NodeID != "gw-2" {
		t.Fatalf("addr/node, got %q %q", c.Addr, c.NodeID)
	}
	if c.RedisPassword != "hunter2" {
		t.Fatalf("RedisPassword not read, got %q", c.RedisPassword)
	}
	if c.RedisDB != 3 {
		t.Fatalf("RedisDB not read, got %d", c.RedisDB)
	}
	if len(c.NatsServers) != 2 || c.NatsServers[1] != "nats://b:4222" {
		t.Fatalf("NatsServers, got %v", c.NatsServers)
	}
	if c.PresenceTTL != 90*time.Second {
		t.Fatalf("PresenceTTL not read, got %v", c.PresenceTTL)
	}
	if c.SendBuffer != 512 {
		t.Fatalf("SendBuffer not read, got %d", c.SendBuffer)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("TRIBE_REDIS_DB", "three")
	t.Setenv("TRIBE_PRESENCE_TTL", "soon")
	t.Setenv("TRIBE_SEND_BUFFER", "lots")

	c := Load()
	if c.RedisDB != 0 {
		t.Fatalf("bad RedisDB should fall back to 0, got %d", c.RedisDB)
	}
	if c.PresenceTTL != 60*time.Second {
		t.Fatalf("bad PresenceTTL should fall back to the default, got %v", c.PresenceTTL)
	}
	if c.SendBuffer != 256 {
		t.Fatalf("bad SendBuffer should fall back to the default, got %d", c.SendBuffer)
	}
}
