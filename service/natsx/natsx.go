package natsx

import (
	"strings"
	"sync"
	"time"

	"Tribe/tools/errs"

	"github.com/nats-io/nats.go"
)

type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

func (c *Config) norm() {
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 500 * time.Millisecond
	}
	if c.Timeout == 0 {
		c.Timeout = 3 * time.Second
	}
}

// Client is a thin Core-mode NATS wrapper. No JetStream: fan-out here is
// deliberately at-most-once, offline recipients pull on reconnect.
type Client struct {
	nc *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

func Connect(cfg Config) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errs.ErrArgs.WrapMsg("nats servers missing")
	}
	cfg.norm()
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errs.WrapMsg(err, "nats connect")
	}
	return &Client{nc: nc}, nil
}

func (c *Client) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

func (c *Client) Subscribe(subject string, h func(data []byte)) error {
	sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) { h(m.Data) })
	if err != nil {
		return errs.WrapMsg(err, "nats subscribe", "subject", subject)
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subs {
		_ = sub.Drain()
	}
	c.subs = nil
	if c.nc != nil {
		return c.nc.Drain()
	}
	return nil
}
