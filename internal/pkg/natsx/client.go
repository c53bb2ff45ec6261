// Package natsx opens the shared NATS connection used for inbound provider
// events and cross-node notifications.
package natsx

import (
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/ChatFox/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
	"github.com/nats-io/nats.go"
)

// Config holds the connection settings
type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// ConfigFromEnv reads NATS_URL (comma separated) and NATS_NAME.
// An empty server list means NATS is disabled.
func ConfigFromEnv() Config {
	var servers []string
	for _, s := range strings.Split(env.GetEnv("NATS_URL", ""), ",") {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}
	return Config{
		Servers: servers,
		Name:    env.GetEnv("NATS_NAME", "chatfox"),
	}
}

// Connect dials NATS with unlimited reconnects
func Connect(cfg Config) (*nats.Conn, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("[NATS] Disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("[NATS] Reconnected to %s", nc.ConnectedUrl())
		}),
	}
	return nats.Connect(strings.Join(cfg.Servers, ","), opts...)
}
