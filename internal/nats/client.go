// Package nats publishes mediator activity to NATS JetStream so realtime
// subscribers learn about new mediator messages and room retitles.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/eldersfive/mediator/pkg/logger"
)

// ClientName identifies the mediator in server connection listings.
const ClientName = "eldersfive-mediator"

// ErrNotConnected is returned by Ping while the connection is down or reconnecting.
var ErrNotConnected = errors.New("nats: not connected")

// Config holds NATS connection settings. TLS is enabled when all three
// file paths are set.
type Config struct {
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

func (c Config) options(log *logger.Logger) []nats.Option {
	opts := []nats.Option{
		nats.Name(ClientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats connection lost", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats connection restored", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error("nats async error", zap.Error(err))
		}),
	}
	if c.CAFile != "" && c.CertFile != "" && c.KeyFile != "" {
		opts = append(opts, nats.RootCAs(c.CAFile), nats.ClientCert(c.CertFile, c.KeyFile))
	}
	if c.Token != "" {
		opts = append(opts, nats.Token(c.Token))
	}
	return opts
}

// Client owns one NATS connection and its JetStream context.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
	log  *logger.Logger
}

// Connect dials cfg.URL. The connection reconnects forever once established.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.NewNop()
	}

	nc, err := nats.Connect(cfg.URL, cfg.options(log)...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	log.Info("connected to nats", zap.String("url", nc.ConnectedUrl()))
	return &Client{conn: nc, js: js, log: log}, nil
}

// Close drains pending publishes, then closes the connection.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.log.Warn("nats drain failed", zap.Error(err))
		c.conn.Close()
	}
}

// IsConnected reports whether the connection is currently up.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Ping round-trips to the server.
func (c *Client) Ping(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.conn.FlushWithContext(ctx)
}
