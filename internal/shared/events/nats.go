// Package events provides a NATS publisher for domain events.
//
// The foundation service emits events that later pipeline phases (draft
// generation, scheduling, publishing) will consume. Publishing is fire-and-forget:
// a failed publish is logged by the caller, never surfaced to the client.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Event types emitted by the foundation service.
const (
	TypeUserRegistered    = "user.registered"
	TypeOAuthConnected    = "oauth.connected"
	TypeOAuthDisconnected = "oauth.disconnected"
	TypeOAuthRefreshed    = "oauth.refreshed"
)

// Config holds NATS client configuration.
type Config struct {
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
	DrainTimeout  time.Duration `mapstructure:"drain_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "postforge",
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
		DrainTimeout:  30 * time.Second,
	}
}

// Event represents a domain event.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// NewEvent creates a new event with the given type and data.
func NewEvent(eventType string, data map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    "postforge",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Client wraps a NATS connection for event publishing.
//
// A nil *Client is valid and drops all events, so callers never need to guard
// against an unconfigured broker.
type Client struct {
	conn   *nats.Conn
	config Config
}

// New creates a new NATS client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 10
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DrainTimeout(cfg.DrainTimeout),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Client{
		conn:   conn,
		config: cfg,
	}, nil
}

// Publish publishes an event to the subject derived from its type
// ("events." + event type).
func (c *Client) Publish(ctx context.Context, event Event) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	return c.conn.Publish("events."+event.Type, data)
}

// Connected reports whether the client holds a live connection.
func (c *Client) Connected() bool {
	return c != nil && c.conn != nil && c.conn.IsConnected()
}

// Close drains and closes the connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Drain()
}
