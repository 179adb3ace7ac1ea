// Package nats implements a Notifier that publishes a JSON event for each
// accepted message on a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/notify"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/store"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "tempmail.received"

// Config holds the server URL and the subject to publish on.
type Config struct {
	URL     string
	Subject string
	Name    string
}

// Publisher is the subset of *nats.Conn the notifier uses.
type Publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// Event is the published payload.
type Event struct {
	Message     store.Message `json:"message"`
	Attachments []string      `json:"attachments"`
}

// Notifier publishes events.
type Notifier struct {
	conn    Publisher
	closer  func()
	subject string
}

// New connects to the NATS server.
func New(cfg Config) (*Notifier, error) {
	name := cfg.Name
	if name == "" {
		name = "tempmail"
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.PingInterval(30*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", cfg.URL, err)
	}
	n := NewWithPublisher(conn, cfg.Subject)
	n.closer = conn.Close
	return n, nil
}

// NewWithPublisher creates a Notifier on an existing connection.
func NewWithPublisher(conn Publisher, subject string) *Notifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Notifier{conn: conn, subject: subject}
}

// Name returns the notifier name.
func (n *Notifier) Name() string {
	return "nats"
}

// Notify publishes the event and waits for the server to acknowledge the flush.
func (n *Notifier) Notify(ctx context.Context, note *notify.Notification) error {
	names := make([]string, 0, len(note.Files))
	for _, f := range note.Files {
		names = append(names, f.Name)
	}
	data, err := json.Marshal(Event{Message: note.Message, Attachments: names})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", n.subject, err)
	}
	return nil
}

// Close closes the underlying connection if this Notifier opened it.
func (n *Notifier) Close() {
	if n.closer != nil {
		n.closer()
	}
}
