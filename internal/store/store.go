// Package store defines the persisted message record and the append-only
// MessageStore contract implemented by the jsonstore and sqlitestore backends.
package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/atomic"
)

// DateLayout renders record dates as ISO-8601 UTC with millisecond precision.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrStoreWriteFailed is returned when a record could not be durably appended.
var ErrStoreWriteFailed = errors.New("store write failed")

// Attachment references a side file written under the attachments area.
type Attachment struct {
	Filename string `json:"filename"`
}

// Message is one accepted email as persisted in the store.
type Message struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Date        string       `json:"date"`
	Subject     string       `json:"subject"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	HTMLFile    string       `json:"htmlFile"`
	RemoteAddr  string       `json:"remoteAddr,omitempty"`
	TLS         bool         `json:"tls"`
}

// Store is an append-only collection of messages.
type Store interface {
	// Append durably adds msg. It returns only after the record is persisted.
	Append(ctx context.Context, msg *Message) error
	// List returns all records in append order. Read failures degrade to an
	// empty result and are logged by the backend.
	List(ctx context.Context) []Message
	Close() error
}

// Stamper hands out strictly increasing millisecond timestamps. When the clock
// has not advanced since the previous stamp (or went backwards) the previous
// value plus one is used.
type Stamper struct {
	last atomic.Int64
	now  func() time.Time
}

// NewStamper returns a Stamper reading the wall clock.
func NewStamper() *Stamper {
	return &Stamper{now: time.Now}
}

// NewStamperWithClock returns a Stamper reading now.
func NewStamperWithClock(now func() time.Time) *Stamper {
	return &Stamper{now: now}
}

// Next returns the next stamp.
func (s *Stamper) Next() int64 {
	for {
		last := s.last.Load()
		next := s.now().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if s.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

// NextID returns the next stamp in decimal, the form used for Message.ID.
func (s *Stamper) NextID() string {
	return strconv.FormatInt(s.Next(), 10)
}
