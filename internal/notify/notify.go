// Package notify delivers a short summary of each accepted message to an
// external channel. Delivery is asynchronous and never affects the SMTP reply.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/store"
)

// BodyLimit is the number of body characters included in a summary.
const BodyLimit = 2000

// ErrNotificationFailed marks a notification that was dropped or could not be delivered.
var ErrNotificationFailed = errors.New("notification failed")

// File is an attachment carried along with a notification.
type File struct {
	// Name is the stored name, "{stamp}_{filename}".
	Name        string
	ContentType string
	Content     []byte
}

// Notification describes one accepted message.
type Notification struct {
	Message store.Message
	Files   []File
}

// Notifier is implemented by every notification channel.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
	Name() string
}

// Subject returns a one-line title for channels that need one.
func (n *Notification) Subject() string {
	return "New email: " + n.Message.Subject
}

// Body returns the message content trimmed and truncated to limit runes.
func (n *Notification) Body(limit int) string {
	body := strings.TrimSpace(n.Message.Content)
	runes := []rune(body)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit])
	}
	return body
}

// Summary renders a plain-text summary: envelope lines, then the truncated body.
func (n *Notification) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", n.Message.From)
	fmt.Fprintf(&b, "To: %s\n", n.Message.To)
	fmt.Fprintf(&b, "Date: %s\n", n.Message.Date)
	fmt.Fprintf(&b, "Subject: %s\n", n.Message.Subject)
	if len(n.Files) > 0 {
		names := make([]string, 0, len(n.Files))
		for _, f := range n.Files {
			names = append(names, f.Name)
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(names, ", "))
	}
	b.WriteString("\n")
	b.WriteString(n.Body(BodyLimit))
	b.WriteString("\n")
	return b.String()
}

// BackoffDelay returns base doubled attempt times.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// SleepWithContext waits for d or until ctx is done.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
