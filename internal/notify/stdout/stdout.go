// Package stdout implements a Notifier that prints a summary of each message
// to standard output.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/notify"
)

// Notifier writes human-readable message summaries.
type Notifier struct {
	mu     sync.Mutex
	writer io.Writer
}

// New creates a Notifier writing to os.Stdout.
func New() *Notifier {
	return &Notifier{writer: os.Stdout}
}

// NewWithWriter creates a Notifier writing to w.
func NewWithWriter(w io.Writer) *Notifier {
	return &Notifier{writer: w}
}

// Notify prints the summary. Write errors are returned.
func (p *Notifier) Notify(_ context.Context, n *notify.Notification) error {
	var b strings.Builder

	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "ID: %s\n", n.Message.ID)
	fmt.Fprintf(&b, "From: %s\n", n.Message.From)
	fmt.Fprintf(&b, "To: %s\n", n.Message.To)
	fmt.Fprintf(&b, "Date: %s\n", n.Message.Date)
	fmt.Fprintf(&b, "Subject: %s\n", n.Message.Subject)
	b.WriteString("Body:\n")
	b.WriteString(n.Body(notify.BodyLimit) + "\n")

	if len(n.Files) > 0 {
		files := make([]string, 0, len(n.Files))
		for _, f := range n.Files {
			files = append(files, fmt.Sprintf("%s (%s)", f.Name, formatSize(len(f.Content))))
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(files, ", "))
	}
	if n.Message.HTMLFile != "" {
		fmt.Fprintf(&b, "HTML: %s\n", n.Message.HTMLFile)
	}

	b.WriteString("========================================\n")

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.writer, b.String()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// Name returns the notifier name.
func (p *Notifier) Name() string {
	return "stdout"
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
