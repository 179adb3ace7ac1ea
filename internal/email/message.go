// Package email defines the parsed message model produced from an SMTP DATA stream.
package email

import (
	"strings"
	"time"
)

// Email represents a parsed email message with all its components.
// Address fields hold display strings ("Name <addr>" or a bare address).
type Email struct {
	From        string
	To          []string
	Cc          []string
	Subject     string
	Date        time.Time
	MessageID   string
	TextBody    string
	HtmlBody    string
	Attachments []Attachment
	RawHeaders  map[string][]string
}

// Attachment represents a file attached to an email message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ToText returns the recipient display strings joined the way mail clients show them.
func (e *Email) ToText() string {
	return strings.Join(e.To, ", ")
}
