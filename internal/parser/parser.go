// Package parser turns a raw RFC 5322 DATA stream into an email.Email, including
// MIME multipart bodies and attachments.
package parser

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/email"
)

// ErrMalformed is returned when the stream is not a parseable message.
var ErrMalformed = errors.New("malformed message")

// Parse reads a full message from r. Header or multipart framing errors yield an
// error wrapping ErrMalformed; undecodable individual parts are logged and skipped.
func Parse(r io.Reader) (*email.Email, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if mr == nil {
		return nil, fmt.Errorf("%w: empty message", ErrMalformed)
	}
	defer mr.Close()

	result := &email.Email{
		RawHeaders: make(map[string][]string),
	}

	fields := mr.Header.Fields()
	for fields.Next() {
		key := fields.Key()
		result.RawHeaders[key] = append(result.RawHeaders[key], fields.Value())
	}

	result.From = joinAddresses(&mr.Header, "From")
	if list := displayAddresses(&mr.Header, "To"); len(list) > 0 {
		result.To = list
	}
	result.Cc = displayAddresses(&mr.Header, "Cc")

	if subject, err := mr.Header.Subject(); err == nil {
		result.Subject = subject
	} else {
		result.Subject = mr.Header.Get("Subject")
	}
	if date, err := mr.Header.Date(); err == nil {
		result.Date = date
	}
	result.MessageID = mr.Header.Get("Message-Id")

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				slog.Warn("unknown charset in part, keeping raw bytes", "error", err)
			} else {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
		}
		if part == nil {
			continue
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			handleInline(h, part.Body, result)
		case *mail.AttachmentHeader:
			if h.Get("Content-Type") == "" && h.Get("Content-Disposition") == "" {
				handleInline(&mail.InlineHeader{Header: h.Header}, part.Body, result)
				continue
			}
			handleAttachment(h, part.Body, result)
		}
	}

	return result, nil
}

// handleInline keeps the first text/plain and text/html bodies. Inline parts of
// any other type that carry a file name are kept as attachments.
func handleInline(h *mail.InlineHeader, body io.Reader, result *email.Email) {
	mediaType, params, err := h.ContentType()
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
	}

	content, err := io.ReadAll(body)
	if err != nil {
		slog.Warn("failed to read part content",
			"content_type", mediaType,
			"error", err,
		)
		return
	}

	switch mediaType {
	case "text/plain":
		if result.TextBody == "" {
			result.TextBody = string(content)
		}
	case "text/html":
		if result.HtmlBody == "" {
			result.HtmlBody = string(content)
		}
	default:
		if name := params["name"]; name != "" {
			result.Attachments = append(result.Attachments, email.Attachment{
				Filename:    name,
				ContentType: mediaType,
				Content:     content,
			})
			return
		}
		slog.Warn("unrecognized MIME part, skipping",
			"content_type", mediaType,
		)
	}
}

func handleAttachment(h *mail.AttachmentHeader, body io.Reader, result *email.Email) {
	mediaType, params, err := h.ContentType()
	if err != nil || mediaType == "" {
		mediaType = "application/octet-stream"
	}

	content, err := io.ReadAll(body)
	if err != nil {
		slog.Warn("failed to read attachment content",
			"content_type", mediaType,
			"error", err,
		)
		return
	}

	result.Attachments = append(result.Attachments, email.Attachment{
		Filename:    attachmentFilename(h, mediaType, params),
		ContentType: mediaType,
		Content:     content,
	})
}

// attachmentFilename checks Content-Disposition, then the Content-Type "name"
// parameter, then derives a name from the media type.
func attachmentFilename(h *mail.AttachmentHeader, mediaType string, params map[string]string) string {
	if fn, err := h.Filename(); err == nil && fn != "" {
		return fn
	}
	if name, ok := params["name"]; ok && name != "" {
		if decoded, err := new(mime.WordDecoder).DecodeHeader(name); err == nil {
			return decoded
		}
		return name
	}
	if parts := strings.SplitN(mediaType, "/", 2); len(parts) == 2 && parts[1] != "" {
		return "attachment." + parts[1]
	}
	return "attachment"
}

// displayAddresses renders an address header as display strings. Unparseable
// headers fall back to a comma split of the raw value.
func displayAddresses(h *mail.Header, key string) []string {
	raw := h.Get(key)
	if raw == "" {
		return nil
	}

	addresses, err := h.AddressList(key)
	if err != nil || len(addresses) == 0 {
		parts := strings.Split(raw, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if addr.Name != "" {
			result = append(result, fmt.Sprintf("%s <%s>", addr.Name, addr.Address))
		} else {
			result = append(result, addr.Address)
		}
	}
	return result
}

func joinAddresses(h *mail.Header, key string) string {
	return strings.Join(displayAddresses(h, key), ", ")
}
