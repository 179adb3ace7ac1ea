// Package blob stores the side files of an accepted message: attachment bytes
// and the rendered HTML body. Records in the message store reference them by name.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode"
)

// Kind selects the storage area a blob is written to.
type Kind string

const (
	KindAttachment Kind = "attachments"
	KindHTML       Kind = "html"
)

// ErrAttachmentWriteFailed wraps failures to persist an attachment.
var ErrAttachmentWriteFailed = errors.New("attachment write failed")

// Store writes named blobs. Names are unique per message stamp, so Put never
// needs to overwrite.
type Store interface {
	Put(ctx context.Context, kind Kind, name, contentType string, data []byte) error
	Name() string
}

// AttachmentName returns the stored name for an attachment: "{stamp}_{filename}".
func AttachmentName(stamp int64, filename string) string {
	return fmt.Sprintf("%d_%s", stamp, SanitizeFilename(filename))
}

// HTMLName returns the stored name of a message's rendered HTML body.
func HTMLName(stamp int64) string {
	return fmt.Sprintf("%d_email.html", stamp)
}

// SanitizeFilename reduces a sender-supplied file name to a safe base name.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)

	name = strings.ReplaceAll(name, "..", "_")
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == ':' || r == 0:
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == "_" {
		return "attachment"
	}
	return name
}
