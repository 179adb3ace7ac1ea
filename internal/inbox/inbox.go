// Package inbox commits accepted messages: side files first, then the record,
// then an asynchronous notification.
package inbox

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/blob"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/email"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/notify"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/store"
)

const (
	unknownAddress = "Unknown"
	noSubject      = "No Subject"
)

// Envelope is the SMTP-level context of a message.
type Envelope struct {
	SessionID  string
	RemoteAddr string
	TLS        bool
	MailFrom   string
	Recipients []string
}

// Submitter accepts notifications without blocking.
type Submitter interface {
	Submit(n *notify.Notification) error
}

// Inbox is the commit pipeline.
type Inbox struct {
	store   store.Store
	blobs   blob.Store
	notify  Submitter
	stamper *store.Stamper
	now     func() time.Time

	inflight sync.WaitGroup
}

// New creates an Inbox. notifier may be nil to disable notifications.
func New(st store.Store, blobs blob.Store, notifier Submitter) *Inbox {
	return &Inbox{
		store:   st,
		blobs:   blobs,
		notify:  notifier,
		stamper: store.NewStamper(),
		now:     time.Now,
	}
}

// Accept persists msg. The returned record is durable once err is nil. An
// error wrapping store.ErrStoreWriteFailed means the record was not appended.
func (in *Inbox) Accept(ctx context.Context, env Envelope, msg *email.Email) (*store.Message, error) {
	in.inflight.Add(1)
	defer in.inflight.Done()

	stamp := in.stamper.Next()
	logger := slog.With(
		"session_id", env.SessionID,
		"remote_addr", env.RemoteAddr,
		"message_id", fmt.Sprint(stamp),
	)

	attachments, files := in.writeAttachments(ctx, logger, stamp, msg.Attachments)
	htmlFile := in.writeHTML(ctx, logger, stamp, msg)

	rec := &store.Message{
		ID:          fmt.Sprint(stamp),
		From:        orDefault(msg.From, unknownAddress),
		To:          orDefault(msg.ToText(), unknownAddress),
		Date:        in.now().UTC().Format(store.DateLayout),
		Subject:     orDefault(msg.Subject, noSubject),
		Content:     msg.TextBody,
		Attachments: attachments,
		HTMLFile:    htmlFile,
		RemoteAddr:  env.RemoteAddr,
		TLS:         env.TLS,
	}
	if rec.Content == "" {
		rec.Content = msg.HtmlBody
	}

	if err := in.store.Append(ctx, rec); err != nil {
		logger.Error("failed to append message record, side files orphaned",
			"attachments", len(attachments),
			"html_file", htmlFile,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", store.ErrStoreWriteFailed, err)
	}

	logger.Info("message stored",
		"from", rec.From,
		"to", rec.To,
		"subject", rec.Subject,
		"attachments", len(attachments),
	)

	if in.notify != nil {
		if err := in.notify.Submit(&notify.Notification{Message: *rec, Files: files}); err != nil {
			logger.Warn("notification not queued", "error", err)
		}
	}
	return rec, nil
}

// Wait blocks until every in-flight Accept has returned or ctx is done.
func (in *Inbox) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		in.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns every stored record.
func (in *Inbox) List(ctx context.Context) []store.Message {
	return in.store.List(ctx)
}

func (in *Inbox) writeAttachments(ctx context.Context, logger *slog.Logger, stamp int64, atts []email.Attachment) ([]store.Attachment, []notify.File) {
	refs := make([]store.Attachment, 0, len(atts))
	files := make([]notify.File, 0, len(atts))
	used := make(map[string]bool, len(atts))

	for i, att := range atts {
		name := blob.AttachmentName(stamp, att.Filename)
		if used[name] {
			name = blob.AttachmentName(stamp, fmt.Sprintf("%d_%s", i, blob.SanitizeFilename(att.Filename)))
		}
		used[name] = true

		if err := in.blobs.Put(ctx, blob.KindAttachment, name, att.ContentType, att.Content); err != nil {
			logger.Error("attachment dropped",
				"filename", att.Filename,
				"error", fmt.Errorf("%w: %w", blob.ErrAttachmentWriteFailed, err),
			)
			continue
		}
		refs = append(refs, store.Attachment{Filename: name})
		files = append(files, notify.File{Name: name, ContentType: att.ContentType, Content: att.Content})
	}
	return refs, files
}

func (in *Inbox) writeHTML(ctx context.Context, logger *slog.Logger, stamp int64, msg *email.Email) string {
	name := blob.HTMLName(stamp)
	if err := in.blobs.Put(ctx, blob.KindHTML, name, "text/html; charset=utf-8", []byte(RenderHTML(msg))); err != nil {
		logger.Error("failed to write html body", "error", err)
		return ""
	}
	return name
}

// RenderHTML returns the HTML body, or the text body escaped inside <pre>.
func RenderHTML(msg *email.Email) string {
	if msg.HtmlBody != "" {
		return msg.HtmlBody
	}
	return "<pre>" + html.EscapeString(msg.TextBody) + "</pre>"
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
