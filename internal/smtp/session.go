package smtp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/mail"
	"strings"
	"time"

	"blitiri.com.ar/go/spf"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/accesslist"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/inbox"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/parser"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/store"
)

// commitTimeout bounds parsing plus persistence of one message.
const commitTimeout = 2 * time.Minute

// session holds the state of one SMTP connection. go-smtp drives it from a
// single goroutine, so it needs no locking.
type session struct {
	backend    *backend
	id         string
	remoteAddr string
	remoteIP   net.IP
	tls        bool
	user       string
	logger     *slog.Logger

	hasFrom bool
	from    string
	rcpts   []string
}

// Mail starts a transaction. A null reverse path ("<>") is accepted and skips
// the blacklist and SPF checks.
func (s *session) Mail(from string, opts gosmtp.MailOptions) error {
	s.Reset()

	addr := accesslist.Normalize(from)
	if addr != "" {
		parsed, err := mail.ParseAddress(addr)
		if err != nil || strings.Count(parsed.Address, "@") != 1 {
			s.logger.Warn("invalid MAIL FROM", "from", from)
			return errSMTPFromAddr
		}
		addr = parsed.Address

		if s.backend.lists.IsBlacklisted(addr) {
			s.logger.Warn("sender rejected",
				"from", addr,
				"error", ErrSenderBlacklisted,
			)
			return errSMTPBlacklisted
		}

		if err := s.checkSPF(addr); err != nil {
			return err
		}
	}

	s.hasFrom = true
	s.from = addr
	s.logger.Info("sender accepted", "from", addr)
	return nil
}

func (s *session) checkSPF(addr string) error {
	if s.backend.spf == nil || s.remoteIP == nil {
		return nil
	}
	domain := addr[strings.LastIndex(addr, "@")+1:]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result := s.backend.spf(ctx, s.remoteIP, domain, addr)
	switch result {
	case spf.Fail, spf.SoftFail:
		s.logger.Warn("spf check failed", "from", addr, "result", string(result))
		return errSPFFail
	case spf.TempError:
		s.logger.Warn("spf temporary error", "from", addr)
		return errSPFTemp
	case spf.PermError:
		s.logger.Warn("spf permanent error", "from", addr)
		return errSPFPerm
	}
	return nil
}

func (s *session) Rcpt(to string) error {
	if !s.hasFrom {
		return errSMTPSeq
	}

	addr := accesslist.Normalize(to)
	parsed, err := mail.ParseAddress(addr)
	if err != nil || strings.Count(parsed.Address, "@") != 1 {
		s.logger.Warn("invalid RCPT TO", "to", to)
		return errSMTPRcptAddr
	}
	addr = parsed.Address

	if !s.backend.lists.IsWhitelisted(addr) {
		s.logger.Warn("recipient rejected",
			"to", addr,
			"error", ErrRecipientNotAllowed,
		)
		return errSMTPMailbox
	}

	for _, r := range s.rcpts {
		if r == addr {
			return nil
		}
	}
	s.rcpts = append(s.rcpts, addr)
	s.logger.Info("recipient accepted", "to", addr)
	return nil
}

// Data reads the whole message, parses it and commits it. The 250 reply is
// only sent after the record append has returned.
func (s *session) Data(r io.Reader) error {
	if !s.hasFrom || len(s.rcpts) == 0 {
		return errSMTPSeq
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		var smtpErr *gosmtp.SMTPError
		if errors.As(err, &smtpErr) {
			s.logger.Warn("message refused while reading", "error", err)
			return smtpErr
		}
		s.logger.Error("failed to read message data", "error", err)
		return errSMTPReadFailed
	}

	msg, err := parser.Parse(bytes.NewReader(raw))
	if err != nil {
		s.logger.Warn("malformed message", "size", len(raw), "error", err)
		return errSMTPMalformed
	}

	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()

	rec, err := s.backend.inbox.Accept(ctx, inbox.Envelope{
		SessionID:  s.id,
		RemoteAddr: s.remoteAddr,
		TLS:        s.tls,
		MailFrom:   s.from,
		Recipients: append([]string(nil), s.rcpts...),
	}, msg)
	if err != nil {
		s.logger.Error("commit failed",
			"error", err,
			"store_write", errors.Is(err, store.ErrStoreWriteFailed),
		)
		return errSMTPStoreFailed
	}

	s.logger.Info("message accepted",
		"id", rec.ID,
		"size", len(raw),
		"recipients", len(s.rcpts),
	)
	return nil
}

// Reset clears the envelope. Authentication survives.
func (s *session) Reset() {
	s.hasFrom = false
	s.from = ""
	s.rcpts = nil
}

func (s *session) Logout() error {
	s.logger.Info("session closed")
	return nil
}
