package smtp

import (
	"context"
	"log/slog"
	"net"

	"blitiri.com.ar/go/spf"
	gosmtp "github.com/emersion/go-smtp"
	gonanoid "github.com/matoous/go-nanoid"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/email"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/inbox"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/store"
)

// AccessChecker answers sender and recipient list lookups.
type AccessChecker interface {
	IsBlacklisted(addr string) bool
	IsWhitelisted(addr string) bool
}

// Committer persists accepted messages.
type Committer interface {
	Accept(ctx context.Context, env inbox.Envelope, msg *email.Email) (*store.Message, error)
	Wait(ctx context.Context) error
}

// spfChecker evaluates the sender's SPF policy for the connecting IP.
type spfChecker func(ctx context.Context, ip net.IP, domain, sender string) spf.Result

func checkSPF(ctx context.Context, ip net.IP, domain, sender string) spf.Result {
	result, _ := spf.CheckHostWithSender(ip, domain, sender, spf.WithContext(ctx))
	return result
}

// backend creates a session per connection. go-smtp calls Login after a
// successful AUTH exchange and AnonymousLogin on the first MAIL without one.
type backend struct {
	auth         *Authenticator
	authRequired bool
	lists        AccessChecker
	inbox        Committer
	spf          spfChecker
}

func (b *backend) Login(state *gosmtp.ConnectionState, username, password string) (gosmtp.Session, error) {
	logger := connLogger(state)
	if err := b.auth.Verify(username, password); err != nil {
		logger.Warn("authentication failed",
			"username", username,
			"error", err,
		)
		return nil, errSMTPAuthFailed
	}
	sess := b.newSession(state, logger)
	sess.user = username
	sess.logger.Info("authentication successful", "username", username)
	return sess, nil
}

func (b *backend) AnonymousLogin(state *gosmtp.ConnectionState) (gosmtp.Session, error) {
	if b.authRequired && b.auth.Enabled() {
		connLogger(state).Warn("unauthenticated MAIL refused")
		return nil, errSMTPAuthRequired
	}
	return b.newSession(state, connLogger(state)), nil
}

func (b *backend) newSession(state *gosmtp.ConnectionState, logger *slog.Logger) *session {
	id, err := gonanoid.Nanoid()
	if err != nil {
		// generating nanoid shouldn't really fail, and if, panicing is OK
		panic(err)
	}

	s := &session{
		backend:  b,
		id:       id,
		remoteIP: remoteIP(state.RemoteAddr),
		tls:      state.TLS.HandshakeComplete,
		logger:   logger.With("session_id", id),
	}
	if state.RemoteAddr != nil {
		s.remoteAddr = state.RemoteAddr.String()
	}
	s.logger.Info("session opened",
		"helo", state.Hostname,
		"tls", s.tls,
	)
	return s
}

func connLogger(state *gosmtp.ConnectionState) *slog.Logger {
	addr := ""
	if state.RemoteAddr != nil {
		addr = state.RemoteAddr.String()
	}
	return slog.With("remote_addr", addr)
}

func remoteIP(addr net.Addr) net.IP {
	if addr == nil {
		return nil
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}
