package smtp

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	smtptls "github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/tls"
)

// shutdownTimeout is the maximum time to wait for in-flight commits
// during graceful shutdown.
const shutdownTimeout = 30 * time.Second

const (
	defaultMaxMessageBytes = 25 << 20
	defaultTimeout         = 60 * time.Second
)

// ServerConfig holds the configuration for an SMTP server.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":2525").
	ListenAddr string

	// Hostname is announced in the greeting and EHLO responses.
	Hostname string

	// TLSMode selects plain, STARTTLS or implicit TLS. TLSConfig must be
	// set for any mode other than none.
	TLSMode   smtptls.Mode
	TLSConfig *tls.Config

	// AuthUsername and AuthPassword configure SMTP AUTH.
	// If both are empty, AUTH is not advertised.
	AuthUsername string
	AuthPassword string

	// AuthRequired refuses MAIL from unauthenticated clients when AUTH is enabled.
	AuthRequired bool

	// AllowInsecureAuth permits AUTH over a plaintext connection.
	AllowInsecureAuth bool

	MaxMessageBytes int
	MaxRecipients   int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration

	// SPFCheck enables SPF evaluation of the MAIL FROM domain.
	SPFCheck bool

	Lists AccessChecker
	Inbox Committer
}

// Server accepts SMTP connections and applies the inbox policy to each
// transaction before committing accepted messages.
type Server struct {
	config  ServerConfig
	auth    *Authenticator
	backend *backend
	engine  *gosmtp.Server

	mu       sync.Mutex
	listener net.Listener
}

// New creates a new SMTP Server with the given configuration.
func New(cfg ServerConfig) *Server {
	if cfg.Hostname == "" {
		cfg.Hostname = "localhost"
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaultMaxMessageBytes
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultTimeout
	}

	s := &Server{
		config: cfg,
		auth:   NewAuthenticator(cfg.AuthUsername, cfg.AuthPassword),
	}

	be := &backend{
		auth:         s.auth,
		authRequired: cfg.AuthRequired,
		lists:        cfg.Lists,
		inbox:        cfg.Inbox,
	}
	if cfg.SPFCheck {
		be.spf = checkSPF
	}
	s.backend = be
	s.engine = s.newEngine(be)
	return s
}

func (s *Server) newEngine(be *backend) *gosmtp.Server {
	engine := gosmtp.NewServer(be)
	engine.Addr = s.config.ListenAddr
	engine.Domain = s.config.Hostname
	engine.MaxMessageBytes = s.config.MaxMessageBytes
	engine.MaxRecipients = s.config.MaxRecipients
	engine.ReadTimeout = s.config.ReadTimeout
	engine.WriteTimeout = s.config.WriteTimeout
	engine.AllowInsecureAuth = s.config.AllowInsecureAuth
	engine.AuthDisabled = !s.auth.Enabled()
	engine.ErrorLog = errorLog{logger: slog.With("component", "smtp")}
	if s.config.TLSMode == smtptls.ModeSTARTTLS {
		engine.TLSConfig = s.config.TLSConfig
	}

	engine.EnableAuth(sasl.Login, func(conn *gosmtp.Conn) sasl.Server {
		return sasl.NewLoginServer(func(username, password string) error {
			state := conn.State()
			sess, err := be.Login(&state, username, password)
			if err != nil {
				return err
			}
			conn.SetSession(sess)
			return nil
		})
	})
	return engine
}

// ListenAndServe starts the SMTP server and blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until the context is cancelled. On
// cancellation it stops accepting, waits up to 30 seconds for in-flight
// commits, then closes the remaining connections.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.config.TLSMode == smtptls.ModeImplicit {
		ln = tls.NewListener(ln, s.config.TLSConfig)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	slog.Info("SMTP server listening",
		"addr", ln.Addr().String(),
		"hostname", s.config.Hostname,
		"auth_enabled", s.auth.Enabled(),
		"auth_required", s.config.AuthRequired,
		"tls_mode", string(s.config.TLSMode),
		"spf_check", s.config.SPFCheck,
	)

	errc := make(chan error, 1)
	go func() {
		errc <- s.engine.Serve(ln)
	}()

	select {
	case err := <-errc:
		ln.Close()
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down SMTP server")
	// Expected error from listener close during shutdown
	ln.Close()
	<-errc

	s.waitForCommits()
	s.engine.Close()
	return nil
}

// waitForCommits waits for in-flight commits to complete,
// with a maximum timeout to prevent indefinite blocking.
func (s *Server) waitForCommits() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.config.Inbox.Wait(ctx); err != nil {
		slog.Warn("shutdown timeout reached, forcing close", "error", err)
		return
	}
	slog.Info("all commits completed")
}

// Addr returns the listener address, or empty string if not listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
