package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/accesslist"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/blob"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/config"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/inbox"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/notify"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/notify/graph"
	natsnotify "github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/notify/nats"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/notify/ses"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/notify/stdout"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/notify/telegram"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/smtp"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/store"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/store/jsonstore"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/store/sqlitestore"
	smtptls "github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/tls"
)

// drainTimeout bounds how long queued notifications may take after the
// SMTP server has stopped.
const drainTimeout = 30 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "starts the SMTP server",
		Long: `Starts the SMTP server

This is also what runs when no subcommand is given. The server stops on
SIGINT or SIGTERM after in-flight messages are committed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
		DisableAutoGenTag: true,
	}
}

func (c *cli) serve(parent context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if parent == nil {
		parent = context.Background()
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tlsMode, err := smtptls.ParseMode(cfg.TLS.Mode)
	if err != nil {
		return err
	}
	tlsConfig, err := smtptls.Setup(tlsMode, cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.SMTP.Hostname)
	if err != nil {
		return fmt.Errorf("failed to setup TLS: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open message store: %w", err)
	}
	defer st.Close()

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open side storage: %w", err)
	}

	notifier, err := selectNotifier(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to setup notifications: %w", err)
	}
	if closer, ok := notifier.(interface{ Close() }); ok {
		defer closer.Close()
	}

	dispatcher := notify.NewDispatcher(notifier, notify.DispatcherOptions{
		QueueSize: cfg.Notify.QueueSize,
		Workers:   cfg.Notify.Workers,
		Timeout:   cfg.Notify.Timeout,
	})

	lists := accesslist.New(cfg.Access.BlacklistFile, cfg.Access.WhitelistFile)
	warnEmptyWhitelist(lists)

	server := smtp.New(smtp.ServerConfig{
		ListenAddr:        cfg.SMTP.Listen,
		Hostname:          cfg.SMTP.Hostname,
		TLSMode:           tlsMode,
		TLSConfig:         tlsConfig,
		AuthUsername:      cfg.SMTP.Username,
		AuthPassword:      cfg.SMTP.Password,
		AuthRequired:      cfg.SMTP.AuthRequired,
		AllowInsecureAuth: cfg.SMTP.AllowInsecureAuth,
		MaxMessageBytes:   int(cfg.SMTP.MaxMessageSize),
		MaxRecipients:     cfg.SMTP.MaxRecipients,
		ReadTimeout:       cfg.SMTP.ReadTimeout,
		WriteTimeout:      cfg.SMTP.WriteTimeout,
		SPFCheck:          cfg.SMTP.SPFCheck,
		Lists:             lists,
		Inbox:             inbox.New(st, blobs, dispatcher),
	})

	slog.Info("starting tempmail",
		"listen", cfg.SMTP.Listen,
		"hostname", cfg.SMTP.Hostname,
		"store", cfg.Store.Backend,
		"blobs", blobs.Name(),
		"notifier", notifier.Name(),
		"auth_enabled", cfg.AuthEnabled(),
		"tls_mode", string(tlsMode),
	)

	// Blocks until the context is cancelled
	serveErr := server.ListenAndServe(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		slog.Warn("notification queue not drained", "error", err)
	}
	stats := dispatcher.Stats()
	slog.Info("tempmail stopped",
		"notifications_sent", stats.Sent,
		"notifications_failed", stats.Failed,
		"notifications_dropped", stats.Dropped,
	)

	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}
	return nil
}

func warnEmptyWhitelist(lists *accesslist.Store) {
	entries, err := lists.Whitelist.Entries()
	if err != nil {
		slog.Warn("whitelist unreadable", "path", lists.Whitelist.Path(), "error", err)
		return
	}
	if len(entries) == 0 {
		slog.Warn("whitelist is empty, every recipient will be refused", "path", lists.Whitelist.Path())
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		slog.Info("using sqlite message store", "path", cfg.Store.SQLitePath)
		return sqlitestore.Open(cfg.Store.SQLitePath)
	case "json", "":
		slog.Info("using json message store", "path", cfg.Store.Path)
		return jsonstore.New(cfg.Store.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func openBlobs(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.Store.BlobBackend {
	case "minio":
		slog.Info("using object storage for side files",
			"endpoint", cfg.Minio.Endpoint,
			"bucket", cfg.Minio.Bucket,
		)
		return blob.NewMinio(ctx, blob.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Region:    cfg.Minio.Region,
			Secure:    cfg.Minio.Secure,
		})
	case "fs", "":
		return blob.NewFS(cfg.Store.AttachmentsDir, cfg.Store.HTMLDir)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Store.BlobBackend)
	}
}

// selectNotifier chooses the notification channel based on configuration.
// An explicit notify.provider must be fully configured. Otherwise the first
// configured channel wins (telegram, graph, ses, nats) and stdout is the
// fallback.
func selectNotifier(ctx context.Context, cfg *config.Config) (notify.Notifier, error) {
	provider := cfg.Notify.Provider
	if provider == "" {
		provider = detectProvider(cfg)
		slog.Info("notification provider auto-detected", "provider", provider)
	}

	switch provider {
	case "telegram":
		if !cfg.TelegramConfigured() {
			return nil, fmt.Errorf("telegram provider selected but TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required")
		}
		return telegram.New(telegram.Config{
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
		}), nil

	case "ses":
		if !cfg.SESConfigured() {
			return nil, fmt.Errorf("ses provider selected but SES_REGION, SES_SENDER and SES_RECIPIENT are required")
		}
		return ses.New(ctx, ses.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.SES.Sender,
			Recipient:       cfg.SES.Recipient,
		})

	case "graph":
		if !cfg.GraphConfigured() {
			return nil, fmt.Errorf("graph provider selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET, GRAPH_SENDER and GRAPH_RECIPIENT are required")
		}
		return graph.New(graph.Config{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			Sender:       cfg.Graph.Sender,
			Recipient:    cfg.Graph.Recipient,
		}), nil

	case "nats":
		if !cfg.NATSConfigured() {
			return nil, fmt.Errorf("nats provider selected but NATS_URL is required")
		}
		return natsnotify.New(natsnotify.Config{
			URL:     cfg.NATS.URL,
			Subject: cfg.NATS.Subject,
			Name:    "tempmail",
		})

	case "stdout":
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown notification provider %q", provider)
	}
}

func detectProvider(cfg *config.Config) string {
	switch {
	case cfg.TelegramConfigured():
		return "telegram"
	case cfg.GraphConfigured():
		return "graph"
	case cfg.SESConfigured():
		return "ses"
	case cfg.NATSConfigured():
		return "nats"
	default:
		return "stdout"
	}
}
