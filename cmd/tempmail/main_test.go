package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/config"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/store"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestDetectProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"nothing configured", config.Config{}, "stdout"},
		{"nats", config.Config{NATS: config.NATSConfig{URL: "nats://x"}}, "nats"},
		{"ses", config.Config{SES: config.SESConfig{Region: "r", Sender: "s", Recipient: "r"}}, "ses"},
		{
			"telegram wins",
			config.Config{
				Telegram: config.TelegramConfig{BotToken: "t", ChatID: "1"},
				NATS:     config.NATSConfig{URL: "nats://x"},
			},
			"telegram",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			assert.Equal(t, tt.want, detectProvider(&cfg))
		})
	}
}

func TestSelectNotifier(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	n, err := selectNotifier(ctx, &config.Config{})
	require.NoError(t, err)
	assert.Equal(t, "stdout", n.Name())

	n, err = selectNotifier(ctx, &config.Config{
		Telegram: config.TelegramConfig{BotToken: "123:abc", ChatID: "42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "telegram", n.Name())

	n, err = selectNotifier(ctx, &config.Config{
		Notify: config.NotifyConfig{Provider: "graph"},
		Graph: config.GraphConfig{
			TenantID: "t", ClientID: "c", ClientSecret: "s",
			Sender: "from@example.com", Recipient: "ops@example.com",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "graph", n.Name())

	for _, provider := range []string{"telegram", "ses", "graph", "nats"} {
		_, err := selectNotifier(ctx, &config.Config{Notify: config.NotifyConfig{Provider: provider}})
		assert.Error(t, err, "provider %s without credentials", provider)
	}

	_, err = selectNotifier(ctx, &config.Config{Notify: config.NotifyConfig{Provider: "pager"}})
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, backend := range []string{"json", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cfg := &config.Config{Store: config.StoreConfig{
				Backend:    backend,
				Path:       filepath.Join(dir, "emails.json"),
				SQLitePath: filepath.Join(dir, "emails.db"),
			}}
			st, err := openStore(cfg)
			require.NoError(t, err)
			defer st.Close()

			ctx := context.Background()
			require.NoError(t, st.Append(ctx, &store.Message{ID: "1", Subject: backend}))
			msgs := st.List(ctx)
			require.Len(t, msgs, 1)
			assert.Equal(t, backend, msgs[0].Subject)
		})
	}

	_, err := openStore(&config.Config{Store: config.StoreConfig{Backend: "redis"}})
	assert.Error(t, err)
}

func TestOpenBlobs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blobs, err := openBlobs(context.Background(), &config.Config{Store: config.StoreConfig{
		BlobBackend:    "fs",
		AttachmentsDir: filepath.Join(dir, "attachments"),
		HTMLDir:        filepath.Join(dir, "html_emails"),
	}})
	require.NoError(t, err)
	assert.Equal(t, "fs", blobs.Name())
	assert.DirExists(t, filepath.Join(dir, "attachments"))
	assert.DirExists(t, filepath.Join(dir, "html_emails"))
}

func TestPrintMessages(t *testing.T) {
	t.Parallel()

	msgs := []store.Message{
		{ID: "1", Subject: "first"},
		{ID: "2", Subject: "second", Attachments: []store.Attachment{{Filename: "2_a.txt"}}},
		{ID: "3", Subject: "third"},
	}

	var out bytes.Buffer
	require.NoError(t, printMessages(&out, msgs, 2))
	assert.NotContains(t, out.String(), "first")
	assert.Contains(t, out.String(), "second")
	assert.Contains(t, out.String(), "third")

	out.Reset()
	require.NoError(t, printMessages(&out, nil, 0))
	assert.Equal(t, "no messages\n", out.String())
}

// setupEnv points every file the CLI touches into a temp dir.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ACCESS_WHITELIST_FILE", filepath.Join(dir, "whitelist.txt"))
	t.Setenv("ACCESS_BLACKLIST_FILE", filepath.Join(dir, "blacklist.txt"))
	t.Setenv("STORE_BACKEND", "json")
	t.Setenv("STORE_PATH", filepath.Join(dir, "emails.json"))
	t.Setenv("NOTIFY_PROVIDER", "stdout")
	t.Setenv("TLS_MODE", "none")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAccessCommands(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, "whitelist", "add", "Inbox@Temp.Test", "other@temp.test", "inbox@temp.test")
	require.NoError(t, err)
	assert.Contains(t, out, "added 2 address(es)")

	data, err := os.ReadFile(filepath.Join(dir, "whitelist.txt"))
	require.NoError(t, err)
	assert.Equal(t, "inbox@temp.test\nother@temp.test\n", string(data))

	out, err = run(t, "whitelist", "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"inbox@temp.test", "other@temp.test"}, strings.Fields(out))

	out, err = run(t, "whitelist", "remove", "OTHER@temp.test")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 address(es)")

	_, err = run(t, "blacklist", "add", "spammer@bad.test")
	require.NoError(t, err)
	out, err = run(t, "blacklist", "list")
	require.NoError(t, err)
	assert.Equal(t, "spammer@bad.test\n", out)

	_, err = run(t, "whitelist", "clear")
	require.NoError(t, err)
	out, err = run(t, "whitelist", "list")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = run(t, "whitelist", "add")
	assert.Error(t, err)
}

func TestListCommand(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "no messages\n", out)
}

func TestConfigFlag(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "--config", "/nonexistent/tempmail.yaml", "list")
	assert.Error(t, err)
}
