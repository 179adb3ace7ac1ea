// Package telegram implements a Notifier that posts message summaries to a
// Telegram chat through the Bot API, followed by one document per attachment.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/notify"
)

const defaultAPIURL = "https://api.telegram.org"

// maxRetries is the maximum number of retry attempts for transient failures.
const maxRetries = 3

// baseRetryDelay is the initial delay for exponential backoff.
const baseRetryDelay = 1 * time.Second

// Config holds the bot credentials and target chat.
type Config struct {
	BotToken string
	ChatID   string
	// APIURL overrides the Bot API base URL.
	APIURL string
}

// Notifier talks to the Telegram Bot API.
type Notifier struct {
	chatID     string
	baseURL    string
	httpClient *http.Client
	retryDelay time.Duration
}

// New creates a Notifier.
func New(cfg Config) *Notifier {
	return newWithClient(cfg, &http.Client{Timeout: 30 * time.Second})
}

func newWithClient(cfg Config, client *http.Client) *Notifier {
	api := cfg.APIURL
	if api == "" {
		api = defaultAPIURL
	}
	return &Notifier{
		chatID:     cfg.ChatID,
		baseURL:    strings.TrimRight(api, "/") + "/bot" + cfg.BotToken,
		httpClient: client,
		retryDelay: baseRetryDelay,
	}
}

// Name returns the notifier name.
func (t *Notifier) Name() string {
	return "telegram"
}

// Notify sends the summary message, then each attachment as a document.
// A failed document is logged and does not fail the notification.
func (t *Notifier) Notify(ctx context.Context, n *notify.Notification) error {
	if err := t.sendMessage(ctx, formatMessage(n)); err != nil {
		return err
	}

	for _, f := range n.Files {
		if err := t.sendDocument(ctx, f); err != nil {
			slog.Warn("failed to send attachment to telegram",
				"message_id", n.Message.ID,
				"file", f.Name,
				"error", err,
			)
		}
	}
	return nil
}

// formatMessage renders the summary in Telegram's legacy Markdown.
func formatMessage(n *notify.Notification) string {
	var b strings.Builder
	b.WriteString("📧 *New Email Received!*\n")
	fmt.Fprintf(&b, "🟢 *From*    : `%s`\n", inlineCode(n.Message.From))
	fmt.Fprintf(&b, "🔵 *To*      : `%s`\n", inlineCode(n.Message.To))
	fmt.Fprintf(&b, "📅 *Date*    : `%s`\n", inlineCode(n.Message.Date))
	fmt.Fprintf(&b, "✉️ *Subject* : *%s*\n", strings.ReplaceAll(n.Message.Subject, "*", ""))
	fmt.Fprintf(&b, "\n📄 *Body:*\n```\n%s\n```", strings.ReplaceAll(n.Body(notify.BodyLimit), "```", "'''"))
	return b.String()
}

func inlineCode(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}

func (t *Notifier) sendMessage(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return t.call(ctx, "sendMessage", "application/json", payload)
}

func (t *Notifier) sendDocument(ctx context.Context, f notify.File) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", t.chatID); err != nil {
		return err
	}
	if err := mw.WriteField("caption", "📎 "+f.Name); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("document", f.Name)
	if err != nil {
		return fmt.Errorf("failed to build document upload: %w", err)
	}
	if _, err := part.Write(f.Content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return t.call(ctx, "sendDocument", mw.FormDataContentType(), buf.Bytes())
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type apiError struct {
	method     string
	statusCode int
	message    string
	retryAfter time.Duration
	transient  bool
}

func (e *apiError) Error() string {
	return fmt.Sprintf("telegram %s failed (HTTP %d): %s", e.method, e.statusCode, e.message)
}

// call performs method with retries on network errors, 429 and 5xx.
func (t *Notifier) call(ctx context.Context, method, contentType string, data []byte) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := t.do(ctx, method, contentType, data)
		if err == nil {
			return nil
		}
		lastErr = err

		ae, ok := err.(*apiError)
		if !ok || !ae.transient {
			return err
		}

		delay := ae.retryAfter
		if delay <= 0 {
			delay = notify.BackoffDelay(t.retryDelay, attempt)
		}
		slog.Info("transient telegram error, retrying",
			"method", method,
			"status", ae.statusCode,
			"delay", delay,
		)
		if err := notify.SleepWithContext(ctx, delay); err != nil {
			return fmt.Errorf("context cancelled during retry wait: %w", err)
		}
	}
	return fmt.Errorf("telegram %s failed after %d retries: %w", method, maxRetries, lastErr)
}

func (t *Notifier) do(ctx context.Context, method, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/"+method, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &apiError{method: method, message: err.Error(), transient: true}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err == nil && ar.OK && resp.StatusCode == http.StatusOK {
		return nil
	}

	ae := &apiError{
		method:     method,
		statusCode: resp.StatusCode,
		message:    ar.Description,
	}
	if ae.message == "" {
		ae.message = strings.TrimSpace(string(raw))
	}
	if ar.Parameters.RetryAfter > 0 {
		ae.retryAfter = time.Duration(ar.Parameters.RetryAfter) * time.Second
	} else if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
		ae.retryAfter = time.Duration(s) * time.Second
	}
	ae.transient = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return ae
}
