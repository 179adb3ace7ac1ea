package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	graphScope = "https://graph.microsoft.com/.default"

	// earlyRefresh is how long before its advertised expiry a token is
	// considered stale.
	earlyRefresh = 5 * time.Minute
)

type bearer struct {
	value   string
	expires time.Time
}

func (b bearer) validAt(t time.Time) bool {
	return b.value != "" && t.Before(b.expires)
}

// tokenCache hands out an app-only access token obtained with the OAuth2
// client-credentials grant. Concurrent callers share one refresh.
type tokenCache struct {
	endpoint string
	form     url.Values
	client   *http.Client
	now      func() time.Time

	mu     sync.Mutex
	cached bearer
}

func newTokenCache(tokenURL, clientID, clientSecret string, httpClient *http.Client) *tokenCache {
	return &tokenCache{
		endpoint: tokenURL,
		form: url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {clientID},
			"client_secret": {clientSecret},
			"scope":         {graphScope},
		},
		client: httpClient,
		now:    time.Now,
	}
}

// Token returns a token that is valid for at least earlyRefresh.
func (tc *tokenCache) Token(ctx context.Context) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.cached.validAt(tc.now()) {
		return tc.cached.value, nil
	}
	b, err := tc.fetch(ctx)
	if err != nil {
		return "", err
	}
	tc.cached = b
	return b.value, nil
}

// Invalidate forgets the cached token, used after Graph answers 401.
func (tc *tokenCache) Invalidate() {
	tc.mu.Lock()
	tc.cached = bearer{}
	tc.mu.Unlock()
}

func (tc *tokenCache) fetch(ctx context.Context) (bearer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tc.endpoint, strings.NewReader(tc.form.Encode()))
	if err != nil {
		return bearer{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tc.client.Do(req)
	if err != nil {
		return bearer{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return bearer{}, fmt.Errorf("failed to read token response: %w", err)
	}

	var tr tokenResponse
	decodeErr := json.Unmarshal(body, &tr)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && tr.Error != "" {
			return bearer{}, fmt.Errorf("token endpoint returned %d: %s: %s", resp.StatusCode, tr.Error, tr.ErrorDescription)
		}
		return bearer{}, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if decodeErr != nil {
		return bearer{}, fmt.Errorf("failed to parse token response: %w", decodeErr)
	}
	if tr.AccessToken == "" {
		return bearer{}, fmt.Errorf("token response missing access_token")
	}

	return bearer{
		value:   tr.AccessToken,
		expires: tc.now().Add(time.Duration(tr.ExpiresIn)*time.Second - earlyRefresh),
	}, nil
}
