// Package universe integrates the ticketing SaaS. Three of the four event
// sources live here: the authenticated GraphQL host-events adapter, the
// public JSON adapter and the public HTML/JSON-LD crawl adapter. All three
// share one authenticated client and one failure contract: an adapter never
// returns an error, it logs and contributes an empty list.
package universe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/church-studio/venue-api/internal/core/config"
	"github.com/church-studio/venue-api/internal/core/httpx"
)

// tokenExpirySlack refreshes the cached bearer token slightly before its
// declared expiry so a request never rides an about-to-expire token.
const tokenExpirySlack = 15 * time.Second

// publicFetchTimeout bounds unauthenticated page and JSON fetches.
const publicFetchTimeout = 12 * time.Second

// Client talks to the ticketing SaaS. It caches the client-credentials
// bearer token until shortly before expiry and refreshes lazily on the next
// call.
type Client struct {
	cfg  config.UniverseConfig
	http *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClient creates a Universe client from config.
func NewClient(cfg config.UniverseConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: httpx.NewClient(httpx.DefaultTimeout),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns a bearer token for the GraphQL API. A static
// universe.access_token config value short-circuits the OAuth grant.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.cfg.AccessToken != "" {
		return c.cfg.AccessToken, nil
	}
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", fmt.Errorf("missing universe.client_id / universe.client_secret (or set universe.access_token)")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.expires) > tokenExpirySlack {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := httpx.NewRequest(ctx, http.MethodPost, c.cfg.TokenURL, bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	})
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("universe token failed (%d)", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", fmt.Errorf("universe token response is not JSON: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("universe OAuth response missing access_token")
	}

	ttl := tok.ExpiresIn
	if ttl <= 0 {
		ttl = 3600
	}
	c.token = tok.AccessToken
	c.expires = time.Now().Add(time.Duration(ttl) * time.Second)

	return c.token, nil
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// GQL executes one GraphQL query and returns the raw data object.
// A non-empty errors array counts as failure.
func (c *Client) GQL(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := c.cfg.APIBase
	if !strings.HasPrefix(c.cfg.GraphQLPath, "/") {
		endpoint += "/"
	}
	endpoint += c.cfg.GraphQLPath

	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, err
	}

	req, err := httpx.NewRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body), map[string]string{
		"Authorization": "Bearer " + token,
		"Content-Type":  "application/json",
		"Accept":        "application/json",
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("universe graphql %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	var out gqlResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("universe graphql response is not JSON: %w", err)
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("universe graphql errors: %s", strings.Join(msgs, "; "))
	}

	return out.Data, nil
}

// GQLSafe is GQL with the adapter failure contract applied: any error is
// logged and swallowed, returning nil.
func (c *Client) GQLSafe(ctx context.Context, query string, variables map[string]any) json.RawMessage {
	data, err := c.GQL(ctx, query, variables)
	if err != nil {
		slog.Warn("universe graphql query failed", "error", err)
		return nil
	}
	return data
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
