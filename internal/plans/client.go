// Package plans proxies the subscription-billing SaaS's membership plans
// into the API. The checkout flow itself stays with the billing provider;
// this package only authenticates and lists plans.
package plans

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/church-studio/venue-api/internal/core/config"
	"github.com/church-studio/venue-api/internal/core/httpx"
)

// ErrUnauthorized marks upstream 401/403 answers so the handler can
// distinguish bad credentials from a flaky upstream.
type ErrUnauthorized struct {
	Status int
}

func (e *ErrUnauthorized) Error() string {
	return fmt.Sprintf("unauthorized with billing provider (%d)", e.Status)
}

// Plan is one membership plan, prices normalized to decimals.
type Plan struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency,omitempty"`
	Interval    string          `json:"interval,omitempty"`
}

// flexNumber accepts a JSON string or number; the billing API emits ids and
// prices as either.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = flexNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		*n = ""
		return nil
	}
	*n = flexNumber(num.String())
	return nil
}

type rawPlan struct {
	ID          flexNumber `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Price       flexNumber `json:"price"`
	Amount      flexNumber `json:"amount"`
	Currency    string     `json:"currency"`
	Interval    string     `json:"interval"`
	BillingTerm string     `json:"billing_term"`
}

func (p rawPlan) toPlan() Plan {
	price := decimal.Zero
	raw := p.Price
	if raw == "" {
		raw = p.Amount
	}
	if raw != "" {
		if d, err := decimal.NewFromString(string(raw)); err == nil {
			price = d
		}
	}

	interval := p.Interval
	if interval == "" {
		interval = p.BillingTerm
	}

	return Plan{
		ID:          string(p.ID),
		Name:        p.Name,
		Description: p.Description,
		Price:       price,
		Currency:    p.Currency,
		Interval:    interval,
	}
}

// tokenExpirySlack renews the billing token slightly before its declared
// expiry; minTokenTTL guards against upstreams declaring absurdly short
// lifetimes.
const (
	tokenExpirySlack = 10 * time.Second
	minTokenTTL      = 30 * time.Second
)

// Client authenticates against the billing SaaS and lists plans.
type Client struct {
	cfg  config.PlansConfig
	http *http.Client
	base string // overrides the derived provider URL in tests

	mu      sync.Mutex
	token   string
	expires time.Time
}

func (c *Client) baseURL() string {
	if c.base != "" {
		return c.base
	}
	return fmt.Sprintf("https://%s.subscriptionflow.com", c.cfg.Site)
}

// NewClient creates a billing client from config.
func NewClient(cfg config.PlansConfig) *Client {
	return &Client{cfg: cfg, http: httpx.NewClient(httpx.DefaultTimeout)}
}

// Configured reports whether billing credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.Site != "" && c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// Token returns a cached client-credentials token, refreshing lazily.
func (c *Client) Token(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("missing plans.site / plans.client_id / plans.client_secret")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.expires) > tokenExpirySlack {
		return c.token, nil
	}

	form := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"client_credentials"},
	}

	tokenURL := c.baseURL() + "/oauth/token"
	req, err := httpx.NewRequest(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
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

	var data struct {
		AccessToken      string `json:"access_token"`
		ExpiresIn        int64  `json:"expires_in"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("billing provider returned non-JSON while getting token")
	}
	if resp.StatusCode != http.StatusOK {
		msg := data.ErrorDescription
		if msg == "" {
			msg = data.Message
		}
		if msg == "" {
			msg = "billing OAuth failed"
		}
		return "", fmt.Errorf("%s", msg)
	}
	if data.AccessToken == "" {
		return "", fmt.Errorf("billing OAuth response missing access_token")
	}

	ttl := time.Duration(data.ExpiresIn)*time.Second - 15*time.Second
	if ttl < minTokenTTL {
		ttl = minTokenTTL
	}
	c.token = data.AccessToken
	c.expires = time.Now().Add(ttl)

	return c.token, nil
}

// FetchPlans lists membership plans, trying both API path shapes the
// provider has exposed.
func (c *Client) FetchPlans(ctx context.Context) ([]Plan, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	candidates := []string{
		c.baseURL() + "/api/plans",
		c.baseURL() + "/api/v1/plans",
	}

	var lastStatus int
	for _, u := range candidates {
		ctx, cancel := context.WithTimeout(ctx, 12*time.Second)
		plansRaw, status, err := c.fetchOnce(ctx, u, token)
		cancel()
		if err != nil {
			return nil, err
		}
		if plansRaw != nil {
			out := make([]Plan, 0, len(plansRaw))
			for _, p := range plansRaw {
				out = append(out, p.toPlan())
			}
			return out, nil
		}
		lastStatus = status
	}

	if lastStatus == 0 {
		lastStatus = http.StatusBadGateway
	}
	return nil, fmt.Errorf("failed to fetch plans (%d)", lastStatus)
}

// fetchOnce returns (nil, status, nil) when this candidate URL did not
// yield a JSON plans body and the next one should be tried.
func (c *Client) fetchOnce(ctx context.Context, u, token string) ([]rawPlan, int, error) {
	req, err := httpx.NewRequest(ctx, http.MethodGet, u, nil, map[string]string{
		"Authorization": "Bearer " + token,
		"Accept":        "application/json",
	})
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, resp.StatusCode, &ErrUnauthorized{Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, nil
	}

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode != http.StatusOK || !strings.Contains(contentType, "application/json") {
		return nil, resp.StatusCode, nil
	}

	var plans []rawPlan
	if err := json.Unmarshal(raw, &plans); err == nil {
		return plans, resp.StatusCode, nil
	}
	var envelope struct {
		Data []rawPlan `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, resp.StatusCode, nil
	}
	if envelope.Data == nil {
		envelope.Data = []rawPlan{}
	}
	return envelope.Data, resp.StatusCode, nil
}
