package plans

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/church-studio/venue-api/internal/core/config"
)

func newBillingClient(srvURL string) *Client {
	c := NewClient(config.PlansConfig{Site: "church", ClientID: "id", ClientSecret: "secret"})
	c.http = http.DefaultClient
	c.base = srvURL
	return c
}

func TestTokenNotConfigured(t *testing.T) {
	c := NewClient(config.PlansConfig{})
	require.False(t, c.Configured())
	_, err := c.Token(context.Background())
	require.Error(t, err)
}

func TestRawPlanPriceAndInterval(t *testing.T) {
	p := rawPlan{ID: "p1", Name: "Member", Price: "29.99", Currency: "USD", BillingTerm: "monthly"}
	plan := p.toPlan()

	require.Equal(t, "p1", plan.ID)
	require.True(t, plan.Price.Equal(decimal.RequireFromString("29.99")))
	require.Equal(t, "monthly", plan.Interval)

	// amount is the fallback price field; garbage prices become zero.
	require.True(t, rawPlan{Amount: "10"}.toPlan().Price.Equal(decimal.NewFromInt(10)))
	require.True(t, rawPlan{}.toPlan().Price.IsZero())
}

func TestFetchPlansTriesBothPaths(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.FormValue("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	mux.HandleFunc("/api/plans", func(w http.ResponseWriter, r *http.Request) {
		// Old path answers HTML; the client must fall through.
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>nope</html>"))
	})
	mux.HandleFunc("/api/v1/plans", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":1,"name":"Member","price":"29.99","billing_term":"monthly"}]}`))
	})

	c := newBillingClient(srv.URL)

	plans, err := c.FetchPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.Equal(t, "Member", plans[0].Name)
	require.True(t, plans[0].Price.Equal(decimal.RequireFromString("29.99")))
}

func TestFetchPlansUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	c := newBillingClient(srv.URL)

	_, err := c.FetchPlans(context.Background())
	var unauth *ErrUnauthorized
	require.True(t, errors.As(err, &unauth))
	require.Equal(t, http.StatusForbidden, unauth.Status)
}

func TestBillingTokenIsCached(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})

	c := newBillingClient(srv.URL)

	for i := 0; i < 3; i++ {
		_, err := c.Token(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), hits.Load())

	c.expires = time.Now().Add(5 * time.Second)
	_, err := c.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), hits.Load())
}
