package universe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/church-studio/venue-api/internal/core/config"
)

func TestTokenStaticOverride(t *testing.T) {
	c := NewClient(config.UniverseConfig{AccessToken: "static-token"})

	tok, err := c.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "static-token", tok)
}

func TestTokenMissingCredentials(t *testing.T) {
	c := NewClient(config.UniverseConfig{})
	_, err := c.Token(context.Background())
	require.Error(t, err)
}

func TestTokenIsCachedUntilNearExpiry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "client_credentials", body["grant_type"])

		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	}))
	defer srv.Close()

	c := NewClient(config.UniverseConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     srv.URL,
	})

	for i := 0; i < 3; i++ {
		tok, err := c.Token(context.Background())
		require.NoError(t, err)
		require.Equal(t, "tok-1", tok)
	}
	require.Equal(t, int32(1), hits.Load())

	// Within the pre-expiry slack the token is refreshed.
	c.expires = time.Now().Add(10 * time.Second)
	_, err := c.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), hits.Load())
}

func TestGQLReturnsData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer static-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{"host":{"name":"The Church Studio"}}}`))
	}))
	defer srv.Close()

	c := NewClient(config.UniverseConfig{
		AccessToken: "static-token",
		APIBase:     srv.URL,
		GraphQLPath: "/graphql",
	})

	data, err := c.GQL(context.Background(), "query { host { name } }", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"host":{"name":"The Church Studio"}}`, string(data))
}

func TestGQLErrorsArrayIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null,"errors":[{"message":"host not found"}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.UniverseConfig{
		AccessToken: "t",
		APIBase:     srv.URL,
		GraphQLPath: "/graphql",
	})

	_, err := c.GQL(context.Background(), "query {}", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "host not found")

	require.Nil(t, c.GQLSafe(context.Background(), "query {}", nil))
}

func TestGQLNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(config.UniverseConfig{
		AccessToken: "t",
		APIBase:     srv.URL,
		GraphQLPath: "/graphql",
	})

	_, err := c.GQL(context.Background(), "query {}", nil)
	require.Error(t, err)
}
