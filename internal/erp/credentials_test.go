package erp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lojistack/erp-sync-server/internal/config"
)

func writeSecret(t *testing.T, name, value string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(value+"\n"), 0o600))
	return path
}

func TestTokenSourceToken(t *testing.T) {
	t.Parallel()

	tokenFile := writeSecret(t, "token", "configured-token")
	source := NewTokenSource(config.TenantConfig{
		Name:        "main",
		Endpoint:    "https://erp.example.com/api/v3",
		Credentials: &config.CredentialsConfig{TokenFile: tokenFile},
	})

	token, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "configured-token", token)
}

func TestTokenSourceRefresh(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-me", r.Form.Get("refresh_token"))
		fmt.Fprint(w, `{"access_token":"fresh-token"}`)
	}))
	defer server.Close()

	tokenFile := writeSecret(t, "token", "stale-token")
	refreshFile := writeSecret(t, "refresh", "refresh-me")
	source := NewTokenSource(config.TenantConfig{
		Name:     "main",
		Endpoint: "https://erp.example.com/api/v3",
		Credentials: &config.CredentialsConfig{
			TokenFile:        tokenFile,
			RefreshTokenFile: refreshFile,
			TokenURL:         server.URL,
		},
	})

	require.NoError(t, source.Refresh(context.Background()))

	// The refreshed token takes priority over the configured one
	token, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
}

func TestTokenSourceRefreshErrors(t *testing.T) {
	t.Parallel()

	t.Run("refresh not configured", func(t *testing.T) {
		t.Parallel()
		source := NewTokenSource(config.TenantConfig{Name: "main", Endpoint: "https://erp.example.com"})
		err := source.Refresh(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
	})

	t.Run("token endpoint failure", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusBadRequest)
		}))
		defer server.Close()

		refreshFile := writeSecret(t, "refresh", "refresh-me")
		source := NewTokenSource(config.TenantConfig{
			Name:     "main",
			Endpoint: "https://erp.example.com",
			Credentials: &config.CredentialsConfig{
				RefreshTokenFile: refreshFile,
				TokenURL:         server.URL,
			},
		})

		err := source.Refresh(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 400")
	})

	t.Run("empty access token", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"access_token":""}`)
		}))
		defer server.Close()

		refreshFile := writeSecret(t, "refresh", "refresh-me")
		source := NewTokenSource(config.TenantConfig{
			Name:     "main",
			Endpoint: "https://erp.example.com",
			Credentials: &config.CredentialsConfig{
				RefreshTokenFile: refreshFile,
				TokenURL:         server.URL,
			},
		})

		err := source.Refresh(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty access token")
	})
}
