package erp

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

	"github.com/lojistack/erp-sync-server/internal/config"
	"github.com/lojistack/erp-sync-server/internal/httpclient"
)

const refreshTimeout = 15 * time.Second

// tokenSource resolves a tenant's bearer credential and refreshes it through
// the tenant's OAuth token endpoint when the ERP reports it as expired.
type tokenSource struct {
	tenant     config.TenantConfig
	httpClient *http.Client

	mu sync.Mutex
	// refreshed holds the most recent token obtained from the token
	// endpoint; it takes priority over the configured token once set
	refreshed string
}

// NewTokenSource creates a credential source for the given tenant
func NewTokenSource(tenant config.TenantConfig) httpclient.CredentialSource {
	return &tokenSource{
		tenant:     tenant,
		httpClient: &http.Client{Timeout: refreshTimeout},
	}
}

// Token returns the current access token
func (s *tokenSource) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshed != "" {
		return s.refreshed, nil
	}
	return s.tenant.GetToken()
}

// Refresh exchanges the tenant's refresh token for a new access token
func (s *tokenSource) Refresh(ctx context.Context) error {
	if s.tenant.Credentials == nil || s.tenant.Credentials.TokenURL == "" {
		return fmt.Errorf("credential refresh is not configured for tenant %s", s.tenant.Name)
	}

	refreshToken, err := s.tenant.GetRefreshToken()
	if err != nil {
		return err
	}
	if refreshToken == "" {
		return fmt.Errorf("no refresh token configured for tenant %s", s.tenant.Name)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, s.tenant.Credentials.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token refresh request failed for tenant %s: %w", s.tenant.Name, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token refresh failed for tenant %s: HTTP %d", s.tenant.Name, resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode token response for tenant %s: %w", s.tenant.Name, err)
	}
	if payload.AccessToken == "" {
		return fmt.Errorf("token endpoint returned an empty access token for tenant %s", s.tenant.Name)
	}

	s.mu.Lock()
	s.refreshed = payload.AccessToken
	s.mu.Unlock()

	return nil
}
