// Package erp provides the typed endpoint layer over the rate-limited HTTP
// client. Every method is tenant-scoped: each tenant has its own base URL,
// bearer credential, and request pacing.
package erp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lojistack/erp-sync-server/internal/config"
	"github.com/lojistack/erp-sync-server/internal/httpclient"
)

// ErrUnknownTenant indicates a tenant name that is not configured
var ErrUnknownTenant = errors.New("unknown tenant")

// API is the tenant-scoped read interface of the remote ERP
type API interface {
	// ListProducts returns one page of product summaries
	ListProducts(ctx context.Context, tenant string, page, limit int) ([]ProductSummary, error)

	// GetProduct returns the full product entity by id
	GetProduct(ctx context.Context, tenant string, id int64) (*ProductDetail, error)

	// ListInvoices returns one page of invoice summaries filtered by status
	ListInvoices(ctx context.Context, tenant string, page, limit int, status InvoiceStatus) ([]InvoiceSummary, error)

	// GetInvoice returns the full invoice entity by id
	GetInvoice(ctx context.Context, tenant string, id int64) (*InvoiceDetail, error)

	// FindInvoiceByNumber searches the tenant for an invoice by its number.
	// Returns httpclient.ErrNotFound when the tenant has no such invoice.
	FindInvoiceByNumber(ctx context.Context, tenant, number string) (*InvoiceSummary, error)

	// GetOrder returns the full sales order entity by id
	GetOrder(ctx context.Context, tenant string, id int64) (*OrderDetail, error)
}

// Endpoint pairs a tenant's base URL with its authenticated client
type Endpoint struct {
	BaseURL string
	Client  httpclient.Client
}

// defaultAPI is the default API implementation
type defaultAPI struct {
	endpoints map[string]Endpoint
}

// New builds the API from configuration, creating one authenticated,
// rate-limited client per tenant.
func New(cfg *config.Config) (API, error) {
	clientOpts, err := clientOptionsFromConfig(cfg.Client)
	if err != nil {
		return nil, err
	}

	endpoints := make(map[string]Endpoint, len(cfg.Tenants))
	for _, tenant := range cfg.Tenants {
		creds := NewTokenSource(tenant)
		endpoints[tenant.Name] = Endpoint{
			BaseURL: strings.TrimSuffix(tenant.Endpoint, "/"),
			Client:  httpclient.NewDefaultClient(creds, clientOpts...),
		}
	}

	return &defaultAPI{endpoints: endpoints}, nil
}

// NewWithEndpoints builds the API from pre-constructed endpoints (tests, local runs)
func NewWithEndpoints(endpoints map[string]Endpoint) API {
	return &defaultAPI{endpoints: endpoints}
}

// clientOptionsFromConfig translates the validated client config section into
// httpclient options
func clientOptionsFromConfig(cc *config.ClientConfig) ([]httpclient.Option, error) {
	if cc == nil {
		return nil, nil
	}

	var opts []httpclient.Option
	if cc.MaxAttempts > 0 {
		opts = append(opts, httpclient.WithMaxAttempts(cc.MaxAttempts))
	}
	if cc.RequestsPerSecond > 0 {
		opts = append(opts, httpclient.WithRequestsPerSecond(cc.RequestsPerSecond))
	}

	for _, d := range []struct {
		value string
		opt   func(d time.Duration) httpclient.Option
	}{
		{cc.InitialBackoff, httpclient.WithInitialBackoff},
		{cc.RateLimitDelay, httpclient.WithRateLimitDelay},
		{cc.Timeout, httpclient.WithTimeout},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("invalid client duration %q: %w", d.value, err)
		}
		opts = append(opts, d.opt(parsed))
	}

	return opts, nil
}

func (a *defaultAPI) endpoint(tenant string) (Endpoint, error) {
	ep, ok := a.endpoints[tenant]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrUnknownTenant, tenant)
	}
	return ep, nil
}

// ListProducts returns one page of product summaries
func (a *defaultAPI) ListProducts(ctx context.Context, tenant string, page, limit int) ([]ProductSummary, error) {
	ep, err := a.endpoint(tenant)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Data []ProductSummary `json:"data"`
	}
	if err := ep.Client.GetJSON(ctx, ep.BaseURL+"/products?"+query.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to list products for tenant %s: %w", tenant, err)
	}
	return resp.Data, nil
}

// GetProduct returns the full product entity by id
func (a *defaultAPI) GetProduct(ctx context.Context, tenant string, id int64) (*ProductDetail, error) {
	ep, err := a.endpoint(tenant)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data ProductDetail `json:"data"`
	}
	if err := ep.Client.GetJSON(ctx, fmt.Sprintf("%s/products/%d", ep.BaseURL, id), &resp); err != nil {
		return nil, fmt.Errorf("failed to get product %d for tenant %s: %w", id, tenant, err)
	}
	return &resp.Data, nil
}

// ListInvoices returns one page of invoice summaries filtered by status
func (a *defaultAPI) ListInvoices(
	ctx context.Context, tenant string, page, limit int, status InvoiceStatus,
) ([]InvoiceSummary, error) {
	ep, err := a.endpoint(tenant)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	query.Set("status", string(status))

	var resp struct {
		Data []InvoiceSummary `json:"data"`
	}
	if err := ep.Client.GetJSON(ctx, ep.BaseURL+"/invoices?"+query.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to list %s invoices for tenant %s: %w", status, tenant, err)
	}
	return resp.Data, nil
}

// GetInvoice returns the full invoice entity by id
func (a *defaultAPI) GetInvoice(ctx context.Context, tenant string, id int64) (*InvoiceDetail, error) {
	ep, err := a.endpoint(tenant)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data InvoiceDetail `json:"data"`
	}
	if err := ep.Client.GetJSON(ctx, fmt.Sprintf("%s/invoices/%d", ep.BaseURL, id), &resp); err != nil {
		return nil, fmt.Errorf("failed to get invoice %d for tenant %s: %w", id, tenant, err)
	}
	return &resp.Data, nil
}

// FindInvoiceByNumber searches the tenant for an invoice by its number
func (a *defaultAPI) FindInvoiceByNumber(ctx context.Context, tenant, number string) (*InvoiceSummary, error) {
	ep, err := a.endpoint(tenant)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("number", number)

	var resp struct {
		Data []InvoiceSummary `json:"data"`
	}
	if err := ep.Client.GetJSON(ctx, ep.BaseURL+"/invoices?"+query.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to search invoice %s for tenant %s: %w", number, tenant, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("invoice %s not found for tenant %s: %w", number, tenant, httpclient.ErrNotFound)
	}
	return &resp.Data[0], nil
}

// GetOrder returns the full sales order entity by id
func (a *defaultAPI) GetOrder(ctx context.Context, tenant string, id int64) (*OrderDetail, error) {
	ep, err := a.endpoint(tenant)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data OrderDetail `json:"data"`
	}
	if err := ep.Client.GetJSON(ctx, fmt.Sprintf("%s/orders/%d", ep.BaseURL, id), &resp); err != nil {
		return nil, fmt.Errorf("failed to get order %d for tenant %s: %w", id, tenant, err)
	}
	return &resp.Data, nil
}
