package erp_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lojistack/erp-sync-server/internal/erp"
	"github.com/lojistack/erp-sync-server/internal/httpclient"
)

// staticCredentials is a CredentialSource with a fixed token
type staticCredentials struct {
	token string
}

func (s *staticCredentials) Token(_ context.Context) (string, error) { return s.token, nil }
func (s *staticCredentials) Refresh(_ context.Context) error         { return nil }

func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func newTestAPI(t *testing.T, handler http.Handler) (erp.API, *httptest.Server) {
	t.Helper()
	server := newTestServer(handler)
	t.Cleanup(server.Close)

	client := httpclient.NewDefaultClient(
		&staticCredentials{token: "tok"},
		httpclient.WithMaxAttempts(2),
		httpclient.WithRequestsPerSecond(10000),
	)
	api := erp.NewWithEndpoints(map[string]erp.Endpoint{
		"main": {BaseURL: server.URL, Client: client},
	})
	return api, server
}

func TestListProducts(t *testing.T) {
	t.Parallel()

	api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"data":[{"id":1,"sku":"SKU-1","name":"Widget"},{"id":2,"sku":"SKU-2","name":"Gadget"}]}`)
	}))

	products, err := api.ListProducts(context.Background(), "main", 2, 100)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(1), products[0].ID)
	assert.Equal(t, "SKU-2", products[1].SKU)
}

func TestGetProduct(t *testing.T) {
	t.Parallel()

	api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/42", r.URL.Path)
		fmt.Fprint(w, `{"data":{"id":42,"sku":"SKU-42","name":"Widget","cost":12.5,"grossWeight":0.8,"volumeCount":2,
			"components":[{"sku":"PART-1","quantity":3}]}}`)
	}))

	product, err := api.GetProduct(context.Background(), "main", 42)
	require.NoError(t, err)
	assert.Equal(t, "SKU-42", product.SKU)
	assert.Equal(t, 12.5, product.Cost)
	require.Len(t, product.Components, 1)
	assert.Equal(t, "PART-1", product.Components[0].SKU)
}

func TestListInvoicesByStatus(t *testing.T) {
	t.Parallel()

	api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoices", r.URL.Path)
		assert.Equal(t, "cancelled", r.URL.Query().Get("status"))
		fmt.Fprint(w, `{"data":[{"id":7,"number":"123","accessKey":"key-123","status":"cancelled"}]}`)
	}))

	invoices, err := api.ListInvoices(context.Background(), "main", 1, 50, erp.InvoiceStatusCancelled)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "key-123", invoices[0].AccessKey)
}

func TestFindInvoiceByNumber(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "12345", r.URL.Query().Get("number"))
			fmt.Fprint(w, `{"data":[{"id":9,"number":"12345","accessKey":"key-9","status":"issued"}]}`)
		}))

		summary, err := api.FindInvoiceByNumber(context.Background(), "main", "12345")
		require.NoError(t, err)
		assert.Equal(t, int64(9), summary.ID)
	})

	t.Run("empty result is not found", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"data":[]}`)
		}))

		_, err := api.FindInvoiceByNumber(context.Background(), "main", "12345")
		require.ErrorIs(t, err, httpclient.ErrNotFound)
	})
}

func TestGetOrder(t *testing.T) {
	t.Parallel()

	api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/55", r.URL.Path)
		fmt.Fprint(w, `{"data":{"id":55,"number":"PED-55","storeNumber":"MKT-9","invoiceNumber":"123",
			"totalAmount":199.9,"freightCost":12.3,"status":"shipped"}}`)
	}))

	order, err := api.GetOrder(context.Background(), "main", 55)
	require.NoError(t, err)
	assert.Equal(t, "PED-55", order.Number)
	assert.Equal(t, 199.9, order.TotalAmount)
}

func TestUnknownTenant(t *testing.T) {
	t.Parallel()

	api := erp.NewWithEndpoints(map[string]erp.Endpoint{})
	_, err := api.ListProducts(context.Background(), "ghost", 1, 10)
	require.ErrorIs(t, err, erp.ErrUnknownTenant)
}
