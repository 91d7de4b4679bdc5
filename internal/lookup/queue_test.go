package lookup

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lojistack/erp-sync-server/internal/cache"
	"github.com/lojistack/erp-sync-server/internal/cache/inmemory"
	"github.com/lojistack/erp-sync-server/internal/coordinator"
	"github.com/lojistack/erp-sync-server/internal/erp"
	"github.com/lojistack/erp-sync-server/internal/httpclient"
)

// fakeAPI holds invoices per tenant and tracks concurrent detail fetches
type fakeAPI struct {
	mu       sync.Mutex
	invoices map[string]map[int64]*erp.InvoiceDetail

	searchCalls []string
	inFlight    atomic.Int32
	overlapped  atomic.Bool
	fetchDelay  time.Duration
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{invoices: make(map[string]map[int64]*erp.InvoiceDetail)}
}

func (f *fakeAPI) addInvoice(tenant string, detail *erp.InvoiceDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invoices[tenant] == nil {
		f.invoices[tenant] = make(map[int64]*erp.InvoiceDetail)
	}
	f.invoices[tenant][detail.ID] = detail
}

func (*fakeAPI) ListProducts(context.Context, string, int, int) ([]erp.ProductSummary, error) {
	return nil, nil
}

func (*fakeAPI) GetProduct(context.Context, string, int64) (*erp.ProductDetail, error) {
	return nil, httpclient.ErrNotFound
}

func (*fakeAPI) ListInvoices(context.Context, string, int, int, erp.InvoiceStatus) ([]erp.InvoiceSummary, error) {
	return nil, nil
}

func (f *fakeAPI) GetInvoice(_ context.Context, tenant string, id int64) (*erp.InvoiceDetail, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlapped.Store(true)
	}
	defer f.inFlight.Add(-1)
	if f.fetchDelay > 0 {
		time.Sleep(f.fetchDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	detail, ok := f.invoices[tenant][id]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", id, httpclient.ErrNotFound)
	}
	return detail, nil
}

func (f *fakeAPI) FindInvoiceByNumber(_ context.Context, tenant, number string) (*erp.InvoiceSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, tenant+"/"+number)
	for _, detail := range f.invoices[tenant] {
		if detail.Number == number {
			return &erp.InvoiceSummary{
				ID: detail.ID, Number: detail.Number, AccessKey: detail.AccessKey, Status: detail.Status,
			}, nil
		}
	}
	return nil, fmt.Errorf("invoice %s: %w", number, httpclient.ErrNotFound)
}

func (*fakeAPI) GetOrder(context.Context, string, int64) (*erp.OrderDetail, error) {
	return nil, httpclient.ErrNotFound
}

var testTenants = []string{"acme", "globex"}

func startQueue(t *testing.T, api erp.API, repo cache.Repository, coord coordinator.Coordinator, opts ...Option) Queue {
	t.Helper()
	q := New(api, repo, coord, testTenants, opts...)
	q.Start(context.Background())
	t.Cleanup(func() { _ = q.Stop() })
	return q
}

func TestLookupReturnsCachedInvoice(t *testing.T) {
	t.Parallel()

	repo := inmemory.New()
	require.NoError(t, repo.InsertInvoice(context.Background(), &cache.Invoice{
		Tenant: "globex", RemoteID: 1, Number: "12345", AccessKey: "key-1", Status: "issued",
	}))

	api := newFakeAPI()
	q := startQueue(t, api, repo, coordinator.New(testTenants))

	invoice, err := q.Lookup(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "key-1", invoice.AccessKey)

	// a cache hit never reaches the remote API
	assert.Empty(t, api.searchCalls)
}

func TestLookupSearchesTenantsInOrder(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.addInvoice("globex", &erp.InvoiceDetail{
		ID: 7, Number: "777", AccessKey: "key-777", Status: "issued", IssuedAt: time.Now(),
	})

	repo := inmemory.New()
	q := startQueue(t, api, repo, coordinator.New(testTenants))

	invoice, err := q.Lookup(context.Background(), "777")
	require.NoError(t, err)
	assert.Equal(t, "key-777", invoice.AccessKey)
	assert.Equal(t, "globex", invoice.Tenant)

	// the first tenant was tried and missed before the second hit
	assert.Equal(t, []string{"acme/777", "globex/777"}, api.searchCalls)

	// the result is now cached
	cached, err := repo.GetInvoiceByNumber(context.Background(), "globex", "777")
	require.NoError(t, err)
	assert.Equal(t, "key-777", cached.AccessKey)
}

func TestLookupNotFoundAnywhere(t *testing.T) {
	t.Parallel()

	q := startQueue(t, newFakeAPI(), inmemory.New(), coordinator.New(testTenants))

	_, err := q.Lookup(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupsResolveSeriallyInOrder(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.fetchDelay = 20 * time.Millisecond
	api.addInvoice("acme", &erp.InvoiceDetail{
		ID: 1, Number: "111", AccessKey: "key-111", Status: "issued", IssuedAt: time.Now(),
	})
	api.addInvoice("acme", &erp.InvoiceDetail{
		ID: 2, Number: "222", AccessKey: "key-222", Status: "issued", IssuedAt: time.Now(),
	})

	q := startQueue(t, api, inmemory.New(), coordinator.New(testTenants))

	var order []string
	var orderMu sync.Mutex
	var wg sync.WaitGroup

	lookups := []string{"111", "222"}
	for _, number := range lookups {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Lookup(context.Background(), number)
			assert.NoError(t, err)
			orderMu.Lock()
			order = append(order, number)
			orderMu.Unlock()
		}()
		// stagger submission so queue order is deterministic
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, lookups, order)
	assert.False(t, api.overlapped.Load(), "detail fetches must never overlap")
}

func TestLookupWaitsForRunningCrawl(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.addInvoice("acme", &erp.InvoiceDetail{
		ID: 1, Number: "12345", AccessKey: "key-1", Status: "issued", IssuedAt: time.Now(),
	})

	coord := coordinator.New(testTenants)
	require.NoError(t, coord.Acquire(context.Background(), coordinator.JobProductCrawl, "acme"))

	q := startQueue(t, api, inmemory.New(), coord)

	resolved := make(chan error, 1)
	go func() {
		_, err := q.Lookup(context.Background(), "12345")
		resolved <- err
	}()

	// the lookup must not resolve while the product crawl holds the budget
	select {
	case <-resolved:
		t.Fatal("lookup resolved while a crawl was running")
	case <-time.After(100 * time.Millisecond):
	}

	coord.Release(coordinator.JobProductCrawl, "acme")

	select {
	case err := <-resolved:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("lookup did not resolve after the crawl released")
	}
}

func TestLookupQueueFull(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.fetchDelay = 50 * time.Millisecond
	api.addInvoice("acme", &erp.InvoiceDetail{
		ID: 1, Number: "111", AccessKey: "key-111", Status: "issued", IssuedAt: time.Now(),
	})

	q := startQueue(t, api, inmemory.New(), coordinator.New(testTenants), WithCapacity(1))

	// saturate the worker and the single queue slot
	go func() { _, _ = q.Lookup(context.Background(), "111") }()
	go func() { _, _ = q.Lookup(context.Background(), "111") }()
	time.Sleep(20 * time.Millisecond)

	_, err := q.Lookup(context.Background(), "111")
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestStopRejectsPendingLookups(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.fetchDelay = 50 * time.Millisecond
	api.addInvoice("acme", &erp.InvoiceDetail{
		ID: 1, Number: "111", AccessKey: "key-111", Status: "issued", IssuedAt: time.Now(),
	})

	q := New(api, inmemory.New(), coordinator.New(testTenants), testTenants, WithCapacity(4))
	q.Start(context.Background())

	go func() { _, _ = q.Lookup(context.Background(), "111") }()
	time.Sleep(20 * time.Millisecond)

	pending := make(chan error, 1)
	go func() {
		_, err := q.Lookup(context.Background(), "111")
		pending <- err
	}()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, q.Stop())

	select {
	case err := <-pending:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("pending lookup was not rejected on stop")
	}
}
