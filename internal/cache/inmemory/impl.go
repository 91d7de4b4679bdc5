// Package inmemory provides an in-memory cache.Repository implementation
// used by unit tests and local development runs without a database.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lojistack/erp-sync-server/internal/cache"
)

// productKey identifies a product or sales order row by its natural key
type productKey struct {
	tenant   string
	remoteID int64
}

// Repository is an in-memory implementation of cache.Repository
type Repository struct {
	mu         sync.RWMutex
	products   map[productKey]cache.Product
	invoices   map[string]cache.Invoice // keyed by access key
	orders     map[productKey]cache.SalesOrder
	components map[productKey][]cache.StructureComponent
	runs       []cache.SyncRun
}

// New creates an empty in-memory repository
func New() *Repository {
	return &Repository{
		products:   make(map[productKey]cache.Product),
		invoices:   make(map[string]cache.Invoice),
		orders:     make(map[productKey]cache.SalesOrder),
		components: make(map[productKey][]cache.StructureComponent),
	}
}

// UpsertProduct inserts or overwrites a product by (remote id, tenant)
func (r *Repository) UpsertProduct(_ context.Context, product *cache.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[productKey{product.Tenant, product.RemoteID}] = *product
	return nil
}

// GetProduct returns a product by (tenant, remote id), or cache.ErrNotFound
func (r *Repository) GetProduct(_ context.Context, tenant string, remoteID int64) (*cache.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[productKey{tenant, remoteID}]
	if !ok {
		return nil, fmt.Errorf("product %d (tenant %s): %w", remoteID, tenant, cache.ErrNotFound)
	}
	return &product, nil
}

// ReplaceProductStructure atomically replaces a product's structure components
func (r *Repository) ReplaceProductStructure(
	_ context.Context, tenant string, productRemoteID int64, components []cache.StructureComponent,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := productKey{tenant, productRemoteID}
	if len(components) == 0 {
		delete(r.components, key)
		return nil
	}
	r.components[key] = append([]cache.StructureComponent(nil), components...)
	return nil
}

// ListProductStructure returns the structure components of a product
func (r *Repository) ListProductStructure(
	_ context.Context, tenant string, productRemoteID int64,
) ([]cache.StructureComponent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	components := r.components[productKey{tenant, productRemoteID}]
	return append([]cache.StructureComponent(nil), components...), nil
}

// InvoiceExists reports whether an invoice with the access key is cached
func (r *Repository) InvoiceExists(_ context.Context, accessKey string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.invoices[accessKey]
	return ok, nil
}

// InsertInvoice caches an invoice; an already-cached access key is a no-op
func (r *Repository) InsertInvoice(_ context.Context, invoice *cache.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.invoices[invoice.AccessKey]; ok {
		return nil
	}
	stored := *invoice
	if stored.CachedAt.IsZero() {
		stored.CachedAt = time.Now()
	}
	r.invoices[invoice.AccessKey] = stored
	return nil
}

// GetInvoiceByAccessKey returns a cached invoice, or cache.ErrNotFound
func (r *Repository) GetInvoiceByAccessKey(_ context.Context, accessKey string) (*cache.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	invoice, ok := r.invoices[accessKey]
	if !ok {
		return nil, fmt.Errorf("invoice %s: %w", accessKey, cache.ErrNotFound)
	}
	return &invoice, nil
}

// GetInvoiceByNumber returns a tenant's cached invoice by number, or cache.ErrNotFound
func (r *Repository) GetInvoiceByNumber(_ context.Context, tenant, number string) (*cache.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, invoice := range r.invoices {
		if invoice.Tenant == tenant && invoice.Number == number {
			found := invoice
			return &found, nil
		}
	}
	return nil, fmt.Errorf("invoice %s (tenant %s): %w", number, tenant, cache.ErrNotFound)
}

// DeleteInvoiceByAccessKey removes a cached invoice
func (r *Repository) DeleteInvoiceByAccessKey(_ context.Context, accessKey string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.invoices[accessKey]; !ok {
		return false, nil
	}
	delete(r.invoices, accessKey)
	return true, nil
}

// UpsertSalesOrder inserts or overwrites a sales order by (remote id, tenant)
func (r *Repository) UpsertSalesOrder(_ context.Context, order *cache.SalesOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders[productKey{order.Tenant, order.RemoteID}] = *order
	return nil
}

// GetSalesOrder returns a sales order by (tenant, remote id), or cache.ErrNotFound
func (r *Repository) GetSalesOrder(_ context.Context, tenant string, remoteID int64) (*cache.SalesOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[productKey{tenant, remoteID}]
	if !ok {
		return nil, fmt.Errorf("sales order %d (tenant %s): %w", remoteID, tenant, cache.ErrNotFound)
	}
	return &order, nil
}

// MarkSalesOrderCancelled marks the sales orders linked to an invoice number as cancelled
func (r *Repository) MarkSalesOrderCancelled(_ context.Context, tenant, invoiceNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, order := range r.orders {
		if order.Tenant == tenant && order.InvoiceNumber == invoiceNumber {
			order.Status = cache.OrderStatusCancelled
			r.orders[key] = order
		}
	}
	return nil
}

// RecordSyncRun inserts a run in RUNNING state and assigns its ID
func (r *Repository) RecordSyncRun(_ context.Context, run *cache.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = cache.SyncRunRunning
	r.runs = append(r.runs, *run)
	return nil
}

// FinishSyncRun closes a run with its final status
func (r *Repository) FinishSyncRun(
	_ context.Context, id uuid.UUID, status cache.SyncRunStatus, message string, entityCount int64,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.runs {
		if r.runs[i].ID == id {
			now := time.Now()
			r.runs[i].Status = status
			r.runs[i].Message = message
			r.runs[i].EndedAt = &now
			r.runs[i].EntityCount = entityCount
			return nil
		}
	}
	return fmt.Errorf("sync run %s: %w", id, cache.ErrNotFound)
}

// ListSyncRuns returns the most recent runs, newest first
func (r *Repository) ListSyncRuns(_ context.Context, limit int32) ([]cache.SyncRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := append([]cache.SyncRun(nil), r.runs...)
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && int(limit) < len(runs) {
		runs = runs[:limit]
	}
	return runs, nil
}

// CountInvoices reports how many invoices are cached (test helper)
func (r *Repository) CountInvoices() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.invoices)
}

// CountProducts reports how many products are cached (test helper)
func (r *Repository) CountProducts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.products)
}
