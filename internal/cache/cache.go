// Package cache defines the local relational cache of ERP entities. All
// crawl and lookup paths write through the Repository interface; the rest of
// the application reads only from the cache, never from the remote API.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a cache row does not exist
var ErrNotFound = errors.New("cache row not found")

// OrderStatusCancelled marks a sales order whose parent invoice was cancelled upstream
const OrderStatusCancelled = "cancelled"

// Product is a cached product. Natural key (RemoteID, Tenant); upserted on
// every crawl pass (last-write-wins) and never deleted by the sync engine.
type Product struct {
	Tenant      string
	RemoteID    int64
	SKU         string
	Name        string
	Cost        float64
	GrossWeight float64
	VolumeCount int32
	LastSyncAt  time.Time
}

// Invoice is a cached invoice. Natural key AccessKey (globally unique);
// inserted once, deleted on upstream cancellation, never updated in place.
type Invoice struct {
	Tenant         string
	RemoteID       int64
	Number         string
	AccessKey      string
	CarrierName    string
	VolumeCount    int32
	ProductSummary string
	IssuedAt       time.Time
	Status         string
	CachedAt       time.Time
}

// SalesOrder is a cached sales order. Natural key (RemoteID, Tenant);
// refreshed whenever its parent invoice is processed.
type SalesOrder struct {
	Tenant        string
	RemoteID      int64
	Number        string
	StoreNumber   string
	InvoiceNumber string
	TotalAmount   float64
	FreightCost   float64
	Status        string
	LastSyncAt    time.Time
}

// StructureComponent is one bill-of-materials row of a cached product. All
// rows for a (product, tenant) pair are replaced wholesale on every
// re-processing of that product.
type StructureComponent struct {
	Tenant          string
	ProductRemoteID int64
	ComponentSKU    string
	Quantity        float64
}

// SyncRunStatus is the lifecycle state of a recorded sync run
type SyncRunStatus string

const (
	// SyncRunRunning means the run is in progress
	SyncRunRunning SyncRunStatus = "RUNNING"

	// SyncRunCompleted means the run finished normally
	SyncRunCompleted SyncRunStatus = "COMPLETED"

	// SyncRunFailed means the run aborted on a page-level or terminal error
	SyncRunFailed SyncRunStatus = "FAILED"

	// SyncRunInterrupted means the run yielded to the interactive workflow
	// or to a stop request before reaching the end of the remote dataset
	SyncRunInterrupted SyncRunStatus = "INTERRUPTED"
)

// SyncRun is one recorded crawl or lookup invocation
type SyncRun struct {
	ID          uuid.UUID
	JobKind     string
	Tenant      string
	Status      SyncRunStatus
	Message     string
	StartedAt   time.Time
	EndedAt     *time.Time
	EntityCount int64
}

// Repository is the write/read interface of the local cache
type Repository interface {
	// UpsertProduct inserts or overwrites a product by (remote id, tenant)
	UpsertProduct(ctx context.Context, product *Product) error

	// GetProduct returns a product by (tenant, remote id), or ErrNotFound
	GetProduct(ctx context.Context, tenant string, remoteID int64) (*Product, error)

	// ReplaceProductStructure atomically replaces every structure component
	// of a (tenant, product) pair with the given set
	ReplaceProductStructure(ctx context.Context, tenant string, productRemoteID int64, components []StructureComponent) error

	// ListProductStructure returns the structure components of a product
	ListProductStructure(ctx context.Context, tenant string, productRemoteID int64) ([]StructureComponent, error)

	// InvoiceExists reports whether an invoice with the access key is cached
	InvoiceExists(ctx context.Context, accessKey string) (bool, error)

	// InsertInvoice caches an invoice; inserting an already-cached access
	// key is a no-op, never an error
	InsertInvoice(ctx context.Context, invoice *Invoice) error

	// GetInvoiceByAccessKey returns a cached invoice, or ErrNotFound
	GetInvoiceByAccessKey(ctx context.Context, accessKey string) (*Invoice, error)

	// GetInvoiceByNumber returns a tenant's cached invoice by number, or ErrNotFound
	GetInvoiceByNumber(ctx context.Context, tenant, number string) (*Invoice, error)

	// DeleteInvoiceByAccessKey removes a cached invoice, reporting whether
	// a row was deleted
	DeleteInvoiceByAccessKey(ctx context.Context, accessKey string) (bool, error)

	// UpsertSalesOrder inserts or overwrites a sales order by (remote id, tenant)
	UpsertSalesOrder(ctx context.Context, order *SalesOrder) error

	// GetSalesOrder returns a sales order by (tenant, remote id), or ErrNotFound
	GetSalesOrder(ctx context.Context, tenant string, remoteID int64) (*SalesOrder, error)

	// MarkSalesOrderCancelled marks the sales orders linked to an invoice
	// number as cancelled
	MarkSalesOrderCancelled(ctx context.Context, tenant, invoiceNumber string) error

	// RecordSyncRun inserts a run in RUNNING state and assigns its ID
	RecordSyncRun(ctx context.Context, run *SyncRun) error

	// FinishSyncRun closes a run with its final status
	FinishSyncRun(ctx context.Context, id uuid.UUID, status SyncRunStatus, message string, entityCount int64) error

	// ListSyncRuns returns the most recent runs, newest first
	ListSyncRuns(ctx context.Context, limit int32) ([]SyncRun, error)
}
