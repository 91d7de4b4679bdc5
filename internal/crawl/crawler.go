// Package crawl implements the paginated bulk crawls that mirror remote
// products and invoices into the local cache, including the reconciliation
// pass that propagates upstream cancellations.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lojistack/erp-sync-server/internal/cache"
	"github.com/lojistack/erp-sync-server/internal/coordinator"
	"github.com/lojistack/erp-sync-server/internal/erp"
	"github.com/lojistack/erp-sync-server/internal/telemetry"
)

const (
	// DefaultPageSize is the listing page size used when none is configured
	DefaultPageSize = 100

	// DefaultMaxPages caps how many pages one crawl invocation walks
	DefaultMaxPages = 60

	// DefaultEntityDelay is the pause between per-entity detail fetches,
	// keeping bulk crawls polite toward the shared rate budget
	DefaultEntityDelay = 250 * time.Millisecond
)

// Crawler runs bulk crawls for one tenant at a time. Both crawls acquire
// their coordinator slot on entry and release it on exit, so callers only
// choose when to run, not whether they may.
type Crawler interface {
	// RunProductCrawl walks the tenant's product listing and upserts every
	// product with its structure components. Returns
	// coordinator.ErrAlreadyRunning if a product crawl is already active.
	RunProductCrawl(ctx context.Context, tenant string) error

	// RunInvoiceCrawl walks the tenant's issued-invoice listing, caching
	// invoices not yet present, and reconciles upstream cancellations
	RunInvoiceCrawl(ctx context.Context, tenant string) error
}

// defaultCrawler is the default implementation of Crawler
type defaultCrawler struct {
	api   erp.API
	repo  cache.Repository
	coord coordinator.Coordinator

	pageSize    int
	maxPages    int
	entityDelay time.Duration

	metrics *telemetry.SyncMetrics
}

// Option is a function that configures the crawler
type Option func(*defaultCrawler)

// WithPageSize sets the listing page size
func WithPageSize(size int) Option {
	return func(c *defaultCrawler) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithMaxPages caps how many pages a single crawl invocation walks
func WithMaxPages(pages int) Option {
	return func(c *defaultCrawler) {
		if pages > 0 {
			c.maxPages = pages
		}
	}
}

// WithEntityDelay sets the pause between per-entity detail fetches
func WithEntityDelay(delay time.Duration) Option {
	return func(c *defaultCrawler) {
		if delay >= 0 {
			c.entityDelay = delay
		}
	}
}

// WithSyncMetrics sets the crawl metrics instruments
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *defaultCrawler) {
		c.metrics = metrics
	}
}

// New creates a crawler with injected dependencies
func New(api erp.API, repo cache.Repository, coord coordinator.Coordinator, opts ...Option) Crawler {
	c := &defaultCrawler{
		api:         api,
		repo:        repo,
		coord:       coord,
		pageSize:    DefaultPageSize,
		maxPages:    DefaultMaxPages,
		entityDelay: DefaultEntityDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *defaultCrawler) RunProductCrawl(ctx context.Context, tenant string) error {
	if err := c.coord.Acquire(ctx, coordinator.JobProductCrawl, tenant); err != nil {
		return err
	}
	defer c.coord.Release(coordinator.JobProductCrawl, tenant)

	run := &cache.SyncRun{JobKind: string(coordinator.JobProductCrawl), Tenant: tenant}
	if err := c.repo.RecordSyncRun(ctx, run); err != nil {
		slog.WarnContext(ctx, "Failed to record sync run", "tenant", tenant, "error", err)
	}

	started := time.Now()
	slog.InfoContext(ctx, "Starting product crawl", "tenant", tenant, "page_size", c.pageSize)

	// the product crawl yields to the interactive workflow only; its own
	// stop requests target the invoice crawls
	interrupted := func() bool {
		return ctx.Err() != nil || c.coord.InteractiveActive()
	}

	var count int64
	runErr := c.walkPages(ctx, interrupted, func(page int) (int, error) {
		summaries, err := c.api.ListProducts(ctx, tenant, page, c.pageSize)
		if err != nil {
			return 0, fmt.Errorf("failed to list products page %d: %w", page, err)
		}
		for _, summary := range summaries {
			if interrupted() {
				return len(summaries), errInterrupted
			}
			if err := c.syncProduct(ctx, tenant, summary.ID); err != nil {
				// one bad entity never aborts the whole crawl
				slog.WarnContext(ctx, "Failed to sync product",
					"tenant", tenant, "product_id", summary.ID, "error", err)
				continue
			}
			count++
			if err := sleepContext(ctx, c.entityDelay); err != nil {
				return len(summaries), errInterrupted
			}
		}
		return len(summaries), nil
	})

	c.finishRun(ctx, run, runErr, count)
	c.metrics.RecordCrawl(ctx, string(coordinator.JobProductCrawl), tenant,
		time.Since(started), count, runErr == nil)

	if runErr != nil && !errors.Is(runErr, errInterrupted) {
		return runErr
	}
	slog.InfoContext(ctx, "Product crawl finished",
		"tenant", tenant, "entities", count, "interrupted", errors.Is(runErr, errInterrupted))
	return nil
}

func (c *defaultCrawler) RunInvoiceCrawl(ctx context.Context, tenant string) error {
	if err := c.coord.Acquire(ctx, coordinator.JobInvoiceCrawl, tenant); err != nil {
		return err
	}
	defer c.coord.Release(coordinator.JobInvoiceCrawl, tenant)

	run := &cache.SyncRun{JobKind: string(coordinator.JobInvoiceCrawl), Tenant: tenant}
	if err := c.repo.RecordSyncRun(ctx, run); err != nil {
		slog.WarnContext(ctx, "Failed to record sync run", "tenant", tenant, "error", err)
	}

	started := time.Now()
	slog.InfoContext(ctx, "Starting invoice crawl", "tenant", tenant, "page_size", c.pageSize)

	interrupted := func() bool {
		return ctx.Err() != nil || c.coord.Interrupted(tenant)
	}

	var count int64
	runErr := c.walkPages(ctx, interrupted, func(page int) (int, error) {
		summaries, err := c.api.ListInvoices(ctx, tenant, page, c.pageSize, erp.InvoiceStatusIssued)
		if err != nil {
			return 0, fmt.Errorf("failed to list invoices page %d: %w", page, err)
		}
		if len(summaries) == 0 {
			// past the last page; nothing to reconcile either
			return 0, nil
		}
		for _, summary := range summaries {
			if interrupted() {
				return len(summaries), errInterrupted
			}
			cached, err := c.repo.InvoiceExists(ctx, summary.AccessKey)
			if err != nil {
				slog.WarnContext(ctx, "Failed to check invoice cache",
					"tenant", tenant, "access_key", summary.AccessKey, "error", err)
				continue
			}
			if cached {
				// invoices are immutable once issued; the cached row wins
				continue
			}
			if err := c.syncInvoice(ctx, tenant, summary.ID); err != nil {
				slog.WarnContext(ctx, "Failed to sync invoice",
					"tenant", tenant, "invoice_id", summary.ID, "error", err)
				continue
			}
			count++
			if err := sleepContext(ctx, c.entityDelay); err != nil {
				return len(summaries), errInterrupted
			}
		}

		// reconciliation pass: the cancelled variant of the same page filter
		if err := c.reconcilePage(ctx, tenant, page); err != nil {
			slog.WarnContext(ctx, "Reconciliation pass failed",
				"tenant", tenant, "page", page, "error", err)
		}
		return len(summaries), nil
	})

	c.finishRun(ctx, run, runErr, count)
	c.metrics.RecordCrawl(ctx, string(coordinator.JobInvoiceCrawl), tenant,
		time.Since(started), count, runErr == nil)

	if runErr != nil && !errors.Is(runErr, errInterrupted) {
		return runErr
	}
	slog.InfoContext(ctx, "Invoice crawl finished",
		"tenant", tenant, "entities", count, "interrupted", errors.Is(runErr, errInterrupted))
	return nil
}

// errInterrupted marks a crawl that yielded at a checkpoint. Partial
// progress already written stays cached.
var errInterrupted = errors.New("crawl interrupted")

// walkPages drives the page loop shared by both crawls. processPage returns
// the number of summaries the page held; an empty page ends the walk.
func (c *defaultCrawler) walkPages(
	ctx context.Context, interrupted func() bool, processPage func(page int) (int, error),
) error {
	for page := 1; page <= c.maxPages; page++ {
		if interrupted() {
			return errInterrupted
		}
		fetched, err := processPage(page)
		if err != nil {
			return err
		}
		if fetched == 0 {
			return nil
		}
	}
	slog.InfoContext(ctx, "Crawl reached page cap", "max_pages", c.maxPages)
	return nil
}

// syncProduct fetches one product's detail and writes its cache row plus the
// full replacement set of structure components
func (c *defaultCrawler) syncProduct(ctx context.Context, tenant string, productID int64) error {
	detail, err := c.api.GetProduct(ctx, tenant, productID)
	if err != nil {
		return fmt.Errorf("failed to fetch product detail: %w", err)
	}

	product, components := productRows(tenant, detail)
	if err := c.repo.UpsertProduct(ctx, product); err != nil {
		return err
	}
	if err := c.repo.ReplaceProductStructure(ctx, tenant, detail.ID, components); err != nil {
		return fmt.Errorf("failed to replace product structure: %w", err)
	}
	return nil
}

func (c *defaultCrawler) syncInvoice(ctx context.Context, tenant string, invoiceID int64) error {
	return FetchInvoice(ctx, c.api, c.repo, tenant, invoiceID)
}

// FetchInvoice fetches one invoice's detail, caches it and refreshes its
// linked sales order. Shared by the bulk crawl and the on-demand lookup so
// both write identical rows.
func FetchInvoice(ctx context.Context, api erp.API, repo cache.Repository, tenant string, invoiceID int64) error {
	detail, err := api.GetInvoice(ctx, tenant, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to fetch invoice detail: %w", err)
	}

	if err := repo.InsertInvoice(ctx, invoiceRow(tenant, detail)); err != nil {
		return err
	}

	if detail.OrderID != 0 {
		order, err := api.GetOrder(ctx, tenant, detail.OrderID)
		if err != nil {
			// the invoice row is already cached; the order refresh is best effort
			slog.WarnContext(ctx, "Failed to fetch linked sales order",
				"tenant", tenant, "order_id", detail.OrderID, "error", err)
			return nil
		}
		if err := repo.UpsertSalesOrder(ctx, orderRow(tenant, order)); err != nil {
			slog.WarnContext(ctx, "Failed to upsert linked sales order",
				"tenant", tenant, "order_id", detail.OrderID, "error", err)
		}
	}
	return nil
}

// reconcilePage removes cache rows for invoices cancelled upstream and marks
// their dependent sales orders cancelled
func (c *defaultCrawler) reconcilePage(ctx context.Context, tenant string, page int) error {
	cancelled, err := c.api.ListInvoices(ctx, tenant, page, c.pageSize, erp.InvoiceStatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to list cancelled invoices: %w", err)
	}

	for _, summary := range cancelled {
		deleted, err := c.repo.DeleteInvoiceByAccessKey(ctx, summary.AccessKey)
		if err != nil {
			slog.WarnContext(ctx, "Failed to delete cancelled invoice",
				"tenant", tenant, "access_key", summary.AccessKey, "error", err)
			continue
		}
		if !deleted {
			continue
		}
		slog.InfoContext(ctx, "Removed cancelled invoice from cache",
			"tenant", tenant, "number", summary.Number)
		// best effort: the deletion stands even if the dependent update fails
		if err := c.repo.MarkSalesOrderCancelled(ctx, tenant, summary.Number); err != nil {
			slog.WarnContext(ctx, "Failed to mark dependent sales order cancelled",
				"tenant", tenant, "invoice_number", summary.Number, "error", err)
		}
	}
	return nil
}

// finishRun closes the recorded sync run with its final status. The write
// uses a detached context so an interrupt does not lose the run record.
func (c *defaultCrawler) finishRun(ctx context.Context, run *cache.SyncRun, runErr error, count int64) {
	if run.ID == uuid.Nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	status := cache.SyncRunCompleted
	message := ""
	switch {
	case errors.Is(runErr, errInterrupted):
		status = cache.SyncRunInterrupted
	case runErr != nil:
		status = cache.SyncRunFailed
		message = runErr.Error()
	}

	if err := c.repo.FinishSyncRun(ctx, run.ID, status, message, count); err != nil {
		slog.WarnContext(ctx, "Failed to finish sync run", "run_id", run.ID, "error", err)
	}
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
