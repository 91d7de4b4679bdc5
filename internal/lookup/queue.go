// Package lookup implements the serial on-demand invoice lookup queue.
// Requests are processed one at a time by a single worker, never
// concurrently with a bulk crawl.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lojistack/erp-sync-server/internal/cache"
	"github.com/lojistack/erp-sync-server/internal/coordinator"
	"github.com/lojistack/erp-sync-server/internal/crawl"
	"github.com/lojistack/erp-sync-server/internal/erp"
	"github.com/lojistack/erp-sync-server/internal/httpclient"
	"github.com/lojistack/erp-sync-server/internal/telemetry"
)

const (
	// DefaultCapacity bounds how many lookups may be pending at once
	DefaultCapacity = 32
)

var (
	// ErrNotFound is returned when no tenant knows the requested invoice
	ErrNotFound = errors.New("invoice not found in any tenant")

	// ErrQueueFull is returned when the pending queue is at capacity
	ErrQueueFull = errors.New("lookup queue is full")

	// ErrStopped is returned for requests pending when the queue shuts down
	ErrStopped = errors.New("lookup queue stopped")
)

// Queue accepts on-demand invoice lookups and resolves them strictly in
// submission order
type Queue interface {
	// Start launches the worker. Must be called before Lookup.
	Start(ctx context.Context)

	// Stop shuts the worker down and rejects pending requests
	Stop() error

	// Lookup blocks until the invoice identified by number has been located,
	// fetched and cached, searching tenants in configuration order. Returns
	// ErrNotFound if no tenant knows the number.
	Lookup(ctx context.Context, number string) (*cache.Invoice, error)
}

type outcome struct {
	invoice *cache.Invoice
	err     error
}

type request struct {
	number string
	result chan outcome
}

// defaultQueue is the default implementation of Queue
type defaultQueue struct {
	api     erp.API
	repo    cache.Repository
	coord   coordinator.Coordinator
	tenants []string

	requests chan *request

	cancelFunc context.CancelFunc
	done       chan struct{}

	metrics *telemetry.LookupMetrics
}

// Option is a function that configures the queue
type Option func(*options)

type options struct {
	capacity int
	metrics  *telemetry.LookupMetrics
}

// WithCapacity bounds the number of pending lookups
func WithCapacity(capacity int) Option {
	return func(o *options) {
		if capacity > 0 {
			o.capacity = capacity
		}
	}
}

// WithLookupMetrics sets the lookup metrics instruments
func WithLookupMetrics(metrics *telemetry.LookupMetrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// New creates a lookup queue searching the given tenants in order
func New(
	api erp.API, repo cache.Repository, coord coordinator.Coordinator,
	tenants []string, opts ...Option,
) Queue {
	o := &options{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(o)
	}
	return &defaultQueue{
		api:      api,
		repo:     repo,
		coord:    coord,
		tenants:  tenants,
		requests: make(chan *request, o.capacity),
		done:     make(chan struct{}),
		metrics:  o.metrics,
	}
}

// Start launches the single worker goroutine
func (q *defaultQueue) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	q.cancelFunc = cancel

	go func() {
		defer close(q.done)
		slog.Info("Lookup queue worker started", "capacity", cap(q.requests))
		for {
			select {
			case <-workerCtx.Done():
				q.drain()
				return
			case req := <-q.requests:
				req.result <- q.process(workerCtx, req.number)
			}
		}
	}()
}

// Stop shuts the worker down and rejects pending requests
func (q *defaultQueue) Stop() error {
	if q.cancelFunc != nil {
		slog.Info("Stopping lookup queue")
		q.cancelFunc()
		<-q.done
	}
	return nil
}

// Lookup submits a request and blocks on its result
func (q *defaultQueue) Lookup(ctx context.Context, number string) (*cache.Invoice, error) {
	req := &request{number: number, result: make(chan outcome, 1)}

	select {
	case q.requests <- req:
	default:
		return nil, ErrQueueFull
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, ErrStopped
	case out := <-req.result:
		return out.invoice, out.err
	}
}

// process resolves one request under the coordinator's lookup slot
func (q *defaultQueue) process(ctx context.Context, number string) outcome {
	started := time.Now()

	if err := q.coord.Acquire(ctx, coordinator.JobLookup, ""); err != nil {
		return outcome{err: fmt.Errorf("failed to acquire lookup slot: %w", err)}
	}
	defer q.coord.Release(coordinator.JobLookup, "")

	invoice, err := q.performLookup(ctx, number)
	q.metrics.RecordLookup(ctx, time.Since(started), err == nil)
	if err != nil {
		return outcome{err: err}
	}
	return outcome{invoice: invoice}
}

// performLookup searches tenants in a fixed order, first match wins. A cache
// hit short-circuits the remote search; a remote hit goes through the same
// fetch/transform/upsert path as the bulk crawl.
func (q *defaultQueue) performLookup(ctx context.Context, number string) (*cache.Invoice, error) {
	for _, tenant := range q.tenants {
		invoice, err := q.repo.GetInvoiceByNumber(ctx, tenant, number)
		if err == nil {
			return invoice, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			return nil, fmt.Errorf("failed to read invoice cache: %w", err)
		}
	}

	for _, tenant := range q.tenants {
		summary, err := q.api.FindInvoiceByNumber(ctx, tenant, number)
		if err != nil {
			if errors.Is(err, httpclient.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to search invoice %s (tenant %s): %w", number, tenant, err)
		}

		if err := crawl.FetchInvoice(ctx, q.api, q.repo, tenant, summary.ID); err != nil {
			return nil, err
		}
		invoice, err := q.repo.GetInvoiceByAccessKey(ctx, summary.AccessKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read back invoice %s: %w", summary.AccessKey, err)
		}
		slog.InfoContext(ctx, "On-demand lookup cached invoice",
			"tenant", tenant, "number", number)
		return invoice, nil
	}

	return nil, fmt.Errorf("invoice %s: %w", number, ErrNotFound)
}

// drain rejects every request still queued at shutdown
func (q *defaultQueue) drain() {
	for {
		select {
		case req := <-q.requests:
			req.result <- outcome{err: ErrStopped}
		default:
			return
		}
	}
}
