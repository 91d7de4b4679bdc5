package crawl

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lojistack/erp-sync-server/internal/config"
	"github.com/lojistack/erp-sync-server/internal/coordinator"
)

// Scheduler runs the bulk crawls for every tenant on their configured
// intervals
type Scheduler interface {
	// Start begins the per-tenant crawl loops.
	// Blocks until context is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully stops the scheduler and waits for the loops to drain
	Stop() error
}

// defaultScheduler is the default implementation of Scheduler
type defaultScheduler struct {
	crawler Crawler
	config  *config.Config

	cancelFunc context.CancelFunc
	done       chan struct{}
}

// NewScheduler creates a scheduler driving the given crawler
func NewScheduler(crawler Crawler, cfg *config.Config) Scheduler {
	return &defaultScheduler{
		crawler: crawler,
		config:  cfg,
		done:    make(chan struct{}),
	}
}

// Start begins the per-tenant crawl loops
func (s *defaultScheduler) Start(ctx context.Context) error {
	tenants := s.config.TenantNames()
	slog.Info("Starting crawl scheduler",
		"tenant_count", len(tenants),
		"product_interval", s.config.GetProductInterval(),
		"invoice_interval", s.config.GetInvoiceInterval())

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel
	defer func() {
		close(s.done)
		slog.Info("Crawl scheduler shutting down")
	}()

	group, groupCtx := errgroup.WithContext(schedCtx)
	for _, tenant := range tenants {
		group.Go(func() error {
			s.runLoop(groupCtx, tenant, s.config.GetProductInterval(), s.crawler.RunProductCrawl)
			return nil
		})
		group.Go(func() error {
			s.runLoop(groupCtx, tenant, s.config.GetInvoiceInterval(), s.crawler.RunInvoiceCrawl)
			return nil
		})
	}
	return group.Wait()
}

// Stop gracefully stops the scheduler
func (s *defaultScheduler) Stop() error {
	if s.cancelFunc != nil {
		slog.Info("Stopping crawl scheduler")
		s.cancelFunc()
		<-s.done
	}
	return nil
}

// runLoop invokes one crawl for one tenant on a jittered interval. The first
// invocation happens immediately on startup.
func (s *defaultScheduler) runLoop(
	ctx context.Context, tenant string, interval time.Duration,
	run func(ctx context.Context, tenant string) error,
) {
	s.invoke(ctx, tenant, run)

	ticker := time.NewTicker(jitteredInterval(interval))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.invoke(ctx, tenant, run)

			// recalculate with new jitter for the next iteration
			ticker.Reset(jitteredInterval(interval))
		case <-ctx.Done():
			return
		}
	}
}

func (*defaultScheduler) invoke(
	ctx context.Context, tenant string, run func(ctx context.Context, tenant string) error,
) {
	err := run(ctx, tenant)
	switch {
	case err == nil:
	case errors.Is(err, coordinator.ErrAlreadyRunning):
		slog.Debug("Skipping crawl, already running", "tenant", tenant)
	case errors.Is(err, context.Canceled):
	default:
		slog.Error("Scheduled crawl failed", "tenant", tenant, "error", err)
	}
}

// jitteredInterval applies a random offset of up to ±10% to the base
// interval so tenant loops do not line up their remote calls.
func jitteredInterval(base time.Duration) time.Duration {
	if base <= 0 {
		return time.Minute
	}
	jitter := int64(base / 10)
	if jitter == 0 {
		return base
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for scheduling jitter
	offset := time.Duration(rand.Int64N(2*jitter) - jitter)
	return base + offset
}
