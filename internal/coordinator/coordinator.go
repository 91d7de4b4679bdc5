// Package coordinator arbitrates access to the shared remote API budget
// between bulk crawls, on-demand lookups and the interactive workflow.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// JobKind identifies a class of work competing for the remote API
type JobKind string

const (
	// JobProductCrawl is the bulk product crawl, exclusive across the process
	JobProductCrawl JobKind = "product-crawl"

	// JobInvoiceCrawl is the per-tenant bulk invoice crawl
	JobInvoiceCrawl JobKind = "invoice-crawl"

	// JobLookup is a serial on-demand lookup
	JobLookup JobKind = "lookup"
)

// ErrAlreadyRunning is returned when a job of the same kind and tenant
// is already holding its slot
var ErrAlreadyRunning = errors.New("job already running")

// State is a point-in-time snapshot of the coordinator's flags
type State struct {
	ProductCrawlRunning bool
	InvoiceCrawlRunning map[string]bool
	LookupRunning       bool
	InteractiveActive   bool
}

// Coordinator gates entry for crawls and lookups. Acquire blocks until the
// job may proceed or the context is cancelled; every successful Acquire must
// be paired with a Release.
type Coordinator interface {
	// Acquire claims a running slot for the given job kind. Product crawls
	// request invoice crawls to stop and wait for them to drain. Invoice
	// crawls wait while a product crawl or lookup holds the budget. Lookups
	// wait until no crawl is running and then hold exclusivity.
	Acquire(ctx context.Context, kind JobKind, tenant string) error

	// Release clears the running slot claimed by Acquire
	Release(kind JobKind, tenant string)

	// SetInteractive flips the interactive-workflow signal. While the signal
	// is set, running crawls yield at their next checkpoint and new crawls
	// wait before starting.
	SetInteractive(active bool)

	// Interrupted reports whether a crawl for the tenant should yield at its
	// next checkpoint
	Interrupted(tenant string) bool

	// InteractiveActive reports whether the interactive workflow holds the
	// remote API budget
	InteractiveActive() bool

	// Snapshot returns the current flag state
	Snapshot() State
}

// defaultCoordinator implements Coordinator with a mutex-guarded flag set
// and a broadcast channel replaced on every state change, so waiters wake
// on transitions instead of polling.
type defaultCoordinator struct {
	mu      sync.Mutex
	changed chan struct{}

	productRunning bool
	lookupRunning  bool
	interactive    bool
	invoiceRunning map[string]bool
	stopRequested  map[string]bool
}

// New creates a coordinator tracking the given tenants
func New(tenants []string) Coordinator {
	c := &defaultCoordinator{
		changed:        make(chan struct{}),
		invoiceRunning: make(map[string]bool, len(tenants)),
		stopRequested:  make(map[string]bool, len(tenants)),
	}
	for _, tenant := range tenants {
		c.invoiceRunning[tenant] = false
		c.stopRequested[tenant] = false
	}
	return c
}

func (c *defaultCoordinator) Acquire(ctx context.Context, kind JobKind, tenant string) error {
	switch kind {
	case JobProductCrawl:
		return c.acquireProductCrawl(ctx)
	case JobInvoiceCrawl:
		return c.acquireInvoiceCrawl(ctx, tenant)
	case JobLookup:
		return c.acquireLookup(ctx)
	default:
		return fmt.Errorf("unknown job kind: %s", kind)
	}
}

// acquireProductCrawl reserves the product slot up front so the stop-request
// and the exclusivity claim are a single atomic step, then waits for invoice
// crawls and lookups to drain.
func (c *defaultCoordinator) acquireProductCrawl(ctx context.Context) error {
	c.mu.Lock()
	if c.productRunning {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.productRunning = true
	for tenant := range c.stopRequested {
		c.stopRequested[tenant] = true
	}
	c.broadcastLocked()
	c.mu.Unlock()

	err := c.waitOn(ctx, func() (bool, error) {
		ready := !c.interactive && !c.lookupRunning && !c.anyInvoiceRunningLocked()
		return ready, nil
	})
	if err != nil {
		// roll back the reservation so the next invocation can proceed
		c.mu.Lock()
		c.productRunning = false
		for tenant := range c.stopRequested {
			c.stopRequested[tenant] = false
		}
		c.broadcastLocked()
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *defaultCoordinator) acquireInvoiceCrawl(ctx context.Context, tenant string) error {
	return c.waitOn(ctx, func() (bool, error) {
		if c.invoiceRunning[tenant] {
			return false, ErrAlreadyRunning
		}
		if c.interactive || c.productRunning || c.lookupRunning || c.stopRequested[tenant] {
			return false, nil
		}
		c.invoiceRunning[tenant] = true
		c.broadcastLocked()
		return true, nil
	})
}

// acquireLookup waits until no crawl holds the budget. The interactive
// signal does not block lookups; they are issued on its behalf.
func (c *defaultCoordinator) acquireLookup(ctx context.Context) error {
	return c.waitOn(ctx, func() (bool, error) {
		if c.productRunning || c.lookupRunning || c.anyInvoiceRunningLocked() {
			return false, nil
		}
		c.lookupRunning = true
		c.broadcastLocked()
		return true, nil
	})
}

func (c *defaultCoordinator) Release(kind JobKind, tenant string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case JobProductCrawl:
		c.productRunning = false
		for t := range c.stopRequested {
			c.stopRequested[t] = false
		}
	case JobInvoiceCrawl:
		c.invoiceRunning[tenant] = false
	case JobLookup:
		c.lookupRunning = false
	}
	c.broadcastLocked()
}

func (c *defaultCoordinator) SetInteractive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interactive == active {
		return
	}
	c.interactive = active
	c.broadcastLocked()
}

func (c *defaultCoordinator) Interrupted(tenant string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interactive || c.stopRequested[tenant]
}

func (c *defaultCoordinator) InteractiveActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interactive
}

func (c *defaultCoordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	invoices := make(map[string]bool, len(c.invoiceRunning))
	for tenant, running := range c.invoiceRunning {
		invoices[tenant] = running
	}
	return State{
		ProductCrawlRunning: c.productRunning,
		InvoiceCrawlRunning: invoices,
		LookupRunning:       c.lookupRunning,
		InteractiveActive:   c.interactive,
	}
}

// waitOn runs step under the coordinator mutex until it reports done or an
// error. Between evaluations the caller parks on the current broadcast
// channel, which every state change closes, so claiming a slot is atomic
// with observing the condition that allowed it.
func (c *defaultCoordinator) waitOn(ctx context.Context, step func() (bool, error)) error {
	c.mu.Lock()
	for {
		done, err := step()
		if done || err != nil {
			c.mu.Unlock()
			return err
		}
		ch := c.changed
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
		c.mu.Lock()
	}
}

func (c *defaultCoordinator) anyInvoiceRunningLocked() bool {
	for _, running := range c.invoiceRunning {
		if running {
			return true
		}
	}
	return false
}

func (c *defaultCoordinator) broadcastLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}
