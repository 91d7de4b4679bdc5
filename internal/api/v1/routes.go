// Package v1 provides the REST handlers for the sync server's admin and
// read surface.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lojistack/erp-sync-server/internal/api/common"
	"github.com/lojistack/erp-sync-server/internal/cache"
	"github.com/lojistack/erp-sync-server/internal/coordinator"
	"github.com/lojistack/erp-sync-server/internal/lookup"
)

const (
	defaultSyncRunLimit = 50
	maxSyncRunLimit     = 500
)

// InteractiveRequest toggles the interactive-workflow signal
type InteractiveRequest struct {
	Active bool `json:"active"`
}

// LookupRequest asks for one invoice by its number
type LookupRequest struct {
	Number string `json:"number"`
}

// InvoiceResponse is the JSON shape of a cached invoice
type InvoiceResponse struct {
	Tenant         string    `json:"tenant"`
	RemoteID       int64     `json:"remoteId"`
	Number         string    `json:"number"`
	AccessKey      string    `json:"accessKey"`
	CarrierName    string    `json:"carrierName,omitempty"`
	VolumeCount    int32     `json:"volumeCount"`
	ProductSummary string    `json:"productSummary,omitempty"`
	IssuedAt       time.Time `json:"issuedAt"`
	Status         string    `json:"status"`
	CachedAt       time.Time `json:"cachedAt"`
}

// SyncRunResponse is the JSON shape of a recorded sync run
type SyncRunResponse struct {
	ID          string     `json:"id"`
	JobKind     string     `json:"jobKind"`
	Tenant      string     `json:"tenant"`
	Status      string     `json:"status"`
	Message     string     `json:"message,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	EntityCount int64      `json:"entityCount"`
}

// StatusResponse mirrors the coordinator's flag snapshot
type StatusResponse struct {
	ProductCrawlRunning bool            `json:"productCrawlRunning"`
	InvoiceCrawlRunning map[string]bool `json:"invoiceCrawlRunning"`
	LookupRunning       bool            `json:"lookupRunning"`
	InteractiveActive   bool            `json:"interactiveActive"`
}

// Routes defines the handlers with dependency injection
type Routes struct {
	coord coordinator.Coordinator
	queue lookup.Queue
	repo  cache.Repository
}

// NewRoutes creates a new Routes instance with the provided dependencies
func NewRoutes(coord coordinator.Coordinator, queue lookup.Queue, repo cache.Repository) *Routes {
	return &Routes{
		coord: coord,
		queue: queue,
		repo:  repo,
	}
}

// Router creates a new router for the v1 API
func Router(coord coordinator.Coordinator, queue lookup.Queue, repo cache.Repository) http.Handler {
	routes := NewRoutes(coord, queue, repo)

	r := chi.NewRouter()
	r.Put("/interactive", routes.setInteractive)
	r.Post("/lookups", routes.submitLookup)
	r.Get("/status", routes.getStatus)
	r.Get("/syncs", routes.listSyncRuns)
	r.Get("/invoices/{accessKey}", routes.getInvoice)
	return r
}

// setInteractive handles PUT /v1/interactive
func (rr *Routes) setInteractive(w http.ResponseWriter, r *http.Request) {
	var req InteractiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rr.coord.SetInteractive(req.Active)
	common.WriteJSONResponse(w, map[string]bool{"active": req.Active}, http.StatusOK)
}

// submitLookup handles POST /v1/lookups. The call blocks until the lookup
// resolves, so callers get the invoice in the response body.
func (rr *Routes) submitLookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Number == "" {
		common.WriteErrorResponse(w, "Invoice number is required", http.StatusBadRequest)
		return
	}

	invoice, err := rr.queue.Lookup(r.Context(), req.Number)
	switch {
	case err == nil:
		common.WriteJSONResponse(w, invoiceResponse(invoice), http.StatusOK)
	case errors.Is(err, lookup.ErrNotFound):
		common.WriteErrorResponse(w, "Invoice not found", http.StatusNotFound)
	case errors.Is(err, lookup.ErrQueueFull):
		common.WriteErrorResponse(w, "Lookup queue is full", http.StatusServiceUnavailable)
	default:
		common.WriteErrorResponse(w, "Lookup failed", http.StatusBadGateway)
	}
}

// getStatus handles GET /v1/status
func (rr *Routes) getStatus(w http.ResponseWriter, _ *http.Request) {
	snapshot := rr.coord.Snapshot()
	common.WriteJSONResponse(w, StatusResponse{
		ProductCrawlRunning: snapshot.ProductCrawlRunning,
		InvoiceCrawlRunning: snapshot.InvoiceCrawlRunning,
		LookupRunning:       snapshot.LookupRunning,
		InteractiveActive:   snapshot.InteractiveActive,
	}, http.StatusOK)
}

// listSyncRuns handles GET /v1/syncs
func (rr *Routes) listSyncRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultSyncRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := parsePositiveInt(raw, maxSyncRunLimit)
		if err != nil {
			common.WriteErrorResponse(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := rr.repo.ListSyncRuns(r.Context(), int32(limit)) //nolint:gosec // limit is bounded above
	if err != nil {
		common.WriteErrorResponse(w, "Failed to list sync runs", http.StatusInternalServerError)
		return
	}

	resp := make([]SyncRunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, SyncRunResponse{
			ID:          run.ID.String(),
			JobKind:     run.JobKind,
			Tenant:      run.Tenant,
			Status:      string(run.Status),
			Message:     run.Message,
			StartedAt:   run.StartedAt,
			EndedAt:     run.EndedAt,
			EntityCount: run.EntityCount,
		})
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// getInvoice handles GET /v1/invoices/{accessKey}
func (rr *Routes) getInvoice(w http.ResponseWriter, r *http.Request) {
	accessKey := chi.URLParam(r, "accessKey")

	invoice, err := rr.repo.GetInvoiceByAccessKey(r.Context(), accessKey)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			common.WriteErrorResponse(w, "Invoice not found", http.StatusNotFound)
			return
		}
		common.WriteErrorResponse(w, "Failed to read invoice", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, invoiceResponse(invoice), http.StatusOK)
}

func invoiceResponse(invoice *cache.Invoice) InvoiceResponse {
	return InvoiceResponse{
		Tenant:         invoice.Tenant,
		RemoteID:       invoice.RemoteID,
		Number:         invoice.Number,
		AccessKey:      invoice.AccessKey,
		CarrierName:    invoice.CarrierName,
		VolumeCount:    invoice.VolumeCount,
		ProductSummary: invoice.ProductSummary,
		IssuedAt:       invoice.IssuedAt,
		Status:         invoice.Status,
		CachedAt:       invoice.CachedAt,
	}
}

func parsePositiveInt(raw string, maximum int) (int, error) {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, fmt.Errorf("value must be positive: %d", value)
	}
	if value > maximum {
		value = maximum
	}
	return value, nil
}
