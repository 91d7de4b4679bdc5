// Package postgres provides a database-backed implementation of the cache.Repository interface
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lojistack/erp-sync-server/internal/cache"
	"github.com/lojistack/erp-sync-server/internal/db/sqlc"
)

// repository implements cache.Repository on top of PostgreSQL
type repository struct {
	pool    *pgxpool.Pool
	queries *sqlc.Queries
}

// New creates a database-backed repository with the given pgx pool.
// The caller is responsible for closing the pool when it is done.
func New(pool *pgxpool.Pool) (cache.Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	return &repository{
		pool:    pool,
		queries: sqlc.New(pool),
	}, nil
}

// UpsertProduct inserts or overwrites a product by (remote id, tenant)
func (r *repository) UpsertProduct(ctx context.Context, product *cache.Product) error {
	_, err := r.queries.UpsertProduct(ctx, sqlc.UpsertProductParams{
		RemoteID:    product.RemoteID,
		Tenant:      product.Tenant,
		Sku:         product.SKU,
		Name:        product.Name,
		Cost:        product.Cost,
		GrossWeight: product.GrossWeight,
		VolumeCount: product.VolumeCount,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert product %d: %w", product.RemoteID, err)
	}
	return nil
}

// GetProduct returns a product by (tenant, remote id), or cache.ErrNotFound
func (r *repository) GetProduct(ctx context.Context, tenant string, remoteID int64) (*cache.Product, error) {
	row, err := r.queries.GetProduct(ctx, sqlc.GetProductParams{
		Tenant:   tenant,
		RemoteID: remoteID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d (tenant %s): %w", remoteID, tenant, cache.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product %d: %w", remoteID, err)
	}
	return &cache.Product{
		Tenant:      row.Tenant,
		RemoteID:    row.RemoteID,
		SKU:         row.Sku,
		Name:        row.Name,
		Cost:        row.Cost,
		GrossWeight: row.GrossWeight,
		VolumeCount: row.VolumeCount,
		LastSyncAt:  row.LastSyncAt.Time,
	}, nil
}

// ReplaceProductStructure deletes and reinserts a product's structure
// components in a single transaction
func (r *repository) ReplaceProductStructure(
	ctx context.Context, tenant string, productRemoteID int64, components []cache.StructureComponent,
) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		err := tx.Rollback(ctx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.WarnContext(ctx, "Failed to rollback transaction", "error", err)
		}
	}()

	querier := r.queries.WithTx(tx)

	if err := querier.DeleteProductStructure(ctx, sqlc.DeleteProductStructureParams{
		Tenant:          tenant,
		ProductRemoteID: productRemoteID,
	}); err != nil {
		return fmt.Errorf("failed to clear product structure: %w", err)
	}

	for _, component := range components {
		if err := querier.InsertProductStructureComponent(ctx, sqlc.InsertProductStructureComponentParams{
			Tenant:          tenant,
			ProductRemoteID: productRemoteID,
			ComponentSku:    component.ComponentSKU,
			Quantity:        component.Quantity,
		}); err != nil {
			return fmt.Errorf("failed to insert structure component %s: %w", component.ComponentSKU, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListProductStructure returns the structure components of a product
func (r *repository) ListProductStructure(
	ctx context.Context, tenant string, productRemoteID int64,
) ([]cache.StructureComponent, error) {
	rows, err := r.queries.ListProductStructure(ctx, sqlc.ListProductStructureParams{
		Tenant:          tenant,
		ProductRemoteID: productRemoteID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list product structure: %w", err)
	}

	components := make([]cache.StructureComponent, 0, len(rows))
	for _, row := range rows {
		components = append(components, cache.StructureComponent{
			Tenant:          row.Tenant,
			ProductRemoteID: row.ProductRemoteID,
			ComponentSKU:    row.ComponentSku,
			Quantity:        row.Quantity,
		})
	}
	return components, nil
}

// InvoiceExists reports whether an invoice with the access key is cached
func (r *repository) InvoiceExists(ctx context.Context, accessKey string) (bool, error) {
	exists, err := r.queries.InvoiceExists(ctx, accessKey)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice existence: %w", err)
	}
	return exists, nil
}

// InsertInvoice caches an invoice; an already-cached access key is a no-op
func (r *repository) InsertInvoice(ctx context.Context, invoice *cache.Invoice) error {
	err := r.queries.InsertInvoice(ctx, sqlc.InsertInvoiceParams{
		RemoteID:       invoice.RemoteID,
		Tenant:         invoice.Tenant,
		Number:         invoice.Number,
		AccessKey:      invoice.AccessKey,
		CarrierName:    invoice.CarrierName,
		VolumeCount:    invoice.VolumeCount,
		ProductSummary: invoice.ProductSummary,
		IssuedAt:       pgtype.Timestamptz{Time: invoice.IssuedAt, Valid: true},
		Status:         invoice.Status,
	})
	if err != nil {
		return fmt.Errorf("failed to insert invoice %s: %w", invoice.Number, err)
	}
	return nil
}

// GetInvoiceByAccessKey returns a cached invoice, or cache.ErrNotFound
func (r *repository) GetInvoiceByAccessKey(ctx context.Context, accessKey string) (*cache.Invoice, error) {
	row, err := r.queries.GetInvoiceByAccessKey(ctx, accessKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %s: %w", accessKey, cache.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invoice by access key: %w", err)
	}
	return invoiceFromRow(row), nil
}

// GetInvoiceByNumber returns a tenant's cached invoice by number, or cache.ErrNotFound
func (r *repository) GetInvoiceByNumber(ctx context.Context, tenant, number string) (*cache.Invoice, error) {
	row, err := r.queries.GetInvoiceByNumber(ctx, sqlc.GetInvoiceByNumberParams{
		Tenant: tenant,
		Number: number,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %s (tenant %s): %w", number, tenant, cache.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invoice by number: %w", err)
	}
	return invoiceFromRow(row), nil
}

// DeleteInvoiceByAccessKey removes a cached invoice
func (r *repository) DeleteInvoiceByAccessKey(ctx context.Context, accessKey string) (bool, error) {
	deleted, err := r.queries.DeleteInvoiceByAccessKey(ctx, accessKey)
	if err != nil {
		return false, fmt.Errorf("failed to delete invoice %s: %w", accessKey, err)
	}
	return deleted > 0, nil
}

// UpsertSalesOrder inserts or overwrites a sales order by (remote id, tenant)
func (r *repository) UpsertSalesOrder(ctx context.Context, order *cache.SalesOrder) error {
	_, err := r.queries.UpsertSalesOrder(ctx, sqlc.UpsertSalesOrderParams{
		RemoteID:      order.RemoteID,
		Tenant:        order.Tenant,
		Number:        order.Number,
		StoreNumber:   order.StoreNumber,
		InvoiceNumber: order.InvoiceNumber,
		TotalAmount:   order.TotalAmount,
		FreightCost:   order.FreightCost,
		Status:        order.Status,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert sales order %d: %w", order.RemoteID, err)
	}
	return nil
}

// GetSalesOrder returns a sales order by (tenant, remote id), or cache.ErrNotFound
func (r *repository) GetSalesOrder(ctx context.Context, tenant string, remoteID int64) (*cache.SalesOrder, error) {
	row, err := r.queries.GetSalesOrder(ctx, sqlc.GetSalesOrderParams{
		Tenant:   tenant,
		RemoteID: remoteID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sales order %d (tenant %s): %w", remoteID, tenant, cache.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get sales order %d: %w", remoteID, err)
	}
	return &cache.SalesOrder{
		Tenant:        row.Tenant,
		RemoteID:      row.RemoteID,
		Number:        row.Number,
		StoreNumber:   row.StoreNumber,
		InvoiceNumber: row.InvoiceNumber,
		TotalAmount:   row.TotalAmount,
		FreightCost:   row.FreightCost,
		Status:        row.Status,
		LastSyncAt:    row.LastSyncAt.Time,
	}, nil
}

// MarkSalesOrderCancelled marks the sales orders linked to an invoice number as cancelled
func (r *repository) MarkSalesOrderCancelled(ctx context.Context, tenant, invoiceNumber string) error {
	err := r.queries.MarkSalesOrdersCancelled(ctx, sqlc.MarkSalesOrdersCancelledParams{
		Tenant:        tenant,
		InvoiceNumber: invoiceNumber,
	})
	if err != nil {
		return fmt.Errorf("failed to mark sales orders cancelled for invoice %s: %w", invoiceNumber, err)
	}
	return nil
}

// RecordSyncRun inserts a run in RUNNING state and assigns its ID
func (r *repository) RecordSyncRun(ctx context.Context, run *cache.SyncRun) error {
	id, err := r.queries.InsertSyncRun(ctx, sqlc.InsertSyncRunParams{
		JobKind: run.JobKind,
		Tenant:  run.Tenant,
	})
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	run.ID = uuid.UUID(id.Bytes)
	run.Status = cache.SyncRunRunning
	return nil
}

// FinishSyncRun closes a run with its final status
func (r *repository) FinishSyncRun(
	ctx context.Context, id uuid.UUID, status cache.SyncRunStatus, message string, entityCount int64,
) error {
	err := r.queries.FinishSyncRun(ctx, sqlc.FinishSyncRunParams{
		ID:          pgtype.UUID{Bytes: id, Valid: true},
		Status:      sqlc.SyncRunStatus(status),
		Message:     pgtype.Text{String: message, Valid: message != ""},
		EntityCount: entityCount,
	})
	if err != nil {
		return fmt.Errorf("failed to finish sync run %s: %w", id, err)
	}
	return nil
}

// ListSyncRuns returns the most recent runs, newest first
func (r *repository) ListSyncRuns(ctx context.Context, limit int32) ([]cache.SyncRun, error) {
	rows, err := r.queries.ListSyncRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}

	runs := make([]cache.SyncRun, 0, len(rows))
	for _, row := range rows {
		run := cache.SyncRun{
			ID:          uuid.UUID(row.ID.Bytes),
			JobKind:     row.JobKind,
			Tenant:      row.Tenant,
			Status:      cache.SyncRunStatus(row.Status),
			Message:     row.Message.String,
			StartedAt:   row.StartedAt.Time,
			EntityCount: row.EntityCount,
		}
		if row.EndedAt.Valid {
			endedAt := row.EndedAt.Time
			run.EndedAt = &endedAt
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func invoiceFromRow(row sqlc.CachedInvoice) *cache.Invoice {
	return &cache.Invoice{
		Tenant:         row.Tenant,
		RemoteID:       row.RemoteID,
		Number:         row.Number,
		AccessKey:      row.AccessKey,
		CarrierName:    row.CarrierName,
		VolumeCount:    row.VolumeCount,
		ProductSummary: row.ProductSummary,
		IssuedAt:       row.IssuedAt.Time,
		Status:         row.Status,
		CachedAt:       row.CachedAt.Time,
	}
}
