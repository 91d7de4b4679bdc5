package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lojistack/erp-sync-server/database"
	"github.com/lojistack/erp-sync-server/internal/cache"
)

func TestRepository(t *testing.T) {
	t.Parallel()

	pool, cleanup := database.SetupTestDB(t)
	t.Cleanup(cleanup)

	repo, err := New(pool)
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("product upsert and get", func(t *testing.T) {
		product := &cache.Product{
			Tenant:      "acme",
			RemoteID:    42,
			SKU:         "SKU-42",
			Name:        "Widget",
			Cost:        10.5,
			GrossWeight: 1.25,
			VolumeCount: 2,
		}
		require.NoError(t, repo.UpsertProduct(ctx, product))

		got, err := repo.GetProduct(ctx, "acme", 42)
		require.NoError(t, err)
		assert.Equal(t, "Widget", got.Name)
		assert.InDelta(t, 10.5, got.Cost, 0.001)
		assert.False(t, got.LastSyncAt.IsZero())

		// second upsert overwrites the mutable fields in place
		product.Name = "Widget v2"
		require.NoError(t, repo.UpsertProduct(ctx, product))

		got, err = repo.GetProduct(ctx, "acme", 42)
		require.NoError(t, err)
		assert.Equal(t, "Widget v2", got.Name)
	})

	t.Run("product not found", func(t *testing.T) {
		_, err := repo.GetProduct(ctx, "acme", 99999)
		assert.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("structure replacement is wholesale", func(t *testing.T) {
		first := []cache.StructureComponent{
			{Tenant: "acme", ProductRemoteID: 7, ComponentSKU: "PART-A", Quantity: 2},
			{Tenant: "acme", ProductRemoteID: 7, ComponentSKU: "PART-B", Quantity: 1},
		}
		require.NoError(t, repo.ReplaceProductStructure(ctx, "acme", 7, first))

		second := []cache.StructureComponent{
			{Tenant: "acme", ProductRemoteID: 7, ComponentSKU: "PART-C", Quantity: 3},
		}
		require.NoError(t, repo.ReplaceProductStructure(ctx, "acme", 7, second))

		got, err := repo.ListProductStructure(ctx, "acme", 7)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "PART-C", got[0].ComponentSKU)
		assert.InDelta(t, 3, got[0].Quantity, 0.001)
	})

	t.Run("invoice insert is idempotent by access key", func(t *testing.T) {
		invoice := &cache.Invoice{
			Tenant:      "acme",
			RemoteID:    100,
			Number:      "INV-100",
			AccessKey:   "key-100",
			CarrierName: "fastfreight",
			VolumeCount: 3,
			IssuedAt:    time.Now().UTC().Truncate(time.Second),
			Status:      "issued",
		}
		require.NoError(t, repo.InsertInvoice(ctx, invoice))

		exists, err := repo.InvoiceExists(ctx, "key-100")
		require.NoError(t, err)
		assert.True(t, exists)

		// a second insert with the same access key keeps the original row
		changed := *invoice
		changed.CarrierName = "changed"
		require.NoError(t, repo.InsertInvoice(ctx, &changed))

		got, err := repo.GetInvoiceByAccessKey(ctx, "key-100")
		require.NoError(t, err)
		assert.Equal(t, "fastfreight", got.CarrierName)
		assert.False(t, got.CachedAt.IsZero())

		byNumber, err := repo.GetInvoiceByNumber(ctx, "acme", "INV-100")
		require.NoError(t, err)
		assert.Equal(t, "key-100", byNumber.AccessKey)
	})

	t.Run("invoice delete", func(t *testing.T) {
		require.NoError(t, repo.InsertInvoice(ctx, &cache.Invoice{
			Tenant:    "acme",
			RemoteID:  101,
			Number:    "INV-101",
			AccessKey: "key-101",
			IssuedAt:  time.Now(),
			Status:    "issued",
		}))

		deleted, err := repo.DeleteInvoiceByAccessKey(ctx, "key-101")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.DeleteInvoiceByAccessKey(ctx, "key-101")
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = repo.GetInvoiceByAccessKey(ctx, "key-101")
		assert.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("sales order upsert and cancellation", func(t *testing.T) {
		require.NoError(t, repo.UpsertSalesOrder(ctx, &cache.SalesOrder{
			Tenant:        "acme",
			RemoteID:      10,
			Number:        "SO-10",
			StoreNumber:   "7",
			InvoiceNumber: "INV-100",
			TotalAmount:   199.90,
			FreightCost:   12.30,
			Status:        "open",
		}))
		require.NoError(t, repo.UpsertSalesOrder(ctx, &cache.SalesOrder{
			Tenant:        "acme",
			RemoteID:      11,
			Number:        "SO-11",
			InvoiceNumber: "INV-999",
			Status:        "open",
		}))

		require.NoError(t, repo.MarkSalesOrderCancelled(ctx, "acme", "INV-100"))

		cancelled, err := repo.GetSalesOrder(ctx, "acme", 10)
		require.NoError(t, err)
		assert.Equal(t, cache.OrderStatusCancelled, cancelled.Status)

		untouched, err := repo.GetSalesOrder(ctx, "acme", 11)
		require.NoError(t, err)
		assert.Equal(t, "open", untouched.Status)
	})

	t.Run("sync run lifecycle", func(t *testing.T) {
		run := &cache.SyncRun{JobKind: "product-crawl", Tenant: "acme"}
		require.NoError(t, repo.RecordSyncRun(ctx, run))
		require.NotEmpty(t, run.ID)

		require.NoError(t, repo.FinishSyncRun(ctx, run.ID, cache.SyncRunCompleted, "", 17))

		runs, err := repo.ListSyncRuns(ctx, 10)
		require.NoError(t, err)
		require.NotEmpty(t, runs)

		var found bool
		for _, r := range runs {
			if r.ID == run.ID {
				found = true
				assert.Equal(t, cache.SyncRunCompleted, r.Status)
				assert.EqualValues(t, 17, r.EntityCount)
				require.NotNil(t, r.EndedAt)
			}
		}
		assert.True(t, found)
	})
}
