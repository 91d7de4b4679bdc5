package crawl

import (
	"strings"

	"github.com/lojistack/erp-sync-server/internal/cache"
	"github.com/lojistack/erp-sync-server/internal/erp"
)

// productRows maps a product detail onto its cache row and the full
// replacement set of structure components
func productRows(tenant string, detail *erp.ProductDetail) (*cache.Product, []cache.StructureComponent) {
	product := &cache.Product{
		Tenant:      tenant,
		RemoteID:    detail.ID,
		SKU:         detail.SKU,
		Name:        detail.Name,
		Cost:        detail.Cost,
		GrossWeight: detail.GrossWeight,
		VolumeCount: detail.VolumeCount,
	}

	components := make([]cache.StructureComponent, 0, len(detail.Components))
	for _, component := range detail.Components {
		components = append(components, cache.StructureComponent{
			Tenant:          tenant,
			ProductRemoteID: detail.ID,
			ComponentSKU:    component.SKU,
			Quantity:        component.Quantity,
		})
	}
	return product, components
}

// invoiceRow maps an invoice detail onto its cache row. The volume count is
// the total shipped quantity across volumes and the product summary is the
// deduplicated list of item descriptions.
func invoiceRow(tenant string, detail *erp.InvoiceDetail) *cache.Invoice {
	var volumeCount int32
	for _, volume := range detail.Volumes {
		volumeCount += volume.Quantity
	}

	seen := make(map[string]bool, len(detail.Items))
	descriptions := make([]string, 0, len(detail.Items))
	for _, item := range detail.Items {
		description := item.Description
		if description == "" {
			description = item.SKU
		}
		if description == "" || seen[description] {
			continue
		}
		seen[description] = true
		descriptions = append(descriptions, description)
	}

	return &cache.Invoice{
		Tenant:         tenant,
		RemoteID:       detail.ID,
		Number:         detail.Number,
		AccessKey:      detail.AccessKey,
		CarrierName:    detail.CarrierName,
		VolumeCount:    volumeCount,
		ProductSummary: strings.Join(descriptions, ", "),
		IssuedAt:       detail.IssuedAt,
		Status:         detail.Status,
	}
}

// orderRow maps a sales order detail onto its cache row
func orderRow(tenant string, detail *erp.OrderDetail) *cache.SalesOrder {
	return &cache.SalesOrder{
		Tenant:        tenant,
		RemoteID:      detail.ID,
		Number:        detail.Number,
		StoreNumber:   detail.StoreNumber,
		InvoiceNumber: detail.InvoiceNumber,
		TotalAmount:   detail.TotalAmount,
		FreightCost:   detail.FreightCost,
		Status:        detail.Status,
	}
}
