package erp

import "time"

// InvoiceStatus selects which invoice listing variant a page filter returns
type InvoiceStatus string

const (
	// InvoiceStatusIssued lists invoices that are live upstream
	InvoiceStatusIssued InvoiceStatus = "issued"

	// InvoiceStatusCancelled lists invoices cancelled/removed upstream,
	// used by the reconciliation pass
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// ProductSummary is one entry of a paginated product listing
type ProductSummary struct {
	ID   int64  `json:"id"`
	SKU  string `json:"sku"`
	Name string `json:"name"`
}

// ProductComponent is one bill-of-materials entry of a product structure
type ProductComponent struct {
	SKU      string  `json:"sku"`
	Quantity float64 `json:"quantity"`
}

// ProductDetail is the full product entity returned by the detail endpoint
type ProductDetail struct {
	ID          int64              `json:"id"`
	SKU         string             `json:"sku"`
	Name        string             `json:"name"`
	Cost        float64            `json:"cost"`
	GrossWeight float64            `json:"grossWeight"`
	VolumeCount int32              `json:"volumeCount"`
	Components  []ProductComponent `json:"components,omitempty"`
}

// InvoiceSummary is one entry of a paginated invoice listing
type InvoiceSummary struct {
	ID        int64  `json:"id"`
	Number    string `json:"number"`
	AccessKey string `json:"accessKey"`
	Status    string `json:"status"`
}

// InvoiceVolume is one shipped volume of an invoice
type InvoiceVolume struct {
	Quantity int32  `json:"quantity"`
	Kind     string `json:"kind,omitempty"`
}

// InvoiceItem is one product line of an invoice
type InvoiceItem struct {
	SKU         string  `json:"sku"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
}

// InvoiceDetail is the full invoice entity returned by the detail endpoint
type InvoiceDetail struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	AccessKey   string          `json:"accessKey"`
	Status      string          `json:"status"`
	CarrierName string          `json:"carrierName"`
	IssuedAt    time.Time       `json:"issuedAt"`
	OrderID     int64           `json:"orderId,omitempty"`
	Volumes     []InvoiceVolume `json:"volumes,omitempty"`
	Items       []InvoiceItem   `json:"items,omitempty"`
}

// OrderDetail is the full sales order entity returned by the detail endpoint
type OrderDetail struct {
	ID            int64   `json:"id"`
	Number        string  `json:"number"`
	StoreNumber   string  `json:"storeNumber,omitempty"`
	InvoiceNumber string  `json:"invoiceNumber,omitempty"`
	TotalAmount   float64 `json:"totalAmount"`
	FreightCost   float64 `json:"freightCost"`
	Status        string  `json:"status"`
}
