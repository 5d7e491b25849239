package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/magesync/backend/internal/domain/integration"
)

// OrderModel is the persistence model of an order, keyed by increment id.
type OrderModel struct {
	BaseModel
	IncrementID       string  `gorm:"type:varchar(50);not null;uniqueIndex"`
	RemoteOrderID     *string `gorm:"type:varchar(50)"`
	ParentID          *string `gorm:"type:varchar(50)"`
	IsActive          *string `gorm:"type:varchar(10)"`
	Status            *string `gorm:"type:varchar(30);index"`
	State             *string `gorm:"type:varchar(30)"`
	StoreID           *string `gorm:"type:varchar(20)"`
	CustomerID        *string `gorm:"type:varchar(50);index"`
	CustomerEmail     *string `gorm:"type:varchar(255)"`
	CustomerFirstname *string `gorm:"type:varchar(255)"`
	CustomerLastname  *string `gorm:"type:varchar(255)"`

	GrandTotal      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ShippingAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalPaid       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalRefunded   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalQtyOrdered int             `gorm:"not null;default:0"`

	BaseTaxAmount      decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	BaseShippingAmount decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	BaseDiscountAmount decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	BaseSubtotal       decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	BaseGrandTotal     decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	BaseTotalPaid      decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	BaseTotalRefunded  decimal.NullDecimal `gorm:"type:decimal(18,4)"`

	BillingAddressID *string `gorm:"type:varchar(50)"`
	BillingFirstname *string `gorm:"type:varchar(255)"`
	BillingLastname  *string `gorm:"type:varchar(255)"`
	BillingCity      *string `gorm:"type:varchar(255)"`
	BillingCountryID *string `gorm:"type:varchar(10)"`
	BillingPostcode  *string `gorm:"type:varchar(20)"`
	BillingRegion    *string `gorm:"type:varchar(255)"`
	BillingStreet    *string `gorm:"type:text"`
	BillingTelephone *string `gorm:"type:varchar(50)"`

	ShippingAddressID        *string    `gorm:"type:varchar(50);index"`
	ShippingFirstname        *string    `gorm:"type:varchar(255)"`
	ShippingMiddlename       *string    `gorm:"type:varchar(255)"`
	ShippingLastname         *string    `gorm:"type:varchar(255)"`
	ShippingCompany          *string    `gorm:"type:varchar(255)"`
	ShippingCity             *string    `gorm:"type:varchar(255)"`
	ShippingCountryID        *string    `gorm:"type:varchar(10)"`
	ShippingPostcode         *string    `gorm:"type:varchar(20)"`
	ShippingRegion           *string    `gorm:"type:varchar(255)"`
	ShippingRegionID         *int
	ShippingStreet           *string    `gorm:"type:text"`
	ShippingTelephone        *string    `gorm:"type:varchar(50)"`
	ShippingFax              *string    `gorm:"type:varchar(50)"`
	ShippingMethod           *string    `gorm:"type:varchar(255)"`
	ShippingDescription      *string    `gorm:"type:text"`
	ShippingAddressUpdatedAt *time.Time `gorm:"index"`

	RemoteCreatedAt  *time.Time `gorm:"index"`
	RemoteUpdatedAt  *time.Time
	DetailsFetched   bool `gorm:"not null;default:false;index"`
	DetailsFetchedAt *time.Time
	SyncedAt         *time.Time
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the model to the local order view
func (m *OrderModel) ToDomain(itemCount int) *integration.StoredOrder {
	return &integration.StoredOrder{
		ID:                m.ID,
		IncrementID:       m.IncrementID,
		Status:            integration.StringOr(m.Status, ""),
		State:             integration.StringOr(m.State, ""),
		GrandTotal:        m.GrandTotal,
		CustomerEmail:     integration.StringOr(m.CustomerEmail, ""),
		ShippingAddressID: integration.StringOr(m.ShippingAddressID, ""),
		DetailsFetched:    m.DetailsFetched,
		DetailsFetchedAt:  m.DetailsFetchedAt,
		ItemCount:         itemCount,
		UpdatedAt:         m.UpdatedAt,
	}
}

// OrderSummaryColumns maps the listing fields of an order
func OrderSummaryColumns(o integration.OrderSummary) Columns {
	c := Columns{}
	c.String("remote_order_id", o.RemoteOrderID)
	if o.Status != nil {
		c["status"] = o.Status.String()
	}
	c.String("state", o.State)
	c.String("store_id", o.StoreID)
	c.String("customer_id", o.CustomerID)
	c.String("customer_email", o.CustomerEmail)
	c.String("customer_firstname", o.CustomerFirstname)
	c.String("customer_lastname", o.CustomerLastname)
	c.Decimal("grand_total", o.GrandTotal)
	c.Decimal("subtotal", o.Subtotal)
	c.String("shipping_address_id", o.ShippingAddressID)
	c.String("billing_address_id", o.BillingAddressID)
	c.Time("remote_created_at", o.RemoteCreatedAt)
	c.Time("remote_updated_at", o.RemoteUpdatedAt)
	return c
}

// OrderDetailColumns maps every header field of a full order
func OrderDetailColumns(o integration.OrderDetail) Columns {
	c := OrderSummaryColumns(o.OrderSummary)
	c.String("parent_id", o.ParentID)
	c.String("is_active", o.IsActive)
	c.Decimal("tax_amount", o.TaxAmount)
	c.Decimal("shipping_amount", o.ShippingAmount)
	c.Decimal("discount_amount", o.DiscountAmount)
	c.Decimal("total_paid", o.TotalPaid)
	c.Decimal("total_refunded", o.TotalRefunded)
	c.Int("total_qty_ordered", o.TotalQtyOrdered)

	c.Decimal("base_tax_amount", o.BaseTaxAmount)
	c.Decimal("base_shipping_amount", o.BaseShippingAmount)
	c.Decimal("base_discount_amount", o.BaseDiscountAmount)
	c.Decimal("base_subtotal", o.BaseSubtotal)
	c.Decimal("base_grand_total", o.BaseGrandTotal)
	c.Decimal("base_total_paid", o.BaseTotalPaid)
	c.Decimal("base_total_refunded", o.BaseTotalRefunded)

	c.String("billing_firstname", o.BillingFirstname)
	c.String("billing_lastname", o.BillingLastname)
	c.String("billing_city", o.BillingCity)
	c.String("billing_country_id", o.BillingCountryID)
	c.String("billing_postcode", o.BillingPostcode)
	c.String("billing_region", o.BillingRegion)
	c.String("billing_street", o.BillingStreet)
	c.String("billing_telephone", o.BillingTelephone)

	c.String("shipping_firstname", o.ShippingFirstname)
	c.String("shipping_lastname", o.ShippingLastname)
	c.String("shipping_city", o.ShippingCity)
	c.String("shipping_country_id", o.ShippingCountryID)
	c.String("shipping_postcode", o.ShippingPostcode)
	c.String("shipping_region", o.ShippingRegion)
	c.String("shipping_street", o.ShippingStreet)
	c.String("shipping_telephone", o.ShippingTelephone)
	c.String("shipping_method", o.ShippingMethod)
	c.String("shipping_description", o.ShippingDescription)
	return c
}

// ShippingAddressColumns maps a customer address onto the shipping columns of an order
func ShippingAddressColumns(a integration.ShippingAddress) Columns {
	c := Columns{}
	c.String("shipping_firstname", a.Firstname)
	c.String("shipping_middlename", a.Middlename)
	c.String("shipping_lastname", a.Lastname)
	c.String("shipping_company", a.Company)
	c.String("shipping_street", a.Street)
	c.String("shipping_city", a.City)
	c.String("shipping_region", a.Region)
	c.Int("shipping_region_id", a.RegionID)
	c.String("shipping_postcode", a.Postcode)
	c.String("shipping_country_id", a.CountryID)
	c.String("shipping_telephone", a.Telephone)
	c.String("shipping_fax", a.Fax)
	return c
}

// OrderItemModel is one line of an order, unique by (order increment id, item id)
type OrderItemModel struct {
	BaseModel
	OrderIncrementID string              `gorm:"type:varchar(50);not null;uniqueIndex:idx_order_items_order_item,priority:1"`
	ItemID           string              `gorm:"type:varchar(50);not null;uniqueIndex:idx_order_items_order_item,priority:2"`
	ProductID        *string             `gorm:"type:varchar(50);index"`
	SKU              *string             `gorm:"column:sku;type:varchar(100);index"`
	Name             string              `gorm:"type:varchar(255);not null;default:'Item'"`
	Description      *string             `gorm:"type:text"`
	ProductType      *string             `gorm:"type:varchar(50)"`
	Weight           decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	QtyOrdered       decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	QtyShipped       decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	QtyInvoiced      decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	QtyCanceled      decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	QtyRefunded      decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	Price            decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	BasePrice        decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	OriginalPrice    decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	TaxAmount        decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	TaxPercent       decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	DiscountAmount   decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	DiscountPercent  decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	RowTotal         decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	BaseRowTotal     decimal.NullDecimal `gorm:"type:decimal(18,4)"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// OrderItemColumns maps an order line
func OrderItemColumns(it integration.OrderItem) Columns {
	c := Columns{}
	c.String("product_id", it.ProductID)
	c.String("sku", it.SKU)
	c.String("name", it.Name)
	c.String("description", it.Description)
	c.String("product_type", it.ProductType)
	c.Decimal("weight", it.Weight)
	c.Decimal("qty_ordered", it.QtyOrdered)
	c.Decimal("qty_shipped", it.QtyShipped)
	c.Decimal("qty_invoiced", it.QtyInvoiced)
	c.Decimal("qty_canceled", it.QtyCanceled)
	c.Decimal("qty_refunded", it.QtyRefunded)
	c.Decimal("price", it.Price)
	c.Decimal("base_price", it.BasePrice)
	c.Decimal("original_price", it.OriginalPrice)
	c.Decimal("tax_amount", it.TaxAmount)
	c.Decimal("tax_percent", it.TaxPercent)
	c.Decimal("discount_amount", it.DiscountAmount)
	c.Decimal("discount_percent", it.DiscountPercent)
	c.Decimal("row_total", it.RowTotal)
	c.Decimal("base_row_total", it.BaseRowTotal)
	return c
}
