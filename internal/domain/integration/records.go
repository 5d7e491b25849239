package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// Normalized records carry pointer fields: nil means the remote did not
// send the field and the stored value must be kept. The `magento` tag lists
// the remote field names, first match wins.

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// OrderSummary is an order as returned by the order listing
type OrderSummary struct {
	IncrementID       *string          `magento:"increment_id"`
	RemoteOrderID     *string          `magento:"order_id"`
	Status            *OrderStatus     `magento:"status"`
	State             *string          `magento:"state"`
	StoreID           *string          `magento:"store_id"`
	CustomerID        *string          `magento:"customer_id"`
	CustomerEmail     *string          `magento:"customer_email"`
	CustomerFirstname *string          `magento:"customer_firstname"`
	CustomerLastname  *string          `magento:"customer_lastname"`
	GrandTotal        *decimal.Decimal `magento:"grand_total"`
	Subtotal          *decimal.Decimal `magento:"subtotal"`
	ShippingAddressID *string          `magento:"shipping_address_id"`
	BillingAddressID  *string          `magento:"billing_address_id"`
	RemoteCreatedAt   *time.Time       `magento:"created_at"`
	RemoteUpdatedAt   *time.Time       `magento:"updated_at"`
}

// OrderDetail is the full order returned by the order info call
type OrderDetail struct {
	OrderSummary

	ParentID        *string          `magento:"parent_id"`
	IsActive        *string          `magento:"is_active"`
	TaxAmount       *decimal.Decimal `magento:"tax_amount"`
	ShippingAmount  *decimal.Decimal `magento:"shipping_amount"`
	DiscountAmount  *decimal.Decimal `magento:"discount_amount"`
	TotalPaid       *decimal.Decimal `magento:"total_paid"`
	TotalRefunded   *decimal.Decimal `magento:"total_refunded"`
	TotalQtyOrdered *int             `magento:"total_qty_ordered"`

	BaseTaxAmount      *decimal.Decimal `magento:"base_tax_amount"`
	BaseShippingAmount *decimal.Decimal `magento:"base_shipping_amount"`
	BaseDiscountAmount *decimal.Decimal `magento:"base_discount_amount"`
	BaseSubtotal       *decimal.Decimal `magento:"base_subtotal"`
	BaseGrandTotal     *decimal.Decimal `magento:"base_grand_total"`
	BaseTotalPaid      *decimal.Decimal `magento:"base_total_paid"`
	BaseTotalRefunded  *decimal.Decimal `magento:"base_total_refunded"`

	BillingFirstname *string `magento:"billing_firstname"`
	BillingLastname  *string `magento:"billing_lastname"`
	BillingCity      *string `magento:"billing_city"`
	BillingCountryID *string `magento:"billing_country_id"`
	BillingPostcode  *string `magento:"billing_postcode"`
	BillingRegion    *string `magento:"billing_region"`
	BillingStreet    *string `magento:"billing_street"`
	BillingTelephone *string `magento:"billing_telephone"`

	ShippingFirstname *string `magento:"shipping_firstname"`
	ShippingLastname  *string `magento:"shipping_lastname"`
	ShippingCity      *string `magento:"shipping_city"`
	ShippingCountryID *string `magento:"shipping_country_id"`
	ShippingPostcode  *string `magento:"shipping_postcode"`
	ShippingRegion    *string `magento:"shipping_region"`
	ShippingStreet    *string `magento:"shipping_street"`
	ShippingTelephone *string `magento:"shipping_telephone"`

	ShippingMethod      *string `magento:"shipping_method"`
	ShippingDescription *string `magento:"shipping_description"`

	Items []OrderItem `magento:"items"`
}

// OrderItem is one line of an order, keyed by (order increment id, item id)
type OrderItem struct {
	ItemID          *string          `magento:"item_id"`
	ProductID       *string          `magento:"product_id"`
	SKU             *string          `magento:"sku"`
	Name            *string          `magento:"name"`
	Description     *string          `magento:"description"`
	ProductType     *string          `magento:"product_type"`
	Weight          *decimal.Decimal `magento:"weight"`
	QtyOrdered      *decimal.Decimal `magento:"qty_ordered"`
	QtyShipped      *decimal.Decimal `magento:"qty_shipped"`
	QtyInvoiced     *decimal.Decimal `magento:"qty_invoiced"`
	QtyCanceled     *decimal.Decimal `magento:"qty_canceled"`
	QtyRefunded     *decimal.Decimal `magento:"qty_refunded"`
	Price           *decimal.Decimal `magento:"price"`
	BasePrice       *decimal.Decimal `magento:"base_price"`
	OriginalPrice   *decimal.Decimal `magento:"original_price"`
	TaxAmount       *decimal.Decimal `magento:"tax_amount"`
	TaxPercent      *decimal.Decimal `magento:"tax_percent"`
	DiscountAmount  *decimal.Decimal `magento:"discount_amount"`
	DiscountPercent *decimal.Decimal `magento:"discount_percent"`
	RowTotal        *decimal.Decimal `magento:"row_total"`
	BaseRowTotal    *decimal.Decimal `magento:"base_row_total"`
}

// ---------------------------------------------------------------------------
// Customers and addresses
// ---------------------------------------------------------------------------

// Customer is a customer account
type Customer struct {
	CustomerID      *string    `magento:"customer_id"`
	IncrementID     *string    `magento:"increment_id"`
	Email           *string    `magento:"email"`
	Prefix          *string    `magento:"prefix"`
	Firstname       *string    `magento:"firstname"`
	Middlename      *string    `magento:"middlename"`
	Lastname        *string    `magento:"lastname"`
	Suffix          *string    `magento:"suffix"`
	GroupID         *string    `magento:"group_id"`
	StoreID         *string    `magento:"store_id"`
	WebsiteID       *string    `magento:"website_id"`
	CreatedIn       *string    `magento:"created_in"`
	Dob             *string    `magento:"dob"`
	Taxvat          *string    `magento:"taxvat"`
	RemoteCreatedAt *time.Time `magento:"created_at"`
	RemoteUpdatedAt *time.Time `magento:"updated_at"`
}

// ShippingAddress is a customer address copied onto every order that ships to it
type ShippingAddress struct {
	AddressID         *string `magento:"customer_address_id"`
	Firstname         *string `magento:"firstname"`
	Middlename        *string `magento:"middlename"`
	Lastname          *string `magento:"lastname"`
	Company           *string `magento:"company"`
	Street            *string `magento:"street"`
	City              *string `magento:"city"`
	Region            *string `magento:"region"`
	RegionID          *int    `magento:"region_id"`
	Postcode          *string `magento:"postcode"`
	CountryID         *string `magento:"country_id"`
	Telephone         *string `magento:"telephone"`
	Fax               *string `magento:"fax"`
	IsDefaultBilling  *bool   `magento:"is_default_billing"`
	IsDefaultShipping *bool   `magento:"is_default_shipping"`
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// Product is a catalog product merged with its stock item
type Product struct {
	ProductID        *string          `magento:"product_id,productId"`
	SKU              *string          `magento:"sku"`
	Name             *string          `magento:"name"`
	Description      *string          `magento:"description"`
	ShortDescription *string          `magento:"short_description"`
	Price            *decimal.Decimal `magento:"price"`
	SpecialPrice     *decimal.Decimal `magento:"special_price"`
	Cost             *decimal.Decimal `magento:"cost"`
	Weight           *decimal.Decimal `magento:"weight"`
	Qty              *decimal.Decimal `magento:"qty"`
	IsInStock        *bool            `magento:"is_in_stock"`
	ManageStock      *bool            `magento:"manage_stock"`
	MinQty           *decimal.Decimal `magento:"min_qty"`
	MaxQty           *decimal.Decimal `magento:"max_qty"`
	Status           *ProductStatus   `magento:"status"`
	Visibility       *string          `magento:"visibility"`
	TypeID           *string          `magento:"type_id,type"`
	AttributeSetID   *string          `magento:"set,attribute_set_id"`
	CategoryIDs      []string         `magento:"category_ids"`
	URLKey           *string          `magento:"url_key"`
	MetaTitle        *string          `magento:"meta_title"`
	MetaDescription  *string          `magento:"meta_description"`
	Batch            *string          `magento:"batch"`
	ExpiryDate       *string          `magento:"expiry_date"`
	Manufacturer     *string          `magento:"manufacturer"`
	ActiveIngredient *string          `magento:"active_ingredient"`
	Dosage           *string          `magento:"dosage"`
}

// ---------------------------------------------------------------------------
// Persist-time defaults
// ---------------------------------------------------------------------------

// DecimalOr returns *d or def when the field was not sent
func DecimalOr(d *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if d == nil {
		return def
	}
	return *d
}

// StringOr returns *s or def when the field was not sent
func StringOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

// BoolOr returns *b or def when the field was not sent
func BoolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
