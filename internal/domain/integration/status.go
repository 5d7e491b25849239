package integration

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ---------------------------------------------------------------------------
// OrderStatus represents the local order status
// ---------------------------------------------------------------------------

// OrderStatus represents the local order status
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusProcessing     OrderStatus = "PROCESSING"
	OrderStatusHolded         OrderStatus = "HOLDED"
	OrderStatusComplete       OrderStatus = "COMPLETE"
	OrderStatusClosed         OrderStatus = "CLOSED"
	OrderStatusCanceled       OrderStatus = "CANCELED"
	OrderStatusPaymentReview  OrderStatus = "PAYMENT_REVIEW"
	OrderStatusFraud          OrderStatus = "FRAUD"
	OrderStatusSuspectedFraud OrderStatus = "SUSPECTED_FRAUD"
)

// AllOrderStatuses returns every local order status
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusPendingPayment,
		OrderStatusProcessing,
		OrderStatusHolded,
		OrderStatusComplete,
		OrderStatusClosed,
		OrderStatusCanceled,
		OrderStatusPaymentReview,
		OrderStatusFraud,
		OrderStatusSuspectedFraud,
	}
}

// IsValid returns true if the status is a known local status
func (s OrderStatus) IsValid() bool {
	for _, known := range AllOrderStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

var orderStatusAliases = map[string]string{
	"CANCELLED": "CANCELED",
	"ONHOLD":    "HOLDED",
	"HOLD":      "HOLDED",
	"COMPLETED": "COMPLETE",
}

var orderStatusByKey = func() map[string]OrderStatus {
	m := make(map[string]OrderStatus)
	for _, s := range AllOrderStatuses() {
		m[statusKey(string(s))] = s
	}
	return m
}()

// ParseOrderStatus maps a remote status string onto a local status.
// Matching ignores case and every non-alphanumeric character, so
// "pending_payment", "Pending Payment" and "PENDING-PAYMENT" are equal.
// The second result is false when nothing matches; callers must then
// leave the stored status untouched.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	key := statusKey(raw)
	if key == "" {
		return "", false
	}
	if alias, ok := orderStatusAliases[key]; ok {
		key = alias
	}
	s, ok := orderStatusByKey[key]
	return s, ok
}

// ---------------------------------------------------------------------------
// ProductStatus represents the local product status
// ---------------------------------------------------------------------------

// ProductStatus represents the local product status
type ProductStatus string

const (
	ProductStatusEnabled  ProductStatus = "ENABLED"
	ProductStatusDisabled ProductStatus = "DISABLED"
)

// IsValid returns true if the status is valid
func (s ProductStatus) IsValid() bool {
	return s == ProductStatusEnabled || s == ProductStatusDisabled
}

// String returns the string representation of ProductStatus
func (s ProductStatus) String() string {
	return string(s)
}

// ParseProductStatus accepts both the numeric attribute values Magento
// stores ("1" enabled, "2" disabled) and their labels.
func ParseProductStatus(raw string) (ProductStatus, bool) {
	switch statusKey(raw) {
	case "1", "ENABLED":
		return ProductStatusEnabled, true
	case "0", "2", "DISABLED":
		return ProductStatusDisabled, true
	default:
		return "", false
	}
}

// ---------------------------------------------------------------------------
// SyncStatus represents the outcome of a batch pass
// ---------------------------------------------------------------------------

// SyncStatus represents the outcome of a batch pass
type SyncStatus string

const (
	// SyncStatusSuccess indicates every processed target succeeded
	SyncStatusSuccess SyncStatus = "SUCCESS"
	// SyncStatusPartial indicates some targets failed
	SyncStatusPartial SyncStatus = "PARTIAL"
	// SyncStatusFailed indicates every processed target failed
	SyncStatusFailed SyncStatus = "FAILED"
)

// IsValid returns true if the status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusSuccess, SyncStatusPartial, SyncStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// statusKey upper-cases s and drops everything that is not a letter or digit.
func statusKey(s string) string {
	upper := cases.Upper(language.Und).String(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
