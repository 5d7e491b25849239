package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Remote side
// ---------------------------------------------------------------------------

// Session hands out the token shared by every pipeline of a pass.
// Implementations must be safe for concurrent use.
type Session interface {
	// Token returns the current token, logging in first when there is none
	Token(ctx context.Context) (string, error)
	// Invalidate drops token if it is still the current one, so the next
	// Token call logs in again
	Invalidate(ctx context.Context, token string)
}

// SessionOpener opens one Session per batch pass. Opening must not touch
// the network; the first Token call logs in.
type SessionOpener interface {
	Open(ctx context.Context) (Session, error)
}

// IdentifierType tells the product info call how to read the identifier
type IdentifierType string

const (
	IdentifierTypeID  IdentifierType = "id"
	IdentifierTypeSKU IdentifierType = "sku"
)

// IsValid returns true if the identifier type is valid
func (t IdentifierType) IsValid() bool {
	return t == IdentifierTypeID || t == IdentifierTypeSKU
}

// RemoteCatalog is the subset of the remote API the jobs depend on.
// A zero since disables the updated_at filter.
type RemoteCatalog interface {
	SalesOrderList(ctx context.Context, token string, since time.Time) ([]RawRecord, error)
	SalesOrderInfo(ctx context.Context, token, incrementID string) (RawRecord, error)
	CustomerList(ctx context.Context, token string, since time.Time) ([]RawRecord, error)
	CustomerAddressInfo(ctx context.Context, token, addressID string) (RawRecord, error)
	CatalogProductList(ctx context.Context, token, storeView string) ([]RawRecord, error)
	CatalogProductInfo(ctx context.Context, token, identifier, storeView string, idType IdentifierType) (RawRecord, error)
	StockItemList(ctx context.Context, token string, productIDs []string) ([]RawRecord, error)
}

// ---------------------------------------------------------------------------
// Local side
// ---------------------------------------------------------------------------

// OrderQuery selects orders for the detail backfill
type OrderQuery struct {
	// OnlyMissing restricts to orders whose details were never fetched
	OnlyMissing bool
	// Limit caps the number of targets, 0 means no cap
	Limit int
}

// AddressQuery selects shipping address ids for the address backfill
type AddressQuery struct {
	// OnlyMissing restricts to orders with an incomplete shipping address
	OnlyMissing bool
	// UpdatedBefore restricts to addresses not refreshed since the given time
	UpdatedBefore *time.Time
	// Limit caps the number of targets, 0 means no cap
	Limit int
}

// StoredOrder is the local view of an order returned after a single-order sync
type StoredOrder struct {
	ID                uuid.UUID
	IncrementID       string
	Status            string
	State             string
	GrandTotal        decimal.Decimal
	CustomerEmail     string
	ShippingAddressID string
	DetailsFetched    bool
	DetailsFetchedAt  *time.Time
	ItemCount         int
	UpdatedAt         time.Time
}

// OrderRepository persists orders and their items keyed by increment id
type OrderRepository interface {
	// ListNeedingDetails enumerates order increment ids, newest first
	ListNeedingDetails(ctx context.Context, q OrderQuery) ([]Target, error)
	// UpsertSummary writes the listing fields of an order
	UpsertSummary(ctx context.Context, incrementID string, o OrderSummary) (UpsertOutcome, error)
	// ApplyDetail writes the header, then each item by (increment id, item id),
	// then marks the details as fetched
	ApplyDetail(ctx context.Context, incrementID string, o OrderDetail) (UpsertOutcome, error)
	// ListShippingAddressIDs enumerates distinct shipping address ids
	ListShippingAddressIDs(ctx context.Context, q AddressQuery) ([]Target, error)
	// ApplyShippingAddress copies an address onto every order shipping to it
	ApplyShippingAddress(ctx context.Context, addressID string, a ShippingAddress) (UpsertOutcome, error)
	// FindByIncrementID returns ErrRecordNotFound when the order is unknown
	FindByIncrementID(ctx context.Context, incrementID string) (*StoredOrder, error)
}

// CustomerRepository persists customers keyed by customer id
type CustomerRepository interface {
	Upsert(ctx context.Context, customerID string, c Customer) (UpsertOutcome, error)
}

// ProductRepository persists products keyed by product id or sku
type ProductRepository interface {
	Upsert(ctx context.Context, identifier string, p Product) (UpsertOutcome, error)
}

// ---------------------------------------------------------------------------
// Run history
// ---------------------------------------------------------------------------

// SyncRun is the stored record of one job invocation
type SyncRun struct {
	ID         uuid.UUID
	Job        string
	Trigger    string
	Passes     int
	Result     SyncResult
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// SyncRunRepository persists job invocations
type SyncRunRepository interface {
	Save(ctx context.Context, run *SyncRun) error
	// ListRecent returns the newest runs first; an empty job lists every job
	ListRecent(ctx context.Context, job string, limit int) ([]SyncRun, error)
}

// RunLock keeps two runs of the same job from overlapping. ok is false when
// another holder has the lock; release is then nil.
type RunLock interface {
	Acquire(ctx context.Context, job string, ttl time.Duration) (release func(), ok bool, err error)
}
