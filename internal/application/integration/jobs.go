package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/magesync/backend/internal/domain/integration"
)

// Job names, also used as run lock keys and in sync_runs.job
const (
	JobOrderSummaries    = "order-summaries"
	JobOrderDetails      = "order-details"
	JobSingleOrder       = "single-order"
	JobShippingAddresses = "shipping-addresses"
	JobCustomers         = "customers"
	JobProducts          = "products"
	JobProductsList      = "products-list"
	JobSingleProduct     = "single-product"
)

// stockFields are the stock item fields copied onto a product record
var stockFields = []string{"qty", "is_in_stock", "manage_stock", "min_qty", "max_qty"}

// Jobs builds the job definitions over the remote API and the repositories
type Jobs struct {
	remote    integration.RemoteCatalog
	orders    integration.OrderRepository
	customers integration.CustomerRepository
	products  integration.ProductRepository
	logger    *zap.Logger
}

// NewJobs creates the job catalog
func NewJobs(
	remote integration.RemoteCatalog,
	orders integration.OrderRepository,
	customers integration.CustomerRepository,
	products integration.ProductRepository,
	log *zap.Logger,
) *Jobs {
	if log == nil {
		log = zap.NewNop()
	}
	return &Jobs{
		remote:    remote,
		orders:    orders,
		customers: customers,
		products:  products,
		logger:    log.Named("jobs"),
	}
}

// ---------------------------------------------------------------------------
// Listing-driven jobs
// ---------------------------------------------------------------------------

// listing keeps the records of a remote listing so that the per-target
// fetch reads from memory instead of calling the remote again.
type listing struct {
	records map[string]integration.RawRecord
}

func (l *listing) fetch(_ context.Context, _ string, t integration.Target) (integration.RawRecord, error) {
	raw, ok := l.records[t.ID]
	if !ok {
		return integration.RawRecord{}, fmt.Errorf("%w: %s not in listing", integration.ErrRemoteParse, t.ID)
	}
	return raw, nil
}

// enumerate indexes records by key; records without a key become blank
// targets, which the driver counts as skipped.
func (l *listing) enumerate(records []integration.RawRecord, key string) []integration.Target {
	l.records = make(map[string]integration.RawRecord, len(records))
	targets := make([]integration.Target, 0, len(records))
	for _, raw := range records {
		id, _ := raw.Get(key)
		targets = append(targets, integration.NewTarget(id))
		if id != "" {
			l.records[id] = raw
		}
	}
	return targets
}

// OrderSummaries lists orders updated since the cutoff and upserts their
// listing fields. A zero since lists everything.
func (j *Jobs) OrderSummaries(since time.Time) Job[integration.RawRecord, integration.OrderSummary] {
	l := &listing{}
	return Job[integration.RawRecord, integration.OrderSummary]{
		Name: JobOrderSummaries,
		Enumerate: func(ctx context.Context, sess integration.Session) ([]integration.Target, error) {
			records, err := withSession(ctx, sess, func(token string) ([]integration.RawRecord, error) {
				return j.remote.SalesOrderList(ctx, token, since)
			})
			if err != nil {
				return nil, err
			}
			return l.enumerate(records, "increment_id"), nil
		},
		Fetch: l.fetch,
		Normalize: func(_ integration.Target, raw integration.RawRecord) (integration.OrderSummary, error) {
			return integration.NormalizeOrderSummary(raw)
		},
		Upsert: func(ctx context.Context, t integration.Target, o integration.OrderSummary) (integration.UpsertOutcome, error) {
			return j.orders.UpsertSummary(ctx, t.ID, o)
		},
	}
}

// Customers lists customers updated since the cutoff and upserts them
func (j *Jobs) Customers(since time.Time) Job[integration.RawRecord, integration.Customer] {
	l := &listing{}
	return Job[integration.RawRecord, integration.Customer]{
		Name: JobCustomers,
		Enumerate: func(ctx context.Context, sess integration.Session) ([]integration.Target, error) {
			records, err := withSession(ctx, sess, func(token string) ([]integration.RawRecord, error) {
				return j.remote.CustomerList(ctx, token, since)
			})
			if err != nil {
				return nil, err
			}
			return l.enumerate(records, "customer_id"), nil
		},
		Fetch: l.fetch,
		Normalize: func(_ integration.Target, raw integration.RawRecord) (integration.Customer, error) {
			return integration.NormalizeCustomer(raw)
		},
		Upsert: func(ctx context.Context, t integration.Target, c integration.Customer) (integration.UpsertOutcome, error) {
			return j.customers.Upsert(ctx, t.ID, c)
		},
	}
}

// ---------------------------------------------------------------------------
// Backfill jobs enumerated from the local store
// ---------------------------------------------------------------------------

// OrderDetails fetches the full order of each enumerated increment id and
// writes its header and items
func (j *Jobs) OrderDetails(q integration.OrderQuery) Job[integration.RawRecord, integration.OrderDetail] {
	return Job[integration.RawRecord, integration.OrderDetail]{
		Name: JobOrderDetails,
		Enumerate: func(ctx context.Context, _ integration.Session) ([]integration.Target, error) {
			return j.orders.ListNeedingDetails(ctx, q)
		},
		Fetch: func(ctx context.Context, token string, t integration.Target) (integration.RawRecord, error) {
			return j.remote.SalesOrderInfo(ctx, token, t.ID)
		},
		Normalize: func(_ integration.Target, raw integration.RawRecord) (integration.OrderDetail, error) {
			return integration.NormalizeOrderDetail(raw)
		},
		Upsert: func(ctx context.Context, t integration.Target, o integration.OrderDetail) (integration.UpsertOutcome, error) {
			return j.orders.ApplyDetail(ctx, t.ID, o)
		},
	}
}

// SingleOrder is OrderDetails for one increment id
func (j *Jobs) SingleOrder() Job[integration.RawRecord, integration.OrderDetail] {
	job := j.OrderDetails(integration.OrderQuery{})
	job.Name = JobSingleOrder
	return job
}

// ShippingAddresses refreshes every distinct shipping address id and copies
// the address onto the orders that use it
func (j *Jobs) ShippingAddresses(q integration.AddressQuery) Job[integration.RawRecord, integration.ShippingAddress] {
	return Job[integration.RawRecord, integration.ShippingAddress]{
		Name: JobShippingAddresses,
		Enumerate: func(ctx context.Context, _ integration.Session) ([]integration.Target, error) {
			return j.orders.ListShippingAddressIDs(ctx, q)
		},
		Fetch: func(ctx context.Context, token string, t integration.Target) (integration.RawRecord, error) {
			return j.remote.CustomerAddressInfo(ctx, token, t.ID)
		},
		Normalize: func(t integration.Target, raw integration.RawRecord) (integration.ShippingAddress, error) {
			return integration.NormalizeShippingAddress(raw, t.ID)
		},
		Upsert: func(ctx context.Context, t integration.Target, a integration.ShippingAddress) (integration.UpsertOutcome, error) {
			return j.orders.ApplyShippingAddress(ctx, t.ID, a)
		},
	}
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// ProductQuery selects the products job scope
type ProductQuery struct {
	StoreView string
	// StockBatchSize caps the ids sent in one stock lookup
	StockBatchSize int
	// Limit caps the number of products, 0 means no cap
	Limit int
}

// stockIndex holds the stock items fetched for the current window, keyed by
// product id and by sku
type stockIndex struct {
	mu    sync.RWMutex
	items map[string]integration.RawRecord
}

func (s *stockIndex) replace(items map[string]integration.RawRecord) {
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

func (s *stockIndex) get(key string) (integration.RawRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[key]
	return item, ok
}

// Products lists the catalog, then fetches each product's info. Stock is
// looked up once per window and merged into the product record.
func (j *Jobs) Products(q ProductQuery) Job[integration.RawRecord, integration.Product] {
	return j.productJob(q, integration.IdentifierTypeID)
}

func (j *Jobs) productJob(q ProductQuery, idType integration.IdentifierType) Job[integration.RawRecord, integration.Product] {
	stock := &stockIndex{}
	batch := q.StockBatchSize
	if batch <= 0 {
		batch = 25
	}

	return Job[integration.RawRecord, integration.Product]{
		Name: JobProducts,
		Enumerate: func(ctx context.Context, sess integration.Session) ([]integration.Target, error) {
			records, err := withSession(ctx, sess, func(token string) ([]integration.RawRecord, error) {
				return j.remote.CatalogProductList(ctx, token, q.StoreView)
			})
			if err != nil {
				return nil, err
			}
			targets := make([]integration.Target, 0, len(records))
			for _, raw := range records {
				if q.Limit > 0 && len(targets) >= q.Limit {
					break
				}
				id, _ := raw.Get("product_id")
				sku, _ := raw.Get("sku")
				t := integration.NewTarget(id)
				t.Label = sku
				targets = append(targets, t)
			}
			return targets, nil
		},
		Prefetch: func(ctx context.Context, token string, window []integration.Target) error {
			items := make(map[string]integration.RawRecord, len(window))
			defer stock.replace(items)

			ids := make([]string, 0, len(window))
			for _, t := range window {
				ids = append(ids, t.ID)
			}
			for start := 0; start < len(ids); start += batch {
				end := min(start+batch, len(ids))
				records, err := j.remote.StockItemList(ctx, token, ids[start:end])
				if err != nil {
					return err
				}
				for _, rec := range records {
					for _, key := range []string{"product_id", "sku"} {
						if v, ok := rec.Get(key); ok && v != "" {
							items[v] = rec
						}
					}
				}
			}
			return nil
		},
		Fetch: func(ctx context.Context, token string, t integration.Target) (integration.RawRecord, error) {
			return j.productInfo(ctx, token, t.ID, q.StoreView, idType, stock)
		},
		Normalize: func(_ integration.Target, raw integration.RawRecord) (integration.Product, error) {
			return integration.NormalizeProduct(raw)
		},
		Upsert: func(ctx context.Context, t integration.Target, p integration.Product) (integration.UpsertOutcome, error) {
			return j.products.Upsert(ctx, t.ID, p)
		},
	}
}

// SingleProduct syncs one product by id or sku. The stock lookup runs as the
// prefetch of the one-target window; a failed lookup keeps the info.
func (j *Jobs) SingleProduct(storeView string, idType integration.IdentifierType) Job[integration.RawRecord, integration.Product] {
	job := j.productJob(ProductQuery{StoreView: storeView}, idType)
	job.Name = JobSingleProduct
	return job
}

// ProductsList upserts the catalog listing as is, without per-product info
// or stock calls. Listing rows carry id, sku, name, type and set only.
func (j *Jobs) ProductsList(q ProductQuery) Job[integration.RawRecord, integration.Product] {
	l := &listing{}
	return Job[integration.RawRecord, integration.Product]{
		Name: JobProductsList,
		Enumerate: func(ctx context.Context, sess integration.Session) ([]integration.Target, error) {
			records, err := withSession(ctx, sess, func(token string) ([]integration.RawRecord, error) {
				return j.remote.CatalogProductList(ctx, token, q.StoreView)
			})
			if err != nil {
				return nil, err
			}
			if q.Limit > 0 && len(records) > q.Limit {
				records = records[:q.Limit]
			}
			return l.enumerate(records, "product_id"), nil
		},
		Fetch: l.fetch,
		Normalize: func(_ integration.Target, raw integration.RawRecord) (integration.Product, error) {
			return integration.NormalizeProduct(raw)
		},
		Upsert: func(ctx context.Context, t integration.Target, p integration.Product) (integration.UpsertOutcome, error) {
			return j.products.Upsert(ctx, t.ID, p)
		},
	}
}

// productInfo fetches one product and overlays its prefetched stock item
func (j *Jobs) productInfo(ctx context.Context, token, identifier, storeView string, idType integration.IdentifierType, stock *stockIndex) (integration.RawRecord, error) {
	raw, err := j.remote.CatalogProductInfo(ctx, token, identifier, storeView, idType)
	if err != nil {
		return integration.RawRecord{}, err
	}
	item, ok := stock.get(identifier)
	if !ok {
		if id, found := raw.Get("product_id"); found {
			item, ok = stock.get(id)
		}
	}
	if ok {
		mergeStock(&raw, item)
	}
	return raw, nil
}

func mergeStock(product *integration.RawRecord, item integration.RawRecord) {
	overlay := integration.NewRawRecord()
	for _, key := range stockFields {
		if v, ok := item.Get(key); ok {
			overlay.Set(key, v)
		}
	}
	product.Overlay(overlay)
}

// withSession runs a listing call, logging in again once when the remote
// reports the session as expired.
func withSession(ctx context.Context, sess integration.Session, call func(token string) ([]integration.RawRecord, error)) ([]integration.RawRecord, error) {
	token, err := sess.Token(ctx)
	if err != nil {
		return nil, err
	}
	records, err := call(token)
	if !integration.IsSessionExpired(err) {
		return records, err
	}

	sess.Invalidate(ctx, token)
	if token, err = sess.Token(ctx); err != nil {
		return nil, err
	}
	return call(token)
}
