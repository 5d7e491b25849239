package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/magesync/backend/internal/domain/integration"
	"github.com/magesync/backend/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// Ensure GormOrderRepository implements the OrderRepository port
var _ integration.OrderRepository = (*GormOrderRepository)(nil)

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db, now: time.Now}
}

// ListNeedingDetails enumerates order increment ids, newest first
func (r *GormOrderRepository) ListNeedingDetails(ctx context.Context, q integration.OrderQuery) ([]integration.Target, error) {
	query := r.db.WithContext(ctx).Model(&models.OrderModel{})
	if q.OnlyMissing {
		query = query.Where("details_fetched = ?", false)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var ids []string
	if err := query.Order("created_at DESC").Order("increment_id DESC").Pluck("increment_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return integration.TargetsOf(ids...), nil
}

// UpsertSummary writes the listing fields of an order
func (r *GormOrderRepository) UpsertSummary(ctx context.Context, incrementID string, o integration.OrderSummary) (integration.UpsertOutcome, error) {
	var outcome integration.UpsertOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := r.upsertHeader(tx, incrementID, models.OrderSummaryColumns(o))
		outcome.Created = created
		return err
	})
	if err != nil {
		return integration.UpsertOutcome{}, fmt.Errorf("failed to upsert order %s: %w", incrementID, err)
	}
	return outcome, nil
}

// ApplyDetail writes the header in its own transaction, then each item in
// its own, then marks the order as fetched. A failing item leaves the
// header written and the flag unset, so the order is picked up again.
func (r *GormOrderRepository) ApplyDetail(ctx context.Context, incrementID string, o integration.OrderDetail) (integration.UpsertOutcome, error) {
	var outcome integration.UpsertOutcome
	db := r.db.WithContext(ctx)

	err := db.Transaction(func(tx *gorm.DB) error {
		created, err := r.upsertHeader(tx, incrementID, models.OrderDetailColumns(o))
		outcome.Created = created
		return err
	})
	if err != nil {
		return integration.UpsertOutcome{}, fmt.Errorf("failed to upsert order %s: %w", incrementID, err)
	}

	for _, item := range o.Items {
		if item.ItemID == nil {
			continue
		}
		itemID := *item.ItemID
		err := db.Transaction(func(tx *gorm.DB) error {
			return r.upsertItem(tx, incrementID, itemID, models.OrderItemColumns(item))
		})
		if err != nil {
			return outcome, fmt.Errorf("failed to upsert item %s of order %s: %w", itemID, incrementID, err)
		}
		outcome.Items++
	}

	now := r.now().UTC()
	err = db.Model(&models.OrderModel{}).
		Where("increment_id = ?", incrementID).
		Updates(map[string]any{
			"details_fetched":    true,
			"details_fetched_at": now,
			"updated_at":         now,
		}).Error
	if err != nil {
		return outcome, fmt.Errorf("failed to mark order %s as fetched: %w", incrementID, err)
	}
	return outcome, nil
}

// upsertHeader creates or updates one order row and reports whether it was created
func (r *GormOrderRepository) upsertHeader(tx *gorm.DB, incrementID string, cols models.Columns) (bool, error) {
	now := r.now().UTC()
	cols["synced_at"] = now

	id, found, err := lockRowID(tx, &models.OrderModel{}, "increment_id = ?", incrementID)
	if err != nil {
		return false, err
	}
	if found {
		return false, updateRow(tx, &models.OrderModel{}, id, cols, now)
	}

	cols["increment_id"] = incrementID
	for _, col := range []string{
		"grand_total", "subtotal", "tax_amount", "shipping_amount",
		"discount_amount", "total_paid", "total_refunded",
	} {
		cols.Default(col, decimal.Zero)
	}
	cols.Default("total_qty_ordered", 0)
	cols.Default("details_fetched", false)
	return true, insertRow(tx, &models.OrderModel{}, cols, now)
}

// upsertItem creates or updates one order line by its compound key
func (r *GormOrderRepository) upsertItem(tx *gorm.DB, incrementID, itemID string, cols models.Columns) error {
	now := r.now().UTC()

	id, found, err := lockRowID(tx, &models.OrderItemModel{},
		"order_increment_id = ? AND item_id = ?", incrementID, itemID)
	if err != nil {
		return err
	}
	if found {
		return updateRow(tx, &models.OrderItemModel{}, id, cols, now)
	}

	cols["order_increment_id"] = incrementID
	cols["item_id"] = itemID
	cols.Default("name", "Item")
	cols.Default("qty_ordered", decimal.Zero)
	cols.Default("price", decimal.Zero)
	return insertRow(tx, &models.OrderItemModel{}, cols, now)
}

// ListShippingAddressIDs enumerates distinct shipping address ids
func (r *GormOrderRepository) ListShippingAddressIDs(ctx context.Context, q integration.AddressQuery) ([]integration.Target, error) {
	query := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("shipping_address_id IS NOT NULL AND shipping_address_id <> ''")
	if q.OnlyMissing {
		query = query.Where("shipping_address_updated_at IS NULL").
			Where("shipping_street IS NULL OR shipping_city IS NULL OR shipping_postcode IS NULL OR shipping_country_id IS NULL")
	}
	if q.UpdatedBefore != nil {
		query = query.Where("shipping_address_updated_at IS NULL OR shipping_address_updated_at < ?", q.UpdatedBefore.UTC())
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var ids []string
	if err := query.Distinct("shipping_address_id").Order("shipping_address_id").Pluck("shipping_address_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list shipping addresses: %w", err)
	}
	return integration.TargetsOf(ids...), nil
}

// ApplyShippingAddress copies an address onto every order shipping to it.
// Items reports how many orders were updated; Created is always false.
func (r *GormOrderRepository) ApplyShippingAddress(ctx context.Context, addressID string, a integration.ShippingAddress) (integration.UpsertOutcome, error) {
	now := r.now().UTC()
	cols := models.ShippingAddressColumns(a)
	cols["shipping_address_updated_at"] = now
	cols["updated_at"] = now

	result := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("shipping_address_id = ?", addressID).
		Updates(map[string]any(cols))
	if result.Error != nil {
		return integration.UpsertOutcome{}, fmt.Errorf("failed to apply shipping address %s: %w", addressID, result.Error)
	}
	return integration.UpsertOutcome{Items: int(result.RowsAffected)}, nil
}

// FindByIncrementID returns the stored order with its item count
func (r *GormOrderRepository) FindByIncrementID(ctx context.Context, incrementID string) (*integration.StoredOrder, error) {
	db := r.db.WithContext(ctx)

	var model models.OrderModel
	if err := db.Where("increment_id = ?", incrementID).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}

	var items int64
	if err := db.Model(&models.OrderItemModel{}).Where("order_increment_id = ?", incrementID).Count(&items).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(int(items)), nil
}
