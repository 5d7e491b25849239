package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/magesync/backend/internal/domain/integration"
	"github.com/magesync/backend/internal/infrastructure/persistence/models"
)

// GormProductRepository implements ProductRepository using GORM
type GormProductRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// Ensure GormProductRepository implements the ProductRepository port
var _ integration.ProductRepository = (*GormProductRepository)(nil)

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db, now: time.Now}
}

// Upsert creates or updates a product. The row is located by product id
// first, then by sku; identifier is used when the record carries neither.
func (r *GormProductRepository) Upsert(ctx context.Context, identifier string, p integration.Product) (integration.UpsertOutcome, error) {
	var outcome integration.UpsertOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now().UTC()
		cols := models.ProductColumns(p)
		cols["synced_at"] = now

		id, found, err := r.locate(tx, identifier, p)
		if err != nil {
			return err
		}
		if found {
			return updateRow(tx, &models.ProductModel{}, id, cols, now)
		}

		outcome.Created = true
		if p.ProductID == nil && p.SKU == nil {
			cols["product_id"] = identifier
		}
		cols.Default("name", "")
		cols.Default("price", decimal.Zero)
		cols.Default("qty", decimal.Zero)
		cols.Default("is_in_stock", false)
		return insertRow(tx, &models.ProductModel{}, cols, now)
	})
	if err != nil {
		return integration.UpsertOutcome{}, fmt.Errorf("failed to upsert product %s: %w", identifier, err)
	}
	return outcome, nil
}

func (r *GormProductRepository) locate(tx *gorm.DB, identifier string, p integration.Product) (uuid.UUID, bool, error) {
	productID := integration.StringOr(p.ProductID, "")
	sku := integration.StringOr(p.SKU, "")
	if productID == "" && sku == "" {
		productID = identifier
	}

	if productID != "" {
		id, found, err := lockRowID(tx, &models.ProductModel{}, "product_id = ?", productID)
		if err != nil || found {
			return id, found, err
		}
	}
	if sku != "" {
		return lockRowID(tx, &models.ProductModel{}, "sku = ?", sku)
	}
	return uuid.Nil, false, nil
}

// FindByIdentifier returns the stored product by product id or sku
func (r *GormProductRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.ProductModel, error) {
	var model models.ProductModel
	err := r.db.WithContext(ctx).
		Where("product_id = ? OR sku = ?", identifier, identifier).
		First(&model).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &model, nil
}
