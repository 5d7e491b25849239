package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/magesync/backend/internal/domain/integration"
	"github.com/magesync/backend/internal/infrastructure/persistence/models"
)

// GormCustomerRepository implements CustomerRepository using GORM
type GormCustomerRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// Ensure GormCustomerRepository implements the CustomerRepository port
var _ integration.CustomerRepository = (*GormCustomerRepository)(nil)

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db, now: time.Now}
}

// Upsert creates or updates a customer by its remote id
func (r *GormCustomerRepository) Upsert(ctx context.Context, customerID string, c integration.Customer) (integration.UpsertOutcome, error) {
	var outcome integration.UpsertOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now().UTC()
		cols := models.CustomerColumns(c)
		cols["synced_at"] = now

		id, found, err := lockRowID(tx, &models.CustomerModel{}, "customer_id = ?", customerID)
		if err != nil {
			return err
		}
		if found {
			return updateRow(tx, &models.CustomerModel{}, id, cols, now)
		}

		outcome.Created = true
		cols["customer_id"] = customerID
		cols.Default("email", "")
		return insertRow(tx, &models.CustomerModel{}, cols, now)
	})
	if err != nil {
		return integration.UpsertOutcome{}, fmt.Errorf("failed to upsert customer %s: %w", customerID, err)
	}
	return outcome, nil
}

// FindByCustomerID returns the stored customer
func (r *GormCustomerRepository) FindByCustomerID(ctx context.Context, customerID string) (*models.CustomerModel, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &model, nil
}
