package persistence

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/magesync/backend/internal/domain/integration"
	"github.com/magesync/backend/internal/infrastructure/persistence/models"
)

// lockRowID returns the id of the row matching the natural key and locks it
// until the transaction ends. SQLite ignores the locking clause.
func lockRowID(tx *gorm.DB, model any, query string, args ...any) (uuid.UUID, bool, error) {
	var ids []uuid.UUID
	err := tx.Model(model).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(query, args...).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return uuid.Nil, false, err
	}
	if len(ids) == 0 {
		return uuid.Nil, false, nil
	}
	return ids[0], true, nil
}

// insertRow creates a row from a change set. Map creates skip model hooks,
// so the surrogate id and timestamps are set here.
func insertRow(tx *gorm.DB, model any, cols models.Columns, now time.Time) error {
	cols["id"] = uuid.New()
	cols["created_at"] = now
	cols["updated_at"] = now
	return tx.Model(model).Create(map[string]any(cols)).Error
}

// updateRow applies a change set to the row with the given id. An empty
// change set still bumps updated_at.
func updateRow(tx *gorm.DB, model any, id uuid.UUID, cols models.Columns, now time.Time) error {
	cols["updated_at"] = now
	return tx.Model(model).Where("id = ?", id).Updates(map[string]any(cols)).Error
}

// translateNotFound maps gorm.ErrRecordNotFound to the domain sentinel
func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return integration.ErrRecordNotFound
	}
	return err
}
