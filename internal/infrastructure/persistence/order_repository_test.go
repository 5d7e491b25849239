package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/magesync/backend/internal/domain/integration"
	"github.com/magesync/backend/internal/infrastructure/persistence/models"
)

// setupSyncTestDB opens an in-memory database with the whole schema. A single
// connection keeps every goroutine on the same in-memory database.
func setupSyncTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func detailRecord(t *testing.T, fields map[string]string, items ...map[string]string) integration.OrderDetail {
	raw := integration.RawRecordOf(fields)
	for _, item := range items {
		raw.Append("items", integration.RawRecordOf(item))
	}
	o, err := integration.NormalizeOrderDetail(raw)
	require.NoError(t, err)
	return o
}

func summaryRecord(t *testing.T, fields map[string]string) integration.OrderSummary {
	o, err := integration.NormalizeOrderSummary(integration.RawRecordOf(fields))
	require.NoError(t, err)
	return o
}

func findOrder(t *testing.T, db *gorm.DB, incrementID string) models.OrderModel {
	var m models.OrderModel
	require.NoError(t, db.Where("increment_id = ?", incrementID).First(&m).Error)
	return m
}

func TestGormOrderRepository_UpsertSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("creates then updates the same row", func(t *testing.T) {
		db := setupSyncTestDB(t)
		repo := NewGormOrderRepository(db)
		o := summaryRecord(t, map[string]string{
			"increment_id": "100000001",
			"status":       "processing",
			"grand_total":  "10.50",
		})

		first, err := repo.UpsertSummary(ctx, "100000001", o)
		require.NoError(t, err)
		assert.True(t, first.Created)

		second, err := repo.UpsertSummary(ctx, "100000001", o)
		require.NoError(t, err)
		assert.False(t, second.Created)

		var count int64
		db.Model(&models.OrderModel{}).Count(&count)
		assert.Equal(t, int64(1), count)

		m := findOrder(t, db, "100000001")
		assert.Equal(t, "PROCESSING", *m.Status)
		assert.True(t, decimal.RequireFromString("10.50").Equal(m.GrandTotal))
		assert.NotNil(t, m.SyncedAt)
	})

	t.Run("applies persist-time defaults only on create", func(t *testing.T) {
		db := setupSyncTestDB(t)
		repo := NewGormOrderRepository(db)

		_, err := repo.UpsertSummary(ctx, "100000002", summaryRecord(t, map[string]string{
			"increment_id": "100000002",
		}))
		require.NoError(t, err)

		m := findOrder(t, db, "100000002")
		assert.True(t, m.GrandTotal.IsZero())
		assert.True(t, m.Subtotal.IsZero())
		assert.Nil(t, m.Status)
		assert.False(t, m.DetailsFetched)
	})

	t.Run("absent fields preserve stored values", func(t *testing.T) {
		db := setupSyncTestDB(t)
		repo := NewGormOrderRepository(db)

		_, err := repo.UpsertSummary(ctx, "100000003", summaryRecord(t, map[string]string{
			"increment_id":   "100000003",
			"status":         "pending",
			"customer_email": "ana@example.com",
			"grand_total":    "99.00",
		}))
		require.NoError(t, err)

		_, err = repo.UpsertSummary(ctx, "100000003", summaryRecord(t, map[string]string{
			"increment_id":   "100000003",
			"customer_email": "",
			"grand_total":    "120.00",
		}))
		require.NoError(t, err)

		m := findOrder(t, db, "100000003")
		assert.Equal(t, "ana@example.com", *m.CustomerEmail)
		assert.Equal(t, "PENDING", *m.Status)
		assert.True(t, decimal.RequireFromString("120").Equal(m.GrandTotal))
	})

	t.Run("unknown status leaves stored status untouched", func(t *testing.T) {
		db := setupSyncTestDB(t)
		repo := NewGormOrderRepository(db)

		_, err := repo.UpsertSummary(ctx, "100000004", summaryRecord(t, map[string]string{
			"increment_id": "100000004",
			"status":       "complete",
		}))
		require.NoError(t, err)

		_, err = repo.UpsertSummary(ctx, "100000004", summaryRecord(t, map[string]string{
			"increment_id": "100000004",
			"status":       "awaiting_courier",
		}))
		require.NoError(t, err)

		m := findOrder(t, db, "100000004")
		assert.Equal(t, "COMPLETE", *m.Status)
	})

	t.Run("cancelled alias is stored canonical", func(t *testing.T) {
		db := setupSyncTestDB(t)
		repo := NewGormOrderRepository(db)

		_, err := repo.UpsertSummary(ctx, "100000005", summaryRecord(t, map[string]string{
			"increment_id": "100000005",
			"status":       "Cancelled",
		}))
		require.NoError(t, err)

		m := findOrder(t, db, "100000005")
		assert.Equal(t, "CANCELED", *m.Status)
	})
}

func TestGormOrderRepository_ApplyDetail(t *testing.T) {
	ctx := context.Background()
	header := map[string]string{
		"increment_id":        "100000010",
		"status":              "processing",
		"grand_total":         "59.90",
		"shipping_address_id": "501",
		"shipping_city":       "Curitiba",
	}
	itemA := map[string]string{"item_id": "1", "sku": "PARA-500", "qty_ordered": "2", "price": "9.95"}
	itemB := map[string]string{"item_id": "2", "sku": "IBU-200", "qty_ordered": "1", "price": "40.00"}

	t.Run("writes header, items and the fetched flag", func(t *testing.T) {
		db := setupSyncTestDB(t)
		repo := NewGormOrderRepository(db)

		outcome, err := repo.ApplyDetail(ctx, "100000010", detailRecord(t, header, itemA, itemB))
		require.NoError(t, err)
		assert.True(t, outcome.Created)
		assert.Equal(t, 2, outcome.Items)

		m := findOrder(t, db, "100000010")
		assert.True(t, m.DetailsFetched)
		assert.NotNil(t, m.DetailsFetchedAt)
		assert.Equal(t, "501", *m.ShippingAddressID)
		assert.Equal(t, "Curitiba", *m.ShippingCity)

		stored, err := repo.FindByIncrementID(ctx, "100000010")
		require.NoError(t, err)
		assert.Equal(t, 2, stored.ItemCount)
		assert.Equal(t, "PROCESSING", stored.Status)
	})

	t.Run("items are keyed by order and item id", func(t *testing.T) {
		db := setupSyncTestDB(t)
		repo := NewGormOrderRepository(db)

		_, err := repo.ApplyDetail(ctx, "100000010", detailRecord(t, header, itemA, itemB))
		require.NoError(t, err)

		changed := map[string]string{"item_id": "1", "qty_shipped": "2"}
		outcome, err := repo.ApplyDetail(ctx, "100000010", detailRecord(t, header, changed))
		require.NoError(t, err)
		assert.False(t, outcome.Created)
		assert.Equal(t, 1, outcome.Items)

		// the same item id under another order is a different row
		other := map[string]string{"increment_id": "100000011"}
		_, err = repo.ApplyDetail(ctx, "100000011", detailRecord(t, other, itemA))
		require.NoError(t, err)

		var items []models.OrderItemModel
		require.NoError(t, db.Order("order_increment_id, item_id").Find(&items).Error)
		require.Len(t, items, 3)

		first := items[0]
		assert.Equal(t, "100000010", first.OrderIncrementID)
		assert.Equal(t, "1", first.ItemID)
		assert.Equal(t, "PARA-500", *first.SKU)
		assert.True(t, first.QtyShipped.Valid)
		assert.True(t, decimal.NewFromInt(2).Equal(first.QtyShipped.Decimal))
		assert.True(t, decimal.NewFromInt(2).Equal(first.QtyOrdered))
	})

	t.Run("item defaults on create", func(t *testing.T) {
		db := setupSyncTestDB(t)
		repo := NewGormOrderRepository(db)

		_, err := repo.ApplyDetail(ctx, "100000012",
			detailRecord(t, map[string]string{"increment_id": "100000012"}, map[string]string{"item_id": "7"}))
		require.NoError(t, err)

		var item models.OrderItemModel
		require.NoError(t, db.Where("item_id = ?", "7").First(&item).Error)
		assert.Equal(t, "Item", item.Name)
		assert.True(t, item.Price.IsZero())
		assert.Nil(t, item.SKU)
	})

	t.Run("detail of an order only seen in the listing updates it", func(t *testing.T) {
		db := setupSyncTestDB(t)
		repo := NewGormOrderRepository(db)

		created, err := repo.UpsertSummary(ctx, "100000010", summaryRecord(t, map[string]string{
			"increment_id":   "100000010",
			"customer_email": "ana@example.com",
		}))
		require.NoError(t, err)
		assert.True(t, created.Created)

		outcome, err := repo.ApplyDetail(ctx, "100000010", detailRecord(t, header))
		require.NoError(t, err)
		assert.False(t, outcome.Created)

		m := findOrder(t, db, "100000010")
		assert.Equal(t, "ana@example.com", *m.CustomerEmail)
		assert.True(t, m.DetailsFetched)
	})
}

func TestGormOrderRepository_ConcurrentUpsertsDoNotDuplicate(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("2000%05d", i%10)
			_, err := repo.UpsertSummary(ctx, id, summaryRecord(t, map[string]string{"increment_id": id}))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	var count int64
	db.Model(&models.OrderModel{}).Count(&count)
	assert.Equal(t, int64(10), count)
}

func TestGormOrderRepository_ListNeedingDetails(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"100000001", "100000002", "100000003"} {
		repo.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		_, err := repo.UpsertSummary(ctx, id, summaryRecord(t, map[string]string{"increment_id": id}))
		require.NoError(t, err)
	}
	repo.now = time.Now
	_, err := repo.ApplyDetail(ctx, "100000002", detailRecord(t, map[string]string{"increment_id": "100000002"}))
	require.NoError(t, err)

	t.Run("only missing, newest first", func(t *testing.T) {
		targets, err := repo.ListNeedingDetails(ctx, integration.OrderQuery{OnlyMissing: true})
		require.NoError(t, err)
		assert.Equal(t, integration.TargetsOf("100000003", "100000001"), targets)
	})

	t.Run("all with limit", func(t *testing.T) {
		targets, err := repo.ListNeedingDetails(ctx, integration.OrderQuery{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, integration.TargetsOf("100000003", "100000002"), targets)
	})
}

func TestGormOrderRepository_ShippingAddresses(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	seed := []map[string]string{
		{"increment_id": "1", "shipping_address_id": "501"},
		{"increment_id": "2", "shipping_address_id": "501"},
		{"increment_id": "3", "shipping_address_id": "502", "shipping_street": "Rua A", "shipping_city": "Recife", "shipping_postcode": "50000", "shipping_country_id": "BR"},
		{"increment_id": "4", "shipping_address_id": "503"},
		{"increment_id": "5"},
	}
	for _, fields := range seed {
		_, err := repo.ApplyDetail(ctx, fields["increment_id"], detailRecord(t, fields))
		require.NoError(t, err)
	}

	t.Run("lists distinct ids", func(t *testing.T) {
		targets, err := repo.ListShippingAddressIDs(ctx, integration.AddressQuery{})
		require.NoError(t, err)
		assert.Equal(t, integration.TargetsOf("501", "502", "503"), targets)
	})

	t.Run("only missing skips complete addresses", func(t *testing.T) {
		targets, err := repo.ListShippingAddressIDs(ctx, integration.AddressQuery{OnlyMissing: true, Limit: 5})
		require.NoError(t, err)
		assert.Equal(t, integration.TargetsOf("501", "503"), targets)
	})

	address, err := integration.NormalizeShippingAddress(integration.RawRecordOf(map[string]string{
		"firstname":  "Ana",
		"street":     "Rua das Flores, 10\nApto 3",
		"city":       "Curitiba",
		"postcode":   "80000-000",
		"country_id": "BR",
		"region_id":  "18",
	}), "501")
	require.NoError(t, err)

	outcome, err := repo.ApplyShippingAddress(ctx, "501", address)
	require.NoError(t, err)
	assert.False(t, outcome.Created)
	assert.Equal(t, 2, outcome.Items)

	for _, id := range []string{"1", "2"} {
		m := findOrder(t, db, id)
		assert.Equal(t, "Rua das Flores, 10, Apto 3", *m.ShippingStreet)
		assert.Equal(t, "Curitiba", *m.ShippingCity)
		assert.Equal(t, 18, *m.ShippingRegionID)
		assert.NotNil(t, m.ShippingAddressUpdatedAt)
	}

	t.Run("refreshed address is no longer missing", func(t *testing.T) {
		targets, err := repo.ListShippingAddressIDs(ctx, integration.AddressQuery{OnlyMissing: true})
		require.NoError(t, err)
		assert.Equal(t, integration.TargetsOf("503"), targets)
	})

	t.Run("updated before filter", func(t *testing.T) {
		cutoff := time.Now().Add(-time.Hour)
		targets, err := repo.ListShippingAddressIDs(ctx, integration.AddressQuery{UpdatedBefore: &cutoff})
		require.NoError(t, err)
		assert.Equal(t, integration.TargetsOf("502", "503"), targets)
	})

	t.Run("unknown address updates nothing", func(t *testing.T) {
		outcome, err := repo.ApplyShippingAddress(ctx, "999", address)
		require.NoError(t, err)
		assert.Equal(t, 0, outcome.Items)
	})
}

func TestGormOrderRepository_FindByIncrementID_NotFound(t *testing.T) {
	repo := NewGormOrderRepository(setupSyncTestDB(t))

	_, err := repo.FindByIncrementID(context.Background(), "missing")
	assert.ErrorIs(t, err, integration.ErrRecordNotFound)
}

// ---------------------------------------------------------------------------
// SQL shape against the postgres dialect
// ---------------------------------------------------------------------------

func newMockOrderRepository(t *testing.T) (*GormOrderRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return NewGormOrderRepository(gormDB), mock, mockDB
}

func TestGormOrderRepository_LocksByNaturalKey(t *testing.T) {
	repo, mock, mockDB := newMockOrderRepository(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "orders" WHERE increment_id = \$1 LIMIT \$2 FOR UPDATE`).
		WithArgs("100000001", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO "orders"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := repo.UpsertSummary(context.Background(), "100000001", summaryRecord(t, map[string]string{
		"increment_id": "100000001",
	}))
	require.NoError(t, err)
	assert.True(t, outcome.Created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrderRepository_RollsBackOnFailure(t *testing.T) {
	repo, mock, mockDB := newMockOrderRepository(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "orders"`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.UpsertSummary(context.Background(), "100000001", summaryRecord(t, map[string]string{
		"increment_id": "100000001",
	}))
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
