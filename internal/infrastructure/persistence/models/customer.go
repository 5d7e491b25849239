package models

import (
	"time"

	"github.com/magesync/backend/internal/domain/integration"
)

// CustomerModel is the persistence model of a customer account
type CustomerModel struct {
	BaseModel
	CustomerID      string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	IncrementID     *string    `gorm:"type:varchar(50)"`
	Email           string     `gorm:"type:varchar(255);not null;default:'';index"`
	Prefix          *string    `gorm:"type:varchar(50)"`
	Firstname       *string    `gorm:"type:varchar(255)"`
	Middlename      *string    `gorm:"type:varchar(255)"`
	Lastname        *string    `gorm:"type:varchar(255)"`
	Suffix          *string    `gorm:"type:varchar(50)"`
	GroupID         *string    `gorm:"type:varchar(20)"`
	StoreID         *string    `gorm:"type:varchar(20)"`
	WebsiteID       *string    `gorm:"type:varchar(20)"`
	CreatedIn       *string    `gorm:"type:varchar(255)"`
	Dob             *string    `gorm:"type:varchar(30)"`
	Taxvat          *string    `gorm:"type:varchar(50)"`
	RemoteCreatedAt *time.Time `gorm:"index"`
	RemoteUpdatedAt *time.Time
	SyncedAt        *time.Time
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// CustomerColumns maps a customer account
func CustomerColumns(c integration.Customer) Columns {
	cols := Columns{}
	cols.String("increment_id", c.IncrementID)
	cols.String("email", c.Email)
	cols.String("prefix", c.Prefix)
	cols.String("firstname", c.Firstname)
	cols.String("middlename", c.Middlename)
	cols.String("lastname", c.Lastname)
	cols.String("suffix", c.Suffix)
	cols.String("group_id", c.GroupID)
	cols.String("store_id", c.StoreID)
	cols.String("website_id", c.WebsiteID)
	cols.String("created_in", c.CreatedIn)
	cols.String("dob", c.Dob)
	cols.String("taxvat", c.Taxvat)
	cols.Time("remote_created_at", c.RemoteCreatedAt)
	cols.Time("remote_updated_at", c.RemoteUpdatedAt)
	return cols
}
