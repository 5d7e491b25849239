package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/magesync/backend/internal/domain/integration"
)

// ProductModel is the local copy of a catalog product with its stock item
type ProductModel struct {
	BaseModel
	ProductID        *string             `gorm:"type:varchar(50);uniqueIndex"`
	SKU              *string             `gorm:"column:sku;type:varchar(100);uniqueIndex"`
	Name             string              `gorm:"type:varchar(255);not null;default:''"`
	Description      *string             `gorm:"type:text"`
	ShortDescription *string             `gorm:"type:text"`
	Price            decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	SpecialPrice     decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	Cost             decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	Weight           decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	Qty              decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	IsInStock        bool                `gorm:"not null;default:false"`
	ManageStock      *bool
	MinQty           decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	MaxQty           decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	Status           *string             `gorm:"type:varchar(20);index"`
	Visibility       *string             `gorm:"type:varchar(10)"`
	TypeID           *string             `gorm:"type:varchar(50)"`
	AttributeSetID   *string             `gorm:"type:varchar(20)"`
	CategoryIDs      datatypes.JSON      `gorm:"column:category_ids;type:jsonb"`
	URLKey           *string             `gorm:"column:url_key;type:varchar(255)"`
	MetaTitle        *string             `gorm:"type:varchar(255)"`
	MetaDescription  *string             `gorm:"type:text"`
	Batch            *string             `gorm:"type:varchar(100)"`
	ExpiryDate       *string             `gorm:"type:varchar(30)"`
	Manufacturer     *string             `gorm:"type:varchar(255)"`
	ActiveIngredient *string             `gorm:"type:varchar(255)"`
	Dosage           *string             `gorm:"type:varchar(255)"`
	SyncedAt         *time.Time
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "magento_products"
}

// Categories decodes the stored category ids
func (m *ProductModel) Categories() []string {
	var ids []string
	if len(m.CategoryIDs) == 0 {
		return ids
	}
	_ = json.Unmarshal(m.CategoryIDs, &ids)
	return ids
}

// ProductColumns maps a catalog product
func ProductColumns(p integration.Product) Columns {
	c := Columns{}
	c.String("product_id", p.ProductID)
	c.String("sku", p.SKU)
	c.String("name", p.Name)
	c.String("description", p.Description)
	c.String("short_description", p.ShortDescription)
	c.Decimal("price", p.Price)
	c.Decimal("special_price", p.SpecialPrice)
	c.Decimal("cost", p.Cost)
	c.Decimal("weight", p.Weight)
	c.Decimal("qty", p.Qty)
	c.Bool("is_in_stock", p.IsInStock)
	c.Bool("manage_stock", p.ManageStock)
	c.Decimal("min_qty", p.MinQty)
	c.Decimal("max_qty", p.MaxQty)
	if p.Status != nil {
		c["status"] = p.Status.String()
	}
	c.String("visibility", p.Visibility)
	c.String("type_id", p.TypeID)
	c.String("attribute_set_id", p.AttributeSetID)
	if p.CategoryIDs != nil {
		data, _ := json.Marshal(p.CategoryIDs)
		c["category_ids"] = datatypes.JSON(data)
	}
	c.String("url_key", p.URLKey)
	c.String("meta_title", p.MetaTitle)
	c.String("meta_description", p.MetaDescription)
	c.String("batch", p.Batch)
	c.String("expiry_date", p.ExpiryDate)
	c.String("manufacturer", p.Manufacturer)
	c.String("active_ingredient", p.ActiveIngredient)
	c.String("dosage", p.Dosage)
	return c
}
