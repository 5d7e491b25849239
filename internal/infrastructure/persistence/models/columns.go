package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Columns is a column-name keyed change set. Only fields the remote actually
// sent are put in it, so applying it never blanks a stored value.
type Columns map[string]any

// String sets col when v is present
func (c Columns) String(col string, v *string) {
	if v != nil {
		c[col] = *v
	}
}

// Decimal sets col when v is present
func (c Columns) Decimal(col string, v *decimal.Decimal) {
	if v != nil {
		c[col] = *v
	}
}

// Int sets col when v is present
func (c Columns) Int(col string, v *int) {
	if v != nil {
		c[col] = *v
	}
}

// Bool sets col when v is present
func (c Columns) Bool(col string, v *bool) {
	if v != nil {
		c[col] = *v
	}
}

// Time sets col when v is present
func (c Columns) Time(col string, v *time.Time) {
	if v != nil {
		c[col] = v.UTC()
	}
}

// Default sets col only when nothing set it yet. Used when a row is created.
func (c Columns) Default(col string, v any) {
	if _, ok := c[col]; !ok {
		c[col] = v
	}
}

// Has reports whether col is part of the change set
func (c Columns) Has(col string) bool {
	_, ok := c[col]
	return ok
}
