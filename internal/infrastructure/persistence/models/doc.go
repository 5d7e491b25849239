// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from the integration records to keep the domain layer pure
// and free from ORM concerns.
//
// Key Principles:
// 1. Normalized records carry no GORM tags; nil fields mean "not sent"
// 2. Persistence models carry the GORM annotations, natural-key indexes and defaults
// 3. Column maps built from records contain only the fields the remote sent
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: BaseModel
// - order.go: orders and order_items
// - customer.go: customers
// - product.go: magento_products
// - sync_run.go: sync_runs
package models
