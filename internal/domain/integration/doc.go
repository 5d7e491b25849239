// Package integration contains the Integration bounded context.
// This context mirrors catalog, order and customer data from a Magento
// store into the local database.
//
// Key concepts:
//   - RawRecord: semi-structured key/value data decoded from a remote response
//   - Bind: the field table that turns a RawRecord into a typed record
//   - Normalized records (OrderSummary, OrderDetail, Customer, ShippingAddress, Product)
//   - Target: an external identifier a batch pass processes
//   - SyncResult: the aggregate outcome of one batch pass
//
// Design Pattern: Ports & Adapters
//   - Ports (RemoteCatalog, SessionProvider, repositories) are defined here
//   - Adapters (Magento SOAP client, GORM repositories) are in the infrastructure layer
package integration
