package integration

import (
	"fmt"
	"regexp"
	"strings"
)

// Normalizers are pure: they never touch the network or the database and
// never substitute defaults. Defaults are applied by the repositories when
// a row is first created.

// NormalizeOrderSummary converts one entry of the order listing
func NormalizeOrderSummary(raw RawRecord) (OrderSummary, error) {
	var o OrderSummary
	if err := Bind(raw, &o); err != nil {
		return OrderSummary{}, err
	}
	if o.IncrementID == nil {
		return OrderSummary{}, fmt.Errorf("%w: order without increment_id", ErrRemoteParse)
	}
	return o, nil
}

// NormalizeOrderDetail converts a full order. Items without an item id
// cannot be keyed and are dropped.
func NormalizeOrderDetail(raw RawRecord) (OrderDetail, error) {
	var o OrderDetail
	if err := Bind(raw, &o); err != nil {
		return OrderDetail{}, err
	}
	if o.IncrementID == nil {
		return OrderDetail{}, fmt.Errorf("%w: order without increment_id", ErrRemoteParse)
	}

	items := o.Items[:0]
	for _, item := range o.Items {
		if item.ItemID != nil {
			items = append(items, item)
		}
	}
	o.Items = items
	return o, nil
}

// NormalizeCustomer converts one customer entry
func NormalizeCustomer(raw RawRecord) (Customer, error) {
	var c Customer
	if err := Bind(raw, &c); err != nil {
		return Customer{}, err
	}
	if c.CustomerID == nil {
		return Customer{}, fmt.Errorf("%w: customer without customer_id", ErrRemoteParse)
	}
	return c, nil
}

var streetLineBreak = regexp.MustCompile(`\r?\n`)

// NormalizeShippingAddress converts a customer address. The address info
// call does not always echo the id back, so the requested id is used
// when the record has none.
func NormalizeShippingAddress(raw RawRecord, addressID string) (ShippingAddress, error) {
	var a ShippingAddress
	if err := Bind(raw, &a); err != nil {
		return ShippingAddress{}, err
	}
	if a.AddressID == nil {
		if id := strings.TrimSpace(addressID); id != "" {
			a.AddressID = &id
		}
	}
	if a.AddressID == nil {
		return ShippingAddress{}, fmt.Errorf("%w: address without customer_address_id", ErrRemoteParse)
	}

	if a.Street != nil {
		var lines []string
		for _, line := range streetLineBreak.Split(*a.Street, -1) {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			a.Street = nil
		} else {
			joined := strings.Join(lines, ", ")
			a.Street = &joined
		}
	}
	return a, nil
}

// NormalizeProduct converts a product info record, optionally already
// overlaid with its stock item. Either the product id or the sku must be set.
func NormalizeProduct(raw RawRecord) (Product, error) {
	var p Product
	if err := Bind(raw, &p); err != nil {
		return Product{}, err
	}
	if p.ProductID == nil && p.SKU == nil {
		return Product{}, fmt.Errorf("%w: product without product_id and sku", ErrRemoteParse)
	}
	return p, nil
}
