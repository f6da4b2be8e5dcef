package models

import (
	"errors"
	"fmt"
)

// Cursor identifies the listing slice to request next.
type Cursor struct {
	Page     int
	PageSize int
}

// Advance moves the cursor to the following page.
func (c *Cursor) Advance() {
	c.Page++
}

// RawProduct is one untyped entry of the catalog payload. No key is
// guaranteed to be present.
type RawProduct map[string]any

// Lookup walks path through nested objects. It reports false as soon as a
// key is absent, null, or its parent is not an object.
func (r RawProduct) Lookup(path ...string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	var current any = map[string]any(r)
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok := obj[key]
		if !ok || value == nil {
			return nil, false
		}
		current = value
	}
	return current, true
}

// CatalogPayload is the decoded page state embedded in a listing page,
// shaped {"catalogServer": {"data": [...]}}.
type CatalogPayload map[string]any

var errNoCatalogData = errors.New("catalogServer.data not found")

// Products returns the raw entries under catalogServer.data in page order.
// A missing key or a non-list value is an error; an empty list is not.
func (c CatalogPayload) Products() ([]RawProduct, error) {
	server, ok := c["catalogServer"].(map[string]any)
	if !ok {
		return nil, errNoCatalogData
	}
	data, ok := server["data"]
	if !ok || data == nil {
		return nil, errNoCatalogData
	}
	items, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("catalogServer.data is %T, want a list", data)
	}

	products := make([]RawProduct, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("catalogServer.data[%d] is %T, want an object", i, item)
		}
		products = append(products, RawProduct(obj))
	}
	return products, nil
}
