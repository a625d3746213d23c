// Package domain contains the core data types for the tagstore API.
// This package has zero external dependencies and is imported by every other
// internal package (repo, service, handler).
package domain

import "time"

// Tag is the current live state of one property/value pair on a product.
// Identity is the (Product, Owner, Key) triple: at most one live row exists
// per triple, enforced by the primary key of the tags table.
// Owner "" marks a public tag; any other value is a private per-user namespace.
type Tag struct {
	Product  string    `json:"product"`
	Key      string    `json:"k"`
	Value    string    `json:"v"`
	Owner    string    `json:"owner"`
	Version  int       `json:"version"`
	Editor   string    `json:"editor"`
	LastEdit time.Time `json:"last_edit"`
	Comment  string    `json:"comment"`
}

// ProductEntry is one row of the product listing view (GET /products).
type ProductEntry struct {
	Product string `json:"product"`
	Key     string `json:"k"`
	Value   string `json:"v"`
}

// ProductStats aggregates tag activity for one product.
type ProductStats struct {
	Product  string    `json:"product"`
	Keys     int       `json:"keys"`
	Editors  int       `json:"editors"`
	LastEdit time.Time `json:"last_edit"`
}

// KeyStats aggregates usage of one key across products.
// Values is the number of distinct values stored under the key.
type KeyStats struct {
	Key    string `json:"k"`
	Count  int    `json:"count"`
	Values int    `json:"values"`
}

// ValueCount is one row of the value enumeration for a fixed key:
// a distinct value and the number of products carrying it.
type ValueCount struct {
	Value    string `json:"v"`
	Products int    `json:"product_count"`
}

// TagFilter narrows current-state read queries. Owner is always applied
// (the public namespace is owner ""). Key and Value are exact-match filters;
// an empty Value with a non-empty Key matches every value under the key.
type TagFilter struct {
	Owner string
	Key   string
	Value string
}
