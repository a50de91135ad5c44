// Package store contains the pgx-backed persistence layer.
//
// Each store is a thin struct over a shared pgxpool.Pool, in the same shape
// for every table: constructor, context-first methods, wrapped errors.
package store

import "fmt"

// ErrNotFound is returned when a row is missing.
var ErrNotFound = fmt.Errorf("not found")
