// Package types holds the value types shared by the store: field and filter
// enums, filter conditions, and pagination requests/results.
package types
