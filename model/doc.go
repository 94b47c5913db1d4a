// Package model declares tables explicitly: a Model lists its fields and
// primary key, validates records and filters against them, and coerces
// values and ids to the field types.
package model
