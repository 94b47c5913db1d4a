// Package database provides connection management, database bootstrap,
// table creation for declared models, configuration loading, driver error
// classification, query hooks, logging, and health checks built on Bun.
package database
