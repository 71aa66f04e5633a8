// Package database provides connection management, configuration loading,
// model registration, table creation, query logging, health checks and SQL
// error classification built on top of Bun.
package database
