// Package storage defines persistence contracts for account identity data.
//
// These interfaces exist so API handlers and business logic can depend on
// stable domain semantics without coupling to SQLite schema details.
package storage
