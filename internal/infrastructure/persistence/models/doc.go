// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities should be free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Mappers convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: Base persistence models and the AutoMigrate list
// - metal.go: Metal stock and exchange accounts with their ledger entries
// - bank.go: Bank and cash accounts with their ledger entries
// - finance.go: Invoices, bills and payment receipts
// - purchase.go, sales.go, manufacturing.go: Posted documents and their lines
// - catalogstock.go: Finished-goods stock levels
// - outbox.go: Outbox pattern model for event delivery
package models
