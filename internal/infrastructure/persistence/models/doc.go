// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Key Principles:
// 1. Persistence models contain all GORM annotations and table mappings
// 2. Mappers (ToDomain / FromDomain) convert between domain entities and models
// 3. Repositories use persistence models for database operations
// 4. Every numbered document table carries a unique index on (tenant_id, number)
//    whose name is listed in NumberConstraints
package models
