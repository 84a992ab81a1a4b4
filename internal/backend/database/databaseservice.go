package database

import (
	"context"
	"database/sql"
)

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// InsertFoodLog performs a plain insert; there is no upsert or dedup key.
	// A missing ID is generated. Failures are returned as *PersistenceError.
	InsertFoodLog(ctx context.Context, entry *FoodLog) error
	// GetFoodLogsByUser returns the user's entries, newest first.
	GetFoodLogsByUser(ctx context.Context, userID string) ([]*FoodLog, error)
}
