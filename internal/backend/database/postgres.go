package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"
)

// PostgresDatabase writes to a Postgres food_logs table, e.g. the one of a Supabase project.
type PostgresDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewPostgresDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, err
	}

	return &PostgresDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (p *PostgresDatabase) CreateDatabase() (*sql.DB, error) {
	_, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS food_logs (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		date DATE NOT NULL,
		meal_type TEXT NOT NULL,
		menu_name TEXT NOT NULL,
		macros JSONB NOT NULL,
		image_url TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return nil, err
	}

	_, err = p.db.Exec(`CREATE INDEX IF NOT EXISTS idx_food_logs_user_created ON food_logs (user_id, created_at)`)
	if err != nil {
		return nil, err
	}

	return p.db, nil
}

func (p *PostgresDatabase) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *PostgresDatabase) DoesDatabaseExist() bool {
	return p.db.Ping() == nil
}

func (p *PostgresDatabase) InsertFoodLog(ctx context.Context, entry *FoodLog) error {
	ensureID(entry)

	macros, err := json.Marshal(entry.Macros)
	if err != nil {
		return &PersistenceError{Err: err}
	}

	_, err = p.db.ExecContext(ctx, `INSERT INTO food_logs
		(id, user_id, date, meal_type, menu_name, macros, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.UserID, entry.Date, entry.MealType, entry.MenuName,
		string(macros), entry.ImageURL, entry.CreatedAt)
	if err != nil {
		return &PersistenceError{Err: err}
	}
	return nil
}

func (p *PostgresDatabase) GetFoodLogsByUser(ctx context.Context, userID string) ([]*FoodLog, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, user_id, date::text, meal_type, menu_name, macros, image_url, created_at
		FROM food_logs WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	return scanFoodLogs(rows, func(value time.Time) (time.Time, error) {
		return value, nil
	})
}
