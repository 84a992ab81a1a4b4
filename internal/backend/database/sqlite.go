package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"
)

// fixed width keeps lexical order equal to chronological order
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS food_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		meal_type TEXT NOT NULL,
		menu_name TEXT NOT NULL,
		macros TEXT NOT NULL,
		image_url TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_food_logs_user_created ON food_logs (user_id, created_at)`)
	if err != nil {
		return nil, err
	}

	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) InsertFoodLog(ctx context.Context, entry *FoodLog) error {
	ensureID(entry)

	macros, err := json.Marshal(entry.Macros)
	if err != nil {
		return &PersistenceError{Err: err}
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO food_logs
		(id, user_id, date, meal_type, menu_name, macros, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Date, entry.MealType, entry.MenuName,
		string(macros), entry.ImageURL, entry.CreatedAt.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return &PersistenceError{Err: err}
	}
	return nil
}

func (s *SQLiteDatabase) GetFoodLogsByUser(ctx context.Context, userID string) ([]*FoodLog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, date, meal_type, menu_name, macros, image_url, created_at
		FROM food_logs WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	return scanFoodLogs(rows, func(value string) (time.Time, error) {
		return time.Parse(sqliteTimeLayout, value)
	})
}
