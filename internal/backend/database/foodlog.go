package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jo-hoe/foodlog/internal/nutrition"
)

// MealTypeUnset is written for every entry; meals are not classified.
const MealTypeUnset = "未設定"

const dateLayout = "2006-01-02"

// FoodLog is one row of the food_logs table. Rows are never updated or deleted.
type FoodLog struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Date      string             `json:"date"` // YYYY-MM-DD
	MealType  string             `json:"meal_type"`
	MenuName  string             `json:"menu_name"`
	Macros    nutrition.Estimate `json:"macros"`
	ImageURL  string             `json:"image_url"`
	CreatedAt time.Time          `json:"created_at"`
}

// NewFoodLog assembles an entry for an analyzed photo. Date is derived from createdAt in its location.
func NewFoodLog(userID string, estimate nutrition.Estimate, imageURL string, createdAt time.Time) *FoodLog {
	return &FoodLog{
		UserID:    userID,
		Date:      createdAt.Format(dateLayout),
		MealType:  MealTypeUnset,
		MenuName:  estimate.MenuName,
		Macros:    estimate,
		ImageURL:  imageURL,
		CreatedAt: createdAt,
	}
}

// PersistenceError reports a failed food_logs write.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to insert food log: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// scanFoodLogs reads rows of (id, user_id, date, meal_type, menu_name, macros, image_url, created_at).
// parseCreatedAt converts the driver's created_at value.
func scanFoodLogs[T any](rows *sql.Rows, parseCreatedAt func(T) (time.Time, error)) ([]*FoodLog, error) {
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var logs []*FoodLog
	for rows.Next() {
		var entry FoodLog
		var macros []byte
		var createdAt T
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Date, &entry.MealType, &entry.MenuName,
			&macros, &entry.ImageURL, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(macros, &entry.Macros); err != nil {
			return nil, fmt.Errorf("failed to decode macros of food log %s: %w", entry.ID, err)
		}
		parsed, err := parseCreatedAt(createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at of food log %s: %w", entry.ID, err)
		}
		entry.CreatedAt = parsed
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}
