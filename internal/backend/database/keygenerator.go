package database

import "github.com/google/uuid"

// generateID returns a random RFC 4122 version 4 UUID.
func generateID() string {
	return uuid.NewString()
}

func ensureID(entry *FoodLog) {
	if entry.ID == "" {
		entry.ID = generateID()
	}
}
