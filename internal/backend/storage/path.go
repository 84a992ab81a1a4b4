package storage

import (
	"time"

	"github.com/google/uuid"
)

const pathTimestampLayout = "20060102_150405"

// ObjectPath builds "{userID}/{YYYYMMDD_HHMMSS}.jpg" from the submission time.
// The timestamp has second resolution, so two submissions of the same user within one second
// share a path and the later upload replaces the earlier object. With uniqueSuffix set a short
// random suffix is added to keep both.
func ObjectPath(userID string, submittedAt time.Time, uniqueSuffix bool) string {
	name := submittedAt.Format(pathTimestampLayout)
	if uniqueSuffix {
		name += "_" + uuid.NewString()[:8]
	}
	return userID + "/" + name + ".jpg"
}
