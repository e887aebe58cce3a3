package tasks

import (
	"fmt"

	"github.com/lysyi3m/rss-insight/app/database"
)

// Jobs move forward only: pending to running, then running to exactly one
// terminal status.
var validTransitions = map[database.JobStatus][]database.JobStatus{
	database.JobStatusPending: {
		database.JobStatusRunning, // claimed by the scheduler
	},
	database.JobStatusRunning: {
		database.JobStatusCompleted,
		database.JobStatusFailed,
	},
	database.JobStatusCompleted: {},
	database.JobStatusFailed:    {},
}

// ValidateTransition returns an error if the job may not move from one
// status to the other.
func ValidateTransition(from, to database.JobStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown job status: %s", from)
	}

	for _, status := range allowed {
		if status == to {
			return nil
		}
	}

	return fmt.Errorf("invalid job transition from %s to %s", from, to)
}
