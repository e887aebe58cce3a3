package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lysyi3m/rss-insight/app/database"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to database.JobStatus
		valid    bool
	}{
		{database.JobStatusPending, database.JobStatusRunning, true},
		{database.JobStatusRunning, database.JobStatusCompleted, true},
		{database.JobStatusRunning, database.JobStatusFailed, true},
		{database.JobStatusPending, database.JobStatusCompleted, false},
		{database.JobStatusPending, database.JobStatusFailed, false},
		{database.JobStatusRunning, database.JobStatusPending, false},
		{database.JobStatusCompleted, database.JobStatusPending, false},
		{database.JobStatusCompleted, database.JobStatusRunning, false},
		{database.JobStatusFailed, database.JobStatusPending, false},
		{database.JobStatusFailed, database.JobStatusCompleted, false},
		{"archived", database.JobStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
