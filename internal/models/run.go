package models

import (
	"encoding/json"
	"time"
)

// RunRecord is the stored outcome of one simulate request.
type RunRecord struct {
	ID              string          `json:"id"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	RoundsRequested int             `json:"rounds_requested"`
	RoundsCompleted int             `json:"rounds_completed"`
	Seed            int64           `json:"seed"`
	Failures        int             `json:"failures"`
	Report          json.RawMessage `json:"report,omitempty"`
	Error           string          `json:"error,omitempty"`
}
