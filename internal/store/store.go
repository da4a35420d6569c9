// Package store persists agent state, feedback entries and run records.
package store

import (
	"context"
	"errors"

	"github.com/nvandessel/evolab/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExists is returned when adding a record whose ID is already stored.
	ErrExists = errors.New("already exists")
)

// Store defines persistence for a lab.
type Store interface {
	// SaveAgents replaces the stored population with agents, keeping their
	// order.
	SaveAgents(ctx context.Context, agents []models.AgentState) error

	// LoadAgents returns the stored population in saved order.
	LoadAgents(ctx context.Context) ([]models.AgentState, error)

	// AddFeedback stores a feedback entry and returns its ID. An empty ID
	// is assigned; a zero CreatedAt is set to now. Adding an existing ID
	// returns ErrExists.
	AddFeedback(ctx context.Context, entry models.FeedbackEntry) (string, error)

	// ListFeedback returns all feedback entries in insertion order.
	ListFeedback(ctx context.Context) ([]models.FeedbackEntry, error)

	// SaveRun inserts or replaces a run record.
	SaveRun(ctx context.Context, run models.RunRecord) error

	// GetRun returns the run with the given ID or ErrNotFound.
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)

	// ListRuns returns up to limit runs, newest first. A non-positive
	// limit returns all runs.
	ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error)

	// Clear removes all agents, feedback and runs.
	Clear(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
