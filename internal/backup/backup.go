// Package backup exports and imports a lab's persisted state: agents,
// feedback entries and run records.
package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/evolab/internal/models"
	"github.com/nvandessel/evolab/internal/store"
)

// BackupDirName is the backup directory inside .evolab.
const BackupDirName = "backups"

// DefaultBackupDir returns <root>/.evolab/backups.
func DefaultBackupDir(root string) string {
	return filepath.Join(root, store.DirName, BackupDirName)
}

// GenerateBackupPath creates a timestamped backup filename in dir.
func GenerateBackupPath(dir string) string {
	ts := time.Now().Format("20060102-150405.000")
	return filepath.Join(dir, fmt.Sprintf("%s%s%s", filePrefix, ts, fileExt))
}

// Backup exports everything in st to outputPath.
func Backup(ctx context.Context, st store.Store, outputPath string) (*Snapshot, error) {
	agents, err := st.LoadAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load agents: %w", err)
	}
	feedback, err := st.ListFeedback(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	runs, err := st.ListRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	s := &Snapshot{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Agents:    agents,
		Feedback:  feedback,
		Runs:      runs,
	}
	if err := Write(outputPath, s); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	return s, nil
}

// RestoreMode controls how restore handles existing data.
type RestoreMode string

const (
	// RestoreMerge keeps existing records and adds the missing ones (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace clears the store before restoring.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode maps "merge", "replace" or "" (merge) to a mode.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(s) {
	case "", RestoreMerge:
		return RestoreMerge, nil
	case RestoreReplace:
		return RestoreReplace, nil
	default:
		return "", fmt.Errorf("invalid restore mode %q: must be merge or replace", s)
	}
}

// RestoreResult contains statistics about the restore operation.
type RestoreResult struct {
	AgentsRestored   int `json:"agents_restored"`
	AgentsSkipped    int `json:"agents_skipped"`
	FeedbackRestored int `json:"feedback_restored"`
	FeedbackSkipped  int `json:"feedback_skipped"`
	RunsRestored     int `json:"runs_restored"`
	RunsSkipped      int `json:"runs_skipped"`
}

// Restore imports a backup file into st. In merge mode, agents whose name
// is already stored keep their stored state and records whose ID is
// already stored are skipped. Restored agents follow the existing ones.
func Restore(ctx context.Context, st store.Store, inputPath string, mode RestoreMode) (*RestoreResult, error) {
	snap, err := Read(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	if mode == RestoreReplace {
		if err := st.Clear(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear store: %w", err)
		}
	}

	result := &RestoreResult{}
	if err := restoreAgents(ctx, st, snap.Agents, result); err != nil {
		return nil, err
	}

	for _, entry := range snap.Feedback {
		if _, err := st.AddFeedback(ctx, entry); err != nil {
			if errors.Is(err, store.ErrExists) {
				result.FeedbackSkipped++
				continue
			}
			return nil, fmt.Errorf("failed to restore feedback %s: %w", entry.ID, err)
		}
		result.FeedbackRestored++
	}

	for _, run := range snap.Runs {
		_, err := st.GetRun(ctx, run.ID)
		switch {
		case err == nil:
			result.RunsSkipped++
			continue
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("failed to check run %s: %w", run.ID, err)
		}
		if err := st.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to restore run %s: %w", run.ID, err)
		}
		result.RunsRestored++
	}

	return result, nil
}

func restoreAgents(ctx context.Context, st store.Store, agents []models.AgentState, result *RestoreResult) error {
	existing, err := st.LoadAgents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load agents: %w", err)
	}

	names := make(map[string]bool, len(existing))
	for _, a := range existing {
		names[a.Name] = true
	}

	merged := existing
	for _, a := range agents {
		if names[a.Name] {
			result.AgentsSkipped++
			continue
		}
		names[a.Name] = true
		merged = append(merged, a)
		result.AgentsRestored++
	}

	if result.AgentsRestored == 0 {
		return nil
	}
	if err := st.SaveAgents(ctx, merged); err != nil {
		return fmt.Errorf("failed to restore agents: %w", err)
	}
	return nil
}
