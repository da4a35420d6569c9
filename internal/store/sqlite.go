package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nvandessel/evolab/internal/models"
)

// timeFormat is fixed-width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store on a SQLite database under <root>/.evolab.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dir    string
	dbPath string
	now    func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database in
// <projectRoot>/.evolab/evolab.db.
func NewSQLiteStore(projectRoot string) (*SQLiteStore, error) {
	return OpenSQLiteStore(filepath.Join(LocalEvolabPath(projectRoot), DBFile))
}

// OpenSQLiteStore opens (creating if needed) the database at dbPath.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dir: dir, dbPath: dbPath, now: time.Now}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.dbPath }

// SaveAgents implements Store.
func (s *SQLiteStore) SaveAgents(ctx context.Context, agents []models.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM agents`); err != nil {
		return fmt.Errorf("failed to clear agents: %w", err)
	}

	now := s.now().UTC().Format(timeFormat)
	for i, a := range agents {
		skills, err := marshalStrings(a.Skills)
		if err != nil {
			return err
		}
		knowledge, err := marshalStrings(a.Knowledge)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO agents (name, position, evolution_level, skills, knowledge, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			a.Name, i, a.EvolutionLevel, skills, knowledge, now); err != nil {
			return fmt.Errorf("failed to insert agent %s: %w", a.Name, err)
		}

		for seq, in := range a.Interactions {
			used, err := marshalStrings(in.SkillsUsed)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO interactions (agent_name, seq, input, response, topic, skills_used, timestamp)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				a.Name, seq, in.Input, nullString(in.Response), nullString(in.Topic), used,
				in.Timestamp.UTC().Format(timeFormat)); err != nil {
				return fmt.Errorf("failed to insert interaction for %s: %w", a.Name, err)
			}
		}
	}

	return tx.Commit()
}

// LoadAgents implements Store.
func (s *SQLiteStore) LoadAgents(ctx context.Context) ([]models.AgentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, evolution_level, skills, knowledge FROM agents ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}

	var agents []models.AgentState
	index := make(map[string]int)
	for rows.Next() {
		var a models.AgentState
		var skills, knowledge string
		if err := rows.Scan(&a.Name, &a.EvolutionLevel, &skills, &knowledge); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		if a.Skills, err = unmarshalStrings(skills); err != nil {
			rows.Close()
			return nil, err
		}
		if a.Knowledge, err = unmarshalStrings(knowledge); err != nil {
			rows.Close()
			return nil, err
		}
		index[a.Name] = len(agents)
		agents = append(agents, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	irows, err := s.db.QueryContext(ctx,
		`SELECT agent_name, input, response, topic, skills_used, timestamp
		 FROM interactions ORDER BY agent_name, seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer irows.Close()

	for irows.Next() {
		var name, input, ts string
		var response, topic, used sql.NullString
		if err := irows.Scan(&name, &input, &response, &topic, &used, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		i, ok := index[name]
		if !ok {
			continue
		}
		in := models.Interaction{Input: input, Response: response.String, Topic: topic.String}
		if in.SkillsUsed, err = unmarshalStrings(used.String); err != nil {
			return nil, err
		}
		if in.Timestamp, err = time.Parse(timeFormat, ts); err != nil {
			return nil, fmt.Errorf("failed to parse interaction timestamp: %w", err)
		}
		agents[i].Interactions = append(agents[i].Interactions, in)
	}
	return agents, irows.Err()
}

// AddFeedback implements Store.
func (s *SQLiteStore) AddFeedback(ctx context.Context, entry models.FeedbackEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO feedback (id, session_id, input, response, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, nullString(entry.SessionID), entry.Input, nullString(entry.Response),
		entry.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return "", fmt.Errorf("failed to insert feedback: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", fmt.Errorf("feedback %s: %w", entry.ID, ErrExists)
	}

	for agent, rating := range entry.Ratings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO feedback_ratings (feedback_id, agent, rating) VALUES (?, ?, ?)`,
			entry.ID, agent, rating); err != nil {
			return "", fmt.Errorf("failed to insert rating for %s: %w", agent, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// ListFeedback implements Store.
func (s *SQLiteStore) ListFeedback(ctx context.Context) ([]models.FeedbackEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, input, response, created_at FROM feedback ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}

	var entries []models.FeedbackEntry
	index := make(map[string]int)
	for rows.Next() {
		var e models.FeedbackEntry
		var session, response sql.NullString
		var created string
		if err := rows.Scan(&e.ID, &session, &e.Input, &response, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		e.SessionID, e.Response = session.String, response.String
		if e.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to parse feedback time: %w", err)
		}
		e.Ratings = make(map[string]float64)
		index[e.ID] = len(entries)
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rrows, err := s.db.QueryContext(ctx, `SELECT feedback_id, agent, rating FROM feedback_ratings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rrows.Close()

	for rrows.Next() {
		var id, agent string
		var rating float64
		if err := rrows.Scan(&id, &agent, &rating); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		if i, ok := index[id]; ok {
			entries[i].Ratings[agent] = rating
		}
	}
	return entries, rrows.Err()
}

// SaveRun implements Store.
func (s *SQLiteStore) SaveRun(ctx context.Context, run models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	var finished sql.NullString
	if !run.FinishedAt.IsZero() {
		finished = nullString(run.FinishedAt.UTC().Format(timeFormat))
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
		 (id, started_at, finished_at, rounds_requested, rounds_completed, seed, failures, report, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(timeFormat), finished,
		run.RoundsRequested, run.RoundsCompleted, run.Seed, run.Failures,
		nullBytes(run.Report), nullString(run.Error))
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, rounds_requested, rounds_completed, seed, failures, report, error`

// GetRun implements Store.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns implements Store.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"interactions", "agents", "feedback_ratings", "feedback", "runs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.RunRecord, error) {
	var run models.RunRecord
	var started string
	var finished, report, runErr sql.NullString
	if err := row.Scan(&run.ID, &started, &finished, &run.RoundsRequested, &run.RoundsCompleted,
		&run.Seed, &run.Failures, &report, &runErr); err != nil {
		return nil, err
	}

	var err error
	if run.StartedAt, err = time.Parse(timeFormat, started); err != nil {
		return nil, fmt.Errorf("failed to parse run start: %w", err)
	}
	if finished.Valid {
		if run.FinishedAt, err = time.Parse(timeFormat, finished.String); err != nil {
			return nil, fmt.Errorf("failed to parse run finish: %w", err)
		}
	}
	if report.Valid && report.String != "" {
		run.Report = json.RawMessage(report.String)
	}
	run.Error = runErr.String
	return &run, nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

func unmarshalStrings(data string) ([]string, error) {
	values := []string{}
	if strings.TrimSpace(data) == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return values, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
