package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"servicewatch/internal/models"
	"servicewatch/internal/storage"
)

// SQLiteStore implements the storage.Storer interface for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore and establishes a connection to the database
// file. It also runs migrations to ensure the schema is up to date.
func New(ctx context.Context, dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// migrate ensures the database schema is created.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS watchers (
	id                     TEXT PRIMARY KEY,
	name                   TEXT NOT NULL,
	status                 TEXT NOT NULL,
	observation_type       TEXT,
	application_url        TEXT NOT NULL DEFAULT '',
	observability_sources  TEXT NOT NULL DEFAULT '{}',
	scan_frequency_minutes INTEGER,
	analysis_period_days   INTEGER,
	next_observation_at    TEXT,
	created_at             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_watchers_status_next ON watchers (status, next_observation_at);

CREATE TABLE IF NOT EXISTS candidates (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	watcher_id             TEXT NOT NULL,
	entity_type            TEXT NOT NULL,
	name                   TEXT NOT NULL,
	route_path             TEXT NOT NULL DEFAULT '',
	method                 TEXT NOT NULL DEFAULT '',
	scan_frequency_minutes INTEGER,
	analysis_period_days   INTEGER,
	created_at             TEXT NOT NULL,
	FOREIGN KEY(watcher_id) REFERENCES watchers(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_candidates_watcher ON candidates (watcher_id, entity_type, name);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const watcherColumns = `id, name, status, observation_type, application_url, observability_sources, scan_frequency_minutes, analysis_period_days, next_observation_at, created_at`

// scanWatcher decodes one watcher row from any row scanner.
func scanWatcher(scan func(dest ...any) error) (*models.Watcher, error) {
	var w models.Watcher
	var obsType, nextAt sql.NullString
	var sourcesJSON, createdAt string
	var freq, period sql.NullInt64
	if err := scan(&w.ID, &w.Name, &w.Status, &obsType, &w.ApplicationURL, &sourcesJSON, &freq, &period, &nextAt, &createdAt); err != nil {
		return nil, err
	}
	if obsType.Valid {
		w.ObservationType = models.ObservationType(obsType.String)
	}
	if sourcesJSON != "" && sourcesJSON != "{}" {
		if err := json.Unmarshal([]byte(sourcesJSON), &w.ObservabilitySources); err != nil {
			return nil, fmt.Errorf("failed to decode observability sources: %w", err)
		}
	}
	if freq.Valid {
		v := int(freq.Int64)
		w.ScanFrequencyMinutes = &v
	}
	if period.Valid {
		v := int(period.Int64)
		w.AnalysisPeriodDays = &v
	}
	if nextAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, nextAt.String); err == nil {
			w.NextObservationAt = &t
		}
	}
	w.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &w, nil
}

// CreateWatcher saves a new watcher record.
func (s *SQLiteStore) CreateWatcher(ctx context.Context, w *models.Watcher) error {
	sourcesJSON := "{}"
	if len(w.ObservabilitySources) > 0 {
		b, err := json.Marshal(w.ObservabilitySources)
		if err != nil {
			return fmt.Errorf("failed to encode observability sources: %w", err)
		}
		sourcesJSON = string(b)
	}
	query := `
INSERT INTO watchers (id, name, status, observation_type, application_url, observability_sources, scan_frequency_minutes, analysis_period_days, next_observation_at, created_at)
VALUES (?, ?, ?, NULL, ?, ?, NULL, NULL, NULL, ?)`
	_, err := s.db.ExecContext(ctx, query, w.ID, w.Name, w.Status, w.ApplicationURL, sourcesJSON, w.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert watcher: %w", err)
	}
	return nil
}

// GetWatcherByID retrieves a single watcher by its unique ID.
func (s *SQLiteStore) GetWatcherByID(ctx context.Context, id string) (*models.Watcher, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+watcherColumns+` FROM watchers WHERE id = ?`, id)
	w, err := scanWatcher(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watcher by id: %w", err)
	}
	return w, nil
}

// ListDueWatchers retrieves scheduled watchers whose next observation instant
// has passed.
func (s *SQLiteStore) ListDueWatchers(ctx context.Context, now time.Time) ([]models.Watcher, error) {
	query := `SELECT ` + watcherColumns + ` FROM watchers
WHERE status = ? AND next_observation_at IS NOT NULL AND next_observation_at <= ?
ORDER BY next_observation_at, id`
	rows, err := s.db.QueryContext(ctx, query, models.StatusScheduled, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to list due watchers: %w", err)
	}
	defer rows.Close()
	var watchers []models.Watcher
	for rows.Next() {
		w, err := scanWatcher(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watcher row: %w", err)
		}
		watchers = append(watchers, *w)
	}
	return watchers, rows.Err()
}

// SetNextObservation advances a watcher's next observation instant.
func (s *SQLiteStore) SetNextObservation(ctx context.Context, watcherID string, next time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE watchers SET next_observation_at = ? WHERE id = ?`,
		next.UTC().Format(time.RFC3339Nano), watcherID)
	if err != nil {
		return fmt.Errorf("failed to set next observation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const candidateColumns = `id, watcher_id, entity_type, name, route_path, method, scan_frequency_minutes, analysis_period_days, created_at`

func scanCandidate(scan func(dest ...any) error) (*models.Candidate, error) {
	var c models.Candidate
	var freq, period sql.NullInt64
	var createdAt string
	if err := scan(&c.ID, &c.WatcherID, &c.EntityType, &c.Name, &c.RoutePath, &c.Method, &freq, &period, &createdAt); err != nil {
		return nil, err
	}
	if freq.Valid {
		v := int(freq.Int64)
		c.ScanFrequencyMinutes = &v
	}
	if period.Valid {
		v := int(period.Int64)
		c.AnalysisPeriodDays = &v
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &c, nil
}

// CreateCandidate saves a new candidate and fills in its generated id.
func (s *SQLiteStore) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	query := `
INSERT INTO candidates (watcher_id, entity_type, name, route_path, method, scan_frequency_minutes, analysis_period_days, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var freq, period any
	if c.ScanFrequencyMinutes != nil {
		freq = *c.ScanFrequencyMinutes
	}
	if c.AnalysisPeriodDays != nil {
		period = *c.AnalysisPeriodDays
	}
	res, err := s.db.ExecContext(ctx, query, c.WatcherID, c.EntityType, c.Name, c.RoutePath, c.Method, freq, period, c.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert candidate: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read candidate id: %w", err)
	}
	return nil
}

// GetCandidatesByIDs resolves candidate ids owned by the given watcher.
// Unknown ids are omitted, not an error.
func (s *SQLiteStore) GetCandidatesByIDs(ctx context.Context, watcherID string, ids []int64) ([]models.Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, watcherID)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE watcher_id = ? AND id IN (` + placeholders + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidates by ids: %w", err)
	}
	defer rows.Close()
	var candidates []models.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}

// ListCandidatesByWatcher retrieves all candidates of a watcher ordered by
// entity type, then name.
func (s *SQLiteStore) ListCandidatesByWatcher(ctx context.Context, watcherID string) ([]models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE watcher_id = ? ORDER BY entity_type, name, id`
	rows, err := s.db.QueryContext(ctx, query, watcherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()
	var candidates []models.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}

// ScheduleWatcher performs the pending_schedule -> scheduled transition inside
// one transaction so a concurrent duplicate call cannot pass the state check
// twice.
func (s *SQLiteStore) ScheduleWatcher(ctx context.Context, watcherID string, params storage.ScheduleParams) (*models.Watcher, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM watchers WHERE id = ?`, watcherID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read watcher status: %w", err)
	}
	if models.WatcherStatus(status) != models.StatusPendingSchedule {
		return nil, fmt.Errorf("watcher %s has status %q: %w", watcherID, status, storage.ErrInvalidState)
	}

	update := `
UPDATE watchers
SET status = ?, observation_type = ?, scan_frequency_minutes = ?, analysis_period_days = ?, next_observation_at = ?
WHERE id = ?`
	if _, err := tx.ExecContext(ctx, update,
		models.StatusScheduled, params.ObservationType,
		params.ScanFrequencyMinutes, params.AnalysisPeriodDays,
		params.NextObservationAt.UTC().Format(time.RFC3339Nano), watcherID); err != nil {
		return nil, fmt.Errorf("failed to update watcher schedule: %w", err)
	}

	if params.Propagate {
		propagate := `UPDATE candidates SET scan_frequency_minutes = ?, analysis_period_days = ? WHERE watcher_id = ?`
		if _, err := tx.ExecContext(ctx, propagate, params.ScanFrequencyMinutes, params.AnalysisPeriodDays, watcherID); err != nil {
			return nil, fmt.Errorf("failed to propagate schedule to candidates: %w", err)
		}
	}

	row := tx.QueryRowContext(ctx, `SELECT `+watcherColumns+` FROM watchers WHERE id = ?`, watcherID)
	w, err := scanWatcher(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read watcher: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return w, nil
}
