package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"servicewatch/internal/models"
	"servicewatch/internal/storage"
)

// PostgresStore implements the storage.Storer interface for PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// New creates a new PostgresStore and establishes a connection to the database.
// It also runs migrations to ensure the schema is up to date.
func New(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	store := &PostgresStore{db: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}

// migrate ensures the database schema is created.
func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS watchers (
		id                     TEXT PRIMARY KEY,
		name                   TEXT NOT NULL,
		status                 TEXT NOT NULL,
		observation_type       TEXT,
		application_url        TEXT NOT NULL DEFAULT '',
		observability_sources  JSONB NOT NULL DEFAULT '{}',
		scan_frequency_minutes INTEGER,
		analysis_period_days   INTEGER,
		next_observation_at    TIMESTAMPTZ,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_watchers_status_next ON watchers (status, next_observation_at);

	CREATE TABLE IF NOT EXISTS candidates (
		id                     BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		watcher_id             TEXT NOT NULL REFERENCES watchers(id) ON DELETE CASCADE,
		entity_type            TEXT NOT NULL,
		name                   TEXT NOT NULL,
		route_path             TEXT NOT NULL DEFAULT '',
		method                 TEXT NOT NULL DEFAULT '',
		scan_frequency_minutes INTEGER,
		analysis_period_days   INTEGER,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_candidates_watcher ON candidates (watcher_id, entity_type, name);
	`
	_, err := s.db.Exec(ctx, schema)
	return err
}

const watcherColumns = `id, name, status, observation_type, application_url, observability_sources, scan_frequency_minutes, analysis_period_days, next_observation_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatcher(row rowScanner) (*models.Watcher, error) {
	var w models.Watcher
	var obsType *string
	var sourcesJSON []byte
	var freq, period *int
	var nextAt *time.Time
	if err := row.Scan(&w.ID, &w.Name, &w.Status, &obsType, &w.ApplicationURL, &sourcesJSON, &freq, &period, &nextAt, &w.CreatedAt); err != nil {
		return nil, err
	}
	if obsType != nil {
		w.ObservationType = models.ObservationType(*obsType)
	}
	if len(sourcesJSON) > 0 && string(sourcesJSON) != "{}" {
		if err := json.Unmarshal(sourcesJSON, &w.ObservabilitySources); err != nil {
			return nil, fmt.Errorf("failed to decode observability sources: %w", err)
		}
	}
	w.ScanFrequencyMinutes = freq
	w.AnalysisPeriodDays = period
	w.NextObservationAt = nextAt
	return &w, nil
}

// CreateWatcher implements the Storer interface.
func (s *PostgresStore) CreateWatcher(ctx context.Context, w *models.Watcher) error {
	sourcesJSON := []byte("{}")
	if len(w.ObservabilitySources) > 0 {
		b, err := json.Marshal(w.ObservabilitySources)
		if err != nil {
			return fmt.Errorf("failed to encode observability sources: %w", err)
		}
		sourcesJSON = b
	}
	query := `INSERT INTO watchers (id, name, status, application_url, observability_sources, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.Exec(ctx, query, w.ID, w.Name, w.Status, w.ApplicationURL, sourcesJSON, w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	return nil
}

// GetWatcherByID implements the Storer interface.
func (s *PostgresStore) GetWatcherByID(ctx context.Context, id string) (*models.Watcher, error) {
	row := s.db.QueryRow(ctx, `SELECT `+watcherColumns+` FROM watchers WHERE id = $1`, id)
	w, err := scanWatcher(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watcher by id: %w", err)
	}
	return w, nil
}

// ListDueWatchers implements the Storer interface.
func (s *PostgresStore) ListDueWatchers(ctx context.Context, now time.Time) ([]models.Watcher, error) {
	query := `SELECT ` + watcherColumns + ` FROM watchers
	WHERE status = $1 AND next_observation_at IS NOT NULL AND next_observation_at <= $2
	ORDER BY next_observation_at, id`
	rows, err := s.db.Query(ctx, query, models.StatusScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due watchers: %w", err)
	}
	defer rows.Close()
	var watchers []models.Watcher
	for rows.Next() {
		w, err := scanWatcher(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watcher row: %w", err)
		}
		watchers = append(watchers, *w)
	}
	return watchers, rows.Err()
}

// SetNextObservation implements the Storer interface.
func (s *PostgresStore) SetNextObservation(ctx context.Context, watcherID string, next time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE watchers SET next_observation_at = $1 WHERE id = $2`, next, watcherID)
	if err != nil {
		return fmt.Errorf("failed to set next observation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const candidateColumns = `id, watcher_id, entity_type, name, route_path, method, scan_frequency_minutes, analysis_period_days, created_at`

func scanCandidate(row rowScanner) (*models.Candidate, error) {
	var c models.Candidate
	if err := row.Scan(&c.ID, &c.WatcherID, &c.EntityType, &c.Name, &c.RoutePath, &c.Method, &c.ScanFrequencyMinutes, &c.AnalysisPeriodDays, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCandidate implements the Storer interface.
func (s *PostgresStore) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	query := `
	INSERT INTO candidates (watcher_id, entity_type, name, route_path, method, scan_frequency_minutes, analysis_period_days, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id`
	err := s.db.QueryRow(ctx, query, c.WatcherID, c.EntityType, c.Name, c.RoutePath, c.Method, c.ScanFrequencyMinutes, c.AnalysisPeriodDays, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create candidate: %w", err)
	}
	return nil
}

// GetCandidatesByIDs implements the Storer interface.
func (s *PostgresStore) GetCandidatesByIDs(ctx context.Context, watcherID string, ids []int64) ([]models.Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE watcher_id = $1 AND id = ANY($2)`
	rows, err := s.db.Query(ctx, query, watcherID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidates by ids: %w", err)
	}
	defer rows.Close()
	var candidates []models.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}

// ListCandidatesByWatcher implements the Storer interface.
func (s *PostgresStore) ListCandidatesByWatcher(ctx context.Context, watcherID string) ([]models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE watcher_id = $1 ORDER BY entity_type, name, id`
	rows, err := s.db.Query(ctx, query, watcherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()
	var candidates []models.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}

// ScheduleWatcher implements the Storer interface. The row lock taken by
// SELECT ... FOR UPDATE serializes concurrent schedule calls on one watcher.
func (s *PostgresStore) ScheduleWatcher(ctx context.Context, watcherID string, params storage.ScheduleParams) (*models.Watcher, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM watchers WHERE id = $1 FOR UPDATE`, watcherID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
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
	SET status = $1, observation_type = $2, scan_frequency_minutes = $3, analysis_period_days = $4, next_observation_at = $5
	WHERE id = $6`
	if _, err := tx.Exec(ctx, update,
		models.StatusScheduled, params.ObservationType,
		params.ScanFrequencyMinutes, params.AnalysisPeriodDays,
		params.NextObservationAt, watcherID); err != nil {
		return nil, fmt.Errorf("failed to update watcher schedule: %w", err)
	}

	if params.Propagate {
		propagate := `UPDATE candidates SET scan_frequency_minutes = $1, analysis_period_days = $2 WHERE watcher_id = $3`
		if _, err := tx.Exec(ctx, propagate, params.ScanFrequencyMinutes, params.AnalysisPeriodDays, watcherID); err != nil {
			return nil, fmt.Errorf("failed to propagate schedule to candidates: %w", err)
		}
	}

	row := tx.QueryRow(ctx, `SELECT `+watcherColumns+` FROM watchers WHERE id = $1`, watcherID)
	w, err := scanWatcher(row)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read watcher: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return w, nil
}
