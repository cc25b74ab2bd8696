package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/duckview/internal/model"

	_ "modernc.org/sqlite"
)

const createViewsTable = `
CREATE TABLE IF NOT EXISTS views (
    id           TEXT PRIMARY KEY,
    profile      TEXT NOT NULL,
    bundle       TEXT NOT NULL DEFAULT '',
    dataset_url  TEXT NOT NULL,
    state        TEXT NOT NULL,
    error        TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL,
    ready_at     DATETIME,
    unmounted_at DATETIME
)`

const createQueriesTable = `
CREATE TABLE IF NOT EXISTS queries (
    id           TEXT PRIMARY KEY,
    view_id      TEXT NOT NULL REFERENCES views(id),
    seq          INTEGER NOT NULL,
    sql          TEXT NOT NULL,
    status       TEXT NOT NULL,
    row_count    INTEGER NOT NULL DEFAULT 0,
    column_count INTEGER NOT NULL DEFAULT 0,
    error        TEXT NOT NULL DEFAULT '',
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL
)`

const createQueriesIndex = `CREATE INDEX IF NOT EXISTS idx_queries_view ON queries(view_id, seq)`

const viewColumns = `id, profile, bundle, dataset_url, state, error, created_at, ready_at, unmounted_at`

// ErrNotFound is returned when a view is not found.
var ErrNotFound = errors.New("view not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createViewsTable, createQueriesTable, createQueriesIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateView inserts a new view record.
func (s *SQLiteStore) CreateView(ctx context.Context, v *model.View) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO views (`+viewColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Profile, v.Bundle, v.DatasetURL, v.State, v.Error,
		v.CreatedAt, v.ReadyAt, v.UnmountedAt,
	)
	if err != nil {
		return fmt.Errorf("insert view: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanView(r rowScanner) (*model.View, error) {
	v := &model.View{}
	var readyAt, unmountedAt sql.NullTime
	if err := r.Scan(
		&v.ID, &v.Profile, &v.Bundle, &v.DatasetURL, &v.State, &v.Error,
		&v.CreatedAt, &readyAt, &unmountedAt,
	); err != nil {
		return nil, err
	}
	if readyAt.Valid {
		t := readyAt.Time
		v.ReadyAt = &t
	}
	if unmountedAt.Valid {
		t := unmountedAt.Time
		v.UnmountedAt = &t
	}
	return v, nil
}

// GetView retrieves a view by ID.
func (s *SQLiteStore) GetView(ctx context.Context, id string) (*model.View, error) {
	v, err := scanView(s.db.QueryRowContext(ctx,
		`SELECT `+viewColumns+` FROM views WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get view: %w", err)
	}
	return v, nil
}

// ListViews returns a paginated list of views ordered by created_at DESC,
// along with the total count of all views.
func (s *SQLiteStore) ListViews(ctx context.Context, limit, offset int) ([]*model.View, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM views").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count views: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+viewColumns+` FROM views ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()

	views := []*model.View{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan view: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate views: %w", err)
	}

	return views, total, nil
}

// UpdateViewState moves a view to state. The transition is checked against
// the current state inside a transaction. Moving to ready for the first time
// sets ready_at, and unmounting sets unmounted_at. errMsg replaces the stored
// error only when state is error.
func (s *SQLiteStore) UpdateViewState(ctx context.Context, id, state, errMsg string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT state FROM views WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read view state: %w", err)
	}
	if !model.ValidTransition(current, state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, state)
	}

	now := time.Now().UTC()
	switch state {
	case model.StateReady:
		_, err = tx.ExecContext(ctx,
			"UPDATE views SET state = ?, ready_at = COALESCE(ready_at, ?) WHERE id = ?",
			state, now, id)
	case model.StateError:
		_, err = tx.ExecContext(ctx,
			"UPDATE views SET state = ?, error = ? WHERE id = ?",
			state, errMsg, id)
	case model.StateUnmounted:
		_, err = tx.ExecContext(ctx,
			"UPDATE views SET state = ?, unmounted_at = ? WHERE id = ?",
			state, now, id)
	default:
		_, err = tx.ExecContext(ctx, "UPDATE views SET state = ? WHERE id = ?", state, id)
	}
	if err != nil {
		return fmt.Errorf("update view state: %w", err)
	}

	return tx.Commit()
}

// SetViewBundle records which engine bundle a view's session runs on.
func (s *SQLiteStore) SetViewBundle(ctx context.Context, id, bundle string) error {
	result, err := s.db.ExecContext(ctx, "UPDATE views SET bundle = ? WHERE id = ?", bundle, id)
	if err != nil {
		return fmt.Errorf("update view bundle: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertQuery appends a query to a view's history.
func (s *SQLiteStore) InsertQuery(ctx context.Context, q *model.QueryRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queries (id, view_id, seq, sql, status, row_count, column_count, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.ViewID, q.Seq, q.SQL, q.Status, q.RowCount, q.ColumnCount,
		q.Error, q.DurationMS, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query: %w", err)
	}
	return nil
}

// ListQueries returns a view's query history ordered by sequence number.
func (s *SQLiteStore) ListQueries(ctx context.Context, viewID string) ([]model.QueryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, view_id, seq, sql, status, row_count, column_count, error, duration_ms, created_at
		FROM queries WHERE view_id = ? ORDER BY seq ASC`, viewID,
	)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	queries := []model.QueryRecord{}
	for rows.Next() {
		var q model.QueryRecord
		if err := rows.Scan(
			&q.ID, &q.ViewID, &q.Seq, &q.SQL, &q.Status, &q.RowCount, &q.ColumnCount,
			&q.Error, &q.DurationMS, &q.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan query: %w", err)
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queries: %w", err)
	}
	return queries, nil
}

// GetStats aggregates view and query counts.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ViewsByState:    map[string]int{},
		ViewsByProfile:  map[string]int{},
		QueriesByStatus: map[string]int{},
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	groups := []struct {
		query string
		into  map[string]int
	}{
		{"SELECT state, COUNT(*) FROM views GROUP BY state", stats.ViewsByState},
		{"SELECT profile, COUNT(*) FROM views GROUP BY profile", stats.ViewsByProfile},
		{"SELECT status, COUNT(*) FROM queries GROUP BY status", stats.QueriesByStatus},
	}
	for _, g := range groups {
		if err := countInto(ctx, tx, g.query, g.into); err != nil {
			return nil, err
		}
	}
	for _, n := range stats.ViewsByState {
		stats.TotalViews += n
	}
	for _, n := range stats.QueriesByStatus {
		stats.TotalQueries += n
	}

	var avg sql.NullFloat64
	if err := tx.QueryRowContext(ctx,
		"SELECT AVG(duration_ms) FROM queries WHERE status = ?", model.QueryStatusSucceeded,
	).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average query duration: %w", err)
	}
	if avg.Valid {
		stats.AvgQueryMS = avg.Float64
	}

	return stats, nil
}

func countInto(ctx context.Context, tx *sql.Tx, query string, into map[string]int) error {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan count: %w", err)
		}
		into[key] = n
	}
	return rows.Err()
}
