package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"ticketwatch/internal/model"
	"ticketwatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements WatchStore and StateStore backed by a SQLite database.
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string, log *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	applied, err := migrations.Up(context.Background(), db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if len(applied) > 0 {
		log.Info("database migrated", "versions", applied)
	}

	return &SQLite{db: db, log: log}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateWatch inserts a new watch request and populates its ID and CreatedAt.
func (s *SQLite) CreateWatch(ctx context.Context, w *model.WatchRequest) error {
	keywords, err := encodeList(w.Keywords)
	if err != nil {
		return err
	}
	theatres, err := encodeList(w.Theatres)
	if err != nil {
		return err
	}
	locations, err := encodeList(w.Locations)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO watch_requests (movie_name, keywords, any_theatre, theatres, locations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		w.MovieName, keywords, boolToInt(w.AnyTheatre), theatres, locations, now,
	)
	if err != nil {
		return fmt.Errorf("insert watch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	w.ID = id
	w.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetWatch returns a single watch request by its ID.
func (s *SQLite) GetWatch(ctx context.Context, id int64) (*model.WatchRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, movie_name, keywords, any_theatre, theatres, locations, created_at
		 FROM watch_requests WHERE id = ?`, id,
	)
	w, err := scanWatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("watch %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWatches returns every watch request in declaration order.
func (s *SQLite) ListWatches(ctx context.Context) ([]model.WatchRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, movie_name, keywords, any_theatre, theatres, locations, created_at
		 FROM watch_requests ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query watches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var watches []model.WatchRequest
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		watches = append(watches, w)
	}
	return watches, rows.Err()
}

// DeleteWatch removes a watch request by its ID.
func (s *SQLite) DeleteWatch(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watch_requests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete watch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("watch %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteWatchesByMovie removes every watch request for movie, compared
// case-insensitively, and returns how many were removed.
func (s *SQLite) DeleteWatchesByMovie(ctx context.Context, movie string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM watch_requests WHERE movie_name = ? COLLATE NOCASE`,
		strings.TrimSpace(movie),
	)
	if err != nil {
		return 0, fmt.Errorf("delete watches: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// Load returns every fired alert record. A record whose timestamp cannot be
// parsed is kept with a nil FiredAt and reported as a warning.
func (s *SQLite) Load(ctx context.Context) (model.AlertState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT alert_key, fired_at FROM alert_records`)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	state := make(model.AlertState)
	for rows.Next() {
		var key string
		var firedAt sql.NullString
		if err := rows.Scan(&key, &firedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		rec := model.AlertRecord{Key: model.AlertKey(key)}
		if t, ok := parseFiredAt(firedAt); ok {
			rec.FiredAt = &t
		} else {
			s.log.Warn("alert record has unreadable timestamp, treating as fired",
				"key", key, "fired_at", firedAt.String)
		}
		state[rec.Key] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return state, nil
}

// Save replaces the stored alert records with state in one transaction.
func (s *SQLite) Save(ctx context.Context, state model.AlertState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM alert_records`); err != nil {
		return fmt.Errorf("clear alerts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO alert_records (alert_key, fired_at) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, key := range sortedKeys(state) {
		var firedAt *string
		if rec := state[key]; rec.FiredAt != nil {
			v := rec.FiredAt.UTC().Format(time.RFC3339Nano)
			firedAt = &v
		}
		if _, err := stmt.ExecContext(ctx, string(key), firedAt); err != nil {
			return fmt.Errorf("insert alert %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// DeleteAlert purges one fired key so the alert can fire again.
func (s *SQLite) DeleteAlert(ctx context.Context, key model.AlertKey) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_records WHERE alert_key = ?`, string(key))
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %q: %w", key, ErrNotFound)
	}
	return nil
}

func parseFiredAt(v sql.NullString) (time.Time, bool) {
	if !v.Valid || v.String == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func sortedKeys(state model.AlertState) []model.AlertKey {
	keys := make([]model.AlertKey, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanWatch(row scannable) (model.WatchRequest, error) {
	var w model.WatchRequest
	var anyTheatre int
	var keywords, theatres, locations, created string
	err := row.Scan(&w.ID, &w.MovieName, &keywords, &anyTheatre, &theatres, &locations, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return w, err
	}
	if err != nil {
		return w, fmt.Errorf("scan watch: %w", err)
	}
	w.AnyTheatre = anyTheatre == 1
	if w.Keywords, err = decodeList(keywords); err != nil {
		return w, fmt.Errorf("watch %d keywords: %w", w.ID, err)
	}
	if w.Theatres, err = decodeList(theatres); err != nil {
		return w, fmt.Errorf("watch %d theatres: %w", w.ID, err)
	}
	if w.Locations, err = decodeList(locations); err != nil {
		return w, fmt.Errorf("watch %d locations: %w", w.ID, err)
	}
	w.CreatedAt, _ = time.Parse(timeLayout, created)
	return w, nil
}
