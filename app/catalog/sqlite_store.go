package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

var _ Store = &SQLiteStore{}

func (s *SQLiteStore) Init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS spa_uploads (
			name TEXT PRIMARY KEY,
			size INTEGER,
			uploaded_at INTEGER,
			columns BLOB
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create spa_uploads table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS spa_saved_charts (
			name TEXT PRIMARY KEY,
			plot_id TEXT,
			title TEXT,
			filename TEXT,
			created_at INTEGER,
			png BLOB
		);
		CREATE INDEX IF NOT EXISTS idx_saved_created ON spa_saved_charts(created_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to create spa_saved_charts table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS spa_activity_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			description TEXT,
			ip TEXT,
			session TEXT,
			at INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_activity_at ON spa_activity_log(at);
	`)
	if err != nil {
		return fmt.Errorf("failed to create spa_activity_log table: %w", err)
	}
	return nil
}

// RecordUpload inserts or replaces the entry for f.Name. A re-upload clears
// the remembered columns since the file contents may have changed.
func (s *SQLiteStore) RecordUpload(ctx context.Context, f UploadedFile) error {
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spa_uploads (name, size, uploaded_at, columns) VALUES (?, ?, ?, NULL)
		ON CONFLICT(name) DO UPDATE SET size = excluded.size, uploaded_at = excluded.uploaded_at, columns = NULL`,
		f.Name, f.Size, f.UploadedAt.UnixMilli())
	return err
}

func (s *SQLiteStore) SetColumns(ctx context.Context, filename string, columns []string) error {
	colsJSON, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("failed to json encode columns: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE spa_uploads SET columns = ? WHERE name = ?`, colsJSON, filename)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// files uploaded before the catalog existed
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO spa_uploads (name, size, uploaded_at, columns) VALUES (?, 0, ?, ?)`,
			filename, time.Now().UnixMilli(), colsJSON)
	}
	return err
}

func (s *SQLiteStore) ListUploads(ctx context.Context) ([]UploadedFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, size, uploaded_at, columns FROM spa_uploads ORDER BY uploaded_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []UploadedFile
	for rows.Next() {
		var f UploadedFile
		var millis int64
		var colsJSON []byte
		if err := rows.Scan(&f.Name, &f.Size, &millis, &colsJSON); err != nil {
			return nil, err
		}
		f.UploadedAt = time.UnixMilli(millis)
		if len(colsJSON) > 0 {
			if err := json.Unmarshal(colsJSON, &f.Columns); err != nil {
				return nil, err
			}
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) SaveChart(ctx context.Context, c SavedChart) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spa_saved_charts (name, plot_id, title, filename, created_at, png) VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.PlotID, c.Title, c.Filename, c.CreatedAt.UnixMilli(), c.PNG)
	if err != nil {
		return fmt.Errorf("saving chart %s: %w", c.Name, err)
	}
	return nil
}

func (s *SQLiteStore) GetSavedChart(ctx context.Context, name string) (*SavedChart, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, plot_id, title, filename, created_at, png FROM spa_saved_charts WHERE name = ?`, name)
	var c SavedChart
	var millis int64
	err := row.Scan(&c.Name, &c.PlotID, &c.Title, &c.Filename, &millis, &c.PNG)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = time.UnixMilli(millis)
	return &c, nil
}

func (s *SQLiteStore) ListSavedCharts(ctx context.Context) ([]SavedChart, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, plot_id, title, filename, created_at FROM spa_saved_charts ORDER BY created_at DESC LIMIT 100`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var charts []SavedChart
	for rows.Next() {
		var c SavedChart
		var millis int64
		if err := rows.Scan(&c.Name, &c.PlotID, &c.Title, &c.Filename, &millis); err != nil {
			return nil, err
		}
		c.CreatedAt = time.UnixMilli(millis)
		charts = append(charts, c)
	}
	return charts, rows.Err()
}

func (s *SQLiteStore) RecordActivity(ctx context.Context, a Activity) error {
	if a.Action == "" {
		return errors.New("activity without action")
	}
	if a.At.IsZero() {
		a.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spa_activity_log (action, description, ip, session, at) VALUES (?, ?, ?, ?, ?)`,
		a.Action, a.Description, a.IP, a.Session, a.At.UnixMilli())
	return err
}

// ListActivity returns the latest entries, newest first.
func (s *SQLiteStore) ListActivity(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, description, ip, session, at FROM spa_activity_log ORDER BY at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Activity
	for rows.Next() {
		var a Activity
		var millis int64
		if err := rows.Scan(&a.Action, &a.Description, &a.IP, &a.Session, &millis); err != nil {
			return nil, err
		}
		a.At = time.UnixMilli(millis)
		entries = append(entries, a)
	}
	return entries, rows.Err()
}
