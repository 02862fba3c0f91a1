package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"photobooth/internal/export"
	"photobooth/internal/session"
)

// ErrNotFound is returned when no row matches.
var ErrNotFound = errors.New("not found")

// Store keeps job records and exported strips in an in-memory SQLite
// database. Nothing outlives the process.
type Store struct {
	DB *sql.DB
}

// New opens a private in-memory database and ensures the schema.
func New() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
            id TEXT PRIMARY KEY,
            job_type TEXT NOT NULL,
            status TEXT NOT NULL,
            mode TEXT,
            inputs INTEGER,
            options_json TEXT,
            created_at INTEGER NOT NULL,
            started_at INTEGER,
            completed_at INTEGER,
            artifact_id TEXT,
            error_message TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS strips (
            id TEXT PRIMARY KEY,
            filename TEXT NOT NULL,
            mode TEXT NOT NULL,
            width INTEGER,
            height INTEGER,
            data BLOB NOT NULL,
            created_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_strips_created ON strips(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// JobRecord captures a pipeline job.
type JobRecord struct {
	ID          string     `json:"id"`
	JobType     string     `json:"type"`
	Status      string     `json:"status"`
	Mode        string     `json:"mode"`
	Inputs      int        `json:"inputs"`
	OptionsJSON string     `json:"options,omitempty"`
	ArtifactID  string     `json:"artifact,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StripRecord describes a stored strip without its bytes.
type StripRecord struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Mode      string    `json:"mode"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordJobQueued inserts a pending job.
func (s *Store) RecordJobQueued(rec JobRecord) error {
	if s == nil {
		return nil
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.DB.Exec(`INSERT OR REPLACE INTO jobs (id, job_type, status, mode, inputs, options_json, created_at) VALUES (?, ?, ?, ?, ?, ?, ?);`,
		rec.ID, rec.JobType, "queued", rec.Mode, rec.Inputs, rec.OptionsJSON, created.UnixMilli())
	return err
}

// RecordJobStart marks a job as running.
func (s *Store) RecordJobStart(id string) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`UPDATE jobs SET status='running', started_at=? WHERE id=?;`, time.Now().UnixMilli(), id)
	return err
}

// RecordJobResult finalizes a job.
func (s *Store) RecordJobResult(id, status, artifactID, errMsg string) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`UPDATE jobs SET status=?, completed_at=?, artifact_id=?, error_message=? WHERE id=?;`,
		status, time.Now().UnixMilli(), artifactID, errMsg, id)
	return err
}

// RecentJobs returns the latest jobs up to limit.
func (s *Store) RecentJobs(limit int) ([]JobRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT id, job_type, status, mode, inputs, options_json, created_at, started_at, completed_at, artifact_id, error_message FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []JobRecord
	for rows.Next() {
		var rec JobRecord
		var created int64
		var started, completed sql.NullInt64
		var mode, options, artifact, errorMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.JobType, &rec.Status, &mode, &rec.Inputs, &options, &created, &started, &completed, &artifact, &errorMsg); err != nil {
			return nil, err
		}
		rec.Mode, rec.OptionsJSON = mode.String, options.String
		rec.ArtifactID, rec.Error = artifact.String, errorMsg.String
		rec.CreatedAt = time.UnixMilli(created)
		if started.Valid {
			t := time.UnixMilli(started.Int64)
			rec.StartedAt = &t
		}
		if completed.Valid {
			t := time.UnixMilli(completed.Int64)
			rec.CompletedAt = &t
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Put stores an exported strip.
func (s *Store) Put(ctx context.Context, a *export.Artifact) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.ExecContext(ctx, `INSERT OR REPLACE INTO strips (id, filename, mode, width, height, data, created_at) VALUES (?, ?, ?, ?, ?, ?, ?);`,
		a.ID, a.Filename, string(a.Mode), a.Width, a.Height, a.Data, a.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store strip %s: %w", a.ID, err)
	}
	return nil
}

// Strip loads a stored strip with its bytes.
func (s *Store) Strip(ctx context.Context, id string) (*export.Artifact, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	var a export.Artifact
	var mode string
	var created int64
	err := s.DB.QueryRowContext(ctx, `SELECT id, filename, mode, width, height, data, created_at FROM strips WHERE id=?;`, id).
		Scan(&a.ID, &a.Filename, &mode, &a.Width, &a.Height, &a.Data, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("strip %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	a.Mode = session.Mode(mode)
	a.CreatedAt = time.UnixMilli(created)
	return &a, nil
}

// RecentStrips lists the latest strips up to limit.
func (s *Store) RecentStrips(ctx context.Context, limit int) ([]StripRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, filename, mode, width, height, length(data), created_at FROM strips ORDER BY created_at DESC, rowid DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []StripRecord
	for rows.Next() {
		var rec StripRecord
		var created int64
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Mode, &rec.Width, &rec.Height, &rec.Size, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.UnixMilli(created)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
