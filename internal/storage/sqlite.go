package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStorage persists capture job history and their audio
// manifests. The live timeline state is deliberately not persisted;
// only export records cross a process boundary.
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS capture_jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		start_frame INTEGER NOT NULL,
		end_frame INTEGER NOT NULL,
		fps REAL NOT NULL,
		output_path TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_created ON capture_jobs(created_at DESC);

	CREATE TABLE IF NOT EXISTS audio_manifest (
		job_id TEXT NOT NULL REFERENCES capture_jobs(id) ON DELETE CASCADE,
		segment_id TEXT NOT NULL,
		source_path TEXT NOT NULL,
		project_start INTEGER NOT NULL,
		source_start INTEGER NOT NULL,
		duration INTEGER NOT NULL,
		volume REAL DEFAULT 1.0,
		fade_in INTEGER DEFAULT 0,
		fade_out INTEGER DEFAULT 0,
		PRIMARY KEY (job_id, segment_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Capture jobs

func (s *SQLiteStorage) CreateCaptureJob(job *CaptureJob) error {
	_, err := s.db.Exec(`
		INSERT INTO capture_jobs (id, status, start_frame, end_frame, fps, output_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.Status, job.StartFrame, job.EndFrame, job.FPS, job.OutputPath, job.CreatedAt)

	return err
}

func (s *SQLiteStorage) FinishCaptureJob(id, status string, finishedAt time.Time) error {
	_, err := s.db.Exec(`
		UPDATE capture_jobs SET status = ?, finished_at = ? WHERE id = ?
	`, status, finishedAt, id)
	return err
}

func (s *SQLiteStorage) GetCaptureJob(id string) (*CaptureJob, error) {
	row := s.db.QueryRow(`
		SELECT id, status, start_frame, end_frame, fps, output_path, created_at, finished_at
		FROM capture_jobs WHERE id = ?
	`, id)

	var job CaptureJob
	var finishedAt sql.NullTime
	err := row.Scan(
		&job.ID, &job.Status, &job.StartFrame, &job.EndFrame,
		&job.FPS, &job.OutputPath, &job.CreatedAt, &finishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}

	return &job, nil
}

func (s *SQLiteStorage) ListCaptureJobs(limit int) ([]CaptureJob, error) {
	rows, err := s.db.Query(`
		SELECT id, status, start_frame, end_frame, fps, output_path, created_at, finished_at
		FROM capture_jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []CaptureJob
	for rows.Next() {
		var job CaptureJob
		var finishedAt sql.NullTime
		if err := rows.Scan(
			&job.ID, &job.Status, &job.StartFrame, &job.EndFrame,
			&job.FPS, &job.OutputPath, &job.CreatedAt, &finishedAt,
		); err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			job.FinishedAt = &finishedAt.Time
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// Audio manifests

func (s *SQLiteStorage) SaveManifest(jobID string, entries []ManifestEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM audio_manifest WHERE job_id = ?", jobID); err != nil {
		return err
	}

	for _, e := range entries {
		if _, err := tx.Exec(`
			INSERT INTO audio_manifest
			(job_id, segment_id, source_path, project_start, source_start, duration, volume, fade_in, fade_out)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, jobID, e.SegmentID, e.SourcePath, e.ProjectStart, e.SourceStart, e.Duration, e.Volume, e.FadeIn, e.FadeOut); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStorage) GetManifest(jobID string) ([]ManifestEntry, error) {
	rows, err := s.db.Query(`
		SELECT job_id, segment_id, source_path, project_start, source_start, duration, volume, fade_in, fade_out
		FROM audio_manifest WHERE job_id = ? ORDER BY project_start, segment_id
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ManifestEntry
	for rows.Next() {
		var e ManifestEntry
		if err := rows.Scan(
			&e.JobID, &e.SegmentID, &e.SourcePath, &e.ProjectStart,
			&e.SourceStart, &e.Duration, &e.Volume, &e.FadeIn, &e.FadeOut,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
