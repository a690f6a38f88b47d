package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

// Submission statuses. A submission is fire-and-forget: "submitted" is
// terminal unless a later verification pass inspects the output store.
const (
	StatusSubmitted = "submitted"
	StatusSucceeded = "succeeded"
	StatusMissing   = "missing"
	StatusFailed    = "failed"
)

// Initialize DB connection
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}

	// Create tables if not exists
	runTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input_file TEXT,
		output_bucket TEXT,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);
	`
	submissionTable := `
	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		input_url TEXT,
		output_url TEXT,
		year INTEGER,
		handle TEXT,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);
	`
	errorTable := `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		input_url TEXT,
		error_message TEXT,
		created_at DATETIME
	);
	`

	for _, stmt := range []string{runTable, submissionTable, errorTable} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateRun stores a new dispatch run
func CreateRun(runID, inputFile, outputBucket string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO runs (id, input_file, output_bucket, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, inputFile, outputBucket, "running", now, now)
	return err
}

// UpdateRunStatus updates run status
func UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveRunError records a per-dataset error inside a run
func SaveRunError(runID, inputURL string, err error) error {
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := db.Exec(`INSERT INTO run_errors (run_id, input_url, error_message, created_at) VALUES (?, ?, ?, ?)`,
		runID, inputURL, err.Error(), now)
	return e
}

// SaveSubmission records one per-year job submission and its handle
func SaveSubmission(runID, inputURL, outputURL string, year int, handle string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO submissions (run_id, input_url, output_url, year, handle, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, inputURL, outputURL, year, handle, StatusSubmitted, now, now)
	return err
}

// UpdateSubmissionStatus moves one submission, addressed by handle, to a
// new status.
func UpdateSubmissionStatus(handle string, status string) error {
	now := time.Now().UTC()
	res, err := db.Exec(`UPDATE submissions SET status = ?, updated_at = ? WHERE handle = ?`, status, now, handle)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no submission with handle %q", handle)
	}
	return nil
}

// Run is a row from the runs table plus submission status counts.
type Run struct {
	ID           string         `json:"id"`
	InputFile    string         `json:"inputFile"`
	OutputBucket string         `json:"outputBucket"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	Submissions  map[string]int `json:"submissions,omitempty"`
}

// Submission is a row from the submissions table.
type Submission struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"runId"`
	InputURL  string    `json:"inputUrl"`
	OutputURL string    `json:"outputUrl"`
	Year      int       `json:"year"`
	Handle    string    `json:"handle"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RunError is a row from the run_errors table.
type RunError struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"runId"`
	InputURL  string    `json:"inputUrl"`
	Message   string    `json:"errorMessage"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListRuns returns all runs, newest first
func ListRuns() ([]Run, error) {
	rows, err := db.Query(`SELECT id, input_file, output_bucket, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.InputFile, &r.OutputBucket, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches one run with its submission status counts
func GetRun(runID string) (*Run, error) {
	var r Run
	err := db.QueryRow(`SELECT id, input_file, output_bucket, status, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&r.ID, &r.InputFile, &r.OutputBucket, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT status, COUNT(*) FROM submissions WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	r.Submissions = make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		r.Submissions[status] = count
	}
	return &r, rows.Err()
}

// ListSubmissions returns a run's submissions ordered by dataset and year
func ListSubmissions(runID string) ([]Submission, error) {
	rows, err := db.Query(`SELECT id, run_id, input_url, output_url, year, handle, status, created_at, updated_at
		FROM submissions WHERE run_id = ? ORDER BY input_url, year`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var s Submission
		if err := rows.Scan(&s.ID, &s.RunID, &s.InputURL, &s.OutputURL, &s.Year, &s.Handle, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// GetRunErrors returns the per-dataset errors recorded for a run
func GetRunErrors(runID string) ([]RunError, error) {
	rows, err := db.Query(`SELECT id, run_id, input_url, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY created_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []RunError
	for rows.Next() {
		var e RunError
		if err := rows.Scan(&e.ID, &e.RunID, &e.InputURL, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}
