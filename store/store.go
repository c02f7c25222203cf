// Package store keeps discovered rulings and a log of discovery runs in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pevans/rulings/ruling"
)

var ErrNotFound = errors.New("ruling not found")

// Store manages rulings and runs using SQLite.
type Store struct {
	db *sql.DB
}

// Filter narrows List.
type Filter struct {
	Source       string
	DocumentType string
	Since        *time.Time // publication date on or after
	Limit        int
	Offset       int
}

// Run is one discovery invocation.
type Run struct {
	ID         uuid.UUID
	Source     string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
	Success    bool
	Found      int
	Downloaded int
	Error      *string
}

// NewStore opens or creates the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrap(err, "create database directory")
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rulings (
		document_id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		source TEXT NOT NULL,
		court TEXT NOT NULL,
		document_type TEXT NOT NULL,
		title TEXT NOT NULL,
		pdf_url TEXT NOT NULL,
		html_url TEXT NOT NULL,
		published_at TEXT NOT NULL,
		extracted_at TEXT NOT NULL,
		magistrate TEXT,
		local_path TEXT,
		downloaded_format TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_rulings_published ON rulings(published_at);

	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		mode TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		success INTEGER NOT NULL,
		found INTEGER NOT NULL,
		downloaded INTEGER NOT NULL,
		error TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records doc under runID. A ruling already stored is left untouched
// and Save reports false.
func (s *Store) Save(ctx context.Context, runID uuid.UUID, doc ruling.Document) (bool, error) {
	var localPath, format *string
	if doc.Details != nil {
		localPath = nullable(doc.Details.LocalPath)
		format = nullable(doc.Details.DownloadedFormat)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO rulings (
			document_id, run_id, source, court, document_type, title,
			pdf_url, html_url, published_at, extracted_at, magistrate,
			local_path, downloaded_format
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID.String(),
		runID.String(),
		doc.Source,
		doc.Court,
		doc.DocumentType,
		doc.Title,
		doc.PDFURL,
		doc.HTMLURL,
		formatTime(doc.PublicationDate),
		formatTime(doc.ExtractedAt),
		nullable(doc.Magistrate),
		localPath,
		format,
	)
	if err != nil {
		return false, errors.Wrapf(err, "insert ruling %s", doc.ID)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "get rows affected")
	}
	return rows > 0, nil
}

const rulingColumns = `
	document_id, source, court, document_type, title, pdf_url, html_url,
	published_at, extracted_at, magistrate, local_path, downloaded_format`

// Get retrieves a ruling by identifier.
func (s *Store) Get(ctx context.Context, id ruling.Identifier) (*ruling.Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT"+rulingColumns+" FROM rulings WHERE document_id = ?", id.String())
	doc, err := scanRuling(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query ruling %s", id)
	}
	return doc, nil
}

// List returns stored rulings, newest publication first.
func (s *Store) List(ctx context.Context, filter Filter) ([]ruling.Document, error) {
	where, args := filter.where()
	query := "SELECT" + rulingColumns + " FROM rulings" + where

	query += " ORDER BY published_at DESC, document_id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query rulings")
	}
	defer rows.Close()

	var docs []ruling.Document
	for rows.Next() {
		doc, err := scanRuling(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan ruling")
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Count returns the number of stored rulings.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.CountMatching(ctx, Filter{})
}

// CountMatching returns how many rulings pass filter. Limit and Offset are
// ignored.
func (s *Store) CountMatching(ctx context.Context, filter Filter) (int, error) {
	where, args := filter.where()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rulings"+where, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count rulings")
	}
	return n, nil
}

func (f Filter) where() (string, []any) {
	var whereClauses []string
	var args []any
	if f.Source != "" {
		whereClauses = append(whereClauses, "source = ?")
		args = append(args, f.Source)
	}
	if f.DocumentType != "" {
		whereClauses = append(whereClauses, "document_type = ?")
		args = append(args, f.DocumentType)
	}
	if f.Since != nil {
		whereClauses = append(whereClauses, "published_at >= ?")
		args = append(args, formatTime(*f.Since))
	}
	if len(whereClauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(whereClauses, " AND "), args
}

// RecordRun stores the outcome of a run.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, source, mode, started_at, finished_at,
			success, found, downloaded, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(),
		run.Source,
		run.Mode,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.Success,
		run.Found,
		run.Downloaded,
		run.Error,
	)
	if err != nil {
		return errors.Wrapf(err, "insert run %s", run.ID)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT run_id, source, mode, started_at, finished_at,
		       success, found, downloaded, error
		FROM runs
		ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var idStr, startedAt, finishedAt string
		var errText sql.NullString
		var run Run
		if err := rows.Scan(
			&idStr, &run.Source, &run.Mode, &startedAt, &finishedAt,
			&run.Success, &run.Found, &run.Downloaded, &errText,
		); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, errors.Wrap(err, "parse run ID")
		}
		run.ID = id
		run.StartedAt = parseTime(startedAt)
		run.FinishedAt = parseTime(finishedAt)
		if errText.Valid {
			run.Error = &errText.String
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRuling(row scanner) (*ruling.Document, error) {
	var id, publishedAt, extractedAt string
	var magistrate, localPath, format sql.NullString
	doc := &ruling.Document{}

	err := row.Scan(
		&id, &doc.Source, &doc.Court, &doc.DocumentType, &doc.Title,
		&doc.PDFURL, &doc.HTMLURL, &publishedAt, &extractedAt,
		&magistrate, &localPath, &format,
	)
	if err != nil {
		return nil, err
	}

	doc.ID = ruling.Identifier(id)
	doc.PublicationDate = parseTime(publishedAt)
	doc.ExtractedAt = parseTime(extractedAt)
	doc.Magistrate = magistrate.String
	doc.Details = &ruling.CourtDetails{
		SentenceType:     doc.DocumentType,
		LocalPath:        localPath.String,
		DownloadedFormat: format.String,
	}
	return doc, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.Truncate(0).UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
