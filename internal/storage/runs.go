package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/sharing-ingest/internal/model"
)

// DefaultListLimit is used by ListRuns when limit is not positive.
const DefaultListLimit = 20

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectRuns = `
	SELECT r.id, r.source_url, r.status, r.stage, r.error, r.started_at, r.finished_at,
		a.source_file, a.train_file_path, a.test_file_path, a.train_rows, a.test_rows,
		a.is_ingested, a.message
	FROM runs r
	LEFT JOIN artifacts a ON a.run_id = r.id`

// StartRun records a run that has just begun.
func (s *SQLiteStorage) StartRun(ctx context.Context, run *model.Run) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, source_url, status, stage, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SourceURL, string(run.Status), run.Stage, run.Error, run.StartedAt.UTC(), nullTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run previously passed to StartRun.
// The artifact, when present, is saved in the same transaction.
func (s *SQLiteStorage) FinishRun(ctx context.Context, run *model.Run) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, stage = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(run.Status), run.Stage, run.Error, run.FinishedAt.UTC(), run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}

	if a := run.Artifact; a != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO artifacts (run_id, source_file, train_file_path, test_file_path,
				train_rows, test_rows, is_ingested, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id) DO UPDATE SET
				source_file = excluded.source_file,
				train_file_path = excluded.train_file_path,
				test_file_path = excluded.test_file_path,
				train_rows = excluded.train_rows,
				test_rows = excluded.test_rows,
				is_ingested = excluded.is_ingested,
				message = excluded.message
		`, run.ID, a.SourceFile, a.TrainFilePath, a.TestFilePath, a.TrainRows, a.TestRows, a.IsIngested, a.Message)
		if err != nil {
			return fmt.Errorf("failed to save artifact: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run by ID.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return getRun(ctx, s.db, id)
}

func getRun(ctx context.Context, q rowQuerier, id string) (*model.Run, error) {
	row := q.QueryRowContext(ctx, selectRuns+` WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, selectRuns+`
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*model.Run, error) {
	var (
		run        model.Run
		status     string
		stage      sql.NullString
		errText    sql.NullString
		finishedAt sql.NullTime
		sourceFile sql.NullString
		trainPath  sql.NullString
		testPath   sql.NullString
		trainRows  sql.NullInt64
		testRows   sql.NullInt64
		ingested   sql.NullBool
		message    sql.NullString
	)

	err := sc.Scan(
		&run.ID,
		&run.SourceURL,
		&status,
		&stage,
		&errText,
		&run.StartedAt,
		&finishedAt,
		&sourceFile,
		&trainPath,
		&testPath,
		&trainRows,
		&testRows,
		&ingested,
		&message,
	)
	if err != nil {
		return nil, err
	}

	run.Status = model.RunStatus(status)
	run.Stage = stage.String
	run.Error = errText.String
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	if sourceFile.Valid {
		run.Artifact = &model.Artifact{
			SourceFile:    sourceFile.String,
			TrainFilePath: trainPath.String,
			TestFilePath:  testPath.String,
			TrainRows:     int(trainRows.Int64),
			TestRows:      int(testRows.Int64),
			IsIngested:    ingested.Bool,
			Message:       message.String,
		}
	}

	return &run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
