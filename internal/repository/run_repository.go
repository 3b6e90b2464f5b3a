// internal/repository/run_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"uart-assist/internal/database"
	"uart-assist/internal/model"
)

const runColumns = `id, mode, device, baud, data_bits, parity, stop_bits, format,
		status, sent, sent_bytes, received, received_bytes, elapsed_ms,
		error_message, started_at, completed_at`

// runRepository implements RunRepository on PostgreSQL
type runRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *database.DB, logger *zap.Logger) RunRepository {
	return &runRepository{
		db:     db,
		logger: logger,
	}
}

// Save upserts a run record
func (r *runRepository) Save(ctx context.Context, run *model.RunRecord) error {
	query := `
		INSERT INTO test_runs (
			id, mode, device, baud, data_bits, parity, stop_bits, format,
			status, sent, sent_bytes, received, received_bytes, elapsed_ms,
			throughput, error_message, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			sent = EXCLUDED.sent,
			sent_bytes = EXCLUDED.sent_bytes,
			received = EXCLUDED.received,
			received_bytes = EXCLUDED.received_bytes,
			elapsed_ms = EXCLUDED.elapsed_ms,
			throughput = EXCLUDED.throughput,
			error_message = EXCLUDED.error_message,
			completed_at = EXCLUDED.completed_at
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Mode, run.Device, run.Framing.Baud, run.Framing.DataBits,
		string(run.Framing.Parity), run.Framing.StopBits, run.Format,
		run.Status, run.Stats.Sent, run.Stats.SentBytes, run.Stats.Received,
		run.Stats.ReceivedBytes, run.Stats.Elapsed.Milliseconds(),
		run.Stats.Throughput(), run.ErrorMessage, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save run", zap.String("run_id", run.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// GetByID retrieves a run by ID
func (r *runRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RunRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM test_runs WHERE id = $1", runColumns)

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// List retrieves runs with filtering and pagination, newest first
func (r *runRepository) List(ctx context.Context, filter *RunFilter) ([]*model.RunRecord, int, error) {
	if filter == nil {
		filter = &RunFilter{}
	}
	filter.Normalize()

	whereClause, args := buildRunWhere(filter)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM test_runs %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM test_runs %s
		ORDER BY started_at DESC
		LIMIT $%d OFFSET $%d
	`, runColumns, whereClause, len(args)+1, len(args)+2)
	args = append(args, filter.PerPage, filter.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*model.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			r.logger.Error("Failed to scan run", zap.Error(err))
			continue
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, total, nil
}

// DeleteOlderThan removes runs started before olderThan
func (r *runRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM test_runs WHERE started_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Info("Old runs deleted", zap.Int64("count", deleted))
	return deleted, nil
}

// buildRunWhere renders the WHERE clause and its positional arguments
func buildRunWhere(filter *RunFilter) (string, []interface{}) {
	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.Mode != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("mode = $%d", argIndex))
		args = append(args, string(*filter.Mode))
		argIndex++
	}

	if filter.Device != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("device = $%d", argIndex))
		args = append(args, *filter.Device)
		argIndex++
	}

	if filter.Status != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, string(*filter.Status))
	}

	if len(whereConditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(whereConditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*model.RunRecord, error) {
	run := &model.RunRecord{}
	var (
		mode, parity, format, status string
		elapsedMs                    int64
	)

	err := row.Scan(
		&run.ID, &mode, &run.Device, &run.Framing.Baud, &run.Framing.DataBits,
		&parity, &run.Framing.StopBits, &format, &status,
		&run.Stats.Sent, &run.Stats.SentBytes, &run.Stats.Received,
		&run.Stats.ReceivedBytes, &elapsedMs, &run.ErrorMessage,
		&run.StartedAt, &run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Mode = model.TestMode(mode)
	run.Framing.Parity = model.Parity(strings.TrimSpace(parity))
	run.Format = model.OutputFormat(format)
	run.Status = model.RunStatus(status)
	run.Stats.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	return run, nil
}
