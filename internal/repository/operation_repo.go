package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-fileops/internal/model"
)

// OperationRepository stores finished operations in PostgreSQL.
type OperationRepository struct {
	pool *pgxpool.Pool
}

func NewOperationRepository(pool *pgxpool.Pool) *OperationRepository {
	return &OperationRepository{pool: pool}
}

// Save upserts the operation row and replaces its failure rows in one
// transaction.
func (r *OperationRepository) Save(ctx context.Context, op model.Operation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save operation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO operations (id, type, status, sources, destination, destinations,
		  conflict_policy, permanent, bytes_total, bytes_done, items_total, items_done,
		  succeeded, failed, skipped, cancelled, warnings, error,
		  created_at, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 ON CONFLICT (id) DO UPDATE SET
		  status = EXCLUDED.status, destinations = EXCLUDED.destinations,
		  bytes_total = EXCLUDED.bytes_total, bytes_done = EXCLUDED.bytes_done,
		  items_total = EXCLUDED.items_total, items_done = EXCLUDED.items_done,
		  succeeded = EXCLUDED.succeeded, failed = EXCLUDED.failed,
		  skipped = EXCLUDED.skipped, cancelled = EXCLUDED.cancelled,
		  warnings = EXCLUDED.warnings, error = EXCLUDED.error,
		  started_at = EXCLUDED.started_at, finished_at = EXCLUDED.finished_at`,
		op.ID, string(op.Type), string(op.Status), nonNil(op.Sources), op.Destination, nonNil(op.Destinations),
		string(op.Conflict), op.Permanent, op.BytesTotal, op.BytesDone, op.ItemsTotal, op.ItemsDone,
		op.Summary.Succeeded, op.Summary.Failed, op.Summary.Skipped, op.Summary.Cancelled,
		nonNil(op.Warnings), op.Error, op.CreatedAt, op.StartedAt, op.FinishedAt)
	if err != nil {
		return fmt.Errorf("save operation: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM operation_failures WHERE operation_id = $1`, op.ID); err != nil {
		return fmt.Errorf("clear operation failures: %w", err)
	}

	if len(op.Failures) > 0 {
		batch := &pgx.Batch{}
		for _, failure := range op.Failures {
			batch.Queue(
				`INSERT INTO operation_failures (operation_id, step_id, kind, source, destination, reason)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				op.ID, failure.StepID, string(failure.Kind), failure.Source, failure.Destination, failure.Reason)
		}

		br := tx.SendBatch(ctx, batch)
		for range op.Failures {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("save operation failure: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("save operation failures: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save operation: %w", err)
	}
	return nil
}

const selectOperation = `SELECT id, type, status, sources, destination, destinations,
        conflict_policy, permanent, bytes_total, bytes_done, items_total, items_done,
        succeeded, failed, skipped, cancelled, warnings, error,
        created_at, started_at, finished_at
 FROM operations`

func scanOperation(row pgx.Row) (model.Operation, error) {
	var (
		op                    model.Operation
		opType, status, pref  string
		startedAt, finishedAt *time.Time
	)

	err := row.Scan(&op.ID, &opType, &status, &op.Sources, &op.Destination, &op.Destinations,
		&pref, &op.Permanent, &op.BytesTotal, &op.BytesDone, &op.ItemsTotal, &op.ItemsDone,
		&op.Summary.Succeeded, &op.Summary.Failed, &op.Summary.Skipped, &op.Summary.Cancelled,
		&op.Warnings, &op.Error, &op.CreatedAt, &startedAt, &finishedAt)
	if err != nil {
		return model.Operation{}, err
	}

	op.Type = model.OperationType(opType)
	op.Status = model.OperationStatus(status)
	op.Conflict = model.ConflictAction(pref)
	op.StartedAt = startedAt
	op.FinishedAt = finishedAt
	return op, nil
}

func (r *OperationRepository) FindByID(ctx context.Context, id string) (model.Operation, error) {
	op, err := scanOperation(r.pool.QueryRow(ctx, selectOperation+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Operation{}, model.ErrOperationNotFound
	}
	if err != nil {
		return model.Operation{}, fmt.Errorf("find operation: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT step_id, kind, source, destination, reason
		 FROM operation_failures WHERE operation_id = $1 ORDER BY id`, id)
	if err != nil {
		return model.Operation{}, fmt.Errorf("query operation failures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var failure model.StepFailure
		var kind string
		if err := rows.Scan(&failure.StepID, &kind, &failure.Source, &failure.Destination, &failure.Reason); err != nil {
			return model.Operation{}, fmt.Errorf("scan operation failure: %w", err)
		}
		failure.Kind = model.StepErrorKind(kind)
		op.Failures = append(op.Failures, failure)
	}

	return op, rows.Err()
}

// List pages through history newest first.
func (r *OperationRepository) List(ctx context.Context, page int, limit int) ([]model.Operation, model.Meta, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM operations`).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count operations: %w", err)
	}

	rows, err := r.pool.Query(ctx, selectOperation+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, (page-1)*limit)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	items := make([]model.Operation, 0)
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan operation: %w", err)
		}
		items = append(items, op)
	}

	return items, model.NewMeta(page, limit, total), rows.Err()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
