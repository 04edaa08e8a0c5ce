package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jonathan/portfolio-pipeline/internal/pipeline"
	"github.com/jonathan/portfolio-pipeline/internal/recovery"
	"github.com/jonathan/portfolio-pipeline/internal/types"
)

// Gateway records pipeline runs in the submissions tables. It implements
// pipeline.PersistenceGateway. Writes that fail on the connection are retried.
type Gateway struct {
	db    *DB
	retry *recovery.Handler
}

var _ pipeline.PersistenceGateway = (*Gateway)(nil)

// NewGateway creates a Gateway over db
func NewGateway(db *DB, logger *slog.Logger) *Gateway {
	return &Gateway{db: db, retry: recovery.NewHandler("persistence", recovery.DBConfig(), logger)}
}

// retryablePgCodes are server errors worth another attempt: serialization failures, deadlocks,
// connection limits and shutdowns.
var retryablePgCodes = map[string]bool{
	"40001": true,
	"40P01": true,
	"53300": true,
	"57P01": true,
	"57P02": true,
	"57P03": true,
}

// write runs fn under the retry handler. Other errors reported by the server, such as constraint
// violations, fail on the first attempt.
func (g *Gateway) write(ctx context.Context, fn func(ctx context.Context) error) error {
	out := recovery.Execute(ctx, g.retry, func(ctx context.Context) (struct{}, error) {
		err := fn(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if retryablePgCodes[pgErr.Code] {
				return struct{}{}, recovery.Transient("retryable database error", err)
			}
			return struct{}{}, recovery.Permanent("database rejected write", err)
		}
		return struct{}{}, err
	}, nil)
	return out.LastError
}

// Created inserts a submission in the processing state
func (g *Gateway) Created(ctx context.Context, s pipeline.Submission) error {
	id, err := parseID(s.ID)
	if err != nil {
		return err
	}
	err = g.write(ctx, func(ctx context.Context) error {
		_, err := g.db.pool.Exec(ctx,
			`INSERT INTO submissions (id, client_id, filename, file_type, size_bytes, fingerprint, status, stage, progress, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
			 ON CONFLICT (id) DO NOTHING`,
			id, nullIfEmpty(s.ClientID), s.Filename, s.FileType, s.Size, s.Fingerprint,
			StatusProcessing, string(pipeline.StageValidation), 10, s.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// StageUpdated records the latest stage and progress of a submission
func (g *Gateway) StageUpdated(ctx context.Context, submissionID string, p pipeline.Progress) error {
	id, err := parseID(submissionID)
	if err != nil {
		return err
	}
	err = g.write(ctx, func(ctx context.Context) error {
		_, err := g.db.pool.Exec(ctx,
			`UPDATE submissions SET stage = $1, progress = $2, updated_at = $3 WHERE id = $4`,
			string(p.Stage), p.Percent, p.Timestamp, id,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update submission stage: %w", err)
	}
	return nil
}

// Completed stores the profile and selected components of a successful run
func (g *Gateway) Completed(ctx context.Context, submissionID string, r *pipeline.Result) error {
	id, err := parseID(submissionID)
	if err != nil {
		return err
	}

	var profileJSON []byte
	var category *string
	if r.Profile != nil {
		profileJSON, err = json.Marshal(r.Profile)
		if err != nil {
			return fmt.Errorf("failed to marshal profile: %w", err)
		}
		category = nullIfEmpty(string(r.Profile.Category))
	}
	rows, err := componentRows(r.Components)
	if err != nil {
		return err
	}

	return g.write(ctx, func(ctx context.Context) error {
		return g.complete(ctx, id, r, category, profileJSON, rows)
	})
}

func (g *Gateway) complete(ctx context.Context, id uuid.UUID, r *pipeline.Result, category *string, profileJSON []byte, rows []componentRow) error {
	tx, err := g.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`UPDATE submissions SET
		     status = $1, stage = $2, progress = 100, category = $3, theme = $4, profile = $5,
		     warnings = $6, fallbacks = $7, processing_ms = $8,
		     completed_at = NOW(), updated_at = NOW()
		 WHERE id = $9`,
		StatusCompleted, string(pipeline.StageComplete), category, nullIfEmpty(string(r.Theme)), profileJSON,
		nonNil(r.Warnings), stageNames(r.Fallbacks), r.ProcessingTimeMs(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete submission: %w", err)
	}

	// Replace any components from an earlier attempt
	if _, err := tx.Exec(ctx, "DELETE FROM submission_components WHERE submission_id = $1", id); err != nil {
		return fmt.Errorf("failed to clear components: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(
			`INSERT INTO submission_components (submission_id, position, component_type, theme, props)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, row.position, row.componentType, row.theme, row.props,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert components: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Failed marks a submission as failed with its error code
func (g *Gateway) Failed(ctx context.Context, submissionID string, code, message string) error {
	id, err := parseID(submissionID)
	if err != nil {
		return err
	}
	err = g.write(ctx, func(ctx context.Context) error {
		_, err := g.db.pool.Exec(ctx,
			`UPDATE submissions SET status = $1, stage = $2, error_code = $3, error_message = $4,
			     completed_at = NOW(), updated_at = NOW()
			 WHERE id = $5`,
			StatusFailed, string(pipeline.StageError), code, message, id,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to mark submission failed: %w", err)
	}
	return nil
}

const submissionColumns = `id, client_id, filename, file_type, size_bytes, fingerprint, status, stage, progress,
	category, theme, profile, error_code, error_message, warnings, fallbacks, processing_ms,
	created_at, updated_at, completed_at`

func scanSubmission(row pgx.Row) (*Submission, error) {
	var s Submission
	err := row.Scan(&s.ID, &s.ClientID, &s.Filename, &s.FileType, &s.SizeBytes, &s.Fingerprint,
		&s.Status, &s.Stage, &s.Progress, &s.Category, &s.Theme, &s.Profile, &s.ErrorCode,
		&s.ErrorMessage, &s.Warnings, &s.Fallbacks, &s.ProcessingMs, &s.CreatedAt, &s.UpdatedAt,
		&s.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSubmission retrieves a submission by ID. It returns nil when none exists.
func (g *Gateway) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	s, err := scanSubmission(g.db.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return s, nil
}

// ListSubmissions retrieves a client's most recent submissions
func (g *Gateway) ListSubmissions(ctx context.Context, clientID string, limit int) ([]Submission, error) {
	rows, err := g.db.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE client_id = $1 ORDER BY created_at DESC LIMIT $2`,
		clientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var submissions []Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

// ListComponents retrieves the components of a submission in display order
func (g *Gateway) ListComponents(ctx context.Context, submissionID uuid.UUID) ([]Component, error) {
	rows, err := g.db.pool.Query(ctx,
		`SELECT id, submission_id, position, component_type, theme, props, created_at
		 FROM submission_components WHERE submission_id = $1 ORDER BY position`,
		submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	defer rows.Close()

	components := []Component{}
	for rows.Next() {
		var c Component
		if err := rows.Scan(&c.ID, &c.SubmissionID, &c.Position, &c.Type, &c.Theme, &c.Props, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		components = append(components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	return components, nil
}

type componentRow struct {
	position      int
	componentType string
	theme         *string
	props         []byte
}

func componentRows(components []types.ComponentConfig) ([]componentRow, error) {
	rows := make([]componentRow, 0, len(components))
	for _, c := range components {
		props := c.Props
		if props == nil {
			props = map[string]any{}
		}
		propsJSON, err := json.Marshal(props)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal props for %s: %w", c.Type, err)
		}
		rows = append(rows, componentRow{
			position:      c.Order,
			componentType: string(c.Type),
			theme:         nullIfEmpty(c.Theme),
			props:         propsJSON,
		})
	}
	return rows, nil
}

func stageNames(stages []pipeline.Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s)
	}
	return names
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid submission id %q: %w", s, err)
	}
	return id, nil
}
