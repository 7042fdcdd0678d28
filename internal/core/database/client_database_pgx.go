package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/cvflow/internal/config"
	"github.com/markdave123-py/cvflow/internal/core"
	"github.com/markdave123-py/cvflow/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Batches

func (c *DatabaseClient) CreateBatch(ctx context.Context, batch *models.Batch) error {
	if batch == nil {
		return errors.New("nil batch")
	}
	flagsJSON, err := json.Marshal(batch.Flags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}
	const q = `
		INSERT INTO batches (batch_id, status, flags_json, initial_instruction, quota_error_seen)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING created_at
	`
	return c.db.QueryRowContext(ctx, q,
		batch.ID, batch.Status, flagsJSON, batch.InitialInstruction, batch.QuotaErrorSeen).
		Scan(&batch.CreatedAt)
}

func (c *DatabaseClient) GetBatch(ctx context.Context, id string) (*models.Batch, error) {
	const q = `
		SELECT batch_id, status, flags_json, COALESCE(initial_instruction, ''), quota_error_seen, created_at
		FROM batches WHERE batch_id = $1
	`
	var b models.Batch
	var flagsJSON []byte
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.Status, &flagsJSON, &b.InitialInstruction, &b.QuotaErrorSeen, &b.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(flagsJSON) > 0 {
		if err := json.Unmarshal(flagsJSON, &b.Flags); err != nil {
			return nil, fmt.Errorf("unmarshal flags for batch %s: %w", id, err)
		}
	}
	return &b, nil
}

// BeginProcessing performs the pending->processing transition as a single
// guarded UPDATE so that two concurrent starts for one batch id can never
// both proceed.
func (c *DatabaseClient) BeginProcessing(ctx context.Context, id string) (bool, error) {
	const q = `
		UPDATE batches SET status = $2
		WHERE batch_id = $1 AND status = $3
	`
	res, err := c.db.ExecContext(ctx, q, id, models.BatchStatusProcessing, models.BatchStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *DatabaseClient) UpdateBatchStatus(ctx context.Context, id, status string, quotaError *bool) error {
	if quotaError != nil {
		const q = `UPDATE batches SET status = $2, quota_error_seen = (quota_error_seen OR $3) WHERE batch_id = $1`
		_, err := c.db.ExecContext(ctx, q, id, status, *quotaError)
		return err
	}
	const q = `UPDATE batches SET status = $2 WHERE batch_id = $1`
	_, err := c.db.ExecContext(ctx, q, id, status)
	return err
}

// Files

func (c *DatabaseClient) CreateFile(ctx context.Context, file *models.FileRecord) (int64, error) {
	if file == nil {
		return 0, errors.New("nil file record")
	}
	const q = `
		INSERT INTO files (batch_id, original_name, saved_path, extracted_from_archive)
		VALUES ($1, $2, $3, $4)
		RETURNING file_id
	`
	var id int64
	err := c.db.QueryRowContext(ctx, q,
		file.BatchID, file.OriginalName, file.SavedPath, file.ExtractedFromArchive).Scan(&id)
	if err != nil {
		return 0, err
	}
	file.ID = id
	return id, nil
}

func (c *DatabaseClient) GetFileByID(ctx context.Context, id int64) (*models.FileRecord, error) {
	const q = `
		SELECT file_id, batch_id, original_name, saved_path, extracted_from_archive, created_at
		FROM files WHERE file_id = $1
	`
	var f models.FileRecord
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&f.ID, &f.BatchID, &f.OriginalName, &f.SavedPath, &f.ExtractedFromArchive, &f.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *DatabaseClient) GetBatchFiles(ctx context.Context, batchID string, onlyInitial bool) ([]models.FileRecord, error) {
	q := `
		SELECT file_id, batch_id, original_name, saved_path, extracted_from_archive, created_at
		FROM files
		WHERE batch_id = $1
		ORDER BY file_id ASC
	`
	if onlyInitial {
		q = `
		SELECT file_id, batch_id, original_name, saved_path, extracted_from_archive, created_at
		FROM files
		WHERE batch_id = $1 AND extracted_from_archive = FALSE
		ORDER BY file_id ASC
	`
	}
	rows, err := c.db.QueryContext(ctx, q, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FileRecord
	for rows.Next() {
		var f models.FileRecord
		if err := rows.Scan(
			&f.ID, &f.BatchID, &f.OriginalName, &f.SavedPath, &f.ExtractedFromArchive, &f.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Results

// CreateResults inserts all of a batch's results in a single transaction.
func (c *DatabaseClient) CreateResults(ctx context.Context, results []*models.Result) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO results
			(file_id, batch_id, status_final, error_message, steps_json, data_json, web_summary, full_text)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		stepsJSON, err := json.Marshal(r.Steps)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal steps for file %d: %w", r.FileID, err)
		}
		var dataJSON []byte
		if r.Data != nil {
			if dataJSON, err = json.Marshal(r.Data); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("marshal data for file %d: %w", r.FileID, err)
			}
		}
		if _, err := stmt.ExecContext(ctx,
			r.FileID, r.BatchID, r.StatusFinal, r.ErrorMessage, stepsJSON, dataJSON, r.WebSummary, r.FullText,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetBatchResultTexts returns the extracted texts usable as chat context:
// results whose pipeline completed and that carry text.
func (c *DatabaseClient) GetBatchResultTexts(ctx context.Context, batchID string) ([]models.ResultText, error) {
	const q = `
		SELECT f.original_name, r.full_text
		FROM results r
		JOIN files f ON f.file_id = r.file_id
		WHERE r.batch_id = $1
		  AND r.status_final LIKE 'Sucesso%'
		  AND r.full_text IS NOT NULL
		  AND r.full_text <> ''
		ORDER BY r.result_id ASC
	`
	rows, err := c.db.QueryContext(ctx, q, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ResultText
	for rows.Next() {
		var rt models.ResultText
		if err := rows.Scan(&rt.OriginalName, &rt.FullText); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

// Chat history

func (c *DatabaseClient) CreateChatTurn(ctx context.Context, turn *models.ChatTurn) error {
	if turn == nil {
		return errors.New("nil chat turn")
	}
	const q = `
		INSERT INTO chat_history (batch_id, user_message, model_reply)
		VALUES ($1, $2, $3)
		RETURNING chat_id, created_at
	`
	return c.db.QueryRowContext(ctx, q, turn.BatchID, turn.UserMessage, turn.ModelReply).
		Scan(&turn.ID, &turn.CreatedAt)
}

// GetChatHistory returns the most recent turns, newest first.
func (c *DatabaseClient) GetChatHistory(ctx context.Context, batchID string, limit int) ([]models.ChatTurn, error) {
	const q = `
		SELECT chat_id, batch_id, user_message, model_reply, created_at
		FROM chat_history
		WHERE batch_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, batchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatTurn
	for rows.Next() {
		var t models.ChatTurn
		if err := rows.Scan(&t.ID, &t.BatchID, &t.UserMessage, &t.ModelReply, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
