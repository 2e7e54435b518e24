package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"trade-coach/internal/common/errors"
	"trade-coach/internal/store"
)

type Adapter struct {
	db     *sql.DB
	config *Config
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite serializes writes; a single connection avoids SQLITE_BUSY
	// under concurrent job processing.
	db.SetMaxOpenConns(1)

	adapter := &Adapter{
		db:     db,
		config: config,
	}

	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health() error {
	return a.db.Ping()
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			user_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at DATETIME NOT NULL,
			scopes TEXT NOT NULL DEFAULT '[]',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, provider)
		)`,
		`CREATE TABLE IF NOT EXISTS analyses (
			job_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			sheet_id TEXT NOT NULL,
			sheet_range TEXT NOT NULL DEFAULT '',
			prompt TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL DEFAULT '',
			end_date TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'queued',
			failure_reason TEXT NOT NULL DEFAULT '',
			report_json TEXT NOT NULL DEFAULT '',
			report_markdown TEXT NOT NULL DEFAULT '',
			audio_insights TEXT NOT NULL DEFAULT '[]',
			image_insights TEXT NOT NULL DEFAULT '[]',
			external_research TEXT NOT NULL DEFAULT '[]',
			requested_at DATETIME NOT NULL,
			started_at DATETIME,
			completed_at DATETIME,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, job_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_user_requested
			ON analyses(user_id, requested_at DESC)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

func (a *Adapter) UpsertCredential(ctx context.Context, cred *store.CredentialRecord) error {
	scopes, err := json.Marshal(cred.Scopes)
	if err != nil {
		return errors.InternalError("failed to encode scopes", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO credentials (user_id, provider, access_token, refresh_token, expires_at, scopes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			scopes = excluded.scopes,
			updated_at = CURRENT_TIMESTAMP`,
		cred.UserID, cred.Provider, cred.AccessTokenEncrypted, cred.RefreshTokenEncrypted,
		cred.ExpiresAt.UTC(), string(scopes))
	if err != nil {
		return errors.InternalError("failed to upsert credential", err)
	}
	return nil
}

func (a *Adapter) GetCredential(ctx context.Context, userID, provider string) (*store.CredentialRecord, error) {
	cred := &store.CredentialRecord{}
	var scopes string

	err := a.db.QueryRowContext(ctx, `
		SELECT user_id, provider, access_token, refresh_token, expires_at, scopes, updated_at
		FROM credentials WHERE user_id = ? AND provider = ?`,
		userID, provider).Scan(
		&cred.UserID, &cred.Provider, &cred.AccessTokenEncrypted, &cred.RefreshTokenEncrypted,
		&cred.ExpiresAt, &scopes, &cred.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError(fmt.Sprintf("credential for user %s provider %s", userID, provider))
	}
	if err != nil {
		return nil, errors.InternalError("failed to get credential", err)
	}

	if err := json.Unmarshal([]byte(scopes), &cred.Scopes); err != nil {
		return nil, errors.InternalError("failed to decode scopes", err)
	}
	return cred, nil
}

func (a *Adapter) DeleteCredential(ctx context.Context, userID, provider string) error {
	_, err := a.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE user_id = ? AND provider = ?`, userID, provider)
	if err != nil {
		return errors.InternalError("failed to delete credential", err)
	}
	return nil
}

func (a *Adapter) CreateAnalysis(ctx context.Context, rec *store.AnalysisRecord) error {
	audio, image, research, err := encodeInsights(rec)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO analyses (job_id, user_id, sheet_id, sheet_range, prompt, start_date, end_date,
			status, failure_reason, report_json, report_markdown,
			audio_insights, image_insights, external_research, requested_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		rec.JobID, rec.UserID, rec.SheetID, rec.SheetRange, rec.Prompt, rec.StartDate, rec.EndDate,
		string(rec.Status), rec.FailureReason, rec.ReportJSON, rec.ReportMarkdown,
		audio, image, research, rec.RequestedAt.UTC())
	if err != nil {
		return errors.InternalError("failed to create analysis", err)
	}
	return nil
}

func (a *Adapter) GetAnalysis(ctx context.Context, userID, jobID string) (*store.AnalysisRecord, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT job_id, user_id, sheet_id, sheet_range, prompt, start_date, end_date,
			status, failure_reason, report_json, report_markdown,
			audio_insights, image_insights, external_research,
			requested_at, started_at, completed_at, updated_at
		FROM analyses WHERE user_id = ? AND job_id = ?`, userID, jobID)

	rec, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError(fmt.Sprintf("analysis %s", jobID))
	}
	if err != nil {
		return nil, errors.InternalError("failed to get analysis", err)
	}
	return rec, nil
}

func (a *Adapter) ListAnalyses(ctx context.Context, userID string, limit int) ([]*store.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT job_id, user_id, sheet_id, sheet_range, prompt, start_date, end_date,
			status, failure_reason, report_json, report_markdown,
			audio_insights, image_insights, external_research,
			requested_at, started_at, completed_at, updated_at
		FROM analyses WHERE user_id = ?
		ORDER BY requested_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, errors.InternalError("failed to list analyses", err)
	}
	defer rows.Close()

	var records []*store.AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, errors.InternalError("failed to scan analysis", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (a *Adapter) LatestPerUser(ctx context.Context) ([]*store.AnalysisRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT job_id, user_id, sheet_id, sheet_range, prompt, start_date, end_date,
			status, failure_reason, report_json, report_markdown,
			audio_insights, image_insights, external_research,
			requested_at, started_at, completed_at, updated_at
		FROM analyses a
		WHERE requested_at = (
			SELECT MAX(requested_at) FROM analyses WHERE user_id = a.user_id
		)
		GROUP BY user_id`)
	if err != nil {
		return nil, errors.InternalError("failed to list latest analyses", err)
	}
	defer rows.Close()

	var records []*store.AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, errors.InternalError("failed to scan analysis", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (a *Adapter) MarkRunning(ctx context.Context, userID, jobID string) error {
	result, err := a.db.ExecContext(ctx, `
		UPDATE analyses SET status = ?, started_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND job_id = ?`,
		string(store.StatusRunning), time.Now().UTC(), userID, jobID)
	if err != nil {
		return errors.InternalError("failed to mark analysis running", err)
	}
	return checkAffected(result, jobID)
}

func (a *Adapter) SaveResult(ctx context.Context, rec *store.AnalysisRecord) error {
	audio, image, research, err := encodeInsights(rec)
	if err != nil {
		return err
	}

	result, err := a.db.ExecContext(ctx, `
		UPDATE analyses SET status = ?, report_json = ?, report_markdown = ?,
			audio_insights = ?, image_insights = ?, external_research = ?,
			failure_reason = '', completed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND job_id = ?`,
		string(store.StatusSucceeded), rec.ReportJSON, rec.ReportMarkdown,
		audio, image, research, time.Now().UTC(), rec.UserID, rec.JobID)
	if err != nil {
		return errors.InternalError("failed to save analysis result", err)
	}
	return checkAffected(result, rec.JobID)
}

func (a *Adapter) MarkFailed(ctx context.Context, userID, jobID, reason string) error {
	result, err := a.db.ExecContext(ctx, `
		UPDATE analyses SET status = ?, failure_reason = ?, completed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND job_id = ?`,
		string(store.StatusFailed), reason, time.Now().UTC(), userID, jobID)
	if err != nil {
		return errors.InternalError("failed to mark analysis failed", err)
	}
	return checkAffected(result, jobID)
}

func checkAffected(result sql.Result, jobID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.InternalError("failed to check affected rows", err)
	}
	if affected == 0 {
		return errors.NotFoundError(fmt.Sprintf("analysis %s", jobID))
	}
	return nil
}

func encodeInsights(rec *store.AnalysisRecord) (string, string, string, error) {
	audio, err := json.Marshal(emptyIfNil(rec.AudioInsights))
	if err != nil {
		return "", "", "", errors.InternalError("failed to encode audio insights", err)
	}
	image, err := json.Marshal(emptyIfNil(rec.ImageInsights))
	if err != nil {
		return "", "", "", errors.InternalError("failed to encode image insights", err)
	}
	research, err := json.Marshal(emptyIfNil(rec.ExternalResearch))
	if err != nil {
		return "", "", "", errors.InternalError("failed to encode external research", err)
	}
	return string(audio), string(image), string(research), nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(row scannable) (*store.AnalysisRecord, error) {
	rec := &store.AnalysisRecord{}
	var status, audio, image, research string
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&rec.JobID, &rec.UserID, &rec.SheetID, &rec.SheetRange, &rec.Prompt,
		&rec.StartDate, &rec.EndDate, &status, &rec.FailureReason,
		&rec.ReportJSON, &rec.ReportMarkdown, &audio, &image, &research,
		&rec.RequestedAt, &startedAt, &completedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Status = store.Status(status)
	if startedAt.Valid {
		rec.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}

	if err := json.Unmarshal([]byte(audio), &rec.AudioInsights); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(image), &rec.ImageInsights); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(research), &rec.ExternalResearch); err != nil {
		return nil, err
	}
	return rec, nil
}
