// Package local provides a SQLite-backed job queue for single-node
// deployments and tests. Claimed jobs carry a lease; a worker crash leaves
// the lease to expire and the job to be claimed again, preserving
// at-least-once delivery without a broker.
package local

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/queue"
)

type Queue struct {
	db     *sql.DB
	config *Config
	logger logging.Logger
}

func NewQueue(config *Config) (*Queue, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid local queue config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS job_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		lease_expires_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate queue table: %w", err)
	}

	return &Queue{
		db:     db,
		config: config,
		logger: logging.GetGlobalLogger(),
	}, nil
}

func (q *Queue) Name() string {
	return "local"
}

func (q *Queue) Publish(ctx context.Context, job *queue.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	body, err := job.Encode()
	if err != nil {
		return errors.InternalError("failed to encode job", err)
	}

	_, err = q.db.ExecContext(ctx,
		`INSERT INTO job_queue (payload, status) VALUES (?, 'pending')`, string(body))
	if err != nil {
		return errors.InternalError("failed to enqueue job", err)
	}
	return nil
}

func (q *Queue) Subscribe(ctx context.Context, handler queue.Handler) error {
	go func() {
		ticker := time.NewTicker(q.config.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				q.logger.Info("Local queue subscription stopped")
				return
			case <-ticker.C:
				for q.processOne(ctx, handler) {
					// Drain available work before sleeping again.
					if ctx.Err() != nil {
						return
					}
				}
			}
		}
	}()
	return nil
}

// processOne claims and handles a single job. Returns true if a job was
// claimed, false when the queue is empty.
func (q *Queue) processOne(ctx context.Context, handler queue.Handler) bool {
	id, payload, ok := q.claim(ctx)
	if !ok {
		return false
	}

	job, err := queue.DecodeJob([]byte(payload))
	if err != nil {
		q.logger.Warn("Dropping undecodable job message", logging.Err(err))
		q.remove(ctx, id)
		return true
	}

	if err := handler(ctx, job); err != nil {
		q.logger.Error("Job handler failed, job will be redelivered", err,
			logging.String("job_id", job.JobID))
		q.delayRedelivery(ctx, id)
		return true
	}

	q.remove(ctx, id)
	return true
}

func (q *Queue) claim(ctx context.Context) (int64, string, bool) {
	now := time.Now().UTC()

	row := q.db.QueryRowContext(ctx, `
		SELECT id, payload FROM job_queue
		WHERE status = 'pending' OR (status = 'leased' AND lease_expires_at < ?)
		ORDER BY id LIMIT 1`, now)

	var id int64
	var payload string
	if err := row.Scan(&id, &payload); err != nil {
		if err != sql.ErrNoRows && ctx.Err() == nil {
			q.logger.Error("Failed to poll local queue", err)
		}
		return 0, "", false
	}

	result, err := q.db.ExecContext(ctx, `
		UPDATE job_queue SET status = 'leased', lease_expires_at = ?
		WHERE id = ? AND (status = 'pending' OR lease_expires_at < ?)`,
		now.Add(q.config.LeaseDuration), id, now)
	if err != nil {
		return 0, "", false
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return 0, "", false
	}
	return id, payload, true
}

// delayRedelivery shortens the lease to one poll interval so a failed job
// comes back soon without spinning on it.
func (q *Queue) delayRedelivery(ctx context.Context, id int64) {
	if _, err := q.db.ExecContext(ctx,
		`UPDATE job_queue SET lease_expires_at = ? WHERE id = ?`,
		time.Now().UTC().Add(q.config.PollInterval), id); err != nil {
		q.logger.Error("Failed to reschedule job", err)
	}
}

func (q *Queue) remove(ctx context.Context, id int64) {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM job_queue WHERE id = ?`, id); err != nil {
		q.logger.Error("Failed to delete completed job", err)
	}
}

func (q *Queue) Health() error {
	return q.db.Ping()
}

func (q *Queue) Close() error {
	return q.db.Close()
}
