package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ngslab/seqportal/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

const userColumns = `id, username, email, password_hash, role, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY lower(username)`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET username = $2, email = $3, password_hash = $4, role = $5 WHERE id = $1`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user; their jobs go with them via ON DELETE CASCADE.
func (s *PostgresStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Jobs ---

const jobColumns = `id, user_id, job_type, job_code, run_name, parameters, status, progress, created_at, updated_at`

func scanJob(row pgx.Row) (*models.AnalysisJob, error) {
	var j models.AnalysisJob
	err := row.Scan(&j.ID, &j.UserID, &j.JobType, &j.JobCode, &j.RunName, &j.Parameters,
		&j.Status, &j.Progress, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

func scanJobs(rows pgx.Rows) ([]*models.AnalysisJob, error) {
	defer rows.Close()
	var jobs []*models.AnalysisJob
	for rows.Next() {
		var j models.AnalysisJob
		if err := rows.Scan(&j.ID, &j.UserID, &j.JobType, &j.JobCode, &j.RunName, &j.Parameters,
			&j.Status, &j.Progress, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.AnalysisJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.UserID, job.JobType, job.JobCode, job.RunName, job.Parameters,
		job.Status, job.Progress, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	return scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, id))
}

func (s *PostgresStore) GetRunningJobByUser(ctx context.Context, userID uuid.UUID) (*models.AnalysisJob, error) {
	return scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs
		 WHERE user_id = $1 AND status = 'running'
		 ORDER BY created_at LIMIT 1`, userID))
}

func (s *PostgresStore) CountRunningJobsByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM analysis_jobs WHERE user_id = $1 AND status = 'running'`,
		userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count running jobs: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountJobsByTypeSince(ctx context.Context, jobType string, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM analysis_jobs WHERE job_type = $1 AND created_at >= $2`,
		jobType, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count jobs by type: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListRunningJobsOlderThan(ctx context.Context, cutoff time.Time) ([]*models.AnalysisJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs
		 WHERE status = 'running' AND created_at < $1
		 ORDER BY created_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list running jobs older than: %w", err)
	}
	return scanJobs(rows)
}

func (s *PostgresStore) ListRecentJobs(ctx context.Context, limit int) ([]*models.AnalysisJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs
		 ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	return scanJobs(rows)
}

var validTransitions = map[string][]string{
	models.JobStatusQueued:  {models.JobStatusRunning, models.JobStatusFailed},
	models.JobStatusRunning: {models.JobStatusFinished, models.JobStatusFailed},
}

// UpdateJobStatus transitions a job to status, touching updated_at. Invalid
// transitions (anything leaving finished/failed) are rejected.
func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string) error {
	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM analysis_jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	valid := false
	for _, allowed := range validTransitions[currentStatus] {
		if allowed == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid job status transition: %s -> %s", currentStatus, status)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE analysis_jobs SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// FailRunningJobsForUser force-fails every running job of a user and
// returns how many were affected.
func (s *PostgresStore) FailRunningJobsForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs SET status = 'failed', updated_at = $2
		 WHERE user_id = $1 AND status = 'running'`,
		userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("fail running jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// isDuplicateKeyError reports whether err is a Postgres unique violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
