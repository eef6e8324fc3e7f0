// Package mock provides a function-field Store implementation for tests.
package mock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ngslab/seqportal/internal/store"
	"github.com/ngslab/seqportal/pkg/models"
)

// Store satisfies store.Store for testing. Unset functions return zero
// values (or ErrNotFound for lookups).
type Store struct {
	PingFunc                     func(ctx context.Context) error
	GetUserFunc                  func(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsernameFunc        func(ctx context.Context, username string) (*models.User, error)
	ListUsersFunc                func(ctx context.Context) ([]*models.User, error)
	CreateUserFunc               func(ctx context.Context, user *models.User) error
	UpdateUserFunc               func(ctx context.Context, user *models.User) error
	DeleteUserFunc               func(ctx context.Context, id uuid.UUID) error
	CreateJobFunc                func(ctx context.Context, job *models.AnalysisJob) error
	GetJobFunc                   func(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	GetRunningJobByUserFunc      func(ctx context.Context, userID uuid.UUID) (*models.AnalysisJob, error)
	CountRunningJobsByUserFunc   func(ctx context.Context, userID uuid.UUID) (int, error)
	CountJobsByTypeSinceFunc     func(ctx context.Context, jobType string, since time.Time) (int, error)
	ListRunningJobsOlderThanFunc func(ctx context.Context, cutoff time.Time) ([]*models.AnalysisJob, error)
	ListRecentJobsFunc           func(ctx context.Context, limit int) ([]*models.AnalysisJob, error)
	UpdateJobStatusFunc          func(ctx context.Context, id uuid.UUID, status string) error
	FailRunningJobsForUserFunc   func(ctx context.Context, userID uuid.UUID) (int, error)
}

func (m *Store) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetUserByUsernameFunc != nil {
		return m.GetUserByUsernameFunc(ctx, username)
	}
	return nil, store.ErrNotFound
}

func (m *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx)
	}
	return nil, nil
}

func (m *Store) CreateUser(ctx context.Context, user *models.User) error {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, user)
	}
	return nil
}

func (m *Store) UpdateUser(ctx context.Context, user *models.User) error {
	if m.UpdateUserFunc != nil {
		return m.UpdateUserFunc(ctx, user)
	}
	return nil
}

func (m *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if m.DeleteUserFunc != nil {
		return m.DeleteUserFunc(ctx, id)
	}
	return nil
}

func (m *Store) CreateJob(ctx context.Context, job *models.AnalysisJob) error {
	if m.CreateJobFunc != nil {
		return m.CreateJobFunc(ctx, job)
	}
	return nil
}

func (m *Store) GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	if m.GetJobFunc != nil {
		return m.GetJobFunc(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *Store) GetRunningJobByUser(ctx context.Context, userID uuid.UUID) (*models.AnalysisJob, error) {
	if m.GetRunningJobByUserFunc != nil {
		return m.GetRunningJobByUserFunc(ctx, userID)
	}
	return nil, store.ErrNotFound
}

func (m *Store) CountRunningJobsByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	if m.CountRunningJobsByUserFunc != nil {
		return m.CountRunningJobsByUserFunc(ctx, userID)
	}
	return 0, nil
}

func (m *Store) CountJobsByTypeSince(ctx context.Context, jobType string, since time.Time) (int, error) {
	if m.CountJobsByTypeSinceFunc != nil {
		return m.CountJobsByTypeSinceFunc(ctx, jobType, since)
	}
	return 0, nil
}

func (m *Store) ListRunningJobsOlderThan(ctx context.Context, cutoff time.Time) ([]*models.AnalysisJob, error) {
	if m.ListRunningJobsOlderThanFunc != nil {
		return m.ListRunningJobsOlderThanFunc(ctx, cutoff)
	}
	return nil, nil
}

func (m *Store) ListRecentJobs(ctx context.Context, limit int) ([]*models.AnalysisJob, error) {
	if m.ListRecentJobsFunc != nil {
		return m.ListRecentJobsFunc(ctx, limit)
	}
	return nil, nil
}

func (m *Store) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string) error {
	if m.UpdateJobStatusFunc != nil {
		return m.UpdateJobStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *Store) FailRunningJobsForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	if m.FailRunningJobsForUserFunc != nil {
		return m.FailRunningJobsForUserFunc(ctx, userID)
	}
	return 0, nil
}
