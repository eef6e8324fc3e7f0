package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ngslab/seqportal/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error

	CreateJob(ctx context.Context, job *models.AnalysisJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	GetRunningJobByUser(ctx context.Context, userID uuid.UUID) (*models.AnalysisJob, error)
	CountRunningJobsByUser(ctx context.Context, userID uuid.UUID) (int, error)
	CountJobsByTypeSince(ctx context.Context, jobType string, since time.Time) (int, error)
	ListRunningJobsOlderThan(ctx context.Context, cutoff time.Time) ([]*models.AnalysisJob, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*models.AnalysisJob, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string) error
	FailRunningJobsForUser(ctx context.Context, userID uuid.UUID) (int, error)
}
