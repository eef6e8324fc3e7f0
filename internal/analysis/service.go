// Package analysis is the job orchestration core of the portal. It creates
// pipeline jobs, enforces the one-running-job-per-user invariant, delegates
// start/cancel to the SSH gateway and infers job completion by scanning the
// remote log, since the remote script gives no structured completion signal.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ngslab/seqportal/internal/cache"
	"github.com/ngslab/seqportal/internal/config"
	"github.com/ngslab/seqportal/internal/fastq"
	"github.com/ngslab/seqportal/internal/gateway"
	"github.com/ngslab/seqportal/internal/pathguard"
	"github.com/ngslab/seqportal/internal/store"
	"github.com/ngslab/seqportal/pkg/models"
)

// Sentinel errors callers can map to response codes.
var (
	ErrJobNotFound         = errors.New("job not found")
	ErrUnauthorized        = errors.New("not authorized for this job")
	ErrJobAlreadyRunning   = errors.New("an analysis is already running")
	ErrJobNotRunning       = errors.New("job is not running")
	ErrUnknownAnalysisType = errors.New("unknown analysis type")
	ErrNotAFolder          = errors.New("path is not a folder")
)

// Completion markers scraped from the remote pipeline log. The remote side
// only writes free text, so status inference is pattern matching by design
// of the remote script, and the exact phrases are part of its interface.
var (
	reFinished = regexp.MustCompile(`(?i)Analysis is ready|ANALYSIS COMPLETE`)
	reFailed   = regexp.MustCompile(`(?i)Exiting pipeline|ANALYSIS FAILED|ERROR.*FATAL`)
)

// ReportExtensions lists the file types served from a run's reports folder.
var ReportExtensions = []string{".html", ".pdf", ".txt", ".csv", ".json"}

const truncationNotice = "\n[INFO] log truncated"

// Folder is one entry of a browsable directory listing.
type Folder struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Report is one generated report file of a finished run.
type Report struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// HistoryEntry is one row of the portal's run history.
type HistoryEntry struct {
	ID        uuid.UUID `json:"id"`
	JobCode   string    `json:"job_code"`
	JobType   string    `json:"job_type"`
	RunName   string    `json:"run_name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Reports   []Report  `json:"reports"`
}

// Progress is the poll result for a job. Error carries inference problems
// (missing input path) without failing the poll.
type Progress struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Service implements the job lifecycle operations. All methods are safe for
// concurrent use; consistency across concurrent requests comes from the
// store's commit semantics, not from in-process locking.
type Service struct {
	store     store.Store
	gateway   gateway.Gateway
	validator *pathguard.Validator
	scanner   *fastq.Scanner
	cache     cache.Cache
	log       *slog.Logger

	basePaths  []config.BasePath
	maxLogSize int
	reapAfter  time.Duration
	staleAfter time.Duration
	folderTTL  time.Duration

	now func() time.Time
}

// NewService wires the job lifecycle service. A nil logger falls back to
// slog.Default.
func NewService(st store.Store, gw gateway.Gateway, v *pathguard.Validator, sc *fastq.Scanner, c cache.Cache, cfg config.AnalysisConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		store:      st,
		gateway:    gw,
		validator:  v,
		scanner:    sc,
		cache:      c,
		log:        log,
		basePaths:  cfg.BasePaths,
		maxLogSize: cfg.MaxLogSize,
		reapAfter:  cfg.ReapAfter,
		staleAfter: cfg.StaleAfter,
		folderTTL:  cfg.FolderCacheTTL,
		now:        time.Now,
	}
	if s.maxLogSize <= 0 {
		s.maxLogSize = 1024 * 1024
	}
	if s.reapAfter <= 0 {
		s.reapAfter = 12 * time.Hour
	}
	if s.staleAfter <= 0 {
		s.staleAfter = time.Hour
	}
	if s.folderTTL <= 0 {
		s.folderTTL = cache.FolderCacheBucket
	}
	return s
}

// CreateAndStart creates a job for the user and dispatches it to the remote
// host. On dispatch failure the job is kept as failed for auditability and
// the gateway's error is returned alongside it.
func (s *Service) CreateAndStart(ctx context.Context, userID uuid.UUID, folderPath, analysisType, runName string, samples []string) (*models.AnalysisJob, error) {
	if _, ok := s.validator.BaseDir(analysisType); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAnalysisType, analysisType)
	}

	// Read-check-then-write: two concurrent requests from the same user can
	// both pass this check. Accepted, as with the original portal.
	running, err := s.store.CountRunningJobsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if running > 0 {
		return nil, ErrJobAlreadyRunning
	}

	validatedPath, err := s.validator.Validate(folderPath, analysisType)
	if err != nil {
		return nil, err
	}

	if runName == "" {
		runName = filepath.Base(filepath.Clean(folderPath))
	}

	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	countToday, err := s.store.CountJobsByTypeSince(ctx, analysisType, startOfDay)
	if err != nil {
		return nil, err
	}
	jobCode := generateJobCode(analysisType, now, countToday+1)

	params, err := json.Marshal(models.JobParameters{
		Samples:     samples,
		InputPath:   validatedPath,
		SampleCount: len(samples),
	})
	if err != nil {
		return nil, err
	}

	job := &models.AnalysisJob{
		ID:         uuid.New(),
		UserID:     userID,
		JobType:    analysisType,
		JobCode:    jobCode,
		RunName:    runName,
		Parameters: string(params),
		Status:     models.JobStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.log.Info("creating job", "job_code", jobCode, "user_id", userID, "samples", len(samples))
	// A job_code collision from the count-then-insert race surfaces here as
	// the store's duplicate-key error; no retry.
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	_, runErr := s.gateway.Run(ctx, analysisType, validatedPath, strings.Join(samples, ","), jobCode)
	if runErr != nil {
		job.Status = models.JobStatusFailed
		if err := s.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed); err != nil {
			s.log.Error("failed to persist failed job", "job_code", jobCode, "error", err)
		}
		s.log.Error("failed to start analysis", "job_code", jobCode, "error", runErr)
		return job, runErr
	}

	job.Status = models.JobStatusRunning
	if err := s.store.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning); err != nil {
		return job, err
	}
	s.log.Info("started analysis", "job_code", jobCode)
	return job, nil
}

// Cancel kills a running job. A gateway failure leaves the job running and
// is surfaced to the caller.
func (s *Service) Cancel(ctx context.Context, jobID, userID uuid.UUID) error {
	job, err := s.authorizedJob(ctx, jobID, userID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusRunning {
		return ErrJobNotRunning
	}

	identifier := job.JobCode
	if identifier == "" {
		identifier = job.ID.String()
	}
	if err := s.gateway.Kill(ctx, identifier, job.JobType); err != nil {
		s.log.Error("failed to cancel job", "job_id", jobID, "error", err)
		return err
	}

	if err := s.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed); err != nil {
		return err
	}
	s.log.Info("cancelled analysis", "job_code", job.JobCode)
	return nil
}

// PollProgress returns the job's status, re-inferring it from the remote log
// when the job is running. Inference problems degrade to an error note next
// to the current status; polling never hard-fails once the job is resolved.
func (s *Service) PollProgress(ctx context.Context, jobID, userID uuid.UUID) (Progress, error) {
	job, err := s.authorizedJob(ctx, jobID, userID)
	if err != nil {
		return Progress{}, err
	}

	params, err := job.Params()
	if err != nil || params.InputPath == "" {
		return Progress{Status: job.Status, Error: "no input path in job parameters"}, nil
	}

	if job.Status == models.JobStatusRunning {
		logContent, fetchErr := s.gateway.FetchLog(ctx, params.InputPath, job.JobType)
		if fetchErr != nil {
			s.log.Warn("log fetch failed during poll", "job_code", job.JobCode, "error", fetchErr)
			return Progress{Status: job.Status}, nil
		}

		switch {
		case reFinished.MatchString(logContent):
			if err := s.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFinished); err != nil {
				s.log.Error("failed to persist finished status", "job_code", job.JobCode, "error", err)
			} else {
				job.Status = models.JobStatusFinished
				s.log.Info("job marked as finished", "job_code", job.JobCode)
			}
		case reFailed.MatchString(logContent):
			if err := s.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed); err != nil {
				s.log.Error("failed to persist failed status", "job_code", job.JobCode, "error", err)
			} else {
				job.Status = models.JobStatusFailed
				s.log.Info("job marked as failed", "job_code", job.JobCode)
			}
		}
	}

	return Progress{Status: job.Status}, nil
}

// JobLog returns the remote log for a job, truncated to the configured
// maximum size. Failures are rendered as [ERROR]-prefixed text so the
// plain-text log viewer can display them as-is.
func (s *Service) JobLog(ctx context.Context, jobID, userID uuid.UUID) string {
	job, err := s.authorizedJob(ctx, jobID, userID)
	if errors.Is(err, ErrJobNotFound) {
		return "[ERROR] job not found"
	}
	if errors.Is(err, ErrUnauthorized) {
		return "[ERROR] not authorized"
	}
	if err != nil {
		return fmt.Sprintf("[ERROR] failed to load log: %v", err)
	}

	params, perr := job.Params()
	if perr != nil || params.InputPath == "" {
		return "[ERROR] no input path in job parameters"
	}

	logContent, ferr := s.gateway.FetchLog(ctx, params.InputPath, job.JobType)
	if ferr != nil {
		s.log.Error("log fetch failed", "job_code", job.JobCode, "error", ferr)
		return fmt.Sprintf("[ERROR] log unavailable: %v", ferr)
	}
	if logContent == "" {
		return "[INFO] no log available yet"
	}
	return truncateLog(logContent, s.maxLogSize)
}

// RunningJob returns the user's running job, if any. A running job older
// than the stale threshold is no longer trusted: it is force-failed at read
// time and reported as absent.
func (s *Service) RunningJob(ctx context.Context, userID uuid.UUID) (*models.AnalysisJob, error) {
	job, err := s.store.GetRunningJobByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if job.CreatedAt.Before(s.now().UTC().Add(-s.staleAfter)) {
		s.log.Warn("force-failing stale running job", "job_id", job.ID, "job_code", job.JobCode)
		if err := s.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed); err != nil {
			s.log.Error("failed to persist stale job status", "job_id", job.ID, "error", err)
		}
		return nil, nil
	}

	return job, nil
}

// ReapStuck force-fails every running job older than the reap threshold.
// Best-effort: persistence failures are logged, not returned. Returns the
// number of jobs reaped.
func (s *Service) ReapStuck(ctx context.Context) int {
	cutoff := s.now().UTC().Add(-s.reapAfter)
	stuck, err := s.store.ListRunningJobsOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error("failed to list stuck jobs", "error", err)
		return 0
	}

	reaped := 0
	for _, job := range stuck {
		if err := s.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed); err != nil {
			s.log.Error("failed to reap stuck job", "job_id", job.ID, "error", err)
			continue
		}
		s.log.Info("marked stuck job as failed", "job_id", job.ID, "job_code", job.JobCode)
		reaped++
	}
	return reaped
}

// ForceReset unconditionally fails every running job of the user. Manual
// escape hatch; bypasses the cancel checks.
func (s *Service) ForceReset(ctx context.Context, userID uuid.UUID) int {
	n, err := s.store.FailRunningJobsForUser(ctx, userID)
	if err != nil {
		s.log.Error("force reset failed", "user_id", userID, "error", err)
		return 0
	}
	s.log.Warn("force-reset running jobs", "user_id", userID, "count", n)
	return n
}

// Samples validates the folder and scans it for sample records. The message
// explains an empty result to the user.
func (s *Service) Samples(ctx context.Context, folderPath string, recursive bool) ([]models.Sample, string, error) {
	validated, err := s.validator.Validate(folderPath, "")
	if err != nil {
		return nil, "", err
	}

	info, err := os.Stat(validated)
	if err != nil || !info.IsDir() {
		return nil, "", ErrNotAFolder
	}

	samples := s.scanner.Scan(validated, recursive)
	if len(samples) == 0 {
		msg := "no read files found in this folder"
		if recursive {
			msg = "no read files found in this folder or any subfolder"
		}
		return []models.Sample{}, msg, nil
	}

	s.log.Info("found samples", "dir", validated, "count", len(samples), "recursive", recursive)
	return samples, "", nil
}

// BrowseFolders lists the subfolders of path, confined to the base directory
// inferred from it. Listings are served from the cache keyed by path and a
// coarse time bucket; entries stay implicitly fresh for one bucket.
func (s *Service) BrowseFolders(ctx context.Context, path string) ([]Folder, string, error) {
	if path == "" {
		path = s.basePaths[0].Dir
	}
	analysisType := s.validator.InferType(path)

	validated, err := s.validator.Validate(path, analysisType)
	if err != nil {
		return nil, "", err
	}

	key := cache.FolderListKey(validated, s.now())
	if cached, found, err := s.cache.Get(ctx, key); err == nil && found {
		var folders []Folder
		if err := json.Unmarshal(cached, &folders); err == nil {
			return folders, validated, nil
		}
	}

	folders := listFolders(validated, s.log)
	if encoded, err := json.Marshal(folders); err == nil {
		if err := s.cache.Set(ctx, key, encoded, s.folderTTL); err != nil {
			s.log.Warn("failed to cache folder listing", "path", validated, "error", err)
		}
	}

	return folders, validated, nil
}

// History returns the latest jobs with, for terminal jobs, the report files
// found under the run's reports folder.
func (s *Service) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	jobs, err := s.store.ListRecentJobs(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(jobs))
	for _, job := range jobs {
		entry := HistoryEntry{
			ID:        job.ID,
			JobCode:   job.JobCode,
			JobType:   job.JobType,
			RunName:   job.RunName,
			Status:    job.Status,
			CreatedAt: job.CreatedAt,
			Reports:   []Report{},
		}
		if params, err := job.Params(); err == nil && params.InputPath != "" && job.IsTerminal() {
			entry.Reports = findReports(filepath.Join(params.InputPath, "reports"), s.log)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// authorizedJob loads a job and checks it belongs to the user.
func (s *Service) authorizedJob(ctx context.Context, jobID, userID uuid.UUID) (*models.AnalysisJob, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		s.log.Warn("unauthorized job access attempt", "job_id", jobID, "user_id", userID)
		return nil, ErrUnauthorized
	}
	return job, nil
}

// generateJobCode builds the human-readable per-day-per-type code, e.g.
// wgs241009_03 for the third wgs job of 2024-10-09 UTC.
func generateJobCode(jobType string, now time.Time, countToday int) string {
	return fmt.Sprintf("%s%s_%02d", jobType, now.UTC().Format("060102"), countToday)
}

// truncateLog keeps the trailing maxSize bytes of content and appends a
// truncation notice. Content at or under the limit passes through unchanged.
func truncateLog(content string, maxSize int) string {
	if len(content) <= maxSize {
		return content
	}
	return content[len(content)-maxSize:] + truncationNotice
}

// listFolders returns the child directories of dir sorted case-insensitively.
// Access errors degrade to an empty listing.
func listFolders(dir string, log *slog.Logger) []Folder {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Error("failed to list folders", "dir", dir, "error", err)
		return []Folder{}
	}

	folders := []Folder{}
	for _, entry := range entries {
		if entry.IsDir() {
			folders = append(folders, Folder{Name: entry.Name(), Path: filepath.Join(dir, entry.Name())})
		}
	}
	sort.Slice(folders, func(i, j int) bool {
		return strings.ToLower(folders[i].Name) < strings.ToLower(folders[j].Name)
	})
	return folders
}

// findReports lists report files in dir, filtered by the supported
// extensions and sorted by name.
func findReports(dir string, log *slog.Logger) []Report {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []Report{}
	}

	reports := []Report{}
	for _, entry := range entries {
		if entry.IsDir() || !IsReportFile(entry.Name()) {
			continue
		}
		reports = append(reports, Report{Name: entry.Name(), Path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(reports, func(i, j int) bool {
		return strings.ToLower(reports[i].Name) < strings.ToLower(reports[j].Name)
	})
	if len(reports) > 0 {
		log.Debug("found reports", "dir", dir, "count", len(reports))
	}
	return reports
}

// IsReportFile reports whether filename has one of the supported report
// extensions.
func IsReportFile(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range ReportExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
