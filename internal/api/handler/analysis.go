package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ngslab/seqportal/internal/analysis"
	mw "github.com/ngslab/seqportal/internal/api/middleware"
	"github.com/ngslab/seqportal/internal/api/response"
	"github.com/ngslab/seqportal/internal/pathguard"
	"github.com/ngslab/seqportal/internal/store"
	"github.com/ngslab/seqportal/pkg/models"
)

// AnalysisService defines the job lifecycle operations the handlers depend on.
type AnalysisService interface {
	CreateAndStart(ctx context.Context, userID uuid.UUID, folderPath, analysisType, runName string, samples []string) (*models.AnalysisJob, error)
	Cancel(ctx context.Context, jobID, userID uuid.UUID) error
	PollProgress(ctx context.Context, jobID, userID uuid.UUID) (analysis.Progress, error)
	JobLog(ctx context.Context, jobID, userID uuid.UUID) string
	RunningJob(ctx context.Context, userID uuid.UUID) (*models.AnalysisJob, error)
	ForceReset(ctx context.Context, userID uuid.UUID) int
	Samples(ctx context.Context, folderPath string, recursive bool) ([]models.Sample, string, error)
	BrowseFolders(ctx context.Context, path string) ([]analysis.Folder, string, error)
	History(ctx context.Context, limit int) ([]analysis.HistoryEntry, error)
}

// NewStartAnalysisHandler returns the handler for POST /api/v1/analysis.
func NewStartAnalysisHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing session", nil)
			return
		}

		var req struct {
			FolderPath   string   `json:"folder_path"`
			AnalysisType string   `json:"analysis_type"`
			RunName      string   `json:"run_name"`
			Samples      []string `json:"samples"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.FolderPath == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "folder_path is required", nil)
			return
		}
		if req.AnalysisType == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "analysis_type is required", nil)
			return
		}
		if len(req.Samples) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "samples must not be empty", nil)
			return
		}

		job, err := svc.CreateAndStart(r.Context(), userID, req.FolderPath, req.AnalysisType, req.RunName, req.Samples)
		if err != nil {
			switch {
			case errors.Is(err, analysis.ErrJobAlreadyRunning):
				response.Error(w, http.StatusConflict, "JOB_CONFLICT",
					"An analysis is already running for this user", nil)
			case errors.Is(err, analysis.ErrUnknownAnalysisType):
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
					"Unknown analysis type", nil)
			case errors.Is(err, pathguard.ErrEmptyPath), errors.Is(err, pathguard.ErrOutsideBase):
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
					"Invalid folder path", nil)
			case errors.Is(err, store.ErrDuplicateKey):
				response.Error(w, http.StatusConflict, "DUPLICATE_RESOURCE",
					"Job code collided, retry the request", nil)
			case job != nil:
				// Job was persisted as failed; the pipeline never started.
				response.Error(w, http.StatusBadGateway, "PIPELINE_START_FAILED",
					err.Error(), map[string]any{"job_id": job.ID, "job_code": job.JobCode})
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.Created(w, job)
	}
}

// NewCancelAnalysisHandler returns the handler for POST /api/v1/analysis/{jobID}/cancel.
func NewCancelAnalysisHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, jobID, ok := jobRequest(w, r)
		if !ok {
			return
		}

		if err := svc.Cancel(r.Context(), jobID, userID); err != nil {
			switch {
			case errors.Is(err, analysis.ErrJobNotFound):
				response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Job not found", nil)
			case errors.Is(err, analysis.ErrUnauthorized):
				response.Error(w, http.StatusForbidden, "FORBIDDEN", "Not your job", nil)
			case errors.Is(err, analysis.ErrJobNotRunning):
				response.Error(w, http.StatusConflict, "JOB_NOT_RUNNING", "Job is not running", nil)
			default:
				response.Error(w, http.StatusBadGateway, "PIPELINE_CANCEL_FAILED", err.Error(), nil)
			}
			return
		}

		response.JSON(w, map[string]string{"status": models.JobStatusFailed})
	}
}

// NewProgressHandler returns the handler for GET /api/v1/analysis/{jobID}/progress.
func NewProgressHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, jobID, ok := jobRequest(w, r)
		if !ok {
			return
		}

		progress, err := svc.PollProgress(r.Context(), jobID, userID)
		if err != nil {
			switch {
			case errors.Is(err, analysis.ErrJobNotFound):
				response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Job not found", nil)
			case errors.Is(err, analysis.ErrUnauthorized):
				response.Error(w, http.StatusForbidden, "FORBIDDEN", "Not your job", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.JSON(w, progress)
	}
}

// NewJobLogHandler returns the handler for GET /api/v1/analysis/{jobID}/log.
// The body is plain text; failures arrive as [ERROR]-prefixed lines inside
// the log itself.
func NewJobLogHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, jobID, ok := jobRequest(w, r)
		if !ok {
			return
		}
		response.Text(w, http.StatusOK, svc.JobLog(r.Context(), jobID, userID))
	}
}

// NewRunningJobHandler returns the handler for GET /api/v1/analysis/running.
// The data is null when the user has no running job.
func NewRunningJobHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing session", nil)
			return
		}

		job, err := svc.RunningJob(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, job)
	}
}

// NewForceResetHandler returns the handler for POST /api/v1/analysis/force-reset.
func NewForceResetHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing session", nil)
			return
		}
		response.JSON(w, map[string]int{"reset_count": svc.ForceReset(r.Context(), userID)})
	}
}

// NewSamplesHandler returns the handler for POST /api/v1/samples.
func NewSamplesHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FolderPath string `json:"folder_path"`
			Recursive  bool   `json:"recursive"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.FolderPath == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "folder_path is required", nil)
			return
		}

		samples, msg, err := svc.Samples(r.Context(), req.FolderPath, req.Recursive)
		if err != nil {
			switch {
			case errors.Is(err, analysis.ErrNotAFolder):
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Path is not a folder", nil)
			case errors.Is(err, pathguard.ErrEmptyPath), errors.Is(err, pathguard.ErrOutsideBase):
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid folder path", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		resp := map[string]any{"samples": samples, "count": len(samples)}
		if msg != "" {
			resp["message"] = msg
		}
		response.JSON(w, resp)
	}
}

// NewBrowseHandler returns the handler for GET /api/v1/browse?path=.
func NewBrowseHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		folders, current, err := svc.BrowseFolders(r.Context(), r.URL.Query().Get("path"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid folder path", nil)
			return
		}
		response.JSON(w, map[string]any{"folders": folders, "current_path": current})
	}
}

// NewHistoryHandler returns the handler for GET /api/v1/history?limit=.
func NewHistoryHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 100 {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
					"limit must be between 1 and 100", nil)
				return
			}
			limit = n
		}

		entries, err := svc.History(r.Context(), limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, entries)
	}
}

// jobRequest extracts the session user and the jobID route parameter,
// writing the error response itself when either is missing.
func jobRequest(w http.ResponseWriter, r *http.Request) (userID, jobID uuid.UUID, ok bool) {
	userID, ok = mw.GetUserID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing session", nil)
		return uuid.Nil, uuid.Nil, false
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "jobID must be a valid UUID", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, jobID, true
}
