package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ngslab/seqportal/internal/api/response"
	"github.com/ngslab/seqportal/internal/logtail"
)

// NewListPortalLogsHandler returns the handler for GET /api/v1/admin/logs.
func NewListPortalLogsHandler(tailer *logtail.Tailer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, map[string]any{"logs": tailer.Names()})
	}
}

// NewPortalLogHandler returns the handler for GET /api/v1/admin/logs/{name}.
func NewPortalLogHandler(tailer *logtail.Tailer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := tailer.Tail(chi.URLParam(r, "name"))
		if err != nil {
			if errors.Is(err, logtail.ErrUnknownLog) {
				response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Unknown log name", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to read log", nil)
			return
		}
		response.Text(w, http.StatusOK, content)
	}
}
