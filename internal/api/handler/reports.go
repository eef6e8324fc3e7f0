package handler

import (
	"net/http"
	"os"

	"github.com/ngslab/seqportal/internal/analysis"
	"github.com/ngslab/seqportal/internal/api/response"
	"github.com/ngslab/seqportal/internal/pathguard"
)

// NewReportHandler returns the handler for GET /api/v1/reports?path=. The
// path must resolve inside a configured base directory and carry a report
// extension; everything else is rejected before touching the filesystem.
func NewReportHandler(validator *pathguard.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("path")
		if raw == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "path is required", nil)
			return
		}

		validated, err := validator.Validate(raw, validator.InferType(raw))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid report path", nil)
			return
		}
		if !analysis.IsReportFile(validated) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Not a report file", nil)
			return
		}

		info, err := os.Stat(validated)
		if err != nil || info.IsDir() {
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Report not found", nil)
			return
		}

		http.ServeFile(w, r, validated)
	}
}
