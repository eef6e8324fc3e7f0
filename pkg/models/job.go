package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusQueued   = "queued"
	JobStatusRunning  = "running"
	JobStatusFinished = "finished"
	JobStatusFailed   = "failed"
)

// AnalysisJob tracks one invocation of a remote pipeline. The portal creates
// it as queued, flips it to running once the SSH wrapper has been dispatched,
// and later infers finished/failed from the remote log.
type AnalysisJob struct {
	ID         uuid.UUID `db:"id"         json:"id"`
	UserID     uuid.UUID `db:"user_id"    json:"user_id"`
	JobType    string    `db:"job_type"   json:"job_type"`
	JobCode    string    `db:"job_code"   json:"job_code"`
	RunName    string    `db:"run_name"   json:"run_name"`
	Parameters string    `db:"parameters" json:"-"`
	Status     string    `db:"status"     json:"status"`
	Progress   int       `db:"progress"   json:"progress"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// JobParameters is the structured blob stored in AnalysisJob.Parameters.
// InputPath is the only way the service recovers the folder for log polling.
type JobParameters struct {
	Samples     []string `json:"samples"`
	InputPath   string   `json:"input_path"`
	SampleCount int      `json:"sample_count"`
}

// Params decodes the parameters blob. A job with no parameters decodes to
// the zero value rather than an error.
func (j *AnalysisJob) Params() (JobParameters, error) {
	var p JobParameters
	if j.Parameters == "" {
		return p, nil
	}
	err := json.Unmarshal([]byte(j.Parameters), &p)
	return p, err
}

// IsTerminal reports whether the job reached a final state.
func (j *AnalysisJob) IsTerminal() bool {
	return j.Status == JobStatusFinished || j.Status == JobStatusFailed
}
