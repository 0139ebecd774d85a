package model

import "time"

// RunStatus is the persisted status of an extraction run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is the persisted record of one extraction attempt. RetryCount makes
// the retry behavior observable in telemetry without surfacing it as an
// error to the caller.
type Run struct {
	ID            string           `json:"id"`
	SourceURL     string           `json:"source_url"`
	Platform      Platform         `json:"platform"`
	Status        RunStatus        `json:"status"`
	Method        ExtractionMethod `json:"method,omitempty"`
	RetryCount    int              `json:"retry_count"`
	Failure       FailureReason    `json:"failure,omitempty"`
	FailureDetail string           `json:"failure_detail,omitempty"`
	Preflight     *PreflightResult `json:"preflight,omitempty"`
	Recipe        *Recipe          `json:"recipe,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
