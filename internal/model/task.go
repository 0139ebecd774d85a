package model

// TaskStatus is the lifecycle state of a video extraction task. Transitions
// advance monotonically; only the re-verification step may refresh the
// identifier set without a status change.
type TaskStatus string

const (
	TaskUploading     TaskStatus = "uploading"
	TaskAwaitingIDs   TaskStatus = "awaiting_identifiers"
	TaskAwaitingParse TaskStatus = "awaiting_parse_status"
	TaskReady         TaskStatus = "ready"
	TaskQuerying      TaskStatus = "querying"
	TaskDone          TaskStatus = "done"
	TaskFailed        TaskStatus = "failed"
)

// taskOrder ranks statuses for monotonic transitions. TaskFailed shares
// the terminal rank with TaskDone so any state can fail.
var taskOrder = map[TaskStatus]int{
	TaskUploading:     0,
	TaskAwaitingIDs:   1,
	TaskAwaitingParse: 2,
	TaskReady:         3,
	TaskQuerying:      4,
	TaskDone:          5,
	TaskFailed:        5,
}

// ExtractionTask tracks one upload/poll/query pass against the external
// video-understanding service. Dropped when the caller returns.
type ExtractionTask struct {
	VideoURL         string     `json:"video_url"`
	Platform         Platform   `json:"platform"`
	TaskID           string     `json:"task_id,omitempty"`
	VideoIdentifiers []string   `json:"video_identifiers,omitempty"`
	Status           TaskStatus `json:"status"`
}

// Advance moves the task to s and reports whether the transition took
// effect. Backward transitions are ignored.
func (t *ExtractionTask) Advance(s TaskStatus) bool {
	if taskOrder[s] < taskOrder[t.Status] {
		return false
	}
	t.Status = s
	return true
}

// FailureReason is the fatal classification surfaced to callers.
type FailureReason string

const (
	FailAdmissionRejected    FailureReason = "admission_rejected"
	FailServiceUnavailable   FailureReason = "service_unavailable"
	FailUploadPermission     FailureReason = "upload_permission_denied"
	FailProcessingTimeout    FailureReason = "processing_timeout"
	FailTransientExhausted   FailureReason = "transient_api_error"
	FailInvalidResponse      FailureReason = "invalid_response_structure"
	FailNetwork              FailureReason = "network_error"
	FailExtractionInadequate FailureReason = "extraction_inadequate"
)

// ExtractionOutcome is the orchestrator's return value. A failed outcome
// still carries any thumbnail obtained before the failure — partial value
// beats total failure from the caller's perspective.
type ExtractionOutcome struct {
	Recipe           *Recipe         `json:"recipe,omitempty"`
	Task             *ExtractionTask `json:"task,omitempty"`
	ThumbnailURL     string          `json:"thumbnail_url,omitempty"`
	VideoIdentifiers []string        `json:"video_identifiers,omitempty"`
	RetryCount       int             `json:"retry_count"`
	Failure          FailureReason   `json:"failure,omitempty"`
	FailureDetail    string          `json:"failure_detail,omitempty"`
}

// Failed reports whether the outcome carries a fatal failure.
func (o *ExtractionOutcome) Failed() bool { return o.Failure != "" }
