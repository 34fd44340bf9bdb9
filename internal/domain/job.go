package domain

// JobType enumerates supported generation job categories. Speech is served
// synchronously by the API and never becomes a job.
type JobType string

const (
	JobTypeImageGen JobType = "IMAGE_GEN"
	JobTypeVideoGen JobType = "VIDEO_GEN"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
	// JobStatusTimedOut marks jobs whose upstream provider was still
	// processing when the poll budget ran out. Distinct from FAILED so the
	// client can render "still processing, check back later".
	JobStatusTimedOut JobStatus = "TIMED_OUT"
)

// Terminal reports whether no further worker activity follows.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusTimedOut:
		return true
	default:
		return false
	}
}
