package pipeline

import (
	"mediumpilot/internal/domain"
	"time"
)

type Status string

const (
	StatusPublished Status = "published"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

const (
	ReasonUserNotFound       = "user not found"
	ReasonFeedURLMissing     = "feed URL missing"
	ReasonCredentialsMissing = "credentials missing"
	ReasonFeedUnavailable    = "feed unavailable"
	ReasonFeedEmpty          = "feed empty"
	ReasonAlreadyPublished   = "already published"
	ReasonLocked             = "locked by another cycle"
	ReasonPublishFailed      = "publish failed"
	ReasonMarkerNotSaved     = "marker not saved"
	ReasonInternal           = "internal error"
)

type UserResult struct {
	UserID        string
	Status        Status
	Reason        string
	Title         string
	Link          string
	PostID        string
	ExcerptSource domain.ExcerptSource
	Err           error
}

// Report describes one cycle. Results keep the order of the user listing.
type Report struct {
	CycleID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []UserResult
}

func (r *Report) Count(status Status) int {
	n := 0
	for i := range r.Results {
		if r.Results[i].Status == status {
			n++
		}
	}

	return n
}
