package model

import "time"

// RunStatus represents the current state of a reconciliation run.
type RunStatus string

const (
	RunStatusQueued        RunStatus = "queued"
	RunStatusPendingReview RunStatus = "pending_review"
	RunStatusApplied       RunStatus = "applied"
	RunStatusRejected      RunStatus = "rejected"
	RunStatusFailed        RunStatus = "failed"
)

// Run represents a single reconciliation run: one incoming dataset compared
// against one snapshot of the store, with the resulting differential held
// for review.
type Run struct {
	ID           string        `json:"id"`
	Source       string        `json:"source"`
	Status       RunStatus     `json:"status"`
	Differential *Differential `json:"differential,omitempty"`
	ApplyResult  *ApplyResult  `json:"apply_result,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
