// Package job defines the job-posting model and creation result.
package job

import (
	"github.com/jobdeck/entitle/id"
	"github.com/jobdeck/entitle/types"
)

// Status is the lifecycle state of a job posting.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Job is a job posting owned by an employer user.
type Job struct {
	types.Entity
	ID          id.JobID `json:"id"`
	OwnerID     string   `json:"owner_id"`
	Title       string   `json:"title"`
	Company     string   `json:"company,omitempty"`
	Location    string   `json:"location,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
}

// CreateResult is the outcome of an idempotency-guarded creation. When
// AlreadyExists is true, Job is the pre-existing posting the request
// duplicated and no new row was written.
type CreateResult struct {
	Job           *Job `json:"job"`
	AlreadyExists bool `json:"already_exists"`
}

// ListOpts filters owner-scoped job listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
