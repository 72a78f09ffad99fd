package store

import (
	"context"
	"time"

	"github.com/jobdeck/entitle/id"
	"github.com/jobdeck/entitle/job"
	"github.com/jobdeck/entitle/user"
)

// Store is the unified document-store interface for all entitle entities.
// It is the queryable side of the entitlement dual write: user documents are
// looked up by billing customer ID, and job postings back the idempotency
// guard's duplicate query.
type Store interface {
	// User methods
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, userID string) (*user.User, error)
	GetUserByBillingCustomerID(ctx context.Context, customerID string) (*user.User, error)
	LinkBillingCustomer(ctx context.Context, userID, customerID string) error
	SetUserEntitlement(ctx context.Context, userID string, ent user.Entitlement) error

	// Job methods
	CreateJob(ctx context.Context, j *job.Job) error
	GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error)
	// FindRecentJobByOwnerTitle returns the newest job with an exact
	// owner+title match created after since, or ErrJobNotFound.
	FindRecentJobByOwnerTitle(ctx context.Context, ownerID, title string, since time.Time) (*job.Job, error)
	ListJobsByOwner(ctx context.Context, ownerID string, opts job.ListOpts) ([]*job.Job, error)
	CountJobsByOwner(ctx context.Context, ownerID string) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
