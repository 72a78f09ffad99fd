package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jobdeck/entitle"
	"github.com/jobdeck/entitle/id"
	"github.com/jobdeck/entitle/job"
	"github.com/jobdeck/entitle/user"
)

type Store struct {
	mu sync.RWMutex

	// User storage, keyed by user ID
	users map[string]*user.User

	// Job storage, keyed by job ID string
	jobs map[string]*job.Job
}

func New() *Store {
	return &Store{
		users: make(map[string]*user.User),
		jobs:  make(map[string]*job.Job),
	}
}

// User Store implementation
func (s *Store) CreateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUser(_ context.Context, userID string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, entitle.ErrUserNotFound
}

func (s *Store) GetUserByBillingCustomerID(_ context.Context, customerID string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.BillingCustomerID == customerID && customerID != "" {
			cp := *u
			return &cp, nil
		}
	}
	return nil, entitle.ErrUserNotFound
}

func (s *Store) LinkBillingCustomer(_ context.Context, userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return entitle.ErrUserNotFound
	}
	u.BillingCustomerID = customerID
	u.Touch()
	return nil
}

func (s *Store) SetUserEntitlement(_ context.Context, userID string, ent user.Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return entitle.ErrUserNotFound
	}
	u.SubActive = ent.SubActive
	u.BillingCustomerID = ent.BillingCustomerID
	u.SubscriptionID = ent.SubscriptionID
	u.SubscriptionStatus = ent.SubscriptionStatus
	u.Touch()
	return nil
}

// Job Store implementation
func (s *Store) CreateJob(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.ID.String()]; exists {
		return entitle.ErrInvalidInput
	}
	cp := *j
	s.jobs[j.ID.String()] = &cp
	return nil
}

func (s *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if j, ok := s.jobs[jobID.String()]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, entitle.ErrJobNotFound
}

func (s *Store) FindRecentJobByOwnerTitle(_ context.Context, ownerID, title string, since time.Time) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *job.Job
	for _, j := range s.jobs {
		if j.OwnerID == ownerID && j.Title == title && j.CreatedAt.After(since) {
			if newest == nil || j.CreatedAt.After(newest.CreatedAt) {
				newest = j
			}
		}
	}
	if newest == nil {
		return nil, entitle.ErrJobNotFound
	}
	cp := *newest
	return &cp, nil
}

func (s *Store) ListJobsByOwner(_ context.Context, ownerID string, opts job.ListOpts) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*job.Job, 0)
	for _, j := range s.jobs {
		if j.OwnerID == ownerID {
			if opts.Status == "" || j.Status == opts.Status {
				cp := *j
				result = append(result, &cp)
			}
		}
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) CountJobsByOwner(_ context.Context, ownerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, j := range s.jobs {
		if j.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
