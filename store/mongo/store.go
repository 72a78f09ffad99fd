package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	entitle "github.com/jobdeck/entitle"
	"github.com/jobdeck/entitle/id"
	"github.com/jobdeck/entitle/job"
	entitlestore "github.com/jobdeck/entitle/store"
	"github.com/jobdeck/entitle/user"
)

// Collection name constants.
const (
	colUsers = "entitle_users"
	colJobs  = "entitle_jobs"
)

// compile-time interface check
var _ entitlestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all entitle collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("entitle/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	m := toUserModel(u)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("entitle/mongo: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*user.User, error) {
	var m userModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": userID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, entitle.ErrUserNotFound
		}
		return nil, fmt.Errorf("entitle/mongo: get user: %w", err)
	}
	return fromUserModel(&m), nil
}

func (s *Store) GetUserByBillingCustomerID(ctx context.Context, customerID string) (*user.User, error) {
	if customerID == "" {
		return nil, entitle.ErrUserNotFound
	}
	var m userModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"billing_customer_id": customerID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, entitle.ErrUserNotFound
		}
		return nil, fmt.Errorf("entitle/mongo: get user by billing customer: %w", err)
	}
	return fromUserModel(&m), nil
}

func (s *Store) LinkBillingCustomer(ctx context.Context, userID, customerID string) error {
	res, err := s.mdb.NewUpdate((*userModel)(nil)).
		Filter(bson.M{"_id": userID}).
		Set("billing_customer_id", customerID).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("entitle/mongo: link billing customer: %w", err)
	}
	if res.MatchedCount() == 0 {
		return entitle.ErrUserNotFound
	}
	return nil
}

func (s *Store) SetUserEntitlement(ctx context.Context, userID string, ent user.Entitlement) error {
	res, err := s.mdb.NewUpdate((*userModel)(nil)).
		Filter(bson.M{"_id": userID}).
		Set("sub_active", ent.SubActive).
		Set("billing_customer_id", ent.BillingCustomerID).
		Set("subscription_id", ent.SubscriptionID).
		Set("subscription_status", ent.SubscriptionStatus).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("entitle/mongo: set user entitlement: %w", err)
	}
	if res.MatchedCount() == 0 {
		return entitle.ErrUserNotFound
	}
	return nil
}

// ==================== Job Store ====================

func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("entitle/mongo: create job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	var m jobModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": jobID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, entitle.ErrJobNotFound
		}
		return nil, fmt.Errorf("entitle/mongo: get job: %w", err)
	}
	return fromJobModel(&m)
}

func (s *Store) FindRecentJobByOwnerTitle(ctx context.Context, ownerID, title string, since time.Time) (*job.Job, error) {
	var m jobModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{
			"owner_id":   ownerID,
			"title":      title,
			"created_at": bson.M{"$gt": since},
		}).
		Sort(bson.D{{Key: "created_at", Value: -1}}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, entitle.ErrJobNotFound
		}
		return nil, fmt.Errorf("entitle/mongo: find recent job: %w", err)
	}
	return fromJobModel(&m)
}

func (s *Store) ListJobsByOwner(ctx context.Context, ownerID string, opts job.ListOpts) ([]*job.Job, error) {
	var models []jobModel

	filter := bson.M{"owner_id": ownerID}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("entitle/mongo: list jobs: %w", err)
	}

	result := make([]*job.Job, len(models))
	for i := range models {
		j, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = j
	}
	return result, nil
}

func (s *Store) CountJobsByOwner(ctx context.Context, ownerID string) (int64, error) {
	count, err := s.mdb.Collection(colJobs).CountDocuments(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return 0, fmt.Errorf("entitle/mongo: count jobs: %w", err)
	}
	return count, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all entitle collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "billing_customer_id", Value: 1}}},
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
		colJobs: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "title", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}
