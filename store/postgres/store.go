package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	entitle "github.com/jobdeck/entitle"
	"github.com/jobdeck/entitle/id"
	"github.com/jobdeck/entitle/job"
	entitlestore "github.com/jobdeck/entitle/store"
	"github.com/jobdeck/entitle/user"
)

// compile-time interface check
var _ entitlestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("entitle/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("entitle/postgres: migration failed: %w", err)
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetUser(ctx context.Context, userID string) (*user.User, error) {
	m := new(userModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", userID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, entitle.ErrUserNotFound
		}
		return nil, err
	}
	return fromUserModel(m), nil
}

func (s *Store) GetUserByBillingCustomerID(ctx context.Context, customerID string) (*user.User, error) {
	if customerID == "" {
		return nil, entitle.ErrUserNotFound
	}
	m := new(userModel)
	err := s.pg.NewSelect(m).
		Where("billing_customer_id = $1", customerID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, entitle.ErrUserNotFound
		}
		return nil, err
	}
	return fromUserModel(m), nil
}

func (s *Store) LinkBillingCustomer(ctx context.Context, userID, customerID string) error {
	res, err := s.pg.NewUpdate((*userModel)(nil)).
		Set("billing_customer_id = $1", customerID).
		Set("updated_at = $2", now()).
		Where("id = $3", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return entitle.ErrUserNotFound
	}
	return nil
}

func (s *Store) SetUserEntitlement(ctx context.Context, userID string, ent user.Entitlement) error {
	res, err := s.pg.NewUpdate((*userModel)(nil)).
		Set("sub_active = $1", ent.SubActive).
		Set("billing_customer_id = $2", ent.BillingCustomerID).
		Set("subscription_id = $3", ent.SubscriptionID).
		Set("subscription_status = $4", ent.SubscriptionStatus).
		Set("updated_at = $5", now()).
		Where("id = $6", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return entitle.ErrUserNotFound
	}
	return nil
}

// ==================== Job Store ====================

func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m := new(jobModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", jobID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, entitle.ErrJobNotFound
		}
		return nil, err
	}
	return fromJobModel(m)
}

func (s *Store) FindRecentJobByOwnerTitle(ctx context.Context, ownerID, title string, since time.Time) (*job.Job, error) {
	m := new(jobModel)
	err := s.pg.NewSelect(m).
		Where("owner_id = $1", ownerID).
		Where("title = $2", title).
		Where("created_at > $3", since).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, entitle.ErrJobNotFound
		}
		return nil, err
	}
	return fromJobModel(m)
}

func (s *Store) ListJobsByOwner(ctx context.Context, ownerID string, opts job.ListOpts) ([]*job.Job, error) {
	var models []jobModel
	q := s.pg.NewSelect(&models).
		Where("owner_id = $1", ownerID)

	argIdx := 1
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	var total int64
	err := s.pg.NewRaw(`
		SELECT COUNT(*) FROM entitle_jobs WHERE owner_id = $1
	`, ownerID).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
