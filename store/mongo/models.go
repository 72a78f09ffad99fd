package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/jobdeck/entitle/id"
	"github.com/jobdeck/entitle/job"
	"github.com/jobdeck/entitle/types"
	"github.com/jobdeck/entitle/user"
)

// ==================== User models ====================

type userModel struct {
	grove.BaseModel `grove:"table:entitle_users"`

	ID                 string    `grove:"id,pk"               bson:"_id"`
	Email              string    `grove:"email"               bson:"email"`
	Role               string    `grove:"role"                bson:"role"`
	BillingCustomerID  string    `grove:"billing_customer_id" bson:"billing_customer_id"`
	SubscriptionID     string    `grove:"subscription_id"     bson:"subscription_id"`
	SubActive          bool      `grove:"sub_active"          bson:"sub_active"`
	SubscriptionStatus string    `grove:"subscription_status" bson:"subscription_status"`
	CreatedAt          time.Time `grove:"created_at"          bson:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at"          bson:"updated_at"`
}

func toUserModel(u *user.User) *userModel {
	return &userModel{
		ID:                 u.ID,
		Email:              u.Email,
		Role:               u.Role,
		BillingCustomerID:  u.BillingCustomerID,
		SubscriptionID:     u.SubscriptionID,
		SubActive:          u.SubActive,
		SubscriptionStatus: u.SubscriptionStatus,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func fromUserModel(m *userModel) *user.User {
	return &user.User{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 m.ID,
		Email:              m.Email,
		Role:               m.Role,
		BillingCustomerID:  m.BillingCustomerID,
		SubscriptionID:     m.SubscriptionID,
		SubActive:          m.SubActive,
		SubscriptionStatus: m.SubscriptionStatus,
	}
}

// ==================== Job models ====================

type jobModel struct {
	grove.BaseModel `grove:"table:entitle_jobs"`

	ID          string    `grove:"id,pk"       bson:"_id"`
	OwnerID     string    `grove:"owner_id"    bson:"owner_id"`
	Title       string    `grove:"title"       bson:"title"`
	Company     string    `grove:"company"     bson:"company"`
	Location    string    `grove:"location"    bson:"location"`
	Description string    `grove:"description" bson:"description"`
	Status      string    `grove:"status"      bson:"status"`
	CreatedAt   time.Time `grove:"created_at"  bson:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"  bson:"updated_at"`
}

func toJobModel(j *job.Job) *jobModel {
	return &jobModel{
		ID:          j.ID.String(),
		OwnerID:     j.OwnerID,
		Title:       j.Title,
		Company:     j.Company,
		Location:    j.Location,
		Description: j.Description,
		Status:      string(j.Status),
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	jobID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, err
	}

	return &job.Job{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          jobID,
		OwnerID:     m.OwnerID,
		Title:       m.Title,
		Company:     m.Company,
		Location:    m.Location,
		Description: m.Description,
		Status:      job.Status(m.Status),
	}, nil
}
