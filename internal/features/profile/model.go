package profile

import (
	"time"

	"go-hrflow/internal/features/approval"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EmployeeProfile is the directory entry of one employee together with the
// approval chain configured for their requests
type EmployeeProfile struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EmployeeID     string             `bson:"employee_id" json:"employee_id"`
	LoginID        string             `bson:"login_id" json:"login_id"`
	DisplayName    string             `bson:"display_name" json:"display_name"`
	Department     string             `bson:"department" json:"department"`
	Locale         string             `bson:"locale,omitempty" json:"locale,omitempty"`
	ApprovalMode   string             `bson:"approval_mode" json:"approval_mode"`
	ManagerLoginID string             `bson:"manager_login_id,omitempty" json:"manager_login_id,omitempty"`
	GMLoginID      string             `bson:"gm_login_id,omitempty" json:"gm_login_id,omitempty"`
	COOLoginID     string             `bson:"coo_login_id,omitempty" json:"coo_login_id,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// ProfileInput is the admin upsert payload
type ProfileInput struct {
	LoginID        string `json:"login_id" validate:"required,max=100"`
	DisplayName    string `json:"display_name" validate:"required,max=200"`
	Department     string `json:"department" validate:"max=200"`
	Locale         string `json:"locale" validate:"omitempty,oneof=en vi"`
	ApprovalMode   string `json:"approval_mode"`
	ManagerLoginID string `json:"manager_login_id" validate:"max=100"`
	GMLoginID      string `json:"gm_login_id" validate:"max=100"`
	COOLoginID     string `json:"coo_login_id" validate:"max=100"`
}

// ToApproval exposes the profile in the shape the approval engine consumes
func (p *EmployeeProfile) ToApproval() *approval.Profile {
	return &approval.Profile{
		EmployeeID:     p.EmployeeID,
		LoginID:        p.LoginID,
		DisplayName:    p.DisplayName,
		Department:     p.Department,
		Locale:         p.Locale,
		ApprovalMode:   p.ApprovalMode,
		ManagerLoginID: p.ManagerLoginID,
		GMLoginID:      p.GMLoginID,
		COOLoginID:     p.COOLoginID,
	}
}
