// internal/models/stakeholder.go
package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Stakeholder is both the authenticated account and the registered
// business record. Records are never hard-deleted; IsActive preserves
// history integrity.
type Stakeholder struct {
	BaseModel
	Email           string          `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash    string          `json:"-" gorm:"size:255;not null"`
	Role            StakeholderRole `json:"role" gorm:"type:varchar(20);not null;index"`
	BusinessName    string          `json:"business_name" gorm:"size:255;not null"`
	BusinessLicense string          `json:"business_license" gorm:"uniqueIndex;size:100"`
	Location        string          `json:"location" gorm:"size:255"`
	Certifications  []string        `json:"certifications" gorm:"serializer:json"`
	IsActive        bool            `json:"is_active" gorm:"default:true"`
	RegisteredAt    time.Time       `json:"registered_at"`
	LastActivity    *time.Time      `json:"last_activity"`
	LicenseKey      string          `json:"license_key" gorm:"uniqueIndex;size:32"`
	KeyNonce        int             `json:"-" gorm:"default:0"`

	// Relationships
	Products     []Product     `json:"products,omitempty" gorm:"foreignKey:OwnerID"`
	Transactions []Transaction `json:"transactions,omitempty" gorm:"foreignKey:BuyerID"`
}

func (s *Stakeholder) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = string(hashedPassword)
	return nil
}

func (s *Stakeholder) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(s.PasswordHash), []byte(password))
}

// FullyActive reports whether the record is usable for authorization:
// registered, active, and carrying a valid role.
func (s *Stakeholder) FullyActive() bool {
	return s.IsActive && s.Role.Valid()
}

// RegistrationRequest is the self-service path into the directory. An
// admin approval performs the same invariant checks as direct
// registration and creates the stakeholder in one transaction.
type RegistrationRequest struct {
	BaseModel
	Email           string          `json:"email" gorm:"size:255;not null;index"`
	PasswordHash    string          `json:"-" gorm:"size:255;not null"`
	Role            StakeholderRole `json:"role" gorm:"type:varchar(20);not null"`
	BusinessName    string          `json:"business_name" gorm:"size:255;not null"`
	BusinessLicense string          `json:"business_license" gorm:"size:100;index"`
	Location        string          `json:"location" gorm:"size:255"`
	Certifications  []string        `json:"certifications" gorm:"serializer:json"`
	Status          RequestStatus   `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	RejectionReason string          `json:"rejection_reason,omitempty" gorm:"type:text"`
	ReviewedBy      *uuid.UUID      `json:"reviewed_by" gorm:"type:uuid"`
	ReviewedAt      *time.Time      `json:"reviewed_at"`
	StakeholderID   *uuid.UUID      `json:"stakeholder_id" gorm:"type:uuid"`
}

// Partnership is an admin-set trade allowance for a pair outside the
// default stage adjacency. Direction matters: Seller may transact with
// Buyer, not the reverse.
type Partnership struct {
	BaseModel
	SellerID  uuid.UUID `json:"seller_id" gorm:"type:uuid;not null;uniqueIndex:idx_partnerships_pair"`
	BuyerID   uuid.UUID `json:"buyer_id" gorm:"type:uuid;not null;uniqueIndex:idx_partnerships_pair"`
	CreatedBy uuid.UUID `json:"created_by" gorm:"type:uuid;not null"`
}
