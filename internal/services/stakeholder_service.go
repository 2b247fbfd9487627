// internal/services/stakeholder_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/database"
	"github.com/agritrace/agritrace-backend/internal/models"
	"github.com/agritrace/agritrace-backend/internal/utils"
)

type StakeholderService struct {
	db            *gorm.DB
	notifications *NotificationService
}

func NewStakeholderService(db *gorm.DB, notifications *NotificationService) *StakeholderService {
	return &StakeholderService{
		db:            db,
		notifications: notifications,
	}
}

type RegisterStakeholderRequest struct {
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required,strong_password"`
	Role            string   `json:"role" validate:"required,stakeholder_role"`
	BusinessName    string   `json:"business_name" validate:"required,min=2,max=255"`
	BusinessLicense string   `json:"business_license" validate:"required,min=3,max=100"`
	Location        string   `json:"location" validate:"max=255"`
	Certifications  []string `json:"certifications,omitempty"`
}

type RegisterConsumerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,strong_password"`
	Name     string `json:"name" validate:"required,min=2,max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RejectRequestInput struct {
	Reason string `json:"reason" validate:"required"`
}

type PartnershipRequest struct {
	SellerID uuid.UUID `json:"seller_id" validate:"required"`
	BuyerID  uuid.UUID `json:"buyer_id" validate:"required"`
}

// LicenseKeyResult is a result value, not an error: an unknown key
// yields Valid=false.
type LicenseKeyResult struct {
	Valid        bool      `json:"valid"`
	OwnerID      uuid.UUID `json:"owner_id,omitempty"`
	Role         string    `json:"role,omitempty"`
	BusinessName string    `json:"business_name,omitempty"`
}

type DirectoryStatistics struct {
	TotalStakeholders int64            `json:"total_stakeholders"`
	ActiveStakeholders int64           `json:"active_stakeholders"`
	PendingRequests   int64            `json:"pending_requests"`
	ByRole            map[string]int64 `json:"by_role"`
}

// Register is the direct admin path into the directory.
func (s *StakeholderService) Register(adminID uuid.UUID, req *RegisterStakeholderRequest) (*models.Stakeholder, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, ErrValidationFailed("validation failed: %v", err)
	}

	if _, err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}

	role := models.StakeholderRole(req.Role)
	if role == models.RoleAdmin || role == models.RoleConsumer {
		return nil, ErrValidationFailed("role %q cannot be registered through the directory", req.Role)
	}

	var stakeholder *models.Stakeholder
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		created, err := s.createStakeholder(tx, req)
		if err != nil {
			return err
		}
		stakeholder = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Publish("stakeholder.registered", map[string]interface{}{
		"stakeholder_id": stakeholder.ID.String(),
		"role":           string(stakeholder.Role),
		"business_name":  stakeholder.BusinessName,
	})

	return stakeholder, nil
}

// createStakeholder performs the shared invariant checks and the insert.
// Callers wrap it in a transaction: the license-key index entry and the
// record are committed together or not at all.
func (s *StakeholderService) createStakeholder(tx *gorm.DB, req *RegisterStakeholderRequest) (*models.Stakeholder, error) {
	var count int64
	if err := tx.Model(&models.Stakeholder{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if count > 0 {
		return nil, ErrConflict("identity %s is already registered", req.Email)
	}

	if err := tx.Model(&models.Stakeholder{}).Where("business_license = ?", req.BusinessLicense).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if count > 0 {
		return nil, ErrConflict("business license %s is already registered", req.BusinessLicense)
	}

	now := time.Now()
	stakeholder := &models.Stakeholder{
		Email:           req.Email,
		Role:            models.StakeholderRole(req.Role),
		BusinessName:    req.BusinessName,
		BusinessLicense: req.BusinessLicense,
		Location:        req.Location,
		Certifications:  req.Certifications,
		IsActive:        true,
		RegisteredAt:    now,
	}
	if err := stakeholder.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	stakeholder.ID = uuid.New()
	stakeholder.LicenseKey = utils.GenerateLicenseKey(stakeholder.ID, stakeholder.KeyNonce)

	if err := tx.Create(stakeholder).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict("identity or business license already registered")
		}
		return nil, fmt.Errorf("failed to create stakeholder: %w", err)
	}

	return stakeholder, nil
}

// RegisterConsumer creates a purchase-only account. No business license
// or admin gate is involved.
func (s *StakeholderService) RegisterConsumer(req *RegisterConsumerRequest) (*models.Stakeholder, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, ErrValidationFailed("validation failed: %v", err)
	}

	var count int64
	if err := s.db.Model(&models.Stakeholder{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if count > 0 {
		return nil, ErrConflict("identity %s is already registered", req.Email)
	}

	consumer := &models.Stakeholder{
		Email:           req.Email,
		Role:            models.RoleConsumer,
		BusinessName:    req.Name,
		BusinessLicense: "CONSUMER-" + uuid.NewString(),
		IsActive:        true,
		RegisteredAt:    time.Now(),
	}
	if err := consumer.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	consumer.ID = uuid.New()
	consumer.LicenseKey = utils.GenerateLicenseKey(consumer.ID, 0)

	if err := s.db.Create(consumer).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict("identity %s is already registered", req.Email)
		}
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	return consumer, nil
}

// Authenticate verifies credentials for the login flow.
func (s *StakeholderService) Authenticate(req *LoginRequest) (*models.Stakeholder, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, ErrValidationFailed("validation failed: %v", err)
	}

	var stakeholder models.Stakeholder
	if err := s.db.Where("email = ?", req.Email).First(&stakeholder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized("invalid credentials")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := stakeholder.CheckPassword(req.Password); err != nil {
		return nil, ErrUnauthorized("invalid credentials")
	}

	if !stakeholder.IsActive {
		return nil, ErrUnauthorized("account is deactivated")
	}

	return &stakeholder, nil
}

// SubmitRequest files a self-service registration for admin review.
func (s *StakeholderService) SubmitRequest(req *RegisterStakeholderRequest) (*models.RegistrationRequest, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, ErrValidationFailed("validation failed: %v", err)
	}

	role := models.StakeholderRole(req.Role)
	if role == models.RoleAdmin || role == models.RoleConsumer {
		return nil, ErrValidationFailed("role %q cannot be requested", req.Role)
	}

	var count int64
	if err := s.db.Model(&models.Stakeholder{}).
		Where("email = ? OR business_license = ?", req.Email, req.BusinessLicense).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if count > 0 {
		return nil, ErrConflict("identity or business license already registered")
	}

	if err := s.db.Model(&models.RegistrationRequest{}).
		Where("(email = ? OR business_license = ?) AND status = ?",
			req.Email, req.BusinessLicense, models.RequestStatusPending).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if count > 0 {
		return nil, ErrConflict("a pending request already exists for this identity or license")
	}

	request := &models.RegistrationRequest{
		Email:           req.Email,
		Role:            role,
		BusinessName:    req.BusinessName,
		BusinessLicense: req.BusinessLicense,
		Location:        req.Location,
		Certifications:  req.Certifications,
		Status:          models.RequestStatusPending,
	}

	stakeholder := models.Stakeholder{}
	if err := stakeholder.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	request.PasswordHash = stakeholder.PasswordHash

	if err := s.db.Create(request).Error; err != nil {
		return nil, fmt.Errorf("failed to create registration request: %w", err)
	}

	s.notifications.Publish("stakeholder.request_submitted", map[string]interface{}{
		"request_id":    request.ID.String(),
		"role":          string(request.Role),
		"business_name": request.BusinessName,
	})

	return request, nil
}

// ApproveRequest creates the stakeholder under the same invariant checks
// as direct registration, atomically with the status flip.
func (s *StakeholderService) ApproveRequest(adminID, requestID uuid.UUID) (*models.Stakeholder, error) {
	if _, err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}

	var stakeholder *models.Stakeholder
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var request models.RegistrationRequest
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound("registration request %s not found", requestID)
			}
			return fmt.Errorf("database error: %w", err)
		}

		if request.Status != models.RequestStatusPending {
			return ErrConflict("registration request already %s", request.Status)
		}

		var count int64
		if err := tx.Model(&models.Stakeholder{}).
			Where("email = ? OR business_license = ?", request.Email, request.BusinessLicense).
			Count(&count).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if count > 0 {
			return ErrConflict("identity or business license registered since the request was filed")
		}

		now := time.Now()
		created := &models.Stakeholder{
			Email:           request.Email,
			PasswordHash:    request.PasswordHash,
			Role:            request.Role,
			BusinessName:    request.BusinessName,
			BusinessLicense: request.BusinessLicense,
			Location:        request.Location,
			Certifications:  request.Certifications,
			IsActive:        true,
			RegisteredAt:    now,
		}
		created.ID = uuid.New()
		created.LicenseKey = utils.GenerateLicenseKey(created.ID, 0)

		if err := tx.Create(created).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrConflict("identity or business license already registered")
			}
			return fmt.Errorf("failed to create stakeholder: %w", err)
		}

		request.Status = models.RequestStatusApproved
		request.ReviewedBy = &adminID
		request.ReviewedAt = &now
		request.StakeholderID = &created.ID
		if err := tx.Save(&request).Error; err != nil {
			return fmt.Errorf("failed to update registration request: %w", err)
		}

		stakeholder = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Publish("stakeholder.request_approved", map[string]interface{}{
		"request_id":     requestID.String(),
		"stakeholder_id": stakeholder.ID.String(),
	})

	return stakeholder, nil
}

func (s *StakeholderService) RejectRequest(adminID, requestID uuid.UUID, input *RejectRequestInput) (*models.RegistrationRequest, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, ErrValidationFailed("validation failed: %v", err)
	}

	if _, err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}

	var request models.RegistrationRequest
	if err := s.db.First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("registration request %s not found", requestID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if request.Status != models.RequestStatusPending {
		return nil, ErrConflict("registration request already %s", request.Status)
	}

	now := time.Now()
	request.Status = models.RequestStatusRejected
	request.RejectionReason = input.Reason
	request.ReviewedBy = &adminID
	request.ReviewedAt = &now

	if err := s.db.Save(&request).Error; err != nil {
		return nil, fmt.Errorf("failed to update registration request: %w", err)
	}

	return &request, nil
}

func (s *StakeholderService) ListPendingRequests(params utils.PaginationParams) ([]models.RegistrationRequest, int64, error) {
	query := s.db.Model(&models.RegistrationRequest{}).
		Where("status = ?", models.RequestStatusPending)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at"})
	query = utils.ApplyPagination(query, params)

	var requests []models.RegistrationRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch requests: %w", err)
	}

	return requests, total, nil
}

// Deactivate fails with Conflict if the record is already inactive.
func (s *StakeholderService) Deactivate(adminID, stakeholderID uuid.UUID) (*models.Stakeholder, error) {
	return s.setActive(adminID, stakeholderID, false)
}

// Reactivate fails with Conflict if the record is already active.
func (s *StakeholderService) Reactivate(adminID, stakeholderID uuid.UUID) (*models.Stakeholder, error) {
	return s.setActive(adminID, stakeholderID, true)
}

func (s *StakeholderService) setActive(adminID, stakeholderID uuid.UUID, active bool) (*models.Stakeholder, error) {
	if _, err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}

	var stakeholder models.Stakeholder
	if err := s.db.First(&stakeholder, "id = ?", stakeholderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("stakeholder %s not found", stakeholderID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if stakeholder.IsActive == active {
		if active {
			return nil, ErrConflict("stakeholder is already active")
		}
		return nil, ErrConflict("stakeholder is already deactivated")
	}

	stakeholder.IsActive = active
	if err := s.db.Save(&stakeholder).Error; err != nil {
		return nil, fmt.Errorf("failed to update stakeholder: %w", err)
	}

	event := "stakeholder.deactivated"
	if active {
		event = "stakeholder.reactivated"
	}
	s.notifications.Publish(event, map[string]interface{}{
		"stakeholder_id": stakeholder.ID.String(),
	})

	return &stakeholder, nil
}

// RegenerateLicenseKey bumps the key nonce and replaces the key in one
// write, so the prior key is invalidated atomically.
func (s *StakeholderService) RegenerateLicenseKey(adminID, stakeholderID uuid.UUID) (*models.Stakeholder, error) {
	if _, err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}

	var stakeholder models.Stakeholder
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.First(&stakeholder, "id = ?", stakeholderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound("stakeholder %s not found", stakeholderID)
			}
			return fmt.Errorf("database error: %w", err)
		}

		stakeholder.KeyNonce++
		stakeholder.LicenseKey = utils.GenerateLicenseKey(stakeholder.ID, stakeholder.KeyNonce)

		if err := tx.Save(&stakeholder).Error; err != nil {
			return fmt.Errorf("failed to update license key: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &stakeholder, nil
}

// VerifyLicenseKey resolves a key to its owner. Unknown or revoked keys
// are a valid=false result, not an error.
func (s *StakeholderService) VerifyLicenseKey(key string) (*LicenseKeyResult, error) {
	if !utils.ValidLicenseKeyFormat(key) {
		return &LicenseKeyResult{Valid: false}, nil
	}

	var stakeholder models.Stakeholder
	if err := s.db.Where("license_key = ?", key).First(&stakeholder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &LicenseKeyResult{Valid: false}, nil
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !stakeholder.IsActive {
		return &LicenseKeyResult{Valid: false}, nil
	}

	return &LicenseKeyResult{
		Valid:        true,
		OwnerID:      stakeholder.ID,
		Role:         string(stakeholder.Role),
		BusinessName: stakeholder.BusinessName,
	}, nil
}

func (s *StakeholderService) Get(id uuid.UUID) (*models.Stakeholder, error) {
	var stakeholder models.Stakeholder
	if err := s.db.First(&stakeholder, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("stakeholder %s not found", id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &stakeholder, nil
}

func (s *StakeholderService) HasRole(id uuid.UUID, role models.StakeholderRole) (bool, error) {
	stakeholder, err := s.Get(id)
	if err != nil {
		return false, err
	}
	return stakeholder.Role == role, nil
}

func (s *StakeholderService) IsFullyActive(id uuid.UUID) (bool, error) {
	stakeholder, err := s.Get(id)
	if err != nil {
		return false, err
	}
	return stakeholder.FullyActive(), nil
}

// CanTransact allows the default stage adjacency (farmer -> processor ->
// distributor -> retailer) or an explicit admin-set partnership.
func (s *StakeholderService) CanTransact(sellerID, buyerID uuid.UUID) (bool, error) {
	seller, err := s.Get(sellerID)
	if err != nil {
		return false, err
	}
	buyer, err := s.Get(buyerID)
	if err != nil {
		return false, err
	}

	if !seller.FullyActive() || !buyer.FullyActive() {
		return false, nil
	}

	if next, ok := models.NextStageRole(seller.Role); ok && next == buyer.Role {
		return true, nil
	}

	var count int64
	if err := s.db.Model(&models.Partnership{}).
		Where("seller_id = ? AND buyer_id = ?", sellerID, buyerID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}

	return count > 0, nil
}

func (s *StakeholderService) AddPartnership(adminID uuid.UUID, req *PartnershipRequest) (*models.Partnership, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, ErrValidationFailed("validation failed: %v", err)
	}

	if _, err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}

	if req.SellerID == req.BuyerID {
		return nil, ErrValidationFailed("partnership requires two distinct parties")
	}

	for _, id := range []uuid.UUID{req.SellerID, req.BuyerID} {
		active, err := s.IsFullyActive(id)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, ErrValidationFailed("stakeholder %s is not active", id)
		}
	}

	partnership := &models.Partnership{
		SellerID:  req.SellerID,
		BuyerID:   req.BuyerID,
		CreatedBy: adminID,
	}
	if err := s.db.Create(partnership).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict("partnership already exists")
		}
		return nil, fmt.Errorf("failed to create partnership: %w", err)
	}

	return partnership, nil
}

func (s *StakeholderService) GetStatistics() (*DirectoryStatistics, error) {
	stats := &DirectoryStatistics{ByRole: make(map[string]int64)}

	if err := s.db.Model(&models.Stakeholder{}).Count(&stats.TotalStakeholders).Error; err != nil {
		return nil, fmt.Errorf("failed to count stakeholders: %w", err)
	}
	if err := s.db.Model(&models.Stakeholder{}).Where("is_active = ?", true).
		Count(&stats.ActiveStakeholders).Error; err != nil {
		return nil, fmt.Errorf("failed to count active stakeholders: %w", err)
	}
	if err := s.db.Model(&models.RegistrationRequest{}).
		Where("status = ?", models.RequestStatusPending).
		Count(&stats.PendingRequests).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending requests: %w", err)
	}

	type roleCount struct {
		Role  string
		Count int64
	}
	var counts []roleCount
	if err := s.db.Model(&models.Stakeholder{}).
		Select("role, count(*) as count").
		Group("role").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count roles: %w", err)
	}
	for _, rc := range counts {
		stats.ByRole[rc.Role] = rc.Count
	}

	return stats, nil
}

// TouchActivity updates the actor's last-activity timestamp. Failures
// are swallowed: activity tracking never fails an operation.
func (s *StakeholderService) TouchActivity(id uuid.UUID) {
	now := time.Now()
	s.db.Model(&models.Stakeholder{}).Where("id = ?", id).Update("last_activity", &now)
}

// requireAdmin loads the actor and confirms an active admin role.
func (s *StakeholderService) requireAdmin(actorID uuid.UUID) (*models.Stakeholder, error) {
	actor, err := s.Get(actorID)
	if err != nil {
		return nil, ErrUnauthorized("caller is not registered")
	}
	if actor.Role != models.RoleAdmin || !actor.IsActive {
		return nil, ErrUnauthorized("admin role required")
	}
	return actor, nil
}

// requireActiveRole loads the actor and confirms it is fully active and
// holds the given role.
func (s *StakeholderService) requireActiveRole(actorID uuid.UUID, role models.StakeholderRole) (*models.Stakeholder, error) {
	actor, err := s.Get(actorID)
	if err != nil {
		return nil, ErrUnauthorized("caller is not registered")
	}
	if !actor.FullyActive() {
		return nil, ErrUnauthorized("caller account is not active")
	}
	if actor.Role != role {
		return nil, ErrUnauthorized("%s role required", role)
	}
	return actor, nil
}
