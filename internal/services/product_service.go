// internal/services/product_service.go
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

type ProductService struct {
	db            *gorm.DB
	stakeholders  *StakeholderService
	notifications *NotificationService
}

func NewProductService(db *gorm.DB, stakeholders *StakeholderService, notifications *NotificationService) *ProductService {
	return &ProductService{
		db:            db,
		stakeholders:  stakeholders,
		notifications: notifications,
	}
}

type CreateBatchRequest struct {
	Name           string  `json:"name" validate:"required,min=2,max=255"`
	Description    string  `json:"description" validate:"max=2000"`
	Quantity       int     `json:"quantity" validate:"required,gt=0"`
	BasePrice      float64 `json:"base_price" validate:"required,gt=0"`
	OriginLocation string  `json:"origin_location" validate:"required,max=255"`
	Data           string  `json:"data" validate:"required"`
}

type ProductSearchParams struct {
	utils.PaginationParams
	OwnerID    *uuid.UUID           `json:"owner_id,omitempty"`
	Stage      *models.ProductStage `json:"stage,omitempty"`
	ActiveOnly bool                 `json:"active_only"`
}

// ProductVerification is the hash-chain check result. Tampering is a
// result value, never an error: callers explicitly want to learn about
// compromised data.
type ProductVerification struct {
	ProductID     uuid.UUID `json:"product_id"`
	BatchNumber   string    `json:"batch_number"`
	IsValid       bool      `json:"is_valid"`
	Code          ErrorCode `json:"code,omitempty"`
	StagesChecked int       `json:"stages_checked"`
	Details       []string  `json:"details"`
}

// CreateBatch creates a product at FARM with its first stage record in
// one transaction.
func (s *ProductService) CreateBatch(actorID uuid.UUID, req *CreateBatchRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, ErrValidationFailed("validation failed: %v", err)
	}

	farmer, err := s.stakeholders.requireActiveRole(actorID, models.RoleFarmer)
	if err != nil {
		return nil, err
	}

	batchNumber, err := utils.GenerateBatchNumber()
	if err != nil {
		return nil, fmt.Errorf("failed to generate batch number: %w", err)
	}

	dataHash := utils.HashPayload(req.Data)
	now := time.Now()

	product := &models.Product{
		Name:           req.Name,
		Description:    req.Description,
		BatchNumber:    batchNumber,
		Quantity:       req.Quantity,
		BasePrice:      req.BasePrice,
		OriginLocation: req.OriginLocation,
		OwnerID:        farmer.ID,
		FarmerID:       farmer.ID,
		CurrentStage:   models.StageFarm,
		DataHash:       dataHash,
		IsActive:       true,
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrConflict("batch number %s already exists", batchNumber)
			}
			return fmt.Errorf("failed to create product: %w", err)
		}

		record := &models.StageRecord{
			ProductID:  product.ID,
			Stage:      models.StageFarm,
			Sequence:   0,
			ActorID:    farmer.ID,
			Data:       req.Data,
			DataHash:   dataHash,
			RecordedAt: now,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to create stage record: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.stakeholders.TouchActivity(farmer.ID)
	s.notifications.Publish("product.created", map[string]interface{}{
		"product_id":   product.ID.String(),
		"batch_number": product.BatchNumber,
		"farmer_id":    farmer.ID.String(),
	})

	return product, nil
}

// UpdateStage advances the batch exactly one stage. The caller must hold
// the role the target stage authorizes, and the write is guarded on the
// stored current_stage so concurrent attempts cannot both pass the
// current+1 check.
func (s *ProductService) UpdateStage(actorID, productID uuid.UUID, target models.ProductStage, payload string) (*models.Product, error) {
	if payload == "" {
		return nil, ErrValidationFailed("stage payload must not be empty")
	}
	if !target.Valid() {
		return nil, ErrValidationFailed("unknown stage %d", int(target))
	}

	actor, err := s.stakeholders.Get(actorID)
	if err != nil {
		return nil, ErrUnauthorized("caller is not registered")
	}
	if !actor.FullyActive() {
		return nil, ErrUnauthorized("caller account is not active")
	}

	if role, required := models.RoleForStage(target); required && actor.Role != role {
		return nil, ErrUnauthorized("stage %s requires the %s role", target, role)
	}

	var product models.Product
	if err := s.db.First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("product %s not found", productID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !product.IsActive {
		return nil, ErrValidationFailed("product %s is deactivated", product.BatchNumber)
	}

	if target != product.CurrentStage+1 {
		return nil, ErrInvalidTransition("cannot move from %s to %s: stages advance one at a time",
			product.CurrentStage, target)
	}

	dataHash := utils.HashPayload(payload)
	now := time.Now()

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		// Optimistic guard: only one of N concurrent attempts sees
		// rows_affected == 1.
		res := tx.Model(&models.Product{}).
			Where("id = ? AND current_stage = ?", productID, product.CurrentStage).
			Updates(map[string]interface{}{
				"current_stage": target,
				"data_hash":     dataHash,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update product stage: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition("product stage changed concurrently")
		}

		record := &models.StageRecord{
			ProductID:  productID,
			Stage:      target,
			Sequence:   int(target),
			ActorID:    actor.ID,
			Data:       payload,
			DataHash:   dataHash,
			RecordedAt: now,
		}
		if err := tx.Create(record).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrInvalidTransition("stage %s was already recorded", target)
			}
			return fmt.Errorf("failed to create stage record: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	product.CurrentStage = target
	product.DataHash = dataHash

	s.stakeholders.TouchActivity(actor.ID)
	s.notifications.Publish("product.stage_advanced", map[string]interface{}{
		"product_id":   product.ID.String(),
		"batch_number": product.BatchNumber,
		"stage":        target.String(),
		"actor_id":     actor.ID.String(),
	})

	return &product, nil
}

// VerifyProduct recomputes every recorded stage hash and compares it
// against the stored value. Pure read: safe to call concurrently and
// repeatedly.
func (s *ProductService) VerifyProduct(productID uuid.UUID) (*ProductVerification, error) {
	var product models.Product
	if err := s.db.First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("product %s not found", productID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	var records []models.StageRecord
	if err := s.db.Where("product_id = ?", productID).
		Order("sequence asc").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch stage records: %w", err)
	}

	result := &ProductVerification{
		ProductID:   product.ID,
		BatchNumber: product.BatchNumber,
		IsValid:     true,
	}

	for _, record := range records {
		if record.Stage > product.CurrentStage {
			continue
		}
		result.StagesChecked++
		if utils.HashPayload(record.Data) != record.DataHash {
			result.IsValid = false
			result.Details = append(result.Details,
				fmt.Sprintf("stage %s data does not match its recorded hash", record.Stage))
		}
	}

	if result.IsValid {
		result.Details = append(result.Details,
			fmt.Sprintf("all %d recorded stages verified", result.StagesChecked))
	} else {
		result.Code = CodeIntegrityViolation
	}

	return result, nil
}

func (s *ProductService) Get(productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("product %s not found", productID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &product, nil
}

func (s *ProductService) GetByBatchNumber(batchNumber string) (*models.Product, error) {
	var product models.Product
	if err := s.db.Where("batch_number = ?", batchNumber).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("batch %s not found", batchNumber)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &product, nil
}

func (s *ProductService) GetStageData(productID uuid.UUID, stage models.ProductStage) (*models.StageRecord, error) {
	var record models.StageRecord
	if err := s.db.Where("product_id = ? AND stage = ?", productID, stage).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("no record for stage %s on product %s", stage, productID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &record, nil
}

// GetJourney returns the ordered stage history with actor info.
func (s *ProductService) GetJourney(productID uuid.UUID) ([]models.StageRecord, error) {
	if _, err := s.Get(productID); err != nil {
		return nil, err
	}

	var records []models.StageRecord
	if err := s.db.Preload("Actor").
		Where("product_id = ?", productID).
		Order("sequence asc").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch journey: %w", err)
	}
	return records, nil
}

func (s *ProductService) ListProducts(params ProductSearchParams) ([]models.Product, int64, error) {
	query := s.db.Model(&models.Product{})

	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.Stage != nil {
		query = query.Where("current_stage = ?", *params.Stage)
	}
	if params.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if params.Search != "" {
		query = query.Where("name LIKE ?", "%"+params.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query = utils.ApplySort(query, params.PaginationParams, []string{"created_at", "name", "current_stage"})
	query = utils.ApplyPagination(query, params.PaginationParams)

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}

	return products, total, nil
}

// DeactivateProduct soft-deletes: the batch drops out of active counts
// but its history stays verifiable. Only the originating farmer may do
// this.
func (s *ProductService) DeactivateProduct(actorID, productID uuid.UUID) (*models.Product, error) {
	actor, err := s.stakeholders.requireActiveRole(actorID, models.RoleFarmer)
	if err != nil {
		return nil, err
	}

	product, err := s.Get(productID)
	if err != nil {
		return nil, err
	}

	if product.FarmerID != actor.ID {
		return nil, ErrUnauthorized("only the originating farmer may deactivate this batch")
	}

	if !product.IsActive {
		return nil, ErrConflict("product is already deactivated")
	}

	product.IsActive = false
	product.IsListed = false
	if err := s.db.Save(product).Error; err != nil {
		return nil, fmt.Errorf("failed to deactivate product: %w", err)
	}

	s.notifications.Publish("product.deactivated", map[string]interface{}{
		"product_id":   product.ID.String(),
		"batch_number": product.BatchNumber,
	})

	return product, nil
}
