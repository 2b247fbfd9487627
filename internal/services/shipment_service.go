// internal/services/shipment_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/cache"
	"github.com/agritrace/agritrace-backend/internal/database"
	"github.com/agritrace/agritrace-backend/internal/models"
	"github.com/agritrace/agritrace-backend/internal/utils"
)

type ShipmentService struct {
	db            *gorm.DB
	stakeholders  *StakeholderService
	cache         *cache.Cache
	notifications *NotificationService
}

func NewShipmentService(db *gorm.DB, stakeholders *StakeholderService, c *cache.Cache, notifications *NotificationService) *ShipmentService {
	return &ShipmentService{
		db:            db,
		stakeholders:  stakeholders,
		cache:         c,
		notifications: notifications,
	}
}

type CreateShipmentRequest struct {
	ProductID     uuid.UUID  `json:"product_id" validate:"required"`
	ReceiverID    uuid.UUID  `json:"receiver_id" validate:"required"`
	ShipperID     *uuid.UUID `json:"shipper_id,omitempty"`
	TransportMode string     `json:"transport_mode" validate:"transport_mode"`
	Location      string     `json:"location" validate:"max=255"`
}

type StatusUpdateRequest struct {
	Status       models.ShipmentStatus `json:"status" validate:"required"`
	TrackingInfo string                `json:"tracking_info" validate:"max=2000"`
	Location     string                `json:"location" validate:"max=255"`
}

// CreateShipment opens custody tracking for a product past FARM. The
// shipment starts in PREPARING with its creation logged as the first
// update row.
func (s *ShipmentService) CreateShipment(actorID uuid.UUID, req *CreateShipmentRequest) (*models.Shipment, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, ErrValidationFailed("validation failed: %v", err)
	}

	sender, err := s.stakeholders.Get(actorID)
	if err != nil {
		return nil, ErrUnauthorized("caller is not registered")
	}
	if !sender.FullyActive() {
		return nil, ErrUnauthorized("caller account is not active")
	}

	var product models.Product
	if err := s.db.First(&product, "id = ?", req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("product %s not found", req.ProductID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !product.IsActive {
		return nil, ErrValidationFailed("product %s is deactivated", product.BatchNumber)
	}

	switch product.CurrentStage {
	case models.StageProcessing, models.StageDistribution, models.StageRetail:
	default:
		return nil, ErrValidationFailed("product at stage %s cannot be shipped", product.CurrentStage)
	}

	if product.OwnerID != sender.ID {
		return nil, ErrUnauthorized("only the product owner may create a shipment")
	}

	if req.ReceiverID == sender.ID {
		return nil, ErrValidationFailed("sender and receiver must be distinct")
	}

	receiverActive, err := s.stakeholders.IsFullyActive(req.ReceiverID)
	if err != nil {
		return nil, err
	}
	if !receiverActive {
		return nil, ErrValidationFailed("receiver is not an active stakeholder")
	}

	if req.ShipperID != nil {
		isShipper, err := s.stakeholders.HasRole(*req.ShipperID, models.RoleShipper)
		if err != nil {
			return nil, err
		}
		if !isShipper {
			return nil, ErrValidationFailed("designated shipper does not hold the shipper role")
		}
	}

	if existing, err := s.ActiveShipment(req.ProductID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrConflict("product already has an active shipment %s", existing.TrackingNumber)
	}

	trackingNumber, err := utils.GenerateTrackingNumber()
	if err != nil {
		return nil, fmt.Errorf("failed to generate tracking number: %w", err)
	}

	now := time.Now()
	shipment := &models.Shipment{
		ProductID:      req.ProductID,
		SenderID:       sender.ID,
		ReceiverID:     req.ReceiverID,
		ShipperID:      req.ShipperID,
		TrackingNumber: trackingNumber,
		TransportMode:  req.TransportMode,
		Status:         models.ShipmentStatusPreparing,
		LastUpdated:    now,
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(shipment).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrConflict("tracking number %s already exists", trackingNumber)
			}
			return fmt.Errorf("failed to create shipment: %w", err)
		}

		update := &models.ShipmentUpdate{
			ShipmentID:   shipment.ID,
			Status:       models.ShipmentStatusPreparing,
			ActorID:      sender.ID,
			TrackingInfo: "Shipment created",
			Location:     req.Location,
			RecordedAt:   now,
		}
		if err := tx.Create(update).Error; err != nil {
			return fmt.Errorf("failed to create shipment update: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.stakeholders.TouchActivity(sender.ID)
	s.notifications.Publish("shipment.created", map[string]interface{}{
		"shipment_id":     shipment.ID.String(),
		"tracking_number": shipment.TrackingNumber,
		"product_id":      shipment.ProductID.String(),
	})

	return shipment, nil
}

// UpdateStatus validates the custody edge and appends to the update log
// in one transaction. The write is guarded on the stored status so two
// concurrent moves cannot both pass the edge check.
func (s *ShipmentService) UpdateStatus(actorID, shipmentID uuid.UUID, req *StatusUpdateRequest) (*models.Shipment, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, ErrValidationFailed("validation failed: %v", err)
	}

	shipment, err := s.Get(shipmentID)
	if err != nil {
		return nil, err
	}

	if !models.CanTransitionShipment(shipment.Status, req.Status) {
		return nil, ErrInvalidTransition("shipment cannot move from %s to %s", shipment.Status, req.Status)
	}

	if err := s.authorizeStatusChange(actorID, shipment, req.Status); err != nil {
		return nil, err
	}

	now := time.Now()
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		res := tx.Model(&models.Shipment{}).
			Where("id = ? AND status = ?", shipmentID, shipment.Status).
			Updates(map[string]interface{}{
				"status":       req.Status,
				"last_updated": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update shipment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition("shipment status changed concurrently")
		}

		info := req.TrackingInfo
		if info == "" {
			info = defaultTrackingInfo(req.Status)
		}
		update := &models.ShipmentUpdate{
			ShipmentID:   shipmentID,
			Status:       req.Status,
			ActorID:      actorID,
			TrackingInfo: info,
			Location:     req.Location,
			RecordedAt:   now,
		}
		if err := tx.Create(update).Error; err != nil {
			return fmt.Errorf("failed to create shipment update: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	shipment.Status = req.Status
	shipment.LastUpdated = now

	s.cache.Invalidate(cache.TrackingKey(shipment.TrackingNumber))
	s.stakeholders.TouchActivity(actorID)
	s.notifications.Publish("shipment.status_changed", map[string]interface{}{
		"shipment_id":     shipment.ID.String(),
		"tracking_number": shipment.TrackingNumber,
		"status":          string(req.Status),
	})

	return shipment, nil
}

// authorizeStatusChange maps each target state to the parties allowed
// to move into it.
func (s *ShipmentService) authorizeStatusChange(actorID uuid.UUID, shipment *models.Shipment, target models.ShipmentStatus) error {
	actor, err := s.stakeholders.Get(actorID)
	if err != nil {
		return ErrUnauthorized("caller is not registered")
	}
	if !actor.FullyActive() {
		return ErrUnauthorized("caller account is not active")
	}

	isSender := actorID == shipment.SenderID
	isReceiver := actorID == shipment.ReceiverID
	isShipper := shipment.ShipperID != nil && actorID == *shipment.ShipperID

	switch target {
	case models.ShipmentStatusVerified:
		if !isReceiver {
			return ErrUnauthorized("only the receiver may confirm delivery")
		}
	case models.ShipmentStatusCancelled:
		if !isSender && !isShipper {
			return ErrUnauthorized("only the sender or shipper may cancel")
		}
	default:
		if !isSender && !isShipper {
			return ErrUnauthorized("only the sender or shipper may update this shipment")
		}
	}

	return nil
}

func defaultTrackingInfo(status models.ShipmentStatus) string {
	switch status {
	case models.ShipmentStatusShipped:
		return "Shipment picked up"
	case models.ShipmentStatusDelivered:
		return "Shipment delivered"
	case models.ShipmentStatusVerified:
		return "Delivery confirmed by receiver"
	case models.ShipmentStatusCancelled:
		return "Shipment cancelled"
	case models.ShipmentStatusUnableToDeliver:
		return "Unable to deliver"
	}
	return "Status updated"
}

// UpdateLocation appends a log row at the current status without moving
// the custody state.
func (s *ShipmentService) UpdateLocation(actorID, shipmentID uuid.UUID, location, info string) (*models.ShipmentUpdate, error) {
	if location == "" {
		return nil, ErrValidationFailed("location must not be empty")
	}

	shipment, err := s.Get(shipmentID)
	if err != nil {
		return nil, err
	}

	if shipment.Status.Terminal() {
		return nil, ErrInvalidTransition("shipment %s is already %s", shipment.TrackingNumber, shipment.Status)
	}

	if err := s.authorizeStatusChange(actorID, shipment, shipment.Status); err != nil {
		return nil, err
	}

	update := &models.ShipmentUpdate{
		ShipmentID:   shipmentID,
		Status:       shipment.Status,
		ActorID:      actorID,
		TrackingInfo: info,
		Location:     location,
		RecordedAt:   time.Now(),
	}
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(update).Error; err != nil {
			return fmt.Errorf("failed to create shipment update: %w", err)
		}
		if err := tx.Model(&models.Shipment{}).Where("id = ?", shipmentID).
			Update("last_updated", update.RecordedAt).Error; err != nil {
			return fmt.Errorf("failed to touch shipment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return update, nil
}

// PickupShipment moves PREPARING -> SHIPPED.
func (s *ShipmentService) PickupShipment(actorID, shipmentID uuid.UUID, location string) (*models.Shipment, error) {
	return s.UpdateStatus(actorID, shipmentID, &StatusUpdateRequest{
		Status:   models.ShipmentStatusShipped,
		Location: location,
	})
}

// MarkDelivered moves SHIPPED -> DELIVERED.
func (s *ShipmentService) MarkDelivered(actorID, shipmentID uuid.UUID, location string) (*models.Shipment, error) {
	return s.UpdateStatus(actorID, shipmentID, &StatusUpdateRequest{
		Status:   models.ShipmentStatusDelivered,
		Location: location,
	})
}

// ConfirmDelivery is the receiver-only DELIVERED -> VERIFIED move.
func (s *ShipmentService) ConfirmDelivery(actorID, shipmentID uuid.UUID) (*models.Shipment, error) {
	return s.UpdateStatus(actorID, shipmentID, &StatusUpdateRequest{
		Status: models.ShipmentStatusVerified,
	})
}

// Cancel ends the shipment from PREPARING (CANCELLED) or SHIPPED
// (UNABLE_TO_DELIVER). Any other state is an invalid transition.
func (s *ShipmentService) Cancel(actorID, shipmentID uuid.UUID, reason string) (*models.Shipment, error) {
	if reason == "" {
		return nil, ErrValidationFailed("cancellation reason must not be empty")
	}

	shipment, err := s.Get(shipmentID)
	if err != nil {
		return nil, err
	}

	var target models.ShipmentStatus
	switch shipment.Status {
	case models.ShipmentStatusPreparing:
		target = models.ShipmentStatusCancelled
	case models.ShipmentStatusShipped:
		target = models.ShipmentStatusUnableToDeliver
	default:
		return nil, ErrInvalidTransition("shipment in state %s cannot be cancelled", shipment.Status)
	}

	return s.UpdateStatus(actorID, shipmentID, &StatusUpdateRequest{
		Status:       target,
		TrackingInfo: reason,
	})
}

func (s *ShipmentService) Get(shipmentID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := s.db.First(&shipment, "id = ?", shipmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("shipment %s not found", shipmentID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &shipment, nil
}

// GetHistory returns the ordered custody log.
func (s *ShipmentService) GetHistory(shipmentID uuid.UUID) ([]models.ShipmentUpdate, error) {
	if _, err := s.Get(shipmentID); err != nil {
		return nil, err
	}

	var updates []models.ShipmentUpdate
	if err := s.db.Where("shipment_id = ?", shipmentID).
		Order("recorded_at asc, created_at asc").
		Find(&updates).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch shipment history: %w", err)
	}
	return updates, nil
}

// TrackByNumber resolves via the tracking-number index, with a cache in
// front for the public read path.
func (s *ShipmentService) TrackByNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	var cached models.Shipment
	if s.cache.GetJSON(ctx, cache.TrackingKey(trackingNumber), &cached) {
		return &cached, nil
	}

	var shipment models.Shipment
	if err := s.db.Preload("Updates", func(db *gorm.DB) *gorm.DB {
		return db.Order("recorded_at asc")
	}).Where("tracking_number = ?", trackingNumber).First(&shipment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("tracking number %s not found", trackingNumber)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	s.cache.SetJSON(ctx, cache.TrackingKey(trackingNumber), &shipment)
	return &shipment, nil
}

// ActiveShipment returns the product's non-terminal shipment, or nil
// when none exists. Absence is a normal condition, not an error.
func (s *ShipmentService) ActiveShipment(productID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	err := s.db.Where("product_id = ? AND status IN ?", productID, []models.ShipmentStatus{
		models.ShipmentStatusNotShipped,
		models.ShipmentStatusPreparing,
		models.ShipmentStatusShipped,
		models.ShipmentStatusDelivered,
	}).First(&shipment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &shipment, nil
}

// FindByProduct returns the most recent shipment for a product, or nil.
func (s *ShipmentService) FindByProduct(productID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	err := s.db.Where("product_id = ?", productID).
		Order("created_at desc").
		First(&shipment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &shipment, nil
}

func (s *ShipmentService) ListShipments(actorID uuid.UUID, params utils.PaginationParams) ([]models.Shipment, int64, error) {
	query := s.db.Model(&models.Shipment{}).
		Where("sender_id = ? OR receiver_id = ? OR shipper_id = ?", actorID, actorID, actorID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count shipments: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "last_updated", "status"})
	query = utils.ApplyPagination(query, params)

	var shipments []models.Shipment
	if err := query.Find(&shipments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch shipments: %w", err)
	}

	return shipments, total, nil
}
