// internal/services/provenance_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/cache"
	"github.com/agritrace/agritrace-backend/internal/models"
)

// ProvenanceService owns no state: it derives verification results and
// traceability views from the product ledger, the directory, and the
// shipment log.
type ProvenanceService struct {
	db        *gorm.DB
	products  *ProductService
	shipments *ShipmentService
	cache     *cache.Cache
}

func NewProvenanceService(db *gorm.DB, products *ProductService, shipments *ShipmentService, c *cache.Cache) *ProvenanceService {
	return &ProvenanceService{
		db:        db,
		products:  products,
		shipments: shipments,
		cache:     c,
	}
}

// AuthenticityResult is a result value even when the data is
// compromised: callers explicitly want to learn about tampering.
type AuthenticityResult struct {
	ProductID   uuid.UUID `json:"product_id"`
	BatchNumber string    `json:"batch_number"`
	IsAuthentic bool      `json:"is_authentic"`
	Code        ErrorCode `json:"code,omitempty"`
	Reasons     []string  `json:"reasons"`
}

type SupplyChainResult struct {
	AuthenticityResult
	ShipmentStatus *models.ShipmentStatus `json:"shipment_status,omitempty"`
}

type TraceStage struct {
	Stage        string    `json:"stage"`
	ActorID      uuid.UUID `json:"actor_id"`
	BusinessName string    `json:"business_name"`
	Role         string    `json:"role"`
	ActorActive  bool      `json:"actor_active"`
	Location     string    `json:"location"`
	Data         string    `json:"data"`
	RecordedAt   time.Time `json:"recorded_at"`
}

type TraceabilityReport struct {
	ProductID      uuid.UUID    `json:"product_id"`
	BatchNumber    string       `json:"batch_number"`
	Name           string       `json:"name"`
	OriginLocation string       `json:"origin_location"`
	CurrentStage   string       `json:"current_stage"`
	IsActive       bool         `json:"is_active"`
	IsFullyTraced  bool         `json:"is_fully_traced"`
	Stages         []TraceStage `json:"stages"`
}

type CompleteTraceabilityReport struct {
	TraceabilityReport
	Shipment        *models.Shipment        `json:"shipment,omitempty"`
	ShipmentHistory []models.ShipmentUpdate `json:"shipment_history,omitempty"`
}

// ConsumerSummary is the mobile-friendly projection behind QR lookups.
type ConsumerSummary struct {
	Reference    string       `json:"reference"`
	ProductName  string       `json:"product_name"`
	Origin       string       `json:"origin"`
	FarmerName   string       `json:"farmer_name"`
	CurrentStage string       `json:"current_stage"`
	IsAuthentic  bool         `json:"is_authentic"`
	Timeline     []TraceStage `json:"timeline"`
}

// VerifyProductAuthenticity composes the hash-chain check with a role
// audit of every recorded stage. Roles are checked against the
// directory's state now, not at write time: a stakeholder deactivated
// since writing a stage surfaces here.
func (s *ProvenanceService) VerifyProductAuthenticity(ctx context.Context, productID uuid.UUID) (*AuthenticityResult, error) {
	product, err := s.products.Get(productID)
	if err != nil {
		return nil, err
	}

	result := &AuthenticityResult{
		ProductID:   product.ID,
		BatchNumber: product.BatchNumber,
		IsAuthentic: true,
	}

	verification, err := s.products.VerifyProduct(productID)
	if err != nil {
		return nil, err
	}
	if !verification.IsValid {
		result.IsAuthentic = false
		result.Reasons = append(result.Reasons, verification.Details...)
	}

	records, err := s.products.GetJourney(productID)
	if err != nil {
		return nil, err
	}

	recorded := make(map[models.ProductStage]bool, len(records))
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recorded[record.Stage] = true

		actor := record.Actor
		if actor.ID == uuid.Nil {
			result.IsAuthentic = false
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("stage %s was recorded by an unknown actor", record.Stage))
			continue
		}

		if !actor.IsActive {
			result.IsAuthentic = false
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("stage %s actor %s has been deactivated", record.Stage, actor.BusinessName))
		}

		if role, required := models.RoleForStage(record.Stage); required && actor.Role != role {
			result.IsAuthentic = false
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("stage %s was recorded by a %s, expected %s", record.Stage, actor.Role, role))
		}
	}

	for stage := models.StageFarm; stage <= product.CurrentStage; stage++ {
		if !recorded[stage] {
			result.IsAuthentic = false
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("stage %s has no record", stage))
		}
	}

	if result.IsAuthentic {
		result.Reasons = append(result.Reasons, "hash chain intact, every stage recorded by the authorized role")
	} else {
		result.Code = CodeIntegrityViolation
	}

	return result, nil
}

// VerifyCompleteSupplyChain adds the custody dimension: a cancelled or
// undeliverable shipment taints the result even when the product itself
// checks out.
func (s *ProvenanceService) VerifyCompleteSupplyChain(ctx context.Context, productID uuid.UUID) (*SupplyChainResult, error) {
	authenticity, err := s.VerifyProductAuthenticity(ctx, productID)
	if err != nil {
		return nil, err
	}

	result := &SupplyChainResult{AuthenticityResult: *authenticity}

	shipment, err := s.shipments.FindByProduct(productID)
	if err != nil {
		return nil, err
	}
	if shipment != nil {
		result.ShipmentStatus = &shipment.Status
		if shipment.Status.Tainted() {
			result.IsAuthentic = false
			result.Code = CodeIntegrityViolation
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("shipment %s ended in %s", shipment.TrackingNumber, shipment.Status))
		}
	}

	return result, nil
}

// GetTraceabilityReport joins product, stage records, and the recording
// stakeholders. IsFullyTraced is false on any gap: a missing stage is
// reported, never silently skipped.
func (s *ProvenanceService) GetTraceabilityReport(ctx context.Context, productID uuid.UUID) (*TraceabilityReport, error) {
	product, err := s.products.Get(productID)
	if err != nil {
		return nil, err
	}

	records, err := s.products.GetJourney(productID)
	if err != nil {
		return nil, err
	}

	report := &TraceabilityReport{
		ProductID:      product.ID,
		BatchNumber:    product.BatchNumber,
		Name:           product.Name,
		OriginLocation: product.OriginLocation,
		CurrentStage:   product.CurrentStage.String(),
		IsActive:       product.IsActive,
		IsFullyTraced:  true,
	}

	recorded := make(map[models.ProductStage]bool, len(records))
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recorded[record.Stage] = true
		report.Stages = append(report.Stages, TraceStage{
			Stage:        record.Stage.String(),
			ActorID:      record.ActorID,
			BusinessName: record.Actor.BusinessName,
			Role:         string(record.Actor.Role),
			ActorActive:  record.Actor.IsActive,
			Location:     record.Actor.Location,
			Data:         record.Data,
			RecordedAt:   record.RecordedAt,
		})
	}

	for stage := models.StageFarm; stage <= product.CurrentStage; stage++ {
		if !recorded[stage] {
			report.IsFullyTraced = false
			break
		}
	}

	return report, nil
}

// GetCompleteTraceabilityReport extends the report with custody history.
func (s *ProvenanceService) GetCompleteTraceabilityReport(ctx context.Context, productID uuid.UUID) (*CompleteTraceabilityReport, error) {
	report, err := s.GetTraceabilityReport(ctx, productID)
	if err != nil {
		return nil, err
	}

	complete := &CompleteTraceabilityReport{TraceabilityReport: *report}

	shipment, err := s.shipments.FindByProduct(productID)
	if err != nil {
		return nil, err
	}
	if shipment != nil {
		complete.Shipment = shipment
		history, err := s.shipments.GetHistory(shipment.ID)
		if err != nil {
			return nil, err
		}
		complete.ShipmentHistory = history
	}

	return complete, nil
}

// GetConsumerSummary resolves a batch number or tracking number to the
// consumer-facing projection, cached with TTL.
func (s *ProvenanceService) GetConsumerSummary(ctx context.Context, reference string) (*ConsumerSummary, error) {
	if reference == "" {
		return nil, ErrValidationFailed("reference must not be empty")
	}

	var cached ConsumerSummary
	if s.cache.GetJSON(ctx, cache.SummaryKey(reference), &cached) {
		return &cached, nil
	}

	product, err := s.resolveReference(reference)
	if err != nil {
		return nil, err
	}

	authenticity, err := s.VerifyProductAuthenticity(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	report, err := s.GetTraceabilityReport(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	var farmer models.Stakeholder
	if err := s.db.First(&farmer, "id = ?", product.FarmerID).Error; err != nil &&
		!errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	summary := &ConsumerSummary{
		Reference:    reference,
		ProductName:  product.Name,
		Origin:       product.OriginLocation,
		FarmerName:   farmer.BusinessName,
		CurrentStage: product.CurrentStage.String(),
		IsAuthentic:  authenticity.IsAuthentic,
		Timeline:     report.Stages,
	}

	s.cache.SetJSON(ctx, cache.SummaryKey(reference), summary)
	return summary, nil
}

func (s *ProvenanceService) InvalidateSummary(reference string) {
	s.cache.Invalidate(cache.SummaryKey(reference))
}

// resolveReference tries batch number first, then tracking number.
func (s *ProvenanceService) resolveReference(reference string) (*models.Product, error) {
	product, err := s.products.GetByBatchNumber(reference)
	if err == nil {
		return product, nil
	}
	if CodeOf(err) != CodeNotFound {
		return nil, err
	}

	var shipment models.Shipment
	if err := s.db.Where("tracking_number = ?", reference).First(&shipment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("no batch or tracking number matches %s", reference)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return s.products.Get(shipment.ProductID)
}
