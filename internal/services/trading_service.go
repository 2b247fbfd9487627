// internal/services/trading_service.go
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

type TradingService struct {
	db            *gorm.DB
	stakeholders  *StakeholderService
	shipments     *ShipmentService
	notifications *NotificationService
}

func NewTradingService(db *gorm.DB, stakeholders *StakeholderService, shipments *ShipmentService, notifications *NotificationService) *TradingService {
	return &TradingService{
		db:            db,
		stakeholders:  stakeholders,
		shipments:     shipments,
		notifications: notifications,
	}
}

type ListForSaleRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Price     float64   `json:"price" validate:"required,gt=0"`
	Mode      string    `json:"mode" validate:"required,oneof=retail wholesale"`
}

type CreateOfferRequest struct {
	ProductID      uuid.UUID `json:"product_id" validate:"required"`
	CounterpartyID uuid.UUID `json:"counterparty_id" validate:"required"`
	Price          float64   `json:"price" validate:"required,gt=0"`
	Quantity       int       `json:"quantity" validate:"required,gt=0"`
	Terms          string    `json:"terms" validate:"max=2000"`
	DurationSecs   int       `json:"duration_secs" validate:"required,gt=0"`
}

type TransferOwnershipRequest struct {
	ProductID  uuid.UUID `json:"product_id" validate:"required"`
	NewOwnerID uuid.UUID `json:"new_owner_id" validate:"required"`
}

type RecordTransactionRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	SellerID  uuid.UUID `json:"seller_id" validate:"required"`
	BuyerID   uuid.UUID `json:"buyer_id" validate:"required"`
	UnitPrice float64   `json:"unit_price" validate:"required,gt=0"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
	Kind      string    `json:"kind" validate:"required,oneof=trade_sale ownership_transfer consumer_purchase"`
	Reference string    `json:"reference" validate:"max=255"`
}

type PurchaseRequest struct {
	ProductID     uuid.UUID `json:"product_id" validate:"required"`
	Quantity      int       `json:"quantity" validate:"required,gt=0"`
	PaymentAmount float64   `json:"payment_amount" validate:"required,gt=0"`
}

type OfferSearchParams struct {
	utils.PaginationParams
	ProductID *uuid.UUID          `json:"product_id,omitempty"`
	Status    *models.OfferStatus `json:"status,omitempty"`
}

// ListForSale puts an owned, active batch on the market.
func (s *TradingService) ListForSale(actorID uuid.UUID, req *ListForSaleRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, ErrValidationFailed("validation failed: %v", err)
	}

	product, err := s.loadOwnedProduct(actorID, req.ProductID)
	if err != nil {
		return nil, err
	}

	if product.IsListed {
		return nil, ErrConflict("product %s is already listed", product.BatchNumber)
	}

	var openOffers int64
	if err := s.db.Model(&models.Offer{}).
		Where("product_id = ? AND status = ?", product.ID, models.OfferStatusAccepted).
		Count(&openOffers).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if openOffers > 0 {
		return nil, ErrConflict("product %s has an unresolved trade cycle", product.BatchNumber)
	}

	product.IsListed = true
	product.ListingPrice = req.Price
	product.SaleMode = models.SaleMode(req.Mode)
	if err := s.db.Save(product).Error; err != nil {
		return nil, fmt.Errorf("failed to list product: %w", err)
	}

	s.notifications.Publish("product.listed", map[string]interface{}{
		"product_id":   product.ID.String(),
		"batch_number": product.BatchNumber,
		"price":        req.Price,
	})

	return product, nil
}

// Unlist removes the listing; owner only.
func (s *TradingService) Unlist(actorID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.loadOwnedProduct(actorID, productID)
	if err != nil {
		return nil, err
	}

	if !product.IsListed {
		return nil, ErrConflict("product %s is not listed", product.BatchNumber)
	}

	product.IsListed = false
	product.ListingPrice = 0
	if err := s.db.Save(product).Error; err != nil {
		return nil, fmt.Errorf("failed to unlist product: %w", err)
	}

	return product, nil
}

// CreateBuyOffer opens an offer with absolute expiry now + duration.
func (s *TradingService) CreateBuyOffer(actorID uuid.UUID, req *CreateOfferRequest) (*models.Offer, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, ErrValidationFailed("validation failed: %v", err)
	}

	buyer, err := s.stakeholders.Get(actorID)
	if err != nil {
		return nil, ErrUnauthorized("caller is not registered")
	}
	if !buyer.FullyActive() {
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

	if product.OwnerID != req.CounterpartyID {
		return nil, ErrValidationFailed("counterparty is not the current owner of the batch")
	}

	if req.Quantity > product.Quantity {
		return nil, ErrValidationFailed("offer quantity %d exceeds available %d", req.Quantity, product.Quantity)
	}

	offer := &models.Offer{
		ProductID:      req.ProductID,
		CreatorID:      buyer.ID,
		CounterpartyID: req.CounterpartyID,
		Price:          req.Price,
		Quantity:       req.Quantity,
		Terms:          req.Terms,
		ExpiresAt:      time.Now().Add(time.Duration(req.DurationSecs) * time.Second),
		Status:         models.OfferStatusOpen,
	}
	if err := s.db.Create(offer).Error; err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}

	s.stakeholders.TouchActivity(buyer.ID)
	s.notifications.Publish("offer.created", map[string]interface{}{
		"offer_id":   offer.ID.String(),
		"product_id": offer.ProductID.String(),
		"price":      offer.Price,
	})

	return offer, nil
}

// sweepExpiry applies lazy expiry: an OPEN offer past its deadline is
// flipped to EXPIRED in place. No background scheduler exists.
func (s *TradingService) sweepExpiry(offer *models.Offer) error {
	if offer.Status != models.OfferStatusOpen || time.Now().Before(offer.ExpiresAt) {
		return nil
	}

	res := s.db.Model(&models.Offer{}).
		Where("id = ? AND status = ?", offer.ID, models.OfferStatusOpen).
		Update("status", models.OfferStatusExpired)
	if res.Error != nil {
		return fmt.Errorf("failed to expire offer: %w", res.Error)
	}

	offer.Status = models.OfferStatusExpired
	return nil
}

func (s *TradingService) GetOffer(offerID uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := s.db.First(&offer, "id = ?", offerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("offer %s not found", offerID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := s.sweepExpiry(&offer); err != nil {
		return nil, err
	}

	return &offer, nil
}

// AcceptOffer flips the offer to ACCEPTED. It does not move ownership:
// that is an explicit follow-up, leaving room for shipper-mediated
// custody between acceptance and transfer.
func (s *TradingService) AcceptOffer(actorID, offerID uuid.UUID) (*models.Offer, error) {
	offer, err := s.GetOffer(offerID)
	if err != nil {
		return nil, err
	}

	if actorID != offer.CounterpartyID {
		return nil, ErrUnauthorized("only the designated counterparty may accept this offer")
	}

	if offer.Status == models.OfferStatusExpired {
		return nil, ErrExpired("offer expired at %s", offer.ExpiresAt.Format(time.RFC3339))
	}
	if offer.Status != models.OfferStatusOpen {
		return nil, ErrConflict("offer is already %s", offer.Status)
	}

	now := time.Now()
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		// Only one ACCEPTED offer may exist per batch per trade cycle.
		var accepted int64
		if err := tx.Model(&models.Offer{}).
			Where("product_id = ? AND status = ?", offer.ProductID, models.OfferStatusAccepted).
			Count(&accepted).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if accepted > 0 {
			return ErrConflict("another accepted offer already exists for this batch")
		}

		res := tx.Model(&models.Offer{}).
			Where("id = ? AND status = ?", offerID, models.OfferStatusOpen).
			Updates(map[string]interface{}{
				"status":      models.OfferStatusAccepted,
				"accepted_at": &now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to accept offer: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict("offer state changed concurrently")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	offer.Status = models.OfferStatusAccepted
	offer.AcceptedAt = &now

	s.stakeholders.TouchActivity(actorID)
	s.notifications.Publish("offer.accepted", map[string]interface{}{
		"offer_id":   offer.ID.String(),
		"product_id": offer.ProductID.String(),
	})

	return offer, nil
}

// CancelOffer withdraws an OPEN offer; creator only.
func (s *TradingService) CancelOffer(actorID, offerID uuid.UUID) (*models.Offer, error) {
	offer, err := s.GetOffer(offerID)
	if err != nil {
		return nil, err
	}

	if actorID != offer.CreatorID {
		return nil, ErrUnauthorized("only the offer creator may cancel it")
	}

	if offer.Status != models.OfferStatusOpen {
		return nil, ErrConflict("offer is already %s", offer.Status)
	}

	offer.Status = models.OfferStatusCancelled
	if err := s.db.Save(offer).Error; err != nil {
		return nil, fmt.Errorf("failed to cancel offer: %w", err)
	}

	return offer, nil
}

func (s *TradingService) ListOffers(actorID uuid.UUID, params OfferSearchParams) ([]models.Offer, int64, error) {
	query := s.db.Model(&models.Offer{}).
		Where("creator_id = ? OR counterparty_id = ?", actorID, actorID)

	if params.ProductID != nil {
		query = query.Where("product_id = ?", *params.ProductID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count offers: %w", err)
	}

	query = utils.ApplySort(query, params.PaginationParams, []string{"created_at", "expires_at", "price"})
	query = utils.ApplyPagination(query, params.PaginationParams)

	var offers []models.Offer
	if err := query.Find(&offers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch offers: %w", err)
	}

	for i := range offers {
		if err := s.sweepExpiry(&offers[i]); err != nil {
			return nil, 0, err
		}
	}

	return offers, total, nil
}

// TransferOwnership is the explicit post-acceptance step. It requires an
// ACCEPTED offer between the parties, verifies the directory's trade
// rule, and closes the cycle.
func (s *TradingService) TransferOwnership(actorID uuid.UUID, req *TransferOwnershipRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, ErrValidationFailed("validation failed: %v", err)
	}

	product, err := s.loadOwnedProduct(actorID, req.ProductID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.stakeholders.CanTransact(actorID, req.NewOwnerID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrUnauthorized("directory does not allow a trade between these parties")
	}

	var offer models.Offer
	if err := s.db.Where("product_id = ? AND status = ? AND counterparty_id = ? AND creator_id = ?",
		product.ID, models.OfferStatusAccepted, actorID, req.NewOwnerID).
		First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConflict("no accepted offer exists between these parties for this batch")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).
			Where("id = ? AND owner_id = ?", product.ID, actorID).
			Updates(map[string]interface{}{
				"owner_id":      req.NewOwnerID,
				"is_listed":     false,
				"listing_price": 0,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to transfer ownership: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict("product ownership changed concurrently")
		}

		// Resolve the accepted offer so the new owner can open the next
		// trade cycle.
		res = tx.Model(&models.Offer{}).
			Where("id = ? AND status = ?", offer.ID, models.OfferStatusAccepted).
			Update("status", models.OfferStatusCompleted)
		if res.Error != nil {
			return fmt.Errorf("failed to complete offer: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict("offer state changed concurrently")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	product.OwnerID = req.NewOwnerID
	product.IsListed = false

	s.stakeholders.TouchActivity(actorID)
	s.notifications.Publish("product.ownership_transferred", map[string]interface{}{
		"product_id":   product.ID.String(),
		"batch_number": product.BatchNumber,
		"new_owner_id": req.NewOwnerID.String(),
	})

	return product, nil
}

// RecordTransaction appends the immutable audit row for a completed
// trade step.
func (s *TradingService) RecordTransaction(actorID uuid.UUID, req *RecordTransactionRequest) (*models.Transaction, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, ErrValidationFailed("validation failed: %v", err)
	}

	if actorID != req.SellerID && actorID != req.BuyerID {
		return nil, ErrUnauthorized("only a party to the trade may record it")
	}

	txn := &models.Transaction{
		ProductID: req.ProductID,
		SellerID:  req.SellerID,
		BuyerID:   req.BuyerID,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
		Kind:      models.TransactionKind(req.Kind),
		Reference: req.Reference,
	}
	if err := s.db.Create(txn).Error; err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	return txn, nil
}

// PurchaseWithImmediateOwnership is the consumer path: payment check,
// availability check, quantity/ownership adjustment, and the purchase
// record, all in one transaction. A product with a shipment still in
// transit cannot be purchased.
func (s *TradingService) PurchaseWithImmediateOwnership(actorID uuid.UUID, req *PurchaseRequest) (*models.Transaction, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, ErrValidationFailed("validation failed: %v", err)
	}

	buyer, err := s.stakeholders.Get(actorID)
	if err != nil {
		return nil, ErrUnauthorized("caller is not registered")
	}
	if !buyer.FullyActive() {
		return nil, ErrUnauthorized("caller account is not active")
	}

	active, err := s.shipments.ActiveShipment(req.ProductID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrConflict("product is in transit under shipment %s", active.TrackingNumber)
	}

	var txn *models.Transaction
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", req.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound("product %s not found", req.ProductID)
			}
			return fmt.Errorf("database error: %w", err)
		}

		if !product.IsActive {
			return ErrValidationFailed("product %s is deactivated", product.BatchNumber)
		}
		if product.CurrentStage != models.StageRetail {
			return ErrValidationFailed("product must be at retail to purchase, currently %s", product.CurrentStage)
		}
		if !product.IsListed {
			return ErrValidationFailed("product %s is not listed for sale", product.BatchNumber)
		}
		if product.OwnerID == buyer.ID {
			return ErrValidationFailed("cannot purchase your own batch")
		}
		if req.Quantity > product.Quantity {
			return ErrValidationFailed("requested quantity %d exceeds available %d", req.Quantity, product.Quantity)
		}

		total := product.ListingPrice * float64(req.Quantity)
		if req.PaymentAmount < total {
			return ErrValidationFailed("payment %.2f is below the required %.2f", req.PaymentAmount, total)
		}

		updates := map[string]interface{}{
			"quantity": product.Quantity - req.Quantity,
		}
		if req.Quantity == product.Quantity {
			// Full-quantity purchase transfers the batch itself.
			updates["owner_id"] = buyer.ID
			updates["is_listed"] = false
			updates["listing_price"] = float64(0)
		}

		res := tx.Model(&models.Product{}).
			Where("id = ? AND quantity = ?", product.ID, product.Quantity).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to adjust product: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict("product quantity changed concurrently")
		}

		txn = &models.Transaction{
			ProductID: product.ID,
			SellerID:  product.OwnerID,
			BuyerID:   buyer.ID,
			UnitPrice: product.ListingPrice,
			Quantity:  req.Quantity,
			Kind:      models.TransactionKindConsumerPurchase,
		}
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to record purchase: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.stakeholders.TouchActivity(buyer.ID)
	s.notifications.Publish("purchase.completed", map[string]interface{}{
		"transaction_id": txn.ID.String(),
		"product_id":     txn.ProductID.String(),
		"buyer_id":       txn.BuyerID.String(),
		"quantity":       txn.Quantity,
	})

	return txn, nil
}

func (s *TradingService) ListTransactions(actorID uuid.UUID, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	query := s.db.Model(&models.Transaction{}).
		Where("seller_id = ? OR buyer_id = ?", actorID, actorID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "unit_price"})
	query = utils.ApplyPagination(query, params)

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	return transactions, total, nil
}

func (s *TradingService) loadOwnedProduct(actorID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("product %s not found", productID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if product.OwnerID != actorID {
		return nil, ErrUnauthorized("only the batch owner may do this")
	}
	if !product.IsActive {
		return nil, ErrValidationFailed("product %s is deactivated", product.BatchNumber)
	}

	return &product, nil
}
