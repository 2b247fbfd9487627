// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns the primary key so the same models work on
// postgres and the in-memory test driver.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}

	return nil
}

// Enums

// StakeholderRole is the single canonical role enumeration. The consumer
// role exists for purchases only and never satisfies a stage or shipment
// role check.
type StakeholderRole string

const (
	RoleFarmer      StakeholderRole = "farmer"
	RoleProcessor   StakeholderRole = "processor"
	RoleDistributor StakeholderRole = "distributor"
	RoleRetailer    StakeholderRole = "retailer"
	RoleShipper     StakeholderRole = "shipper"
	RoleConsumer    StakeholderRole = "consumer"
	RoleAdmin       StakeholderRole = "admin"
)

func (r StakeholderRole) Valid() bool {
	switch r {
	case RoleFarmer, RoleProcessor, RoleDistributor, RoleRetailer,
		RoleShipper, RoleConsumer, RoleAdmin:
		return true
	}
	return false
}

// ProductStage is the canonical stage numbering: FARM=0 through CONSUMED=4.
// Transitions must satisfy target == current+1.
type ProductStage int

const (
	StageFarm ProductStage = iota
	StageProcessing
	StageDistribution
	StageRetail
	StageConsumed
)

func (s ProductStage) String() string {
	switch s {
	case StageFarm:
		return "farm"
	case StageProcessing:
		return "processing"
	case StageDistribution:
		return "distribution"
	case StageRetail:
		return "retail"
	case StageConsumed:
		return "consumed"
	}
	return "unknown"
}

func (s ProductStage) Valid() bool {
	return s >= StageFarm && s <= StageConsumed
}

// ParseStage resolves a stage name to its canonical number.
func ParseStage(name string) (ProductStage, bool) {
	switch name {
	case "farm":
		return StageFarm, true
	case "processing":
		return StageProcessing, true
	case "distribution":
		return StageDistribution, true
	case "retail":
		return StageRetail, true
	case "consumed":
		return StageConsumed, true
	}
	return 0, false
}

// stageRoles maps each stage to the role allowed to move a product into it.
// CONSUMED has no entry: any fully active party may record consumption.
var stageRoles = map[ProductStage]StakeholderRole{
	StageFarm:         RoleFarmer,
	StageProcessing:   RoleProcessor,
	StageDistribution: RoleDistributor,
	StageRetail:       RoleRetailer,
}

// RoleForStage returns the role authorized to write the given stage.
// The second return is false when any role is acceptable.
func RoleForStage(s ProductStage) (StakeholderRole, bool) {
	role, ok := stageRoles[s]
	return role, ok
}

// NextStageRole returns the role that follows r in the default supply
// chain adjacency (farmer -> processor -> distributor -> retailer).
func NextStageRole(r StakeholderRole) (StakeholderRole, bool) {
	switch r {
	case RoleFarmer:
		return RoleProcessor, true
	case RoleProcessor:
		return RoleDistributor, true
	case RoleDistributor:
		return RoleRetailer, true
	}
	return "", false
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

type OfferStatus string

const (
	OfferStatusOpen      OfferStatus = "open"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusCompleted OfferStatus = "completed"
	OfferStatusExpired   OfferStatus = "expired"
	OfferStatusCancelled OfferStatus = "cancelled"
)

type ShipmentStatus string

const (
	ShipmentStatusNotShipped      ShipmentStatus = "not_shipped"
	ShipmentStatusPreparing       ShipmentStatus = "preparing"
	ShipmentStatusShipped         ShipmentStatus = "shipped"
	ShipmentStatusDelivered       ShipmentStatus = "delivered"
	ShipmentStatusVerified        ShipmentStatus = "verified"
	ShipmentStatusCancelled       ShipmentStatus = "cancelled"
	ShipmentStatusUnableToDeliver ShipmentStatus = "unable_to_deliver"
)

type TransactionKind string

const (
	TransactionKindTradeSale         TransactionKind = "trade_sale"
	TransactionKindOwnershipTransfer TransactionKind = "ownership_transfer"
	TransactionKindConsumerPurchase  TransactionKind = "consumer_purchase"
)

type SaleMode string

const (
	SaleModeRetail    SaleMode = "retail"
	SaleModeWholesale SaleMode = "wholesale"
)
