// internal/models/shipment.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Shipment tracks custody of a product independently of ownership.
// A product has at most one active (non-terminal) shipment at a time.
type Shipment struct {
	BaseModel
	ProductID      uuid.UUID      `json:"product_id" gorm:"type:uuid;not null;index"`
	SenderID       uuid.UUID      `json:"sender_id" gorm:"type:uuid;not null;index"`
	ReceiverID     uuid.UUID      `json:"receiver_id" gorm:"type:uuid;not null;index"`
	ShipperID      *uuid.UUID     `json:"shipper_id" gorm:"type:uuid;index"`
	TrackingNumber string         `json:"tracking_number" gorm:"uniqueIndex;size:64;not null"`
	TransportMode  string         `json:"transport_mode" gorm:"size:50"`
	Status         ShipmentStatus `json:"status" gorm:"type:varchar(20);default:'preparing';index"`
	LastUpdated    time.Time      `json:"last_updated"`

	// Relationships
	Product  Product          `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Sender   Stakeholder      `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
	Receiver Stakeholder      `json:"receiver,omitempty" gorm:"foreignKey:ReceiverID"`
	Updates  []ShipmentUpdate `json:"updates,omitempty" gorm:"foreignKey:ShipmentID"`
}

// ShipmentUpdate is the append-only custody log consumed by the
// provenance engine. Rows are never updated in place.
type ShipmentUpdate struct {
	BaseModel
	ShipmentID   uuid.UUID      `json:"shipment_id" gorm:"type:uuid;not null;index"`
	Status       ShipmentStatus `json:"status" gorm:"type:varchar(20);not null"`
	ActorID      uuid.UUID      `json:"actor_id" gorm:"type:uuid;not null"`
	TrackingInfo string         `json:"tracking_info" gorm:"type:text"`
	Location     string         `json:"location" gorm:"size:255"`
	RecordedAt   time.Time      `json:"recorded_at"`
}

// shipmentTransitions is the complete legal edge set. Any (from, to)
// pair absent here is an invalid transition.
var shipmentTransitions = map[ShipmentStatus][]ShipmentStatus{
	ShipmentStatusNotShipped: {ShipmentStatusPreparing},
	ShipmentStatusPreparing:  {ShipmentStatusShipped, ShipmentStatusCancelled},
	ShipmentStatusShipped:    {ShipmentStatusDelivered, ShipmentStatusUnableToDeliver},
	ShipmentStatusDelivered:  {ShipmentStatusVerified},
}

// CanTransitionShipment reports whether from -> to is a legal custody move.
func CanTransitionShipment(from, to ShipmentStatus) bool {
	for _, next := range shipmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends a shipment's lifecycle.
func (s ShipmentStatus) Terminal() bool {
	switch s {
	case ShipmentStatusVerified, ShipmentStatusCancelled, ShipmentStatusUnableToDeliver:
		return true
	}
	return false
}

// Tainted reports whether the status invalidates the supply chain in a
// full verification.
func (s ShipmentStatus) Tainted() bool {
	return s == ShipmentStatusCancelled || s == ShipmentStatusUnableToDeliver
}
