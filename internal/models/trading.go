// internal/models/trading.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Offer is a buy or sell proposal on a batch. Expiry is evaluated
// lazily: an OPEN offer past ExpiresAt is flipped to EXPIRED on the
// next read or acceptance attempt.
type Offer struct {
	BaseModel
	ProductID      uuid.UUID   `json:"product_id" gorm:"type:uuid;not null;index"`
	CreatorID      uuid.UUID   `json:"creator_id" gorm:"type:uuid;not null;index"`
	CounterpartyID uuid.UUID   `json:"counterparty_id" gorm:"type:uuid;not null;index"`
	Price          float64     `json:"price" gorm:"type:decimal(12,2);not null"`
	Quantity       int         `json:"quantity" gorm:"not null"`
	Terms          string      `json:"terms" gorm:"type:text"`
	ExpiresAt      time.Time   `json:"expires_at" gorm:"not null"`
	Status         OfferStatus `json:"status" gorm:"type:varchar(20);default:'open';index"`
	AcceptedAt     *time.Time  `json:"accepted_at"`

	// Relationships
	Product      Product     `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Creator      Stakeholder `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Counterparty Stakeholder `json:"counterparty,omitempty" gorm:"foreignKey:CounterpartyID"`
}

// Transaction is the immutable trade record. Rows are append-only and
// never mutated; they form the audit trail for the trading engine.
type Transaction struct {
	BaseModel
	ProductID uuid.UUID       `json:"product_id" gorm:"type:uuid;not null;index"`
	SellerID  uuid.UUID       `json:"seller_id" gorm:"type:uuid;not null;index"`
	BuyerID   uuid.UUID       `json:"buyer_id" gorm:"type:uuid;not null;index"`
	UnitPrice float64         `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Kind      TransactionKind `json:"kind" gorm:"type:varchar(30);not null;index"`
	Reference string          `json:"reference" gorm:"size:255"`

	// Relationships
	Product Product     `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Seller  Stakeholder `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Buyer   Stakeholder `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
}
