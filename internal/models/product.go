// internal/models/product.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is one tracked batch. CurrentStage only ever moves forward,
// one stage at a time; the product service is the single writer.
type Product struct {
	BaseModel
	Name           string       `json:"name" gorm:"size:255;not null"`
	Description    string       `json:"description" gorm:"type:text"`
	BatchNumber    string       `json:"batch_number" gorm:"uniqueIndex;size:64;not null"`
	Quantity       int          `json:"quantity" gorm:"not null"`
	BasePrice      float64      `json:"base_price" gorm:"type:decimal(12,2);not null"`
	OriginLocation string       `json:"origin_location" gorm:"size:255"`
	OwnerID        uuid.UUID    `json:"owner_id" gorm:"type:uuid;not null;index"`
	FarmerID       uuid.UUID    `json:"farmer_id" gorm:"type:uuid;not null;index"`
	CurrentStage   ProductStage `json:"current_stage" gorm:"default:0;index"`
	DataHash       string       `json:"data_hash" gorm:"size:64"`
	IsActive       bool         `json:"is_active" gorm:"default:true;index"`

	// Listing state, written by the trading engine only.
	IsListed     bool     `json:"is_listed" gorm:"default:false;index"`
	ListingPrice float64  `json:"listing_price" gorm:"type:decimal(12,2);default:0"`
	SaleMode     SaleMode `json:"sale_mode" gorm:"type:varchar(20)"`

	// Relationships
	Owner        Stakeholder   `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Farmer       Stakeholder   `json:"farmer,omitempty" gorm:"foreignKey:FarmerID"`
	StageRecords []StageRecord `json:"stage_records,omitempty" gorm:"foreignKey:ProductID"`
	Transactions []Transaction `json:"transactions,omitempty" gorm:"foreignKey:ProductID"`
}

// StageRecord is one append-only row per stage a product has entered.
// DataHash is the SHA-256 of Data taken at write time; the verifier
// recomputes it to detect out-of-band mutation. Rows are never updated.
type StageRecord struct {
	BaseModel
	ProductID  uuid.UUID    `json:"product_id" gorm:"type:uuid;not null;uniqueIndex:idx_stage_records_product_stage"`
	Stage      ProductStage `json:"stage" gorm:"not null;uniqueIndex:idx_stage_records_product_stage"`
	Sequence   int          `json:"sequence" gorm:"not null"`
	ActorID    uuid.UUID    `json:"actor_id" gorm:"type:uuid;not null;index"`
	Data       string       `json:"data" gorm:"type:text;not null"`
	DataHash   string       `json:"data_hash" gorm:"size:64;not null"`
	RecordedAt time.Time    `json:"recorded_at"`

	// Relationships
	Actor Stakeholder `json:"actor,omitempty" gorm:"foreignKey:ActorID"`
}
