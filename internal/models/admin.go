// internal/models/admin.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog rows are written asynchronously by the audit middleware for
// every mutating request.
type AuditLog struct {
	BaseModel
	ActorID      *uuid.UUID `json:"actor_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:255;not null"`
	ResourceType string     `json:"resource_type" gorm:"size:100;index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid;index"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"size:500"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
}

// Notification is the persisted copy of an outbound webhook event,
// published after the originating transaction commits.
type Notification struct {
	BaseModel
	Event       string     `json:"event" gorm:"size:100;not null;index"`
	Payload     JSONB      `json:"payload" gorm:"type:jsonb"`
	Delivered   bool       `json:"delivered" gorm:"default:false;index"`
	DeliveredAt *time.Time `json:"delivered_at"`
	LastError   string     `json:"last_error,omitempty" gorm:"type:text"`
}
