// internal/models/email.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailTemplate holds an admin-edited subject/body with {{placeholder}}
// tokens, optionally scoped to the phase whose transition triggers it.
type EmailTemplate struct {
	BaseModel
	Name             string           `json:"name" gorm:"uniqueIndex;size:100;not null"`
	NotificationType NotificationType `json:"notification_type" gorm:"type:varchar(30);not null"`
	TriggerPhase     PhaseName        `json:"trigger_phase" gorm:"size:50"`
	Subject          string           `json:"subject" gorm:"size:500;not null"`
	Body             string           `json:"body" gorm:"type:text;not null"`
	IsActive         bool             `json:"is_active" gorm:"default:true"`
}

type EmailLog struct {
	BaseModel
	JobID    *uuid.UUID  `json:"job_id" gorm:"type:uuid;index"`
	ToEmail  string      `json:"to_email" gorm:"size:255;not null"`
	CcEmail  string      `json:"cc_email" gorm:"size:500"`
	BccEmail string      `json:"bcc_email" gorm:"size:500"`
	Subject  string      `json:"subject" gorm:"size:500"`
	Body     string      `json:"body" gorm:"type:text"`
	Status   EmailStatus `json:"status" gorm:"type:varchar(20);not null"`
	Error    string      `json:"error,omitempty" gorm:"type:text"`
	SentBy   *uuid.UUID  `json:"sent_by" gorm:"type:uuid"`
}

type AdminNotification struct {
	BaseModel
	Type                NotificationType `json:"type" gorm:"type:varchar(30);not null;index"`
	Title               string           `json:"title" gorm:"size:255;not null"`
	Message             string           `json:"message" gorm:"type:text"`
	Priority            string           `json:"priority" gorm:"size:20;default:'medium'"`
	RelatedResourceType string           `json:"related_resource_type" gorm:"size:50"`
	RelatedResourceID   *uuid.UUID       `json:"related_resource_id" gorm:"type:uuid"`
	ReadAt              *time.Time       `json:"read_at"`
}

type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:255;not null"`
	ResourceType string     `json:"resource_type" gorm:"size:50;index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"size:500"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
}
