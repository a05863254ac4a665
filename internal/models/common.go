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

func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
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
	default:
		return nil
	}
}

// Enums
type UserRole string

const (
	UserRoleAdmin         UserRole = "admin"
	UserRoleSubcontractor UserRole = "subcontractor"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

type PhaseName string

const (
	PhaseJobRequest       PhaseName = "Job Request"
	PhasePendingWorkOrder PhaseName = "Pending Work Order"
	PhaseWorkOrder        PhaseName = "Work Order"
	PhaseInvoicing        PhaseName = "Invoicing"
	PhaseCompleted        PhaseName = "Completed"
	PhaseCancelled        PhaseName = "Cancelled"
	PhaseArchived         PhaseName = "Archived"
)

type ApprovalType string

const (
	ApprovalTypeExtraCharges ApprovalType = "extra_charges"
)

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusDeclined ApprovalStatus = "declined"
)

// PhaseDecision is stamped on the audit row by the transition that carries an
// approval outcome. Empty means the transition carried no decision.
type PhaseDecision string

const (
	PhaseDecisionNone     PhaseDecision = ""
	PhaseDecisionApproved PhaseDecision = "approved"
	PhaseDecisionDeclined PhaseDecision = "declined"
)

type CeilingMode string

const (
	CeilingModeUnitSize   CeilingMode = "unit_size"
	CeilingModeIndividual CeilingMode = "individual"
)

type EmailStatus string

const (
	EmailStatusSent   EmailStatus = "sent"
	EmailStatusFailed EmailStatus = "failed"
)

type NotificationType string

const (
	NotificationTypeApprovalRequest NotificationType = "approval_request"
	NotificationTypeApprovalExpired NotificationType = "approval_expired"
	NotificationTypePhaseChange     NotificationType = "phase_change"
	NotificationTypeInvoice         NotificationType = "invoice"
)
