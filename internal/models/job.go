// internal/models/job.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// JobPhase is a catalog row for the job lifecycle. Navigable phases form the
// ordered list that advance/revert walk; the rest are reached only by named
// actions (submit, cancel, reactivate, archive).
type JobPhase struct {
	BaseModel
	Name      PhaseName `json:"name" gorm:"uniqueIndex;size:50;not null"`
	Sequence  int       `json:"sequence" gorm:"not null"`
	Navigable bool      `json:"navigable" gorm:"default:false"`
	Terminal  bool      `json:"terminal" gorm:"default:false"`
}

type Job struct {
	BaseModel
	PropertyID      uuid.UUID  `json:"property_id" gorm:"type:uuid;not null;index"`
	WorkOrderNum    string     `json:"work_order_num" gorm:"uniqueIndex;size:20;not null"`
	UnitNumber      string     `json:"unit_number" gorm:"size:50"`
	ScheduledDate   *time.Time `json:"scheduled_date"`
	PhaseID         uuid.UUID  `json:"phase_id" gorm:"type:uuid;not null;index"`
	SubcontractorID *uuid.UUID `json:"subcontractor_id" gorm:"type:uuid;index"`

	// Base billing references. HourlyBillingDetailID feeds the legacy
	// extra-charge rate fallback.
	HourlyBillingDetailID *uuid.UUID `json:"hourly_billing_detail_id" gorm:"type:uuid"`

	InvoiceSent      bool       `json:"invoice_sent" gorm:"default:false"`
	InvoiceSentAt    *time.Time `json:"invoice_sent_at"`
	InvoicePaid      bool       `json:"invoice_paid" gorm:"default:false"`
	InvoicePaidAt    *time.Time `json:"invoice_paid_at"`
	HostedInvoiceURL string     `json:"hosted_invoice_url" gorm:"size:500"`

	// Cache of the aggregated bill total, recomputed on every relevant change.
	TotalBillingAmount decimal.Decimal `json:"total_billing_amount" gorm:"type:numeric(12,2);default:0"`

	// Relationships
	Property            Property         `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
	Phase               JobPhase         `json:"phase,omitempty" gorm:"foreignKey:PhaseID"`
	Subcontractor       *User            `json:"subcontractor,omitempty" gorm:"foreignKey:SubcontractorID"`
	HourlyBillingDetail *BillingDetail   `json:"hourly_billing_detail,omitempty" gorm:"foreignKey:HourlyBillingDetailID"`
	WorkOrder           *WorkOrder       `json:"work_order,omitempty" gorm:"foreignKey:JobID"`
	BillingLines        []JobBillingLine `json:"billing_lines,omitempty" gorm:"foreignKey:JobID"`
	PhaseChanges        []JobPhaseChange `json:"phase_changes,omitempty" gorm:"foreignKey:JobID"`
	ApprovalTokens      []ApprovalToken  `json:"approval_tokens,omitempty" gorm:"foreignKey:JobID"`
	Files               []JobFile        `json:"files,omitempty" gorm:"foreignKey:JobID"`
}

// JobPhaseChange is the immutable audit row appended on every transition.
// Decision is explicit; nothing ever scans Reason text for outcomes.
type JobPhaseChange struct {
	ID          uuid.UUID     `json:"id" gorm:"type:uuid;primary_key"`
	JobID       uuid.UUID     `json:"job_id" gorm:"type:uuid;not null;index"`
	FromPhaseID *uuid.UUID    `json:"from_phase_id" gorm:"type:uuid"`
	ToPhaseID   uuid.UUID     `json:"to_phase_id" gorm:"type:uuid;not null"`
	ChangedBy   *uuid.UUID    `json:"changed_by" gorm:"type:uuid"`
	Reason      string        `json:"reason" gorm:"type:text"`
	Decision    PhaseDecision `json:"decision" gorm:"type:varchar(20);default:''"`
	CreatedAt   time.Time     `json:"created_at"`

	// Relationships
	FromPhase *JobPhase `json:"from_phase,omitempty" gorm:"foreignKey:FromPhaseID"`
	ToPhase   JobPhase  `json:"to_phase,omitempty" gorm:"foreignKey:ToPhaseID"`
}

func (c *JobPhaseChange) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type JobFile struct {
	BaseModel
	JobID       uuid.UUID  `json:"job_id" gorm:"type:uuid;not null;index"`
	WorkOrderID *uuid.UUID `json:"work_order_id" gorm:"type:uuid;index"`
	FileName    string     `json:"file_name" gorm:"size:255;not null"`
	StorageKey  string     `json:"storage_key" gorm:"size:500;not null"`
	ContentType string     `json:"content_type" gorm:"size:100"`
	SizeBytes   int64      `json:"size_bytes"`
	UploadedBy  *uuid.UUID `json:"uploaded_by" gorm:"type:uuid"`
}
