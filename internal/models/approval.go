// internal/models/approval.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalToken is a single-use, time-boxed credential letting a property
// contact approve or decline extra charges from an emailed link, without
// authenticating into the system. The extra-charges payload is snapshotted at
// issue time so later rendering does not depend on mutable job state.
//
// Lifecycle: pending -> approved | declined (terminal), or expiry passes with
// no row written. A token superseded by reactivation no longer counts toward
// the job's effective decision.
type ApprovalToken struct {
	BaseModel
	JobID         uuid.UUID      `json:"job_id" gorm:"type:uuid;not null;index"`
	ApprovalType  ApprovalType   `json:"approval_type" gorm:"type:varchar(30);not null;default:'extra_charges'"`
	Token         string         `json:"token" gorm:"uniqueIndex;size:120;not null"`
	Snapshot      JSONB          `json:"snapshot" gorm:"type:jsonb"`
	ApproverName  string         `json:"approver_name" gorm:"size:255"`
	ApproverEmail string         `json:"approver_email" gorm:"size:255;not null"`
	ExpiresAt     time.Time      `json:"expires_at" gorm:"not null"`
	Status        ApprovalStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	DecidedAt     *time.Time     `json:"decided_at"`
	DeclineReason string         `json:"decline_reason" gorm:"type:text"`
	SupersededAt  *time.Time     `json:"superseded_at"`

	// Set once the expiry sweeper has flagged this token, so the daily sweep
	// does not notify twice.
	ExpiryNoticeSentAt *time.Time `json:"expiry_notice_sent_at"`

	// Relationships
	Job Job `json:"job,omitempty" gorm:"foreignKey:JobID"`
}

func (t *ApprovalToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsActive reports whether this token still blocks issuing a new one: it is
// undecided, unexpired, and not superseded by a reactivation.
func (t *ApprovalToken) IsActive(now time.Time) bool {
	return t.Status == ApprovalStatusPending && !t.IsExpired(now) && t.SupersededAt == nil
}

func (t *ApprovalToken) IsDecided() bool {
	return t.Status == ApprovalStatusApproved || t.Status == ApprovalStatusDeclined
}
