// internal/models/work_order.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WorkOrder is the filled-in service record for a Job. One current work order
// per job.
type WorkOrder struct {
	BaseModel
	JobID uuid.UUID `json:"job_id" gorm:"type:uuid;uniqueIndex;not null"`

	Occupied  bool `json:"occupied" gorm:"default:false"`
	FullPaint bool `json:"full_paint" gorm:"default:false"`

	PaintedPatio        bool `json:"painted_patio" gorm:"default:false"`
	PaintedGarage       bool `json:"painted_garage" gorm:"default:false"`
	PaintedCabinets     bool `json:"painted_cabinets" gorm:"default:false"`
	PaintedCrownMolding bool `json:"painted_crown_molding" gorm:"default:false"`
	PaintedFrontDoor    bool `json:"painted_front_door" gorm:"default:false"`

	// Ceiling selection: either a direct rate-card reference (unit-size mode)
	// or an individual count billed per ceiling.
	PaintedCeilings        bool        `json:"painted_ceilings" gorm:"default:false"`
	CeilingMode            CeilingMode `json:"ceiling_mode" gorm:"type:varchar(20);default:'unit_size'"`
	CeilingBillingDetailID *uuid.UUID  `json:"ceiling_billing_detail_id" gorm:"type:uuid"`
	CeilingUnitSizeLabel   string      `json:"ceiling_unit_size_label" gorm:"size:100"`
	CeilingIndividualCount int         `json:"ceiling_individual_count" gorm:"default:0"`

	HasAccentWall             bool       `json:"has_accent_wall" gorm:"default:false"`
	AccentWallType            string     `json:"accent_wall_type" gorm:"size:100"`
	AccentWallCount           int        `json:"accent_wall_count" gorm:"default:1"`
	AccentWallBillingDetailID *uuid.UUID `json:"accent_wall_billing_detail_id" gorm:"type:uuid"`

	// Extra charges: itemized line items, or a legacy description/hours/rate
	// payload when no items exist.
	HasExtraCharges     bool             `json:"has_extra_charges" gorm:"default:false"`
	LegacyExtraDesc     string           `json:"legacy_extra_desc" gorm:"type:text"`
	LegacyExtraHours    decimal.Decimal  `json:"legacy_extra_hours" gorm:"type:numeric(8,2);default:0"`
	LegacyExtraBillRate *decimal.Decimal `json:"legacy_extra_bill_rate" gorm:"type:numeric(12,2)"`
	LegacyExtraSubRate  *decimal.Decimal `json:"legacy_extra_sub_rate" gorm:"type:numeric(12,2)"`
	AdditionalComments  string           `json:"additional_comments" gorm:"type:text"`
	SubmittedBy         *uuid.UUID       `json:"submitted_by" gorm:"type:uuid"`

	// Relationships
	ExtraChargeItems     []ExtraChargeItem `json:"extra_charge_items,omitempty" gorm:"foreignKey:WorkOrderID"`
	CeilingBillingDetail *BillingDetail    `json:"ceiling_billing_detail,omitempty" gorm:"foreignKey:CeilingBillingDetailID"`
}

// ExtraChargeItem is an itemized extra-charge line. Amounts, when present,
// are the persisted values and win over quantity x rate on re-save.
type ExtraChargeItem struct {
	BaseModel
	WorkOrderID uuid.UUID        `json:"work_order_id" gorm:"type:uuid;not null;index"`
	Description string           `json:"description" gorm:"size:500;not null"`
	Quantity    decimal.Decimal  `json:"quantity" gorm:"type:numeric(8,2);default:1"`
	RateBill    decimal.Decimal  `json:"rate_bill" gorm:"type:numeric(12,2);default:0"`
	RateSub     decimal.Decimal  `json:"rate_sub" gorm:"type:numeric(12,2);default:0"`
	AmountBill  *decimal.Decimal `json:"amount_bill" gorm:"type:numeric(12,2)"`
	AmountSub   *decimal.Decimal `json:"amount_sub" gorm:"type:numeric(12,2)"`
	SortOrder   int              `json:"sort_order" gorm:"default:0"`
}
