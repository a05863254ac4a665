// internal/models/billing.go
package models

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Well-known rate-card category and variant labels used by the line resolver.
const (
	CategoryPaintedCeilings       = "Painted Ceilings"
	CategoryAccentWall            = "Accent Wall"
	VariantPaintIndividualCeiling = "Paint Individual Ceiling"
	CategoryHourly                = "Hourly"
)

type BillingCategory struct {
	BaseModel
	Name      string `json:"name" gorm:"uniqueIndex;size:100;not null"`
	SortOrder int    `json:"sort_order" gorm:"default:0"`
}

// BillingDetail is a rate-card row scoped to (property, category, unit size or
// service variant). Invariant enforced at write time: hourly rows store no
// profit; non-hourly rows store profit = bill - sub pay.
type BillingDetail struct {
	BaseModel
	PropertyID     uuid.UUID        `json:"property_id" gorm:"type:uuid;not null;index"`
	CategoryID     uuid.UUID        `json:"category_id" gorm:"type:uuid;not null;index"`
	UnitSizeID     *uuid.UUID       `json:"unit_size_id" gorm:"type:uuid"`
	ServiceVariant string           `json:"service_variant" gorm:"size:150"`
	BillAmount     decimal.Decimal  `json:"bill_amount" gorm:"type:numeric(12,2);not null"`
	SubPayAmount   decimal.Decimal  `json:"sub_pay_amount" gorm:"type:numeric(12,2);not null"`
	ProfitAmount   *decimal.Decimal `json:"profit_amount" gorm:"type:numeric(12,2)"`
	IsHourly       bool             `json:"is_hourly" gorm:"default:false"`

	// Relationships
	Property Property        `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
	Category BillingCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	UnitSize *UnitSize       `json:"unit_size,omitempty" gorm:"foreignKey:UnitSizeID"`
}

var ErrHourlyProfit = errors.New("hourly billing details must not carry a profit amount")

func (d *BillingDetail) BeforeSave(tx *gorm.DB) error {
	if d.IsHourly {
		if d.ProfitAmount != nil && !d.ProfitAmount.IsZero() {
			return ErrHourlyProfit
		}
		d.ProfitAmount = nil
		return nil
	}

	profit := d.BillAmount.Sub(d.SubPayAmount)
	d.ProfitAmount = &profit
	return nil
}

// JobBillingLine is a base-billing selection on a job: a rate-card row plus a
// quantity, summed before any supplemental (ceiling/accent/extra) lines.
type JobBillingLine struct {
	BaseModel
	JobID           uuid.UUID `json:"job_id" gorm:"type:uuid;not null;index"`
	BillingDetailID uuid.UUID `json:"billing_detail_id" gorm:"type:uuid;not null"`
	Quantity        int       `json:"quantity" gorm:"default:1"`

	// Relationships
	BillingDetail BillingDetail `json:"billing_detail,omitempty" gorm:"foreignKey:BillingDetailID"`
}
