// internal/billing/resolver.go
package billing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/propaintco/proppaint-backend/internal/models"
)

const (
	WarnCeilingRateMissing = "Painted Ceilings rate missing in Property Billing."
	WarnAccentRateMissing  = "Accent Wall rate missing in Property Billing."
	WarnHourlyRateMissing  = "Extra charges hourly rate missing in Property Billing."
)

// Resolver turns a work order's declarative flags into billable lines by
// looking up the property's rate card. A missing rate is a soft failure: the
// line is omitted and a warning string reported, so a charge is never
// silently invented.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// ResolveLines resolves the ceiling, accent-wall, and extra-charge lines for
// a job's work order. The job's Property and HourlyBillingDetail references
// are read from the row, not trusted from the argument's preloads.
func (r *Resolver) ResolveLines(job *models.Job, wo *models.WorkOrder) ([]Line, []string, error) {
	if wo == nil {
		return nil, nil, nil
	}

	var lines []Line
	var warnings []string

	ceiling, warn, err := r.resolveCeilingLine(job, wo)
	if err != nil {
		return nil, nil, err
	}
	if warn != "" {
		warnings = append(warnings, warn)
	}
	if ceiling != nil {
		lines = append(lines, *ceiling)
	}

	accent, warn, err := r.resolveAccentLine(job, wo)
	if err != nil {
		return nil, nil, err
	}
	if warn != "" {
		warnings = append(warnings, warn)
	}
	if accent != nil {
		lines = append(lines, *accent)
	}

	extraLines, warn, err := r.resolveExtraChargeLines(job, wo)
	if err != nil {
		return nil, nil, err
	}
	if warn != "" {
		warnings = append(warnings, warn)
	}
	lines = append(lines, extraLines...)

	return lines, warnings, nil
}

func (r *Resolver) resolveCeilingLine(job *models.Job, wo *models.WorkOrder) (*Line, string, error) {
	if !wo.PaintedCeilings {
		return nil, "", nil
	}

	detail, err := r.lookupDetail(wo.CeilingBillingDetailID, func() (*models.BillingDetail, error) {
		label := wo.CeilingUnitSizeLabel
		if wo.CeilingMode == models.CeilingModeIndividual || label == "" {
			label = models.VariantPaintIndividualCeiling
		}
		return r.findByCategoryAndLabel(job.PropertyID, models.CategoryPaintedCeilings, label)
	})
	if err != nil {
		return nil, "", err
	}
	if detail == nil {
		return nil, WarnCeilingRateMissing, nil
	}

	quantity := decimal.NewFromInt(1)
	unitLabel := wo.CeilingUnitSizeLabel
	if wo.CeilingMode == models.CeilingModeIndividual {
		count := wo.CeilingIndividualCount
		if count < 1 {
			count = 1
		}
		quantity = decimal.NewFromInt(int64(count))
		unitLabel = models.VariantPaintIndividualCeiling
	}

	line := newLine("painted_ceilings", models.CategoryPaintedCeilings, quantity, unitLabel, detail)
	return &line, "", nil
}

func (r *Resolver) resolveAccentLine(job *models.Job, wo *models.WorkOrder) (*Line, string, error) {
	if !wo.HasAccentWall {
		return nil, "", nil
	}

	detail, err := r.lookupDetail(wo.AccentWallBillingDetailID, func() (*models.BillingDetail, error) {
		// Category preference: "Accent Wall - {type}", "Accent Wall ({type})",
		// then the bare category. The type is an explicit stored field, never
		// inferred from the rate amount.
		var names []string
		if wo.AccentWallType != "" {
			names = append(names,
				fmt.Sprintf("%s - %s", models.CategoryAccentWall, wo.AccentWallType),
				fmt.Sprintf("%s (%s)", models.CategoryAccentWall, wo.AccentWallType),
			)
		}
		names = append(names, models.CategoryAccentWall)

		for _, name := range names {
			detail, err := r.findByCategoryAndLabel(job.PropertyID, name, "")
			if err != nil {
				return nil, err
			}
			if detail != nil {
				return detail, nil
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, "", err
	}
	if detail == nil {
		return nil, WarnAccentRateMissing, nil
	}

	count := wo.AccentWallCount
	if count < 1 {
		count = 1
	}

	label := models.CategoryAccentWall
	if wo.AccentWallType != "" {
		label = fmt.Sprintf("%s - %s", models.CategoryAccentWall, wo.AccentWallType)
	}

	line := newLine("accent_wall", label, decimal.NewFromInt(int64(count)), "wall", detail)
	return &line, "", nil
}

func (r *Resolver) resolveExtraChargeLines(job *models.Job, wo *models.WorkOrder) ([]Line, string, error) {
	if !wo.HasExtraCharges {
		return nil, "", nil
	}

	items, err := r.loadExtraChargeItems(wo.ID)
	if err != nil {
		return nil, "", err
	}

	if len(items) > 0 {
		lines := make([]Line, 0, len(items))
		for i, item := range items {
			lines = append(lines, resolveItemLine(i, item))
		}
		return lines, "", nil
	}

	// Legacy payload: description/hours/rate, rate falling back to the job's
	// hourly rate-card row when the record lacks its own.
	return r.resolveLegacyLine(job, wo)
}

func resolveItemLine(index int, item models.ExtraChargeItem) Line {
	amountBill := item.Quantity.Mul(item.RateBill)
	amountSub := item.Quantity.Mul(item.RateSub)

	// A precomputed amount wins over quantity x rate, keeping re-saves
	// idempotent.
	if item.AmountBill != nil {
		amountBill = *item.AmountBill
	}
	if item.AmountSub != nil {
		amountSub = *item.AmountSub
	}

	return Line{
		Key:        fmt.Sprintf("extra_charge_%d", index+1),
		Label:      item.Description,
		Quantity:   item.Quantity,
		UnitLabel:  "item",
		RateBill:   item.RateBill,
		RateSub:    item.RateSub,
		AmountBill: amountBill,
		AmountSub:  amountSub,
	}
}

func (r *Resolver) resolveLegacyLine(job *models.Job, wo *models.WorkOrder) ([]Line, string, error) {
	if wo.LegacyExtraHours.LessThanOrEqual(decimal.Zero) {
		return nil, "", nil
	}

	billRate := wo.LegacyExtraBillRate
	subRate := wo.LegacyExtraSubRate

	if billRate == nil || subRate == nil {
		hourly, err := r.loadHourlyDetail(job)
		if err != nil {
			return nil, "", err
		}
		if hourly != nil {
			if billRate == nil {
				billRate = &hourly.BillAmount
			}
			if subRate == nil {
				subRate = &hourly.SubPayAmount
			}
		}
	}

	if billRate == nil {
		return nil, WarnHourlyRateMissing, nil
	}

	sub := decimal.Zero
	if subRate != nil {
		sub = *subRate
	}

	label := wo.LegacyExtraDesc
	if label == "" {
		label = "Extra charges"
	}

	line := Line{
		Key:        "extra_charges_hourly",
		Label:      label,
		Quantity:   wo.LegacyExtraHours,
		UnitLabel:  "hour",
		RateBill:   *billRate,
		RateSub:    sub,
		AmountBill: wo.LegacyExtraHours.Mul(*billRate),
		AmountSub:  wo.LegacyExtraHours.Mul(sub),
	}
	return []Line{line}, "", nil
}

func newLine(key, label string, quantity decimal.Decimal, unitLabel string, detail *models.BillingDetail) Line {
	return Line{
		Key:        key,
		Label:      label,
		Quantity:   quantity,
		UnitLabel:  unitLabel,
		RateBill:   detail.BillAmount,
		RateSub:    detail.SubPayAmount,
		AmountBill: detail.BillAmount.Mul(quantity),
		AmountSub:  detail.SubPayAmount.Mul(quantity),
	}
}

// lookupDetail prefers a direct rate-card reference stored on the work order,
// falling back to the supplied rate-card search.
func (r *Resolver) lookupDetail(refID *uuid.UUID, search func() (*models.BillingDetail, error)) (*models.BillingDetail, error) {
	if refID != nil {
		var detail models.BillingDetail
		err := r.db.First(&detail, "id = ?", *refID).Error
		if err == nil {
			return &detail, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load billing detail: %w", err)
		}
		// Stale reference: fall through to the rate-card search.
	}
	return search()
}

func (r *Resolver) findByCategoryAndLabel(propertyID uuid.UUID, categoryName, label string) (*models.BillingDetail, error) {
	query := r.db.Model(&models.BillingDetail{}).
		Joins("JOIN billing_categories ON billing_categories.id = billing_details.category_id").
		Where("billing_details.property_id = ? AND billing_categories.name = ?", propertyID, categoryName)

	if label != "" {
		query = query.
			Joins("LEFT JOIN unit_sizes ON unit_sizes.id = billing_details.unit_size_id").
			Where("unit_sizes.label = ? OR billing_details.service_variant = ?", label, label)
	}

	var detail models.BillingDetail
	if err := query.First(&detail).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search billing details: %w", err)
	}
	return &detail, nil
}

func (r *Resolver) loadExtraChargeItems(workOrderID uuid.UUID) ([]models.ExtraChargeItem, error) {
	var items []models.ExtraChargeItem
	if err := r.db.Where("work_order_id = ?", workOrderID).
		Order("sort_order, created_at").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load extra charge items: %w", err)
	}
	return items, nil
}

func (r *Resolver) loadHourlyDetail(job *models.Job) (*models.BillingDetail, error) {
	if job.HourlyBillingDetailID != nil {
		var detail models.BillingDetail
		err := r.db.First(&detail, "id = ?", *job.HourlyBillingDetailID).Error
		if err == nil {
			return &detail, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load hourly billing detail: %w", err)
		}
	}
	return r.findByCategoryAndLabel(job.PropertyID, models.CategoryHourly, "")
}
