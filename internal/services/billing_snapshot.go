// internal/services/billing_snapshot.go
package services

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/propaintco/proppaint-backend/internal/billing"
	"github.com/propaintco/proppaint-backend/internal/models"
	"github.com/propaintco/proppaint-backend/internal/utils"
)

// SnapshotSummary freezes a billing summary into an approval-token snapshot.
// The approval page renders from this, so what the contact approves is what
// was asked at issue time, regardless of later edits to the job.
func SnapshotSummary(summary *BillingSummary) models.JSONB {
	if summary == nil {
		return nil
	}

	raw, err := json.Marshal(map[string]interface{}{
		"lines":    summary.Lines,
		"totals":   summary.Totals,
		"warnings": summary.Warnings,
	})
	if err != nil {
		return nil
	}

	var snap models.JSONB
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil
	}
	return snap
}

// SummaryFromSnapshot rebuilds a billing summary from a token snapshot, or
// nil when the token carries none. Snapshot values are loosely typed after
// the JSONB round trip, so numerics are coerced rather than asserted.
func SummaryFromSnapshot(jobID uuid.UUID, snap models.JSONB) *BillingSummary {
	if len(snap) == 0 {
		return nil
	}

	summary := &BillingSummary{JobID: jobID}

	if rawLines, ok := snap["lines"].([]interface{}); ok {
		for _, raw := range rawLines {
			fields, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			summary.Lines = append(summary.Lines, billing.Line{
				Key:        snapshotString(fields["key"]),
				Label:      snapshotString(fields["label"]),
				Quantity:   utils.CoerceDecimal(fields["quantity"]),
				UnitLabel:  snapshotString(fields["unit_label"]),
				RateBill:   utils.CoerceDecimal(fields["rate_bill"]),
				RateSub:    utils.CoerceDecimal(fields["rate_sub"]),
				AmountBill: utils.CoerceDecimal(fields["amount_bill"]),
				AmountSub:  utils.CoerceDecimal(fields["amount_sub"]),
			})
		}
	}

	if rawWarnings, ok := snap["warnings"].([]interface{}); ok {
		for _, raw := range rawWarnings {
			if warning := snapshotString(raw); warning != "" {
				summary.Warnings = append(summary.Warnings, warning)
			}
		}
	}

	totals, _ := snap["totals"].(map[string]interface{})
	if bill, ok := utils.CoerceNullableDecimal(totals["bill_total"]); ok {
		summary.Totals.Bill = bill
		summary.Totals.SubPay = utils.CoerceDecimal(totals["sub_pay_total"])
		summary.Totals.Profit = utils.CoerceDecimal(totals["profit_total"])
	} else {
		summary.Totals = billing.Aggregate(nil, summary.Lines)
	}

	return summary
}

func snapshotString(v interface{}) string {
	s, _ := v.(string)
	return s
}
