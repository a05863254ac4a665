// internal/services/billing_snapshot_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propaintco/proppaint-backend/internal/billing"
	"github.com/propaintco/proppaint-backend/internal/models"
)

func snapshotFixture() *BillingSummary {
	return &BillingSummary{
		JobID: uuid.New(),
		Lines: []billing.Line{
			{
				Key:        "extra_charge_1",
				Label:      "Drywall patch",
				Quantity:   decimal.NewFromInt(2),
				UnitLabel:  "item",
				RateBill:   decimal.RequireFromString("40.00"),
				RateSub:    decimal.RequireFromString("25.00"),
				AmountBill: decimal.RequireFromString("80.00"),
				AmountSub:  decimal.RequireFromString("50.00"),
			},
		},
		Totals: billing.Totals{
			Bill:   decimal.RequireFromString("80.00"),
			SubPay: decimal.RequireFromString("50.00"),
			Profit: decimal.RequireFromString("30.00"),
		},
		Warnings: []string{billing.WarnAccentRateMissing},
	}
}

func TestSnapshotSummaryRoundTrip(t *testing.T) {
	source := snapshotFixture()

	snap := SnapshotSummary(source)
	require.NotEmpty(t, snap)

	restored := SummaryFromSnapshot(source.JobID, snap)
	require.NotNil(t, restored)
	assert.Equal(t, source.JobID, restored.JobID)

	require.Len(t, restored.Lines, 1)
	assert.Equal(t, "Drywall patch", restored.Lines[0].Label)
	assert.Equal(t, "item", restored.Lines[0].UnitLabel)
	assert.True(t, restored.Lines[0].Quantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, restored.Lines[0].AmountBill.Equal(decimal.RequireFromString("80.00")))
	assert.True(t, restored.Lines[0].AmountSub.Equal(decimal.RequireFromString("50.00")))

	assert.True(t, restored.Totals.Bill.Equal(source.Totals.Bill))
	assert.True(t, restored.Totals.SubPay.Equal(source.Totals.SubPay))
	assert.True(t, restored.Totals.Profit.Equal(source.Totals.Profit))
	assert.Equal(t, source.Warnings, restored.Warnings)
}

func TestSummaryFromSnapshotRecomputesMissingTotals(t *testing.T) {
	source := snapshotFixture()
	snap := SnapshotSummary(source)
	delete(snap, "totals")

	restored := SummaryFromSnapshot(source.JobID, snap)
	require.NotNil(t, restored)
	assert.True(t, restored.Totals.Bill.Equal(decimal.RequireFromString("80.00")))
	assert.True(t, restored.Totals.SubPay.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, restored.Totals.Profit.Equal(decimal.RequireFromString("30.00")))
}

func TestSummaryFromSnapshotToleratesMalformedLines(t *testing.T) {
	restored := SummaryFromSnapshot(uuid.New(), models.JSONB{
		"lines": []interface{}{
			"not-a-line",
			map[string]interface{}{
				"label":       "Odd entry",
				"quantity":    "not-a-number",
				"amount_bill": "15.50",
			},
		},
	})
	require.NotNil(t, restored)
	require.Len(t, restored.Lines, 1)
	assert.True(t, restored.Lines[0].Quantity.IsZero())
	assert.True(t, restored.Lines[0].AmountBill.Equal(decimal.RequireFromString("15.50")))
	assert.True(t, restored.Totals.Bill.Equal(decimal.RequireFromString("15.50")))
}

func TestSummaryFromSnapshotNilCases(t *testing.T) {
	assert.Nil(t, SummaryFromSnapshot(uuid.New(), nil))
	assert.Nil(t, SummaryFromSnapshot(uuid.New(), models.JSONB{}))
	assert.Nil(t, SnapshotSummary(nil))
}
