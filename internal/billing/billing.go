// internal/billing/billing.go
package billing

import (
	"github.com/shopspring/decimal"

	"github.com/propaintco/proppaint-backend/internal/models"
)

// Line is a resolved billable line: a supplemental charge (ceiling, accent
// wall) or an extra-charge item, normalized to bill/sub-pay rates and amounts.
type Line struct {
	Key        string          `json:"key"`
	Label      string          `json:"label"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitLabel  string          `json:"unit_label"`
	RateBill   decimal.Decimal `json:"rate_bill"`
	RateSub    decimal.Decimal `json:"rate_sub"`
	AmountBill decimal.Decimal `json:"amount_bill"`
	AmountSub  decimal.Decimal `json:"amount_sub"`
}

type Totals struct {
	Bill   decimal.Decimal `json:"bill_total"`
	SubPay decimal.Decimal `json:"sub_pay_total"`
	Profit decimal.Decimal `json:"profit_total"`
}

// Aggregate sums base billing selections and resolved lines. Profit is always
// recomputed as bill - sub pay, never read from a stored value. Summation is
// commutative, so line order never changes the result, and absent sections
// simply contribute nothing.
func Aggregate(baseLines []models.JobBillingLine, lines []Line) Totals {
	bill := decimal.Zero
	subPay := decimal.Zero

	for _, base := range baseLines {
		qty := decimal.NewFromInt(int64(base.Quantity))
		if base.Quantity < 1 {
			qty = decimal.NewFromInt(1)
		}
		bill = bill.Add(base.BillingDetail.BillAmount.Mul(qty))
		subPay = subPay.Add(base.BillingDetail.SubPayAmount.Mul(qty))
	}

	for _, line := range lines {
		bill = bill.Add(line.AmountBill)
		subPay = subPay.Add(line.AmountSub)
	}

	return Totals{
		Bill:   bill,
		SubPay: subPay,
		Profit: bill.Sub(subPay),
	}
}
