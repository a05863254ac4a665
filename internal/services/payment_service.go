// internal/services/payment_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/customer"
	"github.com/stripe/stripe-go/v74/invoice"
	"github.com/stripe/stripe-go/v74/invoiceitem"
	"gorm.io/gorm"

	"github.com/propaintco/proppaint-backend/internal/config"
	"github.com/propaintco/proppaint-backend/internal/models"
)

var ErrStripeNotConfigured = errors.New("payment provider not configured")

// PaymentService creates hosted Stripe invoices for jobs. Without a secret
// key it is a no-op and invoices are handled outside the system.
type PaymentService struct {
	db     *gorm.DB
	config *config.Config
}

func NewPaymentService(db *gorm.DB, cfg *config.Config) *PaymentService {
	stripe.Key = cfg.Payment.StripeSecretKey

	return &PaymentService{
		db:     db,
		config: cfg,
	}
}

func (s *PaymentService) Enabled() bool {
	return s.config.Payment.StripeSecretKey != ""
}

// CreateHostedInvoice creates a send_invoice Stripe invoice for the job's
// billed total and returns its hosted payment URL. The customer is matched
// by the AP contact email, created on first use.
func (s *PaymentService) CreateHostedInvoice(job *models.Job, summary *BillingSummary) (string, error) {
	if !s.Enabled() {
		return "", ErrStripeNotConfigured
	}
	if job.Property.APContactEmail == "" {
		return "", ErrNoAPContact
	}

	cust, err := s.findOrCreateCustomer(&job.Property)
	if err != nil {
		return "", err
	}

	for _, line := range summary.Lines {
		itemParams := &stripe.InvoiceItemParams{
			Customer:    stripe.String(cust.ID),
			Amount:      stripe.Int64(toCents(line.AmountBill)),
			Currency:    stripe.String(string(stripe.CurrencyUSD)),
			Description: stripe.String(line.Label),
		}
		if _, err := invoiceitem.New(itemParams); err != nil {
			return "", fmt.Errorf("failed to create invoice item: %w", err)
		}
	}

	invoiceParams := &stripe.InvoiceParams{
		Customer:         stripe.String(cust.ID),
		CollectionMethod: stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DaysUntilDue:     stripe.Int64(int64(s.config.Payment.InvoiceDueDays)),
		Description:      stripe.String(fmt.Sprintf("Work Order %s, Unit %s", job.WorkOrderNum, job.UnitNumber)),
	}
	invoiceParams.AddMetadata("job_id", job.ID.String())
	invoiceParams.AddMetadata("work_order_num", job.WorkOrderNum)

	inv, err := invoice.New(invoiceParams)
	if err != nil {
		return "", fmt.Errorf("failed to create invoice: %w", err)
	}

	finalized, err := invoice.FinalizeInvoice(inv.ID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to finalize invoice: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"invoice_id": finalized.ID,
		"total":      summary.Totals.Bill.StringFixed(2),
	}).Info("Hosted invoice created")

	return finalized.HostedInvoiceURL, nil
}

func (s *PaymentService) findOrCreateCustomer(property *models.Property) (*stripe.Customer, error) {
	searchParams := &stripe.CustomerSearchParams{}
	searchParams.Query = fmt.Sprintf("email:'%s'", property.APContactEmail)

	iter := customer.Search(searchParams)
	for iter.Next() {
		return iter.Customer(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}

	created, err := customer.New(&stripe.CustomerParams{
		Name:  stripe.String(property.Name),
		Email: stripe.String(property.APContactEmail),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return created, nil
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
