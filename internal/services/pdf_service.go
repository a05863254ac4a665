// internal/services/pdf_service.go
package services

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/propaintco/proppaint-backend/internal/models"
)

// PDFService renders a job's work order and billing summary to a printable
// document.
type PDFService struct {
	jobs *JobService
}

func NewPDFService(jobs *JobService) *PDFService {
	return &PDFService{jobs: jobs}
}

// RenderJobSummary produces the work-order PDF: header, property and unit
// details, checked services, the resolved billing lines, and the totals.
func (s *PDFService) RenderJobSummary(jobID uuid.UUID) ([]byte, string, error) {
	job, err := s.jobs.GetByID(jobID)
	if err != nil {
		return nil, "", err
	}
	summary, err := s.jobs.Summary(jobID)
	if err != nil {
		return nil, "", err
	}

	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Work Order "+job.WorkOrderNum)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	writeField(pdf, "Property", job.Property.Name)
	writeField(pdf, "Address", job.Property.Address)
	writeField(pdf, "Unit", job.UnitNumber)
	if job.ScheduledDate != nil {
		writeField(pdf, "Scheduled", job.ScheduledDate.Format("January 2, 2006"))
	}
	if job.Subcontractor != nil {
		writeField(pdf, "Subcontractor", job.Subcontractor.FullName)
	}
	writeField(pdf, "Phase", string(job.Phase.Name))
	pdf.Ln(4)

	if job.WorkOrder != nil {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, "Services")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 10)
		for _, service := range selectedServices(job) {
			pdf.CellFormat(0, 6, "- "+service, "", 1, "L", false, 0, "")
		}
		if job.WorkOrder.AdditionalComments != "" {
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "I", 10)
			pdf.MultiCell(0, 5, "Comments: "+job.WorkOrder.AdditionalComments, "", "L", false)
			pdf.SetFont("Helvetica", "", 10)
		}
		pdf.Ln(4)
	}

	s.writeBillingTable(pdf, summary)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to render PDF: %w", err)
	}

	fileName := fmt.Sprintf("%s.pdf", job.WorkOrderNum)
	return buf.Bytes(), fileName, nil
}

func (s *PDFService) writeBillingTable(pdf *gofpdf.Fpdf, summary *BillingSummary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Billing")
	pdf.Ln(8)

	const (
		colDesc = 100
		colQty  = 20
		colRate = 30
		colAmt  = 35
	)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(colDesc, 7, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colQty, 7, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(colRate, 7, "Rate", "1", 0, "R", true, 0, "")
	pdf.CellFormat(colAmt, 7, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range summary.Lines {
		label := line.Label
		if line.UnitLabel != "" {
			label = fmt.Sprintf("%s (%s)", label, line.UnitLabel)
		}
		pdf.CellFormat(colDesc, 7, label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(colQty, 7, line.Quantity.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colRate, 7, money(line.RateBill), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colAmt, 7, money(line.AmountBill), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(colDesc+colQty+colRate, 7, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(colAmt, 7, money(summary.Totals.Bill), "1", 1, "R", false, 0, "")

	if len(summary.Warnings) > 0 {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(160, 80, 0)
		for _, warning := range summary.Warnings {
			pdf.CellFormat(0, 5, warning, "", 1, "L", false, 0, "")
		}
		pdf.SetTextColor(0, 0, 0)
	}
}

func writeField(pdf *gofpdf.Fpdf, label, value string) {
	if value == "" {
		value = "N/A"
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(35, 6, label+":", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
}

func selectedServices(job *models.Job) []string {
	wo := job.WorkOrder
	services := []string{}
	add := func(selected bool, name string) {
		if selected {
			services = append(services, name)
		}
	}
	add(wo.FullPaint, "Full Paint")
	add(wo.Occupied, "Occupied Unit")
	add(wo.PaintedPatio, "Patio")
	add(wo.PaintedGarage, "Garage")
	add(wo.PaintedCabinets, "Cabinets")
	add(wo.PaintedCrownMolding, "Crown Molding")
	add(wo.PaintedFrontDoor, "Front Door")
	if wo.PaintedCeilings {
		if wo.CeilingMode == models.CeilingModeIndividual {
			services = append(services, fmt.Sprintf("Painted Ceilings (%d individual)", wo.CeilingIndividualCount))
		} else {
			services = append(services, "Painted Ceilings")
		}
	}
	if wo.HasAccentWall {
		label := "Accent Wall"
		if wo.AccentWallType != "" {
			label = fmt.Sprintf("Accent Wall - %s", wo.AccentWallType)
		}
		if wo.AccentWallCount > 1 {
			label = fmt.Sprintf("%s x%d", label, wo.AccentWallCount)
		}
		services = append(services, label)
	}
	if len(services) == 0 {
		services = append(services, "No services selected")
	}
	return services
}

func money(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}
