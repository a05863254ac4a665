// internal/services/notification_service.go
package services

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/propaintco/proppaint-backend/internal/config"
	"github.com/propaintco/proppaint-backend/internal/models"
)

var (
	ErrTemplateNotFound = errors.New("email template not found")
	ErrNoAPContact      = errors.New("property has no accounts-payable contact email")
)

// missingValue replaces any placeholder whose source field is empty.
const missingValue = "N/A"

// NotificationService composes and sends job emails. Templates are admin-
// edited subject/body text with {{placeholder}} tokens; substitution is a
// literal text replacement, not a template language, so stray braces in a
// template never break a send.
type NotificationService struct {
	db        *gorm.DB
	config    *config.Config
	approvals *ApprovalService
	jobs      *JobService
}

func NewNotificationService(db *gorm.DB, cfg *config.Config, approvals *ApprovalService, jobs *JobService) *NotificationService {
	return &NotificationService{
		db:        db,
		config:    cfg,
		approvals: approvals,
		jobs:      jobs,
	}
}

// approvalButtonHTML is appended to approval-request emails. html/template
// escapes the injected values.
var approvalButtonHTML = template.Must(template.New("approval_button").Parse(`
<div style="margin:24px 0;padding:16px;border:1px solid #ddd;border-radius:6px;">
	<p style="margin:0 0 8px 0;">Extra charges requiring approval: <strong>{{.Amount}}</strong></p>
	<a href="{{.URL}}" style="display:inline-block;padding:10px 24px;background:#2e6da4;color:#ffffff;text-decoration:none;border-radius:4px;">Review &amp; Respond</a>
	<p style="margin:8px 0 0 0;font-size:12px;color:#666;">This link expires on {{.ExpiresAt}}.</p>
</div>`))

// SendApprovalRequest emails the property's AP contact asking them to approve
// or decline the job's extra charges. An active pending token is reused;
// otherwise a fresh one is issued with a snapshot of the current charges.
func (s *NotificationService) SendApprovalRequest(jobID uuid.UUID, sentBy *uuid.UUID) (*models.ApprovalToken, error) {
	job, err := s.jobs.GetByID(jobID)
	if err != nil {
		return nil, err
	}
	if job.Property.APContactEmail == "" {
		return nil, ErrNoAPContact
	}

	summary, err := s.jobs.Summary(jobID)
	if err != nil {
		return nil, err
	}

	token, err := s.approvals.ResolvePendingToken(jobID, models.ApprovalTypeExtraCharges)
	if err != nil {
		return nil, err
	}
	if token == nil {
		token, err = s.approvals.Issue(jobID, models.ApprovalTypeExtraCharges, &IssueApprovalRequest{
			ApproverEmail: job.Property.APContactEmail,
			ApproverName:  job.Property.APContactName,
			Snapshot:      SnapshotSummary(summary),
		})
		if err != nil {
			return nil, err
		}
	}

	tmpl, err := s.templateFor(models.NotificationTypeApprovalRequest)
	if err != nil {
		return nil, err
	}

	approvalURL := s.approvals.ApprovalURL(token)
	subject, body := s.Compose(tmpl, job, summary, approvalURL)

	var button bytes.Buffer
	err = approvalButtonHTML.Execute(&button, map[string]string{
		"Amount":    "$" + summary.Totals.Bill.StringFixed(2),
		"URL":       approvalURL,
		"ExpiresAt": token.ExpiresAt.Format("January 2, 2006"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render approval button: %w", err)
	}
	body += button.String()

	if err := s.send(job, job.Property.APContactEmail, job.Property.APContactCc, subject, body, sentBy); err != nil {
		return nil, err
	}
	return token, nil
}

// SendPhaseNotification sends the template configured for the phase the job
// just entered, when one exists and is active. Missing templates are not an
// error; most phases have none.
func (s *NotificationService) SendPhaseNotification(jobID uuid.UUID, phase models.PhaseName, sentBy *uuid.UUID) error {
	job, err := s.jobs.GetByID(jobID)
	if err != nil {
		return err
	}
	if job.Property.APContactEmail == "" {
		return ErrNoAPContact
	}

	var tmpl models.EmailTemplate
	err = s.db.Where(
		"notification_type = ? AND trigger_phase = ? AND is_active = ?",
		models.NotificationTypePhaseChange, phase, true,
	).First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("database error: %w", err)
	}

	summary, err := s.jobs.Summary(jobID)
	if err != nil {
		return err
	}

	subject, body := s.Compose(&tmpl, job, summary, "")
	return s.send(job, job.Property.APContactEmail, job.Property.APContactCc, subject, body, sentBy)
}

// SendInvoice emails the invoice summary, including the hosted payment link
// when one has been created.
func (s *NotificationService) SendInvoice(jobID uuid.UUID, sentBy *uuid.UUID) error {
	job, err := s.jobs.GetByID(jobID)
	if err != nil {
		return err
	}
	if job.Property.APContactEmail == "" {
		return ErrNoAPContact
	}

	summary, err := s.jobs.Summary(jobID)
	if err != nil {
		return err
	}

	tmpl, err := s.templateFor(models.NotificationTypeInvoice)
	if err != nil {
		return err
	}

	subject, body := s.Compose(tmpl, job, summary, "")
	if job.HostedInvoiceURL != "" {
		body += fmt.Sprintf(`<p><a href="%s">Pay this invoice online</a></p>`,
			template.HTMLEscapeString(job.HostedInvoiceURL))
	}
	return s.send(job, job.Property.APContactEmail, job.Property.APContactCc, subject, body, sentBy)
}

// Compose substitutes the template placeholders from the job and its billing
// summary. Every known placeholder is always replaced; empty source values
// become "N/A" so no email ever ships with a raw {{token}} in it.
func (s *NotificationService) Compose(tmpl *models.EmailTemplate, job *models.Job, summary *BillingSummary, approvalURL string) (subject, body string) {
	scheduledDate := ""
	if job.ScheduledDate != nil {
		scheduledDate = job.ScheduledDate.Format("January 2, 2006")
	}
	subcontractorName := ""
	if job.Subcontractor != nil {
		subcontractorName = job.Subcontractor.FullName
	}
	totalAmount := ""
	if summary != nil {
		totalAmount = "$" + summary.Totals.Bill.StringFixed(2)
	}

	replacements := map[string]string{
		"property_name":      job.Property.Name,
		"property_address":   job.Property.Address,
		"unit_number":        job.UnitNumber,
		"job_number":         job.WorkOrderNum,
		"scheduled_date":     scheduledDate,
		"ap_contact_name":    job.Property.APContactName,
		"subcontractor_name": subcontractorName,
		"total_amount":       totalAmount,
		"approval_link":      approvalURL,
	}

	subject = tmpl.Subject
	body = tmpl.Body
	for key, value := range replacements {
		if value == "" {
			value = missingValue
		}
		token := "{{" + key + "}}"
		subject = strings.ReplaceAll(subject, token, value)
		body = strings.ReplaceAll(body, token, value)
	}
	return subject, body
}

func (s *NotificationService) templateFor(notificationType models.NotificationType) (*models.EmailTemplate, error) {
	var tmpl models.EmailTemplate
	err := s.db.Where("notification_type = ? AND is_active = ?", notificationType, true).
		Order("created_at").First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &tmpl, nil
}

// send delivers the email and records an EmailLog row either way; a delivery
// failure is returned after the failed attempt is logged.
func (s *NotificationService) send(job *models.Job, to, cc, subject, body string, sentBy *uuid.UUID) error {
	sendErr := s.deliver(to, cc, subject, body)

	logEntry := &models.EmailLog{
		JobID:    &job.ID,
		ToEmail:  to,
		CcEmail:  cc,
		BccEmail: s.config.Email.BccEmail,
		Subject:  subject,
		Body:     body,
		Status:   models.EmailStatusSent,
		SentBy:   sentBy,
	}
	if sendErr != nil {
		logEntry.Status = models.EmailStatusFailed
		logEntry.Error = sendErr.Error()
	}
	if err := s.db.Create(logEntry).Error; err != nil {
		logrus.WithError(err).Error("Failed to record email log")
	}

	if sendErr != nil {
		return fmt.Errorf("failed to send email: %w", sendErr)
	}

	logrus.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"to":      to,
		"subject": subject,
	}).Info("Email sent")
	return nil
}

func (s *NotificationService) deliver(to, cc, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).
			Info("SMTP not configured, skipping delivery")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	recipients := []string{to}
	headers := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\n", s.config.Email.FromName, s.config.Email.FromEmail, to)
	if cc != "" {
		headers += fmt.Sprintf("Cc: %s\r\n", cc)
		for _, addr := range strings.Split(cc, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				recipients = append(recipients, addr)
			}
		}
	}
	// Bcc recipients go on the envelope only, never in a header.
	for _, addr := range strings.Split(s.config.Email.BccEmail, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	headers += fmt.Sprintf("Subject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n", subject)

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, recipients, []byte(headers+body))
}
