// internal/services/notification_service_test.go
package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/propaintco/proppaint-backend/internal/config"
	"github.com/propaintco/proppaint-backend/internal/events"
	"github.com/propaintco/proppaint-backend/internal/models"
)

type NotificationServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	cfg      *config.Config
	service  *NotificationService
	property *models.Property
	job      *models.Job
}

func (suite *NotificationServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())

	cfg := testConfig()
	suite.cfg = cfg
	broker := events.NewBroker()
	approvals := NewApprovalService(suite.db, cfg, broker)
	storage, err := NewStorageService(suite.db, cfg)
	require.NoError(suite.T(), err)
	jobs := NewJobService(suite.db, storage, broker)
	suite.service = NewNotificationService(suite.db, cfg, approvals, jobs)

	suite.property = createTestProperty(suite.T(), suite.db)
	suite.job = createTestJob(suite.T(), suite.db, suite.property, models.PhasePendingWorkOrder, "WO-2026-0001")
	workOrder := createTestWorkOrder(suite.T(), suite.db, suite.job.ID, true)
	createTestExtraChargeItem(suite.T(), suite.db, workOrder.ID, "Drywall patch", "2", "40.00", "25.00")
}

func (suite *NotificationServiceTestSuite) createApprovalTemplate() {
	tmpl := &models.EmailTemplate{
		Name:             "Extra Charges Approval",
		NotificationType: models.NotificationTypeApprovalRequest,
		Subject:          "Approval needed for {{property_name}} unit {{unit_number}}",
		Body:             "<p>{{ap_contact_name}}, job {{job_number}} has extra charges totaling {{total_amount}}.</p>",
		IsActive:         true,
	}
	require.NoError(suite.T(), suite.db.Create(tmpl).Error)
}

func (suite *NotificationServiceTestSuite) TestSendApprovalRequest() {
	suite.createApprovalTemplate()

	token, err := suite.service.SendApprovalRequest(suite.job.ID, nil)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), token)
	assert.Equal(suite.T(), models.ApprovalStatusPending, token.Status)
	assert.Equal(suite.T(), suite.property.APContactEmail, token.ApproverEmail)

	var logs []models.EmailLog
	require.NoError(suite.T(), suite.db.Where("job_id = ?", suite.job.ID).Find(&logs).Error)
	require.Len(suite.T(), logs, 1)
	assert.Equal(suite.T(), models.EmailStatusSent, logs[0].Status)
	assert.Equal(suite.T(), suite.property.APContactEmail, logs[0].ToEmail)
	assert.Equal(suite.T(), "Approval needed for Riverbend Apartments unit 101", logs[0].Subject)
	assert.Contains(suite.T(), logs[0].Body, "$80.00")
	assert.Contains(suite.T(), logs[0].Body, "http://localhost:3000/approval/"+token.Token)
	assert.NotContains(suite.T(), logs[0].Body, "{{")
}

func (suite *NotificationServiceTestSuite) TestBccRecordedOnEmailLog() {
	suite.createApprovalTemplate()
	suite.cfg.Email.BccEmail = "archive@proppaint.test"

	_, err := suite.service.SendApprovalRequest(suite.job.ID, nil)
	require.NoError(suite.T(), err)

	var log models.EmailLog
	require.NoError(suite.T(), suite.db.Where("job_id = ?", suite.job.ID).First(&log).Error)
	assert.Equal(suite.T(), "archive@proppaint.test", log.BccEmail)
	// The bcc address rides the envelope only; the stored body carries no
	// trace of it.
	assert.NotContains(suite.T(), log.Body, "archive@proppaint.test")
}

func (suite *NotificationServiceTestSuite) TestSnapshotFreezesChargesAtIssueTime() {
	suite.createApprovalTemplate()

	token, err := suite.service.SendApprovalRequest(suite.job.ID, nil)
	require.NoError(suite.T(), err)

	frozen := SummaryFromSnapshot(suite.job.ID, token.Snapshot)
	require.NotNil(suite.T(), frozen)
	require.Len(suite.T(), frozen.Lines, 1)
	assert.Equal(suite.T(), "Drywall patch", frozen.Lines[0].Label)
	assert.True(suite.T(), frozen.Totals.Bill.Equal(decimal.RequireFromString("80.00")))

	// Inflate the charge after issuance; the frozen summary must not move.
	require.NoError(suite.T(), suite.db.Model(&models.ExtraChargeItem{}).
		Where("description = ?", "Drywall patch").
		Update("rate_bill", decimal.RequireFromString("400.00")).Error)

	live, err := suite.service.jobs.Summary(suite.job.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), live.Totals.Bill.Equal(decimal.RequireFromString("800.00")))

	var stored models.ApprovalToken
	require.NoError(suite.T(), suite.db.First(&stored, "id = ?", token.ID).Error)
	frozen = SummaryFromSnapshot(suite.job.ID, stored.Snapshot)
	require.NotNil(suite.T(), frozen)
	assert.True(suite.T(), frozen.Totals.Bill.Equal(decimal.RequireFromString("80.00")))
}

func (suite *NotificationServiceTestSuite) TestResendReusesPendingToken() {
	suite.createApprovalTemplate()

	first, err := suite.service.SendApprovalRequest(suite.job.ID, nil)
	require.NoError(suite.T(), err)

	second, err := suite.service.SendApprovalRequest(suite.job.ID, nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), first.ID, second.ID)

	var count int64
	require.NoError(suite.T(), suite.db.Model(&models.EmailLog{}).
		Where("job_id = ?", suite.job.ID).Count(&count).Error)
	assert.EqualValues(suite.T(), 2, count)
}

func (suite *NotificationServiceTestSuite) TestSendApprovalRequestWithoutTemplate() {
	_, err := suite.service.SendApprovalRequest(suite.job.ID, nil)
	assert.ErrorIs(suite.T(), err, ErrTemplateNotFound)
}

func (suite *NotificationServiceTestSuite) TestSendApprovalRequestWithoutAPContact() {
	require.NoError(suite.T(), suite.db.Model(suite.property).
		Update("ap_contact_email", "").Error)

	_, err := suite.service.SendApprovalRequest(suite.job.ID, nil)
	assert.ErrorIs(suite.T(), err, ErrNoAPContact)
}

func (suite *NotificationServiceTestSuite) TestPhaseNotificationWithoutTemplateIsSilent() {
	err := suite.service.SendPhaseNotification(suite.job.ID, models.PhaseCompleted, nil)
	assert.NoError(suite.T(), err)

	var count int64
	require.NoError(suite.T(), suite.db.Model(&models.EmailLog{}).Count(&count).Error)
	assert.Zero(suite.T(), count)
}

func (suite *NotificationServiceTestSuite) TestPhaseNotificationUsesTriggerPhaseTemplate() {
	tmpl := &models.EmailTemplate{
		Name:             "Job Completed",
		NotificationType: models.NotificationTypePhaseChange,
		TriggerPhase:     models.PhaseCompleted,
		Subject:          "Unit {{unit_number}} at {{property_name}} is complete",
		Body:             "<p>Work on unit {{unit_number}} finished.</p>",
		IsActive:         true,
	}
	require.NoError(suite.T(), suite.db.Create(tmpl).Error)

	require.NoError(suite.T(), suite.service.SendPhaseNotification(suite.job.ID, models.PhaseCompleted, nil))

	var logs []models.EmailLog
	require.NoError(suite.T(), suite.db.Find(&logs).Error)
	require.Len(suite.T(), logs, 1)
	assert.Equal(suite.T(), "Unit 101 at Riverbend Apartments is complete", logs[0].Subject)
}

func (suite *NotificationServiceTestSuite) TestSendInvoiceIncludesHostedLink() {
	tmpl := &models.EmailTemplate{
		Name:             "Invoice",
		NotificationType: models.NotificationTypeInvoice,
		Subject:          "Invoice {{job_number}}",
		Body:             "<p>Amount due: {{total_amount}}</p>",
		IsActive:         true,
	}
	require.NoError(suite.T(), suite.db.Create(tmpl).Error)
	require.NoError(suite.T(), suite.db.Model(suite.job).
		Update("hosted_invoice_url", "https://pay.example.test/inv_123").Error)

	require.NoError(suite.T(), suite.service.SendInvoice(suite.job.ID, nil))

	var logs []models.EmailLog
	require.NoError(suite.T(), suite.db.Find(&logs).Error)
	require.Len(suite.T(), logs, 1)
	assert.Contains(suite.T(), logs[0].Body, "https://pay.example.test/inv_123")
	assert.Contains(suite.T(), logs[0].Body, "$80.00")
}

func (suite *NotificationServiceTestSuite) TestComposeFillsMissingValuesWithNA() {
	job := &models.Job{
		WorkOrderNum: "WO-2026-0002",
		Property:     models.Property{Name: "Riverbend Apartments"},
	}
	tmpl := &models.EmailTemplate{
		Subject: "{{property_name}} unit {{unit_number}}",
		Body:    "Scheduled {{scheduled_date}} with {{subcontractor_name}}, contact {{ap_contact_name}}",
	}

	subject, body := suite.service.Compose(tmpl, job, nil, "")
	assert.Equal(suite.T(), "Riverbend Apartments unit N/A", subject)
	assert.Equal(suite.T(), "Scheduled N/A with N/A, contact N/A", body)
}

func (suite *NotificationServiceTestSuite) TestComposeLeavesUnknownTokensAlone() {
	job := &models.Job{WorkOrderNum: "WO-2026-0003", Property: models.Property{Name: "Riverbend"}}
	tmpl := &models.EmailTemplate{
		Subject: "Job {{job_number}}",
		Body:    "Custom {{unknown_token}} stays",
	}

	subject, body := suite.service.Compose(tmpl, job, nil, "")
	assert.Equal(suite.T(), "Job WO-2026-0003", subject)
	assert.Contains(suite.T(), body, "{{unknown_token}}")
}

func TestNotificationServiceSuite(t *testing.T) {
	suite.Run(t, new(NotificationServiceTestSuite))
}
