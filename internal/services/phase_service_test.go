// internal/services/phase_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/propaintco/proppaint-backend/internal/models"
)

type PhaseServiceTestSuite struct {
	suite.Suite
	db        *gorm.DB
	approvals *ApprovalService
	service   *PhaseService
	property  *models.Property
}

func (suite *PhaseServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.approvals = newTestApprovalService(suite.db)
	suite.service = NewPhaseService(suite.db, suite.approvals, suite.approvals.broker)
	suite.property = createTestProperty(suite.T(), suite.db)
}

func (suite *PhaseServiceTestSuite) createJob(phase models.PhaseName) *models.Job {
	return createTestJob(suite.T(), suite.db, suite.property, phase, "WO-2026-0001")
}

// reloadPhase reads the job's phase back from the database, so assertions
// cover the persisted row rather than the instance the service returned.
func (suite *PhaseServiceTestSuite) reloadPhase(job *models.Job) models.PhaseName {
	var stored models.Job
	require.NoError(suite.T(), suite.db.Preload("Phase").
		First(&stored, "id = ?", job.ID).Error)
	return stored.Phase.Name
}

func (suite *PhaseServiceTestSuite) phaseChanges(job *models.Job) []models.JobPhaseChange {
	var changes []models.JobPhaseChange
	require.NoError(suite.T(), suite.db.Where("job_id = ?", job.ID).
		Order("created_at").Find(&changes).Error)
	return changes
}

func (suite *PhaseServiceTestSuite) TestSubmitWithoutWorkOrder() {
	job := suite.createJob(models.PhaseJobRequest)

	_, err := suite.service.SubmitWorkOrder(job.ID, nil)
	assert.ErrorIs(suite.T(), err, ErrWorkOrderRequired)
}

func (suite *PhaseServiceTestSuite) TestSubmitWithoutExtraChargesGoesToWorkOrder() {
	job := suite.createJob(models.PhaseJobRequest)
	createTestWorkOrder(suite.T(), suite.db, job.ID, false)

	updated, err := suite.service.SubmitWorkOrder(job.ID, nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PhaseWorkOrder, updated.Phase.Name)
	assert.Equal(suite.T(), models.PhaseWorkOrder, suite.reloadPhase(job))
}

func (suite *PhaseServiceTestSuite) TestSubmitWithExtraChargesGoesToPendingApproval() {
	job := suite.createJob(models.PhaseJobRequest)
	createTestWorkOrder(suite.T(), suite.db, job.ID, true)

	updated, err := suite.service.SubmitWorkOrder(job.ID, nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PhasePendingWorkOrder, updated.Phase.Name)
	assert.Equal(suite.T(), models.PhasePendingWorkOrder, suite.reloadPhase(job))
}

func (suite *PhaseServiceTestSuite) TestSubmitOnlyFromJobRequest() {
	job := suite.createJob(models.PhaseWorkOrder)
	createTestWorkOrder(suite.T(), suite.db, job.ID, false)

	_, err := suite.service.SubmitWorkOrder(job.ID, nil)
	assert.ErrorIs(suite.T(), err, ErrInvalidTransition)
}

func (suite *PhaseServiceTestSuite) TestAdvanceWalksNavigablePhases() {
	job := suite.createJob(models.PhaseWorkOrder)

	updated, err := suite.service.Advance(job.ID, nil, "")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PhaseInvoicing, updated.Phase.Name)
	assert.Equal(suite.T(), models.PhaseInvoicing, suite.reloadPhase(job))

	updated, err = suite.service.Advance(job.ID, nil, "")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PhaseCompleted, updated.Phase.Name)
	assert.Equal(suite.T(), models.PhaseCompleted, suite.reloadPhase(job))

	_, err = suite.service.Advance(job.ID, nil, "")
	assert.ErrorIs(suite.T(), err, ErrNoFurtherPhase)
}

func (suite *PhaseServiceTestSuite) TestRevertWalksBackwards() {
	job := suite.createJob(models.PhaseInvoicing)

	updated, err := suite.service.Revert(job.ID, nil, "billing correction")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PhaseWorkOrder, updated.Phase.Name)
	assert.Equal(suite.T(), models.PhaseWorkOrder, suite.reloadPhase(job))

	changes := suite.phaseChanges(updated)
	require.Len(suite.T(), changes, 1)
	assert.Equal(suite.T(), "billing correction", changes[0].Reason)
}

func (suite *PhaseServiceTestSuite) TestRevertBelowFirstNavigablePhase() {
	job := suite.createJob(models.PhaseJobRequest)

	_, err := suite.service.Revert(job.ID, nil, "")
	assert.ErrorIs(suite.T(), err, ErrNoFurtherPhase)
}

func (suite *PhaseServiceTestSuite) TestStepFromNonNavigablePhase() {
	job := suite.createJob(models.PhasePendingWorkOrder)

	_, err := suite.service.Advance(job.ID, nil, "")
	assert.ErrorIs(suite.T(), err, ErrInvalidTransition)
}

func (suite *PhaseServiceTestSuite) TestApproveExtraChargesRecordsDecision() {
	job := suite.createJob(models.PhasePendingWorkOrder)

	updated, err := suite.service.ApproveExtraCharges(job.ID, nil, false)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PhaseWorkOrder, updated.Phase.Name)
	assert.Equal(suite.T(), models.PhaseWorkOrder, suite.reloadPhase(job))

	changes := suite.phaseChanges(updated)
	require.Len(suite.T(), changes, 1)
	assert.Equal(suite.T(), models.PhaseDecisionApproved, changes[0].Decision)
}

func (suite *PhaseServiceTestSuite) TestManualApprovalNotesOverride() {
	job := suite.createJob(models.PhasePendingWorkOrder)

	updated, err := suite.service.ApproveExtraCharges(job.ID, nil, true)
	require.NoError(suite.T(), err)

	changes := suite.phaseChanges(updated)
	require.Len(suite.T(), changes, 1)
	assert.Contains(suite.T(), changes[0].Reason, "manual override")
}

func (suite *PhaseServiceTestSuite) TestApproveOnlyFromPendingWorkOrder() {
	job := suite.createJob(models.PhaseWorkOrder)

	_, err := suite.service.ApproveExtraCharges(job.ID, nil, false)
	assert.ErrorIs(suite.T(), err, ErrInvalidTransition)
}

func (suite *PhaseServiceTestSuite) TestRecordDeclineKeepsPhase() {
	job := suite.createJob(models.PhasePendingWorkOrder)
	token := &models.ApprovalToken{
		JobID:         job.ID,
		Token:         "test-token",
		ApproverEmail: "ap@riverbend.test",
		ExpiresAt:     time.Now().Add(time.Hour),
		Status:        models.ApprovalStatusDeclined,
		DeclineReason: "too expensive",
	}
	require.NoError(suite.T(), suite.db.Create(token).Error)

	updated, err := suite.service.RecordDecline(token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PhasePendingWorkOrder, updated.Phase.Name)
	assert.Equal(suite.T(), models.PhasePendingWorkOrder, suite.reloadPhase(job))

	changes := suite.phaseChanges(updated)
	require.Len(suite.T(), changes, 1)
	assert.Equal(suite.T(), models.PhaseDecisionDeclined, changes[0].Decision)
	assert.Contains(suite.T(), changes[0].Reason, "too expensive")
	assert.Equal(suite.T(), changes[0].ToPhaseID, updated.PhaseID)
}

func (suite *PhaseServiceTestSuite) TestCancelRequiresDeclinedDecision() {
	job := suite.createJob(models.PhasePendingWorkOrder)

	_, err := suite.service.CancelFromDecline(job.ID, nil, "")
	assert.ErrorIs(suite.T(), err, ErrDeclineRequired)
}

func (suite *PhaseServiceTestSuite) declineViaToken(job *models.Job) {
	token, err := suite.approvals.Issue(job.ID, models.ApprovalTypeExtraCharges, &IssueApprovalRequest{
		ApproverEmail: "ap@riverbend.test",
	})
	require.NoError(suite.T(), err)
	_, err = suite.approvals.Decide(token.Token, false, "declined by contact")
	require.NoError(suite.T(), err)
}

func (suite *PhaseServiceTestSuite) TestCancelAfterDecline() {
	job := suite.createJob(models.PhasePendingWorkOrder)
	suite.declineViaToken(job)

	updated, err := suite.service.CancelFromDecline(job.ID, nil, "")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PhaseCancelled, updated.Phase.Name)
	assert.Equal(suite.T(), models.PhaseCancelled, suite.reloadPhase(job))
}

func (suite *PhaseServiceTestSuite) TestReactivateSupersedesTokens() {
	job := suite.createJob(models.PhasePendingWorkOrder)
	suite.declineViaToken(job)

	_, err := suite.service.CancelFromDecline(job.ID, nil, "")
	require.NoError(suite.T(), err)

	updated, err := suite.service.Reactivate(job.ID, nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PhasePendingWorkOrder, updated.Phase.Name)
	assert.Equal(suite.T(), models.PhasePendingWorkOrder, suite.reloadPhase(job))

	status, decided, err := suite.approvals.EffectiveDecision(job.ID, models.ApprovalTypeExtraCharges)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ApprovalStatusPending, status)
	assert.Nil(suite.T(), decided)
}

func (suite *PhaseServiceTestSuite) TestReactivateOnlyFromCancelled() {
	job := suite.createJob(models.PhaseWorkOrder)

	_, err := suite.service.Reactivate(job.ID, nil)
	assert.ErrorIs(suite.T(), err, ErrInvalidTransition)
}

func (suite *PhaseServiceTestSuite) TestArchiveFromAnyPhase() {
	job := suite.createJob(models.PhaseCompleted)

	updated, err := suite.service.Archive(job.ID, nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PhaseArchived, updated.Phase.Name)
	assert.Equal(suite.T(), models.PhaseArchived, suite.reloadPhase(job))

	_, err = suite.service.Archive(job.ID, nil)
	assert.ErrorIs(suite.T(), err, ErrInvalidTransition)
}

func (suite *PhaseServiceTestSuite) TestMarkInvoiceSentRequiresInvoicingPhase() {
	job := suite.createJob(models.PhaseWorkOrder)

	_, err := suite.service.MarkInvoiceSent(job.ID, "")
	assert.ErrorIs(suite.T(), err, ErrInvoicePhaseOnly)
}

func (suite *PhaseServiceTestSuite) TestMarkInvoicePaidCompletesJob() {
	job := suite.createJob(models.PhaseInvoicing)

	_, err := suite.service.MarkInvoicePaid(job.ID, nil)
	assert.ErrorIs(suite.T(), err, ErrInvoiceNotSent)

	_, err = suite.service.MarkInvoiceSent(job.ID, "https://pay.example.test/inv_123")
	require.NoError(suite.T(), err)

	updated, err := suite.service.MarkInvoicePaid(job.ID, nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PhaseCompleted, updated.Phase.Name)
	assert.Equal(suite.T(), models.PhaseCompleted, suite.reloadPhase(job))
	assert.True(suite.T(), updated.InvoicePaid)
	assert.NotNil(suite.T(), updated.InvoicePaidAt)

	var stored models.Job
	require.NoError(suite.T(), suite.db.First(&stored, "id = ?", job.ID).Error)
	assert.True(suite.T(), stored.InvoicePaid)
	assert.Equal(suite.T(), "https://pay.example.test/inv_123", stored.HostedInvoiceURL)
}

func (suite *PhaseServiceTestSuite) TestEveryTransitionWritesOneAuditRow() {
	job := suite.createJob(models.PhaseWorkOrder)

	_, err := suite.service.Advance(job.ID, nil, "")
	require.NoError(suite.T(), err)
	_, err = suite.service.Revert(job.ID, nil, "")
	require.NoError(suite.T(), err)

	changes := suite.phaseChanges(job)
	assert.Len(suite.T(), changes, 2)
}

func (suite *PhaseServiceTestSuite) TestHistoryNewestFirst() {
	job := suite.createJob(models.PhaseWorkOrder)

	_, err := suite.service.Advance(job.ID, nil, "")
	require.NoError(suite.T(), err)
	_, err = suite.service.Advance(job.ID, nil, "")
	require.NoError(suite.T(), err)

	history, err := suite.service.History(job.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), history, 2)
	assert.Equal(suite.T(), models.PhaseCompleted, history[0].ToPhase.Name)
	assert.Equal(suite.T(), models.PhaseInvoicing, history[1].ToPhase.Name)
}

func TestPhaseServiceSuite(t *testing.T) {
	suite.Run(t, new(PhaseServiceTestSuite))
}
