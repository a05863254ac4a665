// internal/services/approval_service_test.go
package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/propaintco/proppaint-backend/internal/models"
)

type ApprovalServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *ApprovalService
	job     *models.Job
}

func (suite *ApprovalServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.service = newTestApprovalService(suite.db)

	property := createTestProperty(suite.T(), suite.db)
	suite.job = createTestJob(suite.T(), suite.db, property, models.PhasePendingWorkOrder, "WO-2026-0001")
}

func (suite *ApprovalServiceTestSuite) issue() *models.ApprovalToken {
	token, err := suite.service.Issue(suite.job.ID, models.ApprovalTypeExtraCharges, &IssueApprovalRequest{
		ApproverEmail: "ap@riverbend.test",
		ApproverName:  "Dana Whitfield",
	})
	require.NoError(suite.T(), err)
	return token
}

func (suite *ApprovalServiceTestSuite) TestIssueCreatesPendingToken() {
	token := suite.issue()

	assert.Equal(suite.T(), models.ApprovalStatusPending, token.Status)
	assert.True(suite.T(), strings.HasPrefix(token.Token, suite.job.ID.String()+"-"))
	assert.Len(suite.T(), strings.Split(strings.TrimPrefix(token.Token, suite.job.ID.String()+"-"), "-"), 2)

	expectedExpiry := time.Now().Add(7 * 24 * time.Hour)
	assert.WithinDuration(suite.T(), expectedExpiry, token.ExpiresAt, time.Minute)
}

func (suite *ApprovalServiceTestSuite) TestIssueRejectsInvalidEmail() {
	_, err := suite.service.Issue(suite.job.ID, models.ApprovalTypeExtraCharges, &IssueApprovalRequest{
		ApproverEmail: "not-an-email",
	})
	assert.Error(suite.T(), err)
}

func (suite *ApprovalServiceTestSuite) TestIssueBlockedWhilePendingTokenActive() {
	suite.issue()

	_, err := suite.service.Issue(suite.job.ID, models.ApprovalTypeExtraCharges, &IssueApprovalRequest{
		ApproverEmail: "ap@riverbend.test",
	})
	assert.ErrorIs(suite.T(), err, ErrPendingApprovalExists)
}

func (suite *ApprovalServiceTestSuite) TestIssueAllowedAfterExpiry() {
	first := suite.issue()
	require.NoError(suite.T(), suite.db.Model(first).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	second := suite.issue()
	assert.NotEqual(suite.T(), first.ID, second.ID)
}

func (suite *ApprovalServiceTestSuite) TestDecideApproveIsTerminal() {
	token := suite.issue()

	decided, err := suite.service.Decide(token.Token, true, "")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ApprovalStatusApproved, decided.Status)
	assert.NotNil(suite.T(), decided.DecidedAt)

	_, err = suite.service.Decide(token.Token, false, "changed my mind")
	assert.ErrorIs(suite.T(), err, ErrTokenAlreadyDecided)
}

func (suite *ApprovalServiceTestSuite) TestDecideDeclineKeepsReason() {
	token := suite.issue()

	decided, err := suite.service.Decide(token.Token, false, "charges too high")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ApprovalStatusDeclined, decided.Status)
	assert.Equal(suite.T(), "charges too high", decided.DeclineReason)
}

func (suite *ApprovalServiceTestSuite) TestDecideExpiredToken() {
	token := suite.issue()
	require.NoError(suite.T(), suite.db.Model(token).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	_, err := suite.service.Decide(token.Token, true, "")
	assert.ErrorIs(suite.T(), err, ErrTokenExpired)
}

func (suite *ApprovalServiceTestSuite) TestDecideSupersededToken() {
	token := suite.issue()
	require.NoError(suite.T(), suite.db.Model(token).
		Update("superseded_at", time.Now()).Error)

	_, err := suite.service.Decide(token.Token, true, "")
	assert.ErrorIs(suite.T(), err, ErrTokenSuperseded)
}

func (suite *ApprovalServiceTestSuite) TestDecideUnknownToken() {
	_, err := suite.service.Decide("no-such-token", true, "")
	assert.ErrorIs(suite.T(), err, ErrTokenNotFound)
}

func (suite *ApprovalServiceTestSuite) TestEffectiveDecisionDefaultsToPending() {
	status, token, err := suite.service.EffectiveDecision(suite.job.ID, models.ApprovalTypeExtraCharges)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ApprovalStatusPending, status)
	assert.Nil(suite.T(), token)
}

func (suite *ApprovalServiceTestSuite) TestEffectiveDecisionFollowsLatestToken() {
	token := suite.issue()
	_, err := suite.service.Decide(token.Token, false, "not approved")
	require.NoError(suite.T(), err)

	status, decided, err := suite.service.EffectiveDecision(suite.job.ID, models.ApprovalTypeExtraCharges)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ApprovalStatusDeclined, status)
	require.NotNil(suite.T(), decided)
	assert.Equal(suite.T(), token.ID, decided.ID)
}

func (suite *ApprovalServiceTestSuite) TestSupersededDecisionNoLongerCounts() {
	token := suite.issue()
	_, err := suite.service.Decide(token.Token, false, "")
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.db.Model(token).
		Update("superseded_at", time.Now()).Error)

	status, decided, err := suite.service.EffectiveDecision(suite.job.ID, models.ApprovalTypeExtraCharges)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ApprovalStatusPending, status)
	assert.Nil(suite.T(), decided)
}

func (suite *ApprovalServiceTestSuite) TestApprovalURL() {
	token := suite.issue()
	url := suite.service.ApprovalURL(token)
	assert.Equal(suite.T(), "http://localhost:3000/approval/"+token.Token, url)
}

func (suite *ApprovalServiceTestSuite) TestSweepExpiredFlagsOnce() {
	token := suite.issue()
	require.NoError(suite.T(), suite.db.Model(token).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	flagged, err := suite.service.SweepExpired(time.Now())
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, flagged)

	var notifications []models.AdminNotification
	require.NoError(suite.T(), suite.db.Where("type = ?", models.NotificationTypeApprovalExpired).
		Find(&notifications).Error)
	require.Len(suite.T(), notifications, 1)
	assert.Contains(suite.T(), notifications[0].Message, suite.job.WorkOrderNum)

	flagged, err = suite.service.SweepExpired(time.Now())
	require.NoError(suite.T(), err)
	assert.Zero(suite.T(), flagged)
}

func (suite *ApprovalServiceTestSuite) TestSweepIgnoresDecidedTokens() {
	token := suite.issue()
	_, err := suite.service.Decide(token.Token, true, "")
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.db.Model(token).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	flagged, err := suite.service.SweepExpired(time.Now())
	require.NoError(suite.T(), err)
	assert.Zero(suite.T(), flagged)
}

func TestApprovalServiceSuite(t *testing.T) {
	suite.Run(t, new(ApprovalServiceTestSuite))
}
