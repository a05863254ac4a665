// internal/services/approval_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/propaintco/proppaint-backend/internal/config"
	"github.com/propaintco/proppaint-backend/internal/database"
	"github.com/propaintco/proppaint-backend/internal/events"
	"github.com/propaintco/proppaint-backend/internal/models"
	"github.com/propaintco/proppaint-backend/internal/utils"
)

var (
	ErrPendingApprovalExists = errors.New("an active approval request already exists for this job")
	ErrTokenNotFound         = errors.New("approval token not found")
	ErrTokenExpired          = errors.New("approval token has expired")
	ErrTokenSuperseded       = errors.New("approval token has been superseded")
	ErrTokenAlreadyDecided   = errors.New("approval token has already been decided")
)

type ApprovalService struct {
	db     *gorm.DB
	cfg    *config.Config
	broker *events.Broker
}

type IssueApprovalRequest struct {
	ApproverEmail string       `json:"approver_email" validate:"required,email"`
	ApproverName  string       `json:"approver_name,omitempty"`
	Snapshot      models.JSONB `json:"snapshot,omitempty"`
}

func NewApprovalService(db *gorm.DB, cfg *config.Config, broker *events.Broker) *ApprovalService {
	return &ApprovalService{
		db:     db,
		cfg:    cfg,
		broker: broker,
	}
}

// Issue creates a pending approval token for the job, refusing while an
// unexpired undecided token exists for the same (job, approval type). The
// extra-charges payload is snapshotted so the approval page renders what was
// asked, not whatever the job looks like later.
func (s *ApprovalService) Issue(jobID uuid.UUID, approvalType models.ApprovalType, req *IssueApprovalRequest) (*models.ApprovalToken, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var job models.Job
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("job not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	pending, err := s.ResolvePendingToken(jobID, approvalType)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, ErrPendingApprovalExists
	}

	tokenString, err := s.generateTokenString(jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	token := &models.ApprovalToken{
		JobID:         jobID,
		ApprovalType:  approvalType,
		Token:         tokenString,
		Snapshot:      req.Snapshot,
		ApproverName:  req.ApproverName,
		ApproverEmail: req.ApproverEmail,
		ExpiresAt:     time.Now().Add(time.Duration(s.cfg.Approval.TokenTTLDays) * 24 * time.Hour),
		Status:        models.ApprovalStatusPending,
	}

	if err := s.db.Create(token).Error; err != nil {
		// The partial unique index closes the race two concurrent sends
		// would otherwise win together.
		if database.IsUniqueViolation(err) {
			return nil, ErrPendingApprovalExists
		}
		return nil, fmt.Errorf("failed to create approval token: %w", err)
	}

	s.broker.Publish(events.Event{Entity: "approval_token", EntityID: token.ID, JobID: jobID, Action: "issued"})

	logrus.WithFields(logrus.Fields{
		"job_id":     jobID,
		"token_id":   token.ID,
		"expires_at": token.ExpiresAt,
	}).Info("Approval token issued")

	return token, nil
}

// GetByToken loads a token with the job context the external approval page
// renders from.
func (s *ApprovalService) GetByToken(tokenString string) (*models.ApprovalToken, error) {
	var token models.ApprovalToken
	if err := s.db.Preload("Job").Preload("Job.Property").Preload("Job.Phase").
		Preload("Job.WorkOrder").Preload("Job.WorkOrder.ExtraChargeItems").
		Where("token = ?", tokenString).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &token, nil
}

// Decide records the approve/decline outcome on a token. A token's decision,
// once set, is never overwritten; re-approval requires a fresh token.
func (s *ApprovalService) Decide(tokenString string, approve bool, declineReason string) (*models.ApprovalToken, error) {
	token, err := s.GetByToken(tokenString)
	if err != nil {
		return nil, err
	}

	if token.IsDecided() {
		return nil, ErrTokenAlreadyDecided
	}
	if token.SupersededAt != nil {
		return nil, ErrTokenSuperseded
	}
	if token.IsExpired(time.Now()) {
		return nil, ErrTokenExpired
	}

	now := time.Now()
	token.DecidedAt = &now
	if approve {
		token.Status = models.ApprovalStatusApproved
	} else {
		token.Status = models.ApprovalStatusDeclined
		token.DeclineReason = declineReason
	}

	if err := s.db.Save(token).Error; err != nil {
		return nil, fmt.Errorf("failed to record decision: %w", err)
	}

	s.broker.Publish(events.Event{Entity: "approval_token", EntityID: token.ID, JobID: token.JobID, Action: string(token.Status)})

	logrus.WithFields(logrus.Fields{
		"job_id":   token.JobID,
		"token_id": token.ID,
		"status":   token.Status,
	}).Info("Approval decision recorded")

	return token, nil
}

// ResolveLatestDecision returns the most recently decided, non-superseded
// token for the job, or nil when no decision has been recorded. Nil is
// distinct from a declined outcome.
func (s *ApprovalService) ResolveLatestDecision(jobID uuid.UUID, approvalType models.ApprovalType) (*models.ApprovalToken, error) {
	var token models.ApprovalToken
	err := s.db.Where(
		"job_id = ? AND approval_type = ? AND status IN (?, ?) AND superseded_at IS NULL",
		jobID, approvalType, models.ApprovalStatusApproved, models.ApprovalStatusDeclined,
	).Order("decided_at DESC").First(&token).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &token, nil
}

// ResolvePendingToken returns the unexpired, undecided, non-superseded token
// for the job if one exists. Used to block duplicate approval emails and to
// drive the countdown display.
func (s *ApprovalService) ResolvePendingToken(jobID uuid.UUID, approvalType models.ApprovalType) (*models.ApprovalToken, error) {
	var token models.ApprovalToken
	err := s.db.Where(
		"job_id = ? AND approval_type = ? AND status = ? AND superseded_at IS NULL AND expires_at > ?",
		jobID, approvalType, models.ApprovalStatusPending, time.Now(),
	).Order("created_at DESC").First(&token).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &token, nil
}

// EffectiveDecision is what the job screens show: the latest token decision,
// or pending when none exists. The token is the sole source of truth; audit
// row text is never consulted.
func (s *ApprovalService) EffectiveDecision(jobID uuid.UUID, approvalType models.ApprovalType) (models.ApprovalStatus, *models.ApprovalToken, error) {
	decided, err := s.ResolveLatestDecision(jobID, approvalType)
	if err != nil {
		return "", nil, err
	}
	if decided != nil {
		return decided.Status, decided, nil
	}
	return models.ApprovalStatusPending, nil, nil
}

// ApprovalURL builds the link the recipient clicks, served by the external
// approval page.
func (s *ApprovalService) ApprovalURL(token *models.ApprovalToken) string {
	return fmt.Sprintf("%s/%s", s.cfg.Approval.PageBaseURL, token.Token)
}

// SweepExpired flags tokens that expired while still undecided, creating one
// admin notification per token. Safe to run repeatedly.
func (s *ApprovalService) SweepExpired(now time.Time) (int, error) {
	var tokens []models.ApprovalToken
	if err := s.db.Preload("Job").Where(
		"status = ? AND superseded_at IS NULL AND expiry_notice_sent_at IS NULL AND expires_at <= ?",
		models.ApprovalStatusPending, now,
	).Find(&tokens).Error; err != nil {
		return 0, fmt.Errorf("failed to query expired tokens: %w", err)
	}

	flagged := 0
	for i := range tokens {
		token := &tokens[i]
		err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
			notification := &models.AdminNotification{
				Type:                models.NotificationTypeApprovalExpired,
				Title:               "Approval request expired",
				Message:             fmt.Sprintf("Extra charges approval for job %s expired on %s without a decision", token.Job.WorkOrderNum, token.ExpiresAt.Format("Jan 2, 2006")),
				Priority:            "high",
				RelatedResourceType: "approval_token",
				RelatedResourceID:   &token.ID,
			}
			if err := tx.Create(notification).Error; err != nil {
				return fmt.Errorf("failed to create notification: %w", err)
			}
			return tx.Model(token).Update("expiry_notice_sent_at", now).Error
		})
		if err != nil {
			logrus.WithError(err).WithField("token_id", token.ID).Error("Failed to flag expired approval token")
			continue
		}
		flagged++
	}

	return flagged, nil
}

// Token format: {jobID}-{unixMillis}-{randomSuffix}. External approval pages
// already parse this shape, so it stays.
func (s *ApprovalService) generateTokenString(jobID uuid.UUID) (string, error) {
	suffix, err := utils.GenerateTokenSuffix()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%s", jobID, time.Now().UnixMilli(), suffix), nil
}
