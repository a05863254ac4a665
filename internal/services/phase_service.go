// internal/services/phase_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/propaintco/proppaint-backend/internal/database"
	"github.com/propaintco/proppaint-backend/internal/events"
	"github.com/propaintco/proppaint-backend/internal/models"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrPhaseNotFound     = errors.New("phase not found")
	ErrInvalidTransition = errors.New("transition not allowed from the job's current phase")
	ErrNoFurtherPhase    = errors.New("no further phase in this direction")
	ErrWorkOrderRequired = errors.New("job has no work order to submit")
	ErrDeclineRequired   = errors.New("job's extra charges have not been declined")
	ErrInvoicePhaseOnly  = errors.New("invoice actions are only allowed in the Invoicing phase")
	ErrInvoiceNotSent    = errors.New("invoice has not been sent")
)

// PhaseService is the job lifecycle state machine. Every transition updates
// the job's phase and appends exactly one audit row in the same transaction.
type PhaseService struct {
	db        *gorm.DB
	approvals *ApprovalService
	broker    *events.Broker
}

func NewPhaseService(db *gorm.DB, approvals *ApprovalService, broker *events.Broker) *PhaseService {
	return &PhaseService{
		db:        db,
		approvals: approvals,
		broker:    broker,
	}
}

// Advance moves the job to the next phase in the ordered navigable list.
// Pending Work Order, Cancelled, and Archived are not on that list; they are
// reached only by named actions.
func (s *PhaseService) Advance(jobID uuid.UUID, changedBy *uuid.UUID, reason string) (*models.Job, error) {
	return s.step(jobID, changedBy, reason, +1)
}

// Revert moves the job to the previous phase in the ordered navigable list.
func (s *PhaseService) Revert(jobID uuid.UUID, changedBy *uuid.UUID, reason string) (*models.Job, error) {
	return s.step(jobID, changedBy, reason, -1)
}

func (s *PhaseService) step(jobID uuid.UUID, changedBy *uuid.UUID, reason string, direction int) (*models.Job, error) {
	var job *models.Job
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		job, err = s.loadJob(tx, jobID)
		if err != nil {
			return err
		}

		ordered, err := s.navigablePhases(tx)
		if err != nil {
			return err
		}

		index := -1
		for i, phase := range ordered {
			if phase.ID == job.PhaseID {
				index = i
				break
			}
		}
		if index < 0 {
			return ErrInvalidTransition
		}

		target := index + direction
		if target < 0 || target >= len(ordered) {
			return ErrNoFurtherPhase
		}

		if reason == "" {
			if direction > 0 {
				reason = "advanced to next phase"
			} else {
				reason = "reverted to previous phase"
			}
		}

		return s.transition(tx, job, &ordered[target], changedBy, reason, models.PhaseDecisionNone)
	})
	if err != nil {
		return nil, err
	}

	s.publishPhaseChange(job)
	return job, nil
}

// SubmitWorkOrder moves a Job Request forward once its work order is filled
// in: to Pending Work Order when the work order carries extra charges that
// need approval, directly to Work Order otherwise.
func (s *PhaseService) SubmitWorkOrder(jobID uuid.UUID, changedBy *uuid.UUID) (*models.Job, error) {
	var job *models.Job
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		job, err = s.loadJob(tx, jobID)
		if err != nil {
			return err
		}

		if job.Phase.Name != models.PhaseJobRequest {
			return ErrInvalidTransition
		}

		var workOrder models.WorkOrder
		if err := tx.Where("job_id = ?", jobID).First(&workOrder).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWorkOrderRequired
			}
			return fmt.Errorf("database error: %w", err)
		}

		targetName := models.PhaseWorkOrder
		reason := "work order submitted"
		if workOrder.HasExtraCharges {
			targetName = models.PhasePendingWorkOrder
			reason = "work order submitted, extra charges pending approval"
		}

		target, err := s.phaseByName(tx, targetName)
		if err != nil {
			return err
		}
		return s.transition(tx, job, target, changedBy, reason, models.PhaseDecisionNone)
	})
	if err != nil {
		return nil, err
	}

	s.publishPhaseChange(job)
	return job, nil
}

// ApproveExtraCharges moves Pending Work Order to Work Order, recording the
// approval on the audit row. The token decision itself is recorded by the
// approval service; manual override approvals arrive here without a token.
func (s *PhaseService) ApproveExtraCharges(jobID uuid.UUID, changedBy *uuid.UUID, manual bool) (*models.Job, error) {
	var job *models.Job
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		job, err = s.loadJob(tx, jobID)
		if err != nil {
			return err
		}

		if job.Phase.Name != models.PhasePendingWorkOrder {
			return ErrInvalidTransition
		}

		reason := "extra charges approved"
		if manual {
			reason = "extra charges approved by manual override"
		}

		target, err := s.phaseByName(tx, models.PhaseWorkOrder)
		if err != nil {
			return err
		}
		return s.transition(tx, job, target, changedBy, reason, models.PhaseDecisionApproved)
	})
	if err != nil {
		return nil, err
	}

	s.publishPhaseChange(job)
	return job, nil
}

// RecordDecline appends the declined outcome to the audit trail without
// moving the job; the job stays in Pending Work Order until someone resends,
// overrides, or cancels.
func (s *PhaseService) RecordDecline(token *models.ApprovalToken) (*models.Job, error) {
	var job *models.Job
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		job, err = s.loadJob(tx, token.JobID)
		if err != nil {
			return err
		}

		reason := "extra charges declined"
		if token.DeclineReason != "" {
			reason = fmt.Sprintf("extra charges declined: %s", token.DeclineReason)
		}

		change := &models.JobPhaseChange{
			JobID:       job.ID,
			FromPhaseID: &job.PhaseID,
			ToPhaseID:   job.PhaseID,
			Reason:      reason,
			Decision:    models.PhaseDecisionDeclined,
		}
		if err := tx.Create(change).Error; err != nil {
			return fmt.Errorf("failed to create audit row: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishPhaseChange(job)
	return job, nil
}

// CancelFromDecline cancels the job; only reachable after a decline.
func (s *PhaseService) CancelFromDecline(jobID uuid.UUID, changedBy *uuid.UUID, reason string) (*models.Job, error) {
	decision, _, err := s.approvals.EffectiveDecision(jobID, models.ApprovalTypeExtraCharges)
	if err != nil {
		return nil, err
	}
	if decision != models.ApprovalStatusDeclined {
		return nil, ErrDeclineRequired
	}

	var job *models.Job
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		job, err = s.loadJob(tx, jobID)
		if err != nil {
			return err
		}

		if job.Phase.Terminal {
			return ErrInvalidTransition
		}

		if reason == "" {
			reason = "cancelled after extra charges decline"
		}

		target, err := s.phaseByName(tx, models.PhaseCancelled)
		if err != nil {
			return err
		}
		return s.transition(tx, job, target, changedBy, reason, models.PhaseDecisionNone)
	})
	if err != nil {
		return nil, err
	}

	s.publishPhaseChange(job)
	return job, nil
}

// Reactivate returns a cancelled job to Pending Work Order and supersedes all
// of its approval tokens, so the effective decision drops back to pending and
// a fresh approval cycle can run.
func (s *PhaseService) Reactivate(jobID uuid.UUID, changedBy *uuid.UUID) (*models.Job, error) {
	var job *models.Job
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		job, err = s.loadJob(tx, jobID)
		if err != nil {
			return err
		}

		if job.Phase.Name != models.PhaseCancelled {
			return ErrInvalidTransition
		}

		now := time.Now()
		if err := tx.Model(&models.ApprovalToken{}).
			Where("job_id = ? AND superseded_at IS NULL", jobID).
			Update("superseded_at", now).Error; err != nil {
			return fmt.Errorf("failed to supersede approval tokens: %w", err)
		}

		target, err := s.phaseByName(tx, models.PhasePendingWorkOrder)
		if err != nil {
			return err
		}
		return s.transition(tx, job, target, changedBy, "job reactivated", models.PhaseDecisionNone)
	})
	if err != nil {
		return nil, err
	}

	s.publishPhaseChange(job)
	return job, nil
}

// Archive parks a job in the Archived side-state.
func (s *PhaseService) Archive(jobID uuid.UUID, changedBy *uuid.UUID) (*models.Job, error) {
	var job *models.Job
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		job, err = s.loadJob(tx, jobID)
		if err != nil {
			return err
		}

		if job.Phase.Name == models.PhaseArchived {
			return ErrInvalidTransition
		}

		target, err := s.phaseByName(tx, models.PhaseArchived)
		if err != nil {
			return err
		}
		return s.transition(tx, job, target, changedBy, "job archived", models.PhaseDecisionNone)
	})
	if err != nil {
		return nil, err
	}

	s.publishPhaseChange(job)
	return job, nil
}

// MarkInvoiceSent flags the invoice as sent. Invoicing phase only; the phase
// itself does not change, so no audit row is written.
func (s *PhaseService) MarkInvoiceSent(jobID uuid.UUID, hostedInvoiceURL string) (*models.Job, error) {
	job, err := s.loadJob(s.db, jobID)
	if err != nil {
		return nil, err
	}

	if job.Phase.Name != models.PhaseInvoicing {
		return nil, ErrInvoicePhaseOnly
	}

	now := time.Now()
	updates := map[string]interface{}{
		"invoice_sent":    true,
		"invoice_sent_at": now,
	}
	if hostedInvoiceURL != "" {
		updates["hosted_invoice_url"] = hostedInvoiceURL
	}

	if err := s.db.Model(job).Omit(clause.Associations).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to mark invoice sent: %w", err)
	}

	s.broker.Publish(events.Event{Entity: "job", EntityID: job.ID, JobID: job.ID, Action: "invoice_sent"})
	return job, nil
}

// MarkInvoicePaid flags the invoice as paid and auto-advances Invoicing to
// Completed.
func (s *PhaseService) MarkInvoicePaid(jobID uuid.UUID, changedBy *uuid.UUID) (*models.Job, error) {
	var job *models.Job
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		job, err = s.loadJob(tx, jobID)
		if err != nil {
			return err
		}

		if job.Phase.Name != models.PhaseInvoicing {
			return ErrInvoicePhaseOnly
		}
		if !job.InvoiceSent {
			return ErrInvoiceNotSent
		}

		now := time.Now()
		if err := tx.Model(job).Omit(clause.Associations).Updates(map[string]interface{}{
			"invoice_paid":    true,
			"invoice_paid_at": now,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark invoice paid: %w", err)
		}
		job.InvoicePaid = true
		job.InvoicePaidAt = &now

		target, err := s.phaseByName(tx, models.PhaseCompleted)
		if err != nil {
			return err
		}
		return s.transition(tx, job, target, changedBy, "invoice paid", models.PhaseDecisionNone)
	})
	if err != nil {
		return nil, err
	}

	s.publishPhaseChange(job)
	return job, nil
}

// History returns the audit trail, newest first.
func (s *PhaseService) History(jobID uuid.UUID) ([]models.JobPhaseChange, error) {
	var changes []models.JobPhaseChange
	if err := s.db.Preload("FromPhase").Preload("ToPhase").
		Where("job_id = ?", jobID).Order("created_at DESC").
		Find(&changes).Error; err != nil {
		return nil, fmt.Errorf("failed to load phase history: %w", err)
	}
	return changes, nil
}

// transition updates the job's phase and appends the audit row. Callers hold
// the transaction; the two writes commit or roll back together.
func (s *PhaseService) transition(tx *gorm.DB, job *models.Job, to *models.JobPhase, changedBy *uuid.UUID, reason string, decision models.PhaseDecision) error {
	from := job.PhaseID

	// The update targets the bare table; updating through the loaded job
	// would save its preloaded Phase association and write the old phase
	// back.
	if err := tx.Model(&models.Job{}).Where("id = ?", job.ID).
		Update("phase_id", to.ID).Error; err != nil {
		return fmt.Errorf("failed to update job phase: %w", err)
	}

	change := &models.JobPhaseChange{
		JobID:       job.ID,
		FromPhaseID: &from,
		ToPhaseID:   to.ID,
		ChangedBy:   changedBy,
		Reason:      reason,
		Decision:    decision,
	}
	if err := tx.Create(change).Error; err != nil {
		return fmt.Errorf("failed to create audit row: %w", err)
	}

	job.PhaseID = to.ID
	job.Phase = *to

	logrus.WithFields(logrus.Fields{
		"job_id": job.ID,
		"to":     to.Name,
		"reason": reason,
	}).Info("Job phase transition")

	return nil
}

func (s *PhaseService) publishPhaseChange(job *models.Job) {
	if job == nil {
		return
	}
	s.broker.Publish(events.Event{Entity: "job", EntityID: job.ID, JobID: job.ID, Action: "phase_changed"})
}

func (s *PhaseService) loadJob(tx *gorm.DB, jobID uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := tx.Preload("Phase").First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &job, nil
}

func (s *PhaseService) phaseByName(tx *gorm.DB, name models.PhaseName) (*models.JobPhase, error) {
	var phase models.JobPhase
	if err := tx.Where("name = ?", name).First(&phase).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &phase, nil
}

func (s *PhaseService) navigablePhases(tx *gorm.DB) ([]models.JobPhase, error) {
	var phases []models.JobPhase
	if err := tx.Where("navigable = ?", true).Order("sequence").Find(&phases).Error; err != nil {
		return nil, fmt.Errorf("failed to load phase catalog: %w", err)
	}
	return phases, nil
}
