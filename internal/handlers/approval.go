// internal/handlers/approval.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/propaintco/proppaint-backend/internal/models"
	"github.com/propaintco/proppaint-backend/internal/services"
	"github.com/propaintco/proppaint-backend/internal/utils"
)

// ApprovalHandler serves the public token endpoints the emailed approval page
// talks to. No authentication; the token is the credential.
type ApprovalHandler struct {
	approvalService *services.ApprovalService
	phaseService    *services.PhaseService
	jobService      *services.JobService
}

func NewApprovalHandler(
	approvalService *services.ApprovalService,
	phaseService *services.PhaseService,
	jobService *services.JobService,
) *ApprovalHandler {
	return &ApprovalHandler{
		approvalService: approvalService,
		phaseService:    phaseService,
		jobService:      jobService,
	}
}

type decisionRequest struct {
	Approve       bool   `json:"approve"`
	DeclineReason string `json:"decline_reason,omitempty"`
}

// GET /approval/:token
// Returns what the approval page renders: the job, the charges awaiting
// approval, and the token's state.
func (h *ApprovalHandler) GetApprovalPage(c *gin.Context) {
	token, err := h.approvalService.GetByToken(c.Param("token"))
	if err != nil {
		if errors.Is(err, services.ErrTokenNotFound) {
			utils.NotFoundResponse(c, "Approval request")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	// The charges shown are the ones frozen on the token at issue time, not
	// the job's current state. Tokens issued without a snapshot fall back to
	// the live summary.
	summary := services.SummaryFromSnapshot(token.JobID, token.Snapshot)
	if summary == nil {
		summary, err = h.jobService.Summary(token.JobID)
		if err != nil {
			utils.InternalErrorResponse(c, err.Error())
			return
		}
	}

	utils.SuccessResponse(c, gin.H{
		"token":    tokenView(token),
		"job":      token.Job,
		"billing":  summary,
		"approver": gin.H{"name": token.ApproverName, "email": token.ApproverEmail},
	})
}

// POST /approval/:token
// Records the approver's decision. Approval moves the job to Work Order;
// a decline leaves it in Pending Work Order with the outcome on the audit
// trail.
func (h *ApprovalHandler) Decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	token, err := h.approvalService.Decide(c.Param("token"), req.Approve, req.DeclineReason)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTokenNotFound):
			utils.NotFoundResponse(c, "Approval request")
		case errors.Is(err, services.ErrTokenExpired):
			utils.GoneResponse(c, "This approval request has expired. Please contact the office for a new one.")
		case errors.Is(err, services.ErrTokenSuperseded):
			utils.GoneResponse(c, "This approval request is no longer active.")
		case errors.Is(err, services.ErrTokenAlreadyDecided):
			utils.ConflictResponse(c, "A decision has already been recorded for this request.")
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	if token.Status == models.ApprovalStatusApproved {
		// The job may have been moved manually since the email went out;
		// the recorded decision stands either way.
		if _, err := h.phaseService.ApproveExtraCharges(token.JobID, nil, false); err != nil &&
			!errors.Is(err, services.ErrInvalidTransition) {
			utils.InternalErrorResponse(c, err.Error())
			return
		}
	} else {
		if _, err := h.phaseService.RecordDecline(token); err != nil {
			utils.InternalErrorResponse(c, err.Error())
			return
		}
	}

	utils.SuccessResponse(c, tokenView(token))
}

// GET /jobs/:id/approval-status (authenticated)
func (h *ApprovalHandler) GetJobApprovalStatus(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	decision, token, err := h.approvalService.EffectiveDecision(id, models.ApprovalTypeExtraCharges)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	resp := gin.H{"decision": decision}
	if token != nil {
		resp["token"] = tokenView(token)
	}
	utils.SuccessResponse(c, resp)
}

func tokenView(token *models.ApprovalToken) gin.H {
	return gin.H{
		"status":         token.Status,
		"approval_type":  token.ApprovalType,
		"expires_at":     token.ExpiresAt,
		"decided_at":     token.DecidedAt,
		"decline_reason": token.DeclineReason,
		"snapshot":       token.Snapshot,
	}
}
