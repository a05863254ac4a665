// internal/handlers/job.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/propaintco/proppaint-backend/internal/models"
	"github.com/propaintco/proppaint-backend/internal/services"
	"github.com/propaintco/proppaint-backend/internal/utils"
)

type JobHandler struct {
	jobService    *services.JobService
	phaseService  *services.PhaseService
	pdfService    *services.PDFService
	storage       *services.StorageService
	notifications *services.NotificationService
	payments      *services.PaymentService
}

func NewJobHandler(
	jobService *services.JobService,
	phaseService *services.PhaseService,
	pdfService *services.PDFService,
	storage *services.StorageService,
	notifications *services.NotificationService,
	payments *services.PaymentService,
) *JobHandler {
	return &JobHandler{
		jobService:    jobService,
		phaseService:  phaseService,
		pdfService:    pdfService,
		storage:       storage,
		notifications: notifications,
		payments:      payments,
	}
}

// POST /jobs
func (h *JobHandler) Create(c *gin.Context) {
	var req services.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	job, err := h.jobService.Create(&req, currentUserIDPtr(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPropertyNotFound):
			utils.NotFoundResponse(c, "Property")
		case errors.Is(err, services.ErrJobNumberTaken):
			utils.ConflictResponse(c, "Work order number already in use")
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.CreatedResponse(c, job)
}

// GET /jobs
func (h *JobHandler) List(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	var propertyID, subcontractorID *uuid.UUID
	if idStr := c.Query("property_id"); idStr != "" {
		if id, err := uuid.Parse(idStr); err == nil {
			propertyID = &id
		}
	}
	if idStr := c.Query("subcontractor_id"); idStr != "" {
		if id, err := uuid.Parse(idStr); err == nil {
			subcontractorID = &id
		}
	}

	jobs, total, err := h.jobService.List(params, propertyID, subcontractorID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(jobs, total, params))
}

// GET /jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.jobService.GetByID(id)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			utils.NotFoundResponse(c, "Job")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, job)
}

// PUT /jobs/:id
func (h *JobHandler) Update(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	var req services.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	job, err := h.jobService.Update(id, &req)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			utils.NotFoundResponse(c, "Job")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, job)
}

// DELETE /jobs/:id
func (h *JobHandler) Delete(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	if err := h.jobService.Delete(id); err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			utils.NotFoundResponse(c, "Job")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"deleted": true})
}

// PUT /jobs/:id/work-order
func (h *JobHandler) SaveWorkOrder(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	var input services.WorkOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	job, err := h.jobService.UpsertWorkOrder(id, &input, currentUserIDPtr(c))
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			utils.NotFoundResponse(c, "Job")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, job)
}

// PUT /jobs/:id/billing-lines
func (h *JobHandler) SetBillingLines(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	var inputs []services.BillingLineInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	job, err := h.jobService.SetBillingLines(id, inputs)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			utils.NotFoundResponse(c, "Job")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, job)
}

// GET /jobs/:id/billing-summary
func (h *JobHandler) BillingSummary(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	summary, err := h.jobService.Summary(id)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			utils.NotFoundResponse(c, "Job")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, summary)
}

// GET /jobs/:id/phase-history
func (h *JobHandler) PhaseHistory(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	history, err := h.phaseService.History(id)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, history)
}

// Phase actions

type phaseActionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// POST /jobs/:id/advance
func (h *JobHandler) Advance(c *gin.Context) {
	h.phaseAction(c, func(id uuid.UUID, actor *uuid.UUID, reason string) (interface{}, error) {
		return h.phaseService.Advance(id, actor, reason)
	})
}

// POST /jobs/:id/revert
func (h *JobHandler) Revert(c *gin.Context) {
	h.phaseAction(c, func(id uuid.UUID, actor *uuid.UUID, reason string) (interface{}, error) {
		return h.phaseService.Revert(id, actor, reason)
	})
}

// POST /jobs/:id/submit
func (h *JobHandler) Submit(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	actor := currentUserIDPtr(c)

	job, err := h.phaseService.SubmitWorkOrder(id, actor)
	if err != nil {
		h.phaseError(c, err)
		return
	}

	// A submission that lands in Pending Work Order kicks off the approval
	// email; delivery problems surface in the email log, not here.
	if job.Phase.Name == models.PhasePendingWorkOrder {
		if _, err := h.notifications.SendApprovalRequest(id, actor); err != nil {
			utils.SuccessResponse(c, gin.H{"job": job, "warning": err.Error()})
			return
		}
	}

	utils.SuccessResponse(c, job)
}

// POST /jobs/:id/approve (manual admin override)
func (h *JobHandler) ApproveExtraCharges(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.phaseService.ApproveExtraCharges(id, currentUserIDPtr(c), true)
	if err != nil {
		h.phaseError(c, err)
		return
	}

	utils.SuccessResponse(c, job)
}

// POST /jobs/:id/cancel
func (h *JobHandler) Cancel(c *gin.Context) {
	var req phaseActionRequest
	_ = c.ShouldBindJSON(&req)

	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.phaseService.CancelFromDecline(id, currentUserIDPtr(c), req.Reason)
	if err != nil {
		h.phaseError(c, err)
		return
	}

	utils.SuccessResponse(c, job)
}

// POST /jobs/:id/reactivate
func (h *JobHandler) Reactivate(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.phaseService.Reactivate(id, currentUserIDPtr(c))
	if err != nil {
		h.phaseError(c, err)
		return
	}

	utils.SuccessResponse(c, job)
}

// POST /jobs/:id/archive
func (h *JobHandler) Archive(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.phaseService.Archive(id, currentUserIDPtr(c))
	if err != nil {
		h.phaseError(c, err)
		return
	}

	utils.SuccessResponse(c, job)
}

// POST /jobs/:id/send-approval
func (h *JobHandler) SendApprovalRequest(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	token, err := h.notifications.SendApprovalRequest(id, currentUserIDPtr(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrJobNotFound):
			utils.NotFoundResponse(c, "Job")
		case errors.Is(err, services.ErrNoAPContact):
			utils.BadRequestResponse(c, err.Error(), nil)
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"token_id":   token.ID,
		"expires_at": token.ExpiresAt,
	})
}

// Invoice actions

// POST /jobs/:id/invoice/send
func (h *JobHandler) SendInvoice(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	actor := currentUserIDPtr(c)

	job, err := h.jobService.GetByID(id)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			utils.NotFoundResponse(c, "Job")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	hostedURL := ""
	if h.payments.Enabled() {
		summary, err := h.jobService.Summary(id)
		if err != nil {
			utils.InternalErrorResponse(c, err.Error())
			return
		}
		hostedURL, err = h.payments.CreateHostedInvoice(job, summary)
		if err != nil {
			utils.BadRequestResponse(c, err.Error(), nil)
			return
		}
	}

	job, err = h.phaseService.MarkInvoiceSent(id, hostedURL)
	if err != nil {
		h.phaseError(c, err)
		return
	}

	if err := h.notifications.SendInvoice(id, actor); err != nil {
		utils.SuccessResponse(c, gin.H{"job": job, "warning": err.Error()})
		return
	}

	utils.SuccessResponse(c, job)
}

// POST /jobs/:id/invoice/paid
func (h *JobHandler) MarkInvoicePaid(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.phaseService.MarkInvoicePaid(id, currentUserIDPtr(c))
	if err != nil {
		h.phaseError(c, err)
		return
	}

	utils.SuccessResponse(c, job)
}

// GET /jobs/:id/pdf
func (h *JobHandler) ExportPDF(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	content, fileName, err := h.pdfService.RenderJobSummary(id)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			utils.NotFoundResponse(c, "Job")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	c.Data(http.StatusOK, "application/pdf", content)
}

// Files

// POST /jobs/:id/files
func (h *JobHandler) UploadFile(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.jobService.GetByID(id)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			utils.NotFoundResponse(c, "Job")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "No file provided", nil)
		return
	}
	defer file.Close()

	record, err := h.storage.Upload(job, file, header, currentUserIDPtr(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrFileTooLarge),
			errors.Is(err, services.ErrFileTypeNotAllowed),
			errors.Is(err, services.ErrWorkOrderNotFound):
			utils.BadRequestResponse(c, err.Error(), nil)
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.CreatedResponse(c, record)
}

// GET /jobs/:id/files
func (h *JobHandler) ListFiles(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	files, err := h.storage.List(id)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, files)
}

// GET /files/:id/preview
func (h *JobHandler) PreviewFile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid file ID", nil)
		return
	}

	url, err := h.storage.PreviewURL(id)
	if err != nil {
		if errors.Is(err, services.ErrFileNotFound) {
			utils.NotFoundResponse(c, "File")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"url": url})
}

// DELETE /files/:id
func (h *JobHandler) DeleteFile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid file ID", nil)
		return
	}

	if err := h.storage.DeleteFile(id); err != nil {
		if errors.Is(err, services.ErrFileNotFound) {
			utils.NotFoundResponse(c, "File")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"deleted": true})
}

// helpers

func (h *JobHandler) phaseAction(c *gin.Context, action func(uuid.UUID, *uuid.UUID, string) (interface{}, error)) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	var req phaseActionRequest
	_ = c.ShouldBindJSON(&req)

	job, err := action(id, currentUserIDPtr(c), req.Reason)
	if err != nil {
		h.phaseError(c, err)
		return
	}

	utils.SuccessResponse(c, job)
}

func (h *JobHandler) phaseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrJobNotFound):
		utils.NotFoundResponse(c, "Job")
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrNoFurtherPhase),
		errors.Is(err, services.ErrWorkOrderRequired),
		errors.Is(err, services.ErrDeclineRequired),
		errors.Is(err, services.ErrInvoicePhaseOnly),
		errors.Is(err, services.ErrInvoiceNotSent):
		utils.ConflictResponse(c, err.Error())
	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}

func jobID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid job ID", nil)
		return uuid.Nil, false
	}
	return id, true
}
