// internal/handlers/admin.go
package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/propaintco/proppaint-backend/internal/events"
	"github.com/propaintco/proppaint-backend/internal/services"
	"github.com/propaintco/proppaint-backend/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
	broker       *events.Broker
}

func NewAdminHandler(adminService *services.AdminService, broker *events.Broker) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		broker:       broker,
	}
}

// GET /admin/notifications
func (h *AdminHandler) ListNotifications(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	unreadOnly := c.Query("unread") == "true"

	notifications, total, err := h.adminService.ListNotifications(params, unreadOnly)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(notifications, total, params))
}

// POST /admin/notifications/:id/read
func (h *AdminHandler) MarkNotificationRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid notification ID", nil)
		return
	}

	if err := h.adminService.MarkNotificationRead(id); err != nil {
		if errors.Is(err, services.ErrNotificationNotFound) {
			utils.NotFoundResponse(c, "Notification")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"read": true})
}

// GET /admin/email-logs
func (h *AdminHandler) ListEmailLogs(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	var jobFilter *uuid.UUID
	if idStr := c.Query("job_id"); idStr != "" {
		if id, err := uuid.Parse(idStr); err == nil {
			jobFilter = &id
		}
	}

	logs, total, err := h.adminService.ListEmailLogs(params, jobFilter)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(logs, total, params))
}

// GET /admin/email-templates
func (h *AdminHandler) ListEmailTemplates(c *gin.Context) {
	templates, err := h.adminService.ListEmailTemplates()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, templates)
}

// POST /admin/email-templates
func (h *AdminHandler) CreateEmailTemplate(c *gin.Context) {
	var input services.EmailTemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	tmpl, err := h.adminService.CreateEmailTemplate(&input)
	if err != nil {
		if errors.Is(err, services.ErrTemplateExists) {
			utils.ConflictResponse(c, err.Error())
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, tmpl)
}

// PUT /admin/email-templates/:id
func (h *AdminHandler) UpdateEmailTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid template ID", nil)
		return
	}

	var input services.EmailTemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	tmpl, err := h.adminService.UpdateEmailTemplate(id, &input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTemplateNotFound):
			utils.NotFoundResponse(c, "Email template")
		case errors.Is(err, services.ErrTemplateExists):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, tmpl)
}

// GET /admin/events
// Server-sent events feed of job activity; ?job_id= narrows to one job.
func (h *AdminHandler) StreamEvents(c *gin.Context) {
	jobFilter := uuid.Nil
	if idStr := c.Query("job_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid job ID", nil)
			return
		}
		jobFilter = id
	}

	ch, unsubscribe := h.broker.Subscribe(jobFilter)
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
