// internal/services/admin_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/propaintco/proppaint-backend/internal/database"
	"github.com/propaintco/proppaint-backend/internal/models"
	"github.com/propaintco/proppaint-backend/internal/utils"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrTemplateExists       = errors.New("email template with that name already exists")
)

type AdminService struct {
	db *gorm.DB
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db}
}

type EmailTemplateInput struct {
	Name             string                  `json:"name" validate:"required"`
	NotificationType models.NotificationType `json:"notification_type" validate:"required,oneof=approval_request approval_expired phase_change invoice"`
	TriggerPhase     models.PhaseName        `json:"trigger_phase"`
	Subject          string                  `json:"subject" validate:"required"`
	Body             string                  `json:"body" validate:"required"`
	IsActive         *bool                   `json:"is_active"`
}

func (s *AdminService) ListNotifications(params utils.PaginationParams, unreadOnly bool) ([]models.AdminNotification, int64, error) {
	query := s.db.Model(&models.AdminNotification{})
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "priority"})
	query = utils.ApplyPagination(query, params)

	var notifications []models.AdminNotification
	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}

func (s *AdminService) MarkNotificationRead(id uuid.UUID) error {
	now := time.Now()
	result := s.db.Model(&models.AdminNotification{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", now)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		s.db.Model(&models.AdminNotification{}).Where("id = ?", id).Count(&count)
		if count == 0 {
			return ErrNotificationNotFound
		}
	}
	return nil
}

func (s *AdminService) ListEmailLogs(params utils.PaginationParams, jobID *uuid.UUID) ([]models.EmailLog, int64, error) {
	query := s.db.Model(&models.EmailLog{})
	if jobID != nil {
		query = query.Where("job_id = ?", *jobID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count email logs: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "status"})
	query = utils.ApplyPagination(query, params)

	var logs []models.EmailLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list email logs: %w", err)
	}
	return logs, total, nil
}

// Email templates

func (s *AdminService) ListEmailTemplates() ([]models.EmailTemplate, error) {
	var templates []models.EmailTemplate
	if err := s.db.Order("name").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to list email templates: %w", err)
	}
	return templates, nil
}

func (s *AdminService) CreateEmailTemplate(input *EmailTemplateInput) (*models.EmailTemplate, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	tmpl := &models.EmailTemplate{
		Name:             input.Name,
		NotificationType: input.NotificationType,
		TriggerPhase:     input.TriggerPhase,
		Subject:          input.Subject,
		Body:             input.Body,
		IsActive:         true,
	}
	if input.IsActive != nil {
		tmpl.IsActive = *input.IsActive
	}

	if err := s.db.Create(tmpl).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrTemplateExists
		}
		return nil, fmt.Errorf("failed to create email template: %w", err)
	}
	return tmpl, nil
}

func (s *AdminService) UpdateEmailTemplate(id uuid.UUID, input *EmailTemplateInput) (*models.EmailTemplate, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var tmpl models.EmailTemplate
	if err := s.db.First(&tmpl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	tmpl.Name = input.Name
	tmpl.NotificationType = input.NotificationType
	tmpl.TriggerPhase = input.TriggerPhase
	tmpl.Subject = input.Subject
	tmpl.Body = input.Body
	if input.IsActive != nil {
		tmpl.IsActive = *input.IsActive
	}

	if err := s.db.Save(&tmpl).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrTemplateExists
		}
		return nil, fmt.Errorf("failed to update email template: %w", err)
	}
	return &tmpl, nil
}

// RecordAudit writes an audit row asynchronously; failures only log.
func (s *AdminService) RecordAudit(entry *models.AuditLog) {
	go func() {
		if err := s.db.Create(entry).Error; err != nil {
			logrus.WithError(err).Error("Failed to record audit log")
		}
	}()
}
