// internal/services/job_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/propaintco/proppaint-backend/internal/billing"
	"github.com/propaintco/proppaint-backend/internal/database"
	"github.com/propaintco/proppaint-backend/internal/events"
	"github.com/propaintco/proppaint-backend/internal/models"
	"github.com/propaintco/proppaint-backend/internal/utils"
)

var (
	ErrPropertyNotFound  = errors.New("property not found")
	ErrWorkOrderNotFound = errors.New("work order not found")
	ErrJobNumberTaken    = errors.New("work order number already in use")
)

type JobService struct {
	db       *gorm.DB
	resolver *billing.Resolver
	storage  *StorageService
	broker   *events.Broker
}

func NewJobService(db *gorm.DB, storage *StorageService, broker *events.Broker) *JobService {
	return &JobService{
		db:       db,
		resolver: billing.NewResolver(db),
		storage:  storage,
		broker:   broker,
	}
}

type CreateJobRequest struct {
	PropertyID      uuid.UUID  `json:"property_id" validate:"required"`
	WorkOrderNum    string     `json:"work_order_num"`
	UnitNumber      string     `json:"unit_number" validate:"omitempty,unit_number"`
	ScheduledDate   *time.Time `json:"scheduled_date"`
	SubcontractorID *uuid.UUID `json:"subcontractor_id"`
}

type UpdateJobRequest struct {
	UnitNumber            *string    `json:"unit_number" validate:"omitempty,unit_number"`
	ScheduledDate         *time.Time `json:"scheduled_date"`
	SubcontractorID       *uuid.UUID `json:"subcontractor_id"`
	HourlyBillingDetailID *uuid.UUID `json:"hourly_billing_detail_id"`
}

// BillingLineInput replaces the job's base billing lines as a set.
type BillingLineInput struct {
	BillingDetailID uuid.UUID `json:"billing_detail_id" validate:"required"`
	Quantity        int       `json:"quantity" validate:"min=1"`
}

// WorkOrderInput is the full work-order payload; Upsert replaces the
// itemized extra charges wholesale.
type WorkOrderInput struct {
	Occupied  bool `json:"occupied"`
	FullPaint bool `json:"full_paint"`

	PaintedPatio        bool `json:"painted_patio"`
	PaintedGarage       bool `json:"painted_garage"`
	PaintedCabinets     bool `json:"painted_cabinets"`
	PaintedCrownMolding bool `json:"painted_crown_molding"`
	PaintedFrontDoor    bool `json:"painted_front_door"`

	PaintedCeilings        bool               `json:"painted_ceilings"`
	CeilingMode            models.CeilingMode `json:"ceiling_mode"`
	CeilingBillingDetailID *uuid.UUID         `json:"ceiling_billing_detail_id"`
	CeilingUnitSizeLabel   string             `json:"ceiling_unit_size_label"`
	CeilingIndividualCount int                `json:"ceiling_individual_count"`

	HasAccentWall             bool       `json:"has_accent_wall"`
	AccentWallType            string     `json:"accent_wall_type"`
	AccentWallCount           int        `json:"accent_wall_count"`
	AccentWallBillingDetailID *uuid.UUID `json:"accent_wall_billing_detail_id"`

	HasExtraCharges     bool                   `json:"has_extra_charges"`
	ExtraChargeItems    []ExtraChargeItemInput `json:"extra_charge_items"`
	LegacyExtraDesc     string                 `json:"legacy_extra_desc"`
	LegacyExtraHours    decimal.Decimal        `json:"legacy_extra_hours"`
	LegacyExtraBillRate *decimal.Decimal       `json:"legacy_extra_bill_rate"`
	LegacyExtraSubRate  *decimal.Decimal       `json:"legacy_extra_sub_rate"`

	AdditionalComments string `json:"additional_comments"`
}

type ExtraChargeItemInput struct {
	Description string           `json:"description" validate:"required"`
	Quantity    decimal.Decimal  `json:"quantity"`
	RateBill    decimal.Decimal  `json:"rate_bill"`
	RateSub     decimal.Decimal  `json:"rate_sub"`
	AmountBill  *decimal.Decimal `json:"amount_bill"`
	AmountSub   *decimal.Decimal `json:"amount_sub"`
	SortOrder   int              `json:"sort_order"`
}

// BillingSummary is what the billing tab, the approval page, and the PDF all
// render from.
type BillingSummary struct {
	JobID    uuid.UUID      `json:"job_id"`
	Lines    []billing.Line `json:"lines"`
	Totals   billing.Totals `json:"totals"`
	Warnings []string       `json:"warnings,omitempty"`
}

func (s *JobService) Create(req *CreateJobRequest, createdBy *uuid.UUID) (*models.Job, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var property models.Property
	if err := s.db.First(&property, "id = ?", req.PropertyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	var initial models.JobPhase
	if err := s.db.Where("name = ?", models.PhaseJobRequest).First(&initial).Error; err != nil {
		return nil, fmt.Errorf("failed to load initial phase: %w", err)
	}

	job := &models.Job{
		PropertyID:      req.PropertyID,
		WorkOrderNum:    req.WorkOrderNum,
		UnitNumber:      req.UnitNumber,
		ScheduledDate:   req.ScheduledDate,
		SubcontractorID: req.SubcontractorID,
		PhaseID:         initial.ID,
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if job.WorkOrderNum == "" {
			num, err := s.nextWorkOrderNum(tx)
			if err != nil {
				return err
			}
			job.WorkOrderNum = num
		}

		if err := tx.Create(job).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrJobNumberTaken
			}
			return fmt.Errorf("failed to create job: %w", err)
		}

		change := &models.JobPhaseChange{
			JobID:     job.ID,
			ToPhaseID: initial.ID,
			ChangedBy: createdBy,
			Reason:    "job created",
		}
		if err := tx.Create(change).Error; err != nil {
			return fmt.Errorf("failed to create audit row: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"job_id": job.ID,
		"number": job.WorkOrderNum,
	}).Info("Job created")

	s.broker.Publish(events.Event{Entity: "job", EntityID: job.ID, JobID: job.ID, Action: "created"})
	return s.GetByID(job.ID)
}

// nextWorkOrderNum allocates the next WO-YYYY-NNNN number for the current
// year. Runs inside the create transaction; the unique index on the column
// catches races.
func (s *JobService) nextWorkOrderNum(tx *gorm.DB) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("WO-%s-", year)

	var last models.Job
	err := tx.Unscoped().Where("work_order_num LIKE ?", prefix+"%").
		Order("work_order_num DESC").First(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to find last work order number: %w", err)
	}

	next := 1
	if err == nil {
		var seq int
		if _, scanErr := fmt.Sscanf(last.WorkOrderNum, "WO-%4s-%d", &year, &seq); scanErr == nil {
			next = seq + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, next), nil
}

func (s *JobService) GetByID(id uuid.UUID) (*models.Job, error) {
	var job models.Job
	err := s.db.
		Preload("Property").
		Preload("Phase").
		Preload("Subcontractor").
		Preload("WorkOrder.ExtraChargeItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order, created_at")
		}).
		Preload("BillingLines.BillingDetail.Category").
		Preload("Files").
		First(&job, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &job, nil
}

func (s *JobService) List(params utils.PaginationParams, propertyID, subcontractorID *uuid.UUID) ([]models.Job, int64, error) {
	query := s.db.Model(&models.Job{}).
		Preload("Property").
		Preload("Phase").
		Preload("Subcontractor")

	if params.Phase != "" {
		query = query.Joins("JOIN job_phases ON job_phases.id = jobs.phase_id").
			Where("job_phases.name = ?", params.Phase)
	}
	if propertyID != nil {
		query = query.Where("jobs.property_id = ?", *propertyID)
	}
	if subcontractorID != nil {
		query = query.Where("jobs.subcontractor_id = ?", *subcontractorID)
	}
	if params.Search != "" {
		like := "%" + params.Search + "%"
		query = query.Where("jobs.work_order_num ILIKE ? OR jobs.unit_number ILIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	allowed := []string{"created_at", "work_order_num", "scheduled_date", "unit_number", "total_billing_amount"}
	query = utils.ApplySort(query, params, allowed)
	query = utils.ApplyPagination(query, params)

	var jobs []models.Job
	if err := query.Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, total, nil
}

func (s *JobService) Update(id uuid.UUID, req *UpdateJobRequest) (*models.Job, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	job, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.UnitNumber != nil {
		updates["unit_number"] = *req.UnitNumber
	}
	if req.ScheduledDate != nil {
		updates["scheduled_date"] = *req.ScheduledDate
	}
	if req.SubcontractorID != nil {
		updates["subcontractor_id"] = *req.SubcontractorID
	}
	if req.HourlyBillingDetailID != nil {
		updates["hourly_billing_detail_id"] = *req.HourlyBillingDetailID
	}
	if len(updates) == 0 {
		return job, nil
	}

	if err := s.db.Model(job).Omit(clause.Associations).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	s.broker.Publish(events.Event{Entity: "job", EntityID: job.ID, JobID: job.ID, Action: "updated"})
	return s.GetByID(id)
}

// SetBillingLines replaces the job's base billing line set and recomputes the
// cached total.
func (s *JobService) SetBillingLines(jobID uuid.UUID, inputs []BillingLineInput) (*models.Job, error) {
	job, err := s.GetByID(jobID)
	if err != nil {
		return nil, err
	}

	for i := range inputs {
		if err := utils.ValidateStruct(&inputs[i]); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.JobBillingLine{}).Error; err != nil {
			return fmt.Errorf("failed to clear billing lines: %w", err)
		}
		for _, input := range inputs {
			line := &models.JobBillingLine{
				JobID:           jobID,
				BillingDetailID: input.BillingDetailID,
				Quantity:        input.Quantity,
			}
			if err := tx.Create(line).Error; err != nil {
				return fmt.Errorf("failed to create billing line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.RecalculateTotal(jobID); err != nil {
		return nil, err
	}

	s.broker.Publish(events.Event{Entity: "job", EntityID: job.ID, JobID: job.ID, Action: "billing_changed"})
	return s.GetByID(jobID)
}

// UpsertWorkOrder creates or updates the job's work order and replaces its
// extra-charge items with the submitted set.
func (s *JobService) UpsertWorkOrder(jobID uuid.UUID, input *WorkOrderInput, submittedBy *uuid.UUID) (*models.Job, error) {
	job, err := s.GetByID(jobID)
	if err != nil {
		return nil, err
	}

	for i := range input.ExtraChargeItems {
		if err := utils.ValidateStruct(&input.ExtraChargeItems[i]); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var workOrder models.WorkOrder
		err := tx.Where("job_id = ?", jobID).First(&workOrder).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("database error: %w", err)
		}

		workOrder.JobID = jobID
		workOrder.Occupied = input.Occupied
		workOrder.FullPaint = input.FullPaint
		workOrder.PaintedPatio = input.PaintedPatio
		workOrder.PaintedGarage = input.PaintedGarage
		workOrder.PaintedCabinets = input.PaintedCabinets
		workOrder.PaintedCrownMolding = input.PaintedCrownMolding
		workOrder.PaintedFrontDoor = input.PaintedFrontDoor
		workOrder.PaintedCeilings = input.PaintedCeilings
		workOrder.CeilingMode = input.CeilingMode
		if workOrder.CeilingMode == "" {
			workOrder.CeilingMode = models.CeilingModeUnitSize
		}
		workOrder.CeilingBillingDetailID = input.CeilingBillingDetailID
		workOrder.CeilingUnitSizeLabel = input.CeilingUnitSizeLabel
		workOrder.CeilingIndividualCount = input.CeilingIndividualCount
		workOrder.HasAccentWall = input.HasAccentWall
		workOrder.AccentWallType = input.AccentWallType
		workOrder.AccentWallCount = input.AccentWallCount
		workOrder.AccentWallBillingDetailID = input.AccentWallBillingDetailID
		workOrder.HasExtraCharges = input.HasExtraCharges
		workOrder.LegacyExtraDesc = input.LegacyExtraDesc
		workOrder.LegacyExtraHours = input.LegacyExtraHours
		workOrder.LegacyExtraBillRate = input.LegacyExtraBillRate
		workOrder.LegacyExtraSubRate = input.LegacyExtraSubRate
		workOrder.AdditionalComments = input.AdditionalComments
		workOrder.SubmittedBy = submittedBy

		if err := tx.Save(&workOrder).Error; err != nil {
			return fmt.Errorf("failed to save work order: %w", err)
		}

		if err := tx.Where("work_order_id = ?", workOrder.ID).
			Delete(&models.ExtraChargeItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear extra charge items: %w", err)
		}
		for i, itemInput := range input.ExtraChargeItems {
			item := &models.ExtraChargeItem{
				WorkOrderID: workOrder.ID,
				Description: itemInput.Description,
				Quantity:    itemInput.Quantity,
				RateBill:    itemInput.RateBill,
				RateSub:     itemInput.RateSub,
				AmountBill:  itemInput.AmountBill,
				AmountSub:   itemInput.AmountSub,
				SortOrder:   itemInput.SortOrder,
			}
			if item.SortOrder == 0 {
				item.SortOrder = i
			}
			if item.Quantity.IsZero() {
				item.Quantity = decimal.NewFromInt(1)
			}
			if err := tx.Create(item).Error; err != nil {
				return fmt.Errorf("failed to create extra charge item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.RecalculateTotal(jobID); err != nil {
		return nil, err
	}

	s.broker.Publish(events.Event{Entity: "work_order", EntityID: job.ID, JobID: job.ID, Action: "saved"})
	return s.GetByID(jobID)
}

// Summary resolves every billing line for the job and aggregates the totals.
// Missing rates surface as warnings, never errors.
func (s *JobService) Summary(jobID uuid.UUID) (*BillingSummary, error) {
	job, err := s.GetByID(jobID)
	if err != nil {
		return nil, err
	}

	lines, warnings, err := s.resolver.ResolveLines(job, job.WorkOrder)
	if err != nil {
		return nil, err
	}
	totals := billing.Aggregate(job.BillingLines, lines)

	return &BillingSummary{
		JobID:    job.ID,
		Lines:    lines,
		Totals:   totals,
		Warnings: warnings,
	}, nil
}

// RecalculateTotal refreshes the cached bill total on the job row.
func (s *JobService) RecalculateTotal(jobID uuid.UUID) (decimal.Decimal, error) {
	summary, err := s.Summary(jobID)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.db.Model(&models.Job{}).Where("id = ?", jobID).
		Update("total_billing_amount", summary.Totals.Bill).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to update billing total: %w", err)
	}
	return summary.Totals.Bill, nil
}

// Delete removes the job and every dependent row in one transaction. Stored
// files are removed from object storage after commit; a failed removal only
// logs.
func (s *JobService) Delete(jobID uuid.UUID) error {
	job, err := s.GetByID(jobID)
	if err != nil {
		return err
	}

	storageKeys := make([]string, 0, len(job.Files))
	for _, file := range job.Files {
		storageKeys = append(storageKeys, file.StorageKey)
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if job.WorkOrder != nil {
			if err := tx.Where("work_order_id = ?", job.WorkOrder.ID).
				Delete(&models.ExtraChargeItem{}).Error; err != nil {
				return fmt.Errorf("failed to delete extra charge items: %w", err)
			}
			if err := tx.Delete(&models.WorkOrder{}, "job_id = ?", jobID).Error; err != nil {
				return fmt.Errorf("failed to delete work order: %w", err)
			}
		}

		dependents := []interface{}{
			&models.JobBillingLine{},
			&models.JobPhaseChange{},
			&models.ApprovalToken{},
			&models.EmailLog{},
			&models.JobFile{},
		}
		for _, model := range dependents {
			if err := tx.Where("job_id = ?", jobID).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete job dependents: %w", err)
			}
		}

		if err := tx.Delete(&models.Job{}, "id = ?", jobID).Error; err != nil {
			return fmt.Errorf("failed to delete job: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, key := range storageKeys {
		if err := s.storage.Remove(key); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("Failed to remove stored file")
		}
	}

	logrus.WithFields(logrus.Fields{
		"job_id": jobID,
		"number": job.WorkOrderNum,
	}).Info("Job deleted")

	s.broker.Publish(events.Event{Entity: "job", EntityID: jobID, JobID: jobID, Action: "deleted"})
	return nil
}
