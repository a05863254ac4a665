// internal/services/property_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/propaintco/proppaint-backend/internal/database"
	"github.com/propaintco/proppaint-backend/internal/models"
	"github.com/propaintco/proppaint-backend/internal/utils"
)

var (
	ErrPropertyExists        = errors.New("property with that name already exists")
	ErrUnitSizeExists        = errors.New("unit size with that label already exists")
	ErrCategoryNotFound      = errors.New("billing category not found")
	ErrBillingDetailNotFound = errors.New("billing detail not found")
	ErrBillingDetailInUse    = errors.New("billing detail is referenced by jobs")
)

type PropertyService struct {
	db *gorm.DB
}

func NewPropertyService(db *gorm.DB) *PropertyService {
	return &PropertyService{db: db}
}

type PropertyInput struct {
	Name           string `json:"name" validate:"required"`
	Address        string `json:"address" validate:"required"`
	City           string `json:"city"`
	State          string `json:"state"`
	ZipCode        string `json:"zip_code"`
	APContactName  string `json:"ap_contact_name"`
	APContactEmail string `json:"ap_contact_email" validate:"omitempty,email"`
	APContactCc    string `json:"ap_contact_cc"`
	IsActive       *bool  `json:"is_active"`
}

type BillingDetailInput struct {
	CategoryID     uuid.UUID       `json:"category_id" validate:"required"`
	UnitSizeID     *uuid.UUID      `json:"unit_size_id"`
	ServiceVariant string          `json:"service_variant"`
	BillAmount     decimal.Decimal `json:"bill_amount"`
	SubPayAmount   decimal.Decimal `json:"sub_pay_amount"`
	IsHourly       bool            `json:"is_hourly"`
}

func (s *PropertyService) Create(input *PropertyInput) (*models.Property, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	property := &models.Property{
		Name:           input.Name,
		Address:        input.Address,
		City:           input.City,
		State:          input.State,
		ZipCode:        input.ZipCode,
		APContactName:  input.APContactName,
		APContactEmail: input.APContactEmail,
		APContactCc:    input.APContactCc,
		IsActive:       true,
	}
	if input.IsActive != nil {
		property.IsActive = *input.IsActive
	}

	if err := s.db.Create(property).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrPropertyExists
		}
		return nil, fmt.Errorf("failed to create property: %w", err)
	}
	return property, nil
}

func (s *PropertyService) GetByID(id uuid.UUID) (*models.Property, error) {
	var property models.Property
	if err := s.db.First(&property, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &property, nil
}

func (s *PropertyService) List(params utils.PaginationParams, activeOnly bool) ([]models.Property, int64, error) {
	query := s.db.Model(&models.Property{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if params.Search != "" {
		like := "%" + params.Search + "%"
		query = query.Where("name ILIKE ? OR address ILIKE ? OR city ILIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count properties: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "name", "city"})
	query = utils.ApplyPagination(query, params)

	var properties []models.Property
	if err := query.Find(&properties).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list properties: %w", err)
	}
	return properties, total, nil
}

func (s *PropertyService) Update(id uuid.UUID, input *PropertyInput) (*models.Property, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	property, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	property.Name = input.Name
	property.Address = input.Address
	property.City = input.City
	property.State = input.State
	property.ZipCode = input.ZipCode
	property.APContactName = input.APContactName
	property.APContactEmail = input.APContactEmail
	property.APContactCc = input.APContactCc
	if input.IsActive != nil {
		property.IsActive = *input.IsActive
	}

	if err := s.db.Save(property).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrPropertyExists
		}
		return nil, fmt.Errorf("failed to update property: %w", err)
	}
	return property, nil
}

// Rate card

func (s *PropertyService) ListBillingDetails(propertyID uuid.UUID) ([]models.BillingDetail, error) {
	var details []models.BillingDetail
	err := s.db.Preload("Category").Preload("UnitSize").
		Joins("JOIN billing_categories ON billing_categories.id = billing_details.category_id").
		Where("billing_details.property_id = ?", propertyID).
		Order("billing_categories.sort_order, billing_categories.name").
		Find(&details).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list billing details: %w", err)
	}
	return details, nil
}

// CreateBillingDetail writes a rate-card row. The profit column is derived in
// the model hook, never accepted from the caller.
func (s *PropertyService) CreateBillingDetail(propertyID uuid.UUID, input *BillingDetailInput) (*models.BillingDetail, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if _, err := s.GetByID(propertyID); err != nil {
		return nil, err
	}
	var category models.BillingCategory
	if err := s.db.First(&category, "id = ?", input.CategoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	detail := &models.BillingDetail{
		PropertyID:     propertyID,
		CategoryID:     input.CategoryID,
		UnitSizeID:     input.UnitSizeID,
		ServiceVariant: input.ServiceVariant,
		BillAmount:     input.BillAmount,
		SubPayAmount:   input.SubPayAmount,
		IsHourly:       input.IsHourly,
	}
	if err := s.db.Create(detail).Error; err != nil {
		return nil, fmt.Errorf("failed to create billing detail: %w", err)
	}
	return detail, nil
}

func (s *PropertyService) UpdateBillingDetail(id uuid.UUID, input *BillingDetailInput) (*models.BillingDetail, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var detail models.BillingDetail
	if err := s.db.First(&detail, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBillingDetailNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	detail.CategoryID = input.CategoryID
	detail.UnitSizeID = input.UnitSizeID
	detail.ServiceVariant = input.ServiceVariant
	detail.BillAmount = input.BillAmount
	detail.SubPayAmount = input.SubPayAmount
	detail.IsHourly = input.IsHourly

	if err := s.db.Save(&detail).Error; err != nil {
		return nil, fmt.Errorf("failed to update billing detail: %w", err)
	}
	return &detail, nil
}

// DeleteBillingDetail refuses to remove a rate that jobs still bill against.
func (s *PropertyService) DeleteBillingDetail(id uuid.UUID) error {
	var count int64
	if err := s.db.Model(&models.JobBillingLine{}).
		Where("billing_detail_id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if count > 0 {
		return ErrBillingDetailInUse
	}

	result := s.db.Delete(&models.BillingDetail{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete billing detail: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBillingDetailNotFound
	}
	return nil
}

// Catalogs

func (s *PropertyService) ListUnitSizes() ([]models.UnitSize, error) {
	var sizes []models.UnitSize
	if err := s.db.Order("sort_order, label").Find(&sizes).Error; err != nil {
		return nil, fmt.Errorf("failed to list unit sizes: %w", err)
	}
	return sizes, nil
}

func (s *PropertyService) CreateUnitSize(label string, sortOrder int) (*models.UnitSize, error) {
	size := &models.UnitSize{Label: label, SortOrder: sortOrder}
	if err := s.db.Create(size).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrUnitSizeExists
		}
		return nil, fmt.Errorf("failed to create unit size: %w", err)
	}
	return size, nil
}

func (s *PropertyService) ListCategories() ([]models.BillingCategory, error) {
	var categories []models.BillingCategory
	if err := s.db.Order("sort_order, name").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list billing categories: %w", err)
	}
	return categories, nil
}
