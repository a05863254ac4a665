// internal/handlers/property.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/propaintco/proppaint-backend/internal/services"
	"github.com/propaintco/proppaint-backend/internal/utils"
)

type PropertyHandler struct {
	propertyService *services.PropertyService
}

func NewPropertyHandler(propertyService *services.PropertyService) *PropertyHandler {
	return &PropertyHandler{
		propertyService: propertyService,
	}
}

// POST /properties
func (h *PropertyHandler) Create(c *gin.Context) {
	var input services.PropertyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	property, err := h.propertyService.Create(&input)
	if err != nil {
		if errors.Is(err, services.ErrPropertyExists) {
			utils.ConflictResponse(c, err.Error())
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, property)
}

// GET /properties
func (h *PropertyHandler) List(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	activeOnly := c.Query("active") == "true"

	properties, total, err := h.propertyService.List(params, activeOnly)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(properties, total, params))
}

// GET /properties/:id
func (h *PropertyHandler) Get(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		return
	}

	property, err := h.propertyService.GetByID(id)
	if err != nil {
		if errors.Is(err, services.ErrPropertyNotFound) {
			utils.NotFoundResponse(c, "Property")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, property)
}

// PUT /properties/:id
func (h *PropertyHandler) Update(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		return
	}

	var input services.PropertyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	property, err := h.propertyService.Update(id, &input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPropertyNotFound):
			utils.NotFoundResponse(c, "Property")
		case errors.Is(err, services.ErrPropertyExists):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, property)
}

// Rate card

// GET /properties/:id/billing-details
func (h *PropertyHandler) ListBillingDetails(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		return
	}

	details, err := h.propertyService.ListBillingDetails(id)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, details)
}

// POST /properties/:id/billing-details
func (h *PropertyHandler) CreateBillingDetail(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		return
	}

	var input services.BillingDetailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	detail, err := h.propertyService.CreateBillingDetail(id, &input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPropertyNotFound):
			utils.NotFoundResponse(c, "Property")
		case errors.Is(err, services.ErrCategoryNotFound):
			utils.NotFoundResponse(c, "Billing category")
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.CreatedResponse(c, detail)
}

// PUT /billing-details/:id
func (h *PropertyHandler) UpdateBillingDetail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid billing detail ID", nil)
		return
	}

	var input services.BillingDetailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	detail, err := h.propertyService.UpdateBillingDetail(id, &input)
	if err != nil {
		if errors.Is(err, services.ErrBillingDetailNotFound) {
			utils.NotFoundResponse(c, "Billing detail")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, detail)
}

// DELETE /billing-details/:id
func (h *PropertyHandler) DeleteBillingDetail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid billing detail ID", nil)
		return
	}

	if err := h.propertyService.DeleteBillingDetail(id); err != nil {
		switch {
		case errors.Is(err, services.ErrBillingDetailNotFound):
			utils.NotFoundResponse(c, "Billing detail")
		case errors.Is(err, services.ErrBillingDetailInUse):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{"deleted": true})
}

// Catalogs

// GET /unit-sizes
func (h *PropertyHandler) ListUnitSizes(c *gin.Context) {
	sizes, err := h.propertyService.ListUnitSizes()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, sizes)
}

// POST /unit-sizes
func (h *PropertyHandler) CreateUnitSize(c *gin.Context) {
	var req struct {
		Label     string `json:"label" binding:"required"`
		SortOrder int    `json:"sort_order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	size, err := h.propertyService.CreateUnitSize(req.Label, req.SortOrder)
	if err != nil {
		if errors.Is(err, services.ErrUnitSizeExists) {
			utils.ConflictResponse(c, err.Error())
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.CreatedResponse(c, size)
}

// GET /billing-categories
func (h *PropertyHandler) ListCategories(c *gin.Context) {
	categories, err := h.propertyService.ListCategories()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, categories)
}

func propertyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid property ID", nil)
		return uuid.Nil, false
	}
	return id, true
}
