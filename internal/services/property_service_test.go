// internal/services/property_service_test.go
package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/propaintco/proppaint-backend/internal/models"
)

type PropertyServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *PropertyService
}

func (suite *PropertyServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.service = NewPropertyService(suite.db)
}

func (suite *PropertyServiceTestSuite) TestCreatePersistsAddressFields() {
	property, err := suite.service.Create(&PropertyInput{
		Name:           "Riverbend Apartments",
		Address:        "42 Mill Rd",
		City:           "Austin",
		State:          "TX",
		ZipCode:        "78701",
		APContactName:  "Dana Whitfield",
		APContactEmail: "ap@riverbend.test",
	})
	require.NoError(suite.T(), err)

	var stored models.Property
	require.NoError(suite.T(), suite.db.First(&stored, "id = ?", property.ID).Error)
	assert.Equal(suite.T(), "78701", stored.ZipCode)
	assert.Equal(suite.T(), "Austin", stored.City)
	assert.True(suite.T(), stored.IsActive)
}

func (suite *PropertyServiceTestSuite) TestUpdateOverwritesAddressFields() {
	property, err := suite.service.Create(&PropertyInput{
		Name:    "Riverbend Apartments",
		Address: "42 Mill Rd",
		ZipCode: "78701",
	})
	require.NoError(suite.T(), err)

	updated, err := suite.service.Update(property.ID, &PropertyInput{
		Name:    "Riverbend Apartments",
		Address: "44 Mill Rd",
		ZipCode: "78702",
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "78702", updated.ZipCode)

	var stored models.Property
	require.NoError(suite.T(), suite.db.First(&stored, "id = ?", property.ID).Error)
	assert.Equal(suite.T(), "78702", stored.ZipCode)
	assert.Equal(suite.T(), "44 Mill Rd", stored.Address)
}

func (suite *PropertyServiceTestSuite) TestDeleteBillingDetailInUse() {
	property, err := suite.service.Create(&PropertyInput{
		Name:    "Riverbend Apartments",
		Address: "42 Mill Rd",
	})
	require.NoError(suite.T(), err)

	category := &models.BillingCategory{Name: "Base Paint"}
	require.NoError(suite.T(), suite.db.Create(category).Error)

	detail, err := suite.service.CreateBillingDetail(property.ID, &BillingDetailInput{
		CategoryID:   category.ID,
		BillAmount:   decimal.RequireFromString("400.00"),
		SubPayAmount: decimal.RequireFromString("250.00"),
	})
	require.NoError(suite.T(), err)

	job := createTestJob(suite.T(), suite.db, property, models.PhaseJobRequest, "WO-2026-0001")
	line := &models.JobBillingLine{JobID: job.ID, BillingDetailID: detail.ID, Quantity: 1}
	require.NoError(suite.T(), suite.db.Create(line).Error)

	err = suite.service.DeleteBillingDetail(detail.ID)
	assert.ErrorIs(suite.T(), err, ErrBillingDetailInUse)
}

func TestPropertyServiceSuite(t *testing.T) {
	suite.Run(t, new(PropertyServiceTestSuite))
}
