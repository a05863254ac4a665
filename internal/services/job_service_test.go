// internal/services/job_service_test.go
package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/propaintco/proppaint-backend/internal/events"
	"github.com/propaintco/proppaint-backend/internal/models"
)

type JobServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	service  *JobService
	property *models.Property
}

func (suite *JobServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())

	cfg := testConfig()
	storage, err := NewStorageService(suite.db, cfg)
	require.NoError(suite.T(), err)
	suite.service = NewJobService(suite.db, storage, events.NewBroker())
	suite.property = createTestProperty(suite.T(), suite.db)
}

func (suite *JobServiceTestSuite) createBillingDetail(categoryName, bill, sub string) *models.BillingDetail {
	category := &models.BillingCategory{Name: categoryName}
	require.NoError(suite.T(), suite.db.Create(category).Error)

	detail := &models.BillingDetail{
		PropertyID:   suite.property.ID,
		CategoryID:   category.ID,
		BillAmount:   decimal.RequireFromString(bill),
		SubPayAmount: decimal.RequireFromString(sub),
	}
	require.NoError(suite.T(), suite.db.Create(detail).Error)
	return detail
}

func (suite *JobServiceTestSuite) TestCreateStartsInJobRequest() {
	job, err := suite.service.Create(&CreateJobRequest{
		PropertyID:   suite.property.ID,
		WorkOrderNum: "WO-2026-0100",
		UnitNumber:   "305",
	}, nil)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), models.PhaseJobRequest, job.Phase.Name)
	assert.Equal(suite.T(), "WO-2026-0100", job.WorkOrderNum)

	var changes []models.JobPhaseChange
	require.NoError(suite.T(), suite.db.Where("job_id = ?", job.ID).Find(&changes).Error)
	require.Len(suite.T(), changes, 1)
	assert.Nil(suite.T(), changes[0].FromPhaseID)
	assert.Equal(suite.T(), job.PhaseID, changes[0].ToPhaseID)
}

func (suite *JobServiceTestSuite) TestCreateAutoNumbersSequentially() {
	year := time.Now().Format("2006")

	first, err := suite.service.Create(&CreateJobRequest{PropertyID: suite.property.ID}, nil)
	require.NoError(suite.T(), err)
	second, err := suite.service.Create(&CreateJobRequest{PropertyID: suite.property.ID}, nil)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), fmt.Sprintf("WO-%s-0001", year), first.WorkOrderNum)
	assert.Equal(suite.T(), fmt.Sprintf("WO-%s-0002", year), second.WorkOrderNum)
}

func (suite *JobServiceTestSuite) TestCreateUnknownProperty() {
	_, err := suite.service.Create(&CreateJobRequest{PropertyID: uuid.New()}, nil)
	assert.ErrorIs(suite.T(), err, ErrPropertyNotFound)
}

func (suite *JobServiceTestSuite) TestSetBillingLinesRecalculatesTotal() {
	job, err := suite.service.Create(&CreateJobRequest{PropertyID: suite.property.ID}, nil)
	require.NoError(suite.T(), err)

	base := suite.createBillingDetail("Base Paint", "400.00", "250.00")

	updated, err := suite.service.SetBillingLines(job.ID, []BillingLineInput{
		{BillingDetailID: base.ID, Quantity: 2},
	})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), updated.TotalBillingAmount.Equal(decimal.RequireFromString("800.00")))
	require.Len(suite.T(), updated.BillingLines, 1)
}

func (suite *JobServiceTestSuite) TestSetBillingLinesReplacesExistingSet() {
	job, err := suite.service.Create(&CreateJobRequest{PropertyID: suite.property.ID}, nil)
	require.NoError(suite.T(), err)

	first := suite.createBillingDetail("Base Paint", "400.00", "250.00")
	second := suite.createBillingDetail("Painted Ceilings", "120.00", "70.00")

	_, err = suite.service.SetBillingLines(job.ID, []BillingLineInput{
		{BillingDetailID: first.ID, Quantity: 1},
	})
	require.NoError(suite.T(), err)

	updated, err := suite.service.SetBillingLines(job.ID, []BillingLineInput{
		{BillingDetailID: second.ID, Quantity: 1},
	})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), updated.BillingLines, 1)
	assert.Equal(suite.T(), second.ID, updated.BillingLines[0].BillingDetailID)
	assert.True(suite.T(), updated.TotalBillingAmount.Equal(decimal.RequireFromString("120.00")))
}

func (suite *JobServiceTestSuite) TestUpsertWorkOrderReplacesExtraChargeItems() {
	job, err := suite.service.Create(&CreateJobRequest{PropertyID: suite.property.ID}, nil)
	require.NoError(suite.T(), err)

	_, err = suite.service.UpsertWorkOrder(job.ID, &WorkOrderInput{
		HasExtraCharges: true,
		ExtraChargeItems: []ExtraChargeItemInput{
			{Description: "Old item", Quantity: decimal.NewFromInt(1), RateBill: decimal.RequireFromString("10.00")},
		},
	}, nil)
	require.NoError(suite.T(), err)

	updated, err := suite.service.UpsertWorkOrder(job.ID, &WorkOrderInput{
		HasExtraCharges: true,
		ExtraChargeItems: []ExtraChargeItemInput{
			{Description: "Drywall patch", Quantity: decimal.NewFromInt(2), RateBill: decimal.RequireFromString("40.00"), RateSub: decimal.RequireFromString("25.00")},
			{Description: "Door repair", Quantity: decimal.NewFromInt(1), RateBill: decimal.RequireFromString("75.00"), RateSub: decimal.RequireFromString("45.00")},
		},
	}, nil)
	require.NoError(suite.T(), err)

	require.NotNil(suite.T(), updated.WorkOrder)
	require.Len(suite.T(), updated.WorkOrder.ExtraChargeItems, 2)
	assert.Equal(suite.T(), "Drywall patch", updated.WorkOrder.ExtraChargeItems[0].Description)
	assert.True(suite.T(), updated.TotalBillingAmount.Equal(decimal.RequireFromString("155.00")))
}

func (suite *JobServiceTestSuite) TestSummaryCombinesBaseAndResolvedLines() {
	job, err := suite.service.Create(&CreateJobRequest{PropertyID: suite.property.ID}, nil)
	require.NoError(suite.T(), err)

	base := suite.createBillingDetail("Base Paint", "400.00", "250.00")
	_, err = suite.service.SetBillingLines(job.ID, []BillingLineInput{
		{BillingDetailID: base.ID, Quantity: 1},
	})
	require.NoError(suite.T(), err)

	_, err = suite.service.UpsertWorkOrder(job.ID, &WorkOrderInput{
		HasExtraCharges: true,
		ExtraChargeItems: []ExtraChargeItemInput{
			{Description: "Drywall patch", Quantity: decimal.NewFromInt(2), RateBill: decimal.RequireFromString("40.00"), RateSub: decimal.RequireFromString("25.00")},
		},
	}, nil)
	require.NoError(suite.T(), err)

	summary, err := suite.service.Summary(job.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), summary.Lines, 1)
	assert.True(suite.T(), summary.Totals.Bill.Equal(decimal.RequireFromString("480.00")))
	assert.True(suite.T(), summary.Totals.SubPay.Equal(decimal.RequireFromString("300.00")))
	assert.True(suite.T(), summary.Totals.Profit.Equal(decimal.RequireFromString("180.00")))
	assert.Empty(suite.T(), summary.Warnings)
}

func (suite *JobServiceTestSuite) TestDeleteCascadesDependents() {
	job, err := suite.service.Create(&CreateJobRequest{PropertyID: suite.property.ID}, nil)
	require.NoError(suite.T(), err)

	base := suite.createBillingDetail("Base Paint", "400.00", "250.00")
	_, err = suite.service.SetBillingLines(job.ID, []BillingLineInput{
		{BillingDetailID: base.ID, Quantity: 1},
	})
	require.NoError(suite.T(), err)

	_, err = suite.service.UpsertWorkOrder(job.ID, &WorkOrderInput{
		HasExtraCharges: true,
		ExtraChargeItems: []ExtraChargeItemInput{
			{Description: "Drywall patch", Quantity: decimal.NewFromInt(1), RateBill: decimal.RequireFromString("40.00")},
		},
	}, nil)
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.service.Delete(job.ID))

	_, err = suite.service.GetByID(job.ID)
	assert.ErrorIs(suite.T(), err, ErrJobNotFound)

	var workOrders int64
	require.NoError(suite.T(), suite.db.Model(&models.WorkOrder{}).
		Where("job_id = ?", job.ID).Count(&workOrders).Error)
	assert.Zero(suite.T(), workOrders)

	var lines int64
	require.NoError(suite.T(), suite.db.Model(&models.JobBillingLine{}).
		Where("job_id = ?", job.ID).Count(&lines).Error)
	assert.Zero(suite.T(), lines)

	var changes int64
	require.NoError(suite.T(), suite.db.Model(&models.JobPhaseChange{}).
		Where("job_id = ?", job.ID).Count(&changes).Error)
	assert.Zero(suite.T(), changes)
}

func TestJobServiceSuite(t *testing.T) {
	suite.Run(t, new(JobServiceTestSuite))
}
