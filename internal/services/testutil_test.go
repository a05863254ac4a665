// internal/services/testutil_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/propaintco/proppaint-backend/internal/config"
	"github.com/propaintco/proppaint-backend/internal/database"
	"github.com/propaintco/proppaint-backend/internal/events"
	"github.com/propaintco/proppaint-backend/internal/models"
)

// newTestDB opens an isolated in-memory database with the full schema and
// the phase catalog seeded.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.UnitSize{},
		&models.BillingCategory{},
		&models.BillingDetail{},
		&models.JobPhase{},
		&models.Job{},
		&models.JobBillingLine{},
		&models.JobPhaseChange{},
		&models.JobFile{},
		&models.WorkOrder{},
		&models.ExtraChargeItem{},
		&models.ApprovalToken{},
		&models.EmailTemplate{},
		&models.EmailLog{},
		&models.AdminNotification{},
		&models.AuditLog{},
	))

	require.NoError(t, database.SeedPhases(db))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		JWT: config.JWTConfig{
			SecretKey:       "test-secret",
			AccessTokenTTL:  1,
			RefreshTokenTTL: 24,
		},
		Payment: config.PaymentConfig{InvoiceDueDays: 30},
		Email: config.EmailConfig{
			FromEmail: "noreply@proppaint.test",
			FromName:  "ProPaint Services",
		},
		Approval: config.ApprovalConfig{
			TokenTTLDays: 7,
			PageBaseURL:  "http://localhost:3000/approval",
		},
	}
}

func createTestProperty(t *testing.T, db *gorm.DB) *models.Property {
	t.Helper()
	property := &models.Property{
		Name:           "Riverbend Apartments",
		Address:        "42 Mill Rd",
		APContactName:  "Dana Whitfield",
		APContactEmail: "ap@riverbend.test",
		IsActive:       true,
	}
	require.NoError(t, db.Create(property).Error)
	return property
}

func phaseByName(t *testing.T, db *gorm.DB, name models.PhaseName) *models.JobPhase {
	t.Helper()
	var phase models.JobPhase
	require.NoError(t, db.Where("name = ?", name).First(&phase).Error)
	return &phase
}

func createTestJob(t *testing.T, db *gorm.DB, property *models.Property, phase models.PhaseName, num string) *models.Job {
	t.Helper()
	job := &models.Job{
		PropertyID:   property.ID,
		WorkOrderNum: num,
		UnitNumber:   "101",
		PhaseID:      phaseByName(t, db, phase).ID,
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

func createTestWorkOrder(t *testing.T, db *gorm.DB, jobID uuid.UUID, hasExtraCharges bool) *models.WorkOrder {
	t.Helper()
	workOrder := &models.WorkOrder{
		JobID:           jobID,
		HasExtraCharges: hasExtraCharges,
	}
	require.NoError(t, db.Create(workOrder).Error)
	return workOrder
}

func createTestExtraChargeItem(t *testing.T, db *gorm.DB, workOrderID uuid.UUID, description, quantity, rateBill, rateSub string) *models.ExtraChargeItem {
	t.Helper()
	item := &models.ExtraChargeItem{
		WorkOrderID: workOrderID,
		Description: description,
		Quantity:    decimal.RequireFromString(quantity),
		RateBill:    decimal.RequireFromString(rateBill),
		RateSub:     decimal.RequireFromString(rateSub),
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func newTestApprovalService(db *gorm.DB) *ApprovalService {
	return NewApprovalService(db, testConfig(), events.NewBroker())
}
