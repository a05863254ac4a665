// internal/database/connection.go
package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/propaintco/proppaint-backend/internal/config"
	"github.com/propaintco/proppaint-backend/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Database connection established")
	return db, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	err := db.AutoMigrate(
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
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Job indexes
		"CREATE INDEX IF NOT EXISTS idx_jobs_property_phase ON jobs(property_id, phase_id)",
		"CREATE INDEX IF NOT EXISTS idx_jobs_subcontractor ON jobs(subcontractor_id)",
		"CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_jobs_invoice_flags ON jobs(invoice_sent, invoice_paid)",

		// Phase-change audit indexes
		"CREATE INDEX IF NOT EXISTS idx_job_phase_changes_job ON job_phase_changes(job_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_job_phase_changes_decision ON job_phase_changes(decision) WHERE decision <> ''",

		// Billing indexes
		"CREATE INDEX IF NOT EXISTS idx_billing_details_scope ON billing_details(property_id, category_id, unit_size_id)",
		"CREATE INDEX IF NOT EXISTS idx_job_billing_lines_job ON job_billing_lines(job_id)",

		// Approval token indexes. The partial unique index backs the
		// one-active-token-per-(job, type) guard.
		"CREATE INDEX IF NOT EXISTS idx_approval_tokens_job_type ON approval_tokens(job_id, approval_type, created_at DESC)",
		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_approval_tokens_active ON approval_tokens(job_id, approval_type) WHERE status = 'pending' AND superseded_at IS NULL AND deleted_at IS NULL",

		// Email + notification indexes
		"CREATE INDEX IF NOT EXISTS idx_email_logs_job ON email_logs(job_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_admin_notifications_unread ON admin_notifications(type, created_at DESC) WHERE read_at IS NULL",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).Warnf("Failed to create index: %s", index)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation, used to translate the active-token index into a domain error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	logrus.Info("Seeding initial data...")

	if err := SeedPhases(db); err != nil {
		return err
	}

	if err := seedBillingCategories(db); err != nil {
		return err
	}

	// Create default admin user
	var adminCount int64
	db.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.User{
			Username: "admin",
			Email:    "admin@proppaint.com",
			Role:     models.UserRoleAdmin,
			Status:   models.UserStatusActive,
			FullName: "System Administrator",
		}

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		logrus.Info("Default admin user created")
	}

	logrus.Info("Initial data seeding completed")
	return nil
}

// SeedPhases inserts the fixed phase catalog. Advance/revert walk only the
// navigable phases in sequence order; the rest are reached by named actions.
func SeedPhases(db *gorm.DB) error {
	phases := []models.JobPhase{
		{Name: models.PhaseJobRequest, Sequence: 1, Navigable: true},
		{Name: models.PhasePendingWorkOrder, Sequence: 2},
		{Name: models.PhaseWorkOrder, Sequence: 3, Navigable: true},
		{Name: models.PhaseInvoicing, Sequence: 4, Navigable: true},
		{Name: models.PhaseCompleted, Sequence: 5, Navigable: true},
		{Name: models.PhaseCancelled, Sequence: 6, Terminal: true},
		{Name: models.PhaseArchived, Sequence: 7, Terminal: true},
	}

	for _, phase := range phases {
		var count int64
		db.Model(&models.JobPhase{}).Where("name = ?", phase.Name).Count(&count)
		if count == 0 {
			if err := db.Create(&phase).Error; err != nil {
				return fmt.Errorf("failed to seed phase %s: %w", phase.Name, err)
			}
		}
	}

	return nil
}

func seedBillingCategories(db *gorm.DB) error {
	categories := []string{
		"Base Paint",
		models.CategoryPaintedCeilings,
		models.CategoryAccentWall,
		models.CategoryAccentWall + " - Full Paint",
		models.CategoryAccentWall + " - Paint Over",
		models.CategoryHourly,
	}

	for i, name := range categories {
		var count int64
		db.Model(&models.BillingCategory{}).Where("name = ?", name).Count(&count)
		if count == 0 {
			category := models.BillingCategory{Name: name, SortOrder: i + 1}
			if err := db.Create(&category).Error; err != nil {
				return fmt.Errorf("failed to seed billing category %s: %w", name, err)
			}
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
