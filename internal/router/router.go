// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/propaintco/proppaint-backend/internal/config"
	"github.com/propaintco/proppaint-backend/internal/events"
	"github.com/propaintco/proppaint-backend/internal/handlers"
	"github.com/propaintco/proppaint-backend/internal/middleware"
	"github.com/propaintco/proppaint-backend/internal/services"
	"github.com/propaintco/proppaint-backend/internal/utils"
)

// Dependencies carries the wired service graph so main can reuse pieces of it
// (the scheduler needs the approval service).
type Dependencies struct {
	Broker          *events.Broker
	ApprovalService *services.ApprovalService
}

func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, *Dependencies, error) {
	broker := events.NewBroker()

	storageService, err := services.NewStorageService(db, cfg)
	if err != nil {
		return nil, nil, err
	}

	authService := services.NewAuthService(db, cfg)
	propertyService := services.NewPropertyService(db)
	jobService := services.NewJobService(db, storageService, broker)
	approvalService := services.NewApprovalService(db, cfg, broker)
	phaseService := services.NewPhaseService(db, approvalService, broker)
	notificationService := services.NewNotificationService(db, cfg, approvalService, jobService)
	paymentService := services.NewPaymentService(db, cfg)
	pdfService := services.NewPDFService(jobService)
	adminService := services.NewAdminService(db)

	authHandler := handlers.NewAuthHandler(authService)
	propertyHandler := handlers.NewPropertyHandler(propertyService)
	jobHandler := handlers.NewJobHandler(jobService, phaseService, pdfService, storageService, notificationService, paymentService)
	approvalHandler := handlers.NewApprovalHandler(approvalService, phaseService, jobService)
	adminHandler := handlers.NewAdminHandler(adminService, broker)

	utils.SetJWTSecret(cfg.JWT.SecretKey)

	limiters := middleware.NewRateLimiters()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg))
	r.Use(limiters.General.Middleware())
	r.Use(middleware.AuditLog(db))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	v1 := r.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.Use(limiters.Auth.Middleware())
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Public approval page endpoints: the emailed token is the credential.
		approval := v1.Group("/approval")
		approval.Use(limiters.Approval.Middleware())
		{
			approval.GET("/:token", approvalHandler.GetApprovalPage)
			approval.POST("/:token", approvalHandler.Decide)
		}

		protected := v1.Group("")
		protected.Use(middleware.AuthRequired())
		{
			properties := protected.Group("/properties")
			{
				properties.GET("", propertyHandler.List)
				properties.GET("/:id", propertyHandler.Get)
				properties.GET("/:id/billing-details", propertyHandler.ListBillingDetails)

				adminOnly := properties.Group("")
				adminOnly.Use(middleware.AdminRequired())
				{
					adminOnly.POST("", propertyHandler.Create)
					adminOnly.PUT("/:id", propertyHandler.Update)
					adminOnly.POST("/:id/billing-details", propertyHandler.CreateBillingDetail)
				}
			}

			billingDetails := protected.Group("/billing-details")
			billingDetails.Use(middleware.AdminRequired())
			{
				billingDetails.PUT("/:id", propertyHandler.UpdateBillingDetail)
				billingDetails.DELETE("/:id", propertyHandler.DeleteBillingDetail)
			}

			protected.GET("/unit-sizes", propertyHandler.ListUnitSizes)
			protected.POST("/unit-sizes", middleware.AdminRequired(), propertyHandler.CreateUnitSize)
			protected.GET("/billing-categories", propertyHandler.ListCategories)

			jobs := protected.Group("/jobs")
			{
				jobs.GET("", jobHandler.List)
				jobs.GET("/:id", jobHandler.Get)
				jobs.GET("/:id/billing-summary", jobHandler.BillingSummary)
				jobs.GET("/:id/phase-history", jobHandler.PhaseHistory)
				jobs.GET("/:id/approval-status", approvalHandler.GetJobApprovalStatus)
				jobs.GET("/:id/pdf", jobHandler.ExportPDF)
				jobs.GET("/:id/files", jobHandler.ListFiles)

				jobs.POST("", jobHandler.Create)
				jobs.PUT("/:id", jobHandler.Update)
				jobs.PUT("/:id/work-order", jobHandler.SaveWorkOrder)
				jobs.POST("/:id/submit", jobHandler.Submit)
				jobs.POST("/:id/files", limiters.Upload.Middleware(), jobHandler.UploadFile)

				adminOnly := jobs.Group("")
				adminOnly.Use(middleware.AdminRequired())
				{
					adminOnly.DELETE("/:id", jobHandler.Delete)
					adminOnly.PUT("/:id/billing-lines", jobHandler.SetBillingLines)
					adminOnly.POST("/:id/advance", jobHandler.Advance)
					adminOnly.POST("/:id/revert", jobHandler.Revert)
					adminOnly.POST("/:id/approve", jobHandler.ApproveExtraCharges)
					adminOnly.POST("/:id/cancel", jobHandler.Cancel)
					adminOnly.POST("/:id/reactivate", jobHandler.Reactivate)
					adminOnly.POST("/:id/archive", jobHandler.Archive)
					adminOnly.POST("/:id/send-approval", jobHandler.SendApprovalRequest)
					adminOnly.POST("/:id/invoice/send", jobHandler.SendInvoice)
					adminOnly.POST("/:id/invoice/paid", jobHandler.MarkInvoicePaid)
				}
			}

			files := protected.Group("/files")
			{
				files.GET("/:id/preview", jobHandler.PreviewFile)
				files.DELETE("/:id", middleware.AdminRequired(), jobHandler.DeleteFile)
			}

			admin := protected.Group("/admin")
			admin.Use(middleware.AdminRequired())
			{
				admin.GET("/users", authHandler.ListUsers)
				admin.POST("/users", authHandler.CreateUser)
				admin.PUT("/users/:id", authHandler.UpdateUser)

				admin.GET("/notifications", adminHandler.ListNotifications)
				admin.POST("/notifications/:id/read", adminHandler.MarkNotificationRead)

				admin.GET("/email-logs", adminHandler.ListEmailLogs)
				admin.GET("/email-templates", adminHandler.ListEmailTemplates)
				admin.POST("/email-templates", adminHandler.CreateEmailTemplate)
				admin.PUT("/email-templates/:id", adminHandler.UpdateEmailTemplate)

				admin.GET("/events", adminHandler.StreamEvents)
			}
		}
	}

	deps := &Dependencies{
		Broker:          broker,
		ApprovalService: approvalService,
	}
	return r, deps, nil
}
