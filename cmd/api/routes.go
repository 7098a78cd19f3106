package main

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"budgetwise/internal/cache"
	"budgetwise/internal/config"
	"budgetwise/internal/events"
	"budgetwise/internal/handlers"
	"budgetwise/internal/middleware"
	"budgetwise/internal/services"
	"budgetwise/internal/worker"
)

// application bundles the services shared by every route.
type application struct {
	users      services.UserServicer
	budgets    services.BudgetServicer
	resolver   services.TemplateResolver
	recurrents services.RecurrentTransactionServicer
	processor  services.RecurrenceProcessor
	audit      services.AuditServicer
	runner     *worker.Runner
}

func newApplication(db *gorm.DB, store cache.Store, publisher events.Publisher, cfg *config.Config) *application {
	budgets := services.NewBudgetService(db, store)
	resolver := services.NewTemplateResolver(db, cfg.TemplateSearchMonths)
	recurrents := services.NewRecurrentTransactionService(db, store)
	users := services.NewUserService(db)
	processor := services.NewRecurrenceProcessor(
		recurrents,
		budgets,
		services.NewMaterializer(budgets, resolver),
		services.WithPublisher(publisher),
	)

	return &application{
		users:      users,
		budgets:    budgets,
		resolver:   resolver,
		recurrents: recurrents,
		processor:  processor,
		audit:      services.NewAuditService(db),
		runner:     worker.NewRunner(users, processor, cfg.RecurringWorkers),
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.SchedulerKeyHeader},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

func newRouter(app *application, cfg *config.Config) *gin.Engine {
	authHandler := handlers.NewAuthHandler(app.users, app.audit)
	budgetHandler := handlers.NewBudgetHandler(app.budgets, app.resolver, app.audit)
	recurringHandler := handlers.NewRecurringHandler(app.recurrents, app.processor, app.runner, app.audit)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	router.NoRoute(middleware.NotFound())

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Called by an external cron instead of a user.
	internal := v1.Group("/internal")
	internal.Use(middleware.SchedulerAuthMiddleware(cfg.SchedulerAPIKey))
	internal.POST("/recurring/process", recurringHandler.ProcessAll)

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	budgets := protected.Group("/budgets")
	budgets.GET("", budgetHandler.GetBudgets)
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("/by-month", budgetHandler.GetBudgetByMonth)
	budgets.POST("/from-previous-month", budgetHandler.CreateFromPreviousMonth)
	budgets.GET("/:id", budgetHandler.GetBudget)
	budgets.PUT("/:id", budgetHandler.UpdateBudget)
	budgets.DELETE("/:id", budgetHandler.DeleteBudget)
	budgets.GET("/:id/summary", budgetHandler.GetBudgetSummary)
	budgets.POST("/:id/categories", budgetHandler.AddCategory)
	budgets.PUT("/:id/categories/:categoryId", budgetHandler.UpdateCategory)
	budgets.DELETE("/:id/categories/:categoryId", budgetHandler.DeleteCategory)
	budgets.POST("/:id/transactions", budgetHandler.AddTransaction)
	budgets.PUT("/:id/transactions/:transactionId", budgetHandler.UpdateTransaction)
	budgets.DELETE("/:id/transactions/:transactionId", budgetHandler.DeleteTransaction)

	recurring := protected.Group("/recurring")
	recurring.POST("", recurringHandler.CreateRecurring)
	recurring.GET("", recurringHandler.GetRecurring)
	recurring.POST("/process", recurringHandler.Process)
	recurring.GET("/:id", recurringHandler.GetRecurringByID)
	recurring.PUT("/:id", recurringHandler.UpdateRecurring)
	recurring.DELETE("/:id", recurringHandler.DeleteRecurring)
	recurring.POST("/:id/pause", recurringHandler.PauseRecurring)
	recurring.POST("/:id/resume", recurringHandler.ResumeRecurring)
	recurring.GET("/:id/upcoming", recurringHandler.GetUpcoming)
	recurring.GET("/:id/executions", recurringHandler.GetExecution)
	recurring.DELETE("/:id/executions", recurringHandler.Unexecute)
	recurring.POST("/:id/regenerate", recurringHandler.Regenerate)

	return router
}
