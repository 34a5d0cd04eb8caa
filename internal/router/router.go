// Package router assembles the HTTP surface: global middleware, operational
// endpoints and the versioned API routes.
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"budgetbook/internal/handlers"
	"budgetbook/internal/middleware"
)

// Options holds the settings that shape the router.
type Options struct {
	CORSAllowOrigins []string
	RequestTimeout   time.Duration
	EnablePprof      bool
	MetricsAPIKey    string
}

// Handlers groups the HTTP handlers mounted under /api/v1.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Budget   *handlers.BudgetHandler
	Expense  *handlers.ExpenseHandler
	Income   *handlers.IncomeHandler
	Overview *handlers.OverviewHandler
}

// New returns a gin engine with middleware and all routes attached.
func New(opts Options, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.New())
	r.Use(middleware.RequestLogging())
	r.Use(middleware.ErrorHandler())

	if len(opts.CORSAllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSAllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.RequestTimeout(opts.RequestTimeout))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", middleware.APIKeyMiddleware(opts.MetricsAPIKey), gin.WrapH(promhttp.Handler()))
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if opts.EnablePprof {
		pprof.Register(r, "debug/pprof")
	}

	AttachRoutes(r.Group("/api/v1"), h)
	return r
}

// AttachRoutes mounts the versioned API on group.
func AttachRoutes(group *gin.RouterGroup, h Handlers) {
	auth := group.Group("/auth")
	{
		auth.POST("/signup", h.Auth.SignUp)
		auth.POST("/signin", h.Auth.SignIn)
		auth.POST("/refresh", h.Auth.Refresh)
	}

	protected := group.Group("")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.GET("/auth/session", h.Auth.GetSession)
		protected.POST("/auth/signout", h.Auth.SignOut)

		protected.GET("/profile", h.Auth.GetProfile)
		protected.PUT("/profile", h.Auth.UpdateProfile)

		budgets := protected.Group("/budgets")
		{
			budgets.POST("", h.Budget.CreateBudget)
			budgets.GET("", h.Budget.GetBudgets)
			budgets.GET("/:id", h.Budget.GetBudget)
			budgets.PUT("/:id", h.Budget.UpdateBudget)
			budgets.DELETE("/:id", h.Budget.DeleteBudget)
			budgets.GET("/:id/progress", h.Budget.GetBudgetProgress)
			budgets.POST("/:id/reconcile", h.Budget.ReconcileBudget)
		}

		expenses := protected.Group("/expenses")
		{
			expenses.POST("", h.Expense.CreateExpense)
			expenses.GET("", h.Expense.GetExpenses)
			expenses.GET("/:id", h.Expense.GetExpense)
			expenses.PUT("/:id", h.Expense.UpdateExpense)
			expenses.DELETE("/:id", h.Expense.DeleteExpense)
		}

		incomes := protected.Group("/incomes")
		{
			incomes.POST("", h.Income.CreateIncome)
			incomes.GET("", h.Income.GetIncomes)
			incomes.GET("/:id", h.Income.GetIncome)
			incomes.DELETE("/:id", h.Income.DeleteIncome)
		}

		protected.GET("/overview", h.Overview.GetOverview)
	}
}
