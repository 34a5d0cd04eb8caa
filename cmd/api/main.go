package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"budgetbook/internal/config"
	"budgetbook/internal/database"
	_ "budgetbook/internal/docs" // Import swagger docs
	"budgetbook/internal/events"
	"budgetbook/internal/handlers"
	"budgetbook/internal/ledger"
	"budgetbook/internal/logger"
	"budgetbook/internal/money"
	"budgetbook/internal/router"
	"budgetbook/internal/services"
	"budgetbook/internal/validator"

	"github.com/gin-gonic/gin"
)

// @title           Budgetbook API
// @version         1.0
// @description     Budgetbook is a personal budgeting service: budgets, expenses, incomes and a dashboard overview.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 10 * time.Second

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.Register()

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("failed to close database: %v", err)
		}
	}()

	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	policy, err := ledger.ParsePolicy(appConfig.LedgerMissingBudgetPolicy)
	if err != nil {
		return err
	}

	var publisher events.Publisher = events.NopPublisher{}
	if appConfig.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(appConfig.AMQPURL, appConfig.AMQPExchange)
		if err != nil {
			return fmt.Errorf("failed to connect event publisher: %w", err)
		}
		defer func() {
			if err := amqpPublisher.Close(); err != nil {
				log.Warnf("failed to close event publisher: %v", err)
			}
		}()
		publisher = amqpPublisher
		log.Infof("Publishing change events to exchange %q", appConfig.AMQPExchange)
	}

	// Initialize services
	db := dbManager.DB()
	l := ledger.New(policy)
	l.OnWarning = services.DriftNotifier(publisher)
	log.Infof("Ledger missing-budget policy: %s", l.Policy())
	userService := services.NewUserService(db, appConfig.AuthPlaceholderDomain, publisher)
	budgetService := services.NewBudgetService(db, l, publisher)
	expenseService := services.NewExpenseService(db, l, publisher)
	incomeService := services.NewIncomeService(db, publisher)
	overviewService := services.NewOverviewService(db, money.NewFormatter(appConfig.CurrencyLabel))
	auditService := services.NewAuditService(db)

	engine := router.New(router.Options{
		CORSAllowOrigins: appConfig.CORSAllowOrigins,
		RequestTimeout:   appConfig.RequestTimeout,
		EnablePprof:      appConfig.EnablePprof,
		MetricsAPIKey:    appConfig.MetricsAPIKey,
	}, router.Handlers{
		Auth:     handlers.NewAuthHandler(userService),
		Budget:   handlers.NewBudgetHandler(budgetService, auditService),
		Expense:  handlers.NewExpenseHandler(expenseService, auditService),
		Income:   handlers.NewIncomeHandler(incomeService, auditService),
		Overview: handlers.NewOverviewHandler(overviewService),
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Budgetbook server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
