package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/config"
	"github.com/Biswadipgoj/emi-portal-full/internal/crypto"
	"github.com/Biswadipgoj/emi-portal-full/internal/handler"
	"github.com/Biswadipgoj/emi-portal-full/internal/repository"
	"github.com/Biswadipgoj/emi-portal-full/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sql.Open("postgres", fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	))
	if err != nil {
		logger.Fatalf("Failed to open database connection: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	if cfg.HMACSecret == "" {
		logger.Fatal("HMAC_SECRET environment variable is not set")
	}
	pgpManager, err := crypto.NewPGPManager(cfg.PGPKeyPath, []byte(cfg.HMACSecret))
	if err != nil {
		logger.Fatalf("Failed to initialize PGP: %v", err)
	}

	logger.Info("Initializing repositories...")
	userRepo := repository.NewUserRepository(db, logger)
	retailerRepo := repository.NewRetailerRepository(db, logger)
	customerRepo := repository.NewCustomerRepository(db, logger)
	emiRepo := repository.NewEMIRepository(db, logger)
	paymentRepo := repository.NewPaymentRepository(db, logger)
	reportRepo := repository.NewReportRepository(db, logger)
	auditRepo := repository.NewAuditRepository(db, logger)
	settingsRepo := repository.NewSettingsRepository(db, logger)

	logger.Info("Initializing services...")
	emailSender := service.NewEmailSender(logger)
	auditor := service.NewAuditor(auditRepo, logger)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenExpiry, logger)
	breakdownService := service.NewBreakdownService(customerRepo, emiRepo, logger)
	customerService := service.NewCustomerService(customerRepo, emiRepo, retailerRepo, pgpManager, auditor, logger)
	paymentService := service.NewPaymentService(paymentRepo, emiRepo, customerRepo, retailerRepo, auditor, emailSender, logger)
	retailerService := service.NewRetailerService(retailerRepo, userRepo, customerRepo, logger)
	fineService := service.NewFineService(emiRepo, settingsRepo, auditor, logger)
	reportService := service.NewReportService(reportRepo, logger)
	documentService := service.NewDocumentService(customerRepo, emiRepo, paymentRepo, retailerRepo, pgpManager, logger)

	logger.Info("Initializing API handlers...")
	authHandler := handler.NewAuthHandler(authService, logger)
	customerHandler := handler.NewCustomerHandler(customerService, breakdownService, paymentService, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)
	retailerHandler := handler.NewRetailerHandler(retailerService, logger)
	adminHandler := handler.NewAdminHandler(fineService, reportService, auditor, logger)
	documentHandler := handler.NewDocumentHandler(documentService, logger)
	lookupHandler := handler.NewLookupHandler(customerService, logger)

	router := mux.NewRouter()

	// Public: sign-in and the customer self-lookup.
	authRouter := router.PathPrefix("/auth").Subrouter()
	authHandler.RegisterRoutes(authRouter)

	publicRouter := router.PathPrefix("/public").Subrouter()
	lookupHandler.RegisterRoutes(publicRouter)

	// Everything else requires a valid token.
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(handler.AuthMiddleware(authService, logger))
	customerHandler.RegisterRoutes(apiRouter)
	paymentHandler.RegisterRoutes(apiRouter)
	retailerHandler.RegisterRoutes(apiRouter)
	adminHandler.RegisterRoutes(apiRouter)
	documentHandler.RegisterRoutes(apiRouter)

	logger.Info("Scheduling nightly fine accrual...")
	c := cron.New()
	_, err = c.AddFunc(cfg.FineAccrualSchedule, func() {
		logger.Info("Running fine accrual")
		if err := fineService.AccrueOverdueFines(context.Background()); err != nil {
			logger.WithError(err).Error("Fine accrual failed")
		}
	})
	if err != nil {
		logger.Fatalf("Failed to schedule fine accrual: %v", err)
	}
	c.Start()

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		logger.Infof("Starting server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	c.Stop()
	if err := server.Shutdown(context.Background()); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
	logger.Info("Server stopped")
}
