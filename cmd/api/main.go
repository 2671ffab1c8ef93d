package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"database/sql"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/ledgerkeep/recurring-service/internal/config"
	"github.com/ledgerkeep/recurring-service/internal/handler"
	"github.com/ledgerkeep/recurring-service/internal/middleware"
	"github.com/ledgerkeep/recurring-service/internal/monitor"
	"github.com/ledgerkeep/recurring-service/internal/repository"
	"github.com/ledgerkeep/recurring-service/internal/scheduler"
	"github.com/ledgerkeep/recurring-service/internal/service"
	"github.com/ledgerkeep/recurring-service/internal/system"
	"github.com/ledgerkeep/recurring-service/internal/utils/email"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	loc := time.Local
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			logger.Fatalf("Invalid timezone %q: %v", cfg.Timezone, err)
		}
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	mon := monitor.New(logger)
	processor := service.NewProcessor(repo, mon, logger)
	svc := service.NewService(repo, logger, cfg)
	sched := scheduler.New(logger, loc)

	var notifier system.Notifier
	if cfg.SMTPHost != "" && cfg.OpsEmail != "" {
		notifier = email.NewSender(cfg, logger)
	}

	sys := system.New(system.Config{
		EnableCronJobs:  cfg.EnableCronJobs,
		CronJobSchedule: cfg.CronJobSchedule,
		LogLevel:        cfg.LogLevel,
	}, sched, processor, notifier, logger)
	if err := sys.Initialize(); err != nil {
		logger.Fatalf("Failed to initialize system: %v", err)
	}

	h := handler.NewHandler(svc, processor, sched, sys)

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/recurring/schedule", h.UpcomingSchedule).Methods("GET")
	authRouter.HandleFunc("/recurring/process", h.ProcessRecurring).Methods("POST")
	authRouter.HandleFunc("/recurring/validate", h.ValidateRecurring).Methods("POST")
	authRouter.HandleFunc("/scheduler/stats", h.SchedulerStats).Methods("GET")
	authRouter.HandleFunc("/scheduler/jobs/{name}", h.JobStatus).Methods("GET")
	authRouter.HandleFunc("/scheduler/jobs/{name}", h.UpdateJob).Methods("PUT")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Shut the scheduler and server down together on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	sys.Shutdown()
}
