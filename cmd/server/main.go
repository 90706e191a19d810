package main

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"hrgate-backend/internal/config"
	"hrgate-backend/internal/db"
	"hrgate-backend/internal/erp"
	"hrgate-backend/internal/handler"
	"hrgate-backend/internal/repository"
	"hrgate-backend/internal/server"
	"hrgate-backend/internal/service"
	"hrgate-backend/internal/telemetry"
	"hrgate-backend/internal/timeutil"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup("hrgate-backend")
	defer func() { _ = shutdownTracing(context.Background()) }()

	pg, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect database", "err", err)
		os.Exit(1)
	}
	defer pg.Close()

	times, err := timeutil.NewConverter(cfg.DisplayTimezone)
	if err != nil {
		logger.Error("invalid display timezone", "tz", cfg.DisplayTimezone, "err", err)
		os.Exit(1)
	}

	rpc := erp.NewClient(cfg, logger)

	// Firebase Auth (optional)
	var firebaseAuth *auth.Client
	if cfg.FirebaseProjectID != "" {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, firebaseOptions(cfg)...)
		if err != nil {
			logger.Error("failed to init firebase app", "err", err)
			os.Exit(1)
		}
		client, err := app.Auth(ctx)
		if err != nil {
			logger.Error("failed to init firebase auth", "err", err)
			os.Exit(1)
		}
		firebaseAuth = client
	}

	// repositories
	employeeRepo := repository.EmployeeRepository{RPC: rpc}
	zoneRepo := repository.ZoneRepository{RPC: rpc}
	attendanceRepo := repository.AttendanceRepository{RPC: rpc}
	regularizationRepo := repository.RegularizationRepository{RPC: rpc}
	tokenRepo := repository.TokenRepository{DB: pg}
	secretRepo := repository.SecretRepository{DB: pg}

	// services
	geofenceSvc := service.GeofenceService{Zones: zoneRepo}
	attendanceSvc := service.NewAttendanceService(attendanceRepo, employeeRepo, geofenceSvc, times, logger)
	regularizationSvc := service.RegularizationService{Store: regularizationRepo}
	authSvc := service.NewAuthService(cfg, rpc, employeeRepo, tokenRepo, secretRepo, logger, firebaseAuth)

	// handlers
	healthHandler := handler.HealthHandler{DB: pg, ERP: rpc}
	authHandler := handler.AuthHandler{Service: authSvc, Config: cfg}
	attendanceHandler := handler.AttendanceHandler{Service: attendanceSvc, Tenants: authSvc, Times: times, Logger: logger}
	geoHandler := handler.GeoLocationHandler{Zones: zoneRepo, Tenants: authSvc, Logger: logger}
	regularizationHandler := handler.RegularizationHandler{Service: regularizationSvc, Tenants: authSvc}

	router := server.NewRouter(logger, authSvc, healthHandler, authHandler, attendanceHandler, geoHandler, regularizationHandler)

	if err := server.Start(ctx, cfg, router, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func firebaseOptions(cfg config.Config) []option.ClientOption {
	if cfg.FirebaseCredFile == "" {
		return nil
	}

	cred := cfg.FirebaseCredFile
	// Allow inline JSON or base64-encoded JSON in env to avoid writing a file.
	if strings.HasPrefix(strings.TrimSpace(cred), "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cred))}
	}
	if decoded, err := base64.StdEncoding.DecodeString(cred); err == nil && strings.HasPrefix(strings.TrimSpace(string(decoded)), "{") {
		return []option.ClientOption{option.WithCredentialsJSON(decoded)}
	}

	return []option.ClientOption{option.WithCredentialsFile(cred)}
}
