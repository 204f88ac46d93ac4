package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/santeia/triage-api/internal/config"
	"github.com/santeia/triage-api/internal/repository"
	"github.com/santeia/triage-api/internal/repository/postgres"
	"github.com/santeia/triage-api/internal/service/alert"
	"github.com/santeia/triage-api/internal/service/assignment"
	"github.com/santeia/triage-api/internal/service/referral"
	"github.com/santeia/triage-api/internal/worker"
	"github.com/santeia/triage-api/pkg/logger"
	"github.com/santeia/triage-api/pkg/messaging/redis"
	"github.com/santeia/triage-api/pkg/metrics"
)

func setupHealthCheck(port int, lg *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			lg.Error(err, "health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	lg := logger.FromZerolog(log.Logger)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		lg.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(cfg.ToBrokerConfig(), &log.Logger)
	if err != nil {
		lg.Fatal(err, "failed to create Redis broker")
	}
	defer broker.Close()

	measurementRepo := postgres.NewMeasurementRepository(db)
	alertRepo := postgres.NewAlertRepository(db)
	referralRepo := postgres.NewReferralRepository(db)
	assignmentRepo := postgres.NewAssignmentRepository(db)
	departmentRepo := postgres.NewDepartmentRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)

	if err := repository.EnsureDefaultDepartments(context.Background(), departmentRepo, lg); err != nil {
		lg.Fatal(err, "failed to seed default departments")
	}

	assignmentSvc := assignment.NewService(assignmentRepo, patientRepo, doctorRepo, lg)
	referralSvc := referral.NewService(referralRepo, departmentRepo, assignmentSvc, lg)
	alertSvc := alert.NewService(alertRepo, broker, lg)

	m := metrics.New("triage")

	ingestion := worker.NewIngestion(
		broker,
		measurementRepo,
		alertSvc,
		referralSvc,
		worker.IngestionConfig{
			Channel:        cfg.Worker.MeasurementChannel,
			Thresholds:     cfg.Thresholds,
			InitialBackoff: cfg.Worker.InitialBackoff,
			MaxBackoff:     cfg.Worker.MaxBackoff,
		},
		lg,
		m,
	)

	setupHealthCheck(cfg.Server.HealthPort, lg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		lg.Info("shutting down...")
		cancel()
	}()

	if err := ingestion.Run(ctx); err != nil && err != context.Canceled {
		lg.Error(err, "ingestion worker exited")
	}
}
