// cmd/server/main.go
package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/rocketman0418/campaign-engine/internal/config"
	"github.com/rocketman0418/campaign-engine/internal/controller"
	"github.com/rocketman0418/campaign-engine/internal/db"
	"github.com/rocketman0418/campaign-engine/internal/logging"
	"github.com/rocketman0418/campaign-engine/internal/mailer"
	"github.com/rocketman0418/campaign-engine/internal/observability"
	"github.com/rocketman0418/campaign-engine/internal/repository"
	"github.com/rocketman0418/campaign-engine/internal/resolver"
	"github.com/rocketman0418/campaign-engine/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on OS environment variables")
	}
	cfg := config.LoadServer()
	logger := logging.Init("campaign-api", cfg.LogFormat)

	zone, err := time.LoadLocation(cfg.ReferenceTZ)
	if err != nil {
		logger.Error("invalid reference time zone", "tz", cfg.ReferenceTZ, "error", err)
		os.Exit(1)
	}

	conn, err := db.Connect(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	audienceRepo := &repository.AudienceRepository{DB: conn}
	campaignService := &service.CampaignService{
		CampaignRepo: &repository.CampaignRepository{DB: conn},
		AttemptRepo:  &repository.AttemptRepository{DB: conn},
		Audience:     audienceRepo,
		Resolver:     resolver.New(audienceRepo),
		Mailer:       mailer.New(cfg.MailerURL, cfg.MailerAPIKey),
		Limiter:      rate.NewLimiter(rate.Limit(cfg.MailerRPS), cfg.MailerBurst),
		Breaker:      gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "mailer"}),
		Zone:         zone,
		BatchSize:    cfg.BatchSize,

		UnsubscribeBaseURL: cfg.UnsubscribeBaseURL,
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
	}

	reg := prometheus.NewRegistry()
	observability.Register(reg)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		logger.Info("metrics listening", "port", cfg.MetricsPort)
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Group(campaignController.Routes)

	logger.Info("🚀 server running", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
