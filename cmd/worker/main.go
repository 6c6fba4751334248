// cmd/worker/main.go
//
// The worker is the time-based trigger for scheduled and recurring
// campaigns: a polling loop publishes due campaign ids to RabbitMQ and a
// consumer drives each one through the resume loop.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/rocketman0418/campaign-engine/internal/config"
	"github.com/rocketman0418/campaign-engine/internal/db"
	appErrors "github.com/rocketman0418/campaign-engine/internal/errors"
	"github.com/rocketman0418/campaign-engine/internal/logging"
	"github.com/rocketman0418/campaign-engine/internal/mailer"
	"github.com/rocketman0418/campaign-engine/internal/observability"
	"github.com/rocketman0418/campaign-engine/internal/queue"
	"github.com/rocketman0418/campaign-engine/internal/repository"
	"github.com/rocketman0418/campaign-engine/internal/resolver"
	"github.com/rocketman0418/campaign-engine/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on OS environment variables")
	}
	cfg := config.LoadWorker()
	logger := logging.Init("campaign-worker", cfg.LogFormat)

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

	campaignRepo := &repository.CampaignRepository{DB: conn}
	audienceRepo := &repository.AudienceRepository{DB: conn}
	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
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

	amqpConn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	publisher, err := queue.NewPublisher(amqpConn, cfg.FireQueue)
	if err != nil {
		logger.Error("failed to open publisher channel", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	observability.Register(reg)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	go pollDue(campaignRepo, publisher, time.Duration(cfg.PollInterval)*time.Second, logger)

	logger.Info("worker running, waiting for fire jobs", "queue", cfg.FireQueue)
	err = queue.Consume(amqpConn, cfg.FireQueue, func(job queue.FireJob) error {
		ctx := context.Background()
		var runErr error
		switch job.Kind {
		case queue.KindScheduled:
			_, runErr = campaignService.FireScheduled(ctx, job.CampaignID)
		default:
			_, runErr = campaignService.FireDue(ctx, job.CampaignID)
		}
		if errors.Is(runErr, appErrors.ErrNotDue) {
			// Another consumer already ran this cycle; nothing to retry.
			return nil
		}
		return runErr
	})
	if err != nil {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
}

// pollDue publishes a fire job for every campaign whose trigger time has
// passed. FireDue/FireScheduled re-check due-ness, so duplicate publishes
// are harmless.
func pollDue(repo *repository.CampaignRepository, publisher *queue.Publisher, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for ; ; <-ticker.C {
		now := time.Now()

		recurring, err := repo.ListDueRecurring(now)
		if err != nil {
			logger.Error("listing due recurring campaigns failed", "error", err)
		}
		for _, c := range recurring {
			if err := publisher.Publish(queue.FireJob{CampaignID: c.ID, Kind: queue.KindRecurring}); err != nil {
				logger.Error("publish failed", "campaign_id", c.ID, "error", err)
			}
		}

		scheduled, err := repo.ListDueScheduled(now)
		if err != nil {
			logger.Error("listing due scheduled campaigns failed", "error", err)
		}
		for _, c := range scheduled {
			if err := publisher.Publish(queue.FireJob{CampaignID: c.ID, Kind: queue.KindScheduled}); err != nil {
				logger.Error("publish failed", "campaign_id", c.ID, "error", err)
			}
		}
	}
}
