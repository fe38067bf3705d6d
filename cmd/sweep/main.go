// Command sweep resets the streaks of users who missed a whole workout window.
// It is meant to run from cron shortly after the daily boundary.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2beens/fit45/internal/challenge"
	"github.com/2beens/fit45/internal/challenge/window"
	"github.com/2beens/fit45/internal/config"
	"github.com/2beens/fit45/internal/db"
	"github.com/2beens/fit45/internal/logging"
	"github.com/2beens/fit45/internal/telemetry/metrics"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development | ddev | dockerdev ]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	timeout := flag.Duration("timeout", 10*time.Minute, "max duration of the sweep")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    cfg.LogFormatJSON,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		SentryServerName: "fit45-sweep",
	})

	os.Exit(run(cfg, *timeout))
}

// run returns the process exit code. Every failure returns, so the deferred
// metrics push and sentry flush happen before the process exits.
func run(cfg *config.Config, timeout time.Duration) int {
	defer sentry.Flush(5 * time.Second)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	defer timeoutCancel()

	promRegistry := metrics.SetupPrometheus("")
	metricsManager := metrics.NewManager("fit45", "sweep", promRegistry)
	defer func() {
		pushCtx, pushCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pushCancel()
		if err := metrics.PushToGateway(pushCtx, cfg.PrometheusPushgatewayURL, "fit45_sweep", promRegistry); err != nil {
			log.Errorln(err)
		}
	}()

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:     cfg.PostgresHost,
		DBPort:     cfg.PostgresPort,
		DBName:     cfg.PostgresDBName,
		DBUser:     cfg.PostgresUser,
		DBPassword: os.Getenv("POSTGRES_PASS"),
		MaxConns:   4,
	})
	if err != nil {
		log.Errorf("new db pool: %s", err)
		return 1
	}
	defer dbPool.Close()

	resolver, err := window.NewResolver(cfg.WindowTimezone, cfg.WindowOffsetMinutes, cfg.WindowBoundaryHour)
	if err != nil {
		log.Errorf("window resolver: %s", err)
		return 1
	}

	service := challenge.NewService(
		challenge.NewRepo(dbPool),
		resolver,
		metricsManager,
	)

	result, err := service.SweepInactiveStreaks(ctx)
	if err != nil {
		log.Errorf("sweep failed: %s", err)
		return 1
	}
	if result.Failed > 0 {
		log.Warnf("sweep [%s] left %d users for the next run", result.WindowLabel, result.Failed)
	}
	return 0
}
