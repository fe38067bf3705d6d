package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/2beens/fit45/internal/auth"
	"github.com/2beens/fit45/internal/challenge"
	"github.com/2beens/fit45/internal/challenge/window"
	"github.com/2beens/fit45/internal/config"
	"github.com/2beens/fit45/internal/db"
	"github.com/2beens/fit45/internal/middleware"
	"github.com/2beens/fit45/internal/outbox"
	"github.com/2beens/fit45/internal/plan"
	"github.com/2beens/fit45/internal/reminders"
	"github.com/2beens/fit45/internal/telemetry/metrics"
	"github.com/2beens/fit45/internal/telemetry/tracing"
	"github.com/2beens/fit45/pkg"
)

const (
	sessionsCleanupInterval = 8 * time.Hour
	maxRequestBodyBytes     = 64 * 1024
)

type Server struct {
	httpServer          *http.Server
	metricsHttpServer   *http.Server
	schedulerSecretHash string // bcrypt hash of the secret the scheduler sends on /internal routes
	versionInfo         string

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client

	sessionChecker auth.Checker
	authHandler    *auth.Handler
	challenge      *challenge.Service
	planFetcher    *plan.Fetcher
	reminderJob    *reminders.Job

	kafkaProducer    *outbox.KafkaProducer
	dispatcher       *outbox.Dispatcher
	backgroundJobsWG sync.WaitGroup

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	SchedulerSecretHash     string
	RedisPassword           string
	PostgresPassword        string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		DBUser:         cfg.PostgresUser,
		DBPassword:     params.PostgresPassword,
		MaxConns:       cfg.PostgresMaxConns,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}
	if err := db.Migrate(ctx, dbPool); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(params.VersionInfo, pgxpoolCollector)
	metricsManager := metrics.NewManager("fit45", "service", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "fit45-service", rdb)
	if err != nil {
		return nil, err
	}

	resolver, err := window.NewResolver(cfg.WindowTimezone, cfg.WindowOffsetMinutes, cfg.WindowBoundaryHour)
	if err != nil {
		return nil, fmt.Errorf("window resolver: %w", err)
	}

	authService := auth.NewService(auth.DefaultTTL, rdb)
	sessionChecker := auth.NewSessionChecker(auth.DefaultTTL, cfg.SessionLocalCacheTTL.Duration, rdb)

	kafkaProducer := outbox.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaWriteTimeout.Duration)

	challengeService := challenge.NewService(challenge.NewRepo(dbPool), resolver, metricsManager)
	challengeService.SheetHosts = challenge.NewSheetHosts(cfg.PlanSheetHosts)

	s := &Server{
		config:              cfg,
		dbPool:              dbPool,
		redisClient:         rdb,
		schedulerSecretHash: params.SchedulerSecretHash,
		versionInfo:         params.VersionInfo,

		sessionChecker: sessionChecker,
		authHandler:    auth.NewHandler(authService, sessionChecker),
		challenge:      challengeService,
		planFetcher: plan.NewFetcher(
			map[challenge.Routine]string{
				challenge.RoutineHome: cfg.HomePlanSheetURL,
				challenge.RoutineGym:  cfg.GymPlanSheetURL,
			},
			cfg.PlanFetchTimeout.Duration,
			cfg.PlanCacheTTL.Duration,
		),
		reminderJob: reminders.NewJob(reminders.NewRepo(dbPool), kafkaProducer, resolver, metricsManager),

		kafkaProducer: kafkaProducer,
		dispatcher: outbox.NewDispatcher(
			outbox.NewRepo(dbPool),
			kafkaProducer,
			metricsManager,
			cfg.OutboxPollInterval.Duration,
			cfg.OutboxBatchSize,
		),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}

	s.backgroundJobsWG.Add(1)
	go func() {
		defer s.backgroundJobsWG.Done()
		ticker := time.NewTicker(sessionsCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				authService.ScanAndClean(ctx)
			}
		}
	}()

	return s, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("fit45-router"))

	r.HandleFunc("/", s.handleRoot).Methods("GET")
	r.HandleFunc("/version", s.handleVersion).Methods("GET")

	challengeHandler := challenge.NewHandler(s.challenge)
	r.HandleFunc("/profile", challengeHandler.HandleSignUp).Methods("POST", "OPTIONS").Name("signup")
	r.HandleFunc("/profile", challengeHandler.HandleGetProfile).Methods("GET", "OPTIONS").Name("get-profile")
	r.HandleFunc("/profile/routine", challengeHandler.HandleChangeRoutine).Methods("PUT", "OPTIONS").Name("change-routine")
	r.HandleFunc("/profile/sessions", challengeHandler.HandleListSessions).Methods("GET", "OPTIONS").Name("list-sessions")
	r.HandleFunc("/window/current", challengeHandler.HandleCurrentWindow).Methods("GET", "OPTIONS").Name("current-window")
	r.HandleFunc("/completions/eligibility", challengeHandler.HandleEligibility).Methods("GET", "OPTIONS").Name("eligibility")
	r.Handle("/completions", middleware.RateLimit(
		redis_rate.NewLimiter(s.redisClient),
		s.metricsManager,
		"record-completion",
		s.config.CompletionsPerMinute,
	)(http.HandlerFunc(challengeHandler.HandleRecordCompletion))).Methods("POST", "OPTIONS").Name("record-completion")
	r.HandleFunc("/reviews", challengeHandler.HandleSubmitReview).Methods("POST", "OPTIONS").Name("submit-review")

	planHandler := plan.NewHandler(s.planFetcher, s.challenge)
	r.HandleFunc("/plan/day/{day}", planHandler.HandleDay).Methods("GET", "OPTIONS").Name("plan-day")

	// scheduler and auth provider hooks, guarded by the scheduler secret
	remindersHandler := reminders.NewHandler(s.reminderJob)
	r.HandleFunc("/internal/sweep", challengeHandler.HandleSweep).Methods("POST").Name("sweep")
	r.HandleFunc("/internal/reminders", remindersHandler.HandleDispatch).Methods("POST").Name("reminders")
	r.HandleFunc("/internal/sessions", s.authHandler.HandleMirrorSession).Methods("POST").Name("mirror-session")
	r.HandleFunc("/internal/sessions/{token}", s.authHandler.HandleRevokeSession).Methods("DELETE").Name("revoke-session")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(
		s.schedulerSecretHash,
		s.sessionChecker,
	)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.LimitAndDrainRequest(maxRequestBodyBytes))

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "fit45, 45 days, one workout a day")
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, s.versionInfo)
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	go s.dispatcher.Start(ctx)

	s.metricsManager.GaugeLifeSignal.Set(1)
}

// GracefulShutdown expects the context passed to NewServer and Serve to be canceled already.
func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.dispatcher != nil && s.httpServer != nil {
		s.dispatcher.Wait()
		log.Debugln("outbox dispatcher stopped")
	}
	s.backgroundJobsWG.Wait()

	if s.kafkaProducer != nil {
		if err := s.kafkaProducer.Close(); err != nil {
			log.Errorf("failed to close kafka writers: %s", err)
		}
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}
