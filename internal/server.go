package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/runstr-app/runstr-server/internal/auth"
	"github.com/runstr-app/runstr-server/internal/cache"
	"github.com/runstr-app/runstr-server/internal/config"
	"github.com/runstr-app/runstr-server/internal/db"
	"github.com/runstr-app/runstr-server/internal/health"
	"github.com/runstr-app/runstr-server/internal/middleware"
	"github.com/runstr-app/runstr-server/internal/misc"
	"github.com/runstr-app/runstr-server/internal/nostr"
	"github.com/runstr-app/runstr-server/internal/telemetry/metrics"
	"github.com/runstr-app/runstr-server/internal/telemetry/tracing"
	"github.com/runstr-app/runstr-server/internal/workouts"
	"github.com/runstr-app/runstr-server/internal/workouts/analytics"
	workoutsapi "github.com/runstr-app/runstr-server/internal/workouts/api"
	"github.com/runstr-app/runstr-server/internal/workouts/leaderboard"
	"github.com/runstr-app/runstr-server/internal/workouts/merge"

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
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	appRequestsSecret string // used by the runstr mobile app
	versionInfo       string

	config       *config.Config
	dbPool       *pgxpool.Pool
	workoutsRepo *workouts.Repo
	healthClient *health.Client
	nostrClient  *nostr.Client
	orchestrator *merge.Orchestrator
	analyzer     *analytics.Analyzer

	redisClient  *redis.Client
	loginChecker *auth.LoginChecker
	authService  *auth.Service

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	HealthGatewayAPIKey     string
	AppRequestsSecret       string
	VersionInfo             string
	AdminUsername           string
	AdminPasswordHash       string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": "runstr_db"},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("backend", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	authService := auth.NewAuthService(&auth.Admin{
		Username:     params.AdminUsername,
		PasswordHash: params.AdminPasswordHash,
	}, auth.DefaultTTL, rdb)
	go func() {
		for range time.Tick(time.Hour * 8) {
			authService.ScanAndClean(ctx)
		}
	}()

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "runstr-backend", rdb)
	if err != nil {
		return nil, err
	}

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	workoutsRepo := workouts.NewRepo(dbPool)
	healthClient := health.NewClient(
		params.Config.HealthGatewayURL,
		params.HealthGatewayAPIKey,
		params.Config.HealthWindowDays,
		tracedHttpClient,
		metricsManager,
	)
	nostrClient := nostr.NewClient(
		params.Config.NostrGatewayURL,
		tracedHttpClient,
		rdb,
		metricsManager,
	)

	orchestrator := merge.NewOrchestrator(merge.NewOrchestratorParams{
		Sources: []merge.Source{
			workouts.NewLocalSource(workoutsRepo),
			healthClient,
			nostrClient,
		},
		Engine: merge.NewEngine(merge.EngineConfig{
			StartTimeTolerance: params.Config.StartTimeTolerance(),
			DistanceTolerance:  params.Config.DistanceTolerance,
		}),
		Cache:        cache.NewRedisCache(rdb),
		Metrics:      metricsManager,
		FetchTimeout: params.Config.SourceTimeout(),
		CacheTTL:     params.Config.MergedCacheTTL(),
	})

	streakLocation := time.Local
	if params.Config.StreakTimezone != "" {
		loc, err := time.LoadLocation(params.Config.StreakTimezone)
		if err != nil {
			return nil, fmt.Errorf("load streak timezone: %w", err)
		}
		streakLocation = loc
	}
	analyzer := analytics.NewAnalyzer(
		orchestrator,
		params.Config.RecordDistanceTolerance,
		streakLocation,
	)

	return &Server{
		config:            params.Config,
		dbPool:            dbPool,
		appRequestsSecret: params.AppRequestsSecret,
		versionInfo:       params.VersionInfo,

		workoutsRepo: workoutsRepo,
		healthClient: healthClient,
		nostrClient:  nostrClient,
		orchestrator: orchestrator,
		analyzer:     analyzer,

		redisClient:  rdb,
		authService:  authService,
		loginChecker: auth.NewLoginChecker(auth.DefaultTTL, rdb),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	miscHandler := misc.NewHandler(s.versionInfo, s.authService)
	miscHandler.SetupRoutes(r, reqRateLimiter, s.metricsManager, s.config.LoginRateLimitAllowedPerMin)

	workoutsHandler := workoutsapi.NewHandler(s.workoutsRepo, s.orchestrator, s.analyzer, s.metricsManager)
	r.HandleFunc("/workouts", workoutsHandler.HandleAdd).Methods("POST", "OPTIONS").Name("new-workout")
	r.HandleFunc("/workouts/{id}", workoutsHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("remove-workout")
	r.HandleFunc("/workouts/{id}/sync", workoutsHandler.HandleSync).Methods("POST", "OPTIONS").Name("sync-workout")
	r.HandleFunc("/workouts/{userId}", workoutsHandler.HandleList).Methods("GET", "OPTIONS").Name("list-workouts")
	r.HandleFunc("/workouts/{userId}/records", workoutsHandler.HandleRecords).Methods("GET", "OPTIONS").Name("workout-records")
	r.HandleFunc("/workouts/{userId}/streak", workoutsHandler.HandleStreak).Methods("GET", "OPTIONS").Name("workout-streak")
	r.HandleFunc("/workouts/{userId}/scores", workoutsHandler.HandleScores).Methods("GET", "OPTIONS").Name("workout-scores")
	r.HandleFunc("/workouts/{userId}/volume", workoutsHandler.HandleVolume).Methods("GET", "OPTIONS").Name("workout-volume")

	healthHandler := health.NewHandler(s.healthClient)
	r.HandleFunc("/health/status", healthHandler.HandleStatus).Methods("GET", "OPTIONS").Name("health-status")
	r.HandleFunc("/health/authorize", healthHandler.HandleAuthorize).Methods("POST", "OPTIONS").Name("health-authorize")

	leaderboardHandler := leaderboard.NewHandler(s.nostrClient)
	r.HandleFunc("/leaderboard/{category}", leaderboardHandler.HandleRanking).Methods("GET", "OPTIONS").Name("leaderboard")

	// maintenance endpoints, behind an admin session
	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.HandleFunc(
		"/cache/invalidate/{userId}",
		workoutsHandler.HandleInvalidateCache,
	).Methods("POST", "OPTIONS").Name("admin-invalidate-cache")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(
		s.appRequestsSecret,
		s.loginChecker,
	)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(_ context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(host, strconv.Itoa(s.config.MetricsPort))
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

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

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

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
