package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"cityreports/libs/reportview"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultFetchLimit        = 5000
	defaultFetchTimeout      = 10 * time.Second
	defaultSessionTTL        = 30 * time.Minute
	sessionCleanupInterval   = time.Minute
	mongoConnectTimeout      = 15 * time.Second
	devCORSOriginLocalhost   = "http://localhost:5173"
	devCORSOriginLoopback    = "http://127.0.0.1:5173"
	trustedProxyLoopbackIPv4 = "127.0.0.1"
	trustedProxyLoopbackIPv6 = "::1"
)

const (
	sourceHTTP     = "http"
	sourcePostgres = "postgres"
	sourceMongo    = "mongo"
	sourceAuto     = "auto"
)

var reportSourceKinds = []string{sourceHTTP, sourcePostgres, sourceMongo, sourceAuto}

type Config struct {
	Addr            string
	Env             string
	PublicBaseURL   string
	ReportSource    string
	ReportsAPIURL   string
	ReportsAPIToken string
	DatabaseURL     string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	FetchLimit      int
	FetchTimeout    time.Duration
	SessionTTL      time.Duration
	Zone            *time.Location
	MapDefaultZoom  int
}

type App struct {
	cfg    *Config
	log    *slog.Logger
	source ReportSource

	sessionsMu sync.Mutex
	sessions   map[string]*viewSession

	rateLimiterMu sync.Mutex
	rateBuckets   map[string]rateBucket

	// test hooks
	now          func() time.Time
	newSessionID func() string
}

type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	source, closeSource, err := openReportSource(ctx, cfg, logger)
	if err != nil {
		panic(err)
	}
	defer closeSource()

	app := newApp(cfg, logger, source)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	app.startSessionCleanup(cleanupCtx, sessionCleanupInterval)

	logger.Info(
		"runtime configuration",
		"env",
		cfg.Env,
		"addr",
		cfg.Addr,
		"report_source",
		cfg.ReportSource,
		"fetch_limit",
		cfg.FetchLimit,
		"timezone",
		cfg.Zone.String(),
	)

	r := gin.New()
	if err := r.SetTrustedProxies([]string{trustedProxyLoopbackIPv4, trustedProxyLoopbackIPv6}); err != nil {
		panic(err)
	}
	r.Use(gin.Recovery())
	r.Use(app.loggingMiddleware())
	r.Use(app.corsMiddleware())
	app.registerRoutes(r)

	app.log.Info("starting gin API", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		panic(err)
	}
}

func newApp(cfg *Config, logger *slog.Logger, source ReportSource) *App {
	return &App{
		cfg:          cfg,
		log:          logger,
		source:       source,
		sessions:     make(map[string]*viewSession),
		rateBuckets:  make(map[string]rateBucket),
		now:          time.Now,
		newSessionID: newViewSessionID,
	}
}

func (a *App) registerRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/views", a.createViewHandler)
		api.GET("/views/:id", a.getViewHandler)
		api.DELETE("/views/:id", a.deleteViewHandler)
		api.PUT("/views/:id/criteria", a.setCriteriaHandler)
		api.POST("/views/:id/page", a.setPageHandler)
		api.POST("/views/:id/viewport", a.viewportHandler)
		api.POST("/views/:id/recenter", a.recenterHandler)
		api.POST("/views/:id/refresh", a.refreshHandler)
		api.PATCH("/views/:id/reports/:reportID", a.patchReportHandler)
		api.DELETE("/views/:id/reports/:reportID", a.deleteReportHandler)
	}
}

func loadConfig() (*Config, error) {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		host := valueFromEnvKeys("PGHOST", "POSTGRES_HOST")
		if host == "" {
			host = "127.0.0.1"
		}
		port := valueFromEnvKeys("PGPORT", "POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		dbname := valueFromEnvKeys("PGDATABASE", "POSTGRES_DB")
		user := valueFromEnvKeys("PGUSER", "POSTGRES_USER")
		password := valueFromEnvKeys("PGPASSWORD", "POSTGRES_PASSWORD")
		sslmode := valueFromEnvKeys("PGSSLMODE", "POSTGRES_SSLMODE")
		if sslmode == "" {
			sslmode = "disable"
		}
		if dbname != "" && user != "" {
			databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, dbname, sslmode)
		}
	}

	publicBase := strings.TrimRight(valueOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/")

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	cfg := &Config{
		Addr:            valueOrDefault("GIN_ADDR", ":8080"),
		Env:             env,
		PublicBaseURL:   publicBase,
		ReportSource:    strings.ToLower(valueOrDefault("REPORT_SOURCE", sourceAuto)),
		ReportsAPIURL:   strings.TrimSpace(os.Getenv("REPORTS_API_URL")),
		ReportsAPIToken: strings.TrimSpace(os.Getenv("REPORTS_API_TOKEN")),
		DatabaseURL:     databaseURL,
		MongoURI:        strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDatabase:   valueOrDefault("MONGO_DATABASE", "cityreports"),
		MongoCollection: valueOrDefault("MONGO_COLLECTION", "reports"),
		FetchLimit:      defaultFetchLimit,
		FetchTimeout:    defaultFetchTimeout,
		SessionTTL:      defaultSessionTTL,
		Zone:            time.Local,
		MapDefaultZoom:  reportview.DefaultMapZoom,
	}

	if !containsString(reportSourceKinds, cfg.ReportSource) {
		return nil, fmt.Errorf("REPORT_SOURCE must be one of %s", strings.Join(reportSourceKinds, ", "))
	}
	switch cfg.ReportSource {
	case sourceHTTP:
		if cfg.ReportsAPIURL == "" {
			return nil, fmt.Errorf("REPORTS_API_URL must be configured for REPORT_SOURCE=http")
		}
	case sourcePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL or PG*/POSTGRES_* variables must be configured for REPORT_SOURCE=postgres")
		}
	case sourceMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI must be configured for REPORT_SOURCE=mongo")
		}
	case sourceAuto:
		if cfg.ReportsAPIURL == "" && cfg.DatabaseURL == "" && cfg.MongoURI == "" {
			return nil, fmt.Errorf("REPORTS_API_URL, DATABASE_URL or MONGO_URI must be configured")
		}
	}

	if raw := strings.TrimSpace(os.Getenv("REPORT_FETCH_LIMIT")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("REPORT_FETCH_LIMIT must be a positive integer")
		}
		cfg.FetchLimit = parsed
	}
	if raw := strings.TrimSpace(os.Getenv("REPORT_FETCH_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("REPORT_FETCH_TIMEOUT must be a positive duration")
		}
		cfg.FetchTimeout = parsed
	}
	if raw := strings.TrimSpace(os.Getenv("VIEW_SESSION_TTL")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("VIEW_SESSION_TTL must be a positive duration")
		}
		cfg.SessionTTL = parsed
	}
	if raw := strings.TrimSpace(os.Getenv("REPORT_TIMEZONE")); raw != "" {
		zone, err := time.LoadLocation(raw)
		if err != nil {
			return nil, fmt.Errorf("REPORT_TIMEZONE: %w", err)
		}
		cfg.Zone = zone
	}
	if raw := strings.TrimSpace(os.Getenv("MAP_DEFAULT_ZOOM")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 22 {
			return nil, fmt.Errorf("MAP_DEFAULT_ZOOM must be between 1 and 22")
		}
		cfg.MapDefaultZoom = parsed
	}

	return cfg, nil
}

// openReportSource connects the configured backends. The returned func releases them.
func openReportSource(ctx context.Context, cfg *Config, logger *slog.Logger) (ReportSource, func(), error) {
	var (
		sources []ReportSource
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	wants := func(kind, setting string) bool {
		return cfg.ReportSource == kind || (cfg.ReportSource == sourceAuto && setting != "")
	}

	if wants(sourceHTTP, cfg.ReportsAPIURL) {
		sources = append(sources, &RESTSource{
			URL:    cfg.ReportsAPIURL,
			Token:  cfg.ReportsAPIToken,
			Client: &http.Client{Timeout: cfg.FetchTimeout},
		})
		logger.Info("report source configured", "source", sourceHTTP)
	}

	if wants(sourcePostgres, cfg.DatabaseURL) {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			closeAll()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		sources = append(sources, &PostgresSource{DB: db, Limit: cfg.FetchLimit})
		logger.Info("report source configured", "source", sourcePostgres)
	}

	if wants(sourceMongo, cfg.MongoURI) {
		dctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
		defer cancel()
		client, err := mongo.Connect(dctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(dctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			closeAll()
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}
		closers = append(closers, func() { _ = client.Disconnect(context.Background()) })
		sources = append(sources, &MongoSource{
			Collection: client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection),
			Limit:      int64(cfg.FetchLimit),
		})
		logger.Info("report source configured", "source", sourceMongo, "database", cfg.MongoDatabase, "collection", cfg.MongoCollection)
	}

	source := chainReportSources(logger, sources...)
	if source == nil {
		return nil, nil, fmt.Errorf("no report source configured")
	}
	return source, closeAll, nil
}

func valueOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func valueFromEnvKeys(keys ...string) string {
	for _, key := range keys {
		value := strings.TrimSpace(os.Getenv(key))
		if value != "" {
			return value
		}
	}
	return ""
}

func containsString(list []string, value string) bool {
	for _, entry := range list {
		if entry == value {
			return true
		}
	}
	return false
}

func (a *App) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

func (a *App) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := strings.TrimSpace(c.GetHeader("Origin"))
		if a.isAllowedCORSOrigin(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *App) isAllowedCORSOrigin(origin string) bool {
	if origin == "" || a.cfg == nil {
		return false
	}
	if a.cfg.PublicBaseURL != "" && origin == a.cfg.PublicBaseURL {
		return true
	}
	if !strings.EqualFold(a.cfg.Env, "development") {
		return false
	}
	return origin == devCORSOriginLocalhost || origin == devCORSOriginLoopback
}

func writeAPIError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Code, "message": apiErr.Message})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
}
