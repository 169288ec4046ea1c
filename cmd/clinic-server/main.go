package main

import (
	"context"
	crypto_rand "crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/record"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/logging"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/telemetry"
)

const serviceName = "clinic-server"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	sessionSweepInterval = 10 * time.Minute
	shutdownTimeout      = 10 * time.Second
)

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Clinic patient records server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(doctorCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// withPool loads the configuration, opens a pool for the duration of fn and
// closes it afterwards.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				if dir == "" {
					dir = cfg.MigrationsDir
				}
				count, err := db.NewMigrator(pool, dir).Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				if dir == "" {
					dir = cfg.MigrationsDir
				}
				statuses, err := db.NewMigrator(pool, dir).Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}

				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func doctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Manage doctor accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a doctor account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}

			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				svc := doctor.NewService(doctor.NewRepo(pool), auth.NewPasswordHasher(cfg.BcryptCost))
				d, err := svc.Register(ctx, doctor.Registration{
					Username:        username,
					Password:        password,
					ConfirmPassword: password,
				})
				if err != nil {
					return err
				}
				fmt.Printf("Created doctor %s (%s)\n", d.Username, d.ID)
				return nil
			})
		},
	}
	createCmd.Flags().String("username", "", "Doctor username (3-20 characters)")
	createCmd.Flags().String("password", "", "Doctor password")
	cmd.AddCommand(createCmd)

	return cmd
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Console:    cfg.IsDev(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	secret, generated, err := resolveSessionSecret(cfg.SessionSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve session secret")
	}
	if generated {
		logger.Warn().Msg("SESSION_SECRET not set; generated a random secret, sessions will not survive a restart")
	}

	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Sessions
	store, closeStore, err := openSessionStore(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session store")
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error().Err(err).Msg("close session store")
		}
	}()
	logger.Info().Str("store", cfg.ResolvedSessionStore()).Msg("session store ready")

	sessions := auth.NewSessionAuthority(store, auth.NewTokenSigner(secret), cfg.SessionTTL, logger)

	// Telemetry
	metrics, err := telemetry.New(telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise telemetry")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(sctx); err != nil {
			logger.Error().Err(err).Msg("telemetry shutdown")
		}
	}()
	if err := metrics.RegisterPoolStats(func() *db.PoolStats { return db.GetPoolStats(pool) }); err != nil {
		logger.Fatal().Err(err).Msg("failed to register pool metrics")
	}

	// Domains
	patientSvc := patient.NewService(patient.NewRepo(pool))
	e := newRouter(app{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		doctors:  doctor.NewService(doctor.NewRepo(pool), auth.NewPasswordHasher(cfg.BcryptCost)),
		patients: patientSvc,
		records:  record.NewService(record.NewRepo(pool), patientSvc),
		metrics:  metrics,
		dbHealth: db.HealthHandler(pool, cfg.MigrationsDir),
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	cancelBackground()
	logger.Info().Msg("server stopped")
	return nil
}

// app carries everything the router needs.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	sessions *auth.SessionAuthority
	doctors  *doctor.Service
	patients *patient.Service
	records  *record.Service
	metrics  *telemetry.Provider
	dbHealth echo.HandlerFunc
}

func newRouter(a app) *echo.Echo {
	cfg := a.cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(a.logger)

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(a.metrics.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, middleware.RequestIDHeader},
			AllowCredentials: true,
		}))
	}
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.Sanitize(a.logger))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	e.Use(auth.SessionMiddleware(a.sessions))
	e.Use(middleware.Audit(a.logger))
	e.Use(auth.RequireLogin(auth.AuthSkipper))

	etag := middleware.DefaultETagConfig()
	etag.Skipper = auth.AuthSkipper
	e.Use(middleware.ETag(etag))

	// Infrastructure
	e.GET("/", indexHandler)
	e.GET("/health", healthHandler)
	e.GET("/health/db", a.dbHealth)
	e.GET("/metrics", a.metrics.Handler())

	root := e.Group("")

	loginLimit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.LoginRateLimitRPS,
		BurstSize:         cfg.LoginRateLimitBurst,
		Prefix:            "login",
	})
	doctor.NewHandler(a.doctors, a.sessions, cfg.IsProduction()).RegisterRoutes(root, loginLimit)
	patient.NewHandler(a.patients).RegisterRoutes(root)
	record.NewHandler(a.records).RegisterRoutes(root)

	return e
}

// IndexResponse describes the service and whether the caller is logged in.
type IndexResponse struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Authenticated bool   `json:"authenticated"`
	Doctor        string `json:"doctor,omitempty"`
}

func indexHandler(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	return c.JSON(http.StatusOK, IndexResponse{
		Name:          serviceName,
		Version:       version,
		Authenticated: p.IsAuthenticated(),
		Doctor:        p.Username,
	})
}

func healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// openSessionStore builds the configured session backend. The returned
// close function releases it.
func openSessionStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (auth.SessionStore, func() error, error) {
	switch cfg.ResolvedSessionStore() {
	case config.SessionStoreRedis:
		rdb, err := auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return auth.NewRedisSessionStore(rdb), rdb.Close, nil
	case config.SessionStoreMemory:
		s := auth.NewMemorySessionStore(sessionSweepInterval)
		return s, s.Close, nil
	default:
		s := auth.NewPGSessionStore(pool)
		go auth.RunSweeper(ctx, s, sessionSweepInterval, logger)
		return s, func() error { return nil }, nil
	}
}

// resolveSessionSecret returns the configured secret, or a random 32-byte
// one when none is set. The second return value is true when the secret
// was generated.
func resolveSessionSecret(configured string) ([]byte, bool, error) {
	if configured != "" {
		return []byte(configured), false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random session secret: %w", err)
	}
	return key, true, nil
}
