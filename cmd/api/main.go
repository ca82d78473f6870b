package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/quillpost/quillpost-go/internal/auth"
	"github.com/quillpost/quillpost-go/internal/config"
	"github.com/quillpost/quillpost-go/internal/crypto"
	"github.com/quillpost/quillpost-go/internal/handler"
	"github.com/quillpost/quillpost-go/internal/metrics"
	"github.com/quillpost/quillpost-go/internal/middleware"
	"github.com/quillpost/quillpost-go/internal/repository"
	"github.com/quillpost/quillpost-go/internal/repository/memory"
	"github.com/quillpost/quillpost-go/internal/repository/mongo"
	"github.com/quillpost/quillpost-go/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load("")
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			logger.Warn("closing store", "error", err)
		}
	}()

	h, authService, err := newAPI(ctx, cfg, stores, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		purgeSessions(gctx, authService, cfg.Session.PurgeInterval, logger)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// newAPI assembles the HTTP handler over stores. The returned AuthService
// also drives the session purge loop.
func newAPI(ctx context.Context, cfg config.Config, stores repository.Stores, logger *slog.Logger) (http.Handler, *service.AuthService, error) {
	tokens := newTokenIssuer(cfg)

	authService, err := service.NewAuthService(stores.Users, stores.Sessions, tokens,
		service.WithSessionTTL(cfg.Session.TTL),
		service.WithLogger(logger),
		service.WithObserver(metrics.ObserveAuth),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("building auth service: %w", err)
	}

	chain := auth.NewChain(
		auth.NewBearerStrategy(tokens, stores.Users),
		auth.NewSessionStrategy(stores.Sessions, stores.Users, auth.WithCookieName(cfg.Session.CookieName)),
	)
	guard := auth.NewGuard(chain,
		auth.WithLogger(logger),
		auth.WithObserver(metrics.ObserveAuth),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(reg); err != nil {
		return nil, nil, fmt.Errorf("registering metrics: %w", err)
	}

	limiter := middleware.NewRateLimiter(ctx, cfg.Limits.AuthRPS, cfg.Limits.AuthBurst)

	h := handler.NewRouter(handler.Routes{
		Auth: handler.NewAuthHandler(authService, handler.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.IsProduction(),
		}),
		Users:           handler.NewUserHandler(service.NewUserService(stores.Users)),
		Posts:           handler.NewPostHandler(service.NewPostService(stores.Posts, stores.Users)),
		Guard:           guard,
		Middleware:      httpMiddleware(cfg, logger),
		CredentialLimit: limiter.Handler,
		Metrics:         metrics.Handler(reg),
	})
	return h, authService, nil
}

func newTokenIssuer(cfg config.Config) *crypto.TokenIssuer {
	return crypto.NewTokenIssuer([]byte(cfg.JWT.Secret), cfg.JWT.Expiry,
		crypto.WithIssuer(cfg.JWT.Issuer),
		crypto.WithAudience(cfg.JWT.Audience),
	)
}

// httpMiddleware wraps every request. Forwarded client addresses are only
// honoured when the deployment sits behind a trusted proxy.
func httpMiddleware(cfg config.Config, logger *slog.Logger) []func(http.Handler) http.Handler {
	mw := []func(http.Handler) http.Handler{chimw.RequestID}
	if cfg.TrustProxy {
		mw = append(mw, chimw.RealIP)
	}
	return append(mw,
		chimw.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: !containsWildcard(cfg.CORSOrigins),
			MaxAge:           300,
		}),
		middleware.Logger(logger),
		metrics.Instrument,
	)
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Stores, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.New().Stores(), nil

	case config.DriverMongo:
		store, err := mongo.Connect(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
		if err != nil {
			return repository.Stores{}, err
		}
		return store.Stores(), nil

	default:
		dialect, err := repository.ParseDialect(cfg.Store.Driver)
		if err != nil {
			return repository.Stores{}, err
		}
		db, err := repository.NewDB(ctx, dialect, cfg.Store.DatabaseDSN)
		if err != nil {
			return repository.Stores{}, fmt.Errorf("connecting to database: %w", err)
		}
		if cfg.Store.MigrateOnStart {
			if err := repository.Migrate(ctx, db); err != nil {
				db.Close()
				return repository.Stores{}, err
			}
			logger.Info("migrations applied", "dialect", dialect.String())
		}
		return db.Stores(), nil
	}
}

// purgeSessions deletes expired sessions until ctx is cancelled.
func purgeSessions(ctx context.Context, svc *service.AuthService, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpiredSessions(ctx)
			if err != nil {
				logger.Warn("purging expired sessions", "error", err)
				continue
			}
			if n > 0 {
				metrics.SessionsPurgedTotal.Add(float64(n))
				logger.Debug("purged expired sessions", "count", n)
			}
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
