package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vedran77/activities/internal/broadcast"
	"github.com/vedran77/activities/internal/config"
	"github.com/vedran77/activities/internal/database"
	"github.com/vedran77/activities/internal/events"
	"github.com/vedran77/activities/internal/logging"
	"github.com/vedran77/activities/internal/reconciler"
	postgresrepo "github.com/vedran77/activities/internal/repository/postgres"
	"github.com/vedran77/activities/internal/service"
	"github.com/vedran77/activities/internal/storage"
	"github.com/vedran77/activities/internal/transport/http/handlers"
	"github.com/vedran77/activities/internal/transport/http/middleware"
	"github.com/vedran77/activities/internal/transport/ws"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		l := logging.L()
		l.Fatal().Err(err).Msg("server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "activities"})
	l := logging.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	l.Info().Str("host", cfg.Database.Host).Msg("connected to database")

	if err := database.Migrate(pool, cfg.Database.MigrationsDir, cfg.Database.Name); err != nil {
		return err
	}

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	activityRepo := postgresrepo.NewActivityRepo(pool)
	followRepo := postgresrepo.NewFollowRepo(pool)
	commentRepo := postgresrepo.NewCommentRepo(pool)
	photoRepo := postgresrepo.NewPhotoRepo(pool)

	// Photo storage
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	// Domain events
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		l.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing domain events")
	}
	defer publisher.Close()

	// Services
	authService := service.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	activityService := service.NewActivityService(activityRepo, commentRepo, publisher)
	commentService := service.NewCommentService(commentRepo, activityRepo, userRepo, publisher)
	profileService := service.NewProfileService(userRepo, followRepo, photoRepo, publisher)
	photoService := service.NewPhotoService(photoRepo, store)

	g, ctx := errgroup.WithContext(ctx)

	// Realtime
	hub := ws.NewHub()
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	if cfg.Redis.Address != "" {
		rdb, err := broadcast.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		relay := broadcast.NewRedisRelay(rdb, hub)
		commentService.SetNotifier(relay)
		g.Go(func() error { return relay.Run(ctx) })
		l.Info().Str("address", cfg.Redis.Address).Msg("relaying comments through redis")
	} else {
		commentService.SetNotifier(ws.NewHubNotifier(hub))
	}

	// Follower counter repair
	rec := reconciler.New(followRepo, cfg.Reconciler.Interval)
	rec.Start(ctx)
	defer func() {
		rec.Stop()
		<-rec.Done()
	}()

	// Routes
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /ws", ws.ServeWS(ctx, hub, authService, commentService, cfg.Server.AllowedOrigins))

	if local, ok := store.(*storage.LocalStorage); ok {
		if prefix := uploadsPrefix(cfg.Storage.BaseURL); prefix != "" {
			mux.Handle("GET "+prefix, http.StripPrefix(prefix, http.FileServer(http.Dir(local.BasePath()))))
		}
	}

	handlers.Set{
		Auth:       handlers.NewAuthHandler(authService),
		Activities: handlers.NewActivityHandler(activityService),
		Comments:   handlers.NewCommentHandler(commentService),
		Profiles:   handlers.NewProfileHandler(profileService),
		Photos:     handlers.NewPhotoHandler(photoService),
	}.Register(mux, middleware.Auth(authService))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           middleware.RequestLogger(middleware.CORS(cfg.Server.AllowedOrigins)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		l.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		l.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// uploadsPrefix returns the path to serve local uploads under, or "" when
// the base URL points at another host.
func uploadsPrefix(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host != "" || u.Path == "" {
		return ""
	}
	return strings.TrimRight(u.Path, "/") + "/"
}
