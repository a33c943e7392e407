package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiniela-service/internal/app"
	"quiniela-service/internal/config"
	"quiniela-service/internal/domain"
	"quiniela-service/internal/infra/memory"
	pgstore "quiniela-service/internal/infra/postgres"
	redisinfra "quiniela-service/internal/infra/redis"
	transport "quiniela-service/internal/transport/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the contest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	repos, loader := buildRepositories(cfg, pool)

	var catalog app.CatalogRepository
	if redisClient != nil {
		catalog = redisinfra.NewCatalogRepository(redisClient, loader, catalogTTL)
	} else {
		catalog = memory.NewCatalogRepository(loader, catalogTTL)
	}
	repos.Catalog = catalog

	service := app.NewContestService(repos)

	var lbCache transport.LeaderboardCache
	if redisClient != nil {
		lbCache = redisinfra.NewLeaderboardCache(redisClient, redisTTL)
	}

	apiHandler := transport.NewAPIHandler(service, lbCache)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	apiHandler.Register(mux)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting contest service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildRepositories picks Postgres-backed stores when configured, otherwise
// an in-memory store seeded with a demo brand and the default catalog.
func buildRepositories(cfg config.Config, pool *pgxpool.Pool) (app.Repositories, memory.CatalogLoader) {
	if pool != nil {
		store := pgstore.NewStore(pool)
		return app.Repositories{
			Brands:       store,
			Participants: store,
			Predictions:  store,
			Results:      store.Results(),
		}, store
	}

	store := memory.NewContestStore()
	store.AddBrand(demoBrand(cfg))
	return app.Repositories{
		Brands:       store,
		Participants: store,
		Predictions:  store,
		Results:      store.Results(),
	}, memory.NewStaticCatalogLoader(defaultCatalog())
}

func demoBrand(cfg config.Config) domain.Brand {
	slug := cfg.Brand.Slug
	if slug == "" {
		slug = "default"
	}
	name := cfg.Brand.Name
	if name == "" {
		name = "Quiniela"
	}
	secret := cfg.Brand.AdminSecret
	if secret == "" {
		secret = os.Getenv("ADMIN_SECRET")
	}
	return domain.Brand{
		ID:                uuid.NewString(),
		Slug:              slug,
		Name:              name,
		AdminSecret:       secret,
		PredictionsLockAt: config.LockTime(cfg.Brand.PredictionsLockAt),
		Active:            true,
	}
}
