package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trail-progress-service/internal/app"
	"trail-progress-service/internal/config"
	"trail-progress-service/internal/domain"
	"trail-progress-service/internal/gateway"
	"trail-progress-service/internal/infra/memory"
	pgloader "trail-progress-service/internal/infra/postgres"
	redisinfra "trail-progress-service/internal/infra/redis"
	transport "trail-progress-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the progress service.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the progress-tracking server",
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.PhaseLoader = memory.NewStaticPhaseLoader(samplePhases())
	if pool != nil {
		loader = pgloader.NewPhaseLoader(pool)
	}

	phaseTTL := config.TTLDuration(cfg.Phase.TTL, 10*time.Minute)
	var phases app.PhaseRepository
	if redisClient != nil {
		phases = redisinfra.NewPhaseRepository(redisClient, loader, phaseTTL)
	} else {
		phases = memory.NewPhaseRepository(loader, phaseTTL)
	}

	var progressRepo app.ProgressRepository
	if redisClient != nil {
		progressRepo = redisinfra.NewProgressStore(redisClient)
	} else {
		progressRepo = memory.NewProgressStore()
	}

	// The leveling engine is its own service boundary; without a configured
	// URL it runs in-process behind the same gateway port.
	var levelingGateway app.LevelingGateway
	var localLeveling *app.LevelingService
	if cfg.Leveling.URL != "" {
		timeout := config.TTLDuration(cfg.Leveling.Timeout, gateway.DefaultTimeout)
		levelingGateway = gateway.NewLevelingClient(cfg.Leveling.URL, timeout)
	} else {
		var ledger app.ExperienceRepository
		if redisClient != nil {
			ledger = redisinfra.NewExperienceStore(redisClient)
		} else {
			ledger = memory.NewExperienceStore()
		}
		localLeveling = app.NewLevelingService(ledger)
		levelingGateway = gateway.NewLocal(localLeveling)
	}

	rankingService := app.NewRankingService(progressRepo, levelingGateway)
	feed := app.NewRankingFeed(rankingService.AccuracyLeaderboard)
	progressService := app.NewProgressService(phases, progressRepo, levelingGateway, feed)

	progressHandler := transport.NewProgressHandler(progressService, rankingService)
	wsHandler := transport.NewRankingsWSHandler(rankingService, feed)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	progressHandler.Register(mux)
	mux.HandleFunc("/ws/rankings", wsHandler.ServeWS)
	if localLeveling != nil {
		transport.NewLevelingHandler(localLeveling).Register(mux)
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting progress service on :%s", finalPort)
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

// samplePhases provides minimal phase content; swap the loader for the
// Postgres-backed one in production.
func samplePhases() map[string]domain.Phase {
	return map[string]domain.Phase{
		"phase-1": {
			ID:      "phase-1",
			TrailID: "trail-1",
			Questions: []domain.Question{
				{
					Statement:    "What is 2 + 2?",
					Alternatives: []string{"3", "4", "5"},
					Correct:      1,
				},
				{
					Statement:    "What is 3 x 3?",
					Alternatives: []string{"6", "9", "12"},
					Correct:      1,
				},
			},
		},
	}
}
