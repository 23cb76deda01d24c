package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trail-progress-service/internal/app"
	"trail-progress-service/internal/config"
	"trail-progress-service/internal/infra/memory"
	redisinfra "trail-progress-service/internal/infra/redis"
	transport "trail-progress-service/internal/transport/http"
)

// NewLevelingCmd builds the CLI subcommand to start the leveling service on
// its own port, giving the experience ledger a real network boundary.
func NewLevelingCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "leveling",
		Short: "Start the leveling (experience) server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLevelingServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runLevelingServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := cfg.Leveling.Port
	if finalPort == "" {
		finalPort = portFlag
	}
	if finalPort == "" {
		finalPort = "8081"
	}

	var ledger app.ExperienceRepository
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ledger = redisinfra.NewExperienceStore(client)
	} else {
		ledger = memory.NewExperienceStore()
	}

	svc := app.NewLevelingService(ledger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewLevelingHandler(svc).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting leveling service on :%s", finalPort)
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
