package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harbor-analytics/claimlens/internal/api/handlers"
	"github.com/harbor-analytics/claimlens/internal/config"
	"github.com/harbor-analytics/claimlens/internal/server"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the search API server",
		Long:  "Start the claimlens search API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

// resolvePort prefers an explicitly passed --port flag over the configured
// port, even when the flag value equals the flag default.
func resolvePort(cmd *cobra.Command, cfgPort string) string {
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetString("port")
		return port
	}
	return cfgPort
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry()
	defer shutdownTelemetry()

	cfg.Port = resolvePort(cmd, cfg.Port)

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	idx, pool, err := newPgIndex(ctx, cfg, !noMigrate)
	if err != nil {
		return err
	}
	defer pool.Close()

	embSvc, err := newEmbeddingService(cfg)
	if err != nil {
		return err
	}

	retrievalSvc := newRetrievalService(cfg, embSvc, idx)

	router := server.NewRouter(server.RouterConfig{
		SearchHandler:    handlers.NewSearchHandler(retrievalSvc),
		DocumentsHandler: handlers.NewDocumentsHandler(idx),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}
