package cmd

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

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/packdim/internal/config"
	"github.com/MeKo-Tech/packdim/internal/jobs"
	"github.com/MeKo-Tech/packdim/internal/server"
	"github.com/MeKo-Tech/packdim/internal/version"
)

const rateLimitIdle = 24 * time.Hour

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the estimation API",
	Long: `Start an HTTP server that provides REST API endpoints for dimension estimation.

The server provides the following endpoints:
  GET    /health                          - Health check
  GET    /api/v1/ocr/status               - OCR engine status
  POST   /api/v1/ocr/extract              - Extract measurement tokens from an image
  POST   /api/v1/ocr/map-dimensions       - Map OCR items (or an image) to axes
  POST   /api/v1/estimate                 - Full estimate for one image
  POST   /api/v1/estimate/batch           - Estimate several images
  POST   /api/v1/jobs                     - Upload an image as a job
  GET    /api/v1/jobs/{id}                - Job status and results
  POST   /api/v1/jobs/{id}/analyze        - Analyze a job
  POST   /api/v1/jobs/{id}/corrections    - Record a manual correction
  GET    /ws/estimate                     - Streaming estimates over WebSocket
  GET    /metrics                         - Prometheus metrics

Examples:
  packdim serve
  packdim serve --port 8080 --upload-dir ./uploads
  packdim serve --host 0.0.0.0 --requests-per-minute 60`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		sc := serverSettings(cmd, cfg)

		if sc.Port < 1 || sc.Port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", sc.Port)
		}

		serverConfig, err := buildServerConfig(cmd, cfg, sc)
		if err != nil {
			return err
		}

		apiServer, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = apiServer.Close() }()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", sc.Host, sc.Port),
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(sc.TimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(sc.TimeoutSec) * time.Second,
		}

		go func() {
			slog.Info("Starting packdim server", "host", sc.Host, "port", sc.Port, "build", version.Get())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		if sc.RateLimitEnabled() {
			go pruneRateLimits(ctx, apiServer)
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", sc.ShutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(sc.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		if err := apiServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

// serverSettings applies serve flags on top of the server configuration.
func serverSettings(cmd *cobra.Command, cfg *config.Config) config.ServerConfig {
	sc := cfg.Server
	sc.Host = stringFlag(cmd, "host", sc.Host)
	sc.Port = intFlag(cmd, "port", sc.Port)
	sc.CORSOrigin = stringFlag(cmd, "cors-origin", sc.CORSOrigin)
	sc.MaxUploadMB = intFlag(cmd, "max-upload-size", sc.MaxUploadMB)
	sc.TimeoutSec = intFlag(cmd, "timeout", sc.TimeoutSec)
	sc.ShutdownTimeout = intFlag(cmd, "shutdown-timeout", sc.ShutdownTimeout)
	sc.UploadDir = stringFlag(cmd, "upload-dir", sc.UploadDir)
	sc.RequestsPerMinute = intFlag(cmd, "requests-per-minute", sc.RequestsPerMinute)
	sc.RequestsPerHour = intFlag(cmd, "requests-per-hour", sc.RequestsPerHour)
	sc.MaxRequestsPerDay = intFlag(cmd, "max-requests-per-day", sc.MaxRequestsPerDay)
	sc.MaxDataPerDayMB = intFlag(cmd, "max-data-per-day", sc.MaxDataPerDayMB)
	return sc
}

// buildServerConfig wires storage, engine and estimator options.
func buildServerConfig(cmd *cobra.Command, cfg *config.Config, sc config.ServerConfig) (server.Config, error) {
	var storage jobs.Storage
	if sc.UploadDir != "" {
		local, err := jobs.NewLocalFileStorage(sc.UploadDir)
		if err != nil {
			return server.Config{}, fmt.Errorf("failed to prepare upload dir: %w", err)
		}
		storage = local
	}

	return server.Config{
		Host:        sc.Host,
		Port:        sc.Port,
		CORSOrigin:  sc.CORSOrigin,
		MaxUploadMB: int64(sc.MaxUploadMB),
		TimeoutSec:  sc.TimeoutSec,
		Workers:     cfg.Estimate.Workers,
		Engine:      engineFor(cmd, cfg),
		Estimate:    estimatorOptions(cmd, cfg),
		Storage:     storage,
		RateLimit: server.RateLimitConfig{
			RequestsPerMinute: sc.RequestsPerMinute,
			RequestsPerHour:   sc.RequestsPerHour,
			MaxRequestsPerDay: sc.MaxRequestsPerDay,
			MaxDataPerDay:     int64(sc.MaxDataPerDayMB) << 20,
		},
	}, nil
}

func pruneRateLimits(ctx context.Context, s *server.Server) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.PruneRateLimits(rateLimitIdle); n > 0 {
				slog.Debug("Pruned idle rate limit clients", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 20, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().String("upload-dir", "", "directory for uploaded job images (default: in memory)")
	addEstimateFlags(serveCmd)
	// Rate limiting flags
	serveCmd.Flags().Int("requests-per-minute", 0, "maximum requests per minute per client (0 disables)")
	serveCmd.Flags().Int("requests-per-hour", 0, "maximum requests per hour per client (0 disables)")
	serveCmd.Flags().Int("max-requests-per-day", 0, "maximum requests per day per client (0 disables)")
	serveCmd.Flags().Int("max-data-per-day", 0, "maximum upload volume per day per client in MB (0 disables)")
}
