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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/mkhatri/fragmentd/api"
	"github.com/mkhatri/fragmentd/fragment"
	bboltstorage "github.com/mkhatri/fragmentd/storage/bbolt"
	"github.com/mkhatri/fragmentd/stream"
	"github.com/mkhatri/fragmentd/web"
)

var (
	port           int
	dataDir        string
	logFile        string
	apiKey         string
	adminKey       string
	rateLimit      int
	streamEnabled  bool
	maxConnections int
	maxPerFragment int
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the fragment service server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		logger, closeLog, err := buildLogger()
		if err != nil {
			return err
		}
		defer closeLog()

		store, err := bboltstorage.NewStoreFromFile(dataDir+"/fragments.db", nil)
		if err != nil {
			return fmt.Errorf("failed to open fragment storage: %w", err)
		}
		defer store.Close()

		registry, err := fragment.Open(store, fragment.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to load fragment metadata: %w", err)
		}

		centre := stream.NewCentre(stream.WithCentreLogger(logger))
		centre.SetEnabled(streamEnabled)
		centre.SetMaxConnections(maxConnections)
		centre.SetMaxPerFragment(maxPerFragment)

		opts := []api.Option{
			api.WithLogger(logger),
			api.WithRateLimit(rateLimit),
		}
		if apiKey != "" {
			opts = append(opts, api.WithAPIKey(apiKey))
		}
		if adminKey != "" {
			opts = append(opts, api.WithAdminKey(adminKey))
		}
		a := api.New(registry, store, centre, opts...)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		apiRouter := a.Router()
		webHandler, err := web.Handler()
		if err != nil {
			return err
		}
		apiRouter.NotFound(webHandler.ServeHTTP)
		r.Mount("/", apiRouter)

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d (data: %s)...\n", port, dataDir)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			centre.Shutdown()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// buildLogger returns a JSON slog logger writing to the configured log file,
// or stderr when none is set.
func buildLogger() (*slog.Logger, func(), error) {
	if logFile == "" {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil)), func() {}, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return slog.New(slog.NewJSONHandler(f, nil)), func() { f.Close() }, nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", envIntOr("RuntimePort", 8080), "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	serverCmd.Flags().StringVar(&logFile, "log-file", "", "Write JSON logs to this file instead of stderr")
	serverCmd.Flags().StringVar(&apiKey, "api-key", envOr("APIKey", ""), "Require this APIKey header on client routes")
	serverCmd.Flags().StringVar(&adminKey, "admin-key", envOr("AdminKey", ""), "Require this key query parameter on admin routes")
	serverCmd.Flags().IntVar(&rateLimit, "rate-limit", 100, "Per-IP request budget per minute on client routes")
	serverCmd.Flags().BoolVar(&streamEnabled, "stream-enabled", envBoolOr("StreamCentreEnabled", true), "Accept websocket stream connections")
	serverCmd.Flags().IntVar(&maxConnections, "stream-max-connections", envIntOr("StreamCentreMaxConnections", 20), "Total live stream connection ceiling")
	serverCmd.Flags().IntVar(&maxPerFragment, "stream-max-per-fragment", envIntOr("StreamCentreMaxStreamConnections", 5), "Per-fragment live stream connection ceiling")
}
