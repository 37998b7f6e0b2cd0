package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "dbview",
	Short:         "Record views over tabular data",
	Long:          "dbview serves the custom column registry and view config store, and browses row files in the terminal.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the custom column and view config HTTP service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var browseOpts browseOptions

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Open a row file in the terminal view",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBrowse(cmd, browseOpts)
	},
}

func init() {
	browseCmd.Flags().StringVar(&browseOpts.rowsPath, "rows", "rows.json", "JSON array of rows to browse and edit")
	browseCmd.Flags().StringVar(&browseOpts.columnsPath, "columns", "columns.yaml", "YAML column schema")
	browseCmd.Flags().StringVar(&browseOpts.stateKey, "state-key", "", "key for persisted view config and custom columns (default: state_key from the schema)")
	browseCmd.Flags().StringVar(&browseOpts.registryURL, "registry-url", "", "base URL of a dbview service (or set REGISTRY_URL env)")
	browseCmd.Flags().StringVar(&browseOpts.view, "view", "", "initial view: table, board, gallery or list")
	browseCmd.Flags().BoolVar(&browseOpts.local, "local", false, "use the configured database directly instead of a state file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(browseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRouter mounts the service's API routes
func newRouter(service *Service) *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/custom-columns/{stateKey}", service.handleListCustomColumns).Methods("GET")
	api.HandleFunc("/custom-columns/{stateKey}", service.handleCreateCustomColumn).Methods("POST")
	api.HandleFunc("/custom-columns/{stateKey}/{colId}", service.handleDeleteCustomColumn).Methods("DELETE")

	api.HandleFunc("/view-configs/{stateKey}", service.handleGetViewConfig).Methods("GET")
	api.HandleFunc("/view-configs/{stateKey}", service.handlePutViewConfig).Methods("PUT")
	api.HandleFunc("/view-configs/{stateKey}", service.handleDeleteViewConfig).Methods("DELETE")

	api.HandleFunc("/column-values/{stateKey}/{colId}", service.handleGetColumnValues).Methods("POST")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := service.db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}

// newHandler wraps the router with access logging, panic recovery and CORS.
func newHandler(service *Service, logger *zap.Logger) http.Handler {
	access := logger.Named("http")
	logged := handlers.CustomLoggingHandler(io.Discard, newRouter(service), func(_ io.Writer, p handlers.LogFormatterParams) {
		access.Debug("request",
			zap.String("method", p.Request.Method),
			zap.String("path", p.URL.Path),
			zap.Int("status", p.StatusCode),
			zap.Int("size", p.Size),
			zap.Duration("duration", time.Since(p.TimeStamp)),
		)
	})
	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(access)),
		handlers.PrintRecoveryStack(true),
	)(logged)

	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Username"}),
	)(recovered)
}

func runServe() error {
	config := loadConfig()
	logger, err := newLogger(config)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting dbview service", zap.String("port", config.Port))

	service, err := NewService(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	defer service.Close()

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      newHandler(service, logger),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
