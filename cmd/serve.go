package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-viewer-engine/internal/handlers"
	"media-viewer-engine/internal/logging"
	"media-viewer-engine/internal/middleware"
	"media-viewer-engine/internal/startup"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open a session and serve it to a renderer over HTTP",
	Long: `Open a viewing session over the selected references and expose it on
the configured port: JSON state under /api, image bytes under /blob and
state-change notifications on the /api/events websocket.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addSourceFlags(serveCmd)
	serveCmd.Flags().Bool("watch", false, "Append images created under --dir while serving")
	serveCmd.Flags().String("port", "", "Listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	startTime := time.Now()
	startup.PrintBanner()
	startup.LogSystemInfo()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if port := mustGetString(cmd, "port"); port != "" {
		a.cfg.Port = port
	}

	h := handlers.New(a.sess)
	router := handlers.NewRouter(h, handlers.RouterConfig{MetricsEnabled: a.cfg.MetricsEnabled})

	logCfg := middleware.DefaultLoggingConfig()
	logCfg.LogBlobs = a.cfg.LogBlobs
	logCfg.LogHealthChecks = a.cfg.LogHealthChecks
	if a.cfg.MetricsEnabled {
		router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	}
	router.Use(middleware.Logger(logCfg))
	router.Use(middleware.Compression(middleware.DefaultCompressionConfig()))

	startup.LogHTTPRoutes(router, a.cfg.LogBlobs, a.cfg.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	watchErr := make(chan error, 1)
	if mustGetBool(cmd, "watch") {
		go func() { watchErr <- a.watch(ctx) }()
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            a.cfg.Port,
		MetricsEnabled:  a.cfg.MetricsEnabled,
		Slots:           a.sess.Len(),
		StartupDuration: time.Since(startTime),
	})

	select {
	case err := <-serveErr:
		if err != nil {
			h.Close()
			return err
		}
	case err := <-watchErr:
		if err != nil {
			logging.Error("Directory watch stopped: %v", err)
		}
		<-ctx.Done()
	case <-ctx.Done():
	}

	startup.LogShutdownInitiated("interrupt")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Closing websocket subscribers")
	h.Close()
	startup.LogShutdownStepComplete("Websocket subscribers closed")

	startup.LogShutdownStep("Stopping HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("HTTP server shutdown: %v", err)
	}
	startup.LogShutdownStepComplete("HTTP server stopped")

	startup.LogShutdownStep("Tearing down session")
	a.Close()
	startup.LogShutdownStepComplete("Session torn down")
	startup.LogShutdownComplete()
	return nil
}
