// Package serve implements the HTTP server command.
package serve

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/neighbourly/canvass-go/internal/api/auth"
	api "github.com/neighbourly/canvass-go/internal/api/v2"
	"github.com/neighbourly/canvass-go/internal/claims"
	"github.com/neighbourly/canvass-go/internal/conf"
	"github.com/neighbourly/canvass-go/internal/datastore"
	"github.com/neighbourly/canvass-go/internal/geo"
	"github.com/neighbourly/canvass-go/internal/logging"
	"github.com/neighbourly/canvass-go/internal/observability"
	"github.com/neighbourly/canvass-go/internal/overlay"
	"github.com/neighbourly/canvass-go/internal/policy"
)

// shutdownTimeout is how long in-flight requests get to finish on SIGTERM.
const shutdownTimeout = 10 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the claim service HTTP server",
		Long:  "Start the HTTP server exposing mesh block listing, claim lifecycle and postcode geocoding endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port to listen on")
	cmd.Flags().BoolVar(&settings.WebServer.Debug, "webdebug", viper.GetBool("webserver.debug"), "Enable web server debug output and the metrics endpoint")
	cmd.Flags().StringVar(&settings.Geo.BaseURL, "geourl", viper.GetString("geo.baseurl"), "Base URL of the territory service")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

// runServer wires the claim store, services and API controller together and
// runs the echo server until interrupted.
func runServer(settings *conf.Settings) error {
	slogger := logging.ForService("server")
	if slogger == nil {
		slogger = slog.Default()
	}

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open claim store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing claim store: %v", err)
		}
	}()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}

	domains := policy.OrgDomains(settings.Security.OrgDomains())
	service := claims.NewService(store, domains, metrics.Claims)
	statusOverlay := overlay.New(service, metrics.Claims)

	geoClient, err := geo.NewClient(geo.Config{
		BaseURL:  settings.Geo.BaseURL,
		Timeout:  time.Duration(settings.Geo.Timeout) * time.Second,
		CacheTTL: time.Duration(settings.Geo.CacheTTL) * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("failed to create territory service client: %w", err)
	}
	defer geoClient.Close()

	authService := auth.NewIdentityService(domains)
	authMiddleware := auth.NewMiddleware(authService)

	e := echo.New()
	e.HideBanner = true
	e.Debug = settings.WebServer.Debug

	controller, err := api.New(e, service, statusOverlay, geoClient, settings, log.Default(),
		api.WithAuthService(authService),
		api.WithAuthMiddleware(authMiddleware.Authenticate),
		api.WithMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create API controller: %w", err)
	}
	defer controller.Shutdown()

	errChan := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		slogger.Info("Starting claim service", "addr", addr, "version", settings.Version)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		slogger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	return nil
}
