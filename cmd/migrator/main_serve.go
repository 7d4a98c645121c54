package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rflorenc/iot-device-migrator/internal/api"
	"github.com/rflorenc/iot-device-migrator/internal/logger"
	"github.com/rflorenc/iot-device-migrator/internal/migration"
	"github.com/rflorenc/iot-device-migrator/internal/models"
	"github.com/rflorenc/iot-device-migrator/internal/platform"
	"github.com/rflorenc/iot-device-migrator/internal/store"
)

const shutdownTimeout = 10 * time.Second

type cmdServe struct {
	global *cmdGlobal
}

func (c *cmdServe) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "serve"
	cmd.Short = "Start the HTTP API"
	cmd.Long = `Description:
  Start the HTTP API

  Azure credentials are resolved the same way the Azure CLI and SDKs do
  (environment, workload identity, managed identity, az login).
`
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.Run

	return cmd
}

func (c *cmdServe) Run(cmd *cobra.Command, args []string) error {
	cfg := c.global.cfg

	st, err := store.New(cfg.Store)
	if err != nil {
		return err
	}

	defer func() {
		err := st.Close()
		if err != nil {
			slog.Warn("Failed to close hub job store", logger.Err(err))
		}
	}()

	tokens, err := platform.NewAzureTokenProvider(cfg.Azure.TenantID)
	if err != nil {
		return err
	}

	az, err := platform.NewAzure(tokens.Credential(), platform.Options{CentralDomain: cfg.Azure.CentralDomain})
	if err != nil {
		return err
	}

	server := &api.Server{
		Discovery:    api.NewAzureDiscovery(az),
		Migrations:   migration.NewOrchestrator(migration.NewAzureServices(az), st),
		Operations:   models.NewOperationStore(),
		PollInterval: cfg.PollInterval,
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewRouter(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting IoT device migrator", slog.String("version", version), slog.String("listen", cfg.Listen), slog.String("store", cfg.Store.Backend))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
