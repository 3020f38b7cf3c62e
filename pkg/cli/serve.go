package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gots/slice"
	"github.com/xiashuijun/elasticvc/pkg/cli/config"
	"github.com/xiashuijun/elasticvc/pkg/controller/server"
	"github.com/xiashuijun/elasticvc/pkg/domain/interfaces"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
	"github.com/xiashuijun/elasticvc/pkg/repository/memory"
	"github.com/xiashuijun/elasticvc/pkg/usecase"
	"github.com/xiashuijun/elasticvc/pkg/utils/logging"

	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		addr       string
		adminToken string
		configPath string

		firestoreCfg config.Firestore
		postgresCfg  config.Postgres
		bigQueryCfg  config.BigQuery
		gcsCfg       config.GCS
		policyCfg    config.Policy
		sentryCfg    config.Sentry
	)
	serveFlags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Binding address",
			Value:       "127.0.0.1:8000",
			Sources:     cli.EnvVars("ELASTICVC_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "admin-token",
			Usage:       "Token required in the X-Admin-Token header on the unlock and deleteAll admin endpoints (optional)",
			Sources:     cli.EnvVars("ELASTICVC_ADMIN_TOKEN"),
			Destination: &adminToken,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Path to a YAML config file validated against the built-in schema (optional)",
			Sources:     cli.EnvVars("ELASTICVC_CONFIG"),
			Destination: &configPath,
		},
	}

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Run the branch versioning service",
		Flags: slice.Flatten(
			serveFlags,
			firestoreCfg.Flags(),
			postgresCfg.Flags(),
			bigQueryCfg.Flags(),
			gcsCfg.Flags(),
			policyCfg.Flags(),
			sentryCfg.Flags(),
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			if configPath != "" {
				if _, err := config.ValidateConfigFile(configPath); err != nil {
					return err
				}
			}

			logging.Default().Info("starting serve",
				slog.Any("addr", addr),
				slog.Any("firestore", firestoreCfg),
				slog.Any("postgres", postgresCfg),
				slog.Any("bigquery", bigQueryCfg),
				slog.Any("gcs", gcsCfg),
				slog.Any("policy", policyCfg),
				slog.Any("sentry", sentryCfg),
			)

			if err := sentryCfg.Configure(ctx); err != nil {
				return err
			}

			store, err := newStore(ctx, firestoreCfg, postgresCfg)
			if err != nil {
				return err
			}

			uc := usecase.New(store)

			if bigQueryCfg.Enabled() {
				listener, err := bigQueryCfg.NewListener(ctx)
				if err != nil {
					return err
				}
				uc.AddCommitListener(listener)
			}

			serverOptions := []server.Option{}
			if adminToken != "" {
				serverOptions = append(serverOptions, server.WithAdminToken(types.AdminToken(adminToken)))
			}
			if policyCfg.Enabled() {
				authorizer, err := policyCfg.NewAuthorizer(ctx)
				if err != nil {
					return err
				}
				serverOptions = append(serverOptions, server.WithAdminAuthorizer(authorizer))
			}

			s := server.New(uc, serverOptions...)

			serverErr := make(chan error, 1)
			httpServer := &http.Server{
				Addr:    addr,
				Handler: s.Mux(),

				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
			}

			go func() {
				logging.Default().Info("starting http server", "addr", addr)
				if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
					serverErr <- goerr.Wrap(err, "failed to listen and serve")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-serverErr:
				return err

			case sig := <-quit:
				logging.Default().Info("shutting down server", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server")
				}
			}

			return nil
		},
	}
}

// newStore picks the configured document-store backend. Firestore takes
// priority over Postgres when both are configured; with neither, serve
// falls back to an in-process memory store, useful for local development
// and the CLI's own smoke tests.
func newStore(ctx context.Context, firestoreCfg config.Firestore, postgresCfg config.Postgres) (interfaces.BranchStore, error) {
	if firestoreCfg.Enabled() {
		return firestoreCfg.NewRepository(ctx)
	}
	if postgresCfg.Enabled() {
		return postgresCfg.NewRepository(ctx)
	}
	return memory.New(), nil
}
