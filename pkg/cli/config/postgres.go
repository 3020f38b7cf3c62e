package config

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/xiashuijun/elasticvc/pkg/domain/interfaces"
	"github.com/xiashuijun/elasticvc/pkg/repository/postgres"
	"github.com/urfave/cli/v3"

	_ "github.com/lib/pq"
)

type Postgres struct {
	dsn string `masq:"secret"`
}

func (x *Postgres) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "pg-dsn",
			Usage:       "PostgreSQL data source name (optional)",
			Category:    "PostgreSQL",
			Sources:     cli.EnvVars("ELASTICVC_PG_DSN"),
			Destination: &x.dsn,
		},
	}
}

func (x *Postgres) Enabled() bool {
	return x.dsn != ""
}

func (x *Postgres) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("configured", x.dsn != ""),
	)
}

func (x *Postgres) NewRepository(ctx context.Context) (interfaces.BranchStore, error) {
	db, err := sql.Open("postgres", x.dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open postgres connection")
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to ping postgres")
	}
	return postgres.New(db)
}
