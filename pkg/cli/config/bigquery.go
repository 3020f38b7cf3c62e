package config

import (
	"context"
	"log/slog"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/xiashuijun/elasticvc/pkg/infra/audit"
	"github.com/urfave/cli/v3"
)

type BigQuery struct {
	projectID string
	dataset   string
	table     string
}

func (x *BigQuery) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bq-project-id",
			Usage:       "BigQuery project ID (optional, enables commit audit logging)",
			Category:    "BigQuery",
			Sources:     cli.EnvVars("ELASTICVC_BQ_PROJECT_ID"),
			Destination: &x.projectID,
		},
		&cli.StringFlag{
			Name:        "bq-dataset",
			Usage:       "BigQuery dataset for commit audit rows",
			Category:    "BigQuery",
			Sources:     cli.EnvVars("ELASTICVC_BQ_DATASET"),
			Value:       "elasticvc",
			Destination: &x.dataset,
		},
		&cli.StringFlag{
			Name:        "bq-table",
			Usage:       "BigQuery table for commit audit rows",
			Category:    "BigQuery",
			Sources:     cli.EnvVars("ELASTICVC_BQ_TABLE"),
			Value:       "commit_audit",
			Destination: &x.table,
		},
	}
}

func (x *BigQuery) Enabled() bool {
	return x.projectID != ""
}

func (x *BigQuery) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("projectID", x.projectID),
		slog.Any("dataset", x.dataset),
		slog.Any("table", x.table),
	)
}

func (x *BigQuery) NewListener(ctx context.Context) (*audit.Listener, error) {
	client, err := bigquery.NewClient(ctx, x.projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create bigquery client", goerr.V("projectID", x.projectID))
	}
	return audit.New(ctx, client, x.dataset, x.table)
}
