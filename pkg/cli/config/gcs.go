package config

import (
	"context"
	"log/slog"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/xiashuijun/elasticvc/pkg/infra/backup"
	"github.com/urfave/cli/v3"
)

type GCS struct {
	bucket string
}

func (x *GCS) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gcs-bucket",
			Usage:       "GCS bucket for admin backup export",
			Category:    "GCS",
			Sources:     cli.EnvVars("ELASTICVC_GCS_BUCKET"),
			Destination: &x.bucket,
		},
	}
}

func (x *GCS) Enabled() bool {
	return x.bucket != ""
}

func (x *GCS) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("bucket", x.bucket),
	)
}

func (x *GCS) NewExporter(ctx context.Context) (*backup.Exporter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GCS client")
	}
	return backup.New(client, x.bucket), nil
}
