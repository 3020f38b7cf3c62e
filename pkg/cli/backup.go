package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/gots/slice"
	"github.com/xiashuijun/elasticvc/pkg/cli/config"
	"github.com/xiashuijun/elasticvc/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func backupCommand() *cli.Command {
	var (
		object string

		firestoreCfg config.Firestore
		postgresCfg  config.Postgres
		gcsCfg       config.GCS
	)

	return &cli.Command{
		Name:  "backup",
		Usage: "Export every current branch timespan to GCS as newline-delimited JSON",
		Flags: slice.Flatten([]cli.Flag{
			&cli.StringFlag{
				Name:        "object",
				Usage:       "Destination object name within the configured GCS bucket",
				Value:       "elasticvc-backup.jsonl",
				Destination: &object,
			},
		}, firestoreCfg.Flags(), postgresCfg.Flags(), gcsCfg.Flags()),
		Action: func(ctx context.Context, c *cli.Command) error {
			if !gcsCfg.Enabled() {
				return fmt.Errorf("backup requires --gcs-bucket (or ELASTICVC_GCS_BUCKET) to be set")
			}

			store, err := newStore(ctx, firestoreCfg, postgresCfg)
			if err != nil {
				return err
			}
			uc := usecase.New(store)

			exporter, err := gcsCfg.NewExporter(ctx)
			if err != nil {
				return err
			}

			if err := exporter.Export(ctx, uc, object); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "exported backup to gs://%s\n", object)
			return nil
		},
	}
}
