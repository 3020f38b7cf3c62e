package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/gots/slice"
	"github.com/xiashuijun/elasticvc/pkg/cli/config"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
	"github.com/xiashuijun/elasticvc/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func unlockCommand() *cli.Command {
	var (
		path string

		firestoreCfg config.Firestore
		postgresCfg  config.Postgres
	)

	return &cli.Command{
		Name:  "unlock",
		Usage: "Clear a stuck branch lock left by a crashed commit",
		Flags: slice.Flatten([]cli.Flag{
			&cli.StringFlag{
				Name:        "path",
				Usage:       "Branch path to unlock",
				Required:    true,
				Destination: &path,
			},
		}, firestoreCfg.Flags(), postgresCfg.Flags()),
		Action: func(ctx context.Context, c *cli.Command) error {
			store, err := newStore(ctx, firestoreCfg, postgresCfg)
			if err != nil {
				return err
			}
			uc := usecase.New(store)

			if err := uc.Unlock(ctx, types.BranchPath(path)); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "unlocked %s\n", path)
			return nil
		},
	}
}
