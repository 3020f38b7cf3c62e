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

func createCommand() *cli.Command {
	var (
		path      string
		recursive bool

		firestoreCfg config.Firestore
		postgresCfg  config.Postgres
	)

	return &cli.Command{
		Name:  "create",
		Usage: "Create a new branch at the given path",
		Flags: slice.Flatten([]cli.Flag{
			&cli.StringFlag{
				Name:        "path",
				Usage:       "Slash-delimited branch path to create",
				Required:    true,
				Destination: &path,
			},
			&cli.BoolFlag{
				Name:        "recursive",
				Usage:       "Create any missing ancestor paths as well",
				Destination: &recursive,
			},
		}, firestoreCfg.Flags(), postgresCfg.Flags()),
		Action: func(ctx context.Context, c *cli.Command) error {
			store, err := newStore(ctx, firestoreCfg, postgresCfg)
			if err != nil {
				return err
			}
			uc := usecase.New(store)

			var branch *types.BranchPath
			if recursive {
				b, err := uc.RecursiveCreate(ctx, types.BranchPath(path))
				if err != nil {
					return err
				}
				branch = &b.Path
			} else {
				b, err := uc.Create(ctx, types.BranchPath(path))
				if err != nil {
					return err
				}
				branch = &b.Path
			}

			fmt.Fprintf(os.Stdout, "created %s\n", *branch)
			return nil
		},
	}
}
