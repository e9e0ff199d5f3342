package cli

import (
	"fmt"

	"courier/internal/seed"

	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := seed.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Build the demo network around a target user",
		Long: `Build the demo network: a target user connected to up to ten friends,
each pair sharing a messenger. Existing rows are reused, so the command
can be run repeatedly.

Example:
  courierctl seed --target alan@test.com --friends 5 --in-flight 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.config()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to seed a production database")
			}
			db, err := rootOpts.database()
			if err != nil {
				return err
			}

			res, err := seed.NewSeeder(db, opts).Run(cmd.Context())
			if err != nil {
				return err
			}
			return rootOpts.print(cmd.OutOrStdout(), res,
				fmt.Sprintf("target user: %d", res.TargetUserID),
				fmt.Sprintf("created: %d users, %d connections, %d messengers, %d shipments",
					res.UsersCreated, res.ConnectionsCreated, res.MessengersCreated, res.ShipmentsDispatched),
			)
		},
	}

	cmd.Flags().StringVar(&opts.TargetEmail, "target", opts.TargetEmail, "email of the user the network is built around")
	cmd.Flags().IntVar(&opts.Friends, "friends", opts.Friends, "number of friends (max 10)")
	cmd.Flags().IntVar(&opts.InFlight, "in-flight", 0, "friends that dispatch a note to the target")
	cmd.Flags().BoolVar(&opts.Clean, "clean", false, "delete all courier data first")
	cmd.Flags().Int64Var(&opts.RandSeed, "rand-seed", 0, "seed for generated names and locations (0 = random)")

	return cmd
}
