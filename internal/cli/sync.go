package cli

import (
	"fmt"

	"courier/internal/repository"
	"courier/internal/service"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var userID uint

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Apply due arrivals and returns for a user",
		Long: `Run the same reconciliation a user's next read would run: arrive every
shipment involving them that is due, and bring home every messenger they
recalled whose return leg has elapsed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			db, err := rootOpts.database()
			if err != nil {
				return err
			}

			store := repository.NewStore(db)
			sync := service.NewSyncService(store, service.NewTransitService(store))
			arrived, completed, err := sync.SyncAll(cmd.Context(), userID)
			if err != nil {
				return err
			}

			return rootOpts.print(cmd.OutOrStdout(),
				map[string]any{"arrived_ids": arrived.ShipmentIDs, "completed_ids": completed.ShipmentIDs},
				fmt.Sprintf("arrived: %v", arrived.ShipmentIDs),
				fmt.Sprintf("returned: %v", completed.ShipmentIDs),
			)
		},
	}

	cmd.Flags().UintVar(&userID, "user", 0, "user whose shipments to reconcile")

	return cmd
}
