package commands

import (
	"github.com/spf13/cobra"

	"github.com/schoolledger/ledger-api/internal/database"
	"github.com/schoolledger/ledger-api/pkg/logger"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update every table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if err := database.Migrate(a.db); err != nil {
				return err
			}
			logger.Info("Migrations applied")
			return nil
		},
	}
}
