package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brave-intl/compensation-engine/internal/datastore"
)

func init() {
	RootCmd.AddCommand(MigrateCmd)
}

// MigrateCmd applies pending schema migrations and exits.
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "apply pending database migrations",
	RunE: func(command *cobra.Command, args []string) error {
		pg, err := datastore.NewPostgres(viper.GetString("database_url"), false)
		if err != nil {
			return err
		}
		return pg.Migrate()
	},
}
