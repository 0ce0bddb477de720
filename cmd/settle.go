package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brave-intl/compensation-engine/internal/compensation/ledger"
	"github.com/brave-intl/compensation-engine/internal/compensation/queue"
	"github.com/brave-intl/compensation-engine/internal/compensation/registry"
	"github.com/brave-intl/compensation-engine/internal/compensation/settler"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/logging"
)

func init() {
	RootCmd.AddCommand(SettleCmd)
}

// SettleCmd runs one Weekly Settler pass out of band, without the
// cron loop — an operator escape hatch for a missed or delayed fire.
var SettleCmd = &cobra.Command{
	Use:   "settle",
	Short: "run one Weekly Settler pass immediately",
	RunE: func(command *cobra.Command, args []string) error {
		ctx := command.Context()
		logger := logging.Logger(ctx, "cmd.settle")

		pg, err := datastore.NewPostgres(viper.GetString("database_url"), false)
		if err != nil {
			return err
		}
		reg := registry.New(pg)
		led := ledger.New(pg, reg)
		q := queue.New(pg)
		s := settler.New(pg, q, led)

		result, err := s.Run(ctx)
		if err != nil {
			return err
		}
		if result.Skipped {
			logger.Info().Msg("settler already running elsewhere; this manual run was skipped")
			return nil
		}
		logger.Info().Int("partners_credited", result.PartnersCredited).Str("total_credited", result.TotalCredited).Msg("manual settlement run complete")
		return nil
	},
}
