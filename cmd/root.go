// Package cmd holds the compensation-engine binary's cobra
// subcommands, grounded on the teacher's cmd/root.go + cmd/serve.go
// bootstrap style.
package cmd

import (
	"context"
	"log"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brave-intl/compensation-engine/internal/appctx"
	"github.com/brave-intl/compensation-engine/internal/logging"
)

// RootCmd is the base command for the compensation-engine binary.
var RootCmd = &cobra.Command{
	Use:   "compensation-engine",
	Short: "compensation-engine runs the referral compensation core",
}

var ctx = context.Background()

// Must logs a non-nil initialization error and exits the process with
// status 1, the teacher's fail-fast pattern for flag/env binding at
// init() time.
func Must(err error) {
	if err != nil {
		log.Printf("failed to initialize: %s\n", err.Error())
		os.Exit(1)
	}
}

// Execute is the binary's entrypoint.
func Execute(version, commit string) {
	var logger *zerolog.Logger
	ctx = context.WithValue(ctx, appctx.EnvironmentCTXKey, viper.GetString("environment"))
	ctx, logger = logging.SetupLogger(ctx)

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("compensation-engine command encountered an error")
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringP("environment", "e", "local", "the deployment environment")
	Must(viper.BindPFlag("environment", RootCmd.PersistentFlags().Lookup("environment")))
	Must(viper.BindEnv("environment", "ENV"))

	RootCmd.PersistentFlags().String("database-url", "", "the postgres connection string")
	Must(viper.BindPFlag("database_url", RootCmd.PersistentFlags().Lookup("database-url")))
	Must(viper.BindEnv("database_url", "DATABASE_URL"))

	RootCmd.AddCommand(VersionCmd)
}

// VersionCmd prints the binary's version.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the compensation-engine version",
	Run: func(command *cobra.Command, args []string) {
		log.Println("compensation-engine (development build)")
	},
}
