// Package serve boots the compensation-engine HTTP server and its
// in-process weekly scheduler, grounded on cmd/serve/eyeshade.go's
// EyeshadeServer bootstrap.
package serve

import (
	"context"
	"net/http"
	"os"
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brave-intl/compensation-engine/cmd"
	"github.com/brave-intl/compensation-engine/internal/compensation"
	"github.com/brave-intl/compensation-engine/internal/config"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/logging"
)

// ServerCmd starts the HTTP server and scheduler.
var ServerCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the compensation-engine HTTP server and scheduler",
	RunE: func(command *cobra.Command, args []string) error {
		return Run(command.Context())
	},
}

func init() {
	cmd.RootCmd.AddCommand(ServerCmd)
}

// Run boots the datastore, every compensation component, the HTTP
// server, and the weekly scheduler, blocking until the process is
// signalled to stop.
func Run(ctx context.Context) error {
	logger := logging.Logger(ctx, "serve.Run")

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			logger.Error().Err(err).Msg("failed to initialize sentry")
		}
		defer sentry.Flush(2 * time.Second)
	}

	cfg := config.New()
	pg, err := datastore.NewPostgres(cfg.DatabaseURL, true, "compensation")
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}

	svc := compensation.NewService(pg, cfg)
	svc.Scheduler.Start()
	defer svc.Scheduler.Stop()

	addr := cfg.Address
	if addr == "" {
		addr = viper.GetString("address")
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: svc.Router(),
	}

	logger.Info().Str("address", addr).Msg("compensation-engine HTTP server starting")
	return srv.ListenAndServe()
}
