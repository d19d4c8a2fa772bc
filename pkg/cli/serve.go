package cli

import (
	"github.com/spf13/cobra"

	"github.com/speedrun-hq/speedrun-commerce/pkg/intentstore"
	"github.com/speedrun-hq/speedrun-commerce/pkg/server"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the operator service",
		Long:  "Serve signs transfer intents for payers over HTTP and keeps them in Postgres when DATABASE_URL is set, in memory otherwise",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			operator, err := a.newOperator(ctx)
			if err != nil {
				return err
			}
			defer operator.Close()

			var store intentstore.Store
			if a.cfg.DatabaseURL != "" {
				pg, err := intentstore.NewPostgresStore(ctx, a.cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer pg.Close()
				store = pg
			} else {
				a.logger.Notice("DATABASE_URL is not set, signed intents are kept in memory")
				store = intentstore.NewMemoryStore()
			}

			registered, err := operator.IsOperatorRegistered(ctx)
			if err != nil {
				return err
			}
			if !registered {
				a.logger.Notice("Operator %s is not registered, settlements will revert until it is", operator.Address().Hex())
			}

			srv := server.NewServer(server.Config{
				Port:          a.cfg.HTTPPort,
				MetricsAPIKey: a.cfg.MetricsAPIKey,
				IntentTTL:     a.cfg.IntentTTL,
				MaxFeeAmount:  a.cfg.MaxFeeAmount,
			}, operator, store, a.logger)
			return srv.Start(ctx)
		},
	}
}
