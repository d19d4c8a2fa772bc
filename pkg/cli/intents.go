package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/speedrun-hq/speedrun-commerce/pkg/intentclient"
	"github.com/speedrun-hq/speedrun-commerce/pkg/models"
)

func newIntentsCommand(a *app) *cobra.Command {
	var (
		from   string
		status string
	)
	cmd := &cobra.Command{
		Use:   "intents",
		Short: "List the intents an operator service has signed",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch status {
			case "", models.StatusSigned, models.StatusSubmitted:
				return nil
			}
			return fmt.Errorf("invalid status %s, must be %s or %s", status, models.StatusSigned, models.StatusSubmitted)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == "" {
				from = a.cfg.OperatorURL
			}
			if from == "" {
				return fmt.Errorf("--from or OPERATOR_URL is required")
			}

			intents, err := intentclient.New(from, a.logger).ListIntents(cmd.Context(), status)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tPAYER\tAMOUNT\tFEE\tTX")
			for _, intent := range intents {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					intent.ID, intent.Status, intent.Payer, intent.RecipientAmount, intent.FeeAmount, intent.TxHash)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Operator service URL, OPERATOR_URL when empty")
	cmd.Flags().StringVar(&status, "status", "", "Only list intents with this status (signed or submitted)")
	return cmd
}
