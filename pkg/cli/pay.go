package cli

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/speedrun-hq/speedrun-commerce/pkg/commerce"
	"github.com/speedrun-hq/speedrun-commerce/pkg/config"
	"github.com/speedrun-hq/speedrun-commerce/pkg/intentclient"
)

func newPayCommand(a *app) *cobra.Command {
	var (
		from string
		wait bool
	)
	cmd := &cobra.Command{
		Use:   "pay <intent-id>",
		Short: "Settle a signed intent fetched from an operator service",
		Long:  "Pay fetches the intent, settles it with the token or native path depending on its currency, and reports the transaction back to the operator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := commerce.ParseIntentIDHex(args[0])
			if err != nil {
				return err
			}
			if from == "" {
				from = a.cfg.OperatorURL
			}
			if from == "" {
				return fmt.Errorf("--from or OPERATOR_URL is required")
			}

			ctx := cmd.Context()
			payer, err := a.newPayer(ctx)
			if err != nil {
				return err
			}
			defer payer.Close()

			client := intentclient.New(from, a.logger)
			wire, err := client.FetchIntent(ctx, id)
			if err != nil {
				return err
			}
			if wire.ChainID != a.cfg.ChainID {
				return fmt.Errorf("intent %s is for chain %d, configured chain is %d", id, wire.ChainID, a.cfg.ChainID)
			}
			if !strings.EqualFold(wire.Contract, a.cfg.TransfersAddress.Hex()) {
				return fmt.Errorf("intent %s is for contract %s, configured contract is %s", id, wire.Contract, a.cfg.TransfersAddress.Hex())
			}
			if common.HexToAddress(wire.Payer) != payer.Address() {
				return fmt.Errorf("intent %s was signed for payer %s, not %s", id, wire.Payer, payer.Address().Hex())
			}

			signed, err := wire.SignedTransferIntent()
			if err != nil {
				return err
			}

			currency := config.GetTokenType(signed.RecipientCurrency.Hex())
			if currency == "" {
				currency = signed.RecipientCurrency.Hex()
			}
			a.logger.Info("Settling intent %s: %s %s to %s", id, signed.TotalAmount(), currency, signed.Recipient.Hex())

			hash, err := payer.Settle(ctx, signed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "settlement %s\n", hash.Hex())

			if wait {
				if _, err := payer.WaitForReceipt(ctx, hash); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "mined %s\n", hash.Hex())
			}

			if err := client.ReportSubmitted(ctx, id, hash); err != nil {
				a.logger.Error("Settlement %s was sent but could not be reported: %v", hash.Hex(), err)
				return errors.Wrapf(err, "intent %s settled in %s", id, hash.Hex())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Operator service URL, OPERATOR_URL when empty")
	cmd.Flags().BoolVar(&wait, "wait", true, "Wait for the settlement to be mined before reporting it")
	return cmd
}
