package cli

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/speedrun-hq/speedrun-commerce/pkg/commerce"
	"github.com/speedrun-hq/speedrun-commerce/pkg/config"
)

func newOperatorCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage the operator registration on the transfers contract",
	}
	cmd.AddCommand(newRegisterCommand(a), newUnregisterCommand(a), newStatusCommand(a))
	return cmd
}

func newRegisterCommand(a *app) *cobra.Command {
	var feeDestination string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the operator, optionally with a separate fee destination",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if feeDestination != "" && !common.IsHexAddress(feeDestination) {
				return fmt.Errorf("invalid fee destination address %s", feeDestination)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withOperator(cmd.Context(), func(ctx context.Context, operator *commerce.Operator) error {
				var (
					hash common.Hash
					err  error
				)
				if feeDestination != "" {
					hash, err = operator.RegisterOperatorWithFeeDestination(ctx, common.HexToAddress(feeDestination))
				} else {
					hash, err = operator.RegisterOperator(ctx)
				}
				if err != nil {
					return err
				}
				return a.confirm(cmd, operator, "registered", hash)
			})
		},
	}
	cmd.Flags().StringVar(&feeDestination, "fee-destination", "", "Address that receives operator fees, the operator itself when empty")
	return cmd
}

func newUnregisterCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unregister",
		Short: "Unregister the operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withOperator(cmd.Context(), func(ctx context.Context, operator *commerce.Operator) error {
				hash, err := operator.UnregisterOperator(ctx)
				if err != nil {
					return err
				}
				return a.confirm(cmd, operator, "unregistered", hash)
			})
		},
	}
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the operator registration and fee destination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withOperator(cmd.Context(), func(ctx context.Context, operator *commerce.Operator) error {
				registered, err := operator.IsOperatorRegistered(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "operator: %s\n", operator.Address().Hex())
				fmt.Fprintf(out, "chain: %s (%d)\n", chainName(a.cfg.ChainID), a.cfg.ChainID)
				fmt.Fprintf(out, "contract: %s\n", operator.ContractAddress().Hex())
				fmt.Fprintf(out, "registered: %t\n", registered)
				if !registered {
					return nil
				}
				feeDestination, err := operator.FeeDestination(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "fee destination: %s\n", feeDestination.Hex())
				return nil
			})
		},
	}
}

func (a *app) withOperator(ctx context.Context, fn func(context.Context, *commerce.Operator) error) error {
	operator, err := a.newOperator(ctx)
	if err != nil {
		return err
	}
	defer operator.Close()
	return fn(ctx, operator)
}

// confirm waits for the transaction to be mined and prints its hash
func (a *app) confirm(cmd *cobra.Command, operator *commerce.Operator, action string, hash common.Hash) error {
	a.logger.Info("Waiting for %s", hash.Hex())
	if _, err := operator.WaitForReceipt(cmd.Context(), hash); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s in %s\n", action, operator.Address().Hex(), hash.Hex())
	return nil
}

func chainName(chainID int64) string {
	if name := config.GetChainName(chainID); name != "" {
		return name
	}
	return "UNKNOWN"
}
