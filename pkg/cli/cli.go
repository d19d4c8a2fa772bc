// Package cli wires configuration, the commerce clients and the operator service into cobra commands.
package cli

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/speedrun-hq/speedrun-commerce/pkg/blockchain"
	"github.com/speedrun-hq/speedrun-commerce/pkg/commerce"
	"github.com/speedrun-hq/speedrun-commerce/pkg/config"
	"github.com/speedrun-hq/speedrun-commerce/pkg/logger"
)

// app carries what every command needs. Fields left nil are filled from the environment.
type app struct {
	cfg     *config.Config
	logger  logger.Logger
	backend blockchain.Backend
	nonces  *blockchain.NonceManager
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

// Execute runs the command tree until ctx is cancelled
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "speedrun-commerce",
		Short:         "Operator service and payer tooling for signed transfer intents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.AddCommand(newServeCommand(a), newOperatorCommand(a), newPayCommand(a), newIntentsCommand(a))
	return root
}

func (a *app) init() error {
	if a.cfg == nil {
		cfg, err := config.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		a.cfg = cfg
	}
	if a.logger == nil {
		a.logger = a.cfg.LoggerConfig.NewLogger()
	}
	if a.nonces == nil {
		a.nonces = blockchain.NewNonceManager(a.logger)
		if a.cfg.PendingTxTimeout > 0 {
			a.nonces.SetTransactionTimeout(a.cfg.PendingTxTimeout)
		}
	}
	return nil
}

// clientConfig is the commerce configuration for the account behind hexKey
func (a *app) clientConfig(hexKey string) (commerce.Config, error) {
	signer, err := commerce.NewKeySignerFromHex(hexKey)
	if err != nil {
		return commerce.Config{}, err
	}
	return commerce.Config{
		ChainID:             big.NewInt(a.cfg.ChainID),
		TransfersAddress:    a.cfg.TransfersAddress,
		Signer:              signer,
		RPCURL:              a.cfg.RPCURL,
		Backend:             a.backend,
		Logger:              a.logger,
		Nonces:              a.nonces,
		GasMultiplier:       a.cfg.GasMultiplier,
		ReceiptPollInterval: a.cfg.ReceiptPollInterval,
	}, nil
}

func (a *app) newOperator(ctx context.Context) (*commerce.Operator, error) {
	if err := a.cfg.RequireOperatorKey(); err != nil {
		return nil, err
	}
	cfg, err := a.clientConfig(a.cfg.OperatorPrivateKey)
	if err != nil {
		return nil, err
	}
	return commerce.NewOperator(ctx, cfg)
}

func (a *app) newPayer(ctx context.Context) (*commerce.Payer, error) {
	if err := a.cfg.RequirePayerKey(); err != nil {
		return nil, err
	}
	cfg, err := a.clientConfig(a.cfg.PayerPrivateKey)
	if err != nil {
		return nil, err
	}
	return commerce.NewPayer(ctx, commerce.PayerConfig{
		Config:            cfg,
		UnlimitedApproval: a.cfg.UnlimitedApproval,
	})
}
