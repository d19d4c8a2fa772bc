package commerce

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/speedrun-hq/speedrun-commerce/pkg/metrics"
)

// Operator authorizes transfer intents and manages its registration on the settlement contract
type Operator struct {
	c *client
}

// NewOperator validates cfg and binds the settlement contract. Missing pieces are INVALID_CONFIG.
func NewOperator(ctx context.Context, cfg Config) (*Operator, error) {
	c, err := newClient(ctx, cfg, "operator")
	if err != nil {
		return nil, err
	}
	return &Operator{c: c}, nil
}

// Address is the operator's own address, the one intents are attributed to
func (o *Operator) Address() common.Address {
	return o.c.from()
}

func (o *Operator) ChainID() *big.Int {
	return new(big.Int).Set(o.c.chainID)
}

func (o *Operator) ContractAddress() common.Address {
	return o.c.contract
}

func (o *Operator) Close() {
	o.c.Close()
}

// FeeDestination reads where this operator's fees are routed
func (o *Operator) FeeDestination(ctx context.Context) (common.Address, error) {
	dest, err := o.c.transfers.GetFeeDestination(o.c.callOpts(ctx), o.Address())
	metrics.ContractReads.WithLabelValues("getFeeDestination", metrics.Status(err)).Inc()
	if err != nil {
		return common.Address{}, readError("getFeeDestination", err)
	}
	return dest, nil
}

// IsOperatorRegistered reads the operator's registration state
func (o *Operator) IsOperatorRegistered(ctx context.Context) (bool, error) {
	registered, err := o.c.transfers.IsOperatorRegistered(o.c.callOpts(ctx), o.Address())
	metrics.ContractReads.WithLabelValues("isOperatorRegistered", metrics.Status(err)).Inc()
	if err != nil {
		return false, readError("isOperatorRegistered", err)
	}
	return registered, nil
}

// IsIntentProcessed returns false when the id is still unused. An already processed id
// is reported as an INTENT_ALREADY_PROCESSED error carrying the id.
func (o *Operator) IsIntentProcessed(ctx context.Context, id []byte) (bool, error) {
	intentID, err := ParseIntentID(id)
	if err != nil {
		return false, err
	}

	processed, err := o.c.transfers.IsIntentProcessed(o.c.callOpts(ctx), o.Address(), intentID)
	metrics.ContractReads.WithLabelValues("isIntentProcessed", metrics.Status(err)).Inc()
	if err != nil {
		return false, readError("isIntentProcessed", err)
	}
	if processed {
		return true, alreadyProcessed(intentID)
	}
	return false, nil
}

// CreateAndSignTransferIntent builds an intent attributed to this operator and signs it for payer.
// It performs no network call.
func (o *Operator) CreateAndSignTransferIntent(_ context.Context, data IntentData, payer common.Address) (*SignedTransferIntent, error) {
	id, err := ParseIntentID(data.ID)
	if err != nil {
		return nil, err
	}
	if payer == (common.Address{}) {
		return nil, invalidIntent("payer address is required")
	}

	prefix := data.Prefix
	if prefix == nil {
		prefix = []byte{}
	}

	intent := TransferIntent{
		RecipientAmount:   copyInt(data.RecipientAmount),
		Deadline:          copyInt(data.Deadline),
		Recipient:         data.Recipient,
		RecipientCurrency: data.RecipientCurrency,
		RefundDestination: data.RefundDestination,
		FeeAmount:         copyInt(data.FeeAmount),
		ID:                id,
		Operator:          o.Address(),
		Prefix:            append([]byte{}, prefix...),
	}
	if err := intent.validate(o.c.now()); err != nil {
		return nil, err
	}

	hash := SigningHash(&intent, payer, o.c.chainID, o.c.contract)
	signature, err := o.c.signer.SignHash(hash)
	if err != nil {
		return nil, newError(ErrSignature, err, "failed to sign intent %s", id.Hex())
	}

	prefixLabel := "default"
	if len(intent.Prefix) > 0 {
		prefixLabel = "custom"
	}
	metrics.IntentsSigned.WithLabelValues(prefixLabel).Inc()
	o.c.logger.DebugWithChain(o.c.id(), "Signed intent %s for payer %s", id.Hex(), payer.Hex())

	return &SignedTransferIntent{TransferIntent: intent, Signature: signature}, nil
}

// RegisterOperator registers the operator with itself as fee destination
func (o *Operator) RegisterOperator(ctx context.Context) (common.Hash, error) {
	tx, err := o.c.transact(ctx, "registerOperator", nil, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return o.c.transfers.RegisterOperator(opts)
	})
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// RegisterOperatorWithFeeDestination registers the operator with fees routed to feeDestination
func (o *Operator) RegisterOperatorWithFeeDestination(ctx context.Context, feeDestination common.Address) (common.Hash, error) {
	if feeDestination == (common.Address{}) {
		return common.Hash{}, invalidIntent("fee destination must not be the zero address")
	}

	tx, err := o.c.transact(ctx, "registerOperatorWithFeeDestination", nil, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return o.c.transfers.RegisterOperatorWithFeeDestination(opts, feeDestination)
	})
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// UnregisterOperator removes the operator's registration
func (o *Operator) UnregisterOperator(ctx context.Context) (common.Hash, error) {
	tx, err := o.c.transact(ctx, "unregisterOperator", nil, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return o.c.transfers.UnregisterOperator(opts)
	})
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// WaitForReceipt blocks until txHash is mined. A reverted transaction is CONTRACT_WRITE_ERROR.
func (o *Operator) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return o.c.waitMined(ctx, "operator", txHash)
}

func copyInt(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}
