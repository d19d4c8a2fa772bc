package commerce

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/speedrun-hq/speedrun-commerce/pkg/contracts"
	"github.com/speedrun-hq/speedrun-commerce/pkg/metrics"
)

// PayerConfig configures a Payer
type PayerConfig struct {
	Config

	// UnlimitedApproval approves the maximum uint256 instead of the exact shortfall
	UnlimitedApproval bool
}

// Payer moves funds on-chain for intents signed by an operator
type Payer struct {
	c                 *client
	unlimitedApproval bool
}

// NewPayer validates cfg and binds the settlement contract. Missing pieces are INVALID_CONFIG.
func NewPayer(ctx context.Context, cfg PayerConfig) (*Payer, error) {
	c, err := newClient(ctx, cfg.Config, "payer")
	if err != nil {
		return nil, err
	}
	return &Payer{c: c, unlimitedApproval: cfg.UnlimitedApproval}, nil
}

// Address is the payer's account
func (p *Payer) Address() common.Address {
	return p.c.from()
}

func (p *Payer) Close() {
	p.c.Close()
}

func (p *Payer) token(token common.Address) (*contracts.ERC20, error) {
	if token == NativeCurrency {
		return nil, invalidIntent("native currency has no token contract")
	}
	erc20, err := contracts.NewERC20(token, p.c.chain.Backend)
	if err != nil {
		return nil, newError(ErrInvalidConfig, err, "failed to bind token %s", token.Hex())
	}
	return erc20, nil
}

// CheckAllowance returns the allowance granted to the settlement contract. When it is below
// needed the error is INSUFFICIENT_ALLOWANCE carrying required, current and token.
func (p *Payer) CheckAllowance(ctx context.Context, token common.Address, needed *big.Int) (*big.Int, error) {
	if needed == nil || needed.Sign() < 0 {
		return nil, invalidIntent("needed amount must be non-negative")
	}
	erc20, err := p.token(token)
	if err != nil {
		return nil, err
	}

	current, err := erc20.Allowance(p.c.callOpts(ctx), p.Address(), p.c.contract)
	metrics.ContractReads.WithLabelValues("allowance", metrics.Status(err)).Inc()
	if err != nil {
		return nil, readError("allowance", err)
	}

	if current.Cmp(needed) < 0 {
		return current, insufficientAllowance(token, needed, current)
	}
	return current, nil
}

// TokenBalance reads the payer's balance of token
func (p *Payer) TokenBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	erc20, err := p.token(token)
	if err != nil {
		return nil, err
	}

	balance, err := erc20.BalanceOf(p.c.callOpts(ctx), p.Address())
	metrics.ContractReads.WithLabelValues("balanceOf", metrics.Status(err)).Inc()
	if err != nil {
		return nil, readError("balanceOf", err)
	}
	return balance, nil
}

// ApproveToken lets the settlement contract spend up to amount of token. It does not wait for the receipt.
func (p *Payer) ApproveToken(ctx context.Context, token common.Address, amount *big.Int) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, invalidIntent("approval amount must be positive")
	}
	if amount.BitLen() > 256 {
		return common.Hash{}, invalidIntent("approval amount %s does not fit uint256", amount)
	}
	erc20, err := p.token(token)
	if err != nil {
		return common.Hash{}, err
	}

	tx, err := p.c.transact(ctx, "approve", nil, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return erc20.Approve(opts, p.c.contract, amount)
	})
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// TransferTokenPreApproved settles a token intent. When the allowance is short it checks that the id
// is still unused, then approves and waits for that approval to be mined. The settlement hash is
// returned without waiting.
func (p *Payer) TransferTokenPreApproved(ctx context.Context, signed *SignedTransferIntent) (common.Hash, error) {
	if err := p.validateSigned(signed, false); err != nil {
		return common.Hash{}, err
	}
	token := signed.RecipientCurrency

	key := allowanceKey{chainID: p.c.chainID.Uint64(), payer: p.Address(), token: token}
	unlock := allowanceLocks.lock(key)
	defer unlock()

	// settlements of ours that are not mined yet still sit in the allowance
	spend := signed.TotalAmount()
	needed := new(big.Int).Add(spend, inflightSpends.reserved(ctx, key, p.c.chain.Backend))
	if _, err := p.CheckAllowance(ctx, token, needed); err != nil {
		if !IsKind(err, ErrInsufficientAllowance) {
			return common.Hash{}, err
		}
		// a replayed intent would burn an approval before the settlement reverts
		if err := p.checkUnprocessed(ctx, signed); err != nil {
			return common.Hash{}, err
		}
		if err := p.topUpAllowance(ctx, token, needed); err != nil {
			return common.Hash{}, err
		}
	}

	tx, err := p.c.transact(ctx, "transferTokenPreApproved", nil, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return p.c.transfers.TransferTokenPreApproved(opts, signed.ContractIntent())
	})
	metrics.Settlements.WithLabelValues("token", metrics.Status(err)).Inc()
	if err != nil {
		return common.Hash{}, err
	}
	inflightSpends.add(key, tx.Hash(), spend)
	return tx.Hash(), nil
}

// TransferNative settles an intent paid in the chain's native coin. No allowance is involved,
// the transaction carries recipientAmount + feeAmount as value.
func (p *Payer) TransferNative(ctx context.Context, signed *SignedTransferIntent) (common.Hash, error) {
	if err := p.validateSigned(signed, true); err != nil {
		return common.Hash{}, err
	}

	unlock := allowanceLocks.lock(allowanceKey{chainID: p.c.chainID.Uint64(), payer: p.Address(), token: NativeCurrency})
	defer unlock()

	tx, err := p.c.transact(ctx, "transferNative", signed.TotalAmount(), func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return p.c.transfers.TransferNative(opts, signed.ContractIntent())
	})
	metrics.Settlements.WithLabelValues("native", metrics.Status(err)).Inc()
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// Settle picks the native or token path from the intent's currency
func (p *Payer) Settle(ctx context.Context, signed *SignedTransferIntent) (common.Hash, error) {
	if signed != nil && signed.IsNative() {
		return p.TransferNative(ctx, signed)
	}
	return p.TransferTokenPreApproved(ctx, signed)
}

// WaitForReceipt blocks until txHash is mined. A reverted transaction is CONTRACT_WRITE_ERROR.
func (p *Payer) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return p.c.waitMined(ctx, "payer", txHash)
}

// checkUnprocessed returns INTENT_ALREADY_PROCESSED when the intent's id is already used on-chain
func (p *Payer) checkUnprocessed(ctx context.Context, signed *SignedTransferIntent) error {
	processed, err := p.c.transfers.IsIntentProcessed(p.c.callOpts(ctx), signed.Operator, signed.ID)
	metrics.ContractReads.WithLabelValues("isIntentProcessed", metrics.Status(err)).Inc()
	if err != nil {
		return readError("isIntentProcessed", err)
	}
	if processed {
		return alreadyProcessed(signed.ID)
	}
	return nil
}

// topUpAllowance must be called with the allowance lock held
func (p *Payer) topUpAllowance(ctx context.Context, token common.Address, needed *big.Int) error {
	amount := new(big.Int).Set(needed)
	if p.unlimitedApproval {
		amount = new(big.Int).Set(math.MaxBig256)
	}
	p.c.logger.InfoWithChain(p.c.id(), "Approving %s of token %s for %s", amount, token.Hex(), p.c.contract.Hex())

	hash, err := p.ApproveToken(ctx, token, amount)
	if err != nil {
		metrics.Approvals.WithLabelValues(metrics.StatusError).Inc()
		return err
	}
	if _, err := p.c.waitMined(ctx, "approve", hash); err != nil {
		metrics.Approvals.WithLabelValues(metrics.StatusError).Inc()
		return err
	}
	metrics.Approvals.WithLabelValues(metrics.StatusSuccess).Inc()
	return nil
}

func (p *Payer) validateSigned(signed *SignedTransferIntent, native bool) error {
	if signed == nil {
		return invalidIntent("signed intent is required")
	}
	if len(signed.Signature) == 0 {
		return invalidIntent("intent %s is not signed", signed.ID.Hex())
	}
	if signed.Operator == (common.Address{}) {
		return invalidIntent("intent %s has no operator", signed.ID.Hex())
	}
	if native && !signed.IsNative() {
		return invalidIntent("intent %s is paid in token %s, not native currency", signed.ID.Hex(), signed.RecipientCurrency.Hex())
	}
	if !native && signed.IsNative() {
		return invalidIntent("intent %s is paid in native currency", signed.ID.Hex())
	}
	if err := signed.validate(p.c.now()); err != nil {
		return err
	}
	return VerifyIntent(signed, p.Address(), p.c.chainID, p.c.contract)
}
