package commerce

import (
	"context"
	"math/big"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/speedrun-commerce/pkg/contracts"
	"github.com/speedrun-hq/speedrun-commerce/pkg/logger"
)

// TestTransferTokenPreApproved_Live runs the allowance top-up scenario against a real chain.
// It needs COMMERCE_LIVE_RPC_URL, COMMERCE_LIVE_CHAIN_ID, COMMERCE_LIVE_TRANSFERS_ADDRESS,
// COMMERCE_LIVE_TOKEN, COMMERCE_LIVE_OPERATOR_KEY and COMMERCE_LIVE_PAYER_KEY. The operator must
// already be registered and the payer must hold at least 1.01 units of the token.
func TestTransferTokenPreApproved_Live(t *testing.T) {
	rpcURL := os.Getenv("COMMERCE_LIVE_RPC_URL")
	if rpcURL == "" {
		t.Skip("Skipping live test, COMMERCE_LIVE_RPC_URL is not set")
	}

	chainID, err := strconv.ParseInt(os.Getenv("COMMERCE_LIVE_CHAIN_ID"), 10, 64)
	require.NoError(t, err)
	operatorKey, err := NewKeySignerFromHex(os.Getenv("COMMERCE_LIVE_OPERATOR_KEY"))
	require.NoError(t, err)
	payerKey, err := NewKeySignerFromHex(os.Getenv("COMMERCE_LIVE_PAYER_KEY"))
	require.NoError(t, err)
	token := common.HexToAddress(os.Getenv("COMMERCE_LIVE_TOKEN"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	base := Config{
		ChainID:             big.NewInt(chainID),
		RPCURL:              rpcURL,
		TransfersAddress:    common.HexToAddress(os.Getenv("COMMERCE_LIVE_TRANSFERS_ADDRESS")),
		Logger:              logger.NewStdLogger(false, logger.DebugLevel),
		ReceiptPollInterval: time.Second,
	}

	operatorCfg := base
	operatorCfg.Signer = operatorKey
	operator, err := NewOperator(ctx, operatorCfg)
	require.NoError(t, err)
	defer operator.Close()

	payerCfg := base
	payerCfg.Signer = payerKey
	payer, err := NewPayer(ctx, PayerConfig{Config: payerCfg})
	require.NoError(t, err)
	defer payer.Close()

	registered, err := operator.IsOperatorRegistered(ctx)
	require.NoError(t, err)
	require.True(t, registered, "register the operator before running the live test")
	feeDest, err := operator.FeeDestination(ctx)
	require.NoError(t, err)

	erc20, err := contracts.NewERC20(token, payer.c.chain.Backend)
	require.NoError(t, err)
	decimals, err := erc20.Decimals(payer.c.callOpts(ctx))
	require.NoError(t, err)
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	fee := new(big.Int).Div(unit, big.NewInt(100))

	recipient := common.HexToAddress("0x000000000000000000000000000000000000a11c")
	balanceOf := func(account common.Address) *big.Int {
		balance, err := erc20.BalanceOf(payer.c.callOpts(ctx), account)
		require.NoError(t, err)
		return balance
	}
	payerBefore, recipientBefore, feeBefore := balanceOf(payerKey.Address()), balanceOf(recipient), balanceOf(feeDest)

	id := NewIntentID()
	signed, err := operator.CreateAndSignTransferIntent(ctx, IntentData{
		RecipientAmount:   unit,
		FeeAmount:         fee,
		Deadline:          big.NewInt(time.Now().Add(10 * time.Minute).Unix()),
		Recipient:         recipient,
		RecipientCurrency: token,
		RefundDestination: payerKey.Address(),
		ID:                id.Bytes(),
	}, payerKey.Address())
	require.NoError(t, err)

	hash, err := payer.TransferTokenPreApproved(ctx, signed)
	require.NoError(t, err)
	t.Logf("settlement %s", hash.Hex())
	_, err = payer.WaitForReceipt(ctx, hash)
	require.NoError(t, err)

	total := new(big.Int).Add(unit, fee)
	require.Equal(t, total.String(), new(big.Int).Sub(payerBefore, balanceOf(payerKey.Address())).String())
	require.Equal(t, unit.String(), new(big.Int).Sub(balanceOf(recipient), recipientBefore).String())
	require.Equal(t, fee.String(), new(big.Int).Sub(balanceOf(feeDest), feeBefore).String())

	_, err = operator.IsIntentProcessed(ctx, id.Bytes())
	requireKind(t, err, ErrIntentAlreadyProcessed)
}
