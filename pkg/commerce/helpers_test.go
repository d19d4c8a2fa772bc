package commerce

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/speedrun-commerce/pkg/blockchain"
	"github.com/speedrun-hq/speedrun-commerce/pkg/testutil"
)

var testChainID = big.NewInt(1337)

const (
	// one unit of a 6 decimals token
	oneUnit  = 1_000_000
	feeUnits = 10_000
)

type testEnv struct {
	sim *testutil.SimulatedChain

	operator      *Operator
	payer         *Payer
	operatorKey   *KeySigner
	payerKey      *KeySigner
	nonces        *blockchain.NonceManager
	token         common.Address
	recipient     common.Address
	feeDest       common.Address
	refundAddress common.Address
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sim := testutil.NewSimulatedChain(testChainID)
	operatorKey, err := GenerateKeySigner()
	require.NoError(t, err)
	payerKey, err := GenerateKeySigner()
	require.NoError(t, err)

	env := &testEnv{
		sim:           sim,
		operatorKey:   operatorKey,
		payerKey:      payerKey,
		nonces:        blockchain.NewNonceManager(nil),
		token:         sim.DeployToken("USDC", 6),
		recipient:     common.HexToAddress("0x000000000000000000000000000000000000a11c"),
		feeDest:       common.HexToAddress("0x000000000000000000000000000000000000fee5"),
		refundAddress: common.HexToAddress("0x0000000000000000000000000000000000005e7d"),
	}
	sim.Mint(env.token, payerKey.Address(), big.NewInt(100*oneUnit))
	sim.RegisterOperator(operatorKey.Address(), env.feeDest)

	env.operator, err = NewOperator(context.Background(), env.config(operatorKey))
	require.NoError(t, err)
	env.payer = env.newPayer(t, PayerConfig{Config: env.config(payerKey)})
	return env
}

func (e *testEnv) config(signer Signer) Config {
	return Config{
		ChainID:             testChainID,
		TransfersAddress:    e.sim.TransfersAddress(),
		Signer:              signer,
		Backend:             e.sim,
		Nonces:              e.nonces,
		ReceiptPollInterval: time.Millisecond,
	}
}

func (e *testEnv) newPayer(t *testing.T, cfg PayerConfig) *Payer {
	t.Helper()
	payer, err := NewPayer(context.Background(), cfg)
	require.NoError(t, err)
	return payer
}

// intentData is a token intent for one unit plus a 0.01 unit fee, valid for an hour
func (e *testEnv) intentData() IntentData {
	id := NewIntentID()
	return IntentData{
		RecipientAmount:   big.NewInt(oneUnit),
		FeeAmount:         big.NewInt(feeUnits),
		Deadline:          big.NewInt(time.Now().Add(time.Hour).Unix()),
		Recipient:         e.recipient,
		RecipientCurrency: e.token,
		RefundDestination: e.refundAddress,
		ID:                id.Bytes(),
	}
}

func (e *testEnv) sign(t *testing.T, data IntentData) *SignedTransferIntent {
	t.Helper()
	signed, err := e.operator.CreateAndSignTransferIntent(context.Background(), data, e.payerKey.Address())
	require.NoError(t, err)
	return signed
}

func (e *testEnv) methods() []string {
	var out []string
	for _, tx := range e.sim.Transactions() {
		out = append(out, tx.Method)
	}
	return out
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "unexpected error: %v", err)
}
