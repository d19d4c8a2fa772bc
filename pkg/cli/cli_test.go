package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/speedrun-commerce/pkg/blockchain"
	"github.com/speedrun-hq/speedrun-commerce/pkg/commerce"
	"github.com/speedrun-hq/speedrun-commerce/pkg/config"
	"github.com/speedrun-hq/speedrun-commerce/pkg/intentclient"
	"github.com/speedrun-hq/speedrun-commerce/pkg/intentstore"
	"github.com/speedrun-hq/speedrun-commerce/pkg/logger"
	"github.com/speedrun-hq/speedrun-commerce/pkg/models"
	"github.com/speedrun-hq/speedrun-commerce/pkg/server"
	"github.com/speedrun-hq/speedrun-commerce/pkg/testutil"
)

const testChainID = 1337

type fixture struct {
	sim      *testutil.SimulatedChain
	app      *app
	operator common.Address
	payer    common.Address
}

func newKey(t *testing.T) (string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return hex.EncodeToString(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sim := testutil.NewSimulatedChain(big.NewInt(testChainID))
	operatorKey, operator := newKey(t)
	payerKey, payer := newKey(t)

	return &fixture{
		sim:      sim,
		operator: operator,
		payer:    payer,
		app: &app{
			cfg: &config.Config{
				ChainID:             testChainID,
				TransfersAddress:    sim.TransfersAddress(),
				OperatorPrivateKey:  operatorKey,
				PayerPrivateKey:     payerKey,
				IntentTTL:           time.Hour,
				ReceiptPollInterval: time.Millisecond,
			},
			logger:  &logger.EmptyLogger{},
			backend: sim,
			nonces:  blockchain.NewNonceManager(nil),
		},
	}
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(f.app)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// startOperatorService runs the operator service over httptest with an in-memory store
func (f *fixture) startOperatorService(t *testing.T) (*httptest.Server, *intentstore.MemoryStore) {
	t.Helper()
	operator, err := f.app.newOperator(context.Background())
	require.NoError(t, err)
	t.Cleanup(operator.Close)

	store := intentstore.NewMemoryStore()
	srv := httptest.NewServer(server.NewServer(server.Config{IntentTTL: time.Hour}, operator, store, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func TestRootCommand_Tree(t *testing.T) {
	root := NewRootCommand()
	for _, path := range [][]string{{"serve"}, {"pay"}, {"intents"}, {"operator", "register"}, {"operator", "unregister"}, {"operator", "status"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestOperatorCommands(t *testing.T) {
	f := newFixture(t)
	feeDest := common.HexToAddress("0x000000000000000000000000000000000000fee5")

	out, err := f.run(t, "operator", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "registered: false")
	assert.NotContains(t, out, "fee destination")

	_, err = f.run(t, "operator", "register", "--fee-destination", "0x1234")
	require.Error(t, err)
	assert.Empty(t, f.sim.Transactions(), "a bad flag must not reach the chain")

	out, err = f.run(t, "operator", "register", "--fee-destination", feeDest.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "registered "+f.operator.Hex())

	out, err = f.run(t, "operator", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "registered: true")
	assert.Contains(t, out, "fee destination: "+feeDest.Hex())

	_, err = f.run(t, "operator", "unregister")
	require.NoError(t, err)
	out, err = f.run(t, "operator", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "registered: false")
}

func TestOperatorCommands_MissingKey(t *testing.T) {
	f := newFixture(t)
	f.app.cfg.OperatorPrivateKey = ""

	_, err := f.run(t, "operator", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPERATOR_PRIVATE_KEY")
}

func TestPayCommand_Token(t *testing.T) {
	f := newFixture(t)
	feeDest := common.HexToAddress("0x000000000000000000000000000000000000fee5")
	recipient := common.HexToAddress("0x000000000000000000000000000000000000a11c")
	token := f.sim.DeployToken("USDC", 6)
	f.sim.Mint(token, f.payer, big.NewInt(10_000_000))
	f.sim.RegisterOperator(f.operator, feeDest)

	srv, store := f.startOperatorService(t)
	signed, err := intentclient.New(srv.URL, nil).CreateIntent(context.Background(), models.CreateIntentRequest{
		Payer:             f.payer.Hex(),
		Recipient:         recipient.Hex(),
		RecipientCurrency: token.Hex(),
		RecipientAmount:   "1000000",
		FeeAmount:         "10000",
	})
	require.NoError(t, err)

	out, err := f.run(t, "pay", signed.ID, "--from", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "settlement 0x")
	assert.Contains(t, out, "mined 0x")

	assert.Equal(t, "1000000", f.sim.TokenBalance(token, recipient).String())
	assert.Equal(t, "10000", f.sim.TokenBalance(token, feeDest).String())
	assert.Equal(t, "8990000", f.sim.TokenBalance(token, f.payer).String())

	id, err := commerce.ParseIntentIDHex(signed.ID)
	require.NoError(t, err)
	assert.True(t, f.sim.IsProcessed(f.operator, id))

	record, err := store.Get(context.Background(), f.operator, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, record.Status)
	assert.NotEqual(t, common.Hash{}, record.TxHash)

	out, err = f.run(t, "intents", "--from", srv.URL, "--status", models.StatusSubmitted)
	require.NoError(t, err)
	assert.Contains(t, out, signed.ID)
	assert.Contains(t, out, record.TxHash.Hex())
	out, err = f.run(t, "intents", "--from", srv.URL, "--status", models.StatusSigned)
	require.NoError(t, err)
	assert.NotContains(t, out, signed.ID)
	_, err = f.run(t, "intents", "--from", srv.URL, "--status", "mined")
	require.Error(t, err)

	// the second run is refused before any approval and leaves balances alone
	_, err = f.run(t, "pay", signed.ID, "--from", srv.URL)
	require.Error(t, err)
	assert.True(t, commerce.IsKind(err, commerce.ErrIntentAlreadyProcessed), err.Error())
	assert.Equal(t, "1000000", f.sim.TokenBalance(token, recipient).String())
	assert.Equal(t, []string{"approve", "transferTokenPreApproved"}, methods(f.sim))
}

func TestPayCommand_Native(t *testing.T) {
	f := newFixture(t)
	recipient := common.HexToAddress("0x000000000000000000000000000000000000a11c")
	f.sim.SetNativeBalance(f.payer, big.NewInt(5_000_000))
	f.sim.RegisterOperator(f.operator, f.operator)

	srv, _ := f.startOperatorService(t)
	signed, err := intentclient.New(srv.URL, nil).CreateIntent(context.Background(), models.CreateIntentRequest{
		Payer:           f.payer.Hex(),
		Recipient:       recipient.Hex(),
		RecipientAmount: "1000000",
		FeeAmount:       "1000",
	})
	require.NoError(t, err)

	f.app.cfg.OperatorURL = srv.URL
	_, err = f.run(t, "pay", signed.ID, "--wait=false")
	require.NoError(t, err)

	assert.Equal(t, "1000000", f.sim.NativeBalance(recipient).String())
	assert.Equal(t, "3999000", f.sim.NativeBalance(f.payer).String())
	assert.Equal(t, []string{"transferNative"}, methods(f.sim))
}

func TestPayCommand_Rejects(t *testing.T) {
	f := newFixture(t)
	srv, _ := f.startOperatorService(t)

	t.Run("bad id", func(t *testing.T) {
		out, err := f.run(t, "pay", "nope", "--from", srv.URL)
		require.Error(t, err)
		assert.True(t, commerce.IsKind(err, commerce.ErrInvalidIntent), err.Error())
		assert.Empty(t, out, "main prints the error once")
	})

	t.Run("no operator url", func(t *testing.T) {
		_, err := f.run(t, "pay", commerce.NewIntentID().Hex())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OPERATOR_URL")
	})

	t.Run("unknown intent", func(t *testing.T) {
		_, err := f.run(t, "pay", commerce.NewIntentID().Hex(), "--from", srv.URL)
		require.Error(t, err)
		assert.True(t, commerce.IsKind(err, commerce.ErrFetch), err.Error())
	})

	t.Run("signed for another payer", func(t *testing.T) {
		_, someoneElse := newKey(t)
		signed, err := intentclient.New(srv.URL, nil).CreateIntent(context.Background(), models.CreateIntentRequest{
			Payer:           someoneElse.Hex(),
			Recipient:       someoneElse.Hex(),
			RecipientAmount: "1",
			FeeAmount:       "0",
		})
		require.NoError(t, err)

		_, err = f.run(t, "pay", signed.ID, "--from", srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "signed for payer")
	})

	assert.Empty(t, f.sim.Transactions())
}

func methods(sim *testutil.SimulatedChain) []string {
	var out []string
	for _, tx := range sim.Transactions() {
		out = append(out, tx.Method)
	}
	return out
}
