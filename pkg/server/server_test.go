package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/speedrun-commerce/pkg/blockchain"
	"github.com/speedrun-hq/speedrun-commerce/pkg/commerce"
	"github.com/speedrun-hq/speedrun-commerce/pkg/intentstore"
	"github.com/speedrun-hq/speedrun-commerce/pkg/models"
	"github.com/speedrun-hq/speedrun-commerce/pkg/testutil"
)

var chainID = big.NewInt(1337)

type testService struct {
	sim      *testutil.SimulatedChain
	operator *commerce.Operator
	store    *intentstore.MemoryStore
	handler  http.Handler
	token    common.Address
	payer    common.Address
}

func newTestService(t *testing.T, cfg Config) *testService {
	t.Helper()

	sim := testutil.NewSimulatedChain(chainID)
	signer, err := commerce.GenerateKeySigner()
	require.NoError(t, err)
	operator, err := commerce.NewOperator(context.Background(), commerce.Config{
		ChainID:          chainID,
		TransfersAddress: sim.TransfersAddress(),
		Signer:           signer,
		Backend:          sim,
		Nonces:           blockchain.NewNonceManager(nil),
	})
	require.NoError(t, err)

	store := intentstore.NewMemoryStore()
	return &testService{
		sim:      sim,
		operator: operator,
		store:    store,
		handler:  NewServer(cfg, operator, store, nil).Handler(),
		token:    sim.DeployToken("USDC", 6),
		payer:    common.HexToAddress("0x00000000000000000000000000000000000000b2"),
	}
}

func (s *testService) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reader).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testService) createRequest() models.CreateIntentRequest {
	return models.CreateIntentRequest{
		Payer:             s.payer.Hex(),
		Recipient:         "0x00000000000000000000000000000000000000c3",
		RecipientCurrency: s.token.Hex(),
		RecipientAmount:   "1000000",
		FeeAmount:         "10000",
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServer_CreateAndGetIntent(t *testing.T) {
	svc := newTestService(t, Config{IntentTTL: time.Hour})

	rec := svc.do(t, http.MethodPost, "/v1/intents", svc.createRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.SignedIntent](t, rec)

	assert.Equal(t, svc.operator.Address().Hex(), created.Operator)
	assert.Equal(t, svc.payer.Hex(), created.Payer)
	assert.Equal(t, models.StatusSigned, created.Status)
	assert.EqualValues(t, 1337, created.ChainID)
	assert.Equal(t, svc.sim.TransfersAddress().Hex(), created.Contract)

	signed, err := created.SignedTransferIntent()
	require.NoError(t, err)
	require.NoError(t, commerce.VerifyIntent(signed, svc.payer, chainID, svc.sim.TransfersAddress()))
	assert.InDelta(t, time.Now().Add(time.Hour).Unix(), signed.Deadline.Int64(), 5, "ttl applies without a deadline")

	rec = svc.do(t, http.MethodGet, "/v1/intents/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.Signature, decode[models.SignedIntent](t, rec).Signature)

	rec = svc.do(t, http.MethodGet, "/v1/intents/"+commerce.NewIntentID().Hex(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = svc.do(t, http.MethodGet, "/v1/intents/0x1234", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CreateIntent_Rejections(t *testing.T) {
	svc := newTestService(t, Config{MaxFeeAmount: big.NewInt(50_000)})

	tests := []struct {
		name   string
		mutate func(*models.CreateIntentRequest)
		code   int
	}{
		{"expired", func(r *models.CreateIntentRequest) { r.Deadline = time.Now().Add(-time.Minute).Unix() }, http.StatusBadRequest},
		{"bad payer", func(r *models.CreateIntentRequest) { r.Payer = "0x12" }, http.StatusBadRequest},
		{"short id", func(r *models.CreateIntentRequest) { r.ID = "0xabcdef" }, http.StatusBadRequest},
		{"fee over maximum", func(r *models.CreateIntentRequest) { r.FeeAmount = "50001" }, http.StatusBadRequest},
		{"fee at maximum", func(r *models.CreateIntentRequest) { r.FeeAmount = "50000" }, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := svc.createRequest()
			tt.mutate(&req)
			rec := svc.do(t, http.MethodPost, "/v1/intents", req)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code == http.StatusBadRequest {
				assert.Equal(t, "INVALID_INTENT", decode[models.ErrorResponse](t, rec).Kind)
			}
		})
	}

	rec := svc.do(t, http.MethodPost, "/v1/intents", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := svc.createRequest()
	req.ID = commerce.NewIntentID().Hex()
	assert.Equal(t, http.StatusCreated, svc.do(t, http.MethodPost, "/v1/intents", req).Code)
	assert.Equal(t, http.StatusConflict, svc.do(t, http.MethodPost, "/v1/intents", req).Code)
}

// failingSigner signs nothing, as if the key were unavailable
type failingSigner struct {
	IntentSigner
}

func (failingSigner) CreateAndSignTransferIntent(context.Context, commerce.IntentData, common.Address) (*commerce.SignedTransferIntent, error) {
	return nil, commerce.NewError(commerce.ErrSignature, errors.New("kms timeout"), "failed to sign")
}

func TestServer_CreateIntent_UpstreamError(t *testing.T) {
	svc := newTestService(t, Config{})
	handler := NewServer(Config{}, failingSigner{IntentSigner: svc.operator}, svc.store, nil).Handler()

	body, err := json.Marshal(svc.createRequest())
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/intents", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "SIGNATURE_ERROR", decode[models.ErrorResponse](t, rec).Kind)
}

func TestServer_ProcessedAndSubmitted(t *testing.T) {
	svc := newTestService(t, Config{})

	created := decode[models.SignedIntent](t, svc.do(t, http.MethodPost, "/v1/intents", svc.createRequest()))

	rec := svc.do(t, http.MethodGet, "/v1/intents/"+created.ID+"/processed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.ProcessedResponse](t, rec).Processed)

	rec = svc.do(t, http.MethodPost, "/v1/intents/"+created.ID+"/submitted", models.SubmittedRequest{TxHash: "0x1234"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	txHash := common.HexToHash("0xfeed").Hex()
	rec = svc.do(t, http.MethodPost, "/v1/intents/"+created.ID+"/submitted", models.SubmittedRequest{TxHash: txHash})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.SignedIntent](t, rec)
	assert.Equal(t, models.StatusSubmitted, updated.Status)
	assert.Equal(t, txHash, updated.TxHash)

	rec = svc.do(t, http.MethodPost, "/v1/intents/"+commerce.NewIntentID().Hex()+"/submitted", models.SubmittedRequest{TxHash: txHash})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_HealthAndReady(t *testing.T) {
	svc := newTestService(t, Config{})

	rec := svc.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = svc.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "operator is not registered yet")

	svc.sim.RegisterOperator(svc.operator.Address(), svc.operator.Address())
	rec = svc.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_MetricsAuth(t *testing.T) {
	svc := newTestService(t, Config{MetricsAPIKey: "secret"})

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"valid key", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.header != "" {
				headers = []string{"Authorization", tt.header}
			}
			rec := svc.do(t, http.MethodGet, "/metrics", nil, headers...)
			assert.Equal(t, tt.code, rec.Code)
		})
	}

	open := newTestService(t, Config{})
	rec := open.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "commerce_http_requests_total")
}

func TestServer_ListIntents(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()

	first := decode[models.SignedIntent](t, svc.do(t, http.MethodPost, "/v1/intents", svc.createRequest()))
	second := decode[models.SignedIntent](t, svc.do(t, http.MethodPost, "/v1/intents", svc.createRequest()))
	txHash := common.HexToHash("0xfeed").Hex()
	rec := svc.do(t, http.MethodPost, "/v1/intents/"+second.ID+"/submitted", models.SubmittedRequest{TxHash: txHash})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// same id under another operator in the shared store
	id, err := commerce.ParseIntentIDHex(first.ID)
	require.NoError(t, err)
	own, err := svc.store.Get(ctx, svc.operator.Address(), id)
	require.NoError(t, err)
	foreignIntent := *own.Intent
	foreignIntent.Operator = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	foreign := *own
	foreign.Intent = &foreignIntent
	require.NoError(t, svc.store.Save(ctx, foreign))

	ids := func(status string) []string {
		rec := svc.do(t, http.MethodGet, "/v1/intents?status="+status, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out []string
		for _, intent := range decode[models.ListIntentsResponse](t, rec).Intents {
			assert.Equal(t, svc.operator.Address().Hex(), intent.Operator)
			out = append(out, intent.ID)
		}
		return out
	}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids(""))
	assert.Equal(t, []string{first.ID}, ids(models.StatusSigned))
	assert.Equal(t, []string{second.ID}, ids(models.StatusSubmitted))

	rec = svc.do(t, http.MethodGet, "/v1/intents?status=mined", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	empty := newTestService(t, Config{})
	rec = empty.do(t, http.MethodGet, "/v1/intents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"intents":[]}`, rec.Body.String())
}

func TestServer_CreateIntent_USDCSymbol(t *testing.T) {
	svc := newTestService(t, Config{})
	req := svc.createRequest()
	req.RecipientCurrency = "usdc"

	rec := svc.do(t, http.MethodPost, "/v1/intents", req)
	require.Equal(t, http.StatusBadRequest, rec.Code, "chain 1337 has no known USDC")
	assert.Equal(t, "INVALID_INTENT", decode[models.ErrorResponse](t, rec).Kind)
}

func TestResolveCurrency(t *testing.T) {
	tests := []struct {
		name     string
		currency string
		chainID  int64
		want     string
		wantErr  bool
	}{
		{"base sepolia usdc", "USDC", 84532, common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e").Hex(), false},
		{"lower case symbol", "usdc", 8453, common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913").Hex(), false},
		{"unknown chain", "USDC", 1337, "", true},
		{"address passes through", "0x00000000000000000000000000000000000000c3", 1337, "0x00000000000000000000000000000000000000c3", false},
		{"native passes through", "", 1, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveCurrency(tt.currency, tt.chainID)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, commerce.IsKind(err, commerce.ErrInvalidIntent))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
