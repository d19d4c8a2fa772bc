package server

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speedrun-hq/speedrun-commerce/pkg/commerce"
	"github.com/speedrun-hq/speedrun-commerce/pkg/config"
	"github.com/speedrun-hq/speedrun-commerce/pkg/intentstore"
	"github.com/speedrun-hq/speedrun-commerce/pkg/logger"
	"github.com/speedrun-hq/speedrun-commerce/pkg/metrics"
	"github.com/speedrun-hq/speedrun-commerce/pkg/models"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// IntentSigner is the part of commerce.Operator the service relies on
type IntentSigner interface {
	Address() common.Address
	ChainID() *big.Int
	ContractAddress() common.Address
	IsOperatorRegistered(ctx context.Context) (bool, error)
	IsIntentProcessed(ctx context.Context, id []byte) (bool, error)
	CreateAndSignTransferIntent(ctx context.Context, data commerce.IntentData, payer common.Address) (*commerce.SignedTransferIntent, error)
}

var _ IntentSigner = (*commerce.Operator)(nil)

// Config holds the service settings
type Config struct {
	Port          string
	MetricsAPIKey string
	// IntentTTL is applied to requests that carry no deadline
	IntentTTL time.Duration
	// MaxFeeAmount rejects requests asking for a larger fee, unlimited when nil
	MaxFeeAmount *big.Int
}

// Server is the operator HTTP service. It signs intents for payers and serves them back.
type Server struct {
	cfg      Config
	operator IntentSigner
	store    intentstore.Store
	logger   logger.Logger
	now      func() time.Time
}

// NewServer creates a new operator service
func NewServer(cfg Config, operator IntentSigner, store intentstore.Store, log logger.Logger) *Server {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if cfg.IntentTTL <= 0 {
		cfg.IntentTTL = 30 * time.Minute
	}
	return &Server{
		cfg:      cfg,
		operator: operator,
		store:    store,
		logger:   log.Named("server"),
		now:      time.Now,
	}
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/ready", s.handleReady)

	r.Route("/v1/intents", func(api chi.Router) {
		api.Post("/", s.handleCreateIntent)
		api.Get("/", s.handleListIntents)
		api.Get("/{id}", s.handleGetIntent)
		api.Get("/{id}/processed", s.handleProcessed)
		api.Post("/{id}/submitted", s.handleSubmitted)
	})

	// Expose Prometheus metrics with API key authentication
	r.Method(http.MethodGet, "/metrics", s.metricsAuthMiddleware(promhttp.Handler()))
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting operator service for %s on port %s", s.operator.Address().Hex(), s.cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "operator service stopped")
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down operator service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// metricsAuthMiddleware is a middleware that checks for a valid API key
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if s.cfg.MetricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.cfg.MetricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// countRequests records every request by route pattern and status code
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	registered, err := s.operator.IsOperatorRegistered(r.Context())
	if err != nil {
		s.logger.Error("Readiness check failed: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Chain unavailable"))
		return
	}
	if !registered {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Operator not registered"))
		return
	}
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Error("Store ping failed: %v", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Store unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ready"))
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateIntentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	currency, err := resolveCurrency(req.RecipientCurrency, s.operator.ChainID().Int64())
	if err != nil {
		writeCommerceError(w, err)
		return
	}
	req.RecipientCurrency = currency

	now := s.now()
	data, payer, err := req.IntentData(now.Add(s.cfg.IntentTTL))
	if err != nil {
		writeCommerceError(w, err)
		return
	}
	if s.cfg.MaxFeeAmount != nil && data.FeeAmount.Cmp(s.cfg.MaxFeeAmount) > 0 {
		writeError(w, http.StatusBadRequest, string(commerce.ErrInvalidIntent),
			"fee "+data.FeeAmount.String()+" exceeds the maximum of "+s.cfg.MaxFeeAmount.String())
		return
	}

	signed, err := s.operator.CreateAndSignTransferIntent(r.Context(), data, payer)
	if err != nil {
		s.logger.Error("Failed to sign intent for %s: %v", payer.Hex(), err)
		writeCommerceError(w, err)
		return
	}

	record := intentstore.NewRecord(signed, payer, now)
	if err := s.store.Save(r.Context(), record); err != nil {
		if errors.Is(err, intentstore.ErrDuplicate) {
			writeError(w, http.StatusConflict, "DUPLICATE", err.Error())
			return
		}
		s.logger.Error("Failed to store intent %s: %v", signed.ID.Hex(), err)
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to store intent")
		return
	}

	s.logger.Info("Signed intent %s for payer %s", signed.ID.Hex(), payer.Hex())
	writeJSON(w, http.StatusCreated, s.render(record))
}

func (s *Server) handleListIntents(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", models.StatusSigned, models.StatusSubmitted:
	default:
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "status must be signed or submitted")
		return
	}

	records, err := s.store.List(r.Context(), status)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	resp := models.ListIntentsResponse{Intents: []models.SignedIntent{}}
	for _, record := range records {
		// a shared database may hold intents of other operators
		if record.Intent.Operator != s.operator.Address() {
			continue
		}
		resp.Intents = append(resp.Intents, s.render(record))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	id, ok := intentID(w, r)
	if !ok {
		return
	}

	record, err := s.store.Get(r.Context(), s.operator.Address(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.render(*record))
}

func (s *Server) handleProcessed(w http.ResponseWriter, r *http.Request) {
	id, ok := intentID(w, r)
	if !ok {
		return
	}

	processed, err := s.operator.IsIntentProcessed(r.Context(), id.Bytes())
	if err != nil && !commerce.IsKind(err, commerce.ErrIntentAlreadyProcessed) {
		writeCommerceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ProcessedResponse{ID: id.Hex(), Processed: processed})
}

func (s *Server) handleSubmitted(w http.ResponseWriter, r *http.Request) {
	id, ok := intentID(w, r)
	if !ok {
		return
	}
	var req models.SubmittedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	raw, err := hexutil.Decode(req.TxHash)
	if err != nil || len(raw) != common.HashLength {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "tx_hash must be a 32-byte 0x-prefixed hex string")
		return
	}
	txHash := common.BytesToHash(raw)

	if err := s.store.MarkSubmitted(r.Context(), s.operator.Address(), id, txHash); err != nil {
		writeStoreError(w, err)
		return
	}
	record, err := s.store.Get(r.Context(), s.operator.Address(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.logger.Info("Intent %s submitted in %s", id.Hex(), txHash.Hex())
	writeJSON(w, http.StatusOK, s.render(*record))
}

func (s *Server) render(record intentstore.Record) models.SignedIntent {
	out := models.NewSignedIntent(record.Intent, record.Payer, s.operator.ChainID().Int64(), s.operator.ContractAddress())
	out.Status = record.Status
	if record.TxHash != (common.Hash{}) {
		out.TxHash = record.TxHash.Hex()
	}
	out.CreatedAt = record.CreatedAt
	out.UpdatedAt = record.UpdatedAt
	return out
}

// resolveCurrency turns the USDC symbol into the chain's USDC address. Anything else passes through.
func resolveCurrency(currency string, chainID int64) (string, error) {
	if !strings.EqualFold(strings.TrimSpace(currency), "USDC") {
		return currency, nil
	}
	usdc, ok := config.GetUSDCAddress(chainID)
	if !ok {
		return "", commerce.NewError(commerce.ErrInvalidIntent, nil, "no USDC address is known for chain %d", chainID)
	}
	return usdc.Hex(), nil
}

func intentID(w http.ResponseWriter, r *http.Request) (commerce.IntentID, bool) {
	id, err := commerce.ParseIntentIDHex(chi.URLParam(r, "id"))
	if err != nil {
		writeCommerceError(w, err)
		return commerce.IntentID{}, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeCommerceError maps local validation failures to 400 and everything else to 502
func writeCommerceError(w http.ResponseWriter, err error) {
	kind := commerce.KindOf(err)
	status := http.StatusBadGateway
	if kind == commerce.ErrInvalidIntent {
		status = http.StatusBadRequest
	}
	writeError(w, status, string(kind), err.Error())
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, intentstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, models.ErrorResponse{Kind: kind, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
