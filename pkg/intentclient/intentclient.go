// Package intentclient provides a client for fetching signed intents from an operator service.
package intentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/speedrun-commerce/pkg/commerce"
	"github.com/speedrun-hq/speedrun-commerce/pkg/logger"
	"github.com/speedrun-hq/speedrun-commerce/pkg/models"
)

// Client represents an operator service client
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a new operator service client
func New(endpoint string, log logger.Logger) *Client {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: createHTTPClient(),
		logger:     log.Named("intentclient"),
	}
}

// CreateIntent asks the operator to sign an intent
func (c *Client) CreateIntent(ctx context.Context, req models.CreateIntentRequest) (*models.SignedIntent, error) {
	var intent models.SignedIntent
	if err := c.do(ctx, http.MethodPost, "/v1/intents", req, http.StatusCreated, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// FetchIntent gets a signed intent by id
func (c *Client) FetchIntent(ctx context.Context, id commerce.IntentID) (*models.SignedIntent, error) {
	var intent models.SignedIntent
	if err := c.do(ctx, http.MethodGet, "/v1/intents/"+id.Hex(), nil, http.StatusOK, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// ListIntents returns the operator's intents, optionally only those with status
func (c *Client) ListIntents(ctx context.Context, status string) ([]models.SignedIntent, error) {
	path := "/v1/intents"
	if status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}
	var resp models.ListIntentsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Intents, nil
}

// IsProcessed asks the operator whether the intent id was already used on-chain
func (c *Client) IsProcessed(ctx context.Context, id commerce.IntentID) (bool, error) {
	var resp models.ProcessedResponse
	if err := c.do(ctx, http.MethodGet, "/v1/intents/"+id.Hex()+"/processed", nil, http.StatusOK, &resp); err != nil {
		return false, err
	}
	return resp.Processed, nil
}

// ReportSubmitted tells the operator which transaction settles the intent
func (c *Client) ReportSubmitted(ctx context.Context, id commerce.IntentID, txHash common.Hash) error {
	body := models.SubmittedRequest{TxHash: txHash.Hex()}
	return c.do(ctx, http.MethodPost, "/v1/intents/"+id.Hex()+"/submitted", body, http.StatusOK, nil)
}

// do sends one request. Transport failures and unexpected status codes are FETCH_ERROR.
func (c *Client) do(ctx context.Context, method, path string, in interface{}, wantStatus int, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return commerce.NewError(commerce.ErrFetch, err, "failed to encode %s request", path)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return commerce.NewError(commerce.ErrFetch, err, "failed to build %s %s request", method, path)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return commerce.NewError(commerce.ErrFetch, err, "%s %s failed", method, path)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	// Read the response body regardless of status code
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return commerce.NewError(commerce.ErrFetch, err, "failed to read response body")
	}

	if resp.StatusCode != wantStatus {
		var apiErr models.ErrorResponse
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error != "" {
			return commerce.NewError(commerce.ErrFetch, nil, "%s %s: status %d: %s %s",
				method, path, resp.StatusCode, apiErr.Kind, apiErr.Error)
		}
		return commerce.NewError(commerce.ErrFetch, nil, "%s %s: unexpected status code: %d, body: %s",
			method, path, resp.StatusCode, string(bodyBytes))
	}

	c.logger.Debug("%s %s returned %d", method, path, resp.StatusCode)
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return commerce.NewError(commerce.ErrFetch, err, "failed to decode %s response", path)
	}
	return nil
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
