// Package gateway is the client for the Safe client gateway endpoints used to
// register delegates and push notification devices.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/better-wallet/webconnect/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/time/rate"
)

// CreateDelegateRequest registers a delegate for an owner on one chain. A nil
// Safe registers the delegate for every Safe of the owner.
type CreateDelegateRequest struct {
	ChainID   string          `json:"-"`
	Safe      *common.Address `json:"safe"`
	Owner     common.Address  `json:"delegator"`
	Delegate  common.Address  `json:"delegate"`
	Signature hexutil.Bytes   `json:"signature"`
	Label     string          `json:"label"`
}

// MarshalJSON encodes addresses in EIP-55 checksum form, which the gateway
// requires
func (r CreateDelegateRequest) MarshalJSON() ([]byte, error) {
	var safe *string
	if r.Safe != nil {
		hex := r.Safe.Hex()
		safe = &hex
	}
	return json.Marshal(struct {
		Safe      *string       `json:"safe"`
		Owner     string        `json:"delegator"`
		Delegate  string        `json:"delegate"`
		Signature hexutil.Bytes `json:"signature"`
		Label     string        `json:"label"`
	}{
		Safe:      safe,
		Owner:     r.Owner.Hex(),
		Delegate:  r.Delegate.Hex(),
		Signature: r.Signature,
		Label:     r.Label,
	})
}

// RegisterDeviceRequest registers a device for push notifications signed by
// its delegate keys
type RegisterDeviceRequest struct {
	DeviceID   string   `json:"uuid"`
	PushToken  string   `json:"cloudMessagingToken"`
	DeviceType string   `json:"deviceType"`
	Timestamp  string   `json:"timestamp"`
	ChainIDs   []string `json:"chainIds"`
	Delegates  []string `json:"delegates"`
	Signatures []string `json:"signatures"`
}

// HTTPError is returned for non-2xx gateway responses
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body)
}

// Config configures a Client
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RPS limits outgoing requests, zero disables the limit
	RPS   float64
	Burst int
}

// Client calls the client gateway
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a gateway client
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return c, nil
}

// CreateDelegate registers a delegate on req.ChainID
func (c *Client) CreateDelegate(ctx context.Context, req CreateDelegateRequest) error {
	if req.ChainID == "" {
		return fmt.Errorf("chain id is required")
	}
	path := fmt.Sprintf("/v1/chains/%s/delegates", url.PathEscape(req.ChainID))
	if err := c.post(ctx, path, req); err != nil {
		return fmt.Errorf("create delegate on chain %s: %w", req.ChainID, err)
	}
	logger.Debug(ctx, "delegate registered", "chain_id", req.ChainID, "owner", req.Owner.Hex(), "delegate", req.Delegate.Hex())
	return nil
}

// RegisterDevice registers the device for push notifications
func (c *Client) RegisterDevice(ctx context.Context, req RegisterDeviceRequest) error {
	if err := c.post(ctx, "/v1/register/notifications", req); err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if id := logger.GetRequestID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
