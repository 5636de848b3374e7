// Package gateway is the JSON client for the eWAY Rapid API. It builds and
// submits authenticated requests to the CreateAccessCode and
// GetAccessCodeResult endpoints and maps every failure mode onto a typed
// *Error. Card data never passes through this client; the hosted form post
// is handled separately by the relay package.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/eway-checkout/internal/gateway/circuitbreaker"
)

// Mode selects the gateway environment.
type Mode string

const (
	ModeLive    Mode = "live"
	ModeSandbox Mode = "sandbox"
)

const (
	liveBaseURL    = "https://api.ewaypayments.com"
	sandboxBaseURL = "https://api.sandbox.ewaypayments.com"

	// MethodCreateAccessCode requests a single-use access code for a payment.
	MethodCreateAccessCode = "CreateAccessCode"
	// MethodGetAccessCodeResult fetches the final result for an access code.
	MethodGetAccessCodeResult = "GetAccessCodeResult"
)

// ErrorKind discriminates gateway failures. Transport covers connection
// failures, timeouts and unexpected redirects; Protocol covers non-200
// statuses, malformed JSON and an Errors field in the decoded body. The
// orchestrator treats both the same way: the attempt is finalized as a
// failure with no further steps.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindProtocol
)

// Error is the failure type for all gateway calls.
type Error struct {
	Kind   ErrorKind
	Method string
	Status int      // HTTP status, when one was received
	Codes  []string // raw gateway error codes, e.g. ["V6011"]
	Err    error    // underlying cause, when any
}

func (e *Error) Error() string {
	switch {
	case len(e.Codes) > 0:
		return fmt.Sprintf("gateway: %s returned error codes %s", e.Method, strings.Join(e.Codes, ","))
	case e.Kind == KindProtocol && e.Status != 0:
		return fmt.Sprintf("gateway: %s unexpected status %d", e.Method, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("gateway: %s: %v", e.Method, e.Err)
	default:
		return fmt.Sprintf("gateway: %s failed", e.Method)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Config carries everything the client needs for one gateway account.
type Config struct {
	Mode         Mode
	APIKey       string
	Password     string
	LogRequests  bool
	LogResponses bool
	// BaseURL overrides endpoint resolution; used by tests.
	BaseURL string
}

// Client submits signed JSON requests to the gateway.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	breaker    *circuitbreaker.CircuitBreaker
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBreaker guards the gateway endpoint with a circuit breaker. When the
// circuit is open, Send fails fast with a transport-kind error instead of
// waiting for a timeout.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// NewClient creates a gateway client. The HTTP client refuses to follow
// redirects: the gateway never redirects legitimate API calls, so a redirect
// is a transport anomaly.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := cfg.BaseURL
	if base == "" {
		if cfg.Mode == ModeLive {
			base = liveBaseURL
		} else {
			base = sandboxBaseURL
		}
	}

	c := &Client{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(base, "/"),
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return errors.New("unexpected redirect")
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts reqBody as JSON to the named API method and decodes the reply
// into respBody. Any failure is returned as *Error; respBody is only valid
// when the returned error is nil.
func (c *Client) Send(ctx context.Context, method string, reqBody, respBody interface{}) error {
	endpoint := c.baseURL + "/" + method + ".json"
	host := endpointHost(c.baseURL)

	if c.breaker != nil && !c.breaker.Allow(host) {
		return &Error{Kind: KindTransport, Method: method, Err: fmt.Errorf("circuit open for %s", host)}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return &Error{Kind: KindProtocol, Method: method, Err: fmt.Errorf("encode request: %w", err)}
	}

	if c.cfg.LogRequests {
		c.logger.Debug("gateway request",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.ByteString("body", payload),
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &Error{Kind: KindTransport, Method: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordOutcome(host, false)
		return &Error{Kind: KindTransport, Method: method, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordOutcome(host, false)
		return &Error{Kind: KindTransport, Method: method, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if c.cfg.LogResponses {
		c.logger.Debug("gateway response",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
	}

	if resp.StatusCode != http.StatusOK {
		c.recordOutcome(host, false)
		return &Error{Kind: KindProtocol, Method: method, Status: resp.StatusCode}
	}

	// The gateway signals request-level errors through an Errors field in an
	// otherwise well-formed 200 body.
	var envelope struct {
		Errors string `json:"Errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.recordOutcome(host, false)
		return &Error{Kind: KindProtocol, Method: method, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if envelope.Errors != "" {
		// error list counts as a delivered response, not an endpoint failure
		c.recordOutcome(host, true)
		return &Error{Kind: KindProtocol, Method: method, Status: resp.StatusCode, Codes: splitCodes(envelope.Errors)}
	}

	if respBody != nil {
		if err := json.Unmarshal(body, respBody); err != nil {
			c.recordOutcome(host, false)
			return &Error{Kind: KindProtocol, Method: method, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}

	c.recordOutcome(host, true)
	return nil
}

func (c *Client) recordOutcome(host string, ok bool) {
	if c.breaker == nil {
		return
	}
	if ok {
		c.breaker.RecordSuccess(host)
	} else {
		c.breaker.RecordFailure(host)
	}
}

func splitCodes(errs string) []string {
	parts := strings.Split(errs, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}

func endpointHost(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return base
	}
	return u.Host
}
