// Package relay posts card data to the gateway-hosted form endpoint. The
// form-action URL is supplied by the gateway per access code, so card data
// never travels over the JSON API channel. Everything the relay logs or
// returns for storage is masked first.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/eway-checkout/internal/card"
)

// Form field names expected by the gateway's hosted form endpoint.
const (
	fieldAccessCode  = "EWAY_ACCESSCODE"
	fieldCardName    = "EWAY_CARDNAME"
	fieldCardNumber  = "EWAY_CARDNUMBER"
	fieldExpiryMonth = "EWAY_CARDEXPIRYMONTH"
	fieldExpiryYear  = "EWAY_CARDEXPIRYYEAR"
	fieldCVN         = "EWAY_CARDCVN"
)

// Fields is the payload for one form post: the single-use access code plus
// the card collected for this attempt.
type Fields struct {
	AccessCode string
	Card       card.Data
}

// MaskedValues returns the form fields with the card number and CVN masked.
// This is what may be logged and what gets merged into the stored payload.
func (f Fields) MaskedValues() map[string]string {
	masked := f.Card.Masked()
	return map[string]string{
		fieldAccessCode:  f.AccessCode,
		fieldCardName:    masked.Name,
		fieldCardNumber:  masked.Number,
		fieldExpiryMonth: masked.ExpiryMonth,
		fieldExpiryYear:  masked.ExpiryYear,
		fieldCVN:         masked.CVN,
	}
}

// RelayError is the failure type for form posts. The form endpoint returns
// no structured error body, so there are no sub-codes to expose.
type RelayError struct {
	Status int
	Err    error
}

func (e *RelayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("relay: form post rejected with status %d", e.Status)
	}
	return fmt.Sprintf("relay: form post failed: %v", e.Err)
}

func (e *RelayError) Unwrap() error { return e.Err }

// Relay submits card data to one-time form-action URLs.
type Relay struct {
	httpClient *http.Client
	logger     *zap.Logger
	logPosts   bool
}

// Option customizes a Relay.
type Option func(*Relay)

// WithHTTPClient replaces the default HTTP client. The client must not
// follow redirects; New enforces that on the default one.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Relay) { r.httpClient = hc }
}

// WithPostLogging enables logging of outbound form posts (masked fields
// only) and of the endpoint's status.
func WithPostLogging() Option {
	return func(r *Relay) { r.logPosts = true }
}

// New creates a Relay. Redirects are not followed: the gateway's form
// endpoint answers a successful post with a redirect to the merchant's
// result page, which the relay must observe rather than chase.
func New(logger *zap.Logger, opts ...Option) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Relay{
		logger: logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PostCardData submits the fields URL-encoded to the form-action URL. A
// delivered post (any 2xx or 3xx answer) returns the raw response body; a
// transport failure or a 4xx/5xx answer returns *RelayError. Delivery only
// means the gateway received the card data; the authorization outcome is
// still unknown until the result lookup.
func (r *Relay) PostCardData(ctx context.Context, formActionURL string, fields Fields) ([]byte, error) {
	if formActionURL == "" {
		return nil, &RelayError{Err: errors.New("empty form action url")}
	}

	values := url.Values{}
	values.Set(fieldAccessCode, fields.AccessCode)
	values.Set(fieldCardName, fields.Card.Name)
	values.Set(fieldCardNumber, fields.Card.Number)
	values.Set(fieldExpiryMonth, fields.Card.ExpiryMonth)
	values.Set(fieldExpiryYear, fields.Card.ExpiryYear)
	values.Set(fieldCVN, fields.Card.CVN)

	if r.logPosts {
		masked := fields.MaskedValues()
		logFields := make([]zap.Field, 0, len(masked)+1)
		logFields = append(logFields, zap.String("url", formActionURL))
		for k, v := range masked {
			logFields = append(logFields, zap.String(k, v))
		}
		r.logger.Debug("card data post", logFields...)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, formActionURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, &RelayError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &RelayError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RelayError{Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if r.logPosts {
		r.logger.Debug("card data post delivered",
			zap.String("url", formActionURL),
			zap.Int("status", resp.StatusCode),
		)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &RelayError{Status: resp.StatusCode}
	}
	return body, nil
}
