package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/eway-checkout/internal/checkout"
	"github.com/yourorg/eway-checkout/internal/gateway"
	"github.com/yourorg/eway-checkout/internal/metrics"
	"github.com/yourorg/eway-checkout/internal/monitor"
	"github.com/yourorg/eway-checkout/internal/policy"
	"github.com/yourorg/eway-checkout/internal/relay"
	"github.com/yourorg/eway-checkout/internal/reporting"
)

// gatewayStub emulates the two JSON endpoints plus the hosted form endpoint
// on a single httptest server.
type gatewayStub struct {
	server       *httptest.Server
	responseCode string
	formPosts    int
}

func newGatewayStub(t *testing.T) *gatewayStub {
	t.Helper()
	stub := &gatewayStub{responseCode: "A2000"}
	mux := http.NewServeMux()
	mux.HandleFunc("/CreateAccessCode.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"AccessCode":"ABC123","FormActionURL":"%s/form"}`, stub.server.URL)
	})
	mux.HandleFunc("/form", func(w http.ResponseWriter, r *http.Request) {
		stub.formPosts++
		require.NoError(t, r.ParseForm())
		require.Equal(t, "ABC123", r.PostFormValue("EWAY_ACCESSCODE"))
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/GetAccessCodeResult.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"AccessCode":"ABC123","ResponseCode":"00","ResponseMessage":"%s","TotalAmount":2500,"TransactionID":999,"TransactionStatus":true}`, stub.responseCode)
	})
	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func newTestServer(t *testing.T, stub *gatewayStub) (*server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	client := gateway.NewClient(gateway.Config{
		APIKey:   "44DD7CvDacb",
		Password: "secret",
		BaseURL:  stub.server.URL,
	}, logger)

	enforcer, err := policy.NewEnforcer([]policy.Rule{
		policy.AcceptedCardTypesRule([]string{"visa", "mastercard"}),
	})
	require.NoError(t, err)

	contractMonitor, err := monitor.NewContractMonitor(monitor.CheckoutRequestSchema)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	orch := checkout.New(client, relay.New(logger),
		checkout.WithPolicy(enforcer),
		checkout.WithMetrics(metrics.New(registry)),
	)

	s := &server{
		orchestrator: orch,
		monitor:      contractMonitor,
		recorder:     reporting.NewRecorder(),
		registry:     registry,
		logger:       logger,
	}
	return s, setupRouter(s)
}

func validPayload() map[string]interface{} {
	return map[string]interface{}{
		"amount":   2500,
		"currency": "AUD",
		"invoice": map[string]interface{}{
			"description": "Order #42",
			"number":      "42",
		},
		"billing": map[string]interface{}{
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"country":    "AU",
			"email":      "ada@example.com",
		},
		"card": map[string]interface{}{
			"name":         "Ada Lovelace",
			"number":       "4444333322221111",
			"expiry_month": "12",
			"expiry_year":  "30",
			"cvn":          "123",
		},
	}
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCheckout_Approved(t *testing.T) {
	stub := newGatewayStub(t)
	_, router := newTestServer(t, stub)

	w := postJSON(t, router, "/checkout", validPayload())
	assert.Equal(t, http.StatusOK, w.Code)

	var resp checkoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "999", resp.TransactionID)
	assert.Equal(t, "Transaction Approved", resp.Message)
	assert.NotEmpty(t, resp.AttemptID)
	assert.Equal(t, 1, stub.formPosts)
}

func TestCheckout_Declined(t *testing.T) {
	stub := newGatewayStub(t)
	stub.responseCode = "D4405"
	_, router := newTestServer(t, stub)

	w := postJSON(t, router, "/checkout", validPayload())
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	var resp checkoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "failure", resp.Status)
	assert.Equal(t, "Do Not Honour", resp.Message)
}

func TestCheckout_PolicyRejectsCardType(t *testing.T) {
	stub := newGatewayStub(t)
	_, router := newTestServer(t, stub)

	payload := validPayload()
	payload["card"].(map[string]interface{})["number"] = "378282246310005" // amex
	payload["card"].(map[string]interface{})["cvn"] = "1234"

	w := postJSON(t, router, "/checkout", payload)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	var resp checkoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "failure", resp.Status)
	assert.Equal(t, "card type not accepted", resp.Message)
	assert.Equal(t, 0, stub.formPosts)
}

func TestCheckout_SchemaViolation(t *testing.T) {
	stub := newGatewayStub(t)
	_, router := newTestServer(t, stub)

	payload := validPayload()
	payload["card"].(map[string]interface{})["number"] = "not-a-card-number"

	w := postJSON(t, router, "/checkout", payload)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var errResp gin.H
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Contains(t, errResp["error"], "validation errors")
	assert.Equal(t, 0, stub.formPosts)
}

func TestCheckout_MalformedBody(t *testing.T) {
	stub := newGatewayStub(t)
	_, router := newTestServer(t, stub)

	req, err := http.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString("this is not json"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckout_GatewayDown(t *testing.T) {
	stub := newGatewayStub(t)
	stub.server.Close()
	_, router := newTestServer(t, stub)

	w := postJSON(t, router, "/checkout", validPayload())
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	var resp checkoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "failure", resp.Status)
	assert.Equal(t, checkout.GenericFailureMessage, resp.Message)
}

func TestRetrospectiveAggregatesAttempts(t *testing.T) {
	stub := newGatewayStub(t)
	_, router := newTestServer(t, stub)

	postJSON(t, router, "/checkout", validPayload())
	stub.responseCode = "D4451"
	postJSON(t, router, "/checkout", validPayload())

	req, err := http.NewRequest(http.MethodGet, "/retrospective", nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var report reporting.RetrospectiveReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.TotalAttempts)
	assert.Equal(t, 1, report.Approved)
	assert.Equal(t, 1, report.Declined)
	assert.Equal(t, int64(2500), report.AmountApproved)
	assert.Equal(t, 1, report.CodeBreakdown["A2000"])
	assert.Equal(t, 1, report.CodeBreakdown["D4451"])
}

func TestHealthz(t *testing.T) {
	stub := newGatewayStub(t)
	_, router := newTestServer(t, stub)

	req, err := http.NewRequest(http.MethodGet, "/healthz", nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestMetricsEndpointExposesCounters(t *testing.T) {
	stub := newGatewayStub(t)
	_, router := newTestServer(t, stub)

	postJSON(t, router, "/checkout", validPayload())

	req, err := http.NewRequest(http.MethodGet, "/metrics", nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "eway_checkout_outcomes_total")
	assert.Contains(t, w.Body.String(), "eway_gateway_calls_total")
}
