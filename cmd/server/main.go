package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/yourorg/eway-checkout/internal/card"
	"github.com/yourorg/eway-checkout/internal/checkout"
	"github.com/yourorg/eway-checkout/internal/config"
	"github.com/yourorg/eway-checkout/internal/gateway"
	"github.com/yourorg/eway-checkout/internal/gateway/circuitbreaker"
	"github.com/yourorg/eway-checkout/internal/metrics"
	"github.com/yourorg/eway-checkout/internal/monitor"
	"github.com/yourorg/eway-checkout/internal/policy"
	"github.com/yourorg/eway-checkout/internal/relay"
	"github.com/yourorg/eway-checkout/internal/reporting"
	"github.com/yourorg/eway-checkout/internal/telemetry"
)

const serviceName = "eway-checkout"

// checkoutRequest is the POST /checkout body. Card data exists only inside
// this request's lifetime; it is never stored and never logged unmasked.
type checkoutRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Invoice  struct {
		Description string `json:"description"`
		Number      string `json:"number"`
		Reference   string `json:"reference"`
	} `json:"invoice"`
	Billing struct {
		Reference  string `json:"reference"`
		Title      string `json:"title"`
		FirstName  string `json:"first_name"`
		LastName   string `json:"last_name"`
		Street1    string `json:"street1"`
		Street2    string `json:"street2"`
		City       string `json:"city"`
		State      string `json:"state"`
		PostalCode string `json:"postal_code"`
		Country    string `json:"country"`
		Email      string `json:"email"`
	} `json:"billing"`
	RedirectURL string `json:"redirect_url"`
	Card        struct {
		Name        string `json:"name"`
		Number      string `json:"number"`
		ExpiryMonth string `json:"expiry_month"`
		ExpiryYear  string `json:"expiry_year"`
		CVN         string `json:"cvn"`
	} `json:"card"`
}

// checkoutResponse is the shopper-facing result. It carries the display
// message only; raw gateway codes stay in logs and the retrospective.
type checkoutResponse struct {
	AttemptID     string `json:"attempt_id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message,omitempty"`
}

type server struct {
	orchestrator *checkout.Orchestrator
	monitor      *monitor.ContractMonitor
	recorder     *reporting.Recorder
	registry     *prometheus.Registry
	logger       *zap.Logger
	redirectURL  string
	txnType      string
}

func (s *server) checkoutHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}

	valid, violations, err := s.monitor.Validate(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	if !valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": monitor.FormatErrors(violations)})
		return
	}

	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format: " + err.Error()})
		return
	}

	charge := checkout.ChargeRequest{
		Amount:             req.Amount,
		Currency:           req.Currency,
		TransactionType:    s.txnType,
		InvoiceDescription: req.Invoice.Description,
		InvoiceNumber:      req.Invoice.Number,
		InvoiceReference:   req.Invoice.Reference,
		RedirectURL:        req.RedirectURL,
		Billing: checkout.Billing{
			Reference:  req.Billing.Reference,
			Title:      req.Billing.Title,
			FirstName:  req.Billing.FirstName,
			LastName:   req.Billing.LastName,
			Street1:    req.Billing.Street1,
			Street2:    req.Billing.Street2,
			City:       req.Billing.City,
			State:      req.Billing.State,
			PostalCode: req.Billing.PostalCode,
			Country:    req.Billing.Country,
			Email:      req.Billing.Email,
		},
	}
	if charge.RedirectURL == "" {
		charge.RedirectURL = s.redirectURL
	}
	charge = checkout.BuildChargeRequest(charge)
	cd := card.Data{
		Name:        req.Card.Name,
		Number:      req.Card.Number,
		ExpiryMonth: req.Card.ExpiryMonth,
		ExpiryYear:  req.Card.ExpiryYear,
		CVN:         req.Card.CVN,
	}

	result, procErr := s.orchestrator.ProcessCheckout(c.Request.Context(), charge, cd)
	s.recorder.Add(reporting.Record{
		AttemptID:    result.AttemptID,
		Status:       string(result.Status),
		ResponseCode: result.ResponseCode,
		Currency:     charge.Currency,
		Amount:       charge.Amount,
		Message:      result.Message,
	})
	if procErr != nil {
		s.logger.Error("checkout attempt errored",
			zap.String("attempt_id", result.AttemptID),
			zap.Error(procErr),
		)
	}

	status := http.StatusOK
	if result.Status != checkout.StatusSuccess {
		status = http.StatusPaymentRequired
	}
	c.JSON(status, checkoutResponse{
		AttemptID:     result.AttemptID,
		Status:        string(result.Status),
		TransactionID: result.TransactionID,
		Message:       result.Message,
	})
}

func (s *server) retrospectiveHandler(c *gin.Context) {
	c.JSON(http.StatusOK, reporting.BuildReport(s.recorder.Snapshot()))
}

func (s *server) healthzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
}

func setupRouter(s *server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	router.POST("/checkout", s.checkoutHandler)
	router.GET("/retrospective", s.retrospectiveHandler)
	router.GET("/healthz", s.healthzHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	return router
}

func newServer(cfg *config.Config, logger *zap.Logger) (*server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	breaker := circuitbreaker.New(circuitbreaker.Config{})
	client := gateway.NewClient(gateway.Config{
		Mode:         gateway.Mode(cfg.Gateway.Mode),
		APIKey:       cfg.Gateway.APIKey,
		Password:     cfg.Gateway.Password,
		LogRequests:  cfg.Gateway.LogRequests,
		LogResponses: cfg.Gateway.LogResponses,
	}, logger, gateway.WithBreaker(breaker))

	cardRelay := relay.New(logger, relay.WithPostLogging())

	enforcer, err := policy.NewEnforcer([]policy.Rule{
		policy.AcceptedCardTypesRule(cfg.Checkout.AcceptedCardTypes),
	})
	if err != nil {
		return nil, err
	}

	contractMonitor, err := monitor.NewContractMonitor(monitor.CheckoutRequestSchema)
	if err != nil {
		return nil, err
	}

	orch := checkout.New(client, cardRelay,
		checkout.WithPolicy(enforcer),
		checkout.WithLogger(logger),
		checkout.WithMetrics(m),
	)

	return &server{
		orchestrator: orch,
		monitor:      contractMonitor,
		recorder:     reporting.NewRecorder(),
		registry:     registry,
		logger:       logger,
		redirectURL:  cfg.Checkout.RedirectURL,
		txnType:      cfg.Checkout.TransactionType,
	}, nil
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, shutdown, err := telemetry.Init(serviceName, cfg.IsDebug)
	if err != nil {
		panic(err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(ctx)
	}()

	srv, err := newServer(cfg, logger)
	if err != nil {
		logger.Fatal("server setup failed", zap.Error(err))
	}

	addr := net.JoinHostPort(cfg.Listen.BindIP, cfg.Listen.Port)
	logger.Info("starting server", zap.String("addr", addr), zap.String("mode", cfg.Gateway.Mode))
	if err := setupRouter(srv).Run(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
