// Package checkout drives the gateway's access-code transaction protocol:
// request an access code, relay the card data to the gateway-hosted form
// endpoint, then fetch the final result. Each step gates the next; any
// failure finalizes the attempt as a failure with no retry. Success is only
// ever reported from a confirmed gateway response carrying an approved code
// and a remote transaction id.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yourorg/eway-checkout/internal/card"
	"github.com/yourorg/eway-checkout/internal/gateway"
	"github.com/yourorg/eway-checkout/internal/metrics"
	"github.com/yourorg/eway-checkout/internal/policy"
	"github.com/yourorg/eway-checkout/internal/relay"
)

// Status is the finalized outcome of an attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// State tracks an attempt through the protocol sequence.
type State string

const (
	StateCreated             State = "Created"
	StateAccessCodeRequested State = "AccessCodeRequested"
	StateCardDataPosted      State = "CardDataPosted"
	StateResultObtained      State = "ResultObtained"
	StateFinalized           State = "Finalized"
)

// GenericFailureMessage is what shoppers see for any failure that is not a
// bank decline. Internal codes go to logs only.
const GenericFailureMessage = "Your payment could not be processed. Please contact your payment processor."

// TransactionResult is the normalized outcome handed back to the platform
// for persistence and display. Payload is fully masked: it is safe to store
// and log as-is.
type TransactionResult struct {
	AttemptID     string
	Status        Status
	TransactionID string
	ResponseCode  string
	Message       string
	Payload       map[string]string
}

// GatewayClient is the JSON API surface the orchestrator needs.
type GatewayClient interface {
	Send(ctx context.Context, method string, reqBody, respBody interface{}) error
}

// CardRelay posts card data to the gateway-hosted form endpoint.
type CardRelay interface {
	PostCardData(ctx context.Context, formActionURL string, fields relay.Fields) ([]byte, error)
}

// Orchestrator sequences the three protocol calls for one checkout attempt
// at a time. It holds no per-attempt state; concurrent attempts are
// independent.
type Orchestrator struct {
	gateway     GatewayClient
	relay       CardRelay
	enforcer    *policy.Enforcer
	logger      *zap.Logger
	metrics     *metrics.Metrics
	stepTimeout time.Duration
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy installs a pre-flight acceptance policy. A rejected attempt
// finalizes as a failure before any network call.
func WithPolicy(e *policy.Enforcer) Option {
	return func(o *Orchestrator) { o.enforcer = e }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithStepTimeout overrides the per-call timeout (default 30s).
func WithStepTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stepTimeout = d }
}

// New creates an Orchestrator over a gateway client and a card relay.
func New(gw GatewayClient, cr CardRelay, opts ...Option) *Orchestrator {
	if gw == nil {
		panic("gateway client cannot be nil")
	}
	if cr == nil {
		panic("card relay cannot be nil")
	}
	o := &Orchestrator{
		gateway:     gw,
		relay:       cr,
		logger:      zap.NewNop(),
		stepTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessCheckout runs one attempt through the protocol. The returned
// TransactionResult is always usable by the platform; the error is non-nil
// only for failures that are not bank declines (transport, protocol, relay
// or policy-engine errors) and carries the operator-facing detail. Declined
// transactions return a failure result and a nil error.
func (o *Orchestrator) ProcessCheckout(ctx context.Context, req ChargeRequest, cd card.Data) (TransactionResult, error) {
	req = BuildChargeRequest(req)

	tracer := otel.Tracer("checkout")
	ctx, span := tracer.Start(ctx, "Checkout.Process", trace.WithAttributes(
		attribute.String("checkout.attempt_id", req.AttemptID),
		attribute.Int64("checkout.amount", req.Amount),
		attribute.String("checkout.currency", req.Currency),
	))
	defer span.End()

	logger := o.logger.With(zap.String("attempt_id", req.AttemptID))
	state := StateCreated

	// Pre-flight acceptance policy: a rejected card never generates traffic.
	if o.enforcer != nil {
		decision, err := o.enforcer.Evaluate(policy.Params{
			Amount:   req.Amount,
			Currency: req.Currency,
			CardType: card.TypeOf(cd.Number),
			Country:  req.Billing.Country,
		})
		if err != nil {
			logger.Error("policy evaluation failed", zap.Error(err))
			return o.finalize(logger, req, StatusFailure, "", "", GenericFailureMessage, nil),
				fmt.Errorf("checkout: evaluate policy: %w", err)
		}
		if !decision.Allowed {
			logger.Info("attempt rejected by policy",
				zap.String("rule", decision.RuleID),
				zap.String("reason", decision.Reason),
			)
			return o.finalize(logger, req, StatusFailure, "", "", decision.Reason, nil), nil
		}
	}

	// Step 1: Created -> AccessCodeRequested
	var acResp gateway.AccessCodeResponse
	err := o.step(ctx, tracer, metrics.StepCreateAccessCode, func(stepCtx context.Context) error {
		return o.gateway.Send(stepCtx, gateway.MethodCreateAccessCode, accessCodeRequest(req), &acResp)
	})
	if err != nil {
		logger.Error("access code request failed", zap.Error(err))
		span.RecordError(err)
		return o.finalize(logger, req, StatusFailure, "", "", GenericFailureMessage, nil),
			fmt.Errorf("checkout: create access code: %w", err)
	}
	if acResp.AccessCode == "" || acResp.FormActionURL == "" {
		err := errors.New("access code or form action url missing in response")
		logger.Error("access code request incomplete", zap.Error(err))
		span.RecordError(err)
		return o.finalize(logger, req, StatusFailure, "", "", GenericFailureMessage, nil),
			fmt.Errorf("checkout: create access code: %w", err)
	}
	state = StateAccessCodeRequested
	logger.Debug("state transition", zap.String("state", string(state)))

	// Step 2: AccessCodeRequested -> CardDataPosted. The form post only
	// confirms delivery of the card data; the authorization outcome is
	// still unknown.
	fields := relay.Fields{AccessCode: acResp.AccessCode, Card: cd}
	maskedCard := fields.MaskedValues()
	err = o.step(ctx, tracer, metrics.StepPostCardData, func(stepCtx context.Context) error {
		_, postErr := o.relay.PostCardData(stepCtx, acResp.FormActionURL, fields)
		return postErr
	})
	if err != nil {
		logger.Error("card data post failed", zap.Error(err))
		span.RecordError(err)
		return o.finalize(logger, req, StatusFailure, "", "", GenericFailureMessage, maskedCard),
			fmt.Errorf("checkout: post card data: %w", err)
	}
	state = StateCardDataPosted
	logger.Debug("state transition", zap.String("state", string(state)))

	// Step 3: CardDataPosted -> ResultObtained
	var result gateway.AccessCodeResult
	err = o.step(ctx, tracer, metrics.StepGetAccessCodeResult, func(stepCtx context.Context) error {
		return o.gateway.Send(stepCtx, gateway.MethodGetAccessCodeResult,
			gateway.AccessCodeResultRequest{AccessCode: acResp.AccessCode}, &result)
	})
	if err != nil {
		logger.Error("access code result lookup failed", zap.Error(err))
		span.RecordError(err)
		return o.finalize(logger, req, StatusFailure, "", "", GenericFailureMessage, maskedCard),
			fmt.Errorf("checkout: get access code result: %w", err)
	}
	state = StateResultObtained
	logger.Debug("state transition", zap.String("state", string(state)))

	// ResultObtained -> Finalized
	code := result.ResponseMessage
	remoteID := result.TransactionID.String()
	message := gateway.Describe(code)
	payload := maskedPayload(result, maskedCard)

	if !gateway.Approved(code) {
		logger.Info("transaction declined",
			zap.String("response_code", code),
			zap.String("transaction_id", remoteID),
		)
		return o.finalize(logger, req, StatusFailure, remoteID, code, message, payload), nil
	}

	// An approved code without a remote id means the gateway's answer is
	// incomplete; reporting success here could lose an in-flight
	// transaction, so the attempt fails instead.
	if remoteID == "" {
		err := fmt.Errorf("approved response %s carries no transaction id", code)
		logger.Error("inconsistent gateway result", zap.Error(err))
		span.RecordError(err)
		return o.finalize(logger, req, StatusFailure, "", code, GenericFailureMessage, payload),
			fmt.Errorf("checkout: %w", err)
	}

	logger.Info("transaction approved",
		zap.String("response_code", code),
		zap.String("transaction_id", remoteID),
	)
	return o.finalize(logger, req, StatusSuccess, remoteID, code, message, payload), nil
}

// step runs one protocol call under its own timeout and span, and records
// call metrics.
func (o *Orchestrator) step(ctx context.Context, tracer trace.Tracer, name string, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	stepCtx, span := tracer.Start(stepCtx, "checkout."+name)
	defer span.End()

	start := time.Now()
	err := fn(stepCtx)
	o.metrics.ObserveStep(name, time.Since(start))
	o.metrics.RecordGatewayCall(name, callOutcome(err))
	return err
}

func (o *Orchestrator) finalize(logger *zap.Logger, req ChargeRequest, status Status, remoteID, code, message string, payload map[string]string) TransactionResult {
	o.metrics.RecordOutcome(string(status), code)
	logger.Debug("state transition", zap.String("state", string(StateFinalized)), zap.String("status", string(status)))
	return TransactionResult{
		AttemptID:     req.AttemptID,
		Status:        status,
		TransactionID: remoteID,
		ResponseCode:  code,
		Message:       message,
		Payload:       payload,
	}
}

// maskedPayload merges the gateway result with the masked card fields into
// the record the platform stores.
func maskedPayload(result gateway.AccessCodeResult, maskedCard map[string]string) map[string]string {
	payload := map[string]string{
		"AccessCode":        result.AccessCode,
		"AuthorisationCode": result.AuthorisationCode,
		"ResponseCode":      result.ResponseCode,
		"ResponseMessage":   result.ResponseMessage,
		"InvoiceNumber":     result.InvoiceNumber,
		"InvoiceReference":  result.InvoiceReference,
		"TotalAmount":       strconv.FormatInt(result.TotalAmount, 10),
		"TransactionID":     result.TransactionID.String(),
		"TransactionStatus": strconv.FormatBool(result.TransactionStatus),
		"BeagleScore":       result.BeagleScore.String(),
	}
	for k, v := range maskedCard {
		payload[k] = v
	}
	return payload
}

func callOutcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) && gwErr.Kind == gateway.KindProtocol {
		return metrics.OutcomeProtocolError
	}
	var relayErr *relay.RelayError
	if errors.As(err, &relayErr) && relayErr.Status != 0 {
		return metrics.OutcomeProtocolError
	}
	return metrics.OutcomeTransportError
}
