package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/eway-checkout/internal/card"
	"github.com/yourorg/eway-checkout/internal/gateway"
	"github.com/yourorg/eway-checkout/internal/policy"
	"github.com/yourorg/eway-checkout/internal/relay"
)

var testCard = card.Data{
	Name:        "Ada Lovelace",
	Number:      "4444333322221111",
	ExpiryMonth: "12",
	ExpiryYear:  "30",
	CVN:         "123",
}

// fakeGateway answers the two JSON methods from canned responses and counts
// calls so tests can assert short-circuit behavior.
type fakeGateway struct {
	accessCode    gateway.AccessCodeResponse
	accessCodeErr error
	result        gateway.AccessCodeResult
	resultErr     error

	createCalls int
	resultCalls int
}

func (f *fakeGateway) Send(_ context.Context, method string, _, respBody interface{}) error {
	switch method {
	case gateway.MethodCreateAccessCode:
		f.createCalls++
		if f.accessCodeErr != nil {
			return f.accessCodeErr
		}
		*respBody.(*gateway.AccessCodeResponse) = f.accessCode
		return nil
	case gateway.MethodGetAccessCodeResult:
		f.resultCalls++
		if f.resultErr != nil {
			return f.resultErr
		}
		*respBody.(*gateway.AccessCodeResult) = f.result
		return nil
	default:
		return errors.New("unexpected method " + method)
	}
}

type fakeRelay struct {
	err   error
	calls int

	lastURL    string
	lastFields relay.Fields
}

func (f *fakeRelay) PostCardData(_ context.Context, formActionURL string, fields relay.Fields) ([]byte, error) {
	f.calls++
	f.lastURL = formActionURL
	f.lastFields = fields
	if f.err != nil {
		return nil, f.err
	}
	return []byte("#"), nil
}

func approvedGateway() *fakeGateway {
	return &fakeGateway{
		accessCode: gateway.AccessCodeResponse{
			AccessCode:    "ABC123",
			FormActionURL: "https://secure.ewaypayments.com/Process",
		},
		result: gateway.AccessCodeResult{
			AccessCode:        "ABC123",
			AuthorisationCode: "064234",
			ResponseCode:      "00",
			ResponseMessage:   "A2000",
			TotalAmount:       2500,
			TransactionID:     "999",
			TransactionStatus: true,
		},
	}
}

func TestProcessCheckoutApproved(t *testing.T) {
	gw := approvedGateway()
	fr := &fakeRelay{}
	o := New(gw, fr)

	res, err := o.ProcessCheckout(context.Background(), ChargeRequest{Amount: 2500, Currency: "aud"}, testCard)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "999", res.TransactionID)
	assert.Equal(t, "A2000", res.ResponseCode)
	assert.Equal(t, "Transaction Approved", res.Message)
	assert.NotEmpty(t, res.AttemptID)

	assert.Equal(t, 1, gw.createCalls)
	assert.Equal(t, 1, fr.calls)
	assert.Equal(t, 1, gw.resultCalls)
	assert.Equal(t, "https://secure.ewaypayments.com/Process", fr.lastURL)
	assert.Equal(t, "ABC123", fr.lastFields.AccessCode)
	assert.Equal(t, testCard, fr.lastFields.Card)
}

func TestProcessCheckoutPayloadIsMasked(t *testing.T) {
	gw := approvedGateway()
	o := New(gw, &fakeRelay{})

	res, err := o.ProcessCheckout(context.Background(), ChargeRequest{Amount: 2500, Currency: "AUD"}, testCard)
	require.NoError(t, err)

	assert.Equal(t, "XXXXXXXXXXXX1111", res.Payload["EWAY_CARDNUMBER"])
	assert.Equal(t, "XXX", res.Payload["EWAY_CARDCVN"])
	assert.Equal(t, "ABC123", res.Payload["EWAY_ACCESSCODE"])
	assert.Equal(t, "A2000", res.Payload["ResponseMessage"])
	assert.Equal(t, "999", res.Payload["TransactionID"])
	assert.Equal(t, "2500", res.Payload["TotalAmount"])
	for k, v := range res.Payload {
		assert.NotContains(t, v, "4444333322221111", "payload field %s leaks the card number", k)
	}
}

func TestProcessCheckoutDeclinedIsNotAnError(t *testing.T) {
	gw := approvedGateway()
	gw.result.ResponseMessage = "D4405"
	gw.result.TransactionID = "1000"
	gw.result.TransactionStatus = false

	o := New(gw, &fakeRelay{})
	res, err := o.ProcessCheckout(context.Background(), ChargeRequest{Amount: 2500, Currency: "AUD"}, testCard)
	require.NoError(t, err)

	assert.Equal(t, StatusFailure, res.Status)
	assert.Equal(t, "D4405", res.ResponseCode)
	assert.Equal(t, "Do Not Honour", res.Message)
	assert.Equal(t, "1000", res.TransactionID)
}

func TestProcessCheckoutUnknownDeclineCode(t *testing.T) {
	gw := approvedGateway()
	gw.result.ResponseMessage = "D9999"

	o := New(gw, &fakeRelay{})
	res, err := o.ProcessCheckout(context.Background(), ChargeRequest{Amount: 2500, Currency: "AUD"}, testCard)
	require.NoError(t, err)

	assert.Equal(t, StatusFailure, res.Status)
	assert.Equal(t, "D9999", res.ResponseCode)
	assert.Empty(t, res.Message)
}

func TestProcessCheckoutAccessCodeFailureShortCircuits(t *testing.T) {
	gw := approvedGateway()
	gw.accessCodeErr = &gateway.Error{
		Kind:   gateway.KindProtocol,
		Method: gateway.MethodCreateAccessCode,
		Codes:  []string{"V6011"},
	}
	fr := &fakeRelay{}

	o := New(gw, fr)
	res, err := o.ProcessCheckout(context.Background(), ChargeRequest{Amount: 2500, Currency: "AUD"}, testCard)
	require.Error(t, err)

	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, []string{"V6011"}, gwErr.Codes)

	assert.Equal(t, StatusFailure, res.Status)
	assert.Empty(t, res.TransactionID)
	assert.Equal(t, GenericFailureMessage, res.Message)
	assert.Equal(t, 0, fr.calls)
	assert.Equal(t, 0, gw.resultCalls)
}

func TestProcessCheckoutIncompleteAccessCodeResponse(t *testing.T) {
	gw := approvedGateway()
	gw.accessCode.FormActionURL = ""
	fr := &fakeRelay{}

	o := New(gw, fr)
	res, err := o.ProcessCheckout(context.Background(), ChargeRequest{Amount: 2500, Currency: "AUD"}, testCard)
	require.Error(t, err)

	assert.Equal(t, StatusFailure, res.Status)
	assert.Equal(t, GenericFailureMessage, res.Message)
	assert.Equal(t, 0, fr.calls)
}

func TestProcessCheckoutRelayFailureStopsBeforeResultLookup(t *testing.T) {
	gw := approvedGateway()
	fr := &fakeRelay{err: &relay.RelayError{Status: 400}}

	o := New(gw, fr)
	res, err := o.ProcessCheckout(context.Background(), ChargeRequest{Amount: 2500, Currency: "AUD"}, testCard)
	require.Error(t, err)

	var relayErr *relay.RelayError
	require.ErrorAs(t, err, &relayErr)

	assert.Equal(t, StatusFailure, res.Status)
	assert.Empty(t, res.TransactionID)
	assert.Equal(t, GenericFailureMessage, res.Message)
	assert.Equal(t, 1, fr.calls)
	assert.Equal(t, 0, gw.resultCalls)
}

func TestProcessCheckoutResultLookupFailure(t *testing.T) {
	gw := approvedGateway()
	gw.resultErr = &gateway.Error{Kind: gateway.KindTransport, Method: gateway.MethodGetAccessCodeResult}

	o := New(gw, &fakeRelay{})
	res, err := o.ProcessCheckout(context.Background(), ChargeRequest{Amount: 2500, Currency: "AUD"}, testCard)
	require.Error(t, err)

	assert.Equal(t, StatusFailure, res.Status)
	assert.Empty(t, res.TransactionID)
	assert.Equal(t, GenericFailureMessage, res.Message)
}

func TestProcessCheckoutApprovedWithoutTransactionID(t *testing.T) {
	gw := approvedGateway()
	gw.result.TransactionID = ""

	o := New(gw, &fakeRelay{})
	res, err := o.ProcessCheckout(context.Background(), ChargeRequest{Amount: 2500, Currency: "AUD"}, testCard)
	require.Error(t, err)

	assert.Equal(t, StatusFailure, res.Status)
	assert.Empty(t, res.TransactionID)
	assert.Equal(t, GenericFailureMessage, res.Message)
}

func TestProcessCheckoutPolicyRejection(t *testing.T) {
	enforcer, err := policy.NewEnforcer([]policy.Rule{
		{ID: "visa_only", Expression: "!(cardType == 'visa')", Message: "Only Visa cards are accepted."},
	})
	require.NoError(t, err)

	gw := approvedGateway()
	fr := &fakeRelay{}
	o := New(gw, fr, WithPolicy(enforcer))

	amex := card.Data{Name: "Ada", Number: "378282246310005", ExpiryMonth: "12", ExpiryYear: "30", CVN: "1234"}
	res, procErr := o.ProcessCheckout(context.Background(), ChargeRequest{Amount: 2500, Currency: "AUD"}, amex)
	require.NoError(t, procErr)

	assert.Equal(t, StatusFailure, res.Status)
	assert.Equal(t, "Only Visa cards are accepted.", res.Message)
	assert.Equal(t, 0, gw.createCalls)
	assert.Equal(t, 0, fr.calls)
}

func TestProcessCheckoutPolicyAllowsMatchingCard(t *testing.T) {
	enforcer, err := policy.NewEnforcer([]policy.Rule{policy.AcceptedCardTypesRule([]string{"visa"})})
	require.NoError(t, err)

	o := New(approvedGateway(), &fakeRelay{}, WithPolicy(enforcer))
	res, procErr := o.ProcessCheckout(context.Background(), ChargeRequest{Amount: 2500, Currency: "AUD"}, testCard)
	require.NoError(t, procErr)
	assert.Equal(t, StatusSuccess, res.Status)
}

func TestNewPanicsOnNilDependencies(t *testing.T) {
	assert.Panics(t, func() { New(nil, &fakeRelay{}) })
	assert.Panics(t, func() { New(&fakeGateway{}, nil) })
}
