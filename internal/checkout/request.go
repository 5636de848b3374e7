package checkout

import (
	"strings"

	"github.com/google/uuid"

	"github.com/yourorg/eway-checkout/internal/gateway"
)

// Gateway field length limits. Input longer than a limit is truncated, never
// rejected: the platform's order data may legitimately exceed what the
// gateway accepts.
const (
	maxInvoiceDescription = 63
	maxInvoiceNumber      = 15
	maxInvoiceReference   = 49
	maxReference          = 50
	maxTitle              = 5
	maxName               = 50
	maxStreet             = 50
	maxCity               = 50
	maxState              = 50
	maxPostalCode         = 30
	maxCountry            = 2
	maxEmail              = 50
)

// Billing is the customer contact attached to a charge.
type Billing struct {
	Reference  string
	Title      string
	FirstName  string
	LastName   string
	Street1    string
	Street2    string
	City       string
	State      string
	PostalCode string
	Country    string // ISO 3166-1 alpha-2
	Email      string
}

// ChargeRequest is the normalized input for one checkout attempt. Build it
// with BuildChargeRequest and treat it as immutable afterwards: one request
// per attempt, never reused.
type ChargeRequest struct {
	AttemptID          string
	Amount             int64  // minor units
	Currency           string // ISO 4217
	TransactionType    string // Purchase, MOTO or Recurring; defaults to Purchase
	InvoiceDescription string
	InvoiceNumber      string
	InvoiceReference   string
	Billing            Billing
	RedirectURL        string
}

// BuildChargeRequest normalizes a charge request: fields are truncated to
// the gateway's limits, the currency is uppercased, the billing country is
// lowercased as the wire format requires, and an attempt ID is assigned when
// missing.
func BuildChargeRequest(req ChargeRequest) ChargeRequest {
	if req.AttemptID == "" {
		req.AttemptID = uuid.NewString()
	}
	if req.TransactionType == "" {
		req.TransactionType = "Purchase"
	}
	req.Currency = strings.ToUpper(req.Currency)
	req.InvoiceDescription = truncate(req.InvoiceDescription, maxInvoiceDescription)
	req.InvoiceNumber = truncate(req.InvoiceNumber, maxInvoiceNumber)
	req.InvoiceReference = truncate(req.InvoiceReference, maxInvoiceReference)

	b := &req.Billing
	b.Reference = truncate(b.Reference, maxReference)
	b.Title = truncate(b.Title, maxTitle)
	b.FirstName = truncate(b.FirstName, maxName)
	b.LastName = truncate(b.LastName, maxName)
	b.Street1 = truncate(b.Street1, maxStreet)
	b.Street2 = truncate(b.Street2, maxStreet)
	b.City = truncate(b.City, maxCity)
	b.State = truncate(b.State, maxState)
	b.PostalCode = truncate(b.PostalCode, maxPostalCode)
	b.Country = strings.ToLower(truncate(b.Country, maxCountry))
	b.Email = truncate(b.Email, maxEmail)

	return req
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// accessCodeRequest maps the charge onto the CreateAccessCode wire format.
func accessCodeRequest(req ChargeRequest) gateway.AccessCodeRequest {
	return gateway.AccessCodeRequest{
		Customer: gateway.Customer{
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
		Payment: gateway.Payment{
			TotalAmount:        req.Amount,
			InvoiceNumber:      req.InvoiceNumber,
			InvoiceDescription: req.InvoiceDescription,
			InvoiceReference:   req.InvoiceReference,
			CurrencyCode:       req.Currency,
		},
		RedirectURL:     req.RedirectURL,
		Method:          "ProcessPayment",
		TransactionType: req.TransactionType,
	}
}
