package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire types for the two JSON endpoints. Field names and casing follow the
// gateway's API exactly.

// NumberString decodes a JSON number, string or null into a plain string.
// The gateway is not consistent about numeric identifiers: TransactionID is
// usually a number but arrives as null on declined validation, and some
// integrations quote it.
type NumberString string

func (n *NumberString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumberString(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("numeric field: %w", err)
	}
	*n = NumberString(num.String())
	return nil
}

func (n NumberString) String() string { return string(n) }

// Customer is the billing contact submitted with CreateAccessCode.
type Customer struct {
	Reference  string `json:"Reference"`
	Title      string `json:"Title"`
	FirstName  string `json:"FirstName"`
	LastName   string `json:"LastName"`
	Street1    string `json:"Street1"`
	Street2    string `json:"Street2"`
	City       string `json:"City"`
	State      string `json:"State"`
	PostalCode string `json:"PostalCode"`
	Country    string `json:"Country"` // lowercase ISO 3166-1 alpha-2
	Email      string `json:"Email"`
}

// Payment is the amount block submitted with CreateAccessCode. TotalAmount
// is in the currency's minor unit.
type Payment struct {
	TotalAmount        int64  `json:"TotalAmount"`
	InvoiceNumber      string `json:"InvoiceNumber"`
	InvoiceDescription string `json:"InvoiceDescription"`
	InvoiceReference   string `json:"InvoiceReference"`
	CurrencyCode       string `json:"CurrencyCode"`
}

// AccessCodeRequest is the CreateAccessCode request body. TransactionType is
// one of Purchase, MOTO or Recurring.
type AccessCodeRequest struct {
	Customer        Customer `json:"Customer"`
	Payment         Payment  `json:"Payment"`
	RedirectURL     string   `json:"RedirectUrl"`
	Method          string   `json:"Method"`
	TransactionType string   `json:"TransactionType,omitempty"`
}

// AccessCodeResponse is the CreateAccessCode response. The access code is a
// single-use token: consumed by the form post and the result lookup of one
// attempt, never reused.
type AccessCodeResponse struct {
	AccessCode    string `json:"AccessCode"`
	FormActionURL string `json:"FormActionURL"`
}

// AccessCodeResultRequest is the GetAccessCodeResult request body.
type AccessCodeResultRequest struct {
	AccessCode string `json:"AccessCode"`
}

// AccessCodeResult is the GetAccessCodeResult response. ResponseMessage
// carries the 5-character bank response code; TransactionID arrives as a
// JSON number.
type AccessCodeResult struct {
	AccessCode        string       `json:"AccessCode"`
	AuthorisationCode string       `json:"AuthorisationCode"`
	ResponseCode      string       `json:"ResponseCode"`
	ResponseMessage   string       `json:"ResponseMessage"`
	InvoiceNumber     string       `json:"InvoiceNumber"`
	InvoiceReference  string       `json:"InvoiceReference"`
	TotalAmount       int64        `json:"TotalAmount"`
	TransactionID     NumberString `json:"TransactionID"`
	TransactionStatus bool         `json:"TransactionStatus"`
	TokenCustomerID   NumberString `json:"TokenCustomerID"`
	BeagleScore       NumberString `json:"BeagleScore"`
}
