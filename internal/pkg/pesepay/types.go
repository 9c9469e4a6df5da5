package pesepay

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusSuccess   TransactionStatus = "SUCCESS"
	StatusCancelled TransactionStatus = "CANCELLED"
)

// AmountDetails is the amount block of an initiate request.
type AmountDetails struct {
	Amount       decimal.Decimal
	CurrencyCode string
}

// MarshalJSON writes the amount as a bare JSON number with two decimals,
// which is what the processor parses.
func (a AmountDetails) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount       json.RawMessage `json:"amount"`
		CurrencyCode string          `json:"currencyCode"`
	}{
		Amount:       json.RawMessage(a.Amount.StringFixed(2)),
		CurrencyCode: a.CurrencyCode,
	})
}

type PaymentRequest struct {
	AmountDetails    AmountDetails `json:"amountDetails"`
	ReasonForPayment string        `json:"reasonForPayment"`
	ResultURL        string        `json:"resultUrl"`
	ReturnURL        string        `json:"returnUrl"`
}

type InitiateResult struct {
	ReferenceNumber string `json:"referenceNumber"`
	RedirectURL     string `json:"redirectUrl"`
}

type TransactionAmount struct {
	CurrencyCode           string          `json:"currencyCode"`
	TotalTransactionAmount decimal.Decimal `json:"totalTransactionAmount"`
}

// String renders the amount the way audit notes show it, e.g. "USD 50.00".
func (a TransactionAmount) String() string {
	return strings.TrimSpace(a.CurrencyCode + " " + a.TotalTransactionAmount.StringFixed(2))
}

// PaymentStatus is a decrypted check-payment response.
type PaymentStatus struct {
	ReferenceNumber              string            `json:"referenceNumber"`
	TransactionStatus            TransactionStatus `json:"transactionStatus"`
	TransactionStatusDescription string            `json:"transactionStatusDescription"`
	AmountDetails                TransactionAmount `json:"amountDetails"`
	ApplicationID                string            `json:"applicationId"`
	DateOfTransaction            string            `json:"dateOfTransaction"`
}

var transactionTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// TransactionTime parses DateOfTransaction, returning fallback when the
// processor sent something unparseable.
func (p *PaymentStatus) TransactionTime(fallback time.Time) time.Time {
	v := strings.TrimSpace(p.DateOfTransaction)
	for _, layout := range transactionTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

type envelope struct {
	Payload string `json:"payload,omitempty"`
	Message string `json:"message,omitempty"`
}
