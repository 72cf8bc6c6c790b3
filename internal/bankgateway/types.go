package bankgateway

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Bank service identifiers, sent in the outer request envelope and used as the
// endpoint path segment.
const (
	ServiceCreateMandate       = "CreateMandate"
	ServiceExecuteMandate      = "ExecuteMandate"
	ServiceMandateNotification = "MandateNotification"
)

// requestEnvelope is the outer body POSTed to every bank endpoint.
type requestEnvelope struct {
	RequestID     string `json:"requestId"`
	Service       string `json:"service"`
	EncryptedKey  string `json:"encryptedKey"`
	IV            string `json:"iv"`
	EncryptedData string `json:"encryptedData"`
}

// responseEnvelope is the outer response body. When the bank rejects a request
// before envelope processing, EncryptedData is empty and the plaintext fields
// carry the rejection.
type responseEnvelope struct {
	EncryptedData string `json:"encryptedData"`
	EncryptedKey  string `json:"encryptedKey"`
	IV            string `json:"iv"`
	Success       string `json:"success,omitempty"`
	Response      string `json:"response,omitempty"`
	Message       string `json:"message,omitempty"`
}

// decryptedResponse is the inner, envelope-protected bank response. The bank
// emits booleans as the strings "true"/"false"; they are parsed here and never
// leak past this package.
type decryptedResponse struct {
	Success        string `json:"success"`
	Response       string `json:"response"`
	Message        string `json:"message"`
	MerchantTranID string `json:"merchantTranId"`
	BankRRN        string `json:"BankRRN"`
	UMN            string `json:"UMN"`
	SeqNo          string `json:"seqNo"`
}

func (r decryptedResponse) ok() bool {
	return strings.EqualFold(strings.TrimSpace(r.Success), "true")
}

// CreateMandateRequest registers a new standing instruction.
type CreateMandateRequest struct {
	MerchantTranID string
	Amount         decimal.Decimal
	PayerVA        string
	PayerName      string
	PayerMobile    string
	ValidityStart  string // DDMMYYYY per bank format
	ValidityEnd    string
	Note           string
}

// ExecuteMandateRequest debits an approved mandate for one recurring cycle.
type ExecuteMandateRequest struct {
	MerchantTranID string
	UMN            string
	SequenceNumber int
	Amount         decimal.Decimal
	PayerVA        string
}

// NotifyRequest sends the payer an advance reminder ahead of a debit.
type NotifyRequest struct {
	MerchantTranID string
	UMN            string
	SequenceNumber int
	Amount         decimal.Decimal
	PayerVA        string
	ExecutionDate  string // DDMMYYYY, the day the debit will run
}

// Result is the parsed outcome of a successful bank call.
type Result struct {
	MerchantTranID  string
	BankReferenceID string
	UMN             string
	ResponseCode    string
	Description     string
	Raw             json.RawMessage
}
