package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BankCallback is the webhook the bank delivers when the payer approves a
// mandate (and on later mandate events). It may arrive cleartext or wrapped in
// an encrypted envelope; the lifecycle controller detects and decrypts the
// latter before parsing into this shape.
type BankCallback struct {
	SubMerchantID       string `json:"subMerchantId"`
	ResponseCode        string `json:"ResponseCode"`
	PayerMobile         string `json:"PayerMobile"`
	TxnCompletionDate   string `json:"TxnCompletionDate"`
	PayerName           string `json:"PayerName"`
	PayerAmount         string `json:"PayerAmount"`
	PayerVA             string `json:"PayerVA"`
	BankRRN             string `json:"BankRRN"`
	UMN                 string `json:"UMN"`
	TxnInitDate         string `json:"TxnInitDate"`
	TxnStatus           string `json:"TxnStatus"`
	MerchantTranID      string `json:"merchantTranId"`
	RespCodeDescription string `json:"RespCodeDescription"`
}

// Approved reports whether the callback carries a payer approval.
func (c BankCallback) Approved() bool {
	return strings.EqualFold(strings.TrimSpace(c.TxnStatus), "SUCCESS")
}

// AmountDecimal parses the bank's string amount; a blank or malformed value
// yields zero.
func (c BankCallback) AmountDecimal() decimal.Decimal {
	amount, err := decimal.NewFromString(strings.TrimSpace(c.PayerAmount))
	if err != nil {
		return decimal.Zero
	}
	return amount
}
