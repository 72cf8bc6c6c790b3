package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrInvalidCallback = errors.New("invalid_callback")
	ErrMandateExists   = errors.New("mandate_exists")
	ErrMandateNotFound = errors.New("mandate_not_found")
)

// CreateMandateRequest registers a standing instruction for a tenant.
type CreateMandateRequest struct {
	OrgID        snowflake.ID    `json:"org_id"`
	Amount       decimal.Decimal `json:"amount"`
	PayerAddress string          `json:"payer_address"`
	PayerName    string          `json:"payer_name"`
	PayerMobile  string          `json:"payer_mobile"`
}

type CreateMandateResponse struct {
	MerchantTranID  string `json:"merchant_tran_id"`
	BankReferenceID string `json:"bank_reference_id"`
}

// MandateOverview is the support-tooling read model: current state plus the
// most recent bank interactions.
type MandateOverview struct {
	Active  *ActiveMandate        `json:"active_mandate"`
	History []MandateHistoryEntry `json:"history"`
}

// BatchResult summarizes one scheduler pass for observability. Failed counts
// business rejections absorbed into retry counters; Errors counts rows that
// could not be processed at all (persistence faults).
type BatchResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Errors    int `json:"errors"`
}

// Service is the mandate lifecycle controller.
type Service interface {
	// CreateMandate registers a new standing instruction with the bank and
	// appends an INITIATED history entry. The payer approves asynchronously;
	// activation arrives via HandleBankCallback.
	CreateMandate(ctx context.Context, req CreateMandateRequest) (*CreateMandateResponse, error)

	// HandleBankCallback processes the payer-approval webhook. Idempotent on
	// duplicate delivery; an unknown merchantTranId returns
	// ErrMandateNotFound, which callers acknowledge without retry.
	HandleBankCallback(ctx context.Context, payload []byte) error

	// GetOverview returns a tenant's current mandate state and recent history.
	GetOverview(ctx context.Context, orgID snowflake.ID) (*MandateOverview, error)

	// RunDueNotifications sends advance debit reminders for every eligible
	// mandate. Safe to invoke repeatedly; eligible rows are claimed with a
	// row lock so overlapping passes skip each other's work.
	RunDueNotifications(ctx context.Context) (BatchResult, error)

	// RunDueExecutions performs the recurring debit for every eligible
	// mandate, with the same claim semantics as RunDueNotifications.
	RunDueExecutions(ctx context.Context) (BatchResult, error)

	// RecoverStuckActivations re-drives the first charge for mandates whose
	// callback arrived but whose synchronous first execution never completed.
	RecoverStuckActivations(ctx context.Context, olderThan time.Duration) (BatchResult, error)
}
