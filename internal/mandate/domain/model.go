// Package domain contains the mandate engine's persistence models: the
// append-only history of bank interactions and the current standing-instruction
// state, at most one row per tenant.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// HistoryStatus is the outcome recorded for one bank interaction.
type HistoryStatus string

const (
	HistoryStatusInitiated HistoryStatus = "INITIATED"
	HistoryStatusActivated HistoryStatus = "ACTIVATED"
	HistoryStatusSuccess   HistoryStatus = "SUCCESS"
	HistoryStatusFailed    HistoryStatus = "FAILED"
)

// MandateStatus is the lifecycle state of the standing instruction.
type MandateStatus string

const (
	MandateStatusInitiated MandateStatus = "INITIATED"
	MandateStatusActivated MandateStatus = "ACTIVATED"
	// MandateStatusSuspended is only reachable under the "suspend" exhaustion
	// policy; an operator has to resume the mandate manually.
	MandateStatusSuspended MandateStatus = "SUSPENDED"
)

// MandateHistoryEntry is the append-only audit log of every bank interaction.
// A row is written when the interaction starts and completed exactly once when
// its outcome is known; it is never rewritten after completion.
type MandateHistoryEntry struct {
	ID                  snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID               snowflake.ID    `gorm:"not null;index" json:"org_id"`
	MerchantTranID      string          `gorm:"type:text;not null;uniqueIndex:ux_mandate_history_merchant_tran_id" json:"merchant_tran_id"`
	BankReferenceID     *string         `gorm:"type:text" json:"bank_reference_id,omitempty"`
	UMN                 *string         `gorm:"type:text;column:umn" json:"umn,omitempty"`
	Amount              decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status              HistoryStatus   `gorm:"type:text;not null" json:"status"`
	PayerAddress        string          `gorm:"type:text" json:"payer_address"`
	PayerName           string          `gorm:"type:text" json:"payer_name"`
	PayerMobile         string          `gorm:"type:text" json:"payer_mobile"`
	InitiatedAt         time.Time       `gorm:"not null" json:"initiated_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	ResponseCode        string          `gorm:"type:text" json:"response_code"`
	ResponseDescription string          `gorm:"type:text" json:"response_description"`
	CallbackPayload     datatypes.JSON  `gorm:"type:jsonb" json:"callback_payload,omitempty"`
	CreatedAt           time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (MandateHistoryEntry) TableName() string { return "mandate_history" }

// ActiveMandate is the current standing-instruction state for a tenant. The
// unique index on org_id enforces the at-most-one-row-per-tenant invariant at
// the database level.
type ActiveMandate struct {
	ID                        snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID                     snowflake.ID    `gorm:"not null;uniqueIndex:ux_active_mandates_org_id" json:"org_id"`
	UMN                       string          `gorm:"type:text;not null;column:umn" json:"umn"`
	Amount                    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status                    MandateStatus   `gorm:"type:text;not null" json:"status"`
	SequenceNumber            int             `gorm:"not null;default:1" json:"sequence_number"`
	PayerAddress              string          `gorm:"type:text" json:"payer_address"`
	PayerName                 string          `gorm:"type:text" json:"payer_name"`
	PayerMobile               string          `gorm:"type:text" json:"payer_mobile"`
	Notified                  bool            `gorm:"not null;default:false" json:"notified"`
	NotificationRetryCount    int             `gorm:"not null;default:0" json:"notification_retry_count"`
	LastNotificationAttemptAt *time.Time      `json:"last_notification_attempt_at,omitempty"`
	ExecutionRetryCount       int             `gorm:"not null;default:0" json:"execution_retry_count"`
	LastExecutionAttemptAt    *time.Time      `json:"last_execution_attempt_at,omitempty"`
	CreatedAt                 time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt                 time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ActiveMandate) TableName() string { return "active_mandates" }
