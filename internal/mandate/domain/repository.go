package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists the two mandate entities. Methods take the caller's
// gorm handle so multi-row transitions share one transaction.
type Repository interface {
	// History log. Rows are inserted once and completed once; CompleteHistory
	// only touches rows still INITIATED and reports via applied whether this
	// call performed the completion, which doubles as duplicate-webhook
	// detection.
	InsertHistory(ctx context.Context, db *gorm.DB, entry *MandateHistoryEntry) error
	FindHistoryByMerchantTranID(ctx context.Context, db *gorm.DB, merchantTranID string) (*MandateHistoryEntry, error)
	CompleteHistory(ctx context.Context, db *gorm.DB, merchantTranID string, status HistoryStatus, responseCode, responseDescription string, payload []byte, completedAt time.Time) (applied bool, err error)
	ListHistoryByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID, limit int) ([]MandateHistoryEntry, error)

	// Active mandate state.
	InsertActive(ctx context.Context, db *gorm.DB, mandate *ActiveMandate) error
	FindActiveByOrgID(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*ActiveMandate, error)
	UpdateActive(ctx context.Context, db *gorm.DB, mandate *ActiveMandate) error

	// LockActiveByID claims one row with FOR UPDATE SKIP LOCKED; nil means the
	// row is gone or another invocation holds it.
	LockActiveByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ActiveMandate, error)

	// Eligibility snapshots for the scheduler, unlocked. Callers re-check the
	// predicate after claiming each row.
	ListDueExecutions(ctx context.Context, db *gorm.DB, now time.Time, backoff time.Duration, maxRetries, limit int) ([]ActiveMandate, error)
	ListDueNotifications(ctx context.Context, db *gorm.DB, now time.Time, window, backoff time.Duration, limit int) ([]ActiveMandate, error)
	ListStuckInitiated(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]ActiveMandate, error)
}
