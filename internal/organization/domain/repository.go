package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the tenant boundary the mandate engine depends on. Writes take
// the caller's transaction handle so the end-date advance commits atomically
// with the mandate state transition.
type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*Organization, error)
	// AdvanceSubscriptionEndDate moves the tenant's end-date forward one
	// clamped calendar month and returns the new value. A missing or past
	// end-date advances from now instead.
	AdvanceSubscriptionEndDate(ctx context.Context, db *gorm.DB, orgID snowflake.ID, now time.Time) (*Organization, error)
}
