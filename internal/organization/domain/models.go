// Package domain contains persistence models for the tenant boundary.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant. The wider application owns the full tenant
// record; the mandate engine reads and advances only the subscription end-date.
type Organization struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name              string            `gorm:"type:text;not null" json:"name"`
	Slug              string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	SubscriptionEndAt *time.Time        `gorm:"column:subscription_end_at" json:"subscription_end_at"`
	Metadata          datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }
