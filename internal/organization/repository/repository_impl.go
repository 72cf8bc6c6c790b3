package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	organizationdomain "github.com/finvoice/recurpay/internal/organization/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() organizationdomain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := db.WithContext(ctx).
		Where("id = ?", orgID).
		First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

func (r *repo) AdvanceSubscriptionEndDate(ctx context.Context, db *gorm.DB, orgID snowflake.ID, now time.Time) (*organizationdomain.Organization, error) {
	org, err := r.FindByID(ctx, db, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, gorm.ErrRecordNotFound
	}

	base := now
	if org.SubscriptionEndAt != nil && org.SubscriptionEndAt.After(now) {
		base = *org.SubscriptionEndAt
	}
	advanced := organizationdomain.AddMonthClamped(base)

	err = db.WithContext(ctx).Exec(
		`UPDATE organizations SET subscription_end_at = ?, updated_at = ? WHERE id = ?`,
		advanced, now, orgID,
	).Error
	if err != nil {
		return nil, err
	}

	org.SubscriptionEndAt = &advanced
	org.UpdatedAt = now
	return org, nil
}
