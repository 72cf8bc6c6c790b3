package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	mandatedomain "github.com/finvoice/recurpay/internal/mandate/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() mandatedomain.Repository {
	return &repo{}
}

func (r *repo) InsertHistory(ctx context.Context, db *gorm.DB, entry *mandatedomain.MandateHistoryEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) FindHistoryByMerchantTranID(ctx context.Context, db *gorm.DB, merchantTranID string) (*mandatedomain.MandateHistoryEntry, error) {
	var entry mandatedomain.MandateHistoryEntry
	err := db.WithContext(ctx).
		Where("merchant_tran_id = ?", merchantTranID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repo) CompleteHistory(
	ctx context.Context,
	db *gorm.DB,
	merchantTranID string,
	status mandatedomain.HistoryStatus,
	responseCode, responseDescription string,
	payload []byte,
	completedAt time.Time,
) (bool, error) {
	// Conditional on the row still being INITIATED: a duplicate webhook loses
	// the race and reports applied=false.
	result := db.WithContext(ctx).Exec(
		`UPDATE mandate_history
		 SET status = ?, response_code = ?, response_description = ?,
		     callback_payload = ?, completed_at = ?
		 WHERE merchant_tran_id = ? AND status = ?`,
		status, responseCode, responseDescription,
		payload, completedAt,
		merchantTranID, mandatedomain.HistoryStatusInitiated,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListHistoryByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID, limit int) ([]mandatedomain.MandateHistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []mandatedomain.MandateHistoryEntry
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *repo) InsertActive(ctx context.Context, db *gorm.DB, mandate *mandatedomain.ActiveMandate) error {
	return db.WithContext(ctx).Create(mandate).Error
}

func (r *repo) FindActiveByOrgID(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*mandatedomain.ActiveMandate, error) {
	var mandate mandatedomain.ActiveMandate
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		First(&mandate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mandate, nil
}

func (r *repo) UpdateActive(ctx context.Context, db *gorm.DB, mandate *mandatedomain.ActiveMandate) error {
	return db.WithContext(ctx).Exec(
		`UPDATE active_mandates
		 SET umn = ?, amount = ?, status = ?, sequence_number = ?,
		     payer_address = ?, payer_name = ?, payer_mobile = ?,
		     notified = ?, notification_retry_count = ?, last_notification_attempt_at = ?,
		     execution_retry_count = ?, last_execution_attempt_at = ?, updated_at = ?
		 WHERE id = ?`,
		mandate.UMN, mandate.Amount, mandate.Status, mandate.SequenceNumber,
		mandate.PayerAddress, mandate.PayerName, mandate.PayerMobile,
		mandate.Notified, mandate.NotificationRetryCount, mandate.LastNotificationAttemptAt,
		mandate.ExecutionRetryCount, mandate.LastExecutionAttemptAt, mandate.UpdatedAt,
		mandate.ID,
	).Error
}

func (r *repo) LockActiveByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*mandatedomain.ActiveMandate, error) {
	var mandates []mandatedomain.ActiveMandate
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM active_mandates
		 WHERE id = ?
		 FOR UPDATE SKIP LOCKED`,
		id,
	).Scan(&mandates).Error
	if err != nil {
		return nil, err
	}
	if len(mandates) == 0 {
		return nil, nil
	}
	return &mandates[0], nil
}

func (r *repo) ListDueExecutions(ctx context.Context, db *gorm.DB, now time.Time, backoff time.Duration, maxRetries, limit int) ([]mandatedomain.ActiveMandate, error) {
	var mandates []mandatedomain.ActiveMandate
	err := db.WithContext(ctx).Raw(
		`SELECT am.* FROM active_mandates am
		 JOIN organizations o ON o.id = am.org_id
		 WHERE am.status = ?
		   AND am.notified = ?
		   AND o.subscription_end_at >= ?
		   AND (am.execution_retry_count = 0
		        OR (am.execution_retry_count <= ? AND am.last_execution_attempt_at <= ?))
		 ORDER BY am.id
		 LIMIT ?`,
		mandatedomain.MandateStatusActivated,
		true,
		now,
		maxRetries,
		now.Add(-backoff),
		limit,
	).Scan(&mandates).Error
	return mandates, err
}

func (r *repo) ListDueNotifications(ctx context.Context, db *gorm.DB, now time.Time, window, backoff time.Duration, limit int) ([]mandatedomain.ActiveMandate, error) {
	var mandates []mandatedomain.ActiveMandate
	err := db.WithContext(ctx).Raw(
		`SELECT am.* FROM active_mandates am
		 JOIN organizations o ON o.id = am.org_id
		 WHERE am.status = ?
		   AND am.notified = ?
		   AND o.subscription_end_at > ?
		   AND o.subscription_end_at <= ?
		   AND (am.last_notification_attempt_at IS NULL OR am.last_notification_attempt_at <= ?)
		 ORDER BY am.id
		 LIMIT ?`,
		mandatedomain.MandateStatusActivated,
		false,
		now,
		now.Add(window),
		now.Add(-backoff),
		limit,
	).Scan(&mandates).Error
	return mandates, err
}

func (r *repo) ListStuckInitiated(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]mandatedomain.ActiveMandate, error) {
	var mandates []mandatedomain.ActiveMandate
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM active_mandates
		 WHERE status = ?
		   AND updated_at <= ?
		 ORDER BY id
		 LIMIT ?`,
		mandatedomain.MandateStatusInitiated,
		cutoff,
		limit,
	).Scan(&mandates).Error
	return mandates, err
}
