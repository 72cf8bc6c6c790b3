package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/finvoice/recurpay/internal/bankgateway"
	"github.com/finvoice/recurpay/internal/clock"
	"github.com/finvoice/recurpay/internal/config"
	"github.com/finvoice/recurpay/internal/envelope"
	mandatedomain "github.com/finvoice/recurpay/internal/mandate/domain"
	organizationdomain "github.com/finvoice/recurpay/internal/organization/domain"
	"github.com/finvoice/recurpay/pkg/db"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	batchSize      = 50
	bankDateLayout = "02012006" // DDMMYYYY
	// Standing instructions are registered with a long validity window; the
	// bank requires explicit start/end dates.
	mandateValidityYears = 10
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Gateway bankgateway.Gateway
	Env     *envelope.Envelope
	Repo    mandatedomain.Repository
	OrgRepo organizationdomain.Repository
	Policy  *config.MandatePolicyHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	gateway bankgateway.Gateway
	env     *envelope.Envelope
	repo    mandatedomain.Repository
	orgRepo organizationdomain.Repository
	policy  *config.MandatePolicyHolder
}

func New(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("mandate.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		gateway: p.Gateway,
		env:     p.Env,
		repo:    p.Repo,
		orgRepo: p.OrgRepo,
		policy:  p.Policy,
	}
}

func (s *Service) CreateMandate(ctx context.Context, req mandatedomain.CreateMandateRequest) (*mandatedomain.CreateMandateResponse, error) {
	if req.OrgID == 0 || req.Amount.IsZero() || req.Amount.IsNegative() {
		return nil, mandatedomain.ErrInvalidRequest
	}
	req.PayerAddress = strings.TrimSpace(req.PayerAddress)
	if req.PayerAddress == "" {
		return nil, mandatedomain.ErrInvalidRequest
	}

	org, err := s.orgRepo.FindByID(ctx, s.db, req.OrgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, mandatedomain.ErrInvalidRequest
	}

	existing, err := s.repo.FindActiveByOrgID(ctx, s.db, req.OrgID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, mandatedomain.ErrMandateExists
	}

	now := s.clock.Now()
	merchantTranID := s.newMerchantTranID()

	result, err := s.gateway.CreateMandate(ctx, bankgateway.CreateMandateRequest{
		MerchantTranID: merchantTranID,
		Amount:         req.Amount,
		PayerVA:        req.PayerAddress,
		PayerName:      req.PayerName,
		PayerMobile:    req.PayerMobile,
		ValidityStart:  now.Format(bankDateLayout),
		ValidityEnd:    now.AddDate(mandateValidityYears, 0, 0).Format(bankDateLayout),
		Note:           "Recurring subscription mandate",
	})
	if err != nil {
		s.appendFailedHistory(ctx, req.OrgID, merchantTranID, req, now, err)
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := &mandatedomain.MandateHistoryEntry{
			ID:              s.genID.Generate(),
			OrgID:           req.OrgID,
			MerchantTranID:  merchantTranID,
			BankReferenceID: optional(result.BankReferenceID),
			UMN:             optional(result.UMN),
			Amount:          req.Amount,
			Status:          mandatedomain.HistoryStatusInitiated,
			PayerAddress:    req.PayerAddress,
			PayerName:       req.PayerName,
			PayerMobile:     req.PayerMobile,
			InitiatedAt:     now,
			ResponseCode:    result.ResponseCode,
			CreatedAt:       now,
		}
		if err := s.repo.InsertHistory(ctx, tx, entry); err != nil {
			return err
		}
		// Tentative advance; the payer has not approved yet, but the first
		// charge covers this period once activation lands.
		_, err := s.orgRepo.AdvanceSubscriptionEndDate(ctx, tx, req.OrgID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("mandate registration initiated",
		zap.Int64("org_id", int64(req.OrgID)),
		zap.String("merchant_tran_id", merchantTranID),
		zap.String("bank_reference_id", result.BankReferenceID),
	)
	return &mandatedomain.CreateMandateResponse{
		MerchantTranID:  merchantTranID,
		BankReferenceID: result.BankReferenceID,
	}, nil
}

// HandleBankCallback processes payer-approval webhooks. The same payload
// delivered twice must neither duplicate the ActiveMandate row nor re-run the
// first charge; the conditional history completion inside the transaction is
// the idempotency gate.
func (s *Service) HandleBankCallback(ctx context.Context, payload []byte) error {
	cb, raw, err := s.parseCallback(payload)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cb.MerchantTranID) == "" {
		return mandatedomain.ErrInvalidCallback
	}

	entry, err := s.repo.FindHistoryByMerchantTranID(ctx, s.db, cb.MerchantTranID)
	if err != nil {
		return err
	}
	if entry == nil {
		return mandatedomain.ErrMandateNotFound
	}

	now := s.clock.Now()

	if !cb.Approved() {
		_, err := s.repo.CompleteHistory(ctx, s.db, cb.MerchantTranID,
			mandatedomain.HistoryStatusFailed, cb.ResponseCode, cb.RespCodeDescription, raw, now)
		if err != nil {
			return err
		}
		s.log.Info("mandate registration declined by payer",
			zap.Int64("org_id", int64(entry.OrgID)),
			zap.String("merchant_tran_id", cb.MerchantTranID),
			zap.String("response_code", cb.ResponseCode),
		)
		return nil
	}

	var mandate *mandatedomain.ActiveMandate
	var firstCharge bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := s.repo.CompleteHistory(ctx, tx, cb.MerchantTranID,
			mandatedomain.HistoryStatusActivated, cb.ResponseCode, cb.RespCodeDescription, raw, now)
		if err != nil {
			return err
		}

		existing, err := s.repo.FindActiveByOrgID(ctx, tx, entry.OrgID)
		if err != nil {
			return err
		}

		switch {
		case existing == nil:
			// First activation, or a crash between history completion and the
			// state insert; either way the row is created fresh at sequence 1.
			mandate = &mandatedomain.ActiveMandate{
				ID:             s.genID.Generate(),
				OrgID:          entry.OrgID,
				UMN:            cb.UMN,
				Amount:         entry.Amount,
				Status:         mandatedomain.MandateStatusInitiated,
				SequenceNumber: 1,
				PayerAddress:   cb.PayerVA,
				PayerName:      cb.PayerName,
				PayerMobile:    cb.PayerMobile,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := s.repo.InsertActive(ctx, tx, mandate); err != nil {
				if db.IsDuplicateKeyErr(err) {
					mandate = nil
					return nil
				}
				return err
			}
			firstCharge = true
		case applied:
			// Re-registration over an existing mandate.
			existing.UMN = cb.UMN
			existing.Status = mandatedomain.MandateStatusActivated
			existing.SequenceNumber++
			existing.PayerAddress = cb.PayerVA
			existing.PayerName = cb.PayerName
			existing.PayerMobile = cb.PayerMobile
			existing.UpdatedAt = now
			if err := s.repo.UpdateActive(ctx, tx, existing); err != nil {
				return err
			}
			mandate = existing
		default:
			// Duplicate delivery: history already completed and the row exists.
			mandate = nil
		}
		return nil
	})
	if err != nil {
		return err
	}

	if mandate != nil && firstCharge {
		// Synchronous first charge. A failure here leaves the row INITIATED;
		// the recovery job re-drives it.
		s.executeCharge(ctx, s.db, mandate, now)
	}
	return nil
}

func (s *Service) GetOverview(ctx context.Context, orgID snowflake.ID) (*mandatedomain.MandateOverview, error) {
	if orgID == 0 {
		return nil, mandatedomain.ErrInvalidRequest
	}
	active, err := s.repo.FindActiveByOrgID(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ListHistoryByOrg(ctx, s.db, orgID, 20)
	if err != nil {
		return nil, err
	}
	if active == nil && len(history) == 0 {
		return nil, mandatedomain.ErrMandateNotFound
	}
	return &mandatedomain.MandateOverview{Active: active, History: history}, nil
}

func (s *Service) RunDueExecutions(ctx context.Context) (mandatedomain.BatchResult, error) {
	policy := s.policy.Current()
	now := s.clock.Now()

	due, err := s.repo.ListDueExecutions(ctx, s.db, now, policy.ExecutionBackoff, policy.MaxExecutionRetries, batchSize)
	if err != nil {
		return mandatedomain.BatchResult{}, err
	}

	var result mandatedomain.BatchResult
	for i := range due {
		tally(&result, s.runLockedExecution(ctx, due[i].ID, policy))
	}
	return result, nil
}

func (s *Service) RunDueNotifications(ctx context.Context) (mandatedomain.BatchResult, error) {
	policy := s.policy.Current()
	now := s.clock.Now()

	due, err := s.repo.ListDueNotifications(ctx, s.db, now, policy.NotificationWindow, policy.NotificationBackoff, batchSize)
	if err != nil {
		return mandatedomain.BatchResult{}, err
	}

	var result mandatedomain.BatchResult
	for i := range due {
		tally(&result, s.runLockedNotification(ctx, due[i].ID, policy))
	}
	return result, nil
}

func (s *Service) RecoverStuckActivations(ctx context.Context, olderThan time.Duration) (mandatedomain.BatchResult, error) {
	now := s.clock.Now()
	stuck, err := s.repo.ListStuckInitiated(ctx, s.db, now.Add(-olderThan), batchSize)
	if err != nil {
		return mandatedomain.BatchResult{}, err
	}

	var result mandatedomain.BatchResult
	for i := range stuck {
		tally(&result, s.runLockedRecovery(ctx, stuck[i].ID, olderThan))
	}
	return result, nil
}

// outcome classifies one processed row.
type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSucceeded
	outcomeFailed
	outcomeError
)

func tally(res *mandatedomain.BatchResult, o outcome) {
	if o == outcomeSkipped {
		return
	}
	res.Processed++
	switch o {
	case outcomeSucceeded:
		res.Succeeded++
	case outcomeFailed:
		res.Failed++
	case outcomeError:
		res.Errors++
	}
}

// runLockedExecution claims one mandate row, re-checks eligibility under the
// lock and performs the debit inside the same transaction. An overlapping
// scheduler pass skips the locked row instead of double-debiting.
func (s *Service) runLockedExecution(ctx context.Context, id snowflake.ID, policy config.MandatePolicy) outcome {
	result := outcomeSkipped
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mandate, err := s.repo.LockActiveByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if mandate == nil {
			return nil
		}
		now := s.clock.Now()
		org, err := s.orgRepo.FindByID(ctx, tx, mandate.OrgID)
		if err != nil {
			return err
		}
		if org == nil || !s.executionEligible(mandate, org.SubscriptionEndAt, now, policy) {
			return nil
		}
		res, err := s.executeChargeTx(ctx, tx, mandate, now, policy)
		result = res
		return err
	})
	if err != nil {
		s.log.Error("mandate execution pass failed",
			zap.Int64("mandate_id", int64(id)),
			zap.Error(err),
		)
		return outcomeError
	}
	return result
}

func (s *Service) runLockedNotification(ctx context.Context, id snowflake.ID, policy config.MandatePolicy) outcome {
	result := outcomeSkipped
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mandate, err := s.repo.LockActiveByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if mandate == nil {
			return nil
		}
		now := s.clock.Now()
		org, err := s.orgRepo.FindByID(ctx, tx, mandate.OrgID)
		if err != nil {
			return err
		}
		if org == nil || !s.notificationEligible(mandate, org.SubscriptionEndAt, now, policy) {
			return nil
		}
		res, err := s.notifyTx(ctx, tx, mandate, org, now, policy)
		result = res
		return err
	})
	if err != nil {
		s.log.Error("mandate notification pass failed",
			zap.Int64("mandate_id", int64(id)),
			zap.Error(err),
		)
		return outcomeError
	}
	return result
}

func (s *Service) runLockedRecovery(ctx context.Context, id snowflake.ID, olderThan time.Duration) outcome {
	result := outcomeSkipped
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mandate, err := s.repo.LockActiveByID(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if mandate == nil ||
			mandate.Status != mandatedomain.MandateStatusInitiated ||
			mandate.UpdatedAt.After(now.Add(-olderThan)) {
			return nil
		}
		policy := s.policy.Current()
		res, err := s.executeChargeTx(ctx, tx, mandate, now, policy)
		result = res
		return err
	})
	if err != nil {
		s.log.Error("mandate recovery pass failed",
			zap.Int64("mandate_id", int64(id)),
			zap.Error(err),
		)
		return outcomeError
	}
	return result
}

// executeCharge wraps executeChargeTx in its own transaction; the synchronous
// first charge after a callback uses it. A rolled-back attempt leaves the row
// INITIATED for the recovery job.
func (s *Service) executeCharge(ctx context.Context, conn *gorm.DB, mandate *mandatedomain.ActiveMandate, now time.Time) {
	policy := s.policy.Current()
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.executeChargeTx(ctx, tx, mandate, now, policy)
		return err
	})
	if err != nil {
		s.log.Error("first charge transaction failed",
			zap.Int64("org_id", int64(mandate.OrgID)),
			zap.Error(err),
		)
	}
}

// executeChargeTx performs one debit attempt and applies the retry policy.
// For an INITIATED row the stored sequence number is the pending first charge;
// once ACTIVATED it records the last completed charge and the next debit runs
// at stored+1. The success path commits the sequence advance, the history
// append and the tenant end-date advance in the caller's transaction; a
// returned error rolls all of it back.
func (s *Service) executeChargeTx(ctx context.Context, tx *gorm.DB, mandate *mandatedomain.ActiveMandate, now time.Time, policy config.MandatePolicy) (outcome, error) {
	merchantTranID := s.newMerchantTranID()

	isFirst := mandate.Status == mandatedomain.MandateStatusInitiated
	seqToCharge := mandate.SequenceNumber
	if !isFirst {
		seqToCharge = mandate.SequenceNumber + 1
	}

	result, execErr := s.gateway.ExecuteMandate(ctx, bankgateway.ExecuteMandateRequest{
		MerchantTranID: merchantTranID,
		UMN:            mandate.UMN,
		SequenceNumber: seqToCharge,
		Amount:         mandate.Amount,
		PayerVA:        mandate.PayerAddress,
	})

	if execErr != nil {
		if isKeyMaterialFault(execErr) {
			// Key-material fault: no request reached the bank and retrying
			// cannot change that. The row is left untouched for the operator.
			return outcomeError, fmt.Errorf("execute mandate: %w", execErr)
		}
		code, desc := bankErrorDetails(execErr)
		mandate.LastExecutionAttemptAt = &now
		if mandate.ExecutionRetryCount < policy.MaxExecutionRetries {
			mandate.ExecutionRetryCount++
		} else {
			// Retry budget exhausted for this sequence number.
			switch {
			case isFirst || policy.ExhaustionPolicy == config.ExhaustionPolicySuspend:
				// A first charge has no later cycle to roll into; exhausting
				// it suspends regardless of policy so the recovery job stops
				// re-driving the same attempt.
				mandate.Status = mandatedomain.MandateStatusSuspended
				mandate.ExecutionRetryCount = 0
				s.log.Warn("mandate suspended after exhausting execution retries",
					zap.Int64("org_id", int64(mandate.OrgID)),
					zap.Int("sequence_number", seqToCharge),
				)
			default:
				// Give up on the stuck attempt number and move the counter
				// forward so future cycles are not permanently blocked. The
				// missed charge is not clawed back.
				mandate.SequenceNumber = seqToCharge
				mandate.ExecutionRetryCount = 0
				s.log.Warn("mandate execution rolled over after exhausting retries",
					zap.Int64("org_id", int64(mandate.OrgID)),
					zap.Int("sequence_number", seqToCharge),
				)
			}
		}
		mandate.UpdatedAt = now
		if err := s.repo.UpdateActive(ctx, tx, mandate); err != nil {
			return outcomeError, fmt.Errorf("record execution failure: %w", err)
		}
		// Best-effort: the counter bump matters more than the audit row.
		if err := s.appendExecutionHistory(ctx, tx, mandate, merchantTranID, mandatedomain.HistoryStatusFailed, code, desc, now, nil); err != nil {
			s.log.Error("failed to append execution history",
				zap.String("merchant_tran_id", merchantTranID),
				zap.Error(err),
			)
		}
		return outcomeFailed, nil
	}

	mandate.Status = mandatedomain.MandateStatusActivated
	mandate.SequenceNumber = seqToCharge
	mandate.LastExecutionAttemptAt = &now
	mandate.ExecutionRetryCount = 0
	mandate.Notified = false
	mandate.NotificationRetryCount = 0
	mandate.UpdatedAt = now

	// The money moved; sequence advance, history append and end-date advance
	// commit together or not at all.
	if err := s.repo.UpdateActive(ctx, tx, mandate); err != nil {
		return outcomeError, fmt.Errorf("persist execution success: %w", err)
	}
	status := mandatedomain.HistoryStatusSuccess
	if isFirst {
		status = mandatedomain.HistoryStatusActivated
	}
	if err := s.appendExecutionHistory(ctx, tx, mandate, merchantTranID, status, result.ResponseCode, result.Description, now, result); err != nil {
		return outcomeError, fmt.Errorf("append execution history: %w", err)
	}
	if _, err := s.orgRepo.AdvanceSubscriptionEndDate(ctx, tx, mandate.OrgID, now); err != nil {
		return outcomeError, fmt.Errorf("advance subscription end date: %w", err)
	}

	s.log.Info("mandate debit succeeded",
		zap.Int64("org_id", int64(mandate.OrgID)),
		zap.String("merchant_tran_id", merchantTranID),
		zap.Int("next_sequence_number", mandate.SequenceNumber),
	)
	return outcomeSucceeded, nil
}

func (s *Service) notifyTx(ctx context.Context, tx *gorm.DB, mandate *mandatedomain.ActiveMandate, org *organizationdomain.Organization, now time.Time, policy config.MandatePolicy) (outcome, error) {
	merchantTranID := s.newMerchantTranID()
	executionDate := now
	if org.SubscriptionEndAt != nil {
		executionDate = *org.SubscriptionEndAt
	}

	_, notifyErr := s.gateway.SendNotification(ctx, bankgateway.NotifyRequest{
		MerchantTranID: merchantTranID,
		UMN:            mandate.UMN,
		SequenceNumber: mandate.SequenceNumber,
		Amount:         mandate.Amount,
		PayerVA:        mandate.PayerAddress,
		ExecutionDate:  executionDate.Format(bankDateLayout),
	})

	if notifyErr != nil && isKeyMaterialFault(notifyErr) {
		// Key-material fault, not a delivery failure; the retry counter stays
		// untouched.
		return outcomeError, fmt.Errorf("send notification: %w", notifyErr)
	}

	mandate.LastNotificationAttemptAt = &now
	mandate.UpdatedAt = now

	if notifyErr != nil {
		if mandate.NotificationRetryCount < policy.MaxNotificationRetries {
			mandate.NotificationRetryCount++
		} else {
			mandate.NotificationRetryCount = 0
		}
		if err := s.repo.UpdateActive(ctx, tx, mandate); err != nil {
			return outcomeError, fmt.Errorf("record notification failure: %w", err)
		}
		s.log.Warn("mandate notification failed",
			zap.Int64("org_id", int64(mandate.OrgID)),
			zap.Int("retry_count", mandate.NotificationRetryCount),
			zap.Error(notifyErr),
		)
		return outcomeFailed, nil
	}

	mandate.Notified = true
	mandate.NotificationRetryCount = 0
	if err := s.repo.UpdateActive(ctx, tx, mandate); err != nil {
		return outcomeError, fmt.Errorf("persist notification success: %w", err)
	}
	return outcomeSucceeded, nil
}

// isKeyMaterialFault reports whether err is an envelope fault. Those are
// configuration problems: no retry schedule can clear them, so they surface as
// batch errors instead of consuming the mandate's retry budget.
func isKeyMaterialFault(err error) bool {
	return errors.Is(err, envelope.ErrEncryption) || errors.Is(err, envelope.ErrDecryption)
}

func (s *Service) executionEligible(mandate *mandatedomain.ActiveMandate, endAt *time.Time, now time.Time, policy config.MandatePolicy) bool {
	if mandate.Status != mandatedomain.MandateStatusActivated || !mandate.Notified {
		return false
	}
	if endAt == nil || endAt.Before(now) {
		return false
	}
	if mandate.ExecutionRetryCount == 0 {
		return true
	}
	return mandate.ExecutionRetryCount <= policy.MaxExecutionRetries &&
		mandate.LastExecutionAttemptAt != nil &&
		!mandate.LastExecutionAttemptAt.After(now.Add(-policy.ExecutionBackoff))
}

// notificationEligible deliberately has no sequence-number condition: a first
// charge leaves the row at sequence 1 with notified=false, and execution
// requires notified, so gating on sequence here would strand every freshly
// activated mandate before its second debit. The window and backoff bounds
// alone pace the reminder traffic.
func (s *Service) notificationEligible(mandate *mandatedomain.ActiveMandate, endAt *time.Time, now time.Time, policy config.MandatePolicy) bool {
	if mandate.Status != mandatedomain.MandateStatusActivated || mandate.Notified {
		return false
	}
	if endAt == nil || !endAt.After(now) || endAt.After(now.Add(policy.NotificationWindow)) {
		return false
	}
	return mandate.LastNotificationAttemptAt == nil ||
		!mandate.LastNotificationAttemptAt.After(now.Add(-policy.NotificationBackoff))
}

// parseCallback detects the enveloped webhook variant and decrypts it before
// parsing. Returns the parsed callback and the cleartext payload for the
// audit log.
func (s *Service) parseCallback(payload []byte) (*mandatedomain.BankCallback, []byte, error) {
	var probe struct {
		EncryptedData string `json:"encryptedData"`
		EncryptedKey  string `json:"encryptedKey"`
		IV            string `json:"iv"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", mandatedomain.ErrInvalidCallback, err)
	}

	cleartext := payload
	if probe.EncryptedData != "" {
		decrypted, err := s.env.Decrypt(probe.EncryptedData, probe.EncryptedKey, probe.IV)
		if err != nil {
			return nil, nil, err
		}
		cleartext = decrypted
	}

	var cb mandatedomain.BankCallback
	if err := json.Unmarshal(cleartext, &cb); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", mandatedomain.ErrInvalidCallback, err)
	}
	return &cb, cleartext, nil
}

func (s *Service) appendExecutionHistory(
	ctx context.Context,
	tx *gorm.DB,
	mandate *mandatedomain.ActiveMandate,
	merchantTranID string,
	status mandatedomain.HistoryStatus,
	code, description string,
	now time.Time,
	result *bankgateway.Result,
) error {
	entry := &mandatedomain.MandateHistoryEntry{
		ID:                  s.genID.Generate(),
		OrgID:               mandate.OrgID,
		MerchantTranID:      merchantTranID,
		UMN:                 optional(mandate.UMN),
		Amount:              mandate.Amount,
		Status:              status,
		PayerAddress:        mandate.PayerAddress,
		PayerName:           mandate.PayerName,
		PayerMobile:         mandate.PayerMobile,
		InitiatedAt:         now,
		CompletedAt:         &now,
		ResponseCode:        code,
		ResponseDescription: description,
		CreatedAt:           now,
	}
	if result != nil {
		entry.BankReferenceID = optional(result.BankReferenceID)
	}
	return s.repo.InsertHistory(ctx, tx, entry)
}

// appendFailedHistory records a registration attempt the bank rejected
// outright. Best-effort outside any transaction.
func (s *Service) appendFailedHistory(ctx context.Context, orgID snowflake.ID, merchantTranID string, req mandatedomain.CreateMandateRequest, now time.Time, cause error) {
	code, desc := bankErrorDetails(cause)
	entry := &mandatedomain.MandateHistoryEntry{
		ID:                  s.genID.Generate(),
		OrgID:               orgID,
		MerchantTranID:      merchantTranID,
		Amount:              req.Amount,
		Status:              mandatedomain.HistoryStatusFailed,
		PayerAddress:        req.PayerAddress,
		PayerName:           req.PayerName,
		PayerMobile:         req.PayerMobile,
		InitiatedAt:         now,
		CompletedAt:         &now,
		ResponseCode:        code,
		ResponseDescription: desc,
		CreatedAt:           now,
	}
	if err := s.repo.InsertHistory(ctx, s.db, entry); err != nil {
		s.log.Error("failed to append registration failure history",
			zap.String("merchant_tran_id", merchantTranID),
			zap.Error(err),
		)
	}
}

func (s *Service) newMerchantTranID() string {
	return "RP" + ulid.Make().String()
}

func bankErrorDetails(err error) (code, description string) {
	var bizErr *bankgateway.BusinessError
	if errors.As(err, &bizErr) {
		return bizErr.Code, bizErr.Description
	}
	return "", err.Error()
}

func optional(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}
