package goIDP

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIDP/internal"
	"github.com/MrEthical07/goIDP/internal/stores"
)

// PreEntry opens the first registration phase: it reserves nothing, proves
// nothing, and only records that someone claims the mail address. The returned
// confirmation id must be presented to [Engine.Entry] before the TTL elapses.
func (e *Engine) PreEntry(ctx context.Context, mailAddress string) (*PreEntryResult, error) {
	if !ValidMailAddress(mailAddress) {
		return nil, ErrInvalidMailAddress
	}

	if err := e.preEntryLimiter.Enforce(ctx, mailAddress, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, ErrPreEntryRateLimited) {
			e.metricInc(MetricPreEntryRateLimited)
			e.auditFailure(ctx, AuditPreEntry, "", err)
		}
		return nil, err
	}

	available, err := e.accounts.Available(ctx, AvailabilityQuery{MailAddress: mailAddress})
	if err != nil {
		return nil, fmt.Errorf("availability check: %w", err)
	}
	if !available {
		e.metricInc(MetricPreEntryDuplicateMail)
		e.auditFailure(ctx, AuditPreEntry, "", ErrMailAddressInUse)
		return nil, ErrMailAddressInUse
	}

	id, err := e.freshConfirmationID(ctx)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(e.config.PreEntry.TTL)
	record := &stores.PreEntryRecord{
		Kind:        stores.PreEntryNew,
		MailAddress: mailAddress,
		ExpiresAt:   expiresAt.Unix(),
	}
	if err := e.preEntries.Save(ctx, id, record, e.config.PreEntry.TTL); err != nil {
		return nil, storeErr(err)
	}

	e.metricInc(MetricPreEntrySuccess)
	e.auditSuccess(ctx, AuditPreEntry, "")

	return &PreEntryResult{ID: id, ExpiresAt: expiresAt}, nil
}

// Entry completes registration against a pre-entry confirmation id.
// Validation failures leave the cache entry intact so the caller can retry
// within the TTL; once validation passes, the entry is consumed atomically
// before the account commits, so a given confirmation id can complete at most
// one registration. If the commit itself fails, the claim is re-saved for the
// remainder of its TTL.
func (e *Engine) Entry(ctx context.Context, preEntryID string, profile EntryProfile) error {
	record, err := e.preEntries.Get(ctx, preEntryID)
	if err != nil {
		return storeErr(err)
	}
	// Mail-change entries are bound to an account and never complete a
	// registration.
	if record.Kind != stores.PreEntryNew {
		return ErrNotFound
	}

	if !ValidUserID(profile.UserID) {
		return ErrInvalidUserID
	}
	if profile.Password == "" {
		return ErrInvalidProfile
	}

	available, err := e.accounts.Available(ctx, AvailabilityQuery{UserID: profile.UserID})
	if err != nil {
		return fmt.Errorf("availability check: %w", err)
	}
	if !available {
		e.metricInc(MetricEntryFailure)
		return ErrUserIDInUse
	}

	var account AccountRecord
	if profile.Corporate() {
		account, err = e.corporateRecord(ctx, profile)
	} else {
		account, err = e.personalRecord(ctx, profile)
	}
	if err != nil {
		e.metricInc(MetricEntryFailure)
		return err
	}

	// Single-use gate: only the caller that wins the consume may commit.
	record, err = e.preEntries.Consume(ctx, preEntryID)
	if err != nil {
		return storeErr(err)
	}
	if record.Kind != stores.PreEntryNew {
		return ErrNotFound
	}
	account.MailAddress = record.MailAddress

	if err := e.accounts.CreateAccount(ctx, account); err != nil {
		e.restorePreEntry(ctx, preEntryID, record)
		e.metricInc(MetricEntryFailure)
		e.auditFailure(ctx, AuditEntry, account.ID, err)
		return fmt.Errorf("create account: %w", err)
	}

	e.metricInc(MetricEntrySuccess)
	e.auditSuccess(ctx, AuditEntry, account.ID)

	return nil
}

// UpdateMailAddress confirms a pending mail-address change opened through
// [Engine.Update]. Entries created for new registrations are rejected as
// not found. The cache entry is consumed atomically before the provider
// commit; a failed commit re-saves it for the remainder of its TTL.
func (e *Engine) UpdateMailAddress(ctx context.Context, cacheID string) error {
	record, err := e.preEntries.Get(ctx, cacheID)
	if err != nil {
		return storeErr(err)
	}
	if record.Kind != stores.PreEntryMailChange || record.SystemID == "" {
		return ErrNotFound
	}

	record, err = e.preEntries.Consume(ctx, cacheID)
	if err != nil {
		return storeErr(err)
	}
	if record.Kind != stores.PreEntryMailChange || record.SystemID == "" {
		return ErrNotFound
	}

	if err := e.accounts.UpdateAccount(ctx, record.SystemID, AccountUpdate{MailAddress: record.MailAddress}); err != nil {
		e.restorePreEntry(ctx, cacheID, record)
		e.auditFailure(ctx, AuditMailChangeConfirm, record.SystemID, err)
		return fmt.Errorf("update mail address: %w", err)
	}

	e.metricInc(MetricMailChangeConfirmed)
	e.auditSuccess(ctx, AuditMailChangeConfirm, record.SystemID)

	return nil
}

// restorePreEntry puts a consumed claim back after a failed provider commit so
// the caller can retry within the original TTL. Best effort: a claim whose
// TTL has already elapsed stays gone.
func (e *Engine) restorePreEntry(ctx context.Context, id string, record *stores.PreEntryRecord) {
	remaining := time.Until(time.Unix(record.ExpiresAt, 0))
	if remaining <= 0 {
		return
	}
	_ = e.preEntries.Save(ctx, id, record, remaining)
}

func (e *Engine) personalRecord(ctx context.Context, profile EntryProfile) (AccountRecord, error) {
	if profile.Name == "" {
		return AccountRecord{}, ErrInvalidProfile
	}

	systemID, err := e.freshSystemID(ctx)
	if err != nil {
		return AccountRecord{}, err
	}

	return AccountRecord{
		ID:          systemID,
		UserID:      profile.UserID,
		Name:        profile.Name,
		Password:    profile.Password,
		AccountType: AccountTypePersonal,
	}, nil
}

func (e *Engine) corporateRecord(ctx context.Context, profile EntryProfile) (AccountRecord, error) {
	if !CorpNumberPattern.MatchString(profile.CorpNumber) {
		return AccountRecord{}, ErrInvalidCorpNumber
	}
	if e.corpRegistry == nil {
		return AccountRecord{}, ErrEngineNotReady
	}

	available, err := e.accounts.Available(ctx, AvailabilityQuery{CorpNumber: profile.CorpNumber})
	if err != nil {
		return AccountRecord{}, fmt.Errorf("availability check: %w", err)
	}
	if !available {
		return AccountRecord{}, ErrCorpAlreadyRegistered
	}

	corp, err := e.corpRegistry.Profile(ctx, profile.CorpNumber)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("corporate registry: %w", err)
	}
	if corp == nil {
		return AccountRecord{}, ErrInvalidCorpNumber
	}

	// The corporate number doubles as the system identifier, keeping corporate
	// accounts addressable by their public registry number.
	return AccountRecord{
		ID:          corp.ID,
		UserID:      profile.UserID,
		Name:        corp.Name,
		Password:    profile.Password,
		AccountType: corp.AccountType,
	}, nil
}

func (e *Engine) freshConfirmationID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		id, err := internal.NewConfirmationID()
		if err != nil {
			return "", err
		}
		exists, err := e.preEntries.Exists(ctx, id)
		if err != nil {
			return "", storeErr(err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", errors.New("could not allocate confirmation id")
}

func (e *Engine) freshSystemID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		id, err := internal.NewSystemID()
		if err != nil {
			return "", err
		}
		existing, err := e.accounts.SGetAccount(ctx, id)
		if err != nil {
			return "", fmt.Errorf("system id check: %w", err)
		}
		if existing == nil {
			return id, nil
		}
	}
	return "", errors.New("could not allocate system id")
}
