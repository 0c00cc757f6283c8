package goIDP

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/goIDP/internal/stores"
)

// SignIn verifies a credential against the account store. The identifier may
// be a system identifier, a handle, or a mail address. An unknown identifier
// and a wrong password are indistinguishable.
func (e *Engine) SignIn(ctx context.Context, identifier, password string) (string, error) {
	if identifier == "" || password == "" {
		e.metricInc(MetricSignInFailure)
		return "", ErrUnauthorized
	}

	systemID, err := e.accounts.SignIn(ctx, identifier, password)
	if err != nil {
		return "", fmt.Errorf("sign in: %w", err)
	}
	if systemID == "" {
		e.metricInc(MetricSignInFailure)
		e.auditFailure(ctx, AuditSignIn, "", ErrUnauthorized)
		return "", ErrUnauthorized
	}

	e.metricInc(MetricSignInSuccess)
	e.auditSuccess(ctx, AuditSignIn, systemID)

	return systemID, nil
}

// CreateForce commits an account record directly, bypassing the pre-entry
// confirmation loop. Intended for administrative and migration tooling. An
// empty ID mints a fresh system identifier.
func (e *Engine) CreateForce(ctx context.Context, record AccountRecord) (string, error) {
	if !ValidMailAddress(record.MailAddress) {
		return "", ErrInvalidMailAddress
	}
	if !ValidUserID(record.UserID) {
		return "", ErrInvalidUserID
	}
	if record.ID != "" && !SystemIDPattern.MatchString(record.ID) {
		return "", ErrInvalidSystemID
	}

	available, err := e.accounts.Available(ctx, AvailabilityQuery{MailAddress: record.MailAddress})
	if err != nil {
		return "", fmt.Errorf("availability check: %w", err)
	}
	if !available {
		return "", ErrMailAddressInUse
	}
	available, err = e.accounts.Available(ctx, AvailabilityQuery{UserID: record.UserID})
	if err != nil {
		return "", fmt.Errorf("availability check: %w", err)
	}
	if !available {
		return "", ErrUserIDInUse
	}

	if record.ID == "" {
		record.ID, err = e.freshSystemID(ctx)
		if err != nil {
			return "", err
		}
	}

	if err := e.accounts.CreateAccount(ctx, record); err != nil {
		return "", fmt.Errorf("create account: %w", err)
	}

	e.metricInc(MetricEntrySuccess)
	e.auditSuccess(ctx, AuditEntry, record.ID)

	return record.ID, nil
}

// GetByUserID returns the public projection for a handle.
func (e *Engine) GetByUserID(ctx context.Context, userID string) (*PublicProfile, error) {
	if !ValidUserID(userID) {
		return nil, ErrInvalidUserID
	}
	profile, err := e.accounts.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if profile == nil {
		return nil, ErrNotFound
	}
	return profile, nil
}

// GetByAccessToken returns the caller's own account record. The token must
// carry the user.read scope.
func (e *Engine) GetByAccessToken(ctx context.Context, accessToken string) (*AccountInformation, error) {
	account, _, err := e.accountFromToken(ctx, accessToken, ScopeUserRead)
	if err != nil {
		return nil, err
	}
	return &AccountInformation{
		ID:          account.ID,
		UserID:      account.UserID,
		Name:        account.Name,
		MailAddress: account.MailAddress,
		AccountType: account.AccountType,
	}, nil
}

// Update applies a partial profile patch on behalf of the token holder. A
// mail address in the patch is never applied directly; it opens a confirmation
// entry whose id is returned in the result, pending [Engine.UpdateMailAddress].
// Handle, name, and password changes are self-service and only permitted for
// personal account records.
func (e *Engine) Update(ctx context.Context, accessToken string, patch AccountUpdate) (*UpdateResult, error) {
	account, _, err := e.accountFromToken(ctx, accessToken, ScopeUserWrite)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{}

	// Reject restricted patches before any side effect; a mixed patch must not
	// open a mail-change confirmation it then throws away.
	selfService := patch.UserID != "" || patch.Name != "" || patch.Password != ""
	if selfService && (account.AccountType == AccountTypeSupervisor || account.AccountType%2 != 0) {
		return nil, ErrUpdateNotAllowed
	}

	if patch.MailAddress != "" {
		confirm, err := e.openMailChange(ctx, account.ID, patch.MailAddress)
		if err != nil {
			return nil, err
		}
		result.MailConfirm = confirm
		patch.MailAddress = ""
	}

	if !selfService {
		return result, nil
	}

	if patch.UserID != "" {
		if !ValidUserID(patch.UserID) {
			return nil, ErrInvalidUserID
		}
		available, err := e.accounts.Available(ctx, AvailabilityQuery{UserID: patch.UserID})
		if err != nil {
			return nil, fmt.Errorf("availability check: %w", err)
		}
		if !available {
			return nil, ErrUserIDInUse
		}
	}

	if err := e.accounts.UpdateAccount(ctx, account.ID, patch); err != nil {
		e.auditFailure(ctx, AuditAccountUpdate, account.ID, err)
		return nil, fmt.Errorf("update account: %w", err)
	}

	e.metricInc(MetricAccountUpdated)
	e.auditSuccess(ctx, AuditAccountUpdate, account.ID)

	return result, nil
}

// Delete removes the token holder's account and everything reachable from it:
// tokens of every linked virtual identity, the virtual identities themselves,
// owned applications with their virtual identities and tokens, and finally the
// account record. Sub-steps run concurrently and independently; each failure
// is audited with the failing resource, and the call returns
// [ErrPartialDeletion] after every step has been attempted.
func (e *Engine) Delete(ctx context.Context, accessToken string) error {
	account, _, err := e.accountFromToken(ctx, accessToken, ScopeUserWrite)
	if err != nil {
		return err
	}
	systemID := account.ID

	var (
		mu       sync.Mutex
		failures int
	)
	fail := func(resource, operation string, err error) {
		mu.Lock()
		failures++
		mu.Unlock()
		e.emitAudit(ctx, AuditEvent{
			EventType: AuditDeleteStepFailed,
			SystemID:  systemID,
			Error:     err.Error(),
			Metadata: map[string]string{
				"resource":  resource,
				"operation": operation,
			},
		})
	}

	accountVIDs, err := e.virtualIDs.VirtualIDsOfAccount(ctx, systemID)
	if err != nil {
		fail(systemID, "list_virtual_ids", err)
	}

	var ownedApps []ApplicationInformation
	if e.applications != nil {
		ownedApps, err = e.applications.GetApps(ctx, systemID)
		if err != nil {
			fail(systemID, "list_apps", err)
		}
	}

	var wg sync.WaitGroup

	for _, vid := range accountVIDs {
		wg.Add(1)
		go func(vid string) {
			defer wg.Done()
			if err := e.RevokeAll(ctx, vid); err != nil {
				fail(vid, "revoke_tokens", err)
			}
		}(vid)
	}

	for _, app := range ownedApps {
		wg.Add(1)
		go func(app ApplicationInformation) {
			defer wg.Done()
			appVIDs, err := e.virtualIDs.VirtualIDsOfApp(ctx, app.AppID)
			if err != nil {
				fail(app.AppID, "list_app_virtual_ids", err)
			}
			for _, vid := range appVIDs {
				if err := e.RevokeAll(ctx, vid); err != nil {
					fail(vid, "revoke_tokens", err)
				}
			}
			if err := e.virtualIDs.DeleteApp(ctx, app.AppID); err != nil {
				fail(app.AppID, "delete_app_virtual_ids", err)
			}
			if _, err := e.applications.DeleteApp(ctx, app.AppID); err != nil {
				fail(app.AppID, "delete_app", err)
			}
		}(app)
	}

	wg.Wait()

	if err := e.virtualIDs.DeleteAccount(ctx, systemID); err != nil {
		fail(systemID, "delete_virtual_ids", err)
	}

	deleted, err := e.accounts.DeleteAccount(ctx, systemID)
	if err != nil {
		fail(systemID, "delete_account", err)
	} else if !deleted {
		fail(systemID, "delete_account", errors.New("account record not found"))
	}

	if failures > 0 {
		e.metricInc(MetricAccountDeletionPartial)
		return ErrPartialDeletion
	}

	e.metricInc(MetricAccountDeleted)
	e.auditSuccess(ctx, AuditAccountDelete, systemID)

	return nil
}

// accountFromToken resolves a bearer token to its account record, enforcing
// the required scope. Every failure collapses into ErrUnauthorized.
func (e *Engine) accountFromToken(ctx context.Context, accessToken string, requiredScopes ...string) (*AccountRecord, *VirtualIDBinding, error) {
	if accessToken == "" {
		return nil, nil, ErrUnauthorized
	}

	record, err := e.tokens.GetAccess(ctx, accessToken)
	if err != nil {
		if errors.Is(err, stores.ErrEntryNotFound) {
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, storeErr(err)
	}
	if !scopesContain(record.Scopes, requiredScopes) {
		return nil, nil, ErrUnauthorized
	}

	binding, err := e.virtualIDs.Resolve(ctx, record.Subject)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve subject: %w", err)
	}
	if binding == nil {
		return nil, nil, ErrUnauthorized
	}

	account, err := e.accounts.SGetAccount(ctx, binding.SystemID)
	if err != nil {
		return nil, nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, nil, ErrUnauthorized
	}

	return account, binding, nil
}

func (e *Engine) openMailChange(ctx context.Context, systemID, mailAddress string) (*PreEntryResult, error) {
	if !ValidMailAddress(mailAddress) {
		return nil, ErrInvalidMailAddress
	}

	available, err := e.accounts.Available(ctx, AvailabilityQuery{MailAddress: mailAddress})
	if err != nil {
		return nil, fmt.Errorf("availability check: %w", err)
	}
	if !available {
		return nil, ErrMailAddressInUse
	}

	id, err := e.freshConfirmationID(ctx)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(e.config.PreEntry.TTL)
	record := &stores.PreEntryRecord{
		Kind:        stores.PreEntryMailChange,
		MailAddress: mailAddress,
		SystemID:    systemID,
		ExpiresAt:   expiresAt.Unix(),
	}
	if err := e.preEntries.Save(ctx, id, record, e.config.PreEntry.TTL); err != nil {
		return nil, storeErr(err)
	}

	e.metricInc(MetricMailChangeRequested)
	e.auditSuccess(ctx, AuditMailChangeRequest, systemID)

	return &PreEntryResult{ID: id, ExpiresAt: expiresAt}, nil
}
