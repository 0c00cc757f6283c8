package goIDP

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIDP/idtoken"
	"github.com/MrEthical07/goIDP/internal"
	"github.com/MrEthical07/goIDP/internal/stores"
)

// TokenTypeBearer is the token_type value of every issued pair.
const TokenTypeBearer = "Bearer"

// ExpiryOverrides carries optional per-call lifetime overrides for
// [Engine.Refresh]. Zero fields fall back to the configured defaults.
type ExpiryOverrides struct {
	AccessExpiresMin  int
	RefreshExpiresMin int
	IDTokenExpiresMin int
}

// IssueToken mints a linked access/refresh pair for a subject.
//
// With AppID set, SubjectID must be a system identifier; the pair is then
// issued under the pairwise virtual identifier for that (account, application)
// pair, which is minted on first use. Without AppID, SubjectID must already be
// a virtual identifier with a known binding.
//
// When the openid scope is granted and the subject is bound to an application,
// a signed ID token is attached. The age claim is computed only for personal
// account records; every other case yields the unknown rate.
func (e *Engine) IssueToken(ctx context.Context, req IssueTokenRequest) (*TokenPair, error) {
	if req.AppID != "" {
		if !SystemIDPattern.MatchString(req.SubjectID) {
			return nil, ErrInvalidSystemID
		}
		if !AppIDPattern.MatchString(req.AppID) {
			return nil, ErrInvalidAppID
		}
		vid, err := e.GetOrCreateVirtualID(ctx, req.SubjectID, req.AppID)
		if err != nil {
			return nil, err
		}
		req.SubjectID = vid
		req.AppID = ""
		return e.IssueToken(ctx, req)
	}

	if !VirtualIDPattern.MatchString(req.SubjectID) {
		return nil, ErrInvalidVirtualID
	}
	binding, err := e.virtualIDs.Resolve(ctx, req.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("resolve subject: %w", err)
	}
	if binding == nil {
		return nil, ErrSubjectNotFound
	}

	pair, err := e.mintPair(ctx, binding, req)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricTokenIssued)
	e.auditSuccess(ctx, AuditTokenIssue, binding.SystemID)

	return pair, nil
}

// Refresh rotates a pair: the presented refresh token and its linked access
// token are revoked first, then a fresh pair is issued under the same subject
// and scopes. A failure after the revoke leaves no live pair; the caller
// re-authenticates.
func (e *Engine) Refresh(ctx context.Context, refreshToken string, overrides *ExpiryOverrides) (*TokenPair, error) {
	record, err := e.tokens.GetRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, stores.ErrEntryNotFound) {
			e.metricInc(MetricTokenRefreshFailure)
			return nil, ErrUnauthorized
		}
		return nil, storeErr(err)
	}

	binding, err := e.virtualIDs.Resolve(ctx, record.Subject)
	if err != nil {
		return nil, fmt.Errorf("resolve subject: %w", err)
	}
	if binding == nil {
		e.metricInc(MetricTokenRefreshFailure)
		return nil, ErrUnauthorized
	}

	// The refresh half must still be live at delete time; losing it means a
	// concurrent rotation already consumed this token, and minting here would
	// leave two live pairs from one refresh.
	removed, err := e.tokens.DeletePair(ctx, record.Linked, refreshToken, record.Subject)
	if err != nil {
		return nil, storeErr(err)
	}
	if !removed {
		e.metricInc(MetricTokenRefreshFailure)
		return nil, ErrUnauthorized
	}

	req := IssueTokenRequest{
		SubjectID: record.Subject,
		Scopes:    record.Scopes,
	}
	if overrides != nil {
		req.AccessExpiresMin = overrides.AccessExpiresMin
		req.RefreshExpiresMin = overrides.RefreshExpiresMin
		req.IDTokenExpiresMin = overrides.IDTokenExpiresMin
	}

	pair, err := e.mintPair(ctx, binding, req)
	if err != nil {
		e.metricInc(MetricTokenRefreshFailure)
		e.auditFailure(ctx, AuditTokenRefresh, binding.SystemID, err)
		return nil, err
	}

	e.metricInc(MetricTokenRefreshSuccess)
	e.auditSuccess(ctx, AuditTokenRefresh, binding.SystemID)

	return pair, nil
}

// Revoke invalidates an access token and its linked refresh token.
func (e *Engine) Revoke(ctx context.Context, accessToken string) error {
	record, err := e.tokens.GetAccess(ctx, accessToken)
	if err != nil {
		if errors.Is(err, stores.ErrEntryNotFound) {
			return ErrTokenNotFound
		}
		return storeErr(err)
	}

	if _, err := e.tokens.DeletePair(ctx, accessToken, record.Linked, record.Subject); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, AuditEvent{EventType: AuditTokenRevoke, VirtualID: record.Subject, Success: true})

	return nil
}

// RevokeAll invalidates every outstanding pair of a subject. Used by the
// account deletion cascade and exposed for administrative revocation.
func (e *Engine) RevokeAll(ctx context.Context, subjectID string) error {
	accessTokens, err := e.tokens.AccessTokensOf(ctx, subjectID)
	if err != nil {
		return storeErr(err)
	}

	var failed error
	for _, token := range accessTokens {
		record, err := e.tokens.GetAccess(ctx, token)
		if err != nil {
			if errors.Is(err, stores.ErrEntryNotFound) {
				// Expired entry still indexed; drop the index reference.
				_ = e.tokens.RemoveAccessIndex(ctx, subjectID, token)
				continue
			}
			failed = errors.Join(failed, err)
			continue
		}
		if _, err := e.tokens.DeletePair(ctx, token, record.Linked, subjectID); err != nil {
			failed = errors.Join(failed, err)
		}
	}

	if failed != nil {
		return storeErr(failed)
	}

	e.metricInc(MetricTokenRevokedAll)
	e.emitAudit(ctx, AuditEvent{EventType: AuditTokenRevokeAll, VirtualID: subjectID, Success: true})

	return nil
}

// Check verifies an access token and its scopes and returns the subject. All
// failure causes collapse into ErrUnauthorized.
func (e *Engine) Check(ctx context.Context, accessToken string, requiredScopes ...string) (string, error) {
	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricCheckLatency, time.Since(start))
		}
	}()

	if accessToken == "" {
		e.metricInc(MetricCheckFailure)
		return "", ErrUnauthorized
	}

	record, err := e.tokens.GetAccess(ctx, accessToken)
	if err != nil {
		if errors.Is(err, stores.ErrEntryNotFound) {
			e.metricInc(MetricCheckFailure)
			return "", ErrUnauthorized
		}
		return "", storeErr(err)
	}
	if !scopesContain(record.Scopes, requiredScopes) {
		e.metricInc(MetricCheckFailure)
		return "", ErrUnauthorized
	}

	e.metricInc(MetricCheckSuccess)

	return record.Subject, nil
}

// SignOut revokes the presented pair. Unlike [Engine.Revoke], an unknown
// token is unauthorized rather than not found, matching the other
// bearer-credential paths.
func (e *Engine) SignOut(ctx context.Context, accessToken string) error {
	err := e.Revoke(ctx, accessToken)
	if errors.Is(err, ErrTokenNotFound) {
		return ErrUnauthorized
	}
	if err != nil {
		return err
	}
	e.emitAudit(ctx, AuditEvent{EventType: AuditSignOut, Success: true})
	return nil
}

func (e *Engine) mintPair(ctx context.Context, binding *VirtualIDBinding, req IssueTokenRequest) (*TokenPair, error) {
	accessTTL := e.config.Token.AccessTTL
	if req.AccessExpiresMin > 0 {
		accessTTL = time.Duration(req.AccessExpiresMin) * time.Minute
	}
	refreshTTL := e.config.Token.RefreshTTL
	if req.RefreshExpiresMin > 0 {
		refreshTTL = time.Duration(req.RefreshExpiresMin) * time.Minute
	}

	access, err := e.freshOpaqueToken(ctx, e.tokens.AccessExists)
	if err != nil {
		return nil, err
	}
	refresh, err := e.freshOpaqueToken(ctx, e.tokens.RefreshExists)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	accessExpiresAt := now.Add(accessTTL)
	refreshExpiresAt := now.Add(refreshTTL)

	accessRecord := &stores.TokenRecord{
		Subject:   binding.VirtualID,
		AppID:     binding.AppID,
		Scopes:    req.Scopes,
		Linked:    refresh,
		ExpiresAt: accessExpiresAt.Unix(),
	}
	refreshRecord := &stores.TokenRecord{
		Subject:   binding.VirtualID,
		AppID:     binding.AppID,
		Scopes:    req.Scopes,
		Linked:    access,
		ExpiresAt: refreshExpiresAt.Unix(),
	}

	if err := e.tokens.SavePair(ctx, access, refresh, accessRecord, refreshRecord, accessTTL, refreshTTL); err != nil {
		return nil, storeErr(err)
	}

	pair := &TokenPair{
		TokenType:        TokenTypeBearer,
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}

	if containsScope(req.Scopes, ScopeOpenID) && binding.AppID != "" {
		idToken, idExpiresAt, err := e.mintIDToken(ctx, binding, req)
		if err != nil {
			return nil, err
		}
		pair.IDToken = idToken
		pair.IDTokenExpiresAt = idExpiresAt
	}

	return pair, nil
}

func (e *Engine) mintIDToken(ctx context.Context, binding *VirtualIDBinding, req IssueTokenRequest) (string, time.Time, error) {
	if e.idTokens == nil {
		return "", time.Time{}, ErrEngineNotReady
	}

	account, err := e.accounts.SGetAccount(ctx, binding.SystemID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return "", time.Time{}, ErrSubjectNotFound
	}

	subject := idtoken.Subject{
		VirtualID:   binding.VirtualID,
		Audience:    binding.AppID,
		MailAddress: account.MailAddress,
		UserID:      account.UserID,
		Name:        account.Name,
		AccountType: account.AccountType,
		Nonce:       req.Nonce,
		AgeRate:     e.ageRate(ctx, account),
	}
	if req.IDTokenExpiresMin > 0 {
		subject.TTL = time.Duration(req.IDTokenExpiresMin) * time.Minute
	}

	return e.idTokens.Mint(subject)
}

// ageRate computes the age claim. Only personal account records carry an age;
// aggregator absence or failure degrades to the unknown rate instead of
// failing issuance.
func (e *Engine) ageRate(ctx context.Context, account *AccountRecord) string {
	if account.AccountType == AccountTypeSupervisor || account.AccountType%2 != 0 {
		return AgeRateUnknown
	}
	if e.profiles == nil {
		return AgeRateUnknown
	}
	age, err := e.profiles.Age(ctx, account.ID)
	if err != nil {
		return AgeRateUnknown
	}
	return classifyAgeRate(e.config.AgeRates, age)
}

func (e *Engine) freshOpaqueToken(ctx context.Context, exists func(context.Context, string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		token, err := internal.NewOpaqueToken()
		if err != nil {
			return "", err
		}
		inUse, err := exists(ctx, token)
		if err != nil {
			return "", storeErr(err)
		}
		if !inUse {
			return token, nil
		}
	}
	return "", errors.New("could not allocate token")
}
