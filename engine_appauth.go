package goIDP

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIDP/internal"
	"github.com/MrEthical07/goIDP/internal/stores"
)

// Auth runs the first step of the PKCE authorization flow: it authenticates
// the relying application, checks the requested scopes against the owning
// developer's ceiling, and stores a short-lived grant. The returned grant id
// is presented to the consent surface.
//
// Every rejection cause (unknown client, secret mismatch, unregistered
// redirect URI, scope outside the ceiling) collapses into
// [ErrAuthorizationRefused].
func (e *Engine) Auth(ctx context.Context, req AuthRequest) (string, error) {
	if e.applications == nil {
		return "", ErrEngineNotReady
	}
	if req.ClientID == "" || req.RedirectURI == "" || len(req.Scopes) == 0 {
		return "", ErrAuthorizationRefused
	}
	if req.CodeChallenge == "" || !validCodeChallengeMethod(req.CodeChallengeMethod) {
		return "", ErrAuthorizationRefused
	}

	publicClient := req.ClientSecret == ""
	secret := req.ClientSecret
	if publicClient {
		secret = "public"
	}

	developer, err := e.applications.AuthApp(ctx, req.ClientID, secret, req.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("authenticate client: %w", err)
	}
	if developer == nil {
		e.metricInc(MetricAppAuthRefused)
		e.emitAudit(ctx, AuditEvent{EventType: AuditAppAuth, AppID: req.ClientID, Error: ErrAuthorizationRefused.Error()})
		return "", ErrAuthorizationRefused
	}

	if offender, ok := e.scopes.AllowedAll(req.Scopes, developer.AccountType, publicClient); !ok {
		e.metricInc(MetricAppAuthRefused)
		e.emitAudit(ctx, AuditEvent{
			EventType: AuditAppAuth,
			AppID:     req.ClientID,
			Error:     ErrAuthorizationRefused.Error(),
			Metadata:  map[string]string{"scope": offender},
		})
		return "", ErrAuthorizationRefused
	}

	authID, err := e.freshAuthID(ctx, e.appAuth.GrantExists)
	if err != nil {
		return "", err
	}

	grant := &stores.GrantRecord{
		AppID:               req.ClientID,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Scopes:              req.Scopes,
		ExpiresAt:           time.Now().Add(e.config.AppAuth.GrantTTL).Unix(),
	}
	if err := e.appAuth.SaveGrant(ctx, authID, grant, e.config.AppAuth.GrantTTL); err != nil {
		return "", storeErr(err)
	}

	e.metricInc(MetricAppAuthSuccess)
	e.emitAudit(ctx, AuditEvent{EventType: AuditAppAuth, AppID: req.ClientID, Success: true})

	return authID, nil
}

// GetAuthorizedApp returns the consent-screen view of a pending grant without
// consuming it.
func (e *Engine) GetAuthorizedApp(ctx context.Context, authID string) (*AuthorizedApp, error) {
	if e.applications == nil {
		return nil, ErrEngineNotReady
	}

	grant, err := e.appAuth.GetGrant(ctx, authID)
	if err != nil {
		return nil, storeErr(err)
	}

	app, err := e.applications.GetApp(ctx, grant.AppID)
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	if app == nil {
		return nil, ErrNotFound
	}

	return &AuthorizedApp{
		App:    *app,
		Scopes: grant.Scopes,
	}, nil
}

// CreateAuthorizationCode converts a consented grant into a one-time
// authorization code bound to the authorizing account. The grant is consumed.
func (e *Engine) CreateAuthorizationCode(ctx context.Context, authID, systemID string) (string, error) {
	if !SystemIDPattern.MatchString(systemID) {
		return "", ErrInvalidSystemID
	}

	grant, err := e.appAuth.ConsumeGrant(ctx, authID)
	if err != nil {
		return "", storeErr(err)
	}

	code, err := e.freshAuthID(ctx, e.appAuth.CodeExists)
	if err != nil {
		return "", err
	}

	record := &stores.CodeRecord{
		AppID:               grant.AppID,
		CodeChallenge:       grant.CodeChallenge,
		CodeChallengeMethod: grant.CodeChallengeMethod,
		Scopes:              grant.Scopes,
		SystemID:            systemID,
		ExpiresAt:           time.Now().Add(e.config.AppAuth.CodeTTL).Unix(),
	}
	if err := e.appAuth.SaveCode(ctx, code, record, e.config.AppAuth.CodeTTL); err != nil {
		return "", storeErr(err)
	}

	e.metricInc(MetricCodeIssued)
	e.emitAudit(ctx, AuditEvent{EventType: AuditCodeIssue, SystemID: systemID, AppID: grant.AppID, Success: true})

	return code, nil
}

// GetTokenIssueInformation exchanges an authorization code and its PKCE
// verifier for the data needed to mint tokens. The code is consumed on any
// lookup that finds it, verifier match or not, so a leaked code cannot be
// retried against.
func (e *Engine) GetTokenIssueInformation(ctx context.Context, code, codeVerifier string) (*TokenIssueInformation, error) {
	record, err := e.appAuth.ConsumeCode(ctx, code)
	if err != nil {
		e.metricInc(MetricCodeExchangeFailure)
		return nil, storeErr(err)
	}

	if !verifyCodeChallenge(record.CodeChallenge, record.CodeChallengeMethod, codeVerifier) {
		e.metricInc(MetricCodeExchangeFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: AuditCodeExchange,
			SystemID:  record.SystemID,
			AppID:     record.AppID,
			Error:     "code verifier mismatch",
		})
		return nil, ErrNotFound
	}

	e.metricInc(MetricCodeExchangeSuccess)
	e.emitAudit(ctx, AuditEvent{EventType: AuditCodeExchange, SystemID: record.SystemID, AppID: record.AppID, Success: true})

	return &TokenIssueInformation{
		AppID:    record.AppID,
		SystemID: record.SystemID,
		Scopes:   record.Scopes,
	}, nil
}

func (e *Engine) freshAuthID(ctx context.Context, exists func(context.Context, string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		id, err := internal.NewAuthID()
		if err != nil {
			return "", err
		}
		inUse, err := exists(ctx, id)
		if err != nil {
			return "", storeErr(err)
		}
		if !inUse {
			return id, nil
		}
	}
	return "", errors.New("could not allocate authorization id")
}
