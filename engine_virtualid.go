package goIDP

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIDP/internal"
)

// GetOrCreateVirtualID returns the pairwise virtual identifier for an
// (account, application) pair, minting and recording a fresh one on first
// use. An empty appID yields an unbound identifier for first-party bearer
// subjects. Idempotent per pair.
func (e *Engine) GetOrCreateVirtualID(ctx context.Context, systemID, appID string) (string, error) {
	if !SystemIDPattern.MatchString(systemID) {
		return "", ErrInvalidSystemID
	}
	if appID != "" && !AppIDPattern.MatchString(appID) {
		return "", ErrInvalidAppID
	}

	existing, err := e.virtualIDs.GetVirtualID(ctx, systemID, appID)
	if err != nil {
		return "", fmt.Errorf("get virtual id: %w", err)
	}
	if existing != "" {
		return existing, nil
	}

	vid, err := e.freshVirtualID(ctx)
	if err != nil {
		return "", err
	}

	binding := VirtualIDBinding{
		VirtualID: vid,
		SystemID:  systemID,
		AppID:     appID,
	}
	if err := e.virtualIDs.CreateVirtualID(ctx, binding); err != nil {
		return "", fmt.Errorf("create virtual id: %w", err)
	}

	e.metricInc(MetricVirtualIDCreated)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditVirtualIDCreate,
		SystemID:  systemID,
		VirtualID: vid,
		AppID:     appID,
		Success:   true,
	})

	return vid, nil
}

// ResolveVirtualID returns the binding behind a virtual identifier.
func (e *Engine) ResolveVirtualID(ctx context.Context, virtualID string) (*VirtualIDBinding, error) {
	if !VirtualIDPattern.MatchString(virtualID) {
		return nil, ErrInvalidVirtualID
	}
	binding, err := e.virtualIDs.Resolve(ctx, virtualID)
	if err != nil {
		return nil, fmt.Errorf("resolve virtual id: %w", err)
	}
	if binding == nil {
		return nil, ErrSubjectNotFound
	}
	return binding, nil
}

// VirtualIDsOfAccount enumerates every virtual identifier owned by an account.
func (e *Engine) VirtualIDsOfAccount(ctx context.Context, systemID string) ([]string, error) {
	if !SystemIDPattern.MatchString(systemID) {
		return nil, ErrInvalidSystemID
	}
	vids, err := e.virtualIDs.VirtualIDsOfAccount(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("list virtual ids: %w", err)
	}
	return vids, nil
}

// VirtualIDsOfApp enumerates every virtual identifier scoped to an
// application.
func (e *Engine) VirtualIDsOfApp(ctx context.Context, appID string) ([]string, error) {
	if !AppIDPattern.MatchString(appID) {
		return nil, ErrInvalidAppID
	}
	vids, err := e.virtualIDs.VirtualIDsOfApp(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("list virtual ids: %w", err)
	}
	return vids, nil
}

func (e *Engine) freshVirtualID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		vid := internal.NewVirtualID()
		existing, err := e.virtualIDs.Resolve(ctx, vid)
		if err != nil {
			return "", fmt.Errorf("virtual id check: %w", err)
		}
		if existing == nil {
			return vid, nil
		}
	}
	return "", errors.New("could not allocate virtual id")
}
