package goIDP

import (
	"context"
	"time"

	"github.com/MrEthical07/goIDP/internal/ids"
)

// Audit event types emitted by the engine.
const (
	AuditPreEntry          = "pre_entry"
	AuditEntry             = "entry"
	AuditSignIn            = "sign_in"
	AuditSignOut           = "sign_out"
	AuditAccountUpdate     = "account_update"
	AuditMailChangeRequest = "mail_change_request"
	AuditMailChangeConfirm = "mail_change_confirm"
	AuditAccountDelete     = "account_delete"
	AuditDeleteStepFailed  = "account_delete_step_failed"
	AuditTokenIssue        = "token_issue"
	AuditTokenRefresh      = "token_refresh"
	AuditTokenRevoke       = "token_revoke"
	AuditTokenRevokeAll    = "token_revoke_all"
	AuditAppAuth           = "app_auth"
	AuditCodeIssue         = "code_issue"
	AuditCodeExchange      = "code_exchange"
	AuditVirtualIDCreate   = "virtual_id_create"
)

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e.audit == nil {
		return
	}
	event.ID = ids.New()
	event.Timestamp = time.Now().UTC()
	event.IP = clientIPFromContext(ctx)
	e.audit.Emit(ctx, event)
}

func (e *Engine) auditSuccess(ctx context.Context, eventType, systemID string) {
	e.emitAudit(ctx, AuditEvent{EventType: eventType, SystemID: systemID, Success: true})
}

func (e *Engine) auditFailure(ctx context.Context, eventType, systemID string, err error) {
	event := AuditEvent{EventType: eventType, SystemID: systemID}
	if err != nil {
		event.Error = err.Error()
	}
	e.emitAudit(ctx, event)
}
