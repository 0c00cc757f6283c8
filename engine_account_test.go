package goIDP

import (
	"context"
	"errors"
	"testing"
)

func TestSignInByHandleMailAndSystemID(t *testing.T) {
	engine, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	systemID := registerAccount(t, engine, "alice@example.com", "alice01", "pw-123456")

	ctx := context.Background()
	for _, identifier := range []string{"alice01", "alice@example.com", systemID} {
		got, err := engine.SignIn(ctx, identifier, "pw-123456")
		if err != nil {
			t.Fatalf("SignIn(%q) failed: %v", identifier, err)
		}
		if got != systemID {
			t.Fatalf("SignIn(%q): expected %s, got %s", identifier, systemID, got)
		}
	}
}

func TestSignInFailuresAreUniform(t *testing.T) {
	engine, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	registerAccount(t, engine, "alice@example.com", "alice01", "pw-123456")

	ctx := context.Background()
	cases := []struct{ identifier, password string }{
		{"alice01", "wrong-password"},
		{"nobody", "pw-123456"},
		{"", "pw-123456"},
		{"alice01", ""},
	}
	for _, c := range cases {
		_, err := engine.SignIn(ctx, c.identifier, c.password)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("SignIn(%q, %q): expected ErrUnauthorized, got %v", c.identifier, c.password, err)
		}
	}
}

func TestCreateForce(t *testing.T) {
	engine, providers, done := newTestEngine(t, engineTestConfig())
	defer done()

	ctx := context.Background()
	systemID, err := engine.CreateForce(ctx, AccountRecord{
		UserID:      "admin01",
		Name:        "Admin",
		MailAddress: "admin@example.com",
		Password:    "pw-123456",
		AccountType: AccountTypeSupervisor,
	})
	if err != nil {
		t.Fatalf("CreateForce failed: %v", err)
	}
	if !SystemIDPattern.MatchString(systemID) {
		t.Fatalf("expected minted system id, got %q", systemID)
	}

	created, err := providers.accounts.SGetAccount(ctx, systemID)
	if err != nil || created == nil {
		t.Fatalf("expected created record, got %v err=%v", created, err)
	}
	if created.AccountType != AccountTypeSupervisor {
		t.Fatalf("expected supervisor type, got %d", created.AccountType)
	}
}

func TestCreateForceRejectsDuplicates(t *testing.T) {
	engine, providers, done := newTestEngine(t, engineTestConfig())
	defer done()

	providers.seedAccount(AccountRecord{
		ID:          "1234567890123",
		UserID:      "alice01",
		MailAddress: "alice@example.com",
		AccountType: AccountTypePersonal,
	})

	ctx := context.Background()

	_, err := engine.CreateForce(ctx, AccountRecord{
		UserID:      "bob02",
		MailAddress: "alice@example.com",
		Password:    "pw-123456",
	})
	if !errors.Is(err, ErrMailAddressInUse) {
		t.Fatalf("expected ErrMailAddressInUse, got %v", err)
	}

	_, err = engine.CreateForce(ctx, AccountRecord{
		UserID:      "alice01",
		MailAddress: "new@example.com",
		Password:    "pw-123456",
	})
	if !errors.Is(err, ErrUserIDInUse) {
		t.Fatalf("expected ErrUserIDInUse, got %v", err)
	}

	_, err = engine.CreateForce(ctx, AccountRecord{
		ID:          "not-a-system-id",
		UserID:      "carol03",
		MailAddress: "carol@example.com",
		Password:    "pw-123456",
	})
	if !errors.Is(err, ErrInvalidSystemID) {
		t.Fatalf("expected ErrInvalidSystemID, got %v", err)
	}
}

func TestGetByUserID(t *testing.T) {
	engine, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	registerAccount(t, engine, "alice@example.com", "alice01", "pw-123456")

	ctx := context.Background()
	profile, err := engine.GetByUserID(ctx, "alice01")
	if err != nil {
		t.Fatalf("GetByUserID failed: %v", err)
	}
	if profile.UserID != "alice01" || profile.Name != "Test User" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	if _, err := engine.GetByUserID(ctx, "nobody99"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := engine.GetByUserID(ctx, "x"); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
}

func TestGetByAccessToken(t *testing.T) {
	engine, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	systemID := registerAccount(t, engine, "alice@example.com", "alice01", "pw-123456")
	pair, _ := issueFirstPartyPair(t, engine, systemID, ScopeUserRead)

	info, err := engine.GetByAccessToken(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("GetByAccessToken failed: %v", err)
	}
	if info.ID != systemID || info.MailAddress != "alice@example.com" {
		t.Fatalf("unexpected account information: %+v", info)
	}
}

func TestGetByAccessTokenRequiresScope(t *testing.T) {
	engine, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	systemID := registerAccount(t, engine, "alice@example.com", "alice01", "pw-123456")
	pair, _ := issueFirstPartyPair(t, engine, systemID, ScopeUserWrite)

	_, err := engine.GetByAccessToken(context.Background(), pair.AccessToken)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without user.read, got %v", err)
	}

	_, err = engine.GetByAccessToken(context.Background(), "unknown-token")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown token, got %v", err)
	}
}

func TestUpdateProfileFields(t *testing.T) {
	engine, providers, done := newTestEngine(t, engineTestConfig())
	defer done()

	systemID := registerAccount(t, engine, "alice@example.com", "alice01", "pw-123456")
	pair, _ := issueFirstPartyPair(t, engine, systemID, ScopeUserWrite)

	ctx := context.Background()
	result, err := engine.Update(ctx, pair.AccessToken, AccountUpdate{
		UserID: "alice_renamed",
		Name:   "Alice R",
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if result.MailConfirm != nil {
		t.Fatal("expected no mail confirmation for a profile-only patch")
	}

	updated, _ := providers.accounts.SGetAccount(ctx, systemID)
	if updated.UserID != "alice_renamed" || updated.Name != "Alice R" {
		t.Fatalf("patch not applied: %+v", updated)
	}
}

func TestUpdateMailChangeIsDeferred(t *testing.T) {
	engine, providers, done := newTestEngine(t, engineTestConfig())
	defer done()

	systemID := registerAccount(t, engine, "alice@example.com", "alice01", "pw-123456")
	pair, _ := issueFirstPartyPair(t, engine, systemID, ScopeUserWrite)

	ctx := context.Background()
	result, err := engine.Update(ctx, pair.AccessToken, AccountUpdate{
		MailAddress: "new@example.com",
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if result.MailConfirm == nil {
		t.Fatal("expected a mail confirmation handle")
	}

	// Not applied until the confirmation round-trips.
	record, _ := providers.accounts.SGetAccount(ctx, systemID)
	if record.MailAddress != "alice@example.com" {
		t.Fatalf("mail applied before confirmation: %q", record.MailAddress)
	}

	if err := engine.UpdateMailAddress(ctx, result.MailConfirm.ID); err != nil {
		t.Fatalf("UpdateMailAddress failed: %v", err)
	}
	record, _ = providers.accounts.SGetAccount(ctx, systemID)
	if record.MailAddress != "new@example.com" {
		t.Fatalf("mail not applied after confirmation: %q", record.MailAddress)
	}

	// Single use.
	if err := engine.UpdateMailAddress(ctx, result.MailConfirm.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on replay, got %v", err)
	}
}

func TestUpdateRejectedForCorporateAccounts(t *testing.T) {
	engine, providers, done := newTestEngine(t, engineTestConfig())
	defer done()

	providers.seedAccount(AccountRecord{
		ID:          "1234567890123",
		UserID:      "example_corp",
		MailAddress: "legal@example.com",
		Password:    "pw-123456",
		AccountType: AccountTypeCorporate,
	})
	pair, _ := issueFirstPartyPair(t, engine, "1234567890123", ScopeUserWrite)

	_, err := engine.Update(context.Background(), pair.AccessToken, AccountUpdate{Name: "New Name"})
	if !errors.Is(err, ErrUpdateNotAllowed) {
		t.Fatalf("expected ErrUpdateNotAllowed, got %v", err)
	}
}

func TestUpdateRejectedMixedPatchOpensNoMailChange(t *testing.T) {
	engine, providers, done := newTestEngine(t, engineTestConfig())
	defer done()

	providers.seedAccount(AccountRecord{
		ID:          "1234567890123",
		UserID:      "example_corp",
		MailAddress: "legal@example.com",
		Password:    "pw-123456",
		AccountType: AccountTypeCorporate,
	})
	pair, _ := issueFirstPartyPair(t, engine, "1234567890123", ScopeUserWrite)

	// A patch mixing a mail address with restricted fields is rejected
	// outright; no mail-change confirmation may be opened on the way out.
	result, err := engine.Update(context.Background(), pair.AccessToken, AccountUpdate{
		Name:        "New Name",
		MailAddress: "new@example.com",
	})
	if !errors.Is(err, ErrUpdateNotAllowed) {
		t.Fatalf("expected ErrUpdateNotAllowed, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected no result for a rejected patch, got %+v", result)
	}
	if n := engine.MetricsSnapshot().Counters[MetricMailChangeRequested]; n != 0 {
		t.Fatalf("expected no mail-change request recorded, got %d", n)
	}
}

func TestUpdateDuplicateHandleRejected(t *testing.T) {
	engine, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	registerAccount(t, engine, "bob@example.com", "bob02", "pw-123456")
	systemID := registerAccount(t, engine, "alice@example.com", "alice01", "pw-123456")
	pair, _ := issueFirstPartyPair(t, engine, systemID, ScopeUserWrite)

	_, err := engine.Update(context.Background(), pair.AccessToken, AccountUpdate{UserID: "bob02"})
	if !errors.Is(err, ErrUserIDInUse) {
		t.Fatalf("expected ErrUserIDInUse, got %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	engine, providers, done := newTestEngine(t, engineTestConfig())
	defer done()

	systemID := registerAccount(t, engine, "alice@example.com", "alice01", "pw-123456")

	// The account owns an application with a third-party consumer.
	appID := "app-0123456789ab4abc9000000000000000"
	providers.applications.register(ApplicationInformation{
		AppID:        appID,
		DeveloperID:  systemID,
		Name:         "Owned App",
		RedirectURIs: []string{"https://app.example.com/cb"},
	}, "app-secret", DeveloperInfo{SystemID: systemID, AccountType: AccountTypePersonal})

	ctx := context.Background()

	// First-party pair plus a pair bound to the owned application.
	pair, _ := issueFirstPartyPair(t, engine, systemID, ScopeUserRead, ScopeUserWrite)
	appPair, err := engine.IssueToken(ctx, IssueTokenRequest{
		SubjectID: systemID,
		AppID:     appID,
		Scopes:    []string{ScopeUserRead},
	})
	if err != nil {
		t.Fatalf("IssueToken for app failed: %v", err)
	}

	if err := engine.Delete(ctx, pair.AccessToken); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if record, _ := providers.accounts.SGetAccount(ctx, systemID); record != nil {
		t.Fatal("expected account record removed")
	}
	if vids, _ := providers.virtualIDs.VirtualIDsOfAccount(ctx, systemID); len(vids) != 0 {
		t.Fatalf("expected no remaining virtual ids, got %v", vids)
	}
	if app, _ := providers.applications.GetApp(ctx, appID); app != nil {
		t.Fatal("expected owned application removed")
	}
	if _, err := engine.Check(ctx, appPair.AccessToken, ScopeUserRead); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected app-bound token revoked, got %v", err)
	}
}

func TestDeletePartialFailureIsReported(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64

	sink := NewChannelSink(64)
	engine, providers, done := newTestEngine(t, cfg, func(b *Builder) {
		b.WithAuditSink(sink)
	})
	defer done()

	systemID := registerAccount(t, engine, "alice@example.com", "alice01", "pw-123456")
	pair, _ := issueFirstPartyPair(t, engine, systemID, ScopeUserWrite)

	providers.virtualIDs.deleteAccountErr = errors.New("directory down")

	err := engine.Delete(context.Background(), pair.AccessToken)
	if !errors.Is(err, ErrPartialDeletion) {
		t.Fatalf("expected ErrPartialDeletion, got %v", err)
	}

	// The account record itself was still attempted and removed.
	if record, _ := providers.accounts.SGetAccount(context.Background(), systemID); record != nil {
		t.Fatal("expected account record removed despite partial failure")
	}

	// Close drains the dispatcher, so every emitted event is in the sink.
	engine.Close()
	var sawStepFailure bool
drain:
	for {
		select {
		case event := <-sink.Events():
			if event.EventType == AuditDeleteStepFailed {
				sawStepFailure = true
				if event.Metadata["operation"] != "delete_virtual_ids" {
					t.Fatalf("unexpected failing operation: %v", event.Metadata)
				}
			}
		default:
			break drain
		}
	}
	if !sawStepFailure {
		t.Fatal("expected an audited deletion step failure")
	}
}
