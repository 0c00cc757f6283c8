package scope

import (
	"errors"
	"testing"
)

func testScopes() []Information {
	return []Information{
		{Name: "user.read", MinLevel: 4, AllowPublic: true},
		{Name: "user.write", MinLevel: 4, AllowPublic: false},
		{Name: "openid", MinLevel: 4, AllowPublic: true},
		{Name: "corp.admin", MinLevel: 3, AllowPublic: false},
	}
}

func TestNewRegistry(t *testing.T) {
	registry, err := NewRegistry(testScopes())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if registry.Len() != 4 {
		t.Fatalf("expected 4 scopes, got %d", registry.Len())
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	scopes := append(testScopes(), Information{Name: "user.read", MinLevel: 0})
	if _, err := NewRegistry(scopes); !errors.Is(err, ErrDuplicateScope) {
		t.Fatalf("expected ErrDuplicateScope, got %v", err)
	}
}

func TestNewRegistryRejectsEmptyName(t *testing.T) {
	if _, err := NewRegistry([]Information{{Name: ""}}); err == nil {
		t.Fatal("expected empty scope name to be rejected")
	}
}

func TestGet(t *testing.T) {
	registry, err := NewRegistry(testScopes())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	info, err := registry.Get("user.write")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if info.MinLevel != 4 || info.AllowPublic {
		t.Fatalf("unexpected entry: %+v", info)
	}

	if _, err := registry.Get("nope"); !errors.Is(err, ErrUnknownScope) {
		t.Fatalf("expected ErrUnknownScope, got %v", err)
	}
}

func TestAllowed(t *testing.T) {
	registry, err := NewRegistry(testScopes())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	// A personal developer (type 4) gets level-4 scopes only.
	if !registry.Allowed("user.read", 4, false) {
		t.Fatal("expected user.read allowed for personal developer")
	}
	if registry.Allowed("corp.admin", 4, false) {
		t.Fatal("expected corp.admin refused for personal developer")
	}

	// A corporate developer (type 3) clears both levels.
	if !registry.Allowed("corp.admin", 3, false) {
		t.Fatal("expected corp.admin allowed for corporate developer")
	}
	if !registry.Allowed("user.read", 3, false) {
		t.Fatal("expected user.read allowed for corporate developer")
	}

	// Public clients only get scopes that opt in.
	if !registry.Allowed("user.read", 4, true) {
		t.Fatal("expected user.read allowed for public client")
	}
	if registry.Allowed("user.write", 4, true) {
		t.Fatal("expected user.write refused for public client")
	}

	if registry.Allowed("nope", 0, false) {
		t.Fatal("expected unknown scope refused")
	}
}

func TestAllowedAll(t *testing.T) {
	registry, err := NewRegistry(testScopes())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	if offender, ok := registry.AllowedAll([]string{"user.read", "openid"}, 4, true); !ok {
		t.Fatalf("expected all granted, offender %q", offender)
	}

	offender, ok := registry.AllowedAll([]string{"user.read", "user.write", "openid"}, 4, true)
	if ok {
		t.Fatal("expected refusal")
	}
	if offender != "user.write" {
		t.Fatalf("expected user.write as offender, got %q", offender)
	}

	if _, ok := registry.AllowedAll(nil, 4, true); !ok {
		t.Fatal("expected empty request to be granted")
	}
}
