package goIDP

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	if err := validateConfig(defaultConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateConfigRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero pre-entry TTL", func(c *Config) { c.PreEntry.TTL = 0 }},
		{"limiter without max", func(c *Config) {
			c.PreEntry.LimiterEnabled = true
			c.PreEntry.LimiterMax = 0
		}},
		{"zero access TTL", func(c *Config) { c.Token.AccessTTL = 0 }},
		{"refresh shorter than access", func(c *Config) {
			c.Token.AccessTTL = time.Hour
			c.Token.RefreshTTL = time.Minute
		}},
		{"zero id token TTL", func(c *Config) { c.IDToken.TTL = 0 }},
		{"zero grant TTL", func(c *Config) { c.AppAuth.GrantTTL = 0 }},
		{"inverted age bucket", func(c *Config) {
			c.AgeRates = []AgeRateBucket{{Min: 10, Max: 5, Rate: "A"}}
		}},
		{"unlabeled age bucket", func(c *Config) {
			c.AgeRates = []AgeRateBucket{{Min: 0, Max: 10}}
		}},
		{"audit without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}},
		{"empty cache prefix", func(c *Config) { c.Cache.TokenPrefix = "" }},
	}

	for _, tc := range cases {
		cfg := defaultConfig()
		tc.mutate(&cfg)
		if err := validateConfig(cfg); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestClassifyAgeRate(t *testing.T) {
	buckets := defaultConfig().AgeRates

	cases := []struct {
		age  int
		want string
	}{
		{0, "A"},
		{11, "A"},
		{12, "B"},
		{14, "B"},
		{15, "C"},
		{17, "C"},
		{18, "Z"},
		{99, "Z"},
	}
	for _, tc := range cases {
		if got := classifyAgeRate(buckets, tc.age); got != tc.want {
			t.Fatalf("age %d: expected %s, got %s", tc.age, tc.want, got)
		}
	}

	// No matching bucket falls through to the unknown rate.
	if got := classifyAgeRate([]AgeRateBucket{{Min: 20, Rate: "Z"}}, 5); got != AgeRateUnknown {
		t.Fatalf("expected unknown rate, got %s", got)
	}

	// The first matching bucket wins even when a later one also matches.
	overlapping := []AgeRateBucket{
		{Min: 0, Max: 0, Rate: "ALL"},
		{Min: 18, Max: 0, Rate: "Z"},
	}
	if got := classifyAgeRate(overlapping, 30); got != "ALL" {
		t.Fatalf("expected first-match-wins, got %s", got)
	}
}

func TestCloneConfigIsolation(t *testing.T) {
	original := defaultConfig()
	original.IDToken.PrivateKey = []byte("secret")

	clone := cloneConfig(original)
	clone.Scopes[0].Name = "mutated"
	clone.AgeRates[0].Rate = "X"
	clone.IDToken.PrivateKey[0] = 'X'

	if original.Scopes[0].Name == "mutated" {
		t.Fatal("scope table aliased between clones")
	}
	if original.AgeRates[0].Rate == "X" {
		t.Fatal("age rate table aliased between clones")
	}
	if original.IDToken.PrivateKey[0] == 'X' {
		t.Fatal("private key aliased between clones")
	}
}

func TestLoadScopeTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scopes.yaml")
	content := `scopes:
  - name: user.read
    description: Read your account profile
    min_level: 4
    allow_public: true
  - name: corp.admin
    description: Corporate administration
    min_level: 3
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	scopes, err := LoadScopeTable(path)
	if err != nil {
		t.Fatalf("LoadScopeTable failed: %v", err)
	}
	if len(scopes) != 2 {
		t.Fatalf("expected 2 scopes, got %d", len(scopes))
	}
	if scopes[0].Name != "user.read" || !scopes[0].AllowPublic {
		t.Fatalf("unexpected first scope: %+v", scopes[0])
	}
	if scopes[1].MinLevel != 3 || scopes[1].AllowPublic {
		t.Fatalf("unexpected second scope: %+v", scopes[1])
	}

	if _, err := LoadScopeTable(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadAgeRateTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ages.yaml")
	content := `age_rates:
  - {min: 0, max: 11, rate: A}
  - {min: 12, max: 17, rate: B}
  - {min: 18, rate: Z}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	buckets, err := LoadAgeRateTable(path)
	if err != nil {
		t.Fatalf("LoadAgeRateTable failed: %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(buckets))
	}
	if classifyAgeRate(buckets, 20) != "Z" {
		t.Fatal("loaded table does not classify")
	}

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(empty, []byte("age_rates: []\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadAgeRateTable(empty); err == nil {
		t.Fatal("expected error for empty table")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("GOIDP_PREENTRY_TTL", "2m")
	t.Setenv("GOIDP_PREENTRY_LIMITER", "true")
	t.Setenv("GOIDP_PREENTRY_LIMITER_MAX", "9")
	t.Setenv("GOIDP_ACCESS_TTL", "30m")
	t.Setenv("GOIDP_REFRESH_TTL", "48h")
	t.Setenv("GOIDP_IDTOKEN_ISSUER", "https://idp.example.com")
	t.Setenv("GOIDP_AUDIT", "false")
	t.Setenv("GOIDP_CACHE_PREFIX", "idp1")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}

	if cfg.PreEntry.TTL != 2*time.Minute {
		t.Fatalf("pre-entry TTL not applied: %v", cfg.PreEntry.TTL)
	}
	if !cfg.PreEntry.LimiterEnabled || cfg.PreEntry.LimiterMax != 9 {
		t.Fatalf("limiter settings not applied: %+v", cfg.PreEntry)
	}
	if cfg.Token.AccessTTL != 30*time.Minute || cfg.Token.RefreshTTL != 48*time.Hour {
		t.Fatalf("token TTLs not applied: %+v", cfg.Token)
	}
	if cfg.IDToken.Issuer != "https://idp.example.com" {
		t.Fatalf("issuer not applied: %q", cfg.IDToken.Issuer)
	}
	if cfg.Audit.Enabled {
		t.Fatal("audit toggle not applied")
	}
	if cfg.Cache.TokenPrefix != "idp1:idt" {
		t.Fatalf("cache prefix not derived: %q", cfg.Cache.TokenPrefix)
	}

	// Defaults survive where nothing was set.
	if cfg.AppAuth.GrantTTL != 5*time.Minute {
		t.Fatalf("expected default grant TTL, got %v", cfg.AppAuth.GrantTTL)
	}
}

func TestConfigFromEnvScopeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scopes.yaml")
	content := `scopes:
  - name: custom.scope
    min_level: 4
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	t.Setenv("GOIDP_SCOPE_FILE", path)

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if len(cfg.Scopes) != 1 || cfg.Scopes[0].Name != "custom.scope" {
		t.Fatalf("scope file not applied: %+v", cfg.Scopes)
	}
}
