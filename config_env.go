package goIDP

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

type envConfig struct {
	PreEntryTTL        time.Duration `env:"GOIDP_PREENTRY_TTL"`
	PreEntryLimiter    bool          `env:"GOIDP_PREENTRY_LIMITER"`
	PreEntryLimiterMax int           `env:"GOIDP_PREENTRY_LIMITER_MAX"`
	AccessTTL          time.Duration `env:"GOIDP_ACCESS_TTL"`
	RefreshTTL         time.Duration `env:"GOIDP_REFRESH_TTL"`
	IDTokenTTL         time.Duration `env:"GOIDP_IDTOKEN_TTL"`
	IDTokenIssuer      string        `env:"GOIDP_IDTOKEN_ISSUER"`
	IDTokenMethod      string        `env:"GOIDP_IDTOKEN_METHOD"`
	IDTokenPrivateKey  string        `env:"GOIDP_IDTOKEN_PRIVATE_KEY_FILE"`
	IDTokenPublicKey   string        `env:"GOIDP_IDTOKEN_PUBLIC_KEY_FILE"`
	GrantTTL           time.Duration `env:"GOIDP_GRANT_TTL"`
	CodeTTL            time.Duration `env:"GOIDP_CODE_TTL"`
	ScopeFile          string        `env:"GOIDP_SCOPE_FILE"`
	AgeRateFile        string        `env:"GOIDP_AGERATE_FILE"`
	AuditEnabled       bool          `env:"GOIDP_AUDIT" envDefault:"true"`
	MetricsEnabled     bool          `env:"GOIDP_METRICS" envDefault:"true"`
	CachePrefix        string        `env:"GOIDP_CACHE_PREFIX"`
}

// ConfigFromEnv builds a Config from GOIDP_* environment variables on top of
// the built-in defaults. Unset variables leave the default in place; key files
// and the scope / age-rate tables are read eagerly so later permission changes
// cannot affect a running engine.
func ConfigFromEnv() (Config, error) {
	cfg := defaultConfig()

	var e envConfig
	if err := env.Parse(&e); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if e.PreEntryTTL > 0 {
		cfg.PreEntry.TTL = e.PreEntryTTL
	}
	cfg.PreEntry.LimiterEnabled = e.PreEntryLimiter
	if e.PreEntryLimiterMax > 0 {
		cfg.PreEntry.LimiterMax = e.PreEntryLimiterMax
	}
	if e.AccessTTL > 0 {
		cfg.Token.AccessTTL = e.AccessTTL
	}
	if e.RefreshTTL > 0 {
		cfg.Token.RefreshTTL = e.RefreshTTL
	}
	if e.IDTokenTTL > 0 {
		cfg.IDToken.TTL = e.IDTokenTTL
	}
	if e.IDTokenIssuer != "" {
		cfg.IDToken.Issuer = e.IDTokenIssuer
	}
	if e.IDTokenMethod != "" {
		cfg.IDToken.SigningMethod = e.IDTokenMethod
	}
	if e.IDTokenPrivateKey != "" {
		key, err := os.ReadFile(e.IDTokenPrivateKey)
		if err != nil {
			return Config{}, fmt.Errorf("read private key: %w", err)
		}
		cfg.IDToken.PrivateKey = key
	}
	if e.IDTokenPublicKey != "" {
		key, err := os.ReadFile(e.IDTokenPublicKey)
		if err != nil {
			return Config{}, fmt.Errorf("read public key: %w", err)
		}
		cfg.IDToken.PublicKey = key
	}
	if e.GrantTTL > 0 {
		cfg.AppAuth.GrantTTL = e.GrantTTL
	}
	if e.CodeTTL > 0 {
		cfg.AppAuth.CodeTTL = e.CodeTTL
	}
	if e.ScopeFile != "" {
		scopes, err := LoadScopeTable(e.ScopeFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Scopes = scopes
	}
	if e.AgeRateFile != "" {
		buckets, err := LoadAgeRateTable(e.AgeRateFile)
		if err != nil {
			return Config{}, err
		}
		cfg.AgeRates = buckets
	}
	cfg.Audit.Enabled = e.AuditEnabled
	cfg.Metrics.Enabled = e.MetricsEnabled
	if e.CachePrefix != "" {
		cfg.Cache.PreEntryPrefix = e.CachePrefix + ":preentry"
		cfg.Cache.GrantPrefix = e.CachePrefix + ":appauth"
		cfg.Cache.CodePrefix = e.CachePrefix + ":authcode"
		cfg.Cache.TokenPrefix = e.CachePrefix + ":idt"
	}

	return cfg, nil
}
