package goIDP

import (
	"errors"
	"time"

	"github.com/MrEthical07/goIDP/scope"
)

// Config carries every tunable of the engine. Zero values are filled from
// [defaultConfig] by the Builder; a fully custom Config passes through
// validateConfig before use.
type Config struct {
	PreEntry PreEntryConfig
	Token    TokenConfig
	IDToken  IDTokenConfig
	AppAuth  AppAuthConfig
	Scopes   []scope.Information
	AgeRates []AgeRateBucket
	Audit    AuditConfig
	Metrics  MetricsConfig
	Cache    CacheConfig
}

/*
====================================
PRE-ENTRY CONFIG
====================================
*/

// PreEntryConfig controls the mail-ownership confirmation window and the
// optional request throttle.
type PreEntryConfig struct {
	TTL time.Duration

	// LimiterEnabled turns on fixed-window throttling of PreEntry requests,
	// counted per mail address and per client IP.
	LimiterEnabled bool
	LimiterWindow  time.Duration
	LimiterMax     int
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig sets default lifetimes for opaque access/refresh pairs.
// Per-call overrides in [IssueTokenRequest] take precedence.
type TokenConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

/*
====================================
ID TOKEN CONFIG
====================================
*/

// IDTokenConfig configures ID-token minting. SigningMethod is one of "rs256"
// (default), "hs256", or "ed25519"; keys are PEM-encoded except for hs256,
// where PrivateKey is the raw secret.
type IDTokenConfig struct {
	TTL           time.Duration
	Issuer        string
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte
	KeyID         string
}

/*
====================================
APP AUTH CONFIG
====================================
*/

// AppAuthConfig sets the lifetimes of the two PKCE artifacts.
type AppAuthConfig struct {
	GrantTTL time.Duration
	CodeTTL  time.Duration
}

/*
====================================
AGE RATE CONFIG
====================================
*/

// AgeRateBucket classifies an age into a rate label. Max 0 leaves the bucket
// open-ended. The first matching bucket wins.
type AgeRateBucket struct {
	Min  int    `yaml:"min"`
	Max  int    `yaml:"max"`
	Rate string `yaml:"rate"`
}

// AgeRateUnknown is the fallback age-rate claim: account types with no age
// computation, aggregator failures, and ages outside every bucket.
const AgeRateUnknown = "N"

func classifyAgeRate(buckets []AgeRateBucket, age int) string {
	for _, b := range buckets {
		if age < b.Min {
			continue
		}
		if b.Max != 0 && age > b.Max {
			continue
		}
		return b.Rate
	}
	return AgeRateUnknown
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is full.
	// Dropped events are counted and reported via [Engine.AuditDropped].
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig sets Redis key prefixes. Distinct prefixes let several engines
// share one Redis database.
type CacheConfig struct {
	PreEntryPrefix string
	GrantPrefix    string
	CodePrefix     string
	TokenPrefix    string
}

func defaultConfig() Config {
	return Config{
		PreEntry: PreEntryConfig{
			TTL:           5 * time.Minute,
			LimiterWindow: 10 * time.Minute,
			LimiterMax:    5,
		},
		Token: TokenConfig{
			AccessTTL:  180 * time.Minute,
			RefreshTTL: 10080 * time.Minute,
		},
		IDToken: IDTokenConfig{
			TTL:           480 * time.Minute,
			SigningMethod: "rs256",
		},
		AppAuth: AppAuthConfig{
			GrantTTL: 5 * time.Minute,
			CodeTTL:  5 * time.Minute,
		},
		Scopes: []scope.Information{
			{Name: ScopeUserRead, Description: "Read your account profile", MinLevel: 4, AllowPublic: true},
			{Name: ScopeUserWrite, Description: "Update or delete your account", MinLevel: 4, AllowPublic: false},
			{Name: ScopeOpenID, Description: "Issue an ID token", MinLevel: 4, AllowPublic: true},
		},
		AgeRates: []AgeRateBucket{
			{Min: 0, Max: 11, Rate: "A"},
			{Min: 12, Max: 14, Rate: "B"},
			{Min: 15, Max: 17, Rate: "C"},
			{Min: 18, Max: 0, Rate: "Z"},
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Cache: CacheConfig{
			PreEntryPrefix: "preentry",
			GrantPrefix:    "appauth",
			CodePrefix:     "authcode",
			TokenPrefix:    "idt",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Scopes = append([]scope.Information(nil), cfg.Scopes...)
	out.AgeRates = append([]AgeRateBucket(nil), cfg.AgeRates...)
	out.IDToken.PrivateKey = append([]byte(nil), cfg.IDToken.PrivateKey...)
	out.IDToken.PublicKey = append([]byte(nil), cfg.IDToken.PublicKey...)
	return out
}

func validateConfig(cfg Config) error {
	if cfg.PreEntry.TTL <= 0 {
		return errors.New("pre-entry TTL must be positive")
	}
	if cfg.PreEntry.LimiterEnabled && (cfg.PreEntry.LimiterWindow <= 0 || cfg.PreEntry.LimiterMax <= 0) {
		return errors.New("pre-entry limiter requires a positive window and max")
	}
	if cfg.Token.AccessTTL <= 0 || cfg.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if cfg.Token.RefreshTTL < cfg.Token.AccessTTL {
		return errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.IDToken.TTL <= 0 {
		return errors.New("id token TTL must be positive")
	}
	if cfg.AppAuth.GrantTTL <= 0 || cfg.AppAuth.CodeTTL <= 0 {
		return errors.New("app auth TTLs must be positive")
	}
	for _, b := range cfg.AgeRates {
		if b.Min < 0 || (b.Max != 0 && b.Max < b.Min) {
			return errors.New("age rate bucket bounds invalid")
		}
		if b.Rate == "" {
			return errors.New("age rate bucket label empty")
		}
	}
	if cfg.Audit.Enabled && cfg.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive")
	}
	if cfg.Cache.PreEntryPrefix == "" || cfg.Cache.GrantPrefix == "" ||
		cfg.Cache.CodePrefix == "" || cfg.Cache.TokenPrefix == "" {
		return errors.New("cache prefixes must not be empty")
	}
	return nil
}
