package goIDP

import (
	"errors"

	"github.com/MrEthical07/goIDP/idtoken"
	"github.com/MrEthical07/goIDP/internal/stores"
	"github.com/MrEthical07/goIDP/scope"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder is single-use; Build returns an
// error on reuse.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts     AccountProvider
	virtualIDs   VirtualIDProvider
	applications ApplicationProvider
	corpRegistry CorpRegistryClient
	profiles     ProfileAggregator
	auditSink    AuditSink

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAccountProvider(p AccountProvider) *Builder {
	b.accounts = p
	return b
}

func (b *Builder) WithVirtualIDProvider(p VirtualIDProvider) *Builder {
	b.virtualIDs = p
	return b
}

func (b *Builder) WithApplicationProvider(p ApplicationProvider) *Builder {
	b.applications = p
	return b
}

func (b *Builder) WithCorpRegistry(c CorpRegistryClient) *Builder {
	b.corpRegistry = c
	return b
}

func (b *Builder) WithProfileAggregator(a ProfileAggregator) *Builder {
	b.profiles = a
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the Redis-backed stores, and
// returns a ready Engine. The account and virtual-identifier providers are
// mandatory; the application provider, corporate registry, and profile
// aggregator are only required by the operations that use them.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("account provider required")
	}
	if b.virtualIDs == nil {
		return nil, errors.New("virtual id provider required")
	}

	registry, err := scope.NewRegistry(cfg.Scopes)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		redis:        b.redis,
		scopes:       registry,
		accounts:     b.accounts,
		virtualIDs:   b.virtualIDs,
		applications: b.applications,
		corpRegistry: b.corpRegistry,
		profiles:     b.profiles,
	}

	engine.preEntries = stores.NewPreEntryStore(b.redis, cfg.Cache.PreEntryPrefix)
	engine.appAuth = stores.NewAppAuthStore(b.redis, cfg.Cache.GrantPrefix, cfg.Cache.CodePrefix)
	engine.tokens = stores.NewTokenStore(b.redis, cfg.Cache.TokenPrefix)
	engine.preEntryLimiter = newPreEntryLimiter(b.redis, cfg.PreEntry)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	if len(cfg.IDToken.PrivateKey) > 0 {
		im, err := idtoken.NewManager(idtoken.Config{
			TTL:           cfg.IDToken.TTL,
			Issuer:        cfg.IDToken.Issuer,
			SigningMethod: idtoken.SigningMethod(cfg.IDToken.SigningMethod),
			PrivateKey:    append([]byte(nil), cfg.IDToken.PrivateKey...),
			PublicKey:     append([]byte(nil), cfg.IDToken.PublicKey...),
			KeyID:         cfg.IDToken.KeyID,
		})
		if err != nil {
			return nil, err
		}
		engine.idTokens = im
	}

	b.built = true

	return engine, nil
}
