package goIDP

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goIDP/idtoken"
	"github.com/MrEthical07/goIDP/internal/stores"
	"github.com/MrEthical07/goIDP/scope"
	"github.com/redis/go-redis/v9"
)

// Engine is the account and identity core. All methods are safe for
// concurrent use after [Builder.Build]; the struct is never mutated
// afterwards except through the owned stores and counters.
type Engine struct {
	config Config
	redis  redis.UniversalClient
	scopes *scope.Registry

	preEntries      *stores.PreEntryStore
	appAuth         *stores.AppAuthStore
	tokens          *stores.TokenStore
	preEntryLimiter *preEntryLimiter

	audit   *auditDispatcher
	metrics *Metrics

	idTokens *idtoken.Manager

	accounts     AccountProvider
	virtualIDs   VirtualIDProvider
	applications ApplicationProvider
	corpRegistry CorpRegistryClient
	profiles     ProfileAggregator
}

// Close drains the audit dispatcher. The Redis client is owned by the caller
// and is not closed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// maxKeyAttempts bounds silent regeneration when a freshly minted random key
// collides with a live entry.
const maxKeyAttempts = 5

// storeErr maps store sentinels onto engine sentinels. Missing, expired, and
// consumed entries are indistinguishable to callers.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrEntryNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
}

func scopesContain(granted []string, required []string) bool {
	for _, want := range required {
		found := false
		for _, have := range granted {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsScope(scopes []string, name string) bool {
	for _, s := range scopes {
		if s == name {
			return true
		}
	}
	return false
}
