// CLAUDE:SUMMARY Three-tier value resolution: memory cache, one batched remote call through connectivity middlewares, local profile lookup.
package resolve

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/autofill/autofill/internal/field"
	"github.com/hazyhaar/autofill/autofill/profile"
	"github.com/hazyhaar/autofill/connectivity"
	"github.com/hazyhaar/autofill/kit"
)

// MemoryStore caches the last value filled per cleaned label.
type MemoryStore interface {
	Get(ctx context.Context, label string) (string, bool, error)
	Set(ctx context.Context, label, value string) error
}

// Caller sends one request to a named service. *connectivity.Router
// satisfies it.
type Caller interface {
	Call(ctx context.Context, service string, payload []byte) ([]byte, error)
}

// A Caller that can tell in advance whether a service is reachable lets the
// resolver skip the remote tier without paying for a failed call.
type routable interface {
	Routable(service string) bool
}

// Config tunes the remote tier and memory lookups.
type Config struct {
	Service          string        `json:"service" yaml:"service"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
	Retries          int           `json:"retries" yaml:"retries"`
	RetryBackoff     time.Duration `json:"retry_backoff" yaml:"retry_backoff"`
	BreakerThreshold int           `json:"breaker_threshold" yaml:"breaker_threshold"`
	BreakerReset     time.Duration `json:"breaker_reset" yaml:"breaker_reset"`
	Concurrency      int           `json:"concurrency" yaml:"concurrency"`
}

// DefaultService is the connectivity service name of the remote tier.
const DefaultService = "autofill_remote"

func (c *Config) defaults() {
	if c.Service == "" {
		c.Service = DefaultService
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 3
	}
	if c.BreakerReset <= 0 {
		c.BreakerReset = 30 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
}

// Result maps field ids to resolved values. Unresolved fields are absent.
type Result map[string]string

// Stats records where values came from during one Resolve.
type Stats struct {
	Memory        int    `json:"memory"`
	Remote        int    `json:"remote"`
	Local         int    `json:"local"`
	RemoteError   string `json:"remote_error,omitempty"`
	RemoteSkipped bool   `json:"remote_skipped,omitempty"`
}

// Resolver runs the memory, remote and local tiers. It keeps no per-run
// state and is safe for concurrent use.
type Resolver struct {
	cfg       Config
	memory    MemoryStore
	caller    Caller
	remote    connectivity.Handler
	breaker   *connectivity.CircuitBreaker
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// New creates a Resolver. memory and caller may be nil to disable their tier.
func New(memory MemoryStore, caller Caller, cfg Config, logger *slog.Logger) *Resolver {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		cfg:       cfg,
		memory:    memory,
		caller:    caller,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
		breaker: connectivity.NewCircuitBreaker(
			connectivity.WithBreakerThreshold(cfg.BreakerThreshold),
			connectivity.WithBreakerResetTimeout(cfg.BreakerReset),
		),
	}
	if caller != nil {
		call := func(ctx context.Context, payload []byte) ([]byte, error) {
			return caller.Call(ctx, cfg.Service, payload)
		}
		r.remote = connectivity.Chain(
			connectivity.Recovery(logger),
			connectivity.Logging(logger, cfg.Service),
			connectivity.Timeout(cfg.Timeout),
			connectivity.WithCircuitBreaker(r.breaker, cfg.Service),
			connectivity.WithRetry(cfg.Retries, cfg.RetryBackoff, logger),
		)(call)
	}
	return r
}

// Breaker exposes the remote tier circuit breaker.
func (r *Resolver) Breaker() *connectivity.CircuitBreaker { return r.breaker }

// Resolve returns a value for as many fields as possible. A nil profile is
// treated as empty. Tier failures are logged and recorded in Stats, never
// returned.
func (r *Resolver) Resolve(ctx context.Context, fields []*field.Descriptor, p *profile.Profile) (Result, Stats) {
	if p == nil {
		p = &profile.Profile{}
	}
	log := r.logger.With(kit.LogAttrs(ctx)...)
	result := make(Result, len(fields))
	var stats Stats

	for id, v := range r.lookupMemory(ctx, fields, log) {
		result[id] = v
		stats.Memory++
	}

	pending := unresolved(fields, result)
	if len(pending) > 0 {
		values, err := r.callRemote(ctx, pending, p)
		switch {
		case errors.Is(err, errSkipped):
			stats.RemoteSkipped = true
		case err != nil:
			stats.RemoteError = err.Error()
			log.WarnContext(ctx, "resolve: remote tier failed, resolving locally",
				"service", r.cfg.Service, "fields", len(pending), "error", err)
		default:
			for id, v := range values {
				result[id] = v
				stats.Remote++
			}
		}
	}

	for _, f := range unresolved(fields, result) {
		if v := Local(f, p); v != "" {
			result[f.FieldID] = v
			stats.Local++
		}
	}

	log.DebugContext(ctx, "resolve: done",
		"fields", len(fields), "memory", stats.Memory, "remote", stats.Remote, "local", stats.Local)
	return result, stats
}

func (r *Resolver) lookupMemory(ctx context.Context, fields []*field.Descriptor, log *slog.Logger) map[string]string {
	hits := make(map[string]string)
	if r.memory == nil || len(fields) == 0 {
		return hits
	}
	values := make([]string, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, f := range fields {
		g.Go(func() error {
			v, ok, err := r.memory.Get(gctx, f.Label)
			if err != nil {
				log.WarnContext(gctx, "resolve: memory lookup", "label", f.Label, "error", err)
				return nil
			}
			if ok && strings.TrimSpace(v) != "" {
				values[i] = v
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, f := range fields {
		if values[i] != "" {
			hits[f.FieldID] = values[i]
		}
	}
	return hits
}

func unresolved(fields []*field.Descriptor, result Result) []*field.Descriptor {
	var out []*field.Descriptor
	for _, f := range fields {
		if _, ok := result[f.FieldID]; !ok {
			out = append(out, f)
		}
	}
	return out
}
