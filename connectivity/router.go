// Package connectivity routes autofill service calls either to an in-process
// handler or to a remote endpoint, as decided by a SQLite routes table that
// can be changed while the process runs.
//
//	router := connectivity.New(connectivity.WithLogger(logger))
//	router.RegisterTransport("http", connectivity.HTTPFactory(connectivity.WithAllowPrivate()))
//	router.RegisterLocal("autofill_resolve", handleResolve)
//	err := router.Reload(ctx, db)
//
//	resp, err := router.Call(ctx, "autofill_remote", payload)
//
// A route row with strategy "http" sends the call to its endpoint; "local"
// uses the registered handler; "noop" succeeds with an empty response.
package connectivity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Handler is a transport-agnostic service function: bytes in, bytes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// TransportFactory builds a Handler for a remote endpoint from the route's
// endpoint and config JSON. The close function, when non-nil, is called once
// the route is removed or replaced.
type TransportFactory func(endpoint string, config json.RawMessage) (handler Handler, close func(), err error)

type route struct {
	ServiceName string
	Strategy    string
	Endpoint    string
	Config      json.RawMessage
}

// fingerprint changes whenever anything that affects the built handler changes.
func (rt route) fingerprint() string {
	return rt.Strategy + "|" + rt.Endpoint + "|" + string(rt.Config)
}

type remoteEntry struct {
	handler Handler
	close   func()
}

// Router dispatches service calls. Safe for concurrent use.
type Router struct {
	mu            sync.RWMutex
	localHandlers map[string]Handler
	remoteEntries map[string]remoteEntry
	routeSnap     map[string]route
	factories     map[string]TransportFactory
	logger        *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Router with no routes.
func New(opts ...Option) *Router {
	r := &Router{
		localHandlers: make(map[string]Handler),
		remoteEntries: make(map[string]remoteEntry),
		routeSnap:     make(map[string]route),
		factories:     make(map[string]TransportFactory),
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterLocal registers an in-process handler for service.
func (r *Router) RegisterLocal(service string, h Handler) {
	r.mu.Lock()
	r.localHandlers[service] = h
	r.mu.Unlock()
}

// RegisterTransport registers the factory used for routes whose strategy
// equals protocol.
func (r *Router) RegisterTransport(protocol string, f TransportFactory) {
	r.mu.Lock()
	r.factories[protocol] = f
	r.mu.Unlock()
}

// Routable reports whether Call would reach a handler for service.
func (r *Router) Routable(service string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if snap, ok := r.routeSnap[service]; ok && snap.Strategy == "noop" {
		return true
	}
	if _, ok := r.remoteEntries[service]; ok {
		return true
	}
	_, ok := r.localHandlers[service]
	return ok
}

// Call dispatches a service call: a noop route succeeds with nil, a built
// remote route wins over a local handler, and anything else is
// ErrServiceNotFound.
func (r *Router) Call(ctx context.Context, service string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	entry, hasRemote := r.remoteEntries[service]
	localH := r.localHandlers[service]
	snap, hasRoute := r.routeSnap[service]
	r.mu.RUnlock()

	if hasRoute && snap.Strategy == "noop" {
		r.logger.DebugContext(ctx, "connectivity: noop", "service", service)
		return nil, nil
	}

	if hasRemote {
		r.logger.DebugContext(ctx, "connectivity: remote",
			"service", service, "strategy", snap.Strategy, "endpoint", snap.Endpoint)
		return entry.handler(ctx, payload)
	}

	if localH != nil {
		r.logger.DebugContext(ctx, "connectivity: local", "service", service)
		return localH(ctx, payload)
	}

	return nil, &ErrServiceNotFound{Service: service}
}

// Reload reads the routes table and rebuilds remote handlers whose
// fingerprint changed. Unchanged routes keep their handler (and connections).
func (r *Router) Reload(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		`SELECT service_name, strategy, COALESCE(endpoint, ''), COALESCE(config, '{}') FROM routes`)
	if err != nil {
		return fmt.Errorf("connectivity: query routes: %w", err)
	}
	defer rows.Close()

	newRoutes := make(map[string]route)
	for rows.Next() {
		var rt route
		var cfgStr string
		if err := rows.Scan(&rt.ServiceName, &rt.Strategy, &rt.Endpoint, &cfgStr); err != nil {
			return fmt.Errorf("connectivity: scan route: %w", err)
		}
		rt.Config = json.RawMessage(cfgStr)
		newRoutes[rt.ServiceName] = rt
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("connectivity: rows: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	newEntries := make(map[string]remoteEntry, len(newRoutes))
	for name, rt := range newRoutes {
		if rt.Strategy == "local" || rt.Strategy == "noop" {
			continue
		}
		if old, ok := r.routeSnap[name]; ok && old.fingerprint() == rt.fingerprint() {
			if existing, exists := r.remoteEntries[name]; exists {
				newEntries[name] = existing
				continue
			}
		}

		factory, ok := r.factories[rt.Strategy]
		if !ok {
			r.logger.Warn("connectivity: no transport factory",
				"service", name, "strategy", rt.Strategy)
			continue
		}
		h, closeFn, err := factory(rt.Endpoint, rt.Config)
		if err != nil {
			r.logger.Error("connectivity: factory failed",
				"service", name, "strategy", rt.Strategy,
				"endpoint", rt.Endpoint, "error", err)
			continue
		}
		newEntries[name] = remoteEntry{handler: h, close: closeFn}
		r.logger.Info("connectivity: route built",
			"service", name, "strategy", rt.Strategy, "endpoint", rt.Endpoint)
	}

	// Release handlers that were dropped or rebuilt.
	for name, old := range r.remoteEntries {
		if old.close == nil {
			continue
		}
		if _, still := newEntries[name]; !still {
			old.close()
			continue
		}
		if r.routeSnap[name].fingerprint() != newRoutes[name].fingerprint() {
			old.close()
		}
	}

	r.remoteEntries = newEntries
	r.routeSnap = newRoutes

	r.logger.Info("connectivity: routes reloaded",
		"total", len(newRoutes), "remote", len(newEntries))
	return nil
}

// Close releases every remote handler.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.remoteEntries {
		if entry.close != nil {
			entry.close()
		}
	}
	r.remoteEntries = make(map[string]remoteEntry)
	r.routeSnap = make(map[string]route)
	return nil
}
