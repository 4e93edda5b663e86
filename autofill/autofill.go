// CLAUDE:SUMMARY Autofill service: wires the SQLite store, connectivity router, engine, observability and browser; static HTML and live page entry points.
// Package autofill resolves and fills web form fields from a profile, a
// per-label memory and an optional remote inference service.
//
// Usage:
//
//	svc, err := autofill.New(&autofill.Config{DBPath: "autofill.db"}, logger)
//	defer svc.Close()
//	res, err := svc.FillHTML(ctx, autofill.FillRequest{HTML: page})
package autofill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/autofill/autofill/internal/browser"
	"github.com/hazyhaar/autofill/autofill/internal/store"
	"github.com/hazyhaar/autofill/autofill/profile"
	"github.com/hazyhaar/autofill/autofill/surface/htmldoc"
	"github.com/hazyhaar/autofill/connectivity"
	"github.com/hazyhaar/autofill/dbopen"
	"github.com/hazyhaar/autofill/horosafe"
	"github.com/hazyhaar/autofill/observability"
	"github.com/hazyhaar/autofill/watch"
)

// Service is a running autofill instance.
type Service struct {
	cfg     *Config
	store   *store.Store
	router  *connectivity.Router
	engine  *Engine
	browser *browser.Manager
	metrics *observability.MetricsManager
	routes  *watch.Watcher
	logger  *slog.Logger
	cancel  context.CancelFunc
	// watchDone is closed when the route watcher goroutine has returned.
	watchDone chan struct{}
}

// New opens the database, builds the router and the engine.
func New(cfg *Config, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.Open(cfg.DBPath,
		dbopen.WithSchema(connectivity.Schema),
		dbopen.WithSchema(observability.Schema),
	)
	if err != nil {
		return nil, fmt.Errorf("autofill: open db: %w", err)
	}

	router := connectivity.New(connectivity.WithLogger(logger))
	var httpOpts []connectivity.HTTPOption
	if cfg.Remote.AllowPrivate {
		httpOpts = append(httpOpts, connectivity.WithAllowPrivate())
	}
	router.RegisterTransport("http", connectivity.HTTPFactory(httpOpts...))

	ctx, cancel := context.WithCancel(context.Background())
	svc := &Service{
		cfg:       cfg,
		store:     s,
		router:    router,
		logger:    logger,
		cancel:    cancel,
		watchDone: make(chan struct{}),
	}

	if cfg.Remote.Endpoint != "" {
		if err := svc.seedRemoteRoute(ctx); err != nil {
			cancel()
			router.Close()
			s.Close()
			return nil, err
		}
	}

	opts := Options{
		Profiles: store.ProfileSource{Store: s, ID: cfg.ProfileID},
		Memory:   s,
		Remote:   router,
		Resolve:  cfg.resolveConfig(),
		Events:   observability.NewEventLogger(s.DB, observability.WithEventLogger(logger)),
		Logger:   logger,
	}
	if cfg.Metrics {
		svc.metrics = observability.NewMetricsManager(s.DB, 64, 5*time.Second, logger)
		opts.Metrics = svc.metrics
	}
	svc.engine = NewEngine(opts)
	svc.RegisterConnectivity(router)

	stealth := browser.LevelStealth
	if strings.EqualFold(cfg.Browser.Stealth, "plain") {
		stealth = browser.LevelPlain
	}
	svc.browser = browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Stealth:          stealth,
		NavTimeout:       cfg.Browser.NavTimeout,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})

	if err := router.Reload(ctx, s.DB); err != nil {
		logger.Warn("autofill: initial route reload", "error", err)
	}
	svc.routes = watch.New(s.DB, watch.Options{
		Interval: cfg.RouteWatchInterval,
		Debounce: 250 * time.Millisecond,
		Detector: watch.MaxColumn("routes", "updated_at"),
		Logger:   logger,
	})
	go func() {
		defer close(svc.watchDone)
		svc.routes.OnChange(ctx, func() error { return router.Reload(ctx, s.DB) })
	}()

	logger.Info("autofill: started", "db", cfg.DBPath, "remote_service", cfg.Remote.Service,
		"remote_routable", router.Routable(cfg.Remote.Service))
	return svc, nil
}

func (s *Service) seedRemoteRoute(ctx context.Context) error {
	var conf json.RawMessage
	if s.cfg.Remote.Timeout > 0 {
		conf, _ = json.Marshal(map[string]int64{"timeout_ms": s.cfg.Remote.Timeout.Milliseconds()})
	}
	admin := connectivity.NewAdmin(s.store.DB)
	cur, err := admin.GetRoute(ctx, s.cfg.Remote.Service)
	if err != nil {
		return fmt.Errorf("autofill: seed remote route: %w", err)
	}
	// Rewriting an identical row would bump updated_at and force a reload.
	if cur != nil && cur.Strategy == "http" && cur.Endpoint == s.cfg.Remote.Endpoint && sameConfig(cur.Config, conf) {
		return nil
	}
	if err := admin.UpsertRoute(ctx, s.cfg.Remote.Service, "http", s.cfg.Remote.Endpoint, conf); err != nil {
		return fmt.Errorf("autofill: seed remote route: %w", err)
	}
	s.logger.Info("autofill: remote route seeded", "service", s.cfg.Remote.Service, "endpoint", s.cfg.Remote.Endpoint)
	return nil
}

func sameConfig(a, b json.RawMessage) bool {
	if len(b) == 0 {
		b = json.RawMessage(`{}`)
	}
	var x, y any
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return false
	}
	ax, _ := json.Marshal(x)
	by, _ := json.Marshal(y)
	return bytes.Equal(ax, by)
}

// Close stops the route watcher, Chrome and the database. The watcher is
// drained first so no poll runs against a closed database.
func (s *Service) Close() error {
	s.cancel()
	<-s.watchDone
	var errs []error
	if err := s.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.metrics != nil {
		if err := s.metrics.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.router.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Engine returns the run engine.
func (s *Service) Engine() *Engine { return s.engine }

// Store returns the underlying store.
func (s *Service) Store() *store.Store { return s.store }

// Router returns the connectivity router.
func (s *Service) Router() *connectivity.Router { return s.router }

// ScanRequest asks for the field inventory of an HTML document.
type ScanRequest struct {
	HTML  string `json:"html"`
	Scope string `json:"scope,omitempty"`
}

// ScanResult is the inventory of a document.
type ScanResult struct {
	Fields  []FieldInfo `json:"fields"`
	Skipped Skipped     `json:"skipped"`
}

// ScanHTML lists the fields the engine would fill in a document.
func (s *Service) ScanHTML(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	doc, err := parseDocument(req.HTML, req.Scope)
	if err != nil {
		return nil, err
	}
	inv, err := s.engine.Scan(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &ScanResult{Fields: Describe(inv), Skipped: inv.Skipped}, nil
}

// FillRequest asks for a document to be filled.
type FillRequest struct {
	HTML     string `json:"html"`
	Scope    string `json:"scope,omitempty"`
	SiteType string `json:"site_type,omitempty"`
	// URL is only used to detect the site type when SiteType is empty.
	URL       string          `json:"url,omitempty"`
	ProfileID string          `json:"profile_id,omitempty"`
	Profile   json.RawMessage `json:"profile,omitempty"`
}

// FillResult is a run report plus the filled document.
type FillResult struct {
	Report Report `json:"report"`
	HTML   string `json:"html"`
}

// FillHTML runs the engine over a static document and renders the result.
func (s *Service) FillHTML(ctx context.Context, req FillRequest) (*FillResult, error) {
	doc, err := parseDocument(req.HTML, req.Scope)
	if err != nil {
		return nil, err
	}
	opts, err := s.runOptions(req.SiteType, req.URL, req.ProfileID, req.Profile)
	if err != nil {
		return nil, err
	}
	rep := s.engine.Run(ctx, doc, opts)
	out, err := doc.HTML()
	if err != nil {
		return nil, fmt.Errorf("autofill: render: %w", err)
	}
	return &FillResult{Report: rep, HTML: out}, nil
}

// PageRequest asks for a live page to be filled.
type PageRequest struct {
	URL       string          `json:"url"`
	SiteType  string          `json:"site_type,omitempty"`
	ProfileID string          `json:"profile_id,omitempty"`
	Profile   json.RawMessage `json:"profile,omitempty"`
}

// RunPage opens a URL in Chrome, fills its form and closes the tab.
func (s *Service) RunPage(ctx context.Context, req PageRequest) (*Report, error) {
	if err := s.validatePageURL(req.URL); err != nil {
		return nil, fmt.Errorf("autofill: %w", err)
	}
	opts, err := s.runOptions(req.SiteType, req.URL, req.ProfileID, req.Profile)
	if err != nil {
		return nil, err
	}
	page, err := browser.Open(ctx, s.browser, req.URL)
	if err != nil {
		return nil, fmt.Errorf("autofill: open page: %w", err)
	}
	defer page.Close()

	rep := s.engine.Run(ctx, page, opts)
	return &rep, nil
}

func (s *Service) validatePageURL(u string) error {
	if s.cfg.Browser.AllowPrivate {
		_, err := horosafe.ValidateScheme(u)
		return err
	}
	return horosafe.ValidateURL(u)
}

func (s *Service) runOptions(siteType, pageURL, profileID string, inline json.RawMessage) (RunOptions, error) {
	opts := RunOptions{SiteType: siteType}
	if opts.SiteType == "" && pageURL != "" {
		opts.SiteType = DetectSite(pageURL)
	}
	switch {
	case len(bytes.TrimSpace(inline)) > 0 && string(bytes.TrimSpace(inline)) != "null":
		p, err := profile.Parse(inline)
		if err != nil {
			return opts, fmt.Errorf("autofill: %w", err)
		}
		opts.Profile = StaticProfile(p)
	case profileID != "":
		opts.Profile = store.ProfileSource{Store: s.store, ID: profileID}
	}
	return opts, nil
}

func parseDocument(src, scope string) (*htmldoc.Document, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.New("autofill: html is required")
	}
	var opts []htmldoc.Option
	if scope != "" {
		opts = append(opts, htmldoc.WithScope(scope))
	}
	doc, err := htmldoc.ParseString(src, opts...)
	if err != nil {
		return nil, fmt.Errorf("autofill: parse html: %w", err)
	}
	return doc, nil
}

// GetProfile returns a stored profile, nil if absent. An empty id selects
// the configured profile.
func (s *Service) GetProfile(ctx context.Context, id string) (*profile.Profile, error) {
	if id == "" {
		id = s.cfg.ProfileID
	}
	return s.store.GetProfile(ctx, id)
}

// PutProfile validates and stores a profile document.
func (s *Service) PutProfile(ctx context.Context, id string, doc []byte) (*profile.Profile, error) {
	if id == "" {
		id = s.cfg.ProfileID
	}
	if err := horosafe.ValidateIdentifier(id); err != nil {
		return nil, fmt.Errorf("autofill: profile id: %w", err)
	}
	return s.store.PutProfile(ctx, id, doc)
}

// DeleteProfile removes a stored profile and reports whether it existed.
func (s *Service) DeleteProfile(ctx context.Context, id string) (bool, error) {
	if id == "" {
		id = s.cfg.ProfileID
	}
	return s.store.DeleteProfile(ctx, id)
}

// RouteRequest creates or replaces a connectivity route.
type RouteRequest struct {
	Service  string          `json:"service"`
	Strategy string          `json:"strategy"`
	Endpoint string          `json:"endpoint,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// Routes lists the routes table. The route watcher applies edits to the
// router within one poll interval.
func (s *Service) Routes(ctx context.Context) ([]connectivity.RouteRow, error) {
	return connectivity.NewAdmin(s.store.DB).ListRoutes(ctx)
}

// SetRoute upserts a route. Only the strategies the router knows are accepted.
func (s *Service) SetRoute(ctx context.Context, req RouteRequest) error {
	switch req.Strategy {
	case "http":
		if err := s.validateRouteEndpoint(req.Endpoint); err != nil {
			return fmt.Errorf("autofill: route endpoint: %w", err)
		}
	case "noop", "local":
	default:
		return fmt.Errorf("autofill: unsupported route strategy %q", req.Strategy)
	}
	return connectivity.NewAdmin(s.store.DB).UpsertRoute(ctx, req.Service, req.Strategy, req.Endpoint, req.Config)
}

func (s *Service) validateRouteEndpoint(u string) error {
	if s.cfg.Remote.AllowPrivate {
		_, err := horosafe.ValidateScheme(u)
		return err
	}
	return horosafe.ValidateURL(u)
}

// DeleteRoute removes the route for service.
func (s *Service) DeleteRoute(ctx context.Context, service string) error {
	return connectivity.NewAdmin(s.store.DB).DeleteRoute(ctx, service)
}

// ListMemory returns the most recently updated memory entries.
func (s *Service) ListMemory(ctx context.Context, limit int) ([]MemoryEntry, error) {
	return s.store.ListMemory(ctx, limit)
}

// ForgetMemory removes one label from memory, or every label when label is empty.
func (s *Service) ForgetMemory(ctx context.Context, label string) (int64, error) {
	if label == "" {
		return s.store.ClearMemory(ctx)
	}
	ok, err := s.store.ForgetMemory(ctx, label)
	if err != nil || !ok {
		return 0, err
	}
	return 1, nil
}
