// CLAUDE:SUMMARY Autofill run orchestration: Idle → Scanning → Resolving → Filling → Done/Failed, with run report, events and metrics.
package autofill

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/autofill/autofill/internal/field"
	"github.com/hazyhaar/autofill/autofill/internal/inventory"
	"github.com/hazyhaar/autofill/autofill/internal/resolve"
	"github.com/hazyhaar/autofill/autofill/internal/writer"
	"github.com/hazyhaar/autofill/autofill/profile"
	"github.com/hazyhaar/autofill/autofill/surface"
	"github.com/hazyhaar/autofill/idgen"
	"github.com/hazyhaar/autofill/kit"
	"github.com/hazyhaar/autofill/observability"
)

// State is a run state.
type State string

const (
	StateIdle      State = "idle"
	StateScanning  State = "scanning"
	StateResolving State = "resolving"
	StateFilling   State = "filling"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// ProfileStore supplies the profile for a run. (nil, nil) means no profile,
// which is not an error.
type ProfileStore interface {
	Profile(ctx context.Context) (*profile.Profile, error)
}

// ProfileFunc adapts a function to ProfileStore.
type ProfileFunc func(ctx context.Context) (*profile.Profile, error)

// Profile implements ProfileStore.
func (f ProfileFunc) Profile(ctx context.Context) (*profile.Profile, error) { return f(ctx) }

// StaticProfile always returns p.
func StaticProfile(p *profile.Profile) ProfileStore {
	return ProfileFunc(func(context.Context) (*profile.Profile, error) { return p, nil })
}

// Tiers counts resolved values per tier.
type Tiers struct {
	Memory int `json:"memory"`
	Remote int `json:"remote"`
	Local  int `json:"local"`
}

// Report is the outcome of one run.
type Report struct {
	RunID        string `json:"run_id"`
	SiteType     string `json:"site_type,omitempty"`
	State        State  `json:"state"`
	Success      bool   `json:"success"`
	FilledFields int    `json:"filledFields"`
	TotalFields  int    `json:"totalFields"`
	Message      string `json:"message"`

	Tiers       Tiers             `json:"tiers"`
	RemoteError string            `json:"remote_error,omitempty"`
	Duplicates  int               `json:"duplicates,omitempty"`
	Skipped     inventory.Skipped `json:"skipped"`
	Filled      []writer.Filled   `json:"filled,omitempty"`
	DurationMS  int64             `json:"duration_ms"`
}

// Options wires an Engine. Every collaborator is optional.
type Options struct {
	Profiles ProfileStore
	Memory   resolve.MemoryStore
	Remote   resolve.Caller
	Resolve  resolve.Config

	Events  *observability.EventLogger
	Metrics *observability.MetricsManager

	NewRunID   idgen.Generator // default: UUIDv7
	NewFieldID idgen.Generator // default: NanoID(9)
	Logger     *slog.Logger
}

// Engine runs autofill passes. It holds no per-run state; only the memory
// store carries anything from one run to the next.
type Engine struct {
	opts     Options
	resolver *resolve.Resolver
	logger   *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewRunID == nil {
		opts.NewRunID = idgen.UUIDv7()
	}
	if opts.NewFieldID == nil {
		opts.NewFieldID = idgen.NanoID(9)
	}
	return &Engine{
		opts:     opts,
		resolver: resolve.New(opts.Memory, opts.Remote, opts.Resolve, opts.Logger),
		logger:   opts.Logger,
	}
}

// Resolver exposes the value resolver, e.g. to serve remote requests.
func (e *Engine) Resolver() *resolve.Resolver { return e.resolver }

// RunOptions tunes one run.
type RunOptions struct {
	// SiteType is a hint for logs and events ("workday", "greenhouse", ...).
	SiteType string
	// Profile overrides the engine's ProfileStore for this run.
	Profile ProfileStore
	// OnState observes every state transition.
	OnState func(State)
}

// Scan builds the field inventory of s without resolving or writing.
func (e *Engine) Scan(ctx context.Context, s surface.Surface) (*inventory.Inventory, error) {
	inv, err := inventory.Build(ctx, s, nil, inventory.Options{NewID: e.opts.NewFieldID, Logger: e.logger})
	if err != nil {
		return nil, fmt.Errorf("autofill: scan: %w", err)
	}
	return inv, nil
}

// Run scans s, resolves values and fills them in. It never returns an error:
// failures are reported through Report.Success and Report.Message.
func (e *Engine) Run(ctx context.Context, s surface.Surface, opts RunOptions) Report {
	start := time.Now()
	rep := Report{RunID: e.opts.NewRunID(), SiteType: opts.SiteType, State: StateIdle}
	ctx = kit.WithRunID(ctx, rep.RunID)
	if opts.SiteType != "" {
		ctx = kit.WithSiteType(ctx, opts.SiteType)
	}
	log := e.logger.With(kit.LogAttrs(ctx)...)

	enter := func(st State) {
		rep.State = st
		log.DebugContext(ctx, "autofill: state", "state", st)
		if opts.OnState != nil {
			opts.OnState(st)
		}
	}
	fail := func(err error) Report {
		enter(StateFailed)
		rep.Success = false
		rep.Message = err.Error()
		rep.DurationMS = time.Since(start).Milliseconds()
		log.WarnContext(ctx, "autofill: run failed", "error", err)
		e.record(ctx, rep)
		return rep
	}

	enter(StateScanning)
	inv, err := e.Scan(ctx, s)
	if err != nil {
		return fail(err)
	}
	rep.TotalFields = len(inv.Fields)
	rep.Skipped = inv.Skipped

	enter(StateResolving)
	profiles := opts.Profile
	if profiles == nil {
		profiles = e.opts.Profiles
	}
	var p *profile.Profile
	if profiles != nil {
		if p, err = profiles.Profile(ctx); err != nil {
			return fail(fmt.Errorf("autofill: profile: %w", err))
		}
	}
	if p == nil {
		log.InfoContext(ctx, "autofill: no profile, memory and remote tiers only")
	}
	values, stats := e.resolver.Resolve(ctx, inv.Fields, p)
	rep.Tiers = Tiers{Memory: stats.Memory, Remote: stats.Remote, Local: stats.Local}
	rep.RemoteError = stats.RemoteError

	enter(StateFilling)
	out, err := writer.Write(ctx, s, inv.Fields, values, writer.Options{
		Memory:      e.opts.Memory,
		Concurrency: e.opts.Resolve.Concurrency,
		Logger:      e.logger,
	})
	rep.FilledFields = out.Filled
	rep.Duplicates = out.Duplicates
	rep.Filled = out.Written
	if err != nil {
		return fail(fmt.Errorf("autofill: fill: %w", err))
	}

	enter(StateDone)
	rep.Success = true
	rep.Message = fmt.Sprintf("Filled %d out of %d fields", rep.FilledFields, rep.TotalFields)
	rep.DurationMS = time.Since(start).Milliseconds()
	log.InfoContext(ctx, "autofill: run complete",
		"filled", rep.FilledFields, "total", rep.TotalFields,
		"memory", rep.Tiers.Memory, "remote", rep.Tiers.Remote, "local", rep.Tiers.Local,
		"duplicates", rep.Duplicates, "duration_ms", rep.DurationMS)
	e.record(ctx, rep)
	return rep
}

func (e *Engine) record(ctx context.Context, rep Report) {
	if e.opts.Events != nil {
		details, _ := json.Marshal(map[string]any{
			"filled":       rep.FilledFields,
			"total":        rep.TotalFields,
			"tiers":        rep.Tiers,
			"remote_error": rep.RemoteError,
			"message":      rep.Message,
		})
		e.opts.Events.LogEvent(ctx, observability.BusinessEvent{
			EventType:   "autofill_run",
			ServiceName: "autofill",
			EntityType:  "run",
			EntityID:    rep.RunID,
			Action:      string(rep.State),
			Details:     string(details),
			Success:     rep.Success,
		})
	}
	if e.opts.Metrics != nil {
		labels := map[string]string{"site_type": rep.SiteType, "state": string(rep.State)}
		now := time.Now()
		for name, v := range map[string]int64{
			observability.MetricFieldsTotal:  int64(rep.TotalFields),
			observability.MetricFieldsFilled: int64(rep.FilledFields),
			observability.MetricTierMemory:   int64(rep.Tiers.Memory),
			observability.MetricTierRemote:   int64(rep.Tiers.Remote),
			observability.MetricTierLocal:    int64(rep.Tiers.Local),
		} {
			e.opts.Metrics.Record(&observability.Metric{Name: name, Timestamp: now, Value: float64(v), Labels: labels, Unit: "count"})
		}
		e.opts.Metrics.Record(&observability.Metric{
			Name: observability.MetricRunDuration, Timestamp: now,
			Value: float64(rep.DurationMS), Labels: labels, Unit: "milliseconds",
		})
	}
}

// Describe renders an inventory for callers outside the module.
func Describe(inv *inventory.Inventory) []FieldInfo {
	out := make([]FieldInfo, len(inv.Fields))
	for i, f := range inv.Fields {
		out[i] = describeField(f)
	}
	return out
}

func describeField(f *field.Descriptor) FieldInfo {
	info := FieldInfo{
		FieldID:    f.FieldID,
		Label:      f.Label,
		Type:       string(f.ControlType),
		Name:       f.Raw.Name,
		ID:         f.Raw.ID,
		Category:   f.Category().String(),
		Personal:   f.Personal.Type(),
		Experience: f.Experience,
		Project:    f.Project,
		License:    f.License,
	}
	return info
}
