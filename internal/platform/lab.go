package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chialvo/internal/events"
	"chialvo/internal/logging"
	"chialvo/internal/metrics"
	"chialvo/internal/model"
	"chialvo/internal/simulation"
	"chialvo/internal/stats"
	"chialvo/internal/storage"
)

type Config struct {
	Store          storage.Store
	Metrics        *metrics.Registry
	Logger         *slog.Logger
	SupportModules []SupportModule

	// Now stamps run records; time.Now when nil.
	Now func() time.Time
}

type SupportModule interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// RunObserver is implemented by support modules that watch every run.
type RunObserver interface {
	RunSink(runID string, params simulation.Params) simulation.SampleSink
	RunFinished(runID, status string) error
}

const (
	StatusSuccess   = "success"
	StatusInvalid   = "invalid"
	StatusDiverged  = "diverged"
	StatusCancelled = "cancelled"
	StatusError     = "error"
)

type RunConfig struct {
	RunID     string
	Params    simulation.Params
	EventRule events.Rule
	Sinks     []simulation.SampleSink
	Progress  func(done, total int)
}

type RunResult struct {
	Record  model.RunRecord
	Events  []events.Series
	Summary stats.SeriesSummary
	Elapsed time.Duration
}

// Lab owns the store and support modules and runs simulations against them.
type Lab struct {
	store   storage.Store
	metrics *metrics.Registry
	logger  *slog.Logger
	now     func() time.Time

	mu sync.RWMutex

	started bool
	modules []SupportModule

	config Config
}

func NewLab(cfg Config) *Lab {
	l := &Lab{
		store:   cfg.Store,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		now:     cfg.Now,
		config:  cfg,
	}
	if l.metrics == nil {
		l.metrics = metrics.NewRegistry()
	}
	if l.logger == nil {
		l.logger = logging.Discard()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

func (l *Lab) Init(ctx context.Context) error {
	if l.store == nil {
		return fmt.Errorf("store is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}
	if err := l.store.Init(ctx); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(l.config.SupportModules))
	started := make([]SupportModule, 0, len(l.config.SupportModules))
	for i, module := range l.config.SupportModules {
		if module == nil {
			stopSupportModules(ctx, started)
			return fmt.Errorf("support module is nil at index %d", i)
		}
		name := module.Name()
		if name == "" {
			stopSupportModules(ctx, started)
			return fmt.Errorf("support module name is required at index %d", i)
		}
		if _, exists := seen[name]; exists {
			stopSupportModules(ctx, started)
			return fmt.Errorf("duplicate support module: %s", name)
		}
		if err := module.Start(ctx); err != nil {
			stopSupportModules(ctx, started)
			return fmt.Errorf("start support module %s: %w", name, err)
		}
		seen[name] = struct{}{}
		started = append(started, module)
	}

	l.modules = started
	l.started = true
	return nil
}

// Stop stops support modules in reverse start order.
func (l *Lab) Stop(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return
	}
	stopSupportModules(ctx, l.modules)
	l.modules = nil
	l.started = false
}

func (l *Lab) Started() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.started
}

func (l *Lab) ActiveSupportModules() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.modules))
	for _, module := range l.modules {
		names = append(names, module.Name())
	}
	sort.Strings(names)
	return names
}

func (l *Lab) Metrics() *metrics.Registry { return l.metrics }

// Run simulates cfg.Params, extracts events and persists the run. A failed
// run persists nothing.
func (l *Lab) Run(ctx context.Context, cfg RunConfig) (RunResult, error) {
	if !l.Started() {
		return RunResult{}, fmt.Errorf("lab is not initialized")
	}
	rule := cfg.EventRule
	if rule == "" {
		rule = events.RuleLocalMax
	}
	createdAt := l.now()
	runID := cfg.RunID
	if runID == "" {
		runID = NewRunID(createdAt)
	}
	params := cfg.Params
	logger := l.logger.With("run_id", runID, "topology", params.Topology, "size", params.Size)

	sinks := append([]simulation.SampleSink(nil), cfg.Sinks...)
	observers := l.observers()
	for _, observer := range observers {
		sinks = append(sinks, observer.RunSink(runID, params))
	}
	opts := []simulation.Option{simulation.WithSinks(sinks...)}
	if cfg.Progress != nil {
		opts = append(opts, simulation.WithProgress(cfg.Progress))
	}

	logger.Info("simulation started", "iterations", params.Iterations(), "stride", params.Stride, "seed", params.Seed)
	started := time.Now()
	res, err := simulation.Simulate(ctx, params, opts...)
	elapsed := time.Since(started)
	if err != nil {
		status := classify(err)
		l.metrics.RecordRun(params.Topology, status, params.Nodes(), 0, 0, elapsed)
		if status == StatusDiverged {
			l.metrics.RecordDivergence(params.Topology)
		}
		l.finish(observers, runID, status, logger)
		logger.Warn("simulation failed", "status", status, "error", err)
		return RunResult{}, err
	}

	evs := events.ExtractAll(res.Series, params.Threshold, rule)
	summary := stats.Summarize(res.Series, evs, float64(params.Stride)*params.DT)
	record := model.NewRunRecord(runID, stats.FormatTimestamp(createdAt), res, storage.CurrentSchemaVersion, storage.CurrentCodecVersion)

	err = l.store.SaveRun(ctx, record)
	l.metrics.RecordStoreOperation("save_run", err)
	if err != nil {
		l.finish(observers, runID, StatusError, logger)
		return RunResult{}, fmt.Errorf("persist run %s: %w", runID, err)
	}

	l.metrics.RecordRun(params.Topology, StatusSuccess, res.Nodes, res.Iterations, res.Samples(), elapsed)
	l.metrics.RecordSpikes(params.Topology, string(rule), summary.TotalSpikes)
	l.finish(observers, runID, StatusSuccess, logger)
	logger.Info("simulation finished",
		"samples", res.Samples(),
		"spikes", summary.TotalSpikes,
		"elapsed", elapsed.Round(time.Millisecond),
	)

	return RunResult{Record: record, Events: evs, Summary: summary, Elapsed: elapsed}, nil
}

func (l *Lab) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	run, ok, err := l.store.GetRun(ctx, id)
	l.metrics.RecordStoreOperation("get_run", err)
	return run, ok, err
}

func (l *Lab) ListRuns(ctx context.Context) ([]model.RunHeader, error) {
	headers, err := l.store.ListRuns(ctx)
	l.metrics.RecordStoreOperation("list_runs", err)
	return headers, err
}

func (l *Lab) DeleteRun(ctx context.Context, id string) error {
	err := l.store.DeleteRun(ctx, id)
	l.metrics.RecordStoreOperation("delete_run", err)
	return err
}

// NewRunID returns a time-sortable unique run id.
func NewRunID(at time.Time) string {
	return stats.RunIDPrefix(at) + "-" + uuid.NewString()[:8]
}

func (l *Lab) observers() []RunObserver {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []RunObserver
	for _, module := range l.modules {
		if observer, ok := module.(RunObserver); ok {
			out = append(out, observer)
		}
	}
	return out
}

func (l *Lab) finish(observers []RunObserver, runID, status string, logger *slog.Logger) {
	for _, observer := range observers {
		if err := observer.RunFinished(runID, status); err != nil {
			logger.Debug("run observer failed", "error", err)
		}
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, simulation.ErrInvalidConfig):
		return StatusInvalid
	case errors.Is(err, simulation.ErrNumericalDivergence):
		return StatusDiverged
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	default:
		return StatusError
	}
}

func stopSupportModules(ctx context.Context, modules []SupportModule) {
	for i := len(modules) - 1; i >= 0; i-- {
		_ = modules[i].Stop(ctx)
	}
}
