package chialvo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"go.nanomsg.org/mangos/v3"

	"chialvo/internal/events"
	"chialvo/internal/lattice"
	"chialvo/internal/logging"
	"chialvo/internal/metrics"
	"chialvo/internal/model"
	"chialvo/internal/platform"
	"chialvo/internal/plot"
	"chialvo/internal/simulation"
	"chialvo/internal/stats"
	"chialvo/internal/storage"
	"chialvo/internal/stream"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "chialvo.db"
	defaultRunsLimit    = 20
	defaultPlotFormat   = "png"
	defaultPlotPoints   = 4000
	figurePrefix        = "figure"

	watchPoll = 250 * time.Millisecond
)

// ErrWatchIdle is returned by Watch when no frame arrives within the idle
// window.
var ErrWatchIdle = errors.New("no stream frames within idle window")

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string

	// StreamAddr enables the tick publisher when set.
	StreamAddr string

	Logger  *slog.Logger
	Metrics *metrics.Registry
}

type Client struct {
	store   storage.Store
	lab     *platform.Lab
	logger  *slog.Logger
	metrics *metrics.Registry

	artifactsDir string
	exportsDir   string
	streamAddr   string
}

type SimulateRequest struct {
	RunID     string
	Params    simulation.Params
	EventRule string
	Sinks     []simulation.SampleSink
	Progress  func(done, total int)

	Plot       bool
	PlotDir    string
	PlotFormat string

	MetricsFile string
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	FigurePath   string
	Nodes        int
	Iterations   int
	Samples      int
	SamplePhase  string
	TotalSpikes  int
	MeanRate     float64
	Elapsed      time.Duration
	Summary      stats.SeriesSummary
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Topology     string
	Size         int
	Nodes        int
	Iterations   int
	Samples      int
	Seed         int64
	TotalSpikes  int
	MeanRate     float64
}

// RunSelector names one run either by id or as the most recent one.
type RunSelector struct {
	RunID  string
	Latest bool
}

type ShowResult struct {
	Config      stats.RunConfig
	Summary     stats.SeriesSummary
	HasRecovery bool
}

type EventsRequest struct {
	RunSelector
	// Rule re-extracts events with another rule; empty keeps the run's.
	Rule string
	// Nodes restricts the result; empty means every node.
	Nodes []int
}

type NodeEvents struct {
	Node   int
	Label  float64
	Spikes []int
	Times  []float64
}

type ExportRequest struct {
	RunSelector
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type PlotRequest struct {
	RunSelector
	Dir       string
	Format    string
	Rule      string
	MaxPoints int
}

type PlotSummary struct {
	RunID string
	Path  string
}

type WatchRequest struct {
	Addr string
	// RunID ignores frames of other runs when set.
	RunID string
	// Idle gives up after this long without a frame; zero waits until ctx
	// is done.
	Idle time.Duration
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	reg := opts.Metrics
	if reg == nil {
		reg = metrics.NewRegistry()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logger,
		metrics:      reg,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
		streamAddr:   opts.StreamAddr,
	}, nil
}

func (c *Client) Close() error {
	if c.lab != nil {
		c.lab.Stop(context.Background())
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureLab(ctx)
	return err
}

func (c *Client) Metrics() *metrics.Registry { return c.metrics }

// Simulate runs one simulation, persists it, writes its artifact directory
// and indexes it.
func (c *Client) Simulate(ctx context.Context, req SimulateRequest) (RunSummary, error) {
	rule, err := events.ParseRule(req.EventRule)
	if err != nil {
		return RunSummary{}, err
	}
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	res, err := lab.Run(ctx, platform.RunConfig{
		RunID:     req.RunID,
		Params:    req.Params,
		EventRule: rule,
		Sinks:     req.Sinks,
		Progress:  req.Progress,
	})
	if err != nil {
		return RunSummary{}, err
	}

	record := res.Record
	cfg := runConfig(record, rule)
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config:   cfg,
		Series:   record.Series,
		Recovery: record.Recovery,
		Events:   res.Events,
		Summary:  res.Summary,
	})
	if err != nil {
		return RunSummary{}, fmt.Errorf("write artifacts: %w", err)
	}
	if err := stats.AppendRunIndex(c.artifactsDir, indexEntry(record, res.Summary)); err != nil {
		return RunSummary{}, fmt.Errorf("index run: %w", err)
	}

	summary := RunSummary{
		RunID:        record.ID,
		ArtifactsDir: runDir,
		Nodes:        record.Nodes,
		Iterations:   record.Iterations,
		Samples:      record.Samples(),
		SamplePhase:  record.SamplePhase,
		TotalSpikes:  res.Summary.TotalSpikes,
		MeanRate:     res.Summary.MeanRate,
		Elapsed:      res.Elapsed,
		Summary:      res.Summary,
	}

	if req.Plot {
		dir := req.PlotDir
		if dir == "" {
			dir = runDir
		}
		path, err := renderFigure(dir, req.PlotFormat, defaultPlotPoints, cfg, record.Series, res.Events)
		if err != nil {
			return summary, fmt.Errorf("plot run %s: %w", record.ID, err)
		}
		summary.FigurePath = path
	}
	if req.MetricsFile != "" {
		if err := c.metrics.WriteTextfile(req.MetricsFile); err != nil {
			return summary, fmt.Errorf("write metrics: %w", err)
		}
	}
	return summary, nil
}

// Runs lists indexed and stored runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if req.Limit == 0 {
		req.Limit = defaultRunsLimit
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	out := make([]RunItem, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e.RunID] = struct{}{}
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Topology:     e.Topology,
			Size:         e.Size,
			Nodes:        e.Nodes,
			Iterations:   e.Iterations,
			Samples:      e.Samples,
			Seed:         e.Seed,
			TotalSpikes:  e.TotalSpikes,
			MeanRate:     e.MeanRate,
		})
	}

	lab, err := c.ensureLab(ctx)
	if err != nil {
		return nil, err
	}
	headers, err := lab.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	for _, h := range headers {
		if _, ok := seen[h.ID]; ok {
			continue
		}
		out = append(out, RunItem{
			RunID:        h.ID,
			CreatedAtUTC: h.CreatedAtUTC,
			Topology:     h.Topology,
			Size:         h.Size,
			Nodes:        h.Nodes,
			Iterations:   h.Iterations,
			Samples:      h.Samples,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAtUTC > out[j].CreatedAtUTC
	})

	if len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func (c *Client) Show(ctx context.Context, sel RunSelector) (ShowResult, error) {
	runID, err := c.resolveRunID(ctx, sel, "show")
	if err != nil {
		return ShowResult{}, err
	}
	arts, err := c.loadRun(ctx, runID, "")
	if err != nil {
		return ShowResult{}, err
	}
	return ShowResult{Config: arts.Config, Summary: arts.Summary, HasRecovery: arts.Recovery != nil}, nil
}

// Series returns everything recorded for a run.
func (c *Client) Series(ctx context.Context, sel RunSelector) (stats.RunArtifacts, error) {
	runID, err := c.resolveRunID(ctx, sel, "series")
	if err != nil {
		return stats.RunArtifacts{}, err
	}
	return c.loadRun(ctx, runID, "")
}

func (c *Client) Events(ctx context.Context, req EventsRequest) ([]NodeEvents, error) {
	if req.Rule != "" {
		if _, err := events.ParseRule(req.Rule); err != nil {
			return nil, err
		}
	}
	runID, err := c.resolveRunID(ctx, req.RunSelector, "events")
	if err != nil {
		return nil, err
	}
	arts, err := c.loadRun(ctx, runID, req.Rule)
	if err != nil {
		return nil, err
	}

	nodes := req.Nodes
	if len(nodes) == 0 {
		nodes = make([]int, len(arts.Events))
		for k := range nodes {
			nodes[k] = k
		}
	}
	interval := arts.Config.SampleInterval()
	out := make([]NodeEvents, 0, len(nodes))
	for _, k := range nodes {
		if k < 0 || k >= len(arts.Events) {
			return nil, fmt.Errorf("node %d out of range [0, %d)", k, len(arts.Events))
		}
		spikes := arts.Events[k].Spikes()
		times := make([]float64, len(spikes))
		for i, tick := range spikes {
			times[i] = float64(tick) * interval
		}
		out = append(out, NodeEvents{Node: k, Label: events.Label(k), Spikes: spikes, Times: times})
	}
	return out, nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(ctx, req.RunSelector, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	if err := c.materialize(ctx, runID); err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) Plot(ctx context.Context, req PlotRequest) (PlotSummary, error) {
	if req.MaxPoints < 0 {
		return PlotSummary{}, errors.New("max points must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunSelector, "plot")
	if err != nil {
		return PlotSummary{}, err
	}
	arts, err := c.loadRun(ctx, runID, req.Rule)
	if err != nil {
		return PlotSummary{}, err
	}
	dir := req.Dir
	if dir == "" {
		dir = filepath.Join(c.artifactsDir, runID)
	}
	maxPoints := req.MaxPoints
	if maxPoints == 0 {
		maxPoints = defaultPlotPoints
	}
	path, err := renderFigure(dir, req.Format, maxPoints, arts.Config, arts.Series, arts.Events)
	if err != nil {
		return PlotSummary{}, err
	}
	return PlotSummary{RunID: runID, Path: path}, nil
}

// Delete removes a run from the store and from the artifact directory.
func (c *Client) Delete(ctx context.Context, runID string) error {
	if runID == "" {
		return errors.New("delete requires run id")
	}
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return err
	}
	_, inStore, err := lab.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if inStore {
		if err := lab.DeleteRun(ctx, runID); err != nil {
			return err
		}
	}
	removed, err := stats.RemoveRunArtifacts(c.artifactsDir, runID)
	if err != nil {
		return err
	}
	if !inStore && !removed {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// Watch follows the tick stream at req.Addr, calling handle for every tick
// frame until a run finishes. It returns that run's status.
func (c *Client) Watch(ctx context.Context, req WatchRequest, handle func(stream.Message) error) (string, error) {
	addr := req.Addr
	if addr == "" {
		addr = c.streamAddr
	}
	if addr == "" {
		return "", errors.New("watch requires a stream address")
	}
	sub, err := stream.NewSubscriber(addr, watchPoll)
	if err != nil {
		return "", err
	}
	defer sub.Close()

	lastFrame := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		msg, err := sub.Next()
		if errors.Is(err, mangos.ErrRecvTimeout) {
			if req.Idle > 0 && time.Since(lastFrame) >= req.Idle {
				return "", ErrWatchIdle
			}
			continue
		}
		if err != nil {
			return "", err
		}
		lastFrame = time.Now()
		if req.RunID != "" && msg.RunID != req.RunID {
			continue
		}
		if msg.Done {
			return msg.Status, nil
		}
		if handle != nil {
			if err := handle(msg); err != nil {
				return "", err
			}
		}
	}
}

func (c *Client) ensureLab(ctx context.Context) (*platform.Lab, error) {
	if c.lab != nil {
		return c.lab, nil
	}
	var modules []platform.SupportModule
	if c.streamAddr != "" {
		modules = append(modules, platform.NewStreamModule(c.streamAddr, c.metrics))
	}
	lab := platform.NewLab(platform.Config{
		Store:          c.store,
		Metrics:        c.metrics,
		Logger:         c.logger,
		SupportModules: modules,
	})
	if err := lab.Init(ctx); err != nil {
		return nil, err
	}
	c.lab = lab
	return c.lab, nil
}

func (c *Client) resolveRunID(ctx context.Context, sel RunSelector, action string) (string, error) {
	if sel.RunID != "" && sel.Latest {
		return "", errors.New("use either run id or latest")
	}
	if sel.RunID == "" && !sel.Latest {
		return "", fmt.Errorf("%s requires run id or latest", action)
	}
	if sel.RunID != "" {
		return sel.RunID, nil
	}

	runs, err := c.Runs(ctx, RunsRequest{Limit: 1})
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].RunID, nil
}

// loadRun prefers the artifact directory and falls back to the store. A
// non-empty rule re-extracts events when it differs from the recorded one.
func (c *Client) loadRun(ctx context.Context, runID, rule string) (stats.RunArtifacts, error) {
	arts, ok, err := stats.ReadRunArtifacts(c.artifactsDir, runID)
	if err != nil {
		return stats.RunArtifacts{}, err
	}
	if !ok {
		lab, err := c.ensureLab(ctx)
		if err != nil {
			return stats.RunArtifacts{}, err
		}
		record, found, err := lab.GetRun(ctx, runID)
		if err != nil {
			return stats.RunArtifacts{}, err
		}
		if !found {
			return stats.RunArtifacts{}, fmt.Errorf("run not found: %s", runID)
		}
		arts = artifactsFromRecord(record, events.RuleLocalMax)
	}

	if rule == "" {
		return arts, nil
	}
	parsed, err := events.ParseRule(rule)
	if err != nil {
		return stats.RunArtifacts{}, err
	}
	if string(parsed) != arts.Config.EventRule {
		arts.Config.EventRule = string(parsed)
		arts.Events = events.ExtractAll(arts.Series, arts.Config.Params.Threshold, parsed)
		arts.Summary = stats.Summarize(arts.Series, arts.Events, arts.Config.SampleInterval())
	}
	return arts, nil
}

// materialize writes the artifact directory of a store-only run.
func (c *Client) materialize(ctx context.Context, runID string) error {
	if _, ok, err := stats.ReadRunConfig(c.artifactsDir, runID); err != nil || ok {
		return err
	}
	arts, err := c.loadRun(ctx, runID, "")
	if err != nil {
		return err
	}
	if _, err := stats.WriteRunArtifacts(c.artifactsDir, arts); err != nil {
		return err
	}
	return nil
}

func artifactsFromRecord(record model.RunRecord, rule events.Rule) stats.RunArtifacts {
	cfg := runConfig(record, rule)
	evs := events.ExtractAll(record.Series, record.Params.Threshold, rule)
	return stats.RunArtifacts{
		Config:   cfg,
		Series:   record.Series,
		Recovery: record.Recovery,
		Events:   evs,
		Summary:  stats.Summarize(record.Series, evs, cfg.SampleInterval()),
	}
}

func runConfig(record model.RunRecord, rule events.Rule) stats.RunConfig {
	return stats.RunConfig{
		RunID:        record.ID,
		CreatedAtUTC: record.CreatedAtUTC,
		Params:       record.Params,
		Nodes:        record.Nodes,
		Iterations:   record.Iterations,
		SamplePhase:  record.SamplePhase,
		EventRule:    string(rule),
	}
}

func indexEntry(record model.RunRecord, summary stats.SeriesSummary) stats.RunIndexEntry {
	return stats.RunIndexEntry{
		RunID:        record.ID,
		Topology:     record.Params.Topology,
		Size:         record.Params.Size,
		Nodes:        record.Nodes,
		Iterations:   record.Iterations,
		Samples:      record.Samples(),
		Seed:         record.Params.Seed,
		Workers:      record.Params.Workers,
		TotalSpikes:  summary.TotalSpikes,
		MeanRate:     summary.MeanRate,
		CreatedAtUTC: record.CreatedAtUTC,
	}
}

func renderFigure(dir, format string, maxPoints int, cfg stats.RunConfig, series [][]float64, evs []events.Series) (string, error) {
	if format == "" {
		format = defaultPlotFormat
	}
	path, err := stats.NextSequentialPath(dir, figurePrefix, format, 0)
	if err != nil {
		return "", err
	}
	if _, err := plot.Format(path); err != nil {
		return "", err
	}
	fig := plot.NewFigure(figureTitle(cfg), series, evs, cfg.SampleInterval())
	fig.MaxLinePoints = maxPoints
	if err := plot.RenderFile(path, fig, plot.DefaultWidth, plot.DefaultHeight); err != nil {
		return "", err
	}
	return path, nil
}

func figureTitle(cfg stats.RunConfig) string {
	if cfg.Params.Topology == lattice.KindTorus {
		return fmt.Sprintf("%s, torus %dx%d", cfg.RunID, cfg.Params.Size, cfg.Params.Size)
	}
	return fmt.Sprintf("%s, ring n=%d", cfg.RunID, cfg.Params.Size)
}
