package stats

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"chialvo/internal/events"
	"chialvo/internal/simulation"
)

func sampleArtifacts(runID string) RunArtifacts {
	params := simulation.DefaultParams()
	params.Stride = 10
	series := [][]float64{{0, 1, 0.2, 1.1, 0}, {-1, -0.5, 0.9, 0.1, 0.3}}
	evs := events.ExtractAll(series, params.Threshold, events.RuleLocalMax)
	cfg := RunConfig{
		RunID:        runID,
		CreatedAtUTC: "2026-03-04T05:06:07Z",
		Params:       params,
		Nodes:        2,
		Iterations:   50,
		SamplePhase:  "pre",
		EventRule:    string(events.RuleLocalMax),
	}
	return RunArtifacts{
		Config:  cfg,
		Series:  series,
		Events:  evs,
		Summary: Summarize(series, evs, cfg.SampleInterval()),
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "run-123"
	runDir, err := WriteRunArtifacts(baseDir, sampleArtifacts(runID))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	for _, file := range []string{"config.json", "series.csv", "events.json", "summary.json"} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}
	if _, err := os.Stat(filepath.Join(runDir, "recovery.csv")); !os.IsNotExist(err) {
		t.Fatalf("recovery.csv must only be written when recorded: %v", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "figure_1.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write figure: %v", err)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range []string{"config.json", "series.csv", "events.json", "summary.json", "figure_1.png"} {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	if _, err := ExportRunArtifacts(baseDir, "missing", outDir); err == nil {
		t.Fatal("expected export of a missing run to fail")
	}
}

func TestReadRunArtifactsRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	input := sampleArtifacts("run-1")
	input.Recovery = [][]float64{{1, 2, 3, 4, 5}, {0.5, 0.25, 0, -0.25, -0.5}}
	if _, err := WriteRunArtifacts(baseDir, input); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	loaded, ok, err := ReadRunArtifacts(baseDir, "run-1")
	if err != nil {
		t.Fatalf("read artifacts: %v", err)
	}
	if !ok {
		t.Fatal("expected artifacts")
	}
	if loaded.Config.Params != input.Config.Params || loaded.Config.EventRule != "local-max" {
		t.Fatalf("unexpected config: %+v", loaded.Config)
	}
	if len(loaded.Series) != 2 || loaded.Series[1][2] != 0.9 || len(loaded.Series[0]) != 5 {
		t.Fatalf("unexpected series: %+v", loaded.Series)
	}
	if loaded.Recovery[1][4] != -0.5 {
		t.Fatalf("unexpected recovery: %+v", loaded.Recovery)
	}
	if got := loaded.Events[0].Spikes(); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("unexpected events: %+v", got)
	}
	if loaded.Summary.TotalSpikes != input.Summary.TotalSpikes {
		t.Fatalf("unexpected summary: %+v", loaded.Summary)
	}

	if _, ok, err := ReadRunArtifacts(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, got ok=%t err=%v", ok, err)
	}
}

func TestSeriesCSVColumns(t *testing.T) {
	baseDir := t.TempDir()
	if _, err := WriteRunArtifacts(baseDir, sampleArtifacts("run-1")); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(baseDir, "run-1", "series.csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := "tick,step,time,node_0,node_1\n0,0,0,0,-1\n1,10,0.1,1,-0.5\n"
	if got := string(data); len(got) < len(want) || got[:len(want)] != want {
		t.Fatalf("unexpected csv prefix:\n%s", got)
	}
}

func TestRunIndexAppendAndSort(t *testing.T) {
	baseDir := t.TempDir()
	entries := []RunIndexEntry{
		{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z"},
		{RunID: "b", CreatedAtUTC: "2026-01-02T00:00:00Z"},
		{RunID: "c", CreatedAtUTC: "2026-01-02T00:00:00Z"},
	}
	for _, entry := range entries {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z", TotalSpikes: 7}); err != nil {
		t.Fatalf("replace a: %v", err)
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(index))
	}
	if index[0].RunID != "c" || index[1].RunID != "b" || index[2].RunID != "a" {
		t.Fatalf("unexpected order: %+v", index)
	}
	if index[2].TotalSpikes != 7 {
		t.Fatalf("expected replaced entry, got %+v", index[2])
	}

	if err := AppendRunIndex(baseDir, RunIndexEntry{}); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestRunIndexKeepsAppendOrderForEqualTimestamps(t *testing.T) {
	baseDir := t.TempDir()
	stamp := "2026-01-02T00:00:00Z"
	for _, id := range []string{"a", "b", "c", "d"} {
		if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: id, CreatedAtUTC: stamp}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	// Rewriting b makes it the latest; the others keep their relative order.
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "b", CreatedAtUTC: stamp, TotalSpikes: 3}); err != nil {
		t.Fatalf("replace b: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "e", CreatedAtUTC: stamp}); err != nil {
		t.Fatalf("append e: %v", err)
	}
	if _, err := RemoveRunArtifacts(baseDir, "c"); err != nil {
		t.Fatalf("remove c: %v", err)
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	want := []string{"e", "b", "d", "a"}
	if len(index) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), index)
	}
	for i, id := range want {
		if index[i].RunID != id {
			t.Fatalf("entry %d = %s, want %s (index %+v)", i, index[i].RunID, id, index)
		}
	}
	if index[1].TotalSpikes != 3 {
		t.Fatalf("expected replaced entry, got %+v", index[1])
	}
}

func TestListRunIndexEmpty(t *testing.T) {
	index, err := ListRunIndex(t.TempDir())
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 0 {
		t.Fatalf("expected empty index, got %+v", index)
	}
}

func TestTimestampFormats(t *testing.T) {
	at := time.Date(2026, 7, 8, 9, 10, 11, 0, time.FixedZone("X", 3600))
	if got := FormatTimestamp(at); got != "2026-07-08T08:10:11Z" {
		t.Fatalf("unexpected timestamp: %s", got)
	}
	if got := RunIDPrefix(at); got != "20260708-081011" {
		t.Fatalf("unexpected run id prefix: %s", got)
	}
}

func TestRemoveRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	for _, runID := range []string{"keep", "drop"} {
		if _, err := WriteRunArtifacts(baseDir, sampleArtifacts(runID)); err != nil {
			t.Fatalf("write %s: %v", runID, err)
		}
		if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: runID, CreatedAtUTC: "2026-03-04T05:06:07Z"}); err != nil {
			t.Fatalf("append %s: %v", runID, err)
		}
	}

	removed, err := RemoveRunArtifacts(baseDir, "drop")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Fatal("expected run to be removed")
	}
	if _, err := os.Stat(filepath.Join(baseDir, "drop")); !os.IsNotExist(err) {
		t.Fatalf("expected run directory to be gone: %v", err)
	}
	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 1 || index[0].RunID != "keep" {
		t.Fatalf("unexpected index after remove: %+v", index)
	}

	removed, err = RemoveRunArtifacts(baseDir, "drop")
	if err != nil || removed {
		t.Fatalf("second remove: removed=%t err=%v", removed, err)
	}
}
