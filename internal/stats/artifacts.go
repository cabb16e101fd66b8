package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"chialvo/internal/events"
	"chialvo/internal/simulation"
)

const (
	runIndexFile = "run_index.json"
	configFile   = "config.json"
	seriesFile   = "series.csv"
	recoveryFile = "recovery.csv"
	eventsFile   = "events.json"
	summaryFile  = "summary.json"

	timestampLayout = "%Y-%m-%dT%H:%M:%SZ"
	runIDLayout     = "%Y%m%d-%H%M%S"
)

type RunConfig struct {
	RunID        string            `json:"run_id"`
	CreatedAtUTC string            `json:"created_at_utc"`
	Params       simulation.Params `json:"params"`
	Nodes        int               `json:"nodes"`
	Iterations   int               `json:"iterations"`
	SamplePhase  string            `json:"sample_phase"`
	EventRule    string            `json:"event_rule"`
}

// SampleInterval is the simulated time between two recorded ticks.
func (c RunConfig) SampleInterval() float64 {
	return float64(c.Params.Stride) * c.Params.DT
}

type RunArtifacts struct {
	Config   RunConfig       `json:"config"`
	Series   [][]float64     `json:"series"`
	Recovery [][]float64     `json:"recovery,omitempty"`
	Events   []events.Series `json:"events"`
	Summary  SeriesSummary   `json:"summary"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Topology     string  `json:"topology"`
	Size         int     `json:"size"`
	Nodes        int     `json:"nodes"`
	Iterations   int     `json:"iterations"`
	Samples      int     `json:"samples"`
	Seed         int64   `json:"seed"`
	Workers      int     `json:"workers"`
	TotalSpikes  int     `json:"total_spikes"`
	MeanRate     float64 `json:"mean_rate"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// FormatTimestamp renders t in the UTC form used by configs and the run index.
func FormatTimestamp(t time.Time) string {
	return strftime.Format(timestampLayout, t.UTC())
}

// RunIDPrefix is the sortable time prefix of generated run ids.
func RunIDPrefix(t time.Time) string {
	return strftime.Format(runIDLayout, t.UTC())
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeSeriesCSV(filepath.Join(runDir, seriesFile), artifacts.Config, artifacts.Series); err != nil {
		return "", err
	}
	if artifacts.Recovery != nil {
		if err := writeSeriesCSV(filepath.Join(runDir, recoveryFile), artifacts.Config, artifacts.Recovery); err != nil {
			return "", err
		}
	}
	if err := writeJSON(filepath.Join(runDir, eventsFile), artifacts.Events); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), artifacts.Summary); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	// The file stays in append order; a replaced run moves to the end.
	kept := index[:0]
	for _, existing := range index {
		if existing.RunID != entry.RunID {
			kept = append(kept, existing)
		}
	}
	kept = append(kept, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), kept)
}

// ListRunIndex returns the index newest first. Entries with equal timestamps
// keep reverse append order.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}
	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// RemoveRunArtifacts deletes a run directory and its index entry. It reports
// whether anything was removed.
func RemoveRunArtifacts(baseDir, runID string) (bool, error) {
	if runID == "" {
		return false, fmt.Errorf("run id is required")
	}
	removed := false
	runDir := filepath.Join(baseDir, runID)
	if _, err := os.Stat(runDir); err == nil {
		if err := os.RemoveAll(runDir); err != nil {
			return false, err
		}
		removed = true
	} else if !os.IsNotExist(err) {
		return false, err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return removed, err
	}
	kept := index[:0]
	for _, entry := range index {
		if entry.RunID == runID {
			removed = true
			continue
		}
		kept = append(kept, entry)
	}
	if len(kept) == len(index) {
		return removed, nil
	}
	return removed, writeJSON(filepath.Join(baseDir, runIndexFile), kept)
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, seriesFile, eventsFile, summaryFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isOptionalArtifact(name) {
			continue
		}
		if err := copyFile(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			return "", err
		}
	}

	return dst, nil
}

func isOptionalArtifact(name string) bool {
	if name == recoveryFile {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".svg", ".prom":
		return true
	}
	return false
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	if err != nil || !ok {
		return RunConfig{}, ok, err
	}
	return cfg, true, nil
}

func ReadSummary(baseDir, runID string) (SeriesSummary, bool, error) {
	var summary SeriesSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	if err != nil || !ok {
		return SeriesSummary{}, ok, err
	}
	return summary, true, nil
}

func ReadEvents(baseDir, runID string) ([]events.Series, bool, error) {
	var out []events.Series
	ok, err := readJSON(filepath.Join(baseDir, runID, eventsFile), &out)
	if err != nil || !ok {
		return nil, ok, err
	}
	return out, true, nil
}

func ReadSeries(baseDir, runID string) ([][]float64, bool, error) {
	return readSeriesCSV(filepath.Join(baseDir, runID, seriesFile))
}

func ReadRecovery(baseDir, runID string) ([][]float64, bool, error) {
	return readSeriesCSV(filepath.Join(baseDir, runID, recoveryFile))
}

// ReadRunArtifacts loads everything WriteRunArtifacts wrote for runID.
func ReadRunArtifacts(baseDir, runID string) (RunArtifacts, bool, error) {
	cfg, ok, err := ReadRunConfig(baseDir, runID)
	if err != nil || !ok {
		return RunArtifacts{}, ok, err
	}
	series, ok, err := ReadSeries(baseDir, runID)
	if err != nil {
		return RunArtifacts{}, false, err
	}
	if !ok {
		return RunArtifacts{}, false, fmt.Errorf("run %s has no %s", runID, seriesFile)
	}
	recovery, _, err := ReadRecovery(baseDir, runID)
	if err != nil {
		return RunArtifacts{}, false, err
	}
	evs, _, err := ReadEvents(baseDir, runID)
	if err != nil {
		return RunArtifacts{}, false, err
	}
	summary, _, err := ReadSummary(baseDir, runID)
	if err != nil {
		return RunArtifacts{}, false, err
	}
	return RunArtifacts{Config: cfg, Series: series, Recovery: recovery, Events: evs, Summary: summary}, true, nil
}

// writeSeriesCSV writes one row per tick: tick, step, time, then one column
// per node.
func writeSeriesCSV(path string, cfg RunConfig, series [][]float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := make([]string, 0, 3+len(series))
	header = append(header, "tick", "step", "time")
	for k := range series {
		header = append(header, "node_"+strconv.Itoa(k))
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	ticks := 0
	if len(series) > 0 {
		ticks = len(series[0])
	}
	row := make([]string, len(header))
	for i := 0; i < ticks; i++ {
		step := i * cfg.Params.Stride
		row[0] = strconv.Itoa(i)
		row[1] = strconv.Itoa(step)
		row[2] = strconv.FormatFloat(float64(step)*cfg.Params.DT, 'f', -1, 64)
		for k := range series {
			row[3+k] = strconv.FormatFloat(series[k][i], 'f', -1, 64)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func readSeriesCSV(path string) ([][]float64, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return [][]float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 3 {
		return nil, false, fmt.Errorf("series header must have at least 3 columns")
	}

	nodes := len(header) - 3
	series := make([][]float64, nodes)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		for k := 0; k < nodes; k++ {
			value, err := strconv.ParseFloat(record[3+k], 64)
			if err != nil {
				return nil, false, err
			}
			series[k] = append(series[k], value)
		}
	}
	return series, true, nil
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
