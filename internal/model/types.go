package model

import "chialvo/internal/simulation"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord is one completed simulation as persisted by a store.
type RunRecord struct {
	VersionedRecord
	ID           string            `json:"id"`
	CreatedAtUTC string            `json:"created_at_utc"`
	Params       simulation.Params `json:"params"`
	Nodes        int               `json:"nodes"`
	Iterations   int               `json:"iterations"`
	SamplePhase  string            `json:"sample_phase"`
	Series       [][]float64       `json:"series"`
	Recovery     [][]float64       `json:"recovery,omitempty"`
}

// Samples is the number of recorded ticks per node.
func (r RunRecord) Samples() int {
	if len(r.Series) == 0 {
		return 0
	}
	return len(r.Series[0])
}

// Header returns the listing view of the record.
func (r RunRecord) Header() RunHeader {
	return RunHeader{
		ID:           r.ID,
		CreatedAtUTC: r.CreatedAtUTC,
		Topology:     r.Params.Topology,
		Size:         r.Params.Size,
		Nodes:        r.Nodes,
		Iterations:   r.Iterations,
		Samples:      r.Samples(),
	}
}

// RunHeader is the series-free view used when listing runs.
type RunHeader struct {
	ID           string `json:"id"`
	CreatedAtUTC string `json:"created_at_utc"`
	Topology     string `json:"topology"`
	Size         int    `json:"size"`
	Nodes        int    `json:"nodes"`
	Iterations   int    `json:"iterations"`
	Samples      int    `json:"samples"`
}

// NewRunRecord stamps a simulation result with the current versions.
func NewRunRecord(id, createdAtUTC string, res simulation.Result, schemaVersion, codecVersion int) RunRecord {
	return RunRecord{
		VersionedRecord: VersionedRecord{SchemaVersion: schemaVersion, CodecVersion: codecVersion},
		ID:              id,
		CreatedAtUTC:    createdAtUTC,
		Params:          res.Params,
		Nodes:           res.Nodes,
		Iterations:      res.Iterations,
		SamplePhase:     string(res.SamplePhase),
		Series:          res.Series,
		Recovery:        res.Recovery,
	}
}
