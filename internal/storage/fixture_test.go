package storage

import (
	"chialvo/internal/model"
	"chialvo/internal/simulation"
)

func sampleRun(id, createdAt string) model.RunRecord {
	params := simulation.DefaultParams()
	params.Tmax = 1
	return model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              id,
		CreatedAtUTC:    createdAt,
		Params:          params,
		Nodes:           2,
		Iterations:      100,
		SamplePhase:     "pre",
		Series:          [][]float64{{-1.25, 0.5, 1.7}, {0.3, -0.4, 0.9}},
	}
}
