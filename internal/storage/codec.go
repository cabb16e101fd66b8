package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/snappy"

	"chialvo/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// EncodeRun serializes a run as snappy-compressed JSON.
func EncodeRun(run model.RunRecord) ([]byte, error) {
	raw, err := json.Marshal(run)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("decompress run: %w", err)
	}
	var run model.RunRecord
	if err := json.Unmarshal(raw, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

func cloneRun(run model.RunRecord) model.RunRecord {
	run.Series = cloneMatrix(run.Series)
	run.Recovery = cloneMatrix(run.Recovery)
	return run
}

func cloneMatrix(in [][]float64) [][]float64 {
	if in == nil {
		return nil
	}
	out := make([][]float64, len(in))
	for i, row := range in {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
