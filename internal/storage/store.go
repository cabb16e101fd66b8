package storage

import (
	"context"
	"errors"

	"chialvo/internal/model"
)

var ErrNotInitialized = errors.New("store is not initialized")

// Store persists completed simulation runs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunHeader, error)
	DeleteRun(ctx context.Context, id string) error
}
