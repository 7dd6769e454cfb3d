// Package storage persists per-keyword snapshots and run logs.
package storage

import (
	"context"

	"shopwatch/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	// GetSnapshot returns the stored snapshot for key. The bool reports
	// whether a snapshot was ever stored, even an empty one.
	GetSnapshot(ctx context.Context, key model.SnapshotKey) (model.Snapshot, bool, error)
	// PutSnapshot replaces the snapshot for key as a whole. Other keys are
	// never touched.
	PutSnapshot(ctx context.Context, key model.SnapshotKey, snap model.Snapshot) error

	RecordRun(ctx context.Context, run *model.RunLog) error
	// ListRuns returns up to limit run logs, newest first.
	ListRuns(ctx context.Context, limit int) ([]model.RunLog, error)

	Close() error
}
