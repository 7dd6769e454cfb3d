package storage

import (
	"context"
	"maps"
	"sync"

	"shopwatch/internal/model"
)

// Memory is an in-process Storage. Snapshots are copied in and out, so
// callers never share a map with the store.
type Memory struct {
	mu     sync.Mutex
	snaps  map[model.SnapshotKey]model.Snapshot
	runs   []model.RunLog
	nextID int64
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{snaps: make(map[model.SnapshotKey]model.Snapshot)}
}

// GetSnapshot returns a copy of the snapshot for key.
func (m *Memory) GetSnapshot(_ context.Context, key model.SnapshotKey) (model.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[key]
	if !ok {
		return model.Snapshot{}, false, nil
	}
	return maps.Clone(snap), true, nil
}

// PutSnapshot stores a copy of snap for key.
func (m *Memory) PutSnapshot(_ context.Context, key model.SnapshotKey, snap model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := maps.Clone(snap)
	if c == nil {
		c = model.Snapshot{}
	}
	m.snaps[key] = c
	return nil
}

// RecordRun appends run and populates its ID.
func (m *Memory) RecordRun(_ context.Context, run *model.RunLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	run.ID = m.nextID
	m.runs = append(m.runs, *run)
	return nil
}

// ListRuns returns up to limit run logs, newest first.
func (m *Memory) ListRuns(_ context.Context, limit int) ([]model.RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RunLog
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
