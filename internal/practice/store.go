package practice

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is the persisted form of a practice session.
type Snapshot struct {
	SessionID  string `json:"session_id"`
	LearnerID  int64  `json:"learner_id"`
	LessonID   string `json:"lesson_id"`
	PracticeID string `json:"practice_id"`
	State
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotStore keeps session snapshots so a session survives eviction or a restart.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, sessionID string) (Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

// expiringStore is a store without its own TTL. Evict sweeps it.
type expiringStore interface {
	Expire(ctx context.Context, cutoff time.Time) (int, error)
}

type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]Snapshot)}
}

func (m *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	m.snaps[snap.SessionID] = snap
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[sessionID]
	if !ok {
		return Snapshot{}, ErrSnapshotNotFound
	}
	return snap, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.snaps, sessionID)
	m.mu.Unlock()
	return nil
}

// Expire deletes snapshots last updated before cutoff and returns how many went.
func (m *MemoryStore) Expire(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, snap := range m.snaps {
		if snap.UpdatedAt.Before(cutoff) {
			delete(m.snaps, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored snapshots.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snaps)
}
