package practice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"grammartutor/internal/course"
	"grammartutor/internal/lessons"
	"grammartutor/internal/logger"
)

var (
	ErrSessionNotFound = errors.New("practice session not found")
	ErrUnknownPractice = errors.New("unknown lesson or practice")
)

// Result is reported once when a session reaches its summary screen.
type Result struct {
	SessionID   string
	LearnerID   int64
	LessonID    string
	PracticeID  string
	Steps       int
	Mistakes    int
	FirstTry    int
	CompletedAt time.Time
}

// Recorder persists completed practices.
type Recorder interface {
	RecordPractice(ctx context.Context, r Result) error
}

type Config struct {
	AdvanceDelay  time.Duration
	ShakeDuration time.Duration
	SessionTTL    time.Duration
	SnapshotTTL   time.Duration
	Clock         Clock
}

// Manager owns the live practice sessions.
type Manager struct {
	cfg      Config
	store    SnapshotStore
	recorder Recorder
	course   *course.Course
	log      *logger.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. recorder may be nil.
func NewManager(cfg Config, store SnapshotStore, recorder Recorder, c *course.Course, log *logger.Logger) *Manager {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 24 * time.Hour
	}
	if cfg.SnapshotTTL < cfg.SessionTTL {
		cfg.SnapshotTTL = cfg.SessionTTL
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		recorder: recorder,
		course:   c,
		log:      log.With("component", "PracticeManager"),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Start opens a new session on a lesson's practice.
func (m *Manager) Start(ctx context.Context, learnerID int64, lessonID, practiceID string) (*Session, error) {
	l, p := lessons.GetPractice(lessonID, practiceID)
	if p == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownPractice, lessonID, practiceID)
	}

	s := m.newSession(uuid.NewString(), learnerID, l, p)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	snap := s.Snapshot()
	if err := m.store.Save(ctx, snap); err != nil {
		m.log.Warn("save snapshot failed", "session", s.ID, "error", err)
	}
	if snap.Completed {
		s.complete(snap)
	}
	m.log.Debug("practice started", "session", s.ID, "lesson", lessonID, "practice", practiceID)
	return s, nil
}

// Get returns a live session, rebuilding it from its stored snapshot if it was evicted.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s := m.sessions[id]
	m.mu.RUnlock()
	if s != nil {
		s.touch()
		return s, nil
	}

	snap, err := m.store.Load(ctx, id)
	if errors.Is(err, ErrSnapshotNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	l, p := lessons.GetPractice(snap.LessonID, snap.PracticeID)
	if p == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownPractice, snap.LessonID, snap.PracticeID)
	}

	s = m.newSession(snap.SessionID, snap.LearnerID, l, p)
	s.stepper.restore(snap.Index, snap.StepMistakes, snap.Solved, snap.Seq)
	s.recorded = snap.Completed
	s.lastSeq = snap.Seq
	s.savedSeq = snap.Seq

	m.mu.Lock()
	if existing := m.sessions[id]; existing != nil {
		m.mu.Unlock()
		s.stepper.Stop()
		return existing, nil
	}
	m.sessions[id] = s
	m.mu.Unlock()

	m.log.Debug("practice restored", "session", id, "index", snap.Index)
	return s, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Run evicts idle sessions until ctx is done, then closes the rest.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.cfg.SessionTTL / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return nil
		case <-ticker.C:
			m.Evict(ctx)
		}
	}
}

// Evict drops sessions idle longer than the TTL and returns how many were dropped.
// Snapshots of unfinished sessions stay in the store so Get can restore them,
// until they are older than SnapshotTTL.
func (m *Manager) Evict(ctx context.Context) int {
	cutoff := m.now().Add(-m.cfg.SessionTTL)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.close()
		if s.Snapshot().Completed {
			if err := m.store.Delete(ctx, s.ID); err != nil {
				m.log.Warn("delete snapshot failed", "session", s.ID, "error", err)
			}
		}
	}
	if len(expired) > 0 {
		m.log.Info("evicted idle practice sessions", "count", len(expired))
	}

	if es, ok := m.store.(expiringStore); ok {
		n, err := es.Expire(ctx, m.now().Add(-m.cfg.SnapshotTTL))
		if err != nil {
			m.log.Warn("expire snapshots failed", "error", err)
		} else if n > 0 {
			m.log.Debug("expired practice snapshots", "count", n)
		}
	}
	return len(expired)
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.close()
	}
}

func (m *Manager) newSession(id string, learnerID int64, l *lessons.Lesson, p *lessons.Practice) *Session {
	s := &Session{
		ID:        id,
		LearnerID: learnerID,
		Lesson:    l,
		Practice:  p,
		mgr:       m,
		subs:      make(map[int]chan Snapshot),
		lastSeen:  m.now(),
	}
	s.stepper = NewStepper(p, Options{
		AdvanceDelay:  m.cfg.AdvanceDelay,
		ShakeDuration: m.cfg.ShakeDuration,
		Clock:         m.cfg.Clock,
		OnChange:      s.onChange,
		OnComplete:    s.onContinue,
	})
	return s
}
