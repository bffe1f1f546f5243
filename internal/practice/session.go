package practice

import (
	"context"
	"sync"
	"time"

	"grammartutor/internal/course"
	"grammartutor/internal/lessons"
)

const subscriberBuffer = 8

// Session is one learner working through one practice.
type Session struct {
	ID        string
	LearnerID int64
	Lesson    *lessons.Lesson
	Practice  *lessons.Practice

	mgr     *Manager
	stepper *Stepper

	mu       sync.Mutex
	lastSeen time.Time
	lastSeq  uint64
	recorded bool
	closed   bool
	next     course.Destination
	subs     map[int]chan Snapshot
	nextSub  int

	saveMu   sync.Mutex
	savedSeq uint64
}

func (s *Session) Snapshot() Snapshot {
	return s.snapshot(s.stepper.State())
}

func (s *Session) snapshot(st State) Snapshot {
	return Snapshot{
		SessionID:  s.ID,
		LearnerID:  s.LearnerID,
		LessonID:   s.Lesson.ID,
		PracticeID: s.Practice.ID,
		State:      st,
		UpdatedAt:  s.mgr.now(),
	}
}

// Step returns the step being shown, and false on the summary screen.
func (s *Session) Step() (lessons.Step, bool) {
	return s.stepper.Step()
}

func (s *Session) Select(a Answer) (Outcome, error) {
	s.touch()
	return s.stepper.Select(a)
}

func (s *Session) JumpTo(i int) error {
	s.touch()
	return s.stepper.JumpTo(i)
}

func (s *Session) Restart() {
	s.touch()
	s.mu.Lock()
	s.recorded = false
	s.mu.Unlock()
	s.stepper.Reset()
}

// Continue leaves the summary screen and returns where the learner goes next.
func (s *Session) Continue() (course.Destination, error) {
	s.touch()
	if err := s.stepper.Continue(); err != nil {
		return course.Destination{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, nil
}

// onContinue is the stepper's completion callback.
func (s *Session) onContinue() {
	dest := s.mgr.course.Destination(s.Lesson.ID, s.Practice.ID)
	s.mu.Lock()
	s.next = dest
	s.mu.Unlock()
	s.mgr.log.Debug("practice continued", "session", s.ID, "next_lesson", dest.LessonID, "next_practice", dest.PracticeID)
}

// Subscribe returns a channel of snapshots and a func to stop receiving them.
// Slow readers miss intermediate snapshots but always get the newest one.
// The channel is closed when the session is evicted.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
			s.mu.Unlock()
		})
	}
}

func (s *Session) onChange(st State) {
	snap := s.snapshot(st)

	s.mu.Lock()
	if st.Seq <= s.lastSeq || s.closed {
		s.mu.Unlock()
		return
	}
	s.lastSeq = st.Seq
	for _, ch := range s.subs {
		offer(ch, snap)
	}
	s.mu.Unlock()

	s.save(snap)
	if st.Completed {
		s.complete(snap)
	}
}

// save writes snap to the store unless a newer snapshot got there first.
func (s *Session) save(snap Snapshot) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if snap.Seq <= s.savedSeq {
		return
	}
	s.savedSeq = snap.Seq

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.mgr.store.Save(ctx, snap); err != nil {
		s.mgr.log.Warn("save snapshot failed", "session", s.ID, "error", err)
	}
}

// complete reports the result to the recorder once per run through the practice.
func (s *Session) complete(snap Snapshot) {
	s.mu.Lock()
	if s.recorded {
		s.mu.Unlock()
		return
	}
	s.recorded = true
	s.mu.Unlock()

	s.mgr.log.Info("practice completed",
		"session", s.ID, "lesson", s.Lesson.ID, "practice", s.Practice.ID, "mistakes", snap.Mistakes())

	if s.mgr.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.mgr.recorder.RecordPractice(ctx, Result{
		SessionID:   s.ID,
		LearnerID:   s.LearnerID,
		LessonID:    s.Lesson.ID,
		PracticeID:  s.Practice.ID,
		Steps:       snap.Total,
		Mistakes:    snap.Mistakes(),
		FirstTry:    snap.FirstTry(),
		CompletedAt: snap.UpdatedAt,
	})
	if err != nil {
		s.mgr.log.Error("record practice failed", "session", s.ID, "error", err)
	}
}

func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.mgr.now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.stepper.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
