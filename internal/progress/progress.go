// Package progress stores what signed-in learners have practised.
package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"grammartutor/internal/db"
	"grammartutor/internal/lessons"
	"grammartutor/internal/logger"
	"grammartutor/internal/practice"
)

const (
	StatusAvailable  = "available"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Tracker records practice results and lesson visits in the progress database.
// Learner ID 0 is an anonymous learner and is never recorded.
type Tracker struct {
	database *sql.DB
	queries  *db.Queries
	log      *logger.Logger
	now      func() time.Time
}

func NewTracker(database *sql.DB, log *logger.Logger) *Tracker {
	return &Tracker{
		database: database,
		queries:  db.New(database),
		log:      log.With("component", "ProgressTracker"),
		now:      time.Now,
	}
}

// RecordPractice stores one attempt and marks the lesson completed once every
// practice in it has been finished at least once.
func (t *Tracker) RecordPractice(ctx context.Context, r practice.Result) error {
	if r.LearnerID == 0 {
		return nil
	}

	tx, err := t.database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	q := t.queries.WithTx(tx)

	if err := q.CreatePracticeAttempt(ctx, db.CreatePracticeAttemptParams{
		UserID:     r.LearnerID,
		LessonID:   r.LessonID,
		PracticeID: r.PracticeID,
		SessionID:  r.SessionID,
		TotalSteps: int64(r.Steps),
		Mistakes:   int64(r.Mistakes),
		FirstTry:   int64(r.FirstTry),
	}); err != nil {
		return fmt.Errorf("record attempt %s: %w", r.SessionID, err)
	}

	prev, err := q.GetLessonProgress(ctx, db.GetLessonProgressParams{UserID: r.LearnerID, LessonID: r.LessonID})
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("get progress %s: %w", r.LessonID, err)
	}

	done, err := q.ListCompletedPractices(ctx, db.ListCompletedPracticesParams{UserID: r.LearnerID, LessonID: r.LessonID})
	if err != nil {
		return fmt.Errorf("list practices %s: %w", r.LessonID, err)
	}

	best := int64(r.Mistakes)
	if prev.BestMistakes.Valid && prev.BestMistakes.Int64 < best {
		best = prev.BestMistakes.Int64
	}

	at := r.CompletedAt
	if at.IsZero() {
		at = t.now()
	}
	params := db.UpsertLessonProgressParams{
		UserID:       r.LearnerID,
		LessonID:     r.LessonID,
		Status:       StatusInProgress,
		BestMistakes: sql.NullInt64{Int64: best, Valid: true},
		Attempts:     sql.NullInt64{Int64: prev.Attempts.Int64 + 1, Valid: true},
		LastAccessed: sql.NullTime{Time: at, Valid: true},
	}
	if allDone(lessons.GetLesson(r.LessonID), done) {
		params.Status = StatusCompleted
		params.CompletedAt = sql.NullTime{Time: at, Valid: true}
	}
	if err := q.UpsertLessonProgress(ctx, params); err != nil {
		return fmt.Errorf("update progress %s: %w", r.LessonID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	t.log.Debug("practice recorded", "learner", r.LearnerID, "lesson", r.LessonID,
		"practice", r.PracticeID, "status", params.Status)
	return nil
}

// Visit marks a lesson as in progress. Completed lessons stay completed.
func (t *Tracker) Visit(ctx context.Context, learnerID int64, lessonID string) error {
	if learnerID == 0 {
		return nil
	}
	return t.queries.UpsertLessonProgress(ctx, db.UpsertLessonProgressParams{
		UserID:       learnerID,
		LessonID:     lessonID,
		Status:       StatusInProgress,
		LastAccessed: sql.NullTime{Time: t.now(), Valid: true},
	})
}

// LessonStatus is one row of the menu's progress view.
type LessonStatus struct {
	Status       string
	BestMistakes int64
	Attempts     int64
	HasBest      bool
}

type Summary struct {
	Lessons   map[string]LessonStatus
	Completed int
	Total     int
	Attempts  int64
}

// Percent is the share of catalog lessons completed, rounded down.
func (s Summary) Percent() int {
	if s.Total == 0 {
		return 0
	}
	return s.Completed * 100 / s.Total
}

// Status returns the learner's status for a lesson, StatusAvailable if untouched.
func (s Summary) Status(lessonID string) LessonStatus {
	if st, ok := s.Lessons[lessonID]; ok {
		return st
	}
	return LessonStatus{Status: StatusAvailable}
}

// Summary reports a learner's progress across the given catalog.
func (t *Tracker) Summary(ctx context.Context, learnerID int64, catalog []*lessons.Lesson) (Summary, error) {
	s := Summary{Lessons: make(map[string]LessonStatus), Total: len(catalog)}
	if learnerID == 0 {
		return s, nil
	}

	rows, err := t.queries.ListLessonProgress(ctx, learnerID)
	if err != nil {
		return s, fmt.Errorf("list progress: %w", err)
	}
	known := make(map[string]bool, len(catalog))
	for _, l := range catalog {
		known[l.ID] = true
	}
	for _, p := range rows {
		if !known[p.LessonID] {
			continue
		}
		s.Lessons[p.LessonID] = LessonStatus{
			Status:       p.Status,
			BestMistakes: p.BestMistakes.Int64,
			HasBest:      p.BestMistakes.Valid,
			Attempts:     p.Attempts.Int64,
		}
		if p.Status == StatusCompleted {
			s.Completed++
		}
	}

	s.Attempts, err = t.queries.CountPracticeAttempts(ctx, learnerID)
	if err != nil {
		return s, fmt.Errorf("count attempts: %w", err)
	}
	return s, nil
}

func allDone(l *lessons.Lesson, done []string) bool {
	if l == nil || len(l.Practices) == 0 {
		return false
	}
	finished := make(map[string]bool, len(done))
	for _, id := range done {
		finished[id] = true
	}
	for _, p := range l.Practices {
		if !finished[p.ID] {
			return false
		}
	}
	return true
}
