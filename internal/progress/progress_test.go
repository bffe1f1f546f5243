package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grammartutor/internal/db"
	"grammartutor/internal/lessons"
	"grammartutor/internal/logger"
	"grammartutor/internal/practice"
)

var _ practice.Recorder = (*Tracker)(nil)

var testCatalog = []*lessons.Lesson{
	{ID: "progress-a", Title: "A", Order: 2001, Practices: []lessons.Practice{{ID: "one"}, {ID: "two"}}},
	{ID: "progress-b", Title: "B", Order: 2002, Practices: []lessons.Practice{{ID: "only"}}},
}

func init() {
	lessons.Register(testCatalog)
}

func newTestTracker(t *testing.T) (*Tracker, int64) {
	t.Helper()
	database, err := db.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	u, err := db.New(database).CreateUser(context.Background(), db.CreateUserParams{
		Username: "ana", Email: "ana@example.com", PasswordHash: "x", DisplayName: "Ana",
	})
	require.NoError(t, err)

	tr := NewTracker(database, logger.Nop())
	tr.now = func() time.Time { return time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC) }
	return tr, u.ID
}

func result(learner int64, lesson, practiceID string, mistakes int) practice.Result {
	return practice.Result{
		SessionID:  lesson + "/" + practiceID,
		LearnerID:  learner,
		LessonID:   lesson,
		PracticeID: practiceID,
		Steps:      3,
		Mistakes:   mistakes,
		FirstTry:   3 - mistakes,
	}
}

func TestRecordPractice_CompletesLessonWhenAllPracticesDone(t *testing.T) {
	tr, uid := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.RecordPractice(ctx, result(uid, "progress-a", "one", 2)))
	s, err := tr.Summary(ctx, uid, testCatalog)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, s.Status("progress-a").Status)
	assert.Equal(t, 0, s.Completed)

	require.NoError(t, tr.RecordPractice(ctx, result(uid, "progress-a", "two", 1)))
	s, err = tr.Summary(ctx, uid, testCatalog)
	require.NoError(t, err)
	st := s.Status("progress-a")
	assert.Equal(t, StatusCompleted, st.Status)
	assert.True(t, st.HasBest)
	assert.Equal(t, int64(1), st.BestMistakes)
	assert.Equal(t, int64(2), st.Attempts)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 50, s.Percent())
	assert.Equal(t, int64(2), s.Attempts)

	assert.Equal(t, StatusAvailable, s.Status("progress-b").Status)
}

func TestRecordPractice_KeepsBestAndCompletion(t *testing.T) {
	tr, uid := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.RecordPractice(ctx, result(uid, "progress-b", "only", 0)))
	require.NoError(t, tr.RecordPractice(ctx, result(uid, "progress-b", "only", 3)))
	require.NoError(t, tr.Visit(ctx, uid, "progress-b"))

	s, err := tr.Summary(ctx, uid, testCatalog)
	require.NoError(t, err)
	st := s.Status("progress-b")
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, int64(0), st.BestMistakes)
	assert.Equal(t, int64(2), st.Attempts)
}

func TestAnonymousLearnerIsNotRecorded(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.RecordPractice(ctx, result(0, "progress-b", "only", 0)))
	require.NoError(t, tr.Visit(ctx, 0, "progress-b"))

	s, err := tr.Summary(ctx, 0, testCatalog)
	require.NoError(t, err)
	assert.Empty(t, s.Lessons)
	assert.Equal(t, 0, s.Percent())
}

func TestVisit(t *testing.T) {
	tr, uid := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Visit(ctx, uid, "progress-a"))
	p, err := db.New(tr.database).GetLessonProgress(ctx, db.GetLessonProgressParams{UserID: uid, LessonID: "progress-a"})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, p.Status)
	assert.False(t, p.CompletedAt.Valid)
	assert.True(t, p.LastAccessed.Valid)
}
