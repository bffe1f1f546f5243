package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grammartutor/internal/course"
	"grammartutor/internal/db"
	"grammartutor/internal/lessons"
	_ "grammartutor/internal/lessons/english"
	"grammartutor/internal/logger"
	"grammartutor/internal/middleware"
	"grammartutor/internal/practice"
	"grammartutor/internal/progress"
	"grammartutor/internal/speech"
	"grammartutor/web"
)

type fixture struct {
	handler  http.Handler
	mgr      *practice.Manager
	sessions *middleware.SessionStore
	queries  *db.Queries
	speech   *fakeSpeech
}

type fakeSpeech struct {
	err        error
	lastLocale string
	lastText   string
}

func (f *fakeSpeech) Speak(_ context.Context, text, locale string) (*speech.Audio, error) {
	f.lastText, f.lastLocale = text, locale
	if f.err != nil {
		return nil, f.err
	}
	return &speech.Audio{Data: []byte("ID3"), ContentType: "audio/mpeg"}, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := logger.Nop()

	database, err := db.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	queries := db.New(database)

	tmpl, err := NewTemplateRenderer(web.Templates())
	require.NoError(t, err)

	tracker := progress.NewTracker(database, log)
	c := course.FromCatalog()
	mgr := practice.NewManager(practice.Config{
		AdvanceDelay:  40 * time.Millisecond,
		ShakeDuration: 250 * time.Millisecond,
		SessionTTL:    time.Hour,
	}, nil, tracker, c, log)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- mgr.Run(runCtx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	sessions := middleware.NewSessionStore()
	fs := &fakeSpeech{}
	h := &Handlers{
		Auth:        NewAuthHandler(queries, sessions, tmpl, log),
		Lessons:     NewLessonHandler(queries, tracker, c, tmpl, log),
		Practice:    NewPracticeHandler(mgr, tmpl, log),
		Speech:      NewSpeechHandler(fs, log),
		Preferences: NewPreferenceHandler(sessions),
		Sessions:    sessions,
		Static:      web.Static(),
	}
	return &fixture{handler: h.Routes(), mgr: mgr, sessions: sessions, queries: queries, speech: fs}
}

func (f *fixture) do(t *testing.T, method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	switch {
	case strings.HasPrefix(body, "{"):
		req.Header.Set("Content-Type", "application/json")
	case body != "":
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) startAPI(t *testing.T, lessonID, practiceID string, cookie *http.Cookie) startResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/lessons/"+lessonID+"/practice/"+practiceID, "", cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp startResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (f *fixture) waitIndex(t *testing.T, id string, index int) {
	t.Helper()
	s, err := f.mgr.Get(context.Background(), id)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Index == index && !snap.Answered
	}, time.Second, 2*time.Millisecond)
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.CookieName && c.Value != "" {
			return c
		}
	}
	return nil
}

func TestHome(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, c := range lessons.Categories {
		assert.Contains(t, body, c.Label())
	}
	assert.Contains(t, body, `/lessons/present-simple`)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/nope", "", nil).Code)
}

func TestLessonView(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/lessons/present-simple", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/lessons/present-simple/practice/choose"`)

	ids := course.FromCatalog().IDs()
	last := ids[len(ids)-1]
	for i, id := range ids[:len(ids)-1] {
		rec := f.do(t, http.MethodGet, "/lessons/"+id, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, id)
		assert.Contains(t, rec.Body.String(), `href="/lessons/`+ids[i+1]+`"`, id)
	}
	rec = f.do(t, http.MethodGet, "/lessons/"+last, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Next lesson:")

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/lessons/missing", "", nil).Code)
}

func TestStatic(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/static/app.js", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPracticeForms(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/lessons/present-simple/practice/choose", "", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/practice/"))
	id := strings.TrimPrefix(loc, "/practice/")

	rec = f.do(t, http.MethodGet, loc, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Step 1 of 4")
	assert.NotContains(t, rec.Body.String(), "is_correct")

	rec = f.do(t, http.MethodPost, loc+"/select", "choice=0", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	rec = f.do(t, http.MethodGet, loc, "", nil)
	assert.Contains(t, rec.Body.String(), "Try again")

	rec = f.do(t, http.MethodPost, loc+"/select", "choice=1", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	f.waitIndex(t, id, 1)

	rec = f.do(t, http.MethodPost, loc+"/jump", "index=3", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	rec = f.do(t, http.MethodGet, loc, "", nil)
	assert.Contains(t, rec.Body.String(), "Step 4 of 4")

	rec = f.do(t, http.MethodPost, loc+"/continue", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, loc+"/select", "choice=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/practice/unknown", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/lessons/present-simple/practice/nope", "", nil).Code)
}

func TestPracticeAPI_RunThrough(t *testing.T) {
	f := newFixture(t)
	start := f.startAPI(t, "present-simple", "choose", nil)
	id := start.SessionID
	require.NotNil(t, start.View.Step)
	assert.Equal(t, 1, start.View.Step.Number)
	assert.True(t, start.View.AllowJump)

	api := "/api/practice/" + id
	rec := f.do(t, http.MethodPost, api+"/continue", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, api+"/select", `{"choice":0}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sel selectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	assert.Equal(t, practice.OutcomeIncorrect.String(), sel.Outcome)
	assert.Equal(t, 0, sel.View.State.Index)
	assert.NotContains(t, rec.Body.String(), "is_correct")

	rec = f.do(t, http.MethodPost, api+"/select", `{"choice":9}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	l := lessons.GetLesson("present-simple")
	steps := l.Practice("choose").Steps
	for i, step := range steps {
		rec = f.do(t, http.MethodPost, api+"/select", `{"choice":`+itoa(step.CorrectIndex())+`}`, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
		assert.Equal(t, practice.OutcomeCorrect.String(), sel.Outcome)
		require.NotNil(t, sel.View.Step)
		assert.Equal(t, step.CorrectText(), sel.View.Step.Answer)
		f.waitIndex(t, id, i+1)
	}

	rec = f.do(t, http.MethodGet, api, "", nil)
	var view PracticeView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.State.Completed)
	assert.Nil(t, view.Step)
	require.NotNil(t, view.Completion)
	assert.Equal(t, 1, view.State.Mistakes())

	rec = f.do(t, http.MethodPost, api+"/select", `{"choice":0}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, api+"/continue", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cont continueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cont))
	assert.Equal(t, continueResponse{
		LessonID:   "present-simple",
		PracticeID: "build",
		Location:   "/lessons/present-simple#build",
	}, cont)
}

func TestPracticeAPI_SelectRequiresChoice(t *testing.T) {
	f := newFixture(t)
	start := f.startAPI(t, "present-simple", "choose", nil)
	api := "/api/practice/" + start.SessionID

	for _, body := range []string{`{}`, `{"words":["plays"]}`} {
		rec := f.do(t, http.MethodPost, api+"/select", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := f.do(t, http.MethodGet, api, "", nil)
	var view PracticeView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 0, view.State.Mistakes())
	assert.False(t, view.State.Answered)
	assert.Equal(t, 0, view.State.Index)
}

func TestPracticeAPI_JumpAndBuilder(t *testing.T) {
	f := newFixture(t)

	choose := f.startAPI(t, "present-simple", "choose", nil)
	rec := f.do(t, http.MethodPost, "/api/practice/"+choose.SessionID+"/jump", `{"index":2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view PracticeView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 2, view.State.Index)

	rec = f.do(t, http.MethodPost, "/api/practice/"+choose.SessionID+"/jump", `{"index":99}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	build := f.startAPI(t, "present-simple", "build", nil)
	api := "/api/practice/" + build.SessionID
	rec = f.do(t, http.MethodPost, api+"/jump", `{"index":1}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.NotNil(t, build.View.Step)
	assert.NotEmpty(t, build.View.Step.Words)
	assert.Empty(t, build.View.Step.Choices)

	rec = f.do(t, http.MethodPost, api+"/select", `{"words":["every","He","reads","night"]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sel selectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	assert.Equal(t, practice.OutcomeIncorrect.String(), sel.Outcome)

	rec = f.do(t, http.MethodPost, api+"/select", `{"words":["He","reads","every","night"]}`, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	assert.Equal(t, practice.OutcomeCorrect.String(), sel.Outcome)
	assert.Equal(t, "He reads every night", sel.View.Step.Spoken)

	rec = f.do(t, http.MethodPost, api+"/restart", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 0, view.State.Index)
	assert.False(t, view.State.Answered)
}

func TestRegisterLoginAndPrivateSessions(t *testing.T) {
	f := newFixture(t)

	form := url.Values{
		"display_name": {"Mei"},
		"username":     {"mei"},
		"email":        {"mei@example.com"},
		"password":     {"secret1"},
	}
	rec := f.do(t, http.MethodPost, "/register", form.Encode(), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)

	user, err := f.queries.GetUserByUsername(context.Background(), "mei")
	require.NoError(t, err)
	sess, ok := f.sessions.Get(cookie.Value)
	require.True(t, ok)
	assert.Equal(t, user.ID, sess.UserID)

	rec = f.do(t, http.MethodGet, "/", "", cookie)
	assert.Contains(t, rec.Body.String(), "Mei")

	start := f.startAPI(t, "present-simple", "choose", cookie)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/practice/"+start.SessionID, "", cookie).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/practice/"+start.SessionID, "", nil).Code)

	rec = f.do(t, http.MethodPost, "/login", url.Values{"username": {"mei"}, "password": {"wrong"}}.Encode(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password")

	rec = f.do(t, http.MethodPost, "/login", url.Values{"username": {"mei"}, "password": {"secret1"}}.Encode(), nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotNil(t, sessionCookie(rec))

	rec = f.do(t, http.MethodPost, "/register", form.Encode(), nil)
	assert.Contains(t, rec.Body.String(), "already taken")

	rec = f.do(t, http.MethodGet, "/logout", "", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	_, ok = f.sessions.Get(cookie.Value)
	assert.False(t, ok)
}

func TestSpeech(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/speak?text=Hello", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ID3", rec.Body.String())
	assert.Equal(t, "", f.speech.lastLocale)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/speak", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/speak?text=Hi&locale=fr-FR", "", nil).Code)

	rec = f.do(t, http.MethodPost, "/api/preference/voice", "locale=en-GB", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)

	f.do(t, http.MethodGet, "/api/speak?text=Hello", "", cookie)
	assert.Equal(t, "en-GB", f.speech.lastLocale)

	rec = f.do(t, http.MethodPost, "/api/preference/voice", "locale=en-AU", cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, sessionCookie(rec), "existing session is updated in place")
	f.do(t, http.MethodGet, "/api/speak?text=Hello", "", cookie)
	assert.Equal(t, "en-AU", f.speech.lastLocale)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/preference/voice", "locale=klingon", nil).Code)

	f.speech.err = speech.ErrUnavailable
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodGet, "/api/speak?text=Hello", "", nil).Code)
	f.speech.err = speech.ErrSuperseded
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodGet, "/api/speak?text=Hello", "", nil).Code)
}

func itoa(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}
