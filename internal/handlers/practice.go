package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"grammartutor/internal/lessons"
	"grammartutor/internal/logger"
	"grammartutor/internal/middleware"
	"grammartutor/internal/practice"
)

type PracticeHandler struct {
	mgr  *practice.Manager
	tmpl *TemplateRenderer
	log  *logger.Logger
}

func NewPracticeHandler(m *practice.Manager, t *TemplateRenderer, log *logger.Logger) *PracticeHandler {
	return &PracticeHandler{mgr: m, tmpl: t, log: log.With("component", "PracticeHandler")}
}

// ChoiceView is an option as the learner sees it. Correct is only set once
// the step has been answered correctly.
type ChoiceView struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	Shaking bool   `json:"shaking,omitempty"`
	Correct bool   `json:"correct,omitempty"`
}

// StepView is the current step without its answer key.
type StepView struct {
	Widget   lessons.Widget `json:"widget"`
	Number   int            `json:"number"`
	Question string         `json:"question,omitempty"`
	Before   string         `json:"before,omitempty"`
	After    string         `json:"after,omitempty"`
	Choices  []ChoiceView   `json:"choices,omitempty"`
	Words    []lessons.Word `json:"words,omitempty"`
	Hint     string         `json:"hint,omitempty"`
	Answer   string         `json:"answer,omitempty"`
	Spoken   string         `json:"spoken,omitempty"`
}

type PracticeView struct {
	State         practice.Snapshot   `json:"state"`
	Step          *StepView           `json:"step,omitempty"`
	LessonTitle   string              `json:"lesson_title"`
	PracticeTitle string              `json:"practice_title"`
	Story         string              `json:"story,omitempty"`
	AllowJump     bool                `json:"allow_jump"`
	Completion    *lessons.Completion `json:"completion,omitempty"`
}

func newPracticeView(s *practice.Session) PracticeView {
	return viewOf(s, s.Snapshot())
}

// viewOf renders snap. Content is immutable, so the step is read from the
// practice at the snapshot's index rather than from the live stepper.
func viewOf(s *practice.Session, snap practice.Snapshot) PracticeView {
	v := PracticeView{
		State:         snap,
		LessonTitle:   s.Lesson.Title,
		PracticeTitle: s.Practice.Title,
		Story:         s.Practice.Story,
		AllowJump:     s.Practice.AllowJump,
	}
	if snap.Completed || snap.Index >= len(s.Practice.Steps) {
		c := s.Practice.Completion
		v.Completion = &c
		return v
	}

	step := s.Practice.Steps[snap.Index]
	sv := &StepView{
		Widget:   s.Practice.Widget,
		Number:   snap.Index + 1,
		Question: step.Question,
		Words:    step.Words,
		Hint:     step.ChineseHint,
	}
	switch s.Practice.Widget {
	case lessons.WidgetFillBlank:
		if len(step.SentenceParts) == 2 {
			sv.Before, sv.After = step.SentenceParts[0], step.SentenceParts[1]
		}
	case lessons.WidgetStory:
		sv.Before, sv.After = step.PromptParts()
	case lessons.WidgetSentenceBuilder:
		sv.Hint = step.Chinese
	}
	for i, c := range step.Choices {
		sv.Choices = append(sv.Choices, ChoiceView{
			Index:   i,
			Text:    c.Text,
			Shaking: snap.Shaking && snap.ShakeChoice == i,
			Correct: snap.Success && c.IsCorrect,
		})
	}
	if snap.Success {
		sv.Answer = step.CorrectText()
		sv.Spoken = step.Spoken()
	}
	v.Step = sv
	return v
}

// statusFor maps practice errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, practice.ErrSessionNotFound), errors.Is(err, practice.ErrUnknownPractice):
		return http.StatusNotFound
	case errors.Is(err, practice.ErrCompleted), errors.Is(err, practice.ErrNotCompleted):
		return http.StatusConflict
	case errors.Is(err, practice.ErrInvalidAnswer), errors.Is(err, practice.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, practice.ErrJumpDisabled):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func (h *PracticeHandler) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.log.Error("practice request failed", "error", err)
	}
	http.Error(w, http.StatusText(code), code)
}

func (h *PracticeHandler) failJSON(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.log.Error("practice request failed", "error", err)
		msg = http.StatusText(code)
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// session loads the session named in the path. Sessions started by a
// signed-in learner are private to that learner.
func (h *PracticeHandler) session(r *http.Request) (*practice.Session, error) {
	s, err := h.mgr.Get(r.Context(), r.PathValue("session"))
	if err != nil {
		return nil, err
	}
	if s.LearnerID != 0 && s.LearnerID != middleware.GetUserID(r.Context()) {
		return nil, practice.ErrSessionNotFound
	}
	return s, nil
}

// parseAnswer reads an answer from a form: "choice" for option widgets,
// "words" (repeated or space separated) for the sentence builder.
func parseAnswer(r *http.Request) (practice.Answer, error) {
	if err := r.ParseForm(); err != nil {
		return practice.Answer{}, practice.ErrInvalidAnswer
	}
	a := practice.Answer{Choice: -1}
	if v := r.Form.Get("choice"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return a, practice.ErrInvalidAnswer
		}
		a.Choice = i
	}
	for _, v := range r.Form["words"] {
		a.Words = append(a.Words, strings.Fields(v)...)
	}
	return a, nil
}

func practicePath(id string) string { return "/practice/" + id }

// Start opens a session on a practice and redirects to it.
func (h *PracticeHandler) Start(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.Start(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("lesson"), r.PathValue("practice"))
	if err != nil {
		h.fail(w, err)
		return
	}
	http.Redirect(w, r, practicePath(s.ID), http.StatusSeeOther)
}

func (h *PracticeHandler) Page(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	v := newPracticeView(s)
	h.tmpl.Render(w, "practice.html", map[string]interface{}{
		"Title":    v.PracticeTitle,
		"View":     v,
		"Session":  s,
		"Steps":    s.Practice.Steps,
		"Refresh":  v.State.Answered || v.State.Shaking,
		"LessonID": s.Lesson.ID,
	})
}

func (h *PracticeHandler) Select(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	a, err := parseAnswer(r)
	if err == nil {
		_, err = s.Select(a)
	}
	if err != nil && !errors.Is(err, practice.ErrCompleted) {
		h.fail(w, err)
		return
	}
	http.Redirect(w, r, practicePath(s.ID), http.StatusSeeOther)
}

func (h *PracticeHandler) Jump(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	i, err := strconv.Atoi(r.FormValue("index"))
	if err != nil {
		h.fail(w, practice.ErrOutOfRange)
		return
	}
	if err := s.JumpTo(i); err != nil {
		h.fail(w, err)
		return
	}
	http.Redirect(w, r, practicePath(s.ID), http.StatusSeeOther)
}

func (h *PracticeHandler) Restart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	s.Restart()
	http.Redirect(w, r, practicePath(s.ID), http.StatusSeeOther)
}

// Continue leaves the summary screen for the next practice, lesson, or menu.
func (h *PracticeHandler) Continue(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	dest, err := s.Continue()
	if err != nil {
		h.fail(w, err)
		return
	}
	http.Redirect(w, r, dest.Path(), http.StatusSeeOther)
}

// JSON API

type startResponse struct {
	SessionID string       `json:"session_id"`
	View      PracticeView `json:"view"`
}

type selectResponse struct {
	Outcome string       `json:"outcome"`
	View    PracticeView `json:"view"`
}

type continueResponse struct {
	LessonID   string `json:"lesson_id,omitempty"`
	PracticeID string `json:"practice_id,omitempty"`
	Menu       bool   `json:"menu"`
	Location   string `json:"location"`
}

func (h *PracticeHandler) APIStart(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.Start(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("lesson"), r.PathValue("practice"))
	if err != nil {
		h.failJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{SessionID: s.ID, View: newPracticeView(s)})
}

func (h *PracticeHandler) APIState(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.failJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPracticeView(s))
}

func (h *PracticeHandler) APISelect(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.failJSON(w, err)
		return
	}
	// A body without "choice" must not pick the first option.
	a := practice.Answer{Choice: -1}
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		h.failJSON(w, practice.ErrInvalidAnswer)
		return
	}
	outcome, err := s.Select(a)
	if err != nil {
		h.failJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selectResponse{Outcome: outcome.String(), View: newPracticeView(s)})
}

func (h *PracticeHandler) APIJump(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.failJSON(w, err)
		return
	}
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.failJSON(w, practice.ErrOutOfRange)
		return
	}
	if err := s.JumpTo(req.Index); err != nil {
		h.failJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPracticeView(s))
}

func (h *PracticeHandler) APIRestart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.failJSON(w, err)
		return
	}
	s.Restart()
	writeJSON(w, http.StatusOK, newPracticeView(s))
}

func (h *PracticeHandler) APIContinue(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.failJSON(w, err)
		return
	}
	dest, err := s.Continue()
	if err != nil {
		h.failJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, continueResponse{
		LessonID:   dest.LessonID,
		PracticeID: dest.PracticeID,
		Menu:       dest.IsMenu(),
		Location:   dest.Path(),
	})
}
