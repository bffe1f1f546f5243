package handlers

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"grammartutor/internal/course"
	"grammartutor/internal/db"
	"grammartutor/internal/lessons"
	"grammartutor/internal/logger"
	"grammartutor/internal/middleware"
	"grammartutor/internal/progress"
)

type TemplateRenderer struct {
	templates map[string]*template.Template
}

var pages = []string{
	"home.html",
	"login.html",
	"lesson.html",
	"practice.html",
}

// NewTemplateRenderer parses each page together with layout.html from fsys.
func NewTemplateRenderer(fsys fs.FS) (*TemplateRenderer, error) {
	funcMap := template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"optionLetter": func(i int) string {
			return string(rune('A' + i))
		},
		"percent": func(part, total int) int {
			if total == 0 {
				return 0
			}
			return part * 100 / total
		},
	}

	templates := make(map[string]*template.Template)
	for _, page := range pages {
		tmpl, err := template.New("").Funcs(funcMap).ParseFS(fsys, "layout.html", page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		templates[page] = tmpl
	}

	return &TemplateRenderer{templates: templates}, nil
}

func (t *TemplateRenderer) Render(w http.ResponseWriter, name string, data interface{}) {
	t.RenderStatus(w, http.StatusOK, name, data)
}

func (t *TemplateRenderer) RenderStatus(w http.ResponseWriter, status int, name string, data interface{}) {
	tmpl, ok := t.templates[name]
	if !ok {
		http.Error(w, "template not found: "+name, http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

type LessonHandler struct {
	queries *db.Queries
	tracker *progress.Tracker
	course  *course.Course
	tmpl    *TemplateRenderer
	log     *logger.Logger
}

func NewLessonHandler(q *db.Queries, tr *progress.Tracker, c *course.Course, t *TemplateRenderer, log *logger.Logger) *LessonHandler {
	return &LessonHandler{queries: q, tracker: tr, course: c, tmpl: t, log: log.With("component", "LessonHandler")}
}

type LessonListItem struct {
	ID           string
	Title        string
	Subtitle     string
	Order        int
	Practices    int
	Status       string
	BestMistakes int64
	HasBest      bool
}

type CategoryGroup struct {
	Category lessons.Category
	Label    string
	Lessons  []LessonListItem
}

// Home is the menu: every lesson grouped by category, with progress for
// signed-in learners.
func (h *LessonHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	userID := middleware.GetUserID(r.Context())
	catalog := lessons.GetAllLessons()

	summary, err := h.tracker.Summary(r.Context(), userID, catalog)
	if err != nil {
		h.log.Warn("progress summary failed", "user", userID, "error", err)
	}

	byCategory := lessons.ByCategory()
	var groups []CategoryGroup
	for _, c := range lessons.Categories {
		ls := byCategory[c]
		if len(ls) == 0 {
			continue
		}
		g := CategoryGroup{Category: c, Label: c.Label()}
		for _, l := range ls {
			st := summary.Status(l.ID)
			g.Lessons = append(g.Lessons, LessonListItem{
				ID:           l.ID,
				Title:        l.Title,
				Subtitle:     l.Subtitle,
				Order:        l.Order,
				Practices:    len(l.Practices),
				Status:       st.Status,
				BestMistakes: st.BestMistakes,
				HasBest:      st.HasBest,
			})
		}
		groups = append(groups, g)
	}

	h.tmpl.Render(w, "home.html", map[string]interface{}{
		"Title":           "Home",
		"User":            getUser(r.Context(), h.queries, userID),
		"Groups":          groups,
		"Completed":       summary.Completed,
		"TotalLessons":    summary.Total,
		"ProgressPercent": summary.Percent(),
		"Attempts":        summary.Attempts,
	})
}

func (h *LessonHandler) LessonView(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	lesson := lessons.GetLesson(r.PathValue("lesson"))
	if lesson == nil {
		http.NotFound(w, r)
		return
	}

	if err := h.tracker.Visit(r.Context(), userID, lesson.ID); err != nil {
		h.log.Warn("mark lesson visited failed", "user", userID, "lesson", lesson.ID, "error", err)
	}

	var next *lessons.Lesson
	if id := h.course.Next(lesson.ID); id != "" {
		next = lessons.GetLesson(id)
	}

	h.tmpl.Render(w, "lesson.html", map[string]interface{}{
		"Title":      lesson.Title,
		"Lesson":     lesson,
		"NextLesson": next,
		"User":       getUser(r.Context(), h.queries, userID),
	})
}

func getUser(ctx context.Context, q *db.Queries, userID int64) *db.User {
	if userID == 0 {
		return nil
	}
	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		return nil
	}
	return &user
}
