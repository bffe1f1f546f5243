// Package course sequences lessons. The learner's path is an ordered list of
// lesson IDs walked by index; finishing the last practice of a lesson leads to
// the first practice of the next one, and finishing the last lesson leads back
// to the menu.
package course

import "grammartutor/internal/lessons"

// Destination is where the learner goes after finishing a practice.
// The zero value is the menu.
type Destination struct {
	LessonID   string `json:"lesson_id,omitempty"`
	PracticeID string `json:"practice_id,omitempty"`
}

// IsMenu reports whether the destination is the top-level menu.
func (d Destination) IsMenu() bool { return d.LessonID == "" }

// Path returns the URL of the destination page.
func (d Destination) Path() string {
	switch {
	case d.IsMenu():
		return "/"
	case d.PracticeID == "":
		return "/lessons/" + d.LessonID
	}
	return "/lessons/" + d.LessonID + "#" + d.PracticeID
}

type Course struct {
	order   []string
	index   map[string]int
	lessons map[string]*lessons.Lesson
}

// New builds a course over ls in the given order.
func New(ls []*lessons.Lesson) *Course {
	c := &Course{
		order:   make([]string, 0, len(ls)),
		index:   make(map[string]int, len(ls)),
		lessons: make(map[string]*lessons.Lesson, len(ls)),
	}
	for _, l := range ls {
		if _, dup := c.index[l.ID]; dup {
			continue
		}
		c.index[l.ID] = len(c.order)
		c.order = append(c.order, l.ID)
		c.lessons[l.ID] = l
	}
	return c
}

// FromCatalog builds a course over every registered lesson.
func FromCatalog() *Course {
	return New(lessons.GetAllLessons())
}

func (c *Course) Len() int { return len(c.order) }

// IDs returns the lesson IDs in course order.
func (c *Course) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Next returns the lesson after lessonID, or "" for the menu.
func (c *Course) Next(lessonID string) string {
	i, ok := c.index[lessonID]
	if !ok || i+1 >= len(c.order) {
		return ""
	}
	return c.order[i+1]
}

// Destination returns what follows practiceID in lessonID: the next practice of
// the same lesson, else the first practice of the next lesson, else the menu.
func (c *Course) Destination(lessonID, practiceID string) Destination {
	if l := c.lessons[lessonID]; l != nil {
		if p := l.NextPractice(practiceID); p != nil {
			return Destination{LessonID: lessonID, PracticeID: p.ID}
		}
	}
	next := c.Next(lessonID)
	if next == "" {
		return Destination{}
	}
	d := Destination{LessonID: next}
	if l := c.lessons[next]; l != nil && len(l.Practices) > 0 {
		d.PracticeID = l.Practices[0].ID
	}
	return d
}

// Cursor walks a course one lesson at a time.
type Cursor struct {
	course *Course
	pos    int
}

// Cursor returns a cursor positioned at lessonID, or at the start if lessonID is unknown.
func (c *Course) Cursor(lessonID string) *Cursor {
	return &Cursor{course: c, pos: c.index[lessonID]}
}

// Lesson returns the lesson under the cursor, or nil once the course is done.
func (cur *Cursor) Lesson() *lessons.Lesson {
	if cur.Done() {
		return nil
	}
	return cur.course.lessons[cur.course.order[cur.pos]]
}

// Advance moves to the next lesson and reports whether one exists.
func (cur *Cursor) Advance() bool {
	if cur.pos < len(cur.course.order) {
		cur.pos++
	}
	return !cur.Done()
}

func (cur *Cursor) Done() bool { return cur.pos >= len(cur.course.order) }
