package lessons

import (
	"sort"
	"sync"
)

var (
	mu      sync.RWMutex
	lessons []*Lesson
	byID    = make(map[string]*Lesson)
)

// Register adds lessons to the global catalog.
// Typically called from a content package's init() function.
func Register(ls []*Lesson) {
	mu.Lock()
	defer mu.Unlock()

	for _, l := range ls {
		if _, ok := byID[l.ID]; !ok {
			lessons = append(lessons, l)
		}
		byID[l.ID] = l
	}
	sort.SliceStable(lessons, func(i, j int) bool {
		return lessons[i].Order < lessons[j].Order
	})
}

// GetAllLessons returns all lessons sorted by order.
func GetAllLessons() []*Lesson {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]*Lesson, len(lessons))
	copy(out, lessons)
	return out
}

// GetLesson returns a lesson by ID, or nil if not found.
func GetLesson(id string) *Lesson {
	mu.RLock()
	defer mu.RUnlock()
	return byID[id]
}

// GetPractice returns a lesson and one of its practices, or nils.
func GetPractice(lessonID, practiceID string) (*Lesson, *Practice) {
	l := GetLesson(lessonID)
	if l == nil {
		return nil, nil
	}
	p := l.Practice(practiceID)
	if p == nil {
		return nil, nil
	}
	return l, p
}

// ByCategory groups lessons for the menu, keeping catalog order inside each group.
func ByCategory() map[Category][]*Lesson {
	out := make(map[Category][]*Lesson)
	for _, l := range GetAllLessons() {
		out[l.Category] = append(out[l.Category], l)
	}
	return out
}
