package db

import (
	"database/sql"
	"time"
)

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

type LessonProgress struct {
	UserID       int64
	LessonID     string
	Status       string
	BestMistakes sql.NullInt64
	Attempts     sql.NullInt64
	LastAccessed sql.NullTime
	CompletedAt  sql.NullTime
}

type PracticeAttempt struct {
	ID         int64
	UserID     int64
	LessonID   string
	PracticeID string
	SessionID  string
	TotalSteps int64
	Mistakes   int64
	FirstTry   int64
	CreatedAt  time.Time
}
