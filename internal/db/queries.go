package db

import (
	"context"
	"database/sql"
)

const createUser = `
INSERT INTO users (username, email, password_hash, display_name)
VALUES (?, ?, ?, ?)
`

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	res, err := q.db.ExecContext(ctx, createUser,
		arg.Username,
		arg.Email,
		arg.PasswordHash,
		arg.DisplayName,
	)
	if err != nil {
		return User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return q.GetUserByID(ctx, id)
}

const getUserByID = `
SELECT id, username, email, password_hash, display_name, created_at
FROM users WHERE id = ?
`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.Email,
		&i.PasswordHash,
		&i.DisplayName,
		&i.CreatedAt,
	)
	return i, err
}

const getUserByUsername = `
SELECT id, username, email, password_hash, display_name, created_at
FROM users WHERE username = ?
`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByUsername, username)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.Email,
		&i.PasswordHash,
		&i.DisplayName,
		&i.CreatedAt,
	)
	return i, err
}

// A completed lesson is never downgraded by a later visit.
const upsertLessonProgress = `
INSERT INTO lesson_progress (user_id, lesson_id, status, best_mistakes, attempts, last_accessed, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, lesson_id) DO UPDATE SET
    status = CASE
        WHEN lesson_progress.status = 'completed' THEN 'completed'
        ELSE excluded.status
    END,
    best_mistakes = COALESCE(excluded.best_mistakes, lesson_progress.best_mistakes),
    attempts      = COALESCE(excluded.attempts, lesson_progress.attempts),
    last_accessed = COALESCE(excluded.last_accessed, lesson_progress.last_accessed),
    completed_at  = COALESCE(lesson_progress.completed_at, excluded.completed_at)
`

type UpsertLessonProgressParams struct {
	UserID       int64
	LessonID     string
	Status       string
	BestMistakes sql.NullInt64
	Attempts     sql.NullInt64
	LastAccessed sql.NullTime
	CompletedAt  sql.NullTime
}

func (q *Queries) UpsertLessonProgress(ctx context.Context, arg UpsertLessonProgressParams) error {
	_, err := q.db.ExecContext(ctx, upsertLessonProgress,
		arg.UserID,
		arg.LessonID,
		arg.Status,
		arg.BestMistakes,
		arg.Attempts,
		arg.LastAccessed,
		arg.CompletedAt,
	)
	return err
}

const getLessonProgress = `
SELECT user_id, lesson_id, status, best_mistakes, attempts, last_accessed, completed_at
FROM lesson_progress WHERE user_id = ? AND lesson_id = ?
`

type GetLessonProgressParams struct {
	UserID   int64
	LessonID string
}

func (q *Queries) GetLessonProgress(ctx context.Context, arg GetLessonProgressParams) (LessonProgress, error) {
	row := q.db.QueryRowContext(ctx, getLessonProgress, arg.UserID, arg.LessonID)
	var i LessonProgress
	err := row.Scan(
		&i.UserID,
		&i.LessonID,
		&i.Status,
		&i.BestMistakes,
		&i.Attempts,
		&i.LastAccessed,
		&i.CompletedAt,
	)
	return i, err
}

const listLessonProgress = `
SELECT user_id, lesson_id, status, best_mistakes, attempts, last_accessed, completed_at
FROM lesson_progress WHERE user_id = ?
ORDER BY lesson_id
`

func (q *Queries) ListLessonProgress(ctx context.Context, userID int64) ([]LessonProgress, error) {
	rows, err := q.db.QueryContext(ctx, listLessonProgress, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LessonProgress
	for rows.Next() {
		var i LessonProgress
		if err := rows.Scan(
			&i.UserID,
			&i.LessonID,
			&i.Status,
			&i.BestMistakes,
			&i.Attempts,
			&i.LastAccessed,
			&i.CompletedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createPracticeAttempt = `
INSERT INTO practice_attempts (user_id, lesson_id, practice_id, session_id, total_steps, mistakes, first_try)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type CreatePracticeAttemptParams struct {
	UserID     int64
	LessonID   string
	PracticeID string
	SessionID  string
	TotalSteps int64
	Mistakes   int64
	FirstTry   int64
}

func (q *Queries) CreatePracticeAttempt(ctx context.Context, arg CreatePracticeAttemptParams) error {
	_, err := q.db.ExecContext(ctx, createPracticeAttempt,
		arg.UserID,
		arg.LessonID,
		arg.PracticeID,
		arg.SessionID,
		arg.TotalSteps,
		arg.Mistakes,
		arg.FirstTry,
	)
	return err
}

const listCompletedPractices = `
SELECT DISTINCT practice_id FROM practice_attempts
WHERE user_id = ? AND lesson_id = ?
ORDER BY practice_id
`

type ListCompletedPracticesParams struct {
	UserID   int64
	LessonID string
}

func (q *Queries) ListCompletedPractices(ctx context.Context, arg ListCompletedPracticesParams) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listCompletedPractices, arg.UserID, arg.LessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var practiceID string
		if err := rows.Scan(&practiceID); err != nil {
			return nil, err
		}
		items = append(items, practiceID)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countPracticeAttempts = `
SELECT COUNT(*) FROM practice_attempts WHERE user_id = ?
`

func (q *Queries) CountPracticeAttempts(ctx context.Context, userID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, countPracticeAttempts, userID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
