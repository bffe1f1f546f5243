package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"crypto/rand"
	"encoding/hex"
)

type contextKey string

const (
	userIDKey  contextKey = "userID"
	sessionKey contextKey = "session"
)

// CookieName is the cookie carrying the session token.
const CookieName = "session"

const sessionLifetime = 7 * 24 * time.Hour

// Session is a browser session. UserID 0 is a visitor who has not signed in
// but has saved a preference.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
	Locale    string // preferred voice locale, e.g. "en-US"
}

type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (s *SessionStore) Create(userID int64) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	s.mu.Lock()
	s.sessions[token] = &Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.now().Add(sessionLifetime),
	}
	s.mu.Unlock()

	return token, nil
}

// Get returns a copy of the session, or false if it is unknown or expired.
func (s *SessionStore) Get(token string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok || s.now().After(sess.ExpiresAt) {
		return Session{}, false
	}
	return *sess, true
}

func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// SetLocale stores the voice preference. It reports false for unknown sessions.
func (s *SessionStore) SetLocale(token, locale string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if ok {
		sess.Locale = locale
	}
	return ok
}

// Purge drops expired sessions and returns how many were removed.
func (s *SessionStore) Purge() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for token, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, token)
			n++
		}
	}
	return n
}

// SetCookie writes the session cookie for token.
func SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionLifetime / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func (s *SessionStore) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		sess, ok := s.Get(cookie.Value)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		if sess.UserID != 0 {
			ctx = context.WithValue(ctx, userIDKey, sess.UserID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == 0 {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func GetUserID(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}

// GetSession returns the request's session, if any.
func GetSession(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey).(Session)
	return sess, ok
}
