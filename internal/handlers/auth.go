package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"grammartutor/internal/db"
	"grammartutor/internal/logger"
	"grammartutor/internal/middleware"
)

type AuthHandler struct {
	queries  *db.Queries
	sessions *middleware.SessionStore
	tmpl     *TemplateRenderer
	log      *logger.Logger
}

func NewAuthHandler(q *db.Queries, s *middleware.SessionStore, t *TemplateRenderer, log *logger.Logger) *AuthHandler {
	return &AuthHandler{queries: q, sessions: s, tmpl: t, log: log.With("component", "AuthHandler")}
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.tmpl.Render(w, "login.html", map[string]interface{}{
		"Title":      "Log in",
		"IsRegister": false,
	})
}

func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.tmpl.Render(w, "login.html", map[string]interface{}{
		"Title":      "Register",
		"IsRegister": true,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	user, err := h.queries.GetUserByUsername(r.Context(), username)
	if err != nil {
		h.tmpl.Render(w, "login.html", map[string]interface{}{
			"Title":      "Log in",
			"IsRegister": false,
			"Error":      "Invalid username or password",
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		h.tmpl.Render(w, "login.html", map[string]interface{}{
			"Title":      "Log in",
			"IsRegister": false,
			"Error":      "Invalid username or password",
		})
		return
	}

	h.signIn(w, r, user.ID)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	displayName := strings.TrimSpace(r.FormValue("display_name"))
	username := strings.TrimSpace(r.FormValue("username"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if displayName == "" || username == "" || email == "" || password == "" {
		h.tmpl.Render(w, "login.html", map[string]interface{}{
			"Title":      "Register",
			"IsRegister": true,
			"Error":      "All fields are required",
		})
		return
	}

	if len(password) < 6 {
		h.tmpl.Render(w, "login.html", map[string]interface{}{
			"Title":      "Register",
			"IsRegister": true,
			"Error":      "Password must be at least 6 characters",
		})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	user, err := h.queries.CreateUser(r.Context(), db.CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
	})
	if err != nil {
		h.log.Info("registration rejected", "username", username, "error", err)
		h.tmpl.Render(w, "login.html", map[string]interface{}{
			"Title":      "Register",
			"IsRegister": true,
			"Error":      "Username or email already taken",
		})
		return
	}
	h.log.Info("learner registered", "user", user.ID)

	h.signIn(w, r, user.ID)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.CookieName)
	if err == nil {
		h.sessions.Delete(cookie.Value)
	}
	middleware.ClearCookie(w)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// signIn replaces any visitor session with one for userID, carrying over the
// voice preference.
func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, userID int64) {
	token, err := h.sessions.Create(userID)
	if err != nil {
		h.log.Error("create session failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if prev, ok := middleware.GetSession(r.Context()); ok {
		if prev.Locale != "" {
			h.sessions.SetLocale(token, prev.Locale)
		}
		h.sessions.Delete(prev.Token)
	}
	middleware.SetCookie(w, token)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
