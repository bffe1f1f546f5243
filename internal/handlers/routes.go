package handlers

import (
	"io/fs"
	"net/http"

	"grammartutor/internal/middleware"
)

// Handlers bundles everything the router serves.
type Handlers struct {
	Auth        *AuthHandler
	Lessons     *LessonHandler
	Practice    *PracticeHandler
	Speech      *SpeechHandler
	Preferences *PreferenceHandler
	Sessions    *middleware.SessionStore
	Static      fs.FS
}

// Routes returns the application's HTTP handler.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(h.Static)))

	// Pages
	mux.HandleFunc("GET /{$}", h.Lessons.Home)
	mux.HandleFunc("GET /login", h.Auth.LoginPage)
	mux.HandleFunc("POST /login", h.Auth.Login)
	mux.HandleFunc("GET /register", h.Auth.RegisterPage)
	mux.HandleFunc("POST /register", h.Auth.Register)
	mux.HandleFunc("GET /logout", h.Auth.Logout)
	mux.HandleFunc("POST /logout", h.Auth.Logout)
	mux.HandleFunc("GET /lessons/{lesson}", h.Lessons.LessonView)

	// Practice forms
	mux.HandleFunc("POST /lessons/{lesson}/practice/{practice}", h.Practice.Start)
	mux.HandleFunc("GET /practice/{session}", h.Practice.Page)
	mux.HandleFunc("POST /practice/{session}/select", h.Practice.Select)
	mux.HandleFunc("POST /practice/{session}/jump", h.Practice.Jump)
	mux.HandleFunc("POST /practice/{session}/restart", h.Practice.Restart)
	mux.HandleFunc("POST /practice/{session}/continue", h.Practice.Continue)

	// JSON API
	mux.HandleFunc("POST /api/lessons/{lesson}/practice/{practice}", h.Practice.APIStart)
	mux.HandleFunc("GET /api/practice/{session}", h.Practice.APIState)
	mux.HandleFunc("POST /api/practice/{session}/select", h.Practice.APISelect)
	mux.HandleFunc("POST /api/practice/{session}/jump", h.Practice.APIJump)
	mux.HandleFunc("POST /api/practice/{session}/restart", h.Practice.APIRestart)
	mux.HandleFunc("POST /api/practice/{session}/continue", h.Practice.APIContinue)
	mux.HandleFunc("GET /ws/practice/{session}", h.Practice.Socket)

	mux.HandleFunc("GET /api/speak", h.Speech.ServeAudio)
	mux.HandleFunc("POST /api/preference/voice", h.Preferences.SetVoice)

	return h.Sessions.AuthMiddleware(mux)
}
