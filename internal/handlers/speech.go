package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"grammartutor/internal/logger"
	"grammartutor/internal/middleware"
	"grammartutor/internal/speech"
)

const maxSpeechText = 500

var localePattern = regexp.MustCompile(`^en(-[A-Za-z]{2})?$`)

type SpeechHandler struct {
	svc speech.Service
	log *logger.Logger
}

func NewSpeechHandler(svc speech.Service, log *logger.Logger) *SpeechHandler {
	return &SpeechHandler{svc: svc, log: log.With("component", "SpeechHandler")}
}

// ServeAudio speaks ?text= in ?locale=, defaulting to the session's preferred
// voice. Without a speech backend it answers 204 so the page stays silent.
func (h *SpeechHandler) ServeAudio(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	locale := r.URL.Query().Get("locale")

	if text == "" {
		http.Error(w, "text parameter required", http.StatusBadRequest)
		return
	}
	if len(text) > maxSpeechText {
		http.Error(w, "text too long", http.StatusRequestEntityTooLarge)
		return
	}
	if locale != "" && !localePattern.MatchString(locale) {
		http.Error(w, "unsupported locale", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if sess, ok := middleware.GetSession(ctx); ok {
		if locale == "" {
			locale = sess.Locale
		}
		ctx = speech.WithChannel(ctx, sess.Token)
	} else if ch := r.URL.Query().Get("channel"); ch != "" {
		ctx = speech.WithChannel(ctx, ch)
	}

	audio, err := h.svc.Speak(ctx, text, locale)
	switch {
	case errors.Is(err, speech.ErrUnavailable), errors.Is(err, speech.ErrSuperseded):
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, speech.ErrEmptyText):
		http.Error(w, "text parameter required", http.StatusBadRequest)
		return
	case err != nil:
		if ctx.Err() == nil {
			h.log.Warn("speech failed", "locale", locale, "error", err)
		}
		http.Error(w, "speech error", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", audio.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(audio.Data)
}

type PreferenceHandler struct {
	sessions *middleware.SessionStore
}

func NewPreferenceHandler(s *middleware.SessionStore) *PreferenceHandler {
	return &PreferenceHandler{sessions: s}
}

// SetVoice stores the preferred voice locale. Visitors who have not signed in
// get a session just for the preference.
func (h *PreferenceHandler) SetVoice(w http.ResponseWriter, r *http.Request) {
	locale := r.FormValue("locale")
	if !localePattern.MatchString(locale) {
		http.Error(w, "unsupported locale", http.StatusBadRequest)
		return
	}

	if sess, ok := middleware.GetSession(r.Context()); ok && h.sessions.SetLocale(sess.Token, locale) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	token, err := h.sessions.Create(0)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	h.sessions.SetLocale(token, locale)
	middleware.SetCookie(w, token)
	w.WriteHeader(http.StatusNoContent)
}
