package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"grammartutor/internal/logger"
)

type channelKey struct{}

// WithChannel tags requests from one listener. A new request on a channel
// cancels the one still in flight there. Untagged requests never cancel each other.
func WithChannel(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, channelKey{}, id)
}

func channelFrom(ctx context.Context) string {
	id, _ := ctx.Value(channelKey{}).(string)
	return id
}

// Speaker is the Service over a Synthesizer with voice selection, a disk
// cache and last-request-wins cancellation.
type Speaker struct {
	synth  Synthesizer
	cache  *DiskCache
	locale string
	log    *logger.Logger

	// Timeout bounds one synthesis call. Zero means no limit.
	Timeout time.Duration

	voicesMu sync.Mutex
	voices   []Voice

	mu       sync.Mutex
	inflight map[string]*request
}

type request struct {
	cancel context.CancelCauseFunc
}

// NewSpeaker creates a speaker. cache may be nil.
func NewSpeaker(synth Synthesizer, cache *DiskCache, defaultLocale string, log *logger.Logger) *Speaker {
	if defaultLocale == "" {
		defaultLocale = DefaultLocale
	}
	return &Speaker{
		synth:    synth,
		cache:    cache,
		locale:   defaultLocale,
		log:      log.With("component", "Speaker"),
		inflight: make(map[string]*request),
	}
}

func (s *Speaker) Speak(ctx context.Context, text, locale string) (*Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if locale == "" {
		locale = s.locale
	}

	ctx, release := s.claim(ctx)
	defer release()

	key := Key(text, locale)
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			if superseded(ctx) {
				return nil, ErrSuperseded
			}
			return &Audio{Data: data, ContentType: "audio/mpeg"}, nil
		}
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	voice := s.voice(ctx, locale)
	data, err := s.synth.Synthesize(ctx, text, voice)
	if superseded(ctx) {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, fmt.Errorf("synthesize %q: %w", text, err)
	}

	if s.cache != nil {
		if err := s.cache.Put(key, data); err != nil {
			s.log.Warn("cache audio failed", "key", key, "error", err)
		}
	}
	return &Audio{Data: data, ContentType: "audio/mpeg", Voice: voice.Name}, nil
}

// claim registers a request on its channel, cancelling the previous one.
func (s *Speaker) claim(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	ch := channelFrom(parent)
	if ch == "" {
		return ctx, func() { cancel(nil) }
	}

	r := &request{cancel: cancel}
	s.mu.Lock()
	if prev, ok := s.inflight[ch]; ok {
		prev.cancel(ErrSuperseded)
	}
	s.inflight[ch] = r
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		if s.inflight[ch] == r {
			delete(s.inflight, ch)
		}
		s.mu.Unlock()
		cancel(nil)
	}
}

func superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrSuperseded)
}

// voice selects from the backend's voice list, loaded once. Without a match
// the backend picks a voice for the locale itself.
func (s *Speaker) voice(ctx context.Context, locale string) Voice {
	s.voicesMu.Lock()
	if s.voices == nil {
		voices, err := s.synth.Voices(ctx)
		if err != nil {
			s.log.Warn("list voices failed", "error", err)
		} else {
			s.voices = voices
			s.log.Debug("voices loaded", "count", len(voices))
		}
	}
	voices := s.voices
	s.voicesMu.Unlock()

	if v, ok := SelectVoice(voices, locale); ok {
		return v
	}
	return Voice{LanguageCodes: []string{locale}}
}
