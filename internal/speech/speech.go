// Package speech turns English example sentences into audio.
package speech

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnavailable means no speech backend is configured. Callers skip audio silently.
	ErrUnavailable = errors.New("speech unavailable")
	// ErrSuperseded is returned to a request cancelled by a newer one on the same channel.
	ErrSuperseded = errors.New("speech request superseded")
	ErrEmptyText  = errors.New("speech text is empty")
)

const DefaultLocale = "en-US"

type Audio struct {
	Data        []byte
	ContentType string
	Voice       string
}

// Service speaks text in a locale such as "en-US".
type Service interface {
	Speak(ctx context.Context, text, locale string) (*Audio, error)
}

type Voice struct {
	Name          string
	LanguageCodes []string
	Gender        string
}

// Locale returns the voice's primary language code.
func (v Voice) Locale() string {
	if len(v.LanguageCodes) == 0 {
		return ""
	}
	return v.LanguageCodes[0]
}

func (v Voice) speaks(match func(code string) bool) bool {
	for _, c := range v.LanguageCodes {
		if match(c) {
			return true
		}
	}
	return false
}

// SelectVoice picks a voice for preference: an exact locale match first,
// then any English voice. It reports false when no English voice exists.
func SelectVoice(voices []Voice, preference string) (Voice, bool) {
	if preference == "" {
		preference = DefaultLocale
	}
	for _, v := range voices {
		if v.speaks(func(c string) bool { return strings.EqualFold(c, preference) }) {
			return v, true
		}
	}
	for _, v := range voices {
		if v.speaks(isEnglish) {
			return v, true
		}
	}
	return Voice{}, false
}

func isEnglish(code string) bool {
	code = strings.ToLower(code)
	return code == "en" || strings.HasPrefix(code, "en-")
}

// Synthesizer is a text-to-speech backend.
type Synthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
}

// Noop is the service used when no backend is configured.
type Noop struct{}

func (Noop) Speak(context.Context, string, string) (*Audio, error) {
	return nil, ErrUnavailable
}
