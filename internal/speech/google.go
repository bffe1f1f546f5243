package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"grammartutor/internal/config"
	"grammartutor/internal/logger"
)

// GoogleClient is a Synthesizer backed by Google Cloud Text-to-Speech.
type GoogleClient struct {
	svc *texttospeech.Service
	log *logger.Logger
}

func NewGoogleClient(ctx context.Context, log *logger.Logger, opts ...option.ClientOption) (*GoogleClient, error) {
	svc, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("texttospeech: %w", err)
	}
	return &GoogleClient{svc: svc, log: log.With("component", "GoogleTTS")}, nil
}

func (c *GoogleClient) Voices(ctx context.Context) ([]Voice, error) {
	resp, err := c.svc.Voices.List().LanguageCode("en").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	voices := make([]Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voices = append(voices, Voice{Name: v.Name, LanguageCodes: v.LanguageCodes, Gender: v.SsmlGender})
	}
	return voices, nil
}

func (c *GoogleClient) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: voice.Locale(),
			Name:         voice.Name,
		},
		AudioConfig: &texttospeech.AudioConfig{AudioEncoding: "MP3"},
	}
	resp, err := c.svc.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	c.log.Debug("synthesized", "voice", voice.Name, "bytes", len(audio))
	return audio, nil
}

// ClientOptions returns credentials for the Google client: the API key when
// set, else GOOGLE_APPLICATION_CREDENTIALS(_JSON). Nil means not configured.
func ClientOptions(apiKey string) []option.ClientOption {
	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		return []option.ClientOption{option.WithAPIKey(apiKey)}
	}
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

// New builds the speech service from configuration, falling back to Noop
// when no credentials are available.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (Service, error) {
	opts := ClientOptions(cfg.Speech.APIKey)
	if opts == nil {
		log.Info("speech disabled: no Google credentials")
		return Noop{}, nil
	}
	client, err := NewGoogleClient(ctx, log, opts...)
	if err != nil {
		return nil, err
	}
	cache, err := NewDiskCache(cfg.CacheDir(), cfg.AudioDir())
	if err != nil {
		return nil, fmt.Errorf("speech cache %s: %w", filepath.Clean(cfg.CacheDir()), err)
	}
	sp := NewSpeaker(client, cache, cfg.Speech.DefaultLocale, log)
	sp.Timeout = config.Duration(cfg.Speech.Timeout)
	return sp, nil
}
