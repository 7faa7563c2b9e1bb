package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nikhilbhutani/speechgate/internal/daemon"
)

// GwentConfig holds the adapter-side settings of the daemon proxy.
type GwentConfig struct {
	DefaultVoice  string
	HealthCheck   bool          // probe the daemon before each synthesis
	SlowCallWarn  time.Duration // 0 disables the warning
	VoiceCacheTTL time.Duration
}

// GwentAdapter forwards synthesis to the gwent daemon.
type GwentAdapter struct {
	client *daemon.Client
	cfg    GwentConfig
	voices *voiceCache
}

func NewGwentAdapter(client *daemon.Client, cfg GwentConfig) *GwentAdapter {
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "geralt"
	}
	a := &GwentAdapter{client: client, cfg: cfg}
	a.voices = newVoiceCache(cfg.VoiceCacheTTL, a.fetchVoices)
	return a
}

func (a *GwentAdapter) Mode() Mode { return ModeGwent }

func (a *GwentAdapter) Capabilities() Capabilities {
	return Capabilities{
		SupportsRate:  true,
		MinRate:       0.5,
		MaxRate:       2.0,
		DefaultRate:   1.0,
		Formats:       []Format{FormatOGG, FormatMP3},
		DefaultFormat: FormatOGG,
		DefaultVoice:  a.cfg.DefaultVoice,
	}
}

func (a *GwentAdapter) ListVoices(ctx context.Context) (*VoiceList, error) {
	return a.voices.get(ctx)
}

func (a *GwentAdapter) fetchVoices(ctx context.Context) (*VoiceList, error) {
	set, err := a.client.Voices(ctx)
	if err != nil {
		return nil, mapDaemonError(err)
	}
	voices := make([]Voice, 0, len(set.Voices))
	for _, v := range set.Voices {
		voices = append(voices, Voice{ID: v.ID, Name: v.Name})
	}
	return &VoiceList{Voices: voices, Raw: set.Raw}, nil
}

func (a *GwentAdapter) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	if a.cfg.HealthCheck {
		if err := a.client.Health(ctx); err != nil {
			return nil, Classify(ErrUnavailable, err, "gwent daemon unavailable")
		}
	}

	start := time.Now()
	audio, err := a.client.Synthesize(ctx, daemon.Request{
		Text:         req.Text,
		Voice:        req.Voice,
		SpeakingRate: req.SpeakingRate,
		Format:       string(req.Format),
		MaxLength:    req.MaxLength,
	})
	if took := time.Since(start); a.cfg.SlowCallWarn > 0 && took > a.cfg.SlowCallWarn {
		slog.Warn("fetching gwent audio was slow", "took_ms", took.Milliseconds(), "voice", req.Voice)
	}
	if err != nil {
		return nil, mapDaemonError(err)
	}

	contentType := audio.ContentType
	if contentType == "" {
		contentType = req.Format.ContentType()
	}
	return &SynthesisResult{Audio: audio.Data, ContentType: contentType}, nil
}

// Health reports whether the daemon answers its health probe.
func (a *GwentAdapter) Health(ctx context.Context) error {
	return a.client.Health(ctx)
}

func mapDaemonError(err error) error {
	var statusErr *daemon.StatusError
	switch {
	case errors.Is(err, daemon.ErrTimeout):
		return Classify(ErrTimeout, err, "gwent daemon timed out")
	case errors.Is(err, daemon.ErrSaturated):
		return Classify(ErrSaturated, err, "gwent daemon busy")
	case errors.Is(err, daemon.ErrUnavailable), errors.Is(err, daemon.ErrTransport):
		return Classify(ErrUnavailable, err, "gwent daemon unavailable")
	case errors.Is(err, daemon.ErrMalformed):
		return Classify(ErrMalformedResponse, err, "gwent")
	case errors.As(err, &statusErr):
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return Classify(ErrRateLimited, err, "gwent")
		case http.StatusServiceUnavailable:
			return Classify(ErrUnavailable, err, "gwent daemon unavailable")
		}
		return fmt.Errorf("gwent: %w", err)
	default:
		return err
	}
}
