package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nikhilbhutani/speechgate/internal/api/handlers"
	"github.com/nikhilbhutani/speechgate/internal/config"
	"github.com/nikhilbhutani/speechgate/internal/daemon"
	"github.com/nikhilbhutani/speechgate/internal/metrics"
	"github.com/nikhilbhutani/speechgate/internal/tts"
)

// Backends is the set of adapters built at startup.
type Backends struct {
	Registry *tts.Registry
	Checks   map[string]handlers.Check
	closers  []io.Closer
}

// Close releases SDK clients.
func (b *Backends) Close() {
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			slog.Warn("closing backend client", "error", err)
		}
	}
}

// BuildBackends constructs an adapter for every enabled mode, in canonical
// order. Cloud modes whose client cannot be created are skipped with a
// warning; the remaining modes still serve.
func BuildBackends(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Backends, error) {
	b := &Backends{Checks: map[string]handlers.Check{}}
	var adapters []tts.Adapter

	for _, mode := range tts.AllModes {
		if !cfg.ModeEnabled(string(mode)) {
			continue
		}
		switch mode {
		case tts.ModeEspeak:
			adapters = append(adapters, tts.NewEspeakAdapter(tts.EspeakConfig{
				BinPath:      cfg.Espeak.BinPath,
				DefaultVoice: cfg.Espeak.DefaultVoice,
			}, nil))

		case tts.ModeGTTS:
			a, err := tts.NewGTTSAdapter(tts.GTTSConfig{
				BaseURL:      cfg.GTTS.BaseURL,
				DefaultVoice: cfg.GTTS.DefaultVoice,
			})
			if err != nil {
				return nil, err
			}
			adapters = append(adapters, a)

		case tts.ModeGCloud:
			gcCfg := tts.GCloudConfig{
				CredentialsFile: cfg.GCloud.CredentialsFile,
				DefaultVoice:    cfg.GCloud.DefaultVoice,
				VoiceCacheTTL:   cfg.TTS.VoiceCacheTTL,
			}
			client, err := tts.NewGCloudClient(ctx, gcCfg)
			if err != nil {
				slog.Warn("gcloud mode disabled", "error", err)
				continue
			}
			b.closers = append(b.closers, client)
			adapters = append(adapters, tts.NewGCloudAdapter(client, gcCfg))

		case tts.ModePolly:
			pCfg := tts.PollyConfig{
				Region:        cfg.Polly.Region,
				DefaultVoice:  cfg.Polly.DefaultVoice,
				VoiceCacheTTL: cfg.TTS.VoiceCacheTTL,
			}
			client, err := tts.NewPollyClient(ctx, pCfg)
			if err != nil {
				slog.Warn("polly mode disabled", "error", err)
				continue
			}
			adapters = append(adapters, tts.NewPollyAdapter(client, pCfg))

		case tts.ModeGwent:
			var opts []daemon.Option
			if m != nil {
				opts = append(opts, daemon.WithPermitObserver(m))
			}
			client, err := daemon.NewClient(cfg.Gwent.Daemon, opts...)
			if err != nil {
				return nil, fmt.Errorf("gwent daemon client: %w", err)
			}
			gw := tts.NewGwentAdapter(client, tts.GwentConfig{
				DefaultVoice:  cfg.Gwent.DefaultVoice,
				HealthCheck:   cfg.Gwent.HealthCheck,
				SlowCallWarn:  cfg.Gwent.SlowCallWarn,
				VoiceCacheTTL: cfg.TTS.VoiceCacheTTL,
			})
			client.CheckStartup(ctx, gw.Capabilities().DefaultVoice)
			b.Checks["gwent"] = gw.Health
			adapters = append(adapters, gw)
		}
	}

	registry, err := tts.NewRegistry(adapters...)
	if err != nil {
		return nil, err
	}
	b.Registry = registry
	slog.Info("tts modes registered", "modes", registry.Modes())
	return b, nil
}
