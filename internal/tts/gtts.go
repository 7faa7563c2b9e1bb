package tts

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed data/gtts_languages.yaml
var gttsLanguagesYAML []byte

// gttsChunkLimit is the longest text the translate endpoint accepts per call.
const gttsChunkLimit = 200

// GTTSConfig holds configuration for the Google Translate TTS backend.
type GTTSConfig struct {
	BaseURL      string // default: "https://translate.google.com/translate_tts"
	DefaultVoice string // default: "en"
	Timeout      time.Duration
}

// GTTSAdapter synthesizes MP3 through the public Google Translate endpoint.
// It has no speaking rate control.
type GTTSAdapter struct {
	cfg        GTTSConfig
	httpClient *http.Client
	voices     *VoiceList
}

// NewGTTSAdapter creates a GTTSAdapter with sensible defaults applied.
func NewGTTSAdapter(cfg GTTSConfig) (*GTTSAdapter, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://translate.google.com/translate_tts"
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	voices, err := loadGTTSLanguages(gttsLanguagesYAML)
	if err != nil {
		return nil, err
	}

	return &GTTSAdapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		voices:     &VoiceList{Voices: voices, Raw: voices},
	}, nil
}

func loadGTTSLanguages(data []byte) ([]Voice, error) {
	var entries []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse gtts languages: %w", err)
	}
	voices := make([]Voice, 0, len(entries))
	for _, e := range entries {
		voices = append(voices, Voice{ID: e.ID, Name: e.Name})
	}
	return voices, nil
}

func (a *GTTSAdapter) Mode() Mode { return ModeGTTS }

func (a *GTTSAdapter) Capabilities() Capabilities {
	return Capabilities{
		Formats:       []Format{FormatMP3},
		DefaultFormat: FormatMP3,
		DefaultVoice:  a.cfg.DefaultVoice,
	}
}

func (a *GTTSAdapter) ListVoices(context.Context) (*VoiceList, error) {
	return a.voices, nil
}

// Synthesize fetches one MP3 per chunk and concatenates them; MP3 frames
// can be joined without re-encoding.
func (a *GTTSAdapter) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	chunks := splitText(req.Text, gttsChunkLimit)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: text has no speakable content", ErrInvalidQuery)
	}

	var audio bytes.Buffer
	for i, chunk := range chunks {
		data, err := a.fetchChunk(ctx, req.Voice, chunk, i, len(chunks))
		if err != nil {
			return nil, err
		}
		audio.Write(data)
	}

	return &SynthesisResult{Audio: audio.Bytes(), ContentType: FormatMP3.ContentType()}, nil
}

func (a *GTTSAdapter) fetchChunk(ctx context.Context, lang, text string, idx, total int) ([]byte, error) {
	params := url.Values{
		"ie":      {"UTF-8"},
		"client":  {"tw-ob"},
		"tl":      {lang},
		"q":       {text},
		"idx":     {strconv.Itoa(idx)},
		"total":   {strconv.Itoa(total)},
		"textlen": {strconv.Itoa(utf8.RuneCountInString(text))},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, Classify(ErrTimeout, err, "gtts request")
		}
		return nil, fmt.Errorf("gtts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, Classify(ErrRateLimited, nil, "gtts rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("gtts failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gtts audio: %w", err)
	}
	if len(data) == 0 {
		return nil, Classify(ErrMalformedResponse, nil, "gtts returned empty audio")
	}
	return data, nil
}

// splitText breaks text into chunks of at most limit runes, preferring
// whitespace boundaries. Words longer than limit are cut.
func splitText(text string, limit int) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}

	for _, word := range strings.FieldsFunc(text, unicode.IsSpace) {
		runes := []rune(word)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		n := len(runes)
		if curLen > 0 && curLen+1+n > limit {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(string(runes))
		curLen += n
	}
	flush()
	return chunks
}
