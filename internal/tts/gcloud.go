package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

// GCloudClient is the subset of the Cloud Text-to-Speech client the adapter
// uses. *texttospeech.Client satisfies it.
type GCloudClient interface {
	ListVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest, opts ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error)
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
}

// GCloudConfig holds configuration for the Google Cloud TTS backend.
type GCloudConfig struct {
	CredentialsFile string // empty uses application default credentials
	DefaultVoice    string // default: "en-US-Standard-A"
	VoiceCacheTTL   time.Duration
}

// GCloudAdapter synthesizes speech with Google Cloud Text-to-Speech.
type GCloudAdapter struct {
	client GCloudClient
	cfg    GCloudConfig
	voices *voiceCache
}

// NewGCloudClient dials the Cloud Text-to-Speech API.
func NewGCloudClient(ctx context.Context, cfg GCloudConfig) (*texttospeech.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcloud tts client: %w", err)
	}
	return client, nil
}

func NewGCloudAdapter(client GCloudClient, cfg GCloudConfig) *GCloudAdapter {
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "en-US-Standard-A"
	}
	a := &GCloudAdapter{client: client, cfg: cfg}
	a.voices = newVoiceCache(cfg.VoiceCacheTTL, a.fetchVoices)
	return a
}

func (a *GCloudAdapter) Mode() Mode { return ModeGCloud }

func (a *GCloudAdapter) Capabilities() Capabilities {
	return Capabilities{
		SupportsRate:  true,
		MinRate:       0.25,
		MaxRate:       4.0,
		DefaultRate:   1.0,
		Formats:       []Format{FormatOGG, FormatMP3},
		DefaultFormat: FormatOGG,
		DefaultVoice:  a.cfg.DefaultVoice,
	}
}

func (a *GCloudAdapter) ListVoices(ctx context.Context) (*VoiceList, error) {
	return a.voices.get(ctx)
}

func (a *GCloudAdapter) fetchVoices(ctx context.Context) (*VoiceList, error) {
	resp, err := a.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{})
	if err != nil {
		return nil, classifyGRPC(err, "gcloud list voices")
	}

	voices := make([]Voice, 0, len(resp.GetVoices()))
	for _, v := range resp.GetVoices() {
		voices = append(voices, Voice{
			ID:   v.GetName(),
			Name: fmt.Sprintf("%s (%s)", v.GetName(), strings.ToLower(v.GetSsmlGender().String())),
		})
	}
	raw := make([]json.RawMessage, 0, len(resp.GetVoices()))
	for _, v := range resp.GetVoices() {
		b, err := protojson.Marshal(v)
		if err != nil {
			return nil, Classify(ErrMalformedResponse, err, "gcloud voice %q", v.GetName())
		}
		raw = append(raw, b)
	}
	return &VoiceList{Voices: voices, Raw: raw}, nil
}

func (a *GCloudAdapter) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	encoding := texttospeechpb.AudioEncoding_OGG_OPUS
	if req.Format == FormatMP3 {
		encoding = texttospeechpb.AudioEncoding_MP3
	}

	resp, err := a.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: gcloudLanguageCode(req.Voice),
			Name:         req.Voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: encoding,
			SpeakingRate:  req.SpeakingRate,
		},
	})
	if err != nil {
		return nil, classifyGRPC(err, "gcloud synthesis")
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, Classify(ErrMalformedResponse, nil, "gcloud returned empty audio")
	}

	return &SynthesisResult{Audio: resp.GetAudioContent(), ContentType: req.Format.ContentType()}, nil
}

// gcloudLanguageCode derives "en-US" from a voice name like "en-US-Standard-A".
func gcloudLanguageCode(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 2 {
		return voice
	}
	return parts[0] + "-" + parts[1]
}

func classifyGRPC(err error, what string) error {
	switch status.Code(err) {
	case codes.ResourceExhausted:
		return Classify(ErrRateLimited, err, "%s", what)
	case codes.DeadlineExceeded:
		return Classify(ErrTimeout, err, "%s", what)
	case codes.Unavailable:
		return Classify(ErrUnavailable, err, "%s", what)
	case codes.NotFound:
		return Classify(ErrUnknownVoice, err, "%s", what)
	case codes.InvalidArgument:
		if strings.Contains(strings.ToLower(status.Convert(err).Message()), "voice") {
			return Classify(ErrUnknownVoice, err, "%s", what)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}
