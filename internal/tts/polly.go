package tts

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
)

// PollyClient is the subset of the Polly API the adapter uses.
// *polly.Client satisfies it.
type PollyClient interface {
	DescribeVoices(ctx context.Context, in *polly.DescribeVoicesInput, optFns ...func(*polly.Options)) (*polly.DescribeVoicesOutput, error)
	SynthesizeSpeech(ctx context.Context, in *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyConfig holds configuration for the AWS Polly backend.
type PollyConfig struct {
	Region        string
	DefaultVoice  string // default: "Brian"
	VoiceCacheTTL time.Duration
}

// PollyAdapter synthesizes speech with AWS Polly. The speaking rate is a
// prosody percentage applied through SSML.
type PollyAdapter struct {
	client PollyClient
	cfg    PollyConfig
	voices *voiceCache

	mu      sync.RWMutex
	engines map[string]types.Engine
}

// NewPollyClient loads the default AWS credential chain.
func NewPollyClient(ctx context.Context, cfg PollyConfig) (*polly.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return polly.NewFromConfig(awsCfg), nil
}

func NewPollyAdapter(client PollyClient, cfg PollyConfig) *PollyAdapter {
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "Brian"
	}
	a := &PollyAdapter{client: client, cfg: cfg}
	a.voices = newVoiceCache(cfg.VoiceCacheTTL, a.fetchVoices)
	return a
}

func (a *PollyAdapter) Mode() Mode { return ModePolly }

func (a *PollyAdapter) Capabilities() Capabilities {
	return Capabilities{
		SupportsRate:  true,
		MinRate:       10,
		MaxRate:       500,
		DefaultRate:   100,
		Formats:       []Format{FormatOGG, FormatMP3},
		DefaultFormat: FormatOGG,
		DefaultVoice:  a.cfg.DefaultVoice,
	}
}

func (a *PollyAdapter) ListVoices(ctx context.Context) (*VoiceList, error) {
	return a.voices.get(ctx)
}

func (a *PollyAdapter) fetchVoices(ctx context.Context) (*VoiceList, error) {
	var raw []types.Voice
	var token *string
	for {
		out, err := a.client.DescribeVoices(ctx, &polly.DescribeVoicesInput{NextToken: token})
		if err != nil {
			return nil, classifyAWS(err, "polly describe voices")
		}
		raw = append(raw, out.Voices...)
		if out.NextToken == nil || *out.NextToken == "" {
			break
		}
		token = out.NextToken
	}

	engines := make(map[string]types.Engine, len(raw))
	voices := make([]Voice, 0, len(raw))
	for _, v := range raw {
		id := string(v.Id)
		engines[id] = preferredEngine(v.SupportedEngines)
		voices = append(voices, Voice{
			ID:   id,
			Name: fmt.Sprintf("%s (%s, %s)", aws.ToString(v.Name), v.LanguageCode, v.Gender),
		})
	}
	a.mu.Lock()
	a.engines = engines
	a.mu.Unlock()
	return &VoiceList{Voices: voices, Raw: raw}, nil
}

// preferredEngine uses the standard engine when available, else neural.
func preferredEngine(engines []types.Engine) types.Engine {
	if len(engines) == 0 {
		return types.EngineStandard
	}
	for _, e := range engines {
		if e == types.EngineStandard {
			return e
		}
	}
	for _, e := range engines {
		if e == types.EngineNeural {
			return e
		}
	}
	return engines[0]
}

func (a *PollyAdapter) engineFor(voice string) types.Engine {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if e, ok := a.engines[voice]; ok {
		return e
	}
	return types.EngineStandard
}

func (a *PollyAdapter) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	outputFormat := types.OutputFormatOggVorbis
	if req.Format == FormatMP3 {
		outputFormat = types.OutputFormatMp3
	}

	out, err := a.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		OutputFormat: outputFormat,
		Text:         aws.String(pollySSML(req.Text, req.SpeakingRate)),
		TextType:     types.TextTypeSsml,
		VoiceId:      types.VoiceId(req.Voice),
		Engine:       a.engineFor(req.Voice),
	})
	if err != nil {
		return nil, classifyAWS(err, "polly synthesis")
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("read polly audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, Classify(ErrMalformedResponse, nil, "polly returned empty audio")
	}

	contentType := aws.ToString(out.ContentType)
	if contentType == "" {
		contentType = req.Format.ContentType()
	}
	return &SynthesisResult{Audio: audio, ContentType: contentType}, nil
}

// pollySSML wraps text in a prosody element. rate is a percentage.
func pollySSML(text string, rate float64) string {
	var b strings.Builder
	b.WriteString(`<speak><prosody rate="`)
	b.WriteString(strconv.Itoa(int(rate)))
	b.WriteString(`%">`)
	xml.EscapeText(&b, []byte(text))
	b.WriteString(`</prosody></speak>`)
	return b.String()
}

func classifyAWS(err error, what string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return Classify(ErrRateLimited, err, "%s", what)
		case "ServiceFailureException":
			return Classify(ErrUnavailable, err, "%s", what)
		case "InvalidSsmlException", "TextLengthExceededException", "SsmlMarksNotSupportedForTextTypeException":
			return fmt.Errorf("%s: %s", what, apiErr.ErrorMessage())
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Classify(ErrTimeout, err, "%s", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
