package tts

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Validator turns a Query into a SynthesisRequest for the resolved adapter.
type Validator struct {
	registry *Registry
}

func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate runs the checks in order and stops at the first failure:
// mode, max_length, speaking_rate, voice. An unsupported preferred format
// silently falls back to the adapter default.
func (v *Validator) Validate(ctx context.Context, q Query) (Adapter, SynthesisRequest, error) {
	adapter, err := v.registry.Resolve(q.Mode)
	if err != nil {
		return nil, SynthesisRequest{}, err
	}
	if q.Text == "" {
		return nil, SynthesisRequest{}, fmt.Errorf("%w: text is required", ErrInvalidQuery)
	}
	caps := adapter.Capabilities()

	if q.MaxLength != nil {
		if n := utf8.RuneCountInString(q.Text); n > *q.MaxLength {
			return nil, SynthesisRequest{}, NewAPIError(CodeMaxLength,
				"text is %d characters, exceeding max_length of %d", n, *q.MaxLength)
		}
	}

	rate := caps.DefaultRate
	if q.SpeakingRate != nil && caps.SupportsRate {
		rate = *q.SpeakingRate
		if rate < caps.MinRate {
			return nil, SynthesisRequest{}, NewAPIError(CodeSpeakingRate,
				"speaking_rate %s is below the minimum of %s for mode %s", fmtRate(rate), fmtRate(caps.MinRate), q.Mode)
		}
		if rate > caps.MaxRate {
			return nil, SynthesisRequest{}, NewAPIError(CodeSpeakingRate,
				"speaking_rate %s is above the maximum of %s for mode %s", fmtRate(rate), fmtRate(caps.MaxRate), q.Mode)
		}
	}

	voice := q.Lang
	if voice == "" {
		voice = caps.DefaultVoice
	}
	voices, err := adapter.ListVoices(ctx)
	if err != nil {
		return nil, SynthesisRequest{}, err
	}
	if !voices.Contains(voice) {
		return nil, SynthesisRequest{}, NewAPIError(CodeUnknownVoice, "unknown voice %q for mode %s", voice, q.Mode)
	}

	return adapter, SynthesisRequest{
		Text:         q.Text,
		Voice:        voice,
		SpeakingRate: rate,
		MaxLength:    q.MaxLength,
		Format:       caps.ResolveFormat(q.PreferredFormat),
	}, nil
}

func fmtRate(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
