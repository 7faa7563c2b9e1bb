package tts

import (
	"context"
	"strings"
)

// Mode identifies a text-to-speech backend.
type Mode string

const (
	ModeEspeak Mode = "espeak"
	ModeGTTS   Mode = "gtts"
	ModeGCloud Mode = "gcloud"
	ModePolly  Mode = "polly"
	ModeGwent  Mode = "gwent"
)

// AllModes lists every compiled-in mode in canonical order.
var AllModes = []Mode{ModeEspeak, ModeGTTS, ModeGCloud, ModePolly, ModeGwent}

// Format is an output audio container.
type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
	FormatOGG Format = "ogg"
)

// ContentType returns the MIME type normally served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatOGG:
		return "audio/ogg"
	case FormatWAV:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// Voice is a selectable voice of a backend. Name is optional.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// VoiceList is the result of listing an adapter's voices. Raw holds the
// backend's native representation and is served untouched for raw listings.
type VoiceList struct {
	Voices []Voice
	Raw    any
}

// IDs returns the voice identifiers in listing order.
func (l *VoiceList) IDs() []string {
	ids := make([]string, 0, len(l.Voices))
	for _, v := range l.Voices {
		ids = append(ids, v.ID)
	}
	return ids
}

// Contains reports whether id is one of the listed voices.
func (l *VoiceList) Contains(id string) bool {
	for _, v := range l.Voices {
		if v.ID == id {
			return true
		}
	}
	return false
}

// Capabilities is the static descriptor the validator checks requests against.
type Capabilities struct {
	SupportsRate  bool
	MinRate       float64
	MaxRate       float64
	DefaultRate   float64
	Formats       []Format
	DefaultFormat Format
	DefaultVoice  string
}

// ResolveFormat picks the preferred format when supported, otherwise the
// default. Matching is case-insensitive.
func (c Capabilities) ResolveFormat(preferred string) Format {
	preferred = strings.ToLower(strings.TrimSpace(preferred))
	for _, f := range c.Formats {
		if string(f) == preferred {
			return f
		}
	}
	return c.DefaultFormat
}

// SynthesisRequest is a validated synthesis request. It is only built by the
// Validator and is not modified afterwards.
type SynthesisRequest struct {
	Text         string
	Voice        string
	SpeakingRate float64
	MaxLength    *int
	Format       Format
}

// SynthesisResult holds the generated audio and its content type.
type SynthesisResult struct {
	Audio       []byte
	ContentType string
}

// Adapter is implemented once per mode.
type Adapter interface {
	Mode() Mode
	Capabilities() Capabilities
	ListVoices(ctx context.Context) (*VoiceList, error)
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
}

var (
	_ Adapter = (*EspeakAdapter)(nil)
	_ Adapter = (*GTTSAdapter)(nil)
	_ Adapter = (*GCloudAdapter)(nil)
	_ Adapter = (*PollyAdapter)(nil)
	_ Adapter = (*GwentAdapter)(nil)
)
