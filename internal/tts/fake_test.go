package tts

import (
	"context"
	"sync"
	"time"
)

// fakeAdapter is a scriptable Adapter for validator and dispatcher tests.
type fakeAdapter struct {
	mode      Mode
	caps      Capabilities
	voices    *VoiceList
	voicesErr error
	audio     []byte
	ctype     string
	synthErr  error

	mu        sync.Mutex
	requests  []SynthesisRequest
	listCalls int
}

func newFakeAdapter(mode Mode) *fakeAdapter {
	return &fakeAdapter{
		mode: mode,
		caps: Capabilities{
			SupportsRate:  true,
			MinRate:       0.5,
			MaxRate:       2.0,
			DefaultRate:   1.0,
			Formats:       []Format{FormatOGG, FormatMP3},
			DefaultFormat: FormatOGG,
			DefaultVoice:  "alpha",
		},
		voices: &VoiceList{
			Voices: []Voice{{ID: "alpha", Name: "Alpha"}, {ID: "beta"}},
			Raw:    map[string]any{"native": []string{"alpha", "beta"}},
		},
		audio: []byte("audio"),
		ctype: "audio/ogg",
	}
}

func (f *fakeAdapter) Mode() Mode                 { return f.mode }
func (f *fakeAdapter) Capabilities() Capabilities { return f.caps }

func (f *fakeAdapter) ListVoices(context.Context) (*VoiceList, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.voicesErr != nil {
		return nil, f.voicesErr
	}
	return f.voices, nil
}

func (f *fakeAdapter) Synthesize(_ context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.synthErr != nil {
		return nil, f.synthErr
	}
	return &SynthesisResult{Audio: f.audio, ContentType: f.ctype}, nil
}

func (f *fakeAdapter) lastRequest() SynthesisRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type recordedCall struct {
	mode, outcome string
}

type recordingObserver struct {
	mu        sync.Mutex
	synthesis []recordedCall
	voices    []recordedCall
}

func (o *recordingObserver) ObserveSynthesis(mode, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.synthesis = append(o.synthesis, recordedCall{mode, outcome})
}

func (o *recordingObserver) ObserveVoices(mode, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.voices = append(o.voices, recordedCall{mode, outcome})
}

func ptr[T any](v T) *T { return &v }
