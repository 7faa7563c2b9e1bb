package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeGCloud struct {
	voices    []*texttospeechpb.Voice
	listErr   error
	synthErr  error
	audio     []byte
	lastSynth *texttospeechpb.SynthesizeSpeechRequest
}

func (f *fakeGCloud) ListVoices(context.Context, *texttospeechpb.ListVoicesRequest, ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &texttospeechpb.ListVoicesResponse{Voices: f.voices}, nil
}

func (f *fakeGCloud) SynthesizeSpeech(_ context.Context, req *texttospeechpb.SynthesizeSpeechRequest, _ ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	f.lastSynth = req
	if f.synthErr != nil {
		return nil, f.synthErr
	}
	return &texttospeechpb.SynthesizeSpeechResponse{AudioContent: f.audio}, nil
}

func newFakeGCloud() *fakeGCloud {
	return &fakeGCloud{
		voices: []*texttospeechpb.Voice{
			{Name: "en-US-Standard-A", LanguageCodes: []string{"en-US"}, SsmlGender: texttospeechpb.SsmlVoiceGender_MALE},
			{Name: "de-DE-Wavenet-B", LanguageCodes: []string{"de-DE"}, SsmlGender: texttospeechpb.SsmlVoiceGender_FEMALE},
		},
		audio: []byte("OggS-opus"),
	}
}

func TestGCloudAdapter_ListVoices(t *testing.T) {
	fake := newFakeGCloud()
	a := NewGCloudAdapter(fake, GCloudConfig{})

	list, err := a.ListVoices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"en-US-Standard-A", "de-DE-Wavenet-B"}, list.IDs())
	assert.Equal(t, "de-DE-Wavenet-B (female)", list.Voices[1].Name)

	raw, err := json.Marshal(list.Raw)
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(raw, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "de-DE-Wavenet-B", entries[1]["name"])
	assert.Equal(t, "FEMALE", entries[1]["ssmlGender"])
	assert.Equal(t, []any{"de-DE"}, entries[1]["languageCodes"])
	assert.NotContains(t, string(raw), "language_codes")
}

func TestGCloudAdapter_Synthesize(t *testing.T) {
	fake := newFakeGCloud()
	a := NewGCloudAdapter(fake, GCloudConfig{})

	res, err := a.Synthesize(context.Background(), SynthesisRequest{
		Text:         "Guten Tag",
		Voice:        "de-DE-Wavenet-B",
		SpeakingRate: 1.25,
		Format:       FormatMP3,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("OggS-opus"), res.Audio)
	assert.Equal(t, "audio/mpeg", res.ContentType)

	req := fake.lastSynth
	assert.Equal(t, "Guten Tag", req.GetInput().GetText())
	assert.Equal(t, "de-DE", req.GetVoice().GetLanguageCode())
	assert.Equal(t, "de-DE-Wavenet-B", req.GetVoice().GetName())
	assert.Equal(t, texttospeechpb.AudioEncoding_MP3, req.GetAudioConfig().GetAudioEncoding())
	assert.Equal(t, 1.25, req.GetAudioConfig().GetSpeakingRate())

	_, err = a.Synthesize(context.Background(), SynthesisRequest{Text: "Hi", Voice: "en-US-Standard-A", SpeakingRate: 1, Format: FormatOGG})
	require.NoError(t, err)
	assert.Equal(t, texttospeechpb.AudioEncoding_OGG_OPUS, fake.lastSynth.GetAudioConfig().GetAudioEncoding())
}

func TestGCloudAdapter_Errors(t *testing.T) {
	fake := newFakeGCloud()
	a := NewGCloudAdapter(fake, GCloudConfig{})
	req := SynthesisRequest{Text: "Hi", Voice: "en-US-Standard-A", SpeakingRate: 1, Format: FormatOGG}

	tests := []struct {
		err    error
		status int
	}{
		{status.Error(codes.ResourceExhausted, "quota"), http.StatusTooManyRequests},
		{status.Error(codes.DeadlineExceeded, "slow"), http.StatusGatewayTimeout},
		{status.Error(codes.Unavailable, "down"), http.StatusServiceUnavailable},
		{status.Error(codes.InvalidArgument, "Voice 'x' does not exist"), http.StatusBadRequest},
		{status.Error(codes.PermissionDenied, "nope"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		fake.synthErr = tt.err
		_, err := a.Synthesize(context.Background(), req)
		assert.Equal(t, tt.status, Normalize(err).Status(), "%v", tt.err)
	}

	fake.synthErr = status.Error(codes.NotFound, "voice not found")
	_, err := a.Synthesize(context.Background(), req)
	assert.Equal(t, CodeUnknownVoice, Normalize(err).Code)

	fake.synthErr = nil
	fake.audio = nil
	_, err = a.Synthesize(context.Background(), req)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGCloudLanguageCode(t *testing.T) {
	assert.Equal(t, "en-US", gcloudLanguageCode("en-US-Standard-A"))
	assert.Equal(t, "cmn-CN", gcloudLanguageCode("cmn-CN-Wavenet-C"))
	assert.Equal(t, "en", gcloudLanguageCode("en"))
}

func TestClassifyGRPC_LabelIsLiteral(t *testing.T) {
	for _, code := range []codes.Code{codes.ResourceExhausted, codes.DeadlineExceeded, codes.Unavailable, codes.NotFound} {
		err := classifyGRPC(status.Error(code, "x"), "gcloud 100% done")
		assert.Contains(t, err.Error(), "gcloud 100% done: ", code.String())
		assert.NotContains(t, err.Error(), "%!", code.String())
	}
}
