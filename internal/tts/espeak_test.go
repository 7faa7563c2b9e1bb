package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Captured from espeak-ng 1.51 and trimmed.
const espeakVoicesOutput = `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  de              --/M      German             gmw/de
 5  en-029          --/M      English_(Caribbean) gmw/en-029
 2  en-gb           --/M      English_(Great_Britain) gmw/en               (en 2)
 5  en-gb-scotland  --/M      English_(Scotland) gmw/en-GB-scotland
 5  en-gb-x-rp      --/M      English_(Received_Pronunciation) gmw/en-GB-x-rp
 2  en-us           --/M      English_(America)  gmw/en-US            (en 3)
 5  es              --/M      Spanish_(Spain)    roa/es
 5  fr-fr           --/M      French_(France)    roa/fr               (fr 5)
 5  pt              --/M      Portuguese_(Portugal) roa/pt             (pt-pt 5)
`

type espeakCall struct {
	stdin string
	name  string
	args  []string
}

// fakeEspeakRunner answers --voices with a canned table and synthesis with
// audio. Calls are appended to *calls when calls is non-nil.
func fakeEspeakRunner(t *testing.T, calls *[]espeakCall) CommandRunner {
	t.Helper()
	return func(_ context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
		call := espeakCall{name: name, args: args}
		if stdin != nil {
			b, err := io.ReadAll(stdin)
			require.NoError(t, err)
			call.stdin = string(b)
		}
		if calls != nil {
			*calls = append(*calls, call)
		}
		if len(args) == 1 && args[0] == "--voices" {
			return []byte(espeakVoicesOutput), nil
		}
		return []byte("RIFF....WAVEfmt "), nil
	}
}

func TestParseEspeakVoices(t *testing.T) {
	voices, err := parseEspeakVoices([]byte(espeakVoicesOutput))
	require.NoError(t, err)

	list := &VoiceList{Voices: voices}
	assert.Equal(t, []string{
		"af", "de", "en-029", "en-gb", "en-gb-scotland", "en-gb-x-rp", "en-us", "es", "fr-fr", "pt",
		"en", "fr", "pt-pt",
	}, list.IDs())
	assert.Equal(t, Voice{ID: "en-gb", Name: "English (Great Britain)"}, voices[3])
	assert.Equal(t, Voice{ID: "en", Name: "English (Great Britain)"}, voices[10], "first alias owner wins")
}

func TestParseEspeakVoices_DuplicateRows(t *testing.T) {
	out := "Pty Language Age/Gender VoiceName File Other Languages\n" +
		" 5  en  --/M  English  gmw/en\n" +
		" 2  en-gb  --/M  English_(Great_Britain)  gmw/en  (en 2)\n" +
		" 5  en  --/M  English  gmw/en\n"
	voices, err := parseEspeakVoices([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, []Voice{{ID: "en", Name: "English"}, {ID: "en-gb", Name: "English (Great Britain)"}}, voices)
}

func TestEspeakAdapter_DefaultVoiceIsListed(t *testing.T) {
	a := NewEspeakAdapter(EspeakConfig{}, fakeEspeakRunner(t, nil))
	reg, err := NewRegistry(a)
	require.NoError(t, err)
	d := NewDispatcher(reg, nil)

	for _, lang := range []string{"", "en", "en-us", "fr"} {
		out, apiErr := d.HandleTTS(context.Background(), Query{Text: "Hello", Lang: lang, Mode: ModeEspeak})
		require.Nil(t, apiErr, "lang %q: %v", lang, apiErr)
		assert.Equal(t, "audio/wav", out.Result.ContentType)
	}
}

func TestParseEspeakVoices_Empty(t *testing.T) {
	_, err := parseEspeakVoices([]byte("Pty Language Age/Gender VoiceName File Other Languages\n"))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestEspeakAdapter_Synthesize(t *testing.T) {
	var calls []espeakCall
	a := NewEspeakAdapter(EspeakConfig{BinPath: "/usr/bin/espeak-ng"}, fakeEspeakRunner(t, &calls))

	res, err := a.Synthesize(context.Background(), SynthesisRequest{
		Text:         "Hello world",
		Voice:        "en-gb",
		SpeakingRate: 200,
		Format:       FormatWAV,
	})
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", res.ContentType)
	assert.NotEmpty(t, res.Audio)

	require.Len(t, calls, 1)
	assert.Equal(t, "/usr/bin/espeak-ng", calls[0].name)
	assert.Equal(t, []string{"--stdout", "--stdin", "-v", "en-gb", "-s", "200"}, calls[0].args)
	assert.Equal(t, "Hello world", calls[0].stdin)
}

func TestEspeakAdapter_ListVoicesCached(t *testing.T) {
	var calls []espeakCall
	a := NewEspeakAdapter(EspeakConfig{}, fakeEspeakRunner(t, &calls))

	for i := 0; i < 3; i++ {
		list, err := a.ListVoices(context.Background())
		require.NoError(t, err)
		assert.True(t, list.Contains("en"))
	}
	assert.Len(t, calls, 1)
	assert.Equal(t, "espeak-ng", calls[0].name)
}

func TestEspeakAdapter_Errors(t *testing.T) {
	notFound := func(context.Context, io.Reader, string, ...string) ([]byte, error) {
		return nil, fmt.Errorf("espeak-ng failed: %w", exec.ErrNotFound)
	}
	a := NewEspeakAdapter(EspeakConfig{}, notFound)
	_, err := a.ListVoices(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, Normalize(err).Status())

	timeout := func(context.Context, io.Reader, string, ...string) ([]byte, error) {
		return nil, context.DeadlineExceeded
	}
	a = NewEspeakAdapter(EspeakConfig{}, timeout)
	_, err = a.Synthesize(context.Background(), SynthesisRequest{Text: "hi", Voice: "en", SpeakingRate: 175})
	assert.ErrorIs(t, err, ErrTimeout)

	empty := func(context.Context, io.Reader, string, ...string) ([]byte, error) { return nil, nil }
	a = NewEspeakAdapter(EspeakConfig{}, empty)
	_, err = a.Synthesize(context.Background(), SynthesisRequest{Text: "hi", Voice: "en", SpeakingRate: 175})
	assert.ErrorIs(t, err, ErrMalformedResponse)

	crashed := func(context.Context, io.Reader, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	a = NewEspeakAdapter(EspeakConfig{}, crashed)
	_, err = a.Synthesize(context.Background(), SynthesisRequest{Text: "hi", Voice: "en", SpeakingRate: 175})
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, Normalize(err).Status())
}

func TestEspeakCapabilities(t *testing.T) {
	caps := NewEspeakAdapter(EspeakConfig{}, nil).Capabilities()
	assert.True(t, caps.SupportsRate)
	assert.Equal(t, 80.0, caps.MinRate)
	assert.Equal(t, 450.0, caps.MaxRate)
	assert.Equal(t, "en", caps.DefaultVoice)
	assert.Equal(t, FormatWAV, caps.ResolveFormat("mp3"))
}
