package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{"hello world"}, splitText("hello world", 200))
	assert.Equal(t, []string{"aaa bbb", "ccc"}, splitText("aaa bbb ccc", 7))
	assert.Equal(t, []string{"abcde", "fgh", "ij"}, splitText("abcdefgh ij", 5))
	assert.Empty(t, splitText("   \n\t ", 200))

	long := strings.Repeat("word ", 100)
	for _, chunk := range splitText(long, 200) {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 200)
	}
	assert.Equal(t, strings.TrimSpace(long), strings.Join(splitText(long, 200), " "))
}

func TestLoadGTTSLanguages(t *testing.T) {
	voices, err := loadGTTSLanguages(gttsLanguagesYAML)
	require.NoError(t, err)
	require.NotEmpty(t, voices)

	list := &VoiceList{Voices: voices}
	assert.True(t, list.Contains("en"))
	assert.True(t, list.Contains("fr"))
	for _, v := range voices {
		assert.NotEmpty(t, v.ID)
		assert.NotEmpty(t, v.Name)
	}
}

func TestGTTSAdapter_Synthesize(t *testing.T) {
	var mu sync.Mutex
	var queries []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		queries = append(queries, map[string]string{
			"tl":     q.Get("tl"),
			"q":      q.Get("q"),
			"idx":    q.Get("idx"),
			"total":  q.Get("total"),
			"client": q.Get("client"),
		})
		mu.Unlock()
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-" + q.Get("idx") + ";"))
	}))
	defer srv.Close()

	a, err := NewGTTSAdapter(GTTSConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	text := strings.Repeat("a", 150) + " " + strings.Repeat("b", 150)
	res, err := a.Synthesize(context.Background(), SynthesisRequest{Text: text, Voice: "de", Format: FormatMP3})
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", res.ContentType)
	assert.Equal(t, "mp3-0;mp3-1;", string(res.Audio))

	require.Len(t, queries, 2)
	assert.Equal(t, "de", queries[0]["tl"])
	assert.Equal(t, "tw-ob", queries[0]["client"])
	assert.Equal(t, "2", queries[1]["total"])
	assert.Equal(t, strings.Repeat("b", 150), queries[1]["q"])
}

func TestGTTSAdapter_Errors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusTooManyRequests)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	a, err := NewGTTSAdapter(GTTSConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	req := SynthesisRequest{Text: "hello", Voice: "en", Format: FormatMP3}

	_, err = a.Synthesize(context.Background(), req)
	assert.ErrorIs(t, err, ErrRateLimited)

	status.Store(http.StatusOK)
	_, err = a.Synthesize(context.Background(), req)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	status.Store(http.StatusBadGateway)
	_, err = a.Synthesize(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	_, err = a.Synthesize(context.Background(), SynthesisRequest{Text: "  ", Voice: "en"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestGTTSCapabilities(t *testing.T) {
	a, err := NewGTTSAdapter(GTTSConfig{})
	require.NoError(t, err)
	caps := a.Capabilities()
	assert.False(t, caps.SupportsRate)
	assert.Equal(t, FormatMP3, caps.ResolveFormat("ogg"))
	assert.Equal(t, "en", caps.DefaultVoice)
}
