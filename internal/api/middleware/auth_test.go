package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestSharedSecret_Disabled(t *testing.T) {
	h := SharedSecret("")(okHandler)
	for _, header := range []string{"", "anything", "Bearer x"} {
		req := httptest.NewRequest(http.MethodGet, "/tts?mode=espeak", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "header %q", header)
	}
}

func TestSharedSecret_Enforced(t *testing.T) {
	h := SharedSecret("s3cret")(okHandler)

	for _, tc := range []struct {
		name, header, path string
	}{
		{"missing", "", "/tts?mode=espeak"},
		{"wrong", "nope", "/tts?mode=gwent"},
		{"prefix", "s3cre", "/voices?mode=polly"},
		{"bearer form", "Bearer s3cret", "/modes"},
		{"unknown mode", "", "/tts?mode=does-not-exist"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body struct {
				Code    int    `json:"code"`
				Display string `json:"display"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, 4, body.Code)
			assert.NotEmpty(t, body.Display)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/tts?mode=espeak", nil)
	req.Header.Set("Authorization", "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
