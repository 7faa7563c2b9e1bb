package handlers

import (
	"net/http"
	"strconv"

	"github.com/nikhilbhutani/speechgate/internal/tts"
)

type TTSHandler struct {
	dispatcher *tts.Dispatcher
}

func NewTTSHandler(d *tts.Dispatcher) *TTSHandler {
	return &TTSHandler{dispatcher: d}
}

// Speak serves GET /tts. Audio is written as-is with the adapter's content
// type; failures become {code, display} with a non-200 status.
func (h *TTSHandler) Speak(w http.ResponseWriter, r *http.Request) {
	q, err := tts.ParseQuery(r.URL.Query())
	if err != nil {
		writeAPIError(w, tts.Normalize(err))
		return
	}

	synth, apiErr := h.dispatcher.HandleTTS(r.Context(), q)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	w.Header().Set("Content-Type", synth.Result.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(synth.Result.Audio)))
	w.Header().Set("X-Synthesis-Id", synth.ID)
	w.WriteHeader(http.StatusOK)
	w.Write(synth.Result.Audio)
}

// Voices serves GET /voices.
func (h *TTSHandler) Voices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	raw, err := tts.ParseRawFlag(query.Get("raw"))
	if err != nil {
		writeAPIError(w, tts.Normalize(err))
		return
	}

	voices, apiErr := h.dispatcher.HandleVoices(r.Context(), tts.Mode(query.Get("mode")), raw)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, voices)
}

// Modes serves GET /modes.
func (h *TTSHandler) Modes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dispatcher.HandleModes())
}

func writeAPIError(w http.ResponseWriter, e *tts.APIError) {
	writeJSON(w, e.Status(), e)
}
