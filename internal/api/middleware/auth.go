package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/nikhilbhutani/speechgate/internal/tts"
)

// SharedSecret rejects requests whose Authorization header does not equal
// secret verbatim. An empty secret disables the check.
func SharedSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		want := []byte(secret)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("Authorization")
			if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				writeAPIError(w, tts.AuthError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAPIError(w http.ResponseWriter, e *tts.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	json.NewEncoder(w).Encode(e)
}
