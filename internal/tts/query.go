package tts

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Query is an unvalidated synthesis request as received on the wire.
type Query struct {
	Text            string
	Lang            string
	Mode            Mode
	SpeakingRate    *float64
	MaxLength       *int
	PreferredFormat string
}

// ParseQuery reads the /tts query parameters. Only malformed numbers are
// rejected here; everything else is the validator's job.
func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		Text:            v.Get("text"),
		Lang:            v.Get("lang"),
		Mode:            Mode(strings.TrimSpace(v.Get("mode"))),
		PreferredFormat: v.Get("preferred_format"),
	}

	if raw := strings.TrimSpace(v.Get("speaking_rate")); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(rate) || math.IsInf(rate, 0) {
			return Query{}, fmt.Errorf("%w: speaking_rate %q is not a number", ErrInvalidQuery, raw)
		}
		q.SpeakingRate = &rate
	}

	if raw := strings.TrimSpace(v.Get("max_length")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Query{}, fmt.Errorf("%w: max_length %q is not a non-negative integer", ErrInvalidQuery, raw)
		}
		q.MaxLength = &n
	}

	return q, nil
}

// ParseRawFlag interprets the raw parameter of /voices. Empty means false.
func ParseRawFlag(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	raw, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: raw %q is not a boolean", ErrInvalidQuery, s)
	}
	return raw, nil
}
