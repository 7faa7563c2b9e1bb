package daemon

import (
	"encoding/json"
	"fmt"
)

// Voice is a daemon voice. Name is empty when the daemon only reports ids.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// VoiceSet is a parsed voice listing together with the untouched body.
type VoiceSet struct {
	Voices []Voice
	Raw    json.RawMessage
}

// ParseVoices accepts either a flat array of ids or an array of {id, name}
// objects. Elements of neither shape are skipped.
func ParseVoices(body []byte) ([]Voice, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: voices payload is not an array", ErrMalformed)
	}

	voices := make([]Voice, 0, len(items))
	for _, item := range items {
		var obj Voice
		if err := json.Unmarshal(item, &obj); err == nil {
			if obj.ID != "" {
				voices = append(voices, obj)
			}
			continue
		}

		var id string
		if err := json.Unmarshal(item, &id); err == nil && id != "" {
			voices = append(voices, Voice{ID: id})
		}
	}
	return voices, nil
}
