package feed

import (
	"encoding/json"
	"strings"
)

const (
	postCollection = "app.bsky.feed.post"
)

// event covers both the firehose commit envelope and the flat {"text": ...} form
type event struct {
	Kind   string `json:"kind"`
	Commit *struct {
		Operation  string `json:"operation"`
		Collection string `json:"collection"`
		Record     struct {
			Text string `json:"text"`
		} `json:"record"`
	} `json:"commit"`
	Text string `json:"text"`
}

// ExtractText returns the post text carried by a stream message. Anything that
// is not a post creation with non-empty text is reported as !ok.
func ExtractText(raw []byte) (string, bool) {
	var ev event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return "", false
	}

	var text string
	switch {
	case ev.Commit != nil:
		if ev.Kind != "" && ev.Kind != "commit" {
			return "", false
		}
		if ev.Commit.Operation != "create" || ev.Commit.Collection != postCollection {
			return "", false
		}
		text = ev.Commit.Record.Text
	default:
		text = ev.Text
	}

	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}
