package enrich

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// keypointItem is one element of the key-point consumer's response array.
// Wire names follow the consumer contract; every field except point is
// optional and defaulted during mapping.
type keypointItem struct {
	GuestID       string `json:"guestId"`
	Point         string `json:"point"`
	Todo          bool   `json:"todo"`
	SuggestedBy   string `json:"suggestedBy"`
	NeedsFollowUp bool   `json:"needsFollowUp"`
	Timestamp     string `json:"timestamp"`
}

// keypointResponse is the expected JSON structure of the key-point consumer.
type keypointResponse struct {
	Items []keypointItem `json:"items"`
}

// speakerResponse is the expected JSON structure of the speaker consumer.
type speakerResponse struct {
	GuestID    string  `json:"guestId"`
	GuestName  string  `json:"guestName"`
	JobTitle   string  `json:"jobTitle"`
	Confidence float64 `json:"confidence"`
}

// parseKeypointResponse attempts to decode the consumer reply. It strips
// markdown code fences first, since many models wrap JSON output in them.
func parseKeypointResponse(content string) (*keypointResponse, error) {
	cleaned := stripMarkdown(content)

	var r keypointResponse
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, fmt.Errorf("enrich: parse keypoint response: %w", err)
	}
	return &r, nil
}

// parseSpeakerResponse attempts to decode the speaker consumer reply.
func parseSpeakerResponse(content string) (*speakerResponse, error) {
	cleaned := stripMarkdown(content)

	var r speakerResponse
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, fmt.Errorf("enrich: parse speaker response: %w", err)
	}
	return &r, nil
}

// parseItemTimestamp decodes the optional per-item timestamp. Returns the
// zero time when absent or unparseable, in which case the caller falls back
// to the chunk arrival time.
func parseItemTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
