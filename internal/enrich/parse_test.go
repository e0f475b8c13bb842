package enrich

import (
	"testing"
	"time"
)

func TestStripMarkdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"items":[]}`, `{"items":[]}`},
		{"json fence", "```json\n{\"items\":[]}\n```", `{"items":[]}`},
		{"plain fence", "```\n{\"items\":[]}\n```", `{"items":[]}`},
		{"surrounding whitespace", "  {\"items\":[]}\n", `{"items":[]}`},
		{"unterminated fence", "```json\n{\"items\":[]}", `{"items":[]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := stripMarkdown(tc.in); got != tc.want {
				t.Errorf("stripMarkdown(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseKeypointResponse(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		r, err := parseKeypointResponse(`{"items":[{"guestId":"Speaker-1","point":"Ship it","todo":true,"suggestedBy":"Speaker-2","needsFollowUp":true}]}`)
		if err != nil {
			t.Fatalf("parseKeypointResponse() error = %v", err)
		}
		if len(r.Items) != 1 {
			t.Fatalf("items = %d, want 1", len(r.Items))
		}
		it := r.Items[0]
		if it.GuestID != "Speaker-1" || it.Point != "Ship it" || !it.Todo || it.SuggestedBy != "Speaker-2" || !it.NeedsFollowUp {
			t.Errorf("item = %+v", it)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()
		for _, in := range []string{"", "not json", `{"items":`, "Sure! Here are the key points:"} {
			if _, err := parseKeypointResponse(in); err == nil {
				t.Errorf("parseKeypointResponse(%q) expected error", in)
			}
		}
	})
}

func TestParseSpeakerResponse(t *testing.T) {
	t.Parallel()

	r, err := parseSpeakerResponse("```json\n" + `{"guestId":"Speaker-0","guestName":"Ada","jobTitle":"CTO","confidence":0.8}` + "\n```")
	if err != nil {
		t.Fatalf("parseSpeakerResponse() error = %v", err)
	}
	if r.GuestID != "Speaker-0" || r.GuestName != "Ada" || r.JobTitle != "CTO" || r.Confidence != 0.8 {
		t.Errorf("response = %+v", r)
	}
}

func TestParseItemTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"empty", "", time.Time{}},
		{"rfc3339", "2026-03-14T09:26:53Z", time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)},
		{"with offset", "2026-03-14T10:26:53+01:00", time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)},
		{"garbage", "yesterday-ish", time.Time{}},
		{"date only", "2026-03-14", time.Time{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := parseItemTimestamp(tc.in); !got.Equal(tc.want) {
				t.Errorf("parseItemTimestamp(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
