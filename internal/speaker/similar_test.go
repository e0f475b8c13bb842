package speaker

import "testing"

func TestSimilarNames(t *testing.T) {
	t.Parallel()

	existing := []Identity{
		{SpeakerTag: "Speaker-0", DisplayName: "Jon Smith"},
		{SpeakerTag: "Speaker-1", DisplayName: "Maria Gonzales"},
		{SpeakerTag: "Speaker-2", DisplayName: ""},
	}

	tests := []struct {
		name     string
		tag      string
		display  string
		wantTags []string
	}{
		{"exact spelling other tag", "Speaker-9", "Jon Smith", []string{"Speaker-0"}},
		{"phonetic variant", "Speaker-9", "John Smith", []string{"Speaker-0"}},
		{"same tag is not a duplicate", "Speaker-0", "Jon Smith", nil},
		{"unrelated name", "Speaker-9", "Bartholomew Quill", nil},
		{"blank name", "Speaker-9", "   ", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := SimilarNames(tc.tag, tc.display, existing)
			if len(got) != len(tc.wantTags) {
				t.Fatalf("SimilarNames() = %+v, want tags %v", got, tc.wantTags)
			}
			for i, want := range tc.wantTags {
				if got[i].SpeakerTag != want {
					t.Errorf("hit %d = %q, want %q", i, got[i].SpeakerTag, want)
				}
			}
		})
	}
}

func TestNamesAlike(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want bool
	}{
		{"ada lovelace", "Ada Lovelace", true},
		{"Jon Smith", "John Smith", true},
		{"Catherine", "Katherine", true},
		{"Ada Lovelace", "Grace Hopper", false},
		{"Ada", "Hopper", false},
	}
	for _, tc := range tests {
		if got := namesAlike(tc.a, tc.b); got != tc.want {
			t.Errorf("namesAlike(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
