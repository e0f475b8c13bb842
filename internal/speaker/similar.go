package speaker

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultSimilarThreshold is the minimum Jaro-Winkler score at which two
// display names are considered near-duplicates.
const defaultSimilarThreshold = 0.90

// SimilarNames returns the identities from existing whose display name is a
// near-duplicate of name but whose speaker tag differs from tag.
//
// Two names match when their Jaro-Winkler similarity exceeds the threshold or
// their Double Metaphone codes coincide. The speaker pipeline uses this purely
// for diagnostics: a hit is logged so an operator can merge tags manually, but
// it never blocks or alters an upsert.
func SimilarNames(tag, name string, existing []Identity) []Identity {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	var out []Identity
	for _, id := range existing {
		if id.SpeakerTag == tag || id.DisplayName == "" {
			continue
		}
		if namesAlike(name, id.DisplayName) {
			out = append(out, id)
		}
	}
	return out
}

// namesAlike reports whether a and b are likely the same human name.
func namesAlike(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return true
	}
	if matchr.JaroWinkler(la, lb, false) >= defaultSimilarThreshold {
		return true
	}

	pa, sa := matchr.DoubleMetaphone(la)
	pb, sb := matchr.DoubleMetaphone(lb)
	if pa == "" && sa == "" {
		return false
	}
	return pa == pb || (sa != "" && sa == sb)
}
