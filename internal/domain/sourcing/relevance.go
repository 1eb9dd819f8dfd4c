package sourcing

import (
	"math"
	"strings"
)

// categoryKeywords maps category names to the title keywords that identify them.
var categoryKeywords = map[string][]string{
	"electronics": {"phone", "laptop", "tablet", "headphone", "earbud", "camera", "charger", "speaker", "smartwatch", "usb", "bluetooth", "keyboard", "mouse"},
	"fashion":     {"dress", "shirt", "jacket", "jeans", "shoe", "sneaker", "hoodie", "skirt", "coat", "sweater", "bag"},
	"home":        {"kitchen", "lamp", "pillow", "blanket", "curtain", "storage", "organizer", "towel", "mug", "rug"},
	"beauty":      {"makeup", "lipstick", "skincare", "serum", "nail", "brush", "perfume", "cream", "mascara"},
	"sports":      {"yoga", "fitness", "gym", "bike", "cycling", "running", "dumbbell", "camping", "fishing"},
	"toys":        {"toy", "puzzle", "doll", "lego", "plush", "rc car", "game"},
	"automotive":  {"car", "vehicle", "tire", "dash cam", "seat cover", "motorcycle"},
	"jewelry":     {"necklace", "ring", "bracelet", "earring", "pendant", "watch"},
	"pets":        {"dog", "cat", "pet", "leash", "collar", "aquarium"},
	"office":      {"pen", "notebook", "desk", "stapler", "planner", "printer"},
}

// CategoryKeywords returns the keyword set for a category name.
// The second result is false for categories not in the table.
func CategoryKeywords(category string) ([]string, bool) {
	kws, ok := categoryKeywords[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		return nil, false
	}
	out := make([]string, len(kws))
	copy(out, kws)
	return out, true
}

// SearchKeywords builds the lower-cased, de-duplicated keyword list for a request.
// Free text is split on whitespace. Known categories expand through the table;
// unknown category names are used as a single keyword.
func SearchKeywords(freeText string, categories []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(kw string) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			return
		}
		if _, ok := seen[kw]; ok {
			return
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}

	for _, kw := range strings.Fields(freeText) {
		add(kw)
	}
	for _, cat := range categories {
		if kws, ok := CategoryKeywords(cat); ok {
			for _, kw := range kws {
				add(kw)
			}
			continue
		}
		add(cat)
	}
	return out
}

// MatchCount returns how many keywords occur in the title (case-insensitive substring).
// Keywords must already be lower-cased.
func MatchCount(title string, keywords []string) int {
	lower := strings.ToLower(title)
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// MatchesAny reports whether the title passes the keyword filter.
// An empty keyword list passes everything.
func MatchesAny(title string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ScoringPolicy holds the relevance score weights.
type ScoringPolicy struct {
	KeywordWeight float64
	RatingWeight  float64
	VolumeWeight  float64
}

// DefaultScoringPolicy returns 10 per keyword, 2 x rating and log10(volume+1)
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		KeywordWeight: 10,
		RatingWeight:  2,
		VolumeWeight:  1,
	}
}

// Score computes the relevance of a listing for the given keywords
func (p ScoringPolicy) Score(l *SourceListing, keywords []string) float64 {
	matches := MatchCount(l.Title, keywords)
	return p.KeywordWeight*float64(matches) +
		p.RatingWeight*l.RatingOrZero() +
		p.VolumeWeight*math.Log10(float64(l.SalesOrZero())+1)
}
