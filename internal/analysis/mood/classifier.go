package mood

import "strings"

// Mood is the coarse affect label used to bias prompts and pick fallback
// suggestion pools.
type Mood string

const (
	Positive Mood = "positive"
	Negative Mood = "negative"
	Anxious  Mood = "anxious"
	Neutral  Mood = "neutral"
)

var keywordBuckets = map[Mood][]string{
	Positive: {
		"happy", "grateful", "proud", "excited", "hopeful", "great day",
		"heureux", "heureuse", "content", "contente", "fière", "fier", "reconnaissant",
		"سعيد", "سعيدة", "ممتن", "فخور", "متفائل",
	},
	Negative: {
		"sad", "tired", "lonely", "angry", "empty", "cried",
		"triste", "fatigué", "fatiguée", "seul", "seule", "en colère", "vide",
		"حزين", "حزينة", "متعب", "وحيد", "غاضب", "فارغ",
	},
	Anxious: {
		"anxious", "worried", "panic", "overwhelmed", "scared", "stress",
		"anxieux", "anxieuse", "inquiet", "inquiète", "angoissé", "angoissée", "débordé", "débordée", "stressé",
		"قلق", "قلقة", "خائف", "خائفة", "توتر", "مرهق",
	},
}

// Classify scores free text against the keyword buckets and returns the best
// label. Anxious outranks plain negative on ties since it is the more
// specific signal; anything without a hit is neutral.
func Classify(text string) Mood {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Neutral
	}

	scores := make(map[Mood]int, len(keywordBuckets))
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if word == "" {
				continue
			}
			if strings.Contains(normalized, strings.ToLower(word)) {
				scores[label]++
			}
		}
	}

	best := Neutral
	bestScore := 0
	for _, label := range []Mood{Anxious, Negative, Positive} {
		if scores[label] > bestScore {
			best = label
			bestScore = scores[label]
		}
	}
	return best
}

// Parse validates a client-supplied mood hint, falling back to Neutral.
func Parse(raw string) (Mood, bool) {
	switch Mood(strings.ToLower(strings.TrimSpace(raw))) {
	case Positive:
		return Positive, true
	case Negative:
		return Negative, true
	case Anxious:
		return Anxious, true
	case Neutral:
		return Neutral, true
	default:
		return Neutral, false
	}
}
