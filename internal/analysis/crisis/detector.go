package crisis

import "strings"

// Severity levels returned by Detect. Zero means no signal.
const (
	LevelNone           = 0
	LevelSevereDistress = 2
	LevelSelfHarm       = 3
	LevelImmediate      = 4
)

// tierKeywords is one row of the detection table. Matching is a
// case-insensitive substring search over the union of all languages, so
// adding a language is purely a data change.
type tierKeywords struct {
	Tier     int
	Language string
	Keywords []string
}

var keywordTable = []tierKeywords{
	{Tier: LevelImmediate, Language: "en", Keywords: []string{
		"kill myself", "end my life", "want to die", "going to kill myself",
		"ready to die", "tonight i die", "suicide plan",
	}},
	{Tier: LevelImmediate, Language: "fr", Keywords: []string{
		"me suicider", "me tuer", "mettre fin à ma vie", "mettre fin a ma vie",
		"je veux mourir", "en finir avec la vie",
	}},
	{Tier: LevelImmediate, Language: "ar", Keywords: []string{
		"انتحار", "أريد أن أموت", "اريد ان اموت", "سأنهي حياتي", "انهاء حياتي",
	}},
	{Tier: LevelSelfHarm, Language: "en", Keywords: []string{
		"hurt myself", "harm myself", "cut myself", "self harm", "self-harm",
		"punish my body",
	}},
	{Tier: LevelSelfHarm, Language: "fr", Keywords: []string{
		"me faire du mal", "me blesser", "me mutiler", "me couper",
		"me punir physiquement",
	}},
	{Tier: LevelSelfHarm, Language: "ar", Keywords: []string{
		"أؤذي نفسي", "اؤذي نفسي", "إيذاء النفس", "ايذاء نفسي", "أجرح نفسي",
	}},
	{Tier: LevelSevereDistress, Language: "en", Keywords: []string{
		"can't go on", "cannot go on", "no reason to live", "hopeless",
		"nothing matters anymore", "everyone would be better without me",
	}},
	{Tier: LevelSevereDistress, Language: "fr", Keywords: []string{
		"je n'en peux plus", "plus aucune raison de vivre", "sans espoir",
		"plus rien n'a de sens", "tout le monde serait mieux sans moi",
	}},
	{Tier: LevelSevereDistress, Language: "ar", Keywords: []string{
		"لا أستطيع الاستمرار", "لا استطيع الاستمرار", "لا معنى للحياة",
		"فقدت الأمل", "لا أمل",
	}},
}

// Detect classifies free text into a crisis severity level. Higher tiers win
// when several match. The function is pure and never panics; any text it
// cannot make sense of is simply no match.
func Detect(text string) int {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return LevelNone
	}

	for _, tier := range []int{LevelImmediate, LevelSelfHarm, LevelSevereDistress} {
		for _, row := range keywordTable {
			if row.Tier != tier {
				continue
			}
			for _, keyword := range row.Keywords {
				if keyword == "" {
					continue
				}
				if strings.Contains(normalized, strings.ToLower(keyword)) {
					return tier
				}
			}
		}
	}
	return LevelNone
}

// IsCrisis is the binary view callers use to gate the emergency overlay.
func IsCrisis(text string) bool {
	return Detect(text) > LevelNone
}

// Snippet returns the first matched keyword for telemetry, or "" when the
// text carries no signal. It deliberately records the keyword rather than the
// surrounding user text.
func Snippet(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return ""
	}

	best := ""
	bestTier := LevelNone
	for _, row := range keywordTable {
		if row.Tier <= bestTier {
			continue
		}
		for _, keyword := range row.Keywords {
			if keyword != "" && strings.Contains(normalized, strings.ToLower(keyword)) {
				best = keyword
				bestTier = row.Tier
				break
			}
		}
	}
	return best
}
