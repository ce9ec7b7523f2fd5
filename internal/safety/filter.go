package safety

import "regexp"

// Category names surfaced in Verdict.Reason. The same filter screens user
// input before generation and each generated suggestion before it is
// returned, so reasons stay coarse on purpose.
const (
	CategorySelfHarm = "self-harm/suicide"
	CategorySexual   = "sexual-explicit"
	CategoryViolence = "violence"
)

// Verdict is the filter decision. Reason is set only when Unsafe is true.
type Verdict struct {
	Unsafe bool   `json:"unsafe"`
	Reason string `json:"reason,omitempty"`
}

type category struct {
	name    string
	pattern *regexp.Regexp
}

// Ordered: the first matching category wins. RE2's \b is ASCII-only so the
// patterns avoid word boundaries and rely on multiword phrases instead, which
// also keeps the Arabic alternatives matchable.
var categories = []category{
	{
		name: CategorySelfHarm,
		pattern: regexp.MustCompile(`(?i)(kill (myself|himself|herself)|suicid|end (my|his|her) life|self[- ]?harm|hurt myself|me suicider|mettre fin [àa] ma vie|me faire du mal|انتحار|أؤذي نفسي|اؤذي نفسي)`),
	},
	{
		name:    CategorySexual,
		pattern: regexp.MustCompile(`(?i)(explicit sex|sexually explicit|porn(ographie|ography)?|contenu sexuel explicite|إباحي)`),
	},
	{
		name:    CategoryViolence,
		pattern: regexp.MustCompile(`(?i)(kill (him|her|them|someone|people)|hurt (him|her|them|someone)|attack (him|her|them|someone)|faire du mal [àa] quelqu'un|tuer quelqu'un|أقتل|اقتل)`),
	},
}

// Check screens text against the disallowed categories. It never errs: a text
// the regexes cannot match is simply safe.
func Check(text string) Verdict {
	if text == "" {
		return Verdict{}
	}
	for _, cat := range categories {
		if cat.pattern.MatchString(text) {
			return Verdict{Unsafe: true, Reason: cat.name}
		}
	}
	return Verdict{}
}
