package suggestion

// Suggestion types form a closed taxonomy; providers returning anything else
// are coerced to TypeGeneral during parsing.
const (
	TypeContinuation = "continuation"
	TypeReflection   = "reflection"
	TypeSupport      = "support"
	TypeCoping       = "coping"
	TypeExploration  = "exploration"
	TypeGeneral      = "general"
)

// MaxContentLength caps a single suggestion; longer provider output is
// truncated rather than rejected.
const MaxContentLength = 300

// Suggestion is an ephemeral generated prompt shown to the user. Only usage
// metadata is ever persisted.
type Suggestion struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Icon    string `json:"icon"`
}

// ValidType reports whether t belongs to the taxonomy.
func ValidType(t string) bool {
	switch t {
	case TypeContinuation, TypeReflection, TypeSupport, TypeCoping, TypeExploration, TypeGeneral:
		return true
	}
	return false
}

// Result is a successful provider response: exactly the suggestions that
// survived parsing, plus accounting for the usage log.
type Result struct {
	Provider    string       `json:"provider"`
	Suggestions []Suggestion `json:"suggestions"`
	TokensUsed  int          `json:"tokensUsed"`
}
