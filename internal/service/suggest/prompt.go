package suggest

import (
	"fmt"
	"strings"

	"github.com/ilyasfares/sakina/backend/internal/analysis/mood"
	"github.com/ilyasfares/sakina/backend/internal/profile"
	"github.com/ilyasfares/sakina/backend/internal/state"
)

var languageNames = map[string]string{
	"fr": "French",
	"ar": "Arabic",
	"en": "English",
}

var stageGuidance = map[state.Stage]string{
	state.StageGreeting:   "The conversation is just beginning. Offer gentle, open invitations to start writing; do not assume any context.",
	state.StageExploring:  "The user has started sharing. Help them unfold what they brought up, one layer at a time.",
	state.StageSupporting: "The conversation is established. Offer grounded support and help the user connect patterns across what they shared.",
	state.StageClosing:    "The conversation is long. Help the user consolidate: summarizing prompts, small next steps, gentle closure.",
}

var moodGuidance = map[mood.Mood]string{
	mood.Positive: "The user's mood reads positive. Help them savor and anchor it.",
	mood.Negative: "The user's mood reads low. Lead with validation and warmth before any prompt.",
	mood.Anxious:  "The user's mood reads anxious. Prefer grounding, breathing, and very small steps.",
	mood.Neutral:  "The user's mood reads neutral. Stay open and curious.",
}

// buildSystemPrompt assembles the stage-and-mood-aware framing sent to
// providers, ending with the strict output contract the parser relies on.
func buildSystemPrompt(p profile.Profile, stage state.Stage, m mood.Mood) string {
	var b strings.Builder
	b.WriteString(p.Framing)
	b.WriteString("\n\n")
	b.WriteString(stageGuidance[stage])
	b.WriteString("\n")
	b.WriteString(moodGuidance[m])
	b.WriteString("\n\n")

	lang := languageNames[p.Language]
	if lang == "" {
		lang = "English"
	}

	fmt.Fprintf(&b, `Respond with ONLY a JSON array of exactly 3 journaling suggestions in %s.
Each element: {"type": one of "continuation","reflection","support","coping","exploration","general", "content": the suggestion text (max 300 characters), "icon": a one-word tag}.
No text before or after the array.`, lang)

	return b.String()
}

// buildChatSystemPrompt is the free-form variant used by the chat session:
// same framing, no structured output contract.
func buildChatSystemPrompt(p profile.Profile, stage state.Stage, m mood.Mood) string {
	var b strings.Builder
	b.WriteString(p.Framing)
	b.WriteString("\n\n")
	b.WriteString(stageGuidance[stage])
	b.WriteString("\n")
	b.WriteString(moodGuidance[m])
	b.WriteString("\n\n")

	lang := languageNames[p.Language]
	if lang == "" {
		lang = "English"
	}

	fmt.Fprintf(&b, `Reply in %s as a warm, non-clinical companion. Keep replies to a few sentences, never diagnose or prescribe, and when the user sounds in serious distress, gently encourage reaching out to someone they trust or a local helpline.`, lang)

	return b.String()
}
