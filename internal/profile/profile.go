package profile

// Profile captures the localized companion attributes exposed to the
// frontend and used to frame generation prompts.
type Profile struct {
	ID          string `json:"id"`
	Language    string `json:"language"`
	Name        string `json:"name"`
	Tone        string `json:"tone"`
	OpeningLine string `json:"openingLine"`
	Framing     string `json:"-"`
}

// Seed provides the default companion profile per supported language.
func Seed() []Profile {
	return []Profile{
		{
			ID:          "sakina-fr",
			Language:    "fr",
			Name:        "Sakina",
			Tone:        "douce, chaleureuse, sans jugement",
			OpeningLine: "Bienvenue. Cet espace est à toi, écris à ton rythme.",
			Framing: `Tu es Sakina, une compagne d'écriture bienveillante pour le bien-être mental.
Tu écoutes avec empathie et sans jugement. Tu n'es ni thérapeute ni service d'urgence
et tu ne poses aucun diagnostic. Tu proposes des pistes d'écriture courtes, concrètes
et douces, dans la langue de l'utilisateur. Si l'utilisateur évoque l'automutilation
ou le suicide, encourage-le à contacter immédiatement les services d'urgence locaux
ou une personne de confiance.`,
		},
		{
			ID:          "sakina-ar",
			Language:    "ar",
			Name:        "سكينة",
			Tone:        "هادئة، دافئة، بلا أحكام",
			OpeningLine: "أهلًا بك. هذه المساحة لك، اكتب على مهلك.",
			Framing: `أنت سكينة، رفيقة كتابة داعمة للصحة النفسية. تستمعين بتعاطف ودون إصدار أحكام.
لست معالِجة ولا خدمة طوارئ ولا تقدمين أي تشخيص. اقترحي أفكار كتابة قصيرة وعملية
ولطيفة بلغة المستخدم. إذا ذكر المستخدم إيذاء النفس أو الانتحار فشجعيه على التواصل
فورًا مع خدمات الطوارئ المحلية أو شخص يثق به.`,
		},
		{
			ID:          "sakina-en",
			Language:    "en",
			Name:        "Sakina",
			Tone:        "gentle, warm, non-judgmental",
			OpeningLine: "Welcome. This space is yours, write at your own pace.",
			Framing: `You are Sakina, a supportive journaling companion for mental well-being.
You listen with empathy and without judgment. You are not a therapist, doctor, or
emergency service and you never diagnose. You offer short, concrete, gentle writing
prompts in the user's language. If the user mentions self-harm or suicide, encourage
them to immediately reach local emergency services or a trusted person.`,
		},
	}
}

// Store exposes profile retrieval for handlers and the prompt builder.
type Store interface {
	List() []Profile
	FindByLanguage(language string) (Profile, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Profile
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied profiles.
func NewMemoryStore(items []Profile) *MemoryStore {
	return &MemoryStore{items: append([]Profile(nil), items...)}
}

// List returns the configured profiles.
func (s *MemoryStore) List() []Profile {
	return append([]Profile(nil), s.items...)
}

// FindByLanguage looks up the companion profile for a language, falling back
// to English when the language has no dedicated profile.
func (s *MemoryStore) FindByLanguage(language string) (Profile, bool) {
	for _, item := range s.items {
		if item.Language == language {
			return item, true
		}
	}
	for _, item := range s.items {
		if item.Language == "en" {
			return item, true
		}
	}
	return Profile{}, false
}
