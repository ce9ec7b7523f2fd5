package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/ilyasfares/sakina/backend/internal/analysis/mood"
	"github.com/ilyasfares/sakina/backend/internal/model/suggestion"
)

// LocalName tags results produced without any hosted model.
const LocalName = "local"

// Content length buckets used to key rotation cursors.
const (
	bucketEmpty = "empty"
	bucketShort = "short"
	bucketLong  = "long"
)

const shortContentLimit = 200

// poolEntry is one pre-authored suggestion. Ids are minted per request so the
// same entry never reappears with the same id.
type poolEntry struct {
	Type    string
	Content string
	Icon    string
}

// LocalFallback serves rotation-selected, pre-authored suggestions. It is the
// deterministic terminus of the failover chain and can never fail.
type LocalFallback struct {
	mu      sync.Mutex
	cursors map[string]int
}

// NewLocalFallback returns a fallback with fresh rotation state.
func NewLocalFallback() *LocalFallback {
	return &LocalFallback{cursors: make(map[string]int)}
}

func (f *LocalFallback) Name() string { return LocalName }

// Generate picks three consecutive entries from the pool for the request's
// (language, mood, length-bucket) key, advancing the cursor so back-to-back
// calls with similar context rotate instead of repeating.
func (f *LocalFallback) Generate(_ context.Context, req Request) (*suggestion.Result, error) {
	lang := normalizeLanguage(req.Language)
	bucket := contentBucket(req.Content)
	pool := candidatePool(lang, req.Mood, bucket)

	key := fmt.Sprintf("%s|%s|%s", lang, req.Mood, bucket)

	f.mu.Lock()
	cursor := f.cursors[key]
	f.cursors[key] = (cursor + 3) % len(pool)
	f.mu.Unlock()

	picks := make([]suggestion.Suggestion, 0, 3)
	for i := 0; i < 3; i++ {
		entry := pool[(cursor+i)%len(pool)]
		picks = append(picks, suggestion.Suggestion{
			ID:      uuid.NewString(),
			Type:    entry.Type,
			Content: entry.Content,
			Icon:    entry.Icon,
		})
	}

	return &suggestion.Result{Provider: LocalName, Suggestions: picks, TokensUsed: 0}, nil
}

// GenerateStream yields the first rotating suggestion as a single chunk.
func (f *LocalFallback) GenerateStream(ctx context.Context, req Request) (*schema.StreamReader[string], error) {
	result, err := f.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]string{result.Suggestions[0].Content}), nil
}

func normalizeLanguage(lang string) string {
	switch lang {
	case "fr", "ar", "en":
		return lang
	default:
		return "en"
	}
}

func contentBucket(content string) string {
	switch {
	case len(content) == 0:
		return bucketEmpty
	case len(content) <= shortContentLimit:
		return bucketShort
	default:
		return bucketLong
	}
}

// candidatePool assembles the categories that suit the request context. Every
// combination resolves to a non-empty slice.
func candidatePool(lang string, m mood.Mood, bucket string) []poolEntry {
	pools := poolsByLanguage[lang]

	var categories []string
	switch {
	case bucket == bucketEmpty:
		categories = []string{"starters", "creative", "gratitude"}
	case m == mood.Positive:
		categories = []string{"positive", "gratitude", "creative"}
	case m == mood.Anxious:
		categories = []string{"coping", "mindfulness", "reflective"}
	case m == mood.Negative:
		categories = []string{"supportive", "coping", "reflective"}
	default:
		categories = []string{"reflective", "mindfulness", "creative"}
	}

	out := make([]poolEntry, 0, 12)
	for _, cat := range categories {
		out = append(out, pools[cat]...)
	}
	return out
}

var poolsByLanguage = map[string]map[string][]poolEntry{
	"en": {
		"starters": {
			{suggestion.TypeContinuation, "What is one moment from today you would like to remember?", "pen"},
			{suggestion.TypeExploration, "How does your body feel right now, from head to toe?", "compass"},
			{suggestion.TypeGeneral, "If today had a color, what would it be and why?", "spark"},
			{suggestion.TypeContinuation, "Start with one sentence about how you slept last night.", "pen"},
		},
		"positive": {
			{suggestion.TypeContinuation, "What made this good feeling possible? Describe the ingredients.", "pen"},
			{suggestion.TypeReflection, "How could you invite more of this feeling into tomorrow?", "mirror"},
			{suggestion.TypeExploration, "Who would you like to share this moment with, and why?", "compass"},
			{suggestion.TypeContinuation, "Write down the small details of this moment so you can revisit it.", "pen"},
		},
		"supportive": {
			{suggestion.TypeSupport, "It's okay to feel heavy. What would you say to a friend feeling this way?", "heart"},
			{suggestion.TypeSupport, "You showed up for yourself by writing. What is one kind thing you can do next?", "heart"},
			{suggestion.TypeReflection, "When did you last feel a little lighter? What was different then?", "mirror"},
			{suggestion.TypeSupport, "Name the feeling without judging it. Where do you notice it in your body?", "heart"},
		},
		"coping": {
			{suggestion.TypeCoping, "Try naming five things you can see, four you can touch, three you can hear.", "anchor"},
			{suggestion.TypeCoping, "Breathe in for four counts, hold for four, out for six. Then write how it felt.", "anchor"},
			{suggestion.TypeCoping, "What is one small task you can finish in the next ten minutes?", "anchor"},
			{suggestion.TypeCoping, "Write the worry down, then write what is actually in your control.", "anchor"},
		},
		"reflective": {
			{suggestion.TypeReflection, "What is a thought you keep returning to this week?", "mirror"},
			{suggestion.TypeReflection, "What would your calmer self say about today?", "mirror"},
			{suggestion.TypeExploration, "What is something you avoided today, and what made it hard?", "compass"},
			{suggestion.TypeReflection, "If this feeling could speak, what would it ask for?", "mirror"},
		},
		"creative": {
			{suggestion.TypeExploration, "Describe your day as if it were weather on a map.", "compass"},
			{suggestion.TypeGeneral, "Write a letter to yourself one year from now.", "spark"},
			{suggestion.TypeExploration, "Pick an object near you and tell its story of today.", "compass"},
			{suggestion.TypeGeneral, "Describe a place where you feel completely at ease.", "spark"},
		},
		"mindfulness": {
			{suggestion.TypeCoping, "Pause. What are three sounds you can hear right now?", "anchor"},
			{suggestion.TypeCoping, "Notice your shoulders, your jaw, your hands. What are they holding?", "anchor"},
			{suggestion.TypeReflection, "Describe this exact moment as if you were gently observing a stranger.", "mirror"},
			{suggestion.TypeCoping, "Take one slow breath. What changed, even slightly?", "anchor"},
		},
		"gratitude": {
			{suggestion.TypeGeneral, "Name one small thing that went right today, however tiny.", "spark"},
			{suggestion.TypeReflection, "Who is someone you are grateful for, and what would you tell them?", "mirror"},
			{suggestion.TypeGeneral, "What is something your body did for you today worth thanking it for?", "spark"},
			{suggestion.TypeGeneral, "What comfort in your daily routine do you usually overlook?", "spark"},
		},
	},
	"fr": {
		"starters": {
			{suggestion.TypeContinuation, "Quel moment de la journée aimerais-tu garder en mémoire ?", "pen"},
			{suggestion.TypeExploration, "Comment te sens-tu dans ton corps, là, maintenant ?", "compass"},
			{suggestion.TypeGeneral, "Si ta journée était une couleur, laquelle serait-ce et pourquoi ?", "spark"},
			{suggestion.TypeContinuation, "Commence par une phrase sur ta nuit de sommeil.", "pen"},
		},
		"positive": {
			{suggestion.TypeContinuation, "Qu'est-ce qui a rendu ce bon moment possible ? Décris ses ingrédients.", "pen"},
			{suggestion.TypeReflection, "Comment inviter un peu plus de ce sentiment dans ta journée de demain ?", "mirror"},
			{suggestion.TypeExploration, "Avec qui aimerais-tu partager ce moment, et pourquoi ?", "compass"},
			{suggestion.TypeContinuation, "Note les petits détails de ce moment pour pouvoir y revenir.", "pen"},
		},
		"supportive": {
			{suggestion.TypeSupport, "C'est normal de se sentir lourd·e. Que dirais-tu à un·e ami·e dans cet état ?", "heart"},
			{suggestion.TypeSupport, "Écrire, c'est déjà prendre soin de toi. Quel petit geste doux peux-tu faire ensuite ?", "heart"},
			{suggestion.TypeReflection, "Quand t'es-tu senti·e un peu plus léger·ère ? Qu'est-ce qui était différent ?", "mirror"},
			{suggestion.TypeSupport, "Nomme l'émotion sans la juger. Où la sens-tu dans ton corps ?", "heart"},
		},
		"coping": {
			{suggestion.TypeCoping, "Essaie de nommer cinq choses que tu vois, quatre que tu touches, trois que tu entends.", "anchor"},
			{suggestion.TypeCoping, "Inspire sur quatre temps, retiens quatre temps, expire sur six. Puis écris ce que tu ressens.", "anchor"},
			{suggestion.TypeCoping, "Quelle petite tâche peux-tu terminer dans les dix prochaines minutes ?", "anchor"},
			{suggestion.TypeCoping, "Écris l'inquiétude, puis écris ce qui dépend vraiment de toi.", "anchor"},
		},
		"reflective": {
			{suggestion.TypeReflection, "Quelle pensée revient souvent cette semaine ?", "mirror"},
			{suggestion.TypeReflection, "Que dirait ta version la plus calme de cette journée ?", "mirror"},
			{suggestion.TypeExploration, "Qu'as-tu évité aujourd'hui, et qu'est-ce qui le rendait difficile ?", "compass"},
			{suggestion.TypeReflection, "Si ce sentiment pouvait parler, que demanderait-il ?", "mirror"},
		},
		"creative": {
			{suggestion.TypeExploration, "Décris ta journée comme une météo sur une carte.", "compass"},
			{suggestion.TypeGeneral, "Écris une lettre à toi-même dans un an.", "spark"},
			{suggestion.TypeExploration, "Choisis un objet près de toi et raconte sa journée.", "compass"},
			{suggestion.TypeGeneral, "Décris un endroit où tu te sens parfaitement à l'aise.", "spark"},
		},
		"mindfulness": {
			{suggestion.TypeCoping, "Pause. Quels sont trois sons que tu entends maintenant ?", "anchor"},
			{suggestion.TypeCoping, "Observe tes épaules, ta mâchoire, tes mains. Que retiennent-elles ?", "anchor"},
			{suggestion.TypeReflection, "Décris cet instant précis comme si tu observais doucement quelqu'un d'autre.", "mirror"},
			{suggestion.TypeCoping, "Prends une respiration lente. Qu'est-ce qui a changé, même un peu ?", "anchor"},
		},
		"gratitude": {
			{suggestion.TypeGeneral, "Nomme une petite chose qui s'est bien passée aujourd'hui, même minuscule.", "spark"},
			{suggestion.TypeReflection, "Pour qui ressens-tu de la gratitude, et que lui dirais-tu ?", "mirror"},
			{suggestion.TypeGeneral, "Qu'a fait ton corps pour toi aujourd'hui qui mérite un merci ?", "spark"},
			{suggestion.TypeGeneral, "Quel confort de ton quotidien passes-tu souvent sous silence ?", "spark"},
		},
	},
	"ar": {
		"starters": {
			{suggestion.TypeContinuation, "ما اللحظة التي تودّ أن تتذكرها من يومك؟", "pen"},
			{suggestion.TypeExploration, "كيف يشعر جسدك الآن، من الرأس إلى القدمين؟", "compass"},
			{suggestion.TypeGeneral, "لو كان يومك لونًا، فما هو ولماذا؟", "spark"},
			{suggestion.TypeContinuation, "ابدأ بجملة واحدة عن نومك الليلة الماضية.", "pen"},
		},
		"positive": {
			{suggestion.TypeContinuation, "ما الذي جعل هذا الشعور الجميل ممكنًا؟ صِف مكوناته.", "pen"},
			{suggestion.TypeReflection, "كيف يمكنك دعوة المزيد من هذا الشعور إلى يوم غد؟", "mirror"},
			{suggestion.TypeExploration, "مع من تودّ مشاركة هذه اللحظة، ولماذا؟", "compass"},
			{suggestion.TypeContinuation, "دوّن التفاصيل الصغيرة لهذه اللحظة لتعود إليها لاحقًا.", "pen"},
		},
		"supportive": {
			{suggestion.TypeSupport, "لا بأس أن تشعر بالثقل. ماذا كنت ستقول لصديق يشعر بهذا؟", "heart"},
			{suggestion.TypeSupport, "كتابتك هنا عناية بنفسك. ما اللطف الصغير الذي يمكنك فعله الآن؟", "heart"},
			{suggestion.TypeReflection, "متى شعرت بخفة أكبر آخر مرة؟ ما الذي كان مختلفًا؟", "mirror"},
			{suggestion.TypeSupport, "سمِّ الشعور دون أن تحكم عليه. أين تلاحظه في جسدك؟", "heart"},
		},
		"coping": {
			{suggestion.TypeCoping, "جرّب أن تسمي خمسة أشياء تراها، وأربعة تلمسها، وثلاثة تسمعها.", "anchor"},
			{suggestion.TypeCoping, "خذ شهيقًا لأربع عدّات، احبسه أربعًا، وازفر لستّ. ثم اكتب ما شعرت به.", "anchor"},
			{suggestion.TypeCoping, "ما المهمة الصغيرة التي يمكنك إنهاؤها خلال عشر دقائق؟", "anchor"},
			{suggestion.TypeCoping, "اكتب ما يقلقك، ثم اكتب ما هو فعلًا بين يديك.", "anchor"},
		},
		"reflective": {
			{suggestion.TypeReflection, "ما الفكرة التي تعود إليها كثيرًا هذا الأسبوع؟", "mirror"},
			{suggestion.TypeReflection, "ماذا كانت ستقول نسختك الأهدأ عن هذا اليوم؟", "mirror"},
			{suggestion.TypeExploration, "ما الذي تجنّبته اليوم، وما الذي جعله صعبًا؟", "compass"},
			{suggestion.TypeReflection, "لو استطاع هذا الشعور أن يتكلم، ماذا كان سيطلب؟", "mirror"},
		},
		"creative": {
			{suggestion.TypeExploration, "صِف يومك كأنه حالة طقس على خريطة.", "compass"},
			{suggestion.TypeGeneral, "اكتب رسالة إلى نفسك بعد سنة من الآن.", "spark"},
			{suggestion.TypeExploration, "اختر شيئًا قريبًا منك واحكِ قصته اليوم.", "compass"},
			{suggestion.TypeGeneral, "صِف مكانًا تشعر فيه براحة تامة.", "spark"},
		},
		"mindfulness": {
			{suggestion.TypeCoping, "توقف لحظة. ما الأصوات الثلاثة التي تسمعها الآن؟", "anchor"},
			{suggestion.TypeCoping, "لاحظ كتفيك وفكّك ويديك. ماذا تحمل؟", "anchor"},
			{suggestion.TypeReflection, "صِف هذه اللحظة بالضبط كأنك تراقب شخصًا آخر بلطف.", "mirror"},
			{suggestion.TypeCoping, "خذ نفسًا بطيئًا واحدًا. ما الذي تغيّر ولو قليلًا؟", "anchor"},
		},
		"gratitude": {
			{suggestion.TypeGeneral, "اذكر شيئًا صغيرًا سار على ما يرام اليوم، مهما كان بسيطًا.", "spark"},
			{suggestion.TypeReflection, "من الشخص الذي تشعر بالامتنان له، وماذا كنت ستقول له؟", "mirror"},
			{suggestion.TypeGeneral, "ما الذي فعله جسدك لأجلك اليوم ويستحق الشكر؟", "spark"},
			{suggestion.TypeGeneral, "ما الراحة اليومية التي تمر عليها دون انتباه؟", "spark"},
		},
	},
}
