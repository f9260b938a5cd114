package scriptgen

import "strings"

// CallToAction closes every script. It makes no promise and names no brand.
const CallToAction = "Follow for more ideas like this."

const basePrompt = `You write scripts for short vertical videos that are read aloud by a narrator.
Write 40 to 50 words of natural spoken English. No stage directions, hashtags, emojis or headings.
Never promise results, never name brands or real companies, and avoid medical, legal, political and financial advice.
Do not write a call to action; one is added afterwards.`

var categoryPrompts = map[string]string{
	"productivity": "Tone: brisk and practical. Open with a relatable frustration, then give one concrete habit the viewer can try today.",
	"finance":      "Tone: calm and educational. Explain one general money concept in plain words. Do not recommend specific products or investments.",
	"health":       "Tone: warm and encouraging. Share one everyday wellbeing habit. Do not diagnose or mention medication.",
	"tech":         "Tone: curious and upbeat. Explain one useful idea or shortcut without jargon and without naming products.",
	"motivation":   "Tone: energetic but grounded. Tell a tiny story or image, then land on one actionable mindset shift.",
	"education":    "Tone: clear and friendly. Teach one surprising fact and why it matters, in short sentences.",
}

const defaultCategoryPrompt = "Tone: friendly and direct. Hook the viewer in the first sentence, then deliver one useful takeaway."

// SystemPrompt returns the style prompt for category, falling back to a
// general prompt for unknown or empty categories.
func SystemPrompt(category string) string {
	style, ok := categoryPrompts[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		style = defaultCategoryPrompt
	}
	return basePrompt + "\n" + style
}

const researchPrompt = `You suggest topics for short educational videos.
Return a JSON object with the string fields "idea", "description", "why_it_matters", "useful_tips" and "category".
"category" must be one of: productivity, finance, health, tech, motivation, education.
Keep each field under 40 words. Avoid brands, guarantees and sensitive topics.`
