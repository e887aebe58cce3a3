package analyzer

import "strings"

const systemPrompt = "You are an expert analyst. Output only valid JSON."

// maxContentLength bounds the content embedded in the prompt, in characters.
const maxContentLength = 15000

const promptTemplate = `You are an elite personal insight analyst. Analyze the following content and extract actionable intelligence across THREE dimensions.

## CONTENT TO ANALYZE:
{content}

## SOURCE METADATA:
- Title: {title}
- URL: {url}

## OUTPUT FORMAT (JSON):
Return a JSON object with the following structure. If a dimension has no relevance, set its value to null.

{
  "core_topic": "One-sentence summary of the main subject",
  "pillars": {
    "career_business": {
      "relevance_score": 0-100,
      "insight": "How this helps current job/business optimization or strengthens professional moat",
      "action_items": ["Specific actionable recommendation 1", "..."]
    },
    "market_startup": {
      "relevance_score": 0-100,
      "insight": "Hidden market pain points, unmet needs, or new business models enabled by tech combinations",
      "action_items": ["Potential opportunity 1", "..."]
    },
    "self_growth": {
      "relevance_score": 0-100,
      "insight": "New mental models, technical cognition upgrades, or global perspective expansion",
      "action_items": ["Learning or mindset shift 1", "..."]
    }
  },
  "maturity_rating": "ADOPT | TRIAL | ASSESS | HOLD",
  "tags": ["AI", "SaaS", "Management", "..."],
  "key_quotes": ["Verbatim important quote from source 1", "..."]
}

## RULES:
1. Be brutally honest - if content is low-value fluff, say so
2. Action items must be SPECIFIC and PERSONAL (not generic advice)
3. Always ground insights in actual content - no hallucination
4. Maturity rating follows ThoughtWorks Tech Radar logic:
   - ADOPT: Proven, use now
   - TRIAL: Worth pursuing, understand risks
   - ASSESS: Worth exploring, not ready for production
   - HOLD: Proceed with caution
5. Extract 1-3 key quotes that support your analysis
6. Output ONLY valid JSON, no markdown fences`

// renderPrompt fills the template in one pass so placeholder text inside the
// content is never substituted again.
func renderPrompt(content, title, url string) string {
	r := strings.NewReplacer(
		"{content}", truncate(content, maxContentLength),
		"{title}", title,
		"{url}", url,
	)
	return r.Replace(promptTemplate)
}

func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
