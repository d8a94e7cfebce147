package analysis

import (
	"fmt"
	"strings"
	"time"

	"marketpulse/internal/repository"
)

const systemPrompt = `You are a market intelligence analyst. You read raw
news messages and judge their investment relevance.

Scoring rubric for impact_magnitude (integer 1-10):
  1-3  background noise, routine announcements, old news
  4-6  sector-level developments worth tracking
  7-8  events likely to move a sector within days
  9-10 major macro or policy events with broad market impact

impact_direction must be exactly one of: bullish, bearish, neutral.
Always respond with JSON only, no commentary outside the JSON.`

func batchPrompt(batchText string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following %d messages. For every message return one item.\n\n", count)
	b.WriteString(batchText)
	b.WriteString(`

Respond with a single JSON object:
{
  "items": [
    {
      "index": <1-based index of the message>,
      "summary": "<one-sentence summary, max 100 chars>",
      "impact_direction": "bullish|bearish|neutral",
      "impact_magnitude": <1-10>,
      "affected_sectors": ["<sector>", ...],
      "action_suggestion": "<one short actionable note>"
    }
  ],
  "total_analyzed": <number of items>
}`)
	return b.String()
}

func digestPrompt(contextText string, stats repository.DailyStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a concise daily market intelligence synopsis for %s.\n", stats.Date)
	fmt.Fprintf(&b, "The day produced %d analyzed items, %d of them actionable (%d bullish, %d bearish).\n\n",
		stats.TotalCount, stats.ValuableCount, stats.BullishCount, stats.BearishCount)
	b.WriteString("Key items of the day:\n")
	b.WriteString(contextText)
	b.WriteString(`

Write 3-5 sentences in plain prose: the dominant theme, notable sector
rotation, and what to watch tomorrow. No headings, no bullet points,
no JSON. Respond with the prose only.`)
	return b.String()
}

func trendPrompt(asOf time.Time) string {
	return fmt.Sprintf(`Today is %s. Based on current global market conditions,
produce the trending keyword watch list for a market news filter.

Respond with a single JSON object:
{
  "HIGH": {"<category>": ["<keyword>", ...], ...},
  "MEDIUM": {"<category>": ["<keyword>", ...], ...}
}

HIGH holds themes likely to move markets this week, MEDIUM holds themes
worth tracking. Use 3-6 categories per tier and 3-8 short keywords per
category. Keywords must be literal substrings that would appear in news
text. JSON only.`, asOf.Format("2006-01-02"))
}
