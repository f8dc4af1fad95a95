package textanalysis

import "fmt"

const analysisPrompt = `Analyze the following text and provide a JSON response with exactly these three fields:
- "summary": A concise 1-2 sentence summary of the text
- "sentiment": One of "positive", "negative", or "neutral"
- "keywords": An array of exactly 3 relevant keywords extracted from the text

Text to analyze:
"%s"

Respond with valid JSON only. Do not add any other text, markdown or code fences.`

// BuildPrompt renders the fixed instruction around text. Same input, same output.
func BuildPrompt(text string) string {
	return fmt.Sprintf(analysisPrompt, text)
}
