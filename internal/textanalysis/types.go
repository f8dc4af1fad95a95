// Package textanalysis turns free-form text into a summary, a sentiment label
// and exactly three keywords by way of a single LLM completion.
package textanalysis

// Sentiment is the closed set of labels a Result can carry.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ParseSentiment accepts only the exact lower-case literals.
func ParseSentiment(s string) (Sentiment, bool) {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return Sentiment(s), true
	default:
		return "", false
	}
}

// Keywords always holds exactly three entries.
type Keywords [3]string

// Request is a validated analysis input.
type Request struct {
	Text string `json:"text"`
}

// Result is the normalized model answer returned to callers.
type Result struct {
	Summary   string    `json:"summary"`
	Sentiment Sentiment `json:"sentiment"`
	Keywords  Keywords  `json:"keywords"`
}
