package textanalysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Normalize parses raw model output into a Result. Every structural problem
// collapses to the same Error; the cause keeps the detail for logs.
func Normalize(content string) (Result, error) {
	res, err := normalize(content)
	if err != nil {
		return Result{}, newError(KindUpstreamMalformed, MsgInvalidFormat, err)
	}
	return res, nil
}

func normalize(content string) (Result, error) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &parsed); err != nil {
		return Result{}, fmt.Errorf("parse json: %w", err)
	}

	summary, ok := parsed["summary"].(string)
	if !ok || summary == "" {
		return Result{}, errors.New("invalid summary in response")
	}

	rawSentiment, _ := parsed["sentiment"].(string)
	sentiment, ok := ParseSentiment(rawSentiment)
	if !ok {
		return Result{}, fmt.Errorf("invalid sentiment value %q", rawSentiment)
	}

	items, ok := parsed["keywords"].([]any)
	if !ok || len(items) != len(Keywords{}) {
		return Result{}, errors.New("keywords must be an array of exactly 3 entries")
	}
	var keywords Keywords
	for i, item := range items {
		keywords[i] = stringify(item)
	}

	return Result{Summary: summary, Sentiment: sentiment, Keywords: keywords}, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// stringify renders a decoded JSON value the way a JavaScript String() call
// would, so numeric or boolean keywords are kept rather than rejected.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatNumber(t)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			if item != nil {
				parts[i] = stringify(item)
			}
		}
		return strings.Join(parts, ",")
	default:
		return "[object Object]"
	}
}

func formatNumber(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
