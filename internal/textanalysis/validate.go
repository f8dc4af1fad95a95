package textanalysis

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MinTextLength = 10
	MaxTextLength = 10000

	msgTextTooShort = "Text must be at least 10 characters long"
	msgTextTooLong  = "Text must not exceed 10,000 characters"
	msgTextBlank    = "Text cannot be empty or whitespace only"
)

// Rules run in order and every failure is reported, so a blank short text
// yields both the length and the blank violation.
var textRules = []struct {
	tag     string
	message string
}{
	{tag: "min=10", message: msgTextTooShort},
	{tag: "max=10000", message: msgTextTooLong},
	{tag: "nonblank", message: msgTextBlank},
}

var textValidator = newTextValidator()

func newTextValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(err)
	}
	return v
}

// ParseRequest decodes an untyped JSON body expected to look like
// {"text": "..."} and validates it.
func ParseRequest(body []byte) (Request, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Request{}, newError(KindValidation, validationPrefix+msgInvalidJSONPayload, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return Request{}, NewValidationError("Expected object, received " + jsonTypeName(raw))
	}
	value, present := obj["text"]
	if !present {
		return Request{}, NewValidationError("text: Required")
	}
	text, ok := value.(string)
	if !ok {
		return Request{}, NewValidationError("text: Expected string, received " + jsonTypeName(value))
	}
	return ValidateText(text)
}

// ValidateText checks the length and content bounds. Lengths count
// characters, not bytes.
func ValidateText(text string) (Request, error) {
	var violations []string
	for _, rule := range textRules {
		if err := textValidator.Var(text, rule.tag); err != nil {
			violations = append(violations, "text: "+rule.message)
		}
	}
	if len(violations) > 0 {
		return Request{}, NewValidationError(violations...)
	}
	return Request{Text: text}, nil
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	default:
		return "object"
	}
}
