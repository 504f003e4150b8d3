// Package extract recovers typed JSON values from noisy generative-model
// output. Model responses are supposed to be strict JSON but in practice come
// wrapped in commentary, markdown code fences, or trailing noise; everything
// here degrades to a defined fallback value instead of returning an error.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/alefedor/notequiz/internal/model"
)

var (
	fenceRe  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")
	arrayRe  = regexp.MustCompile(`\[\s*(?:\{[\s\S]*?\}\s*,?\s*)+\]`)
	objectRe = regexp.MustCompile(`\{[\s\S]*?\}`)
)

// stripFence returns the interior of the first markdown code fence, with an
// optional language tag after the opening backticks, or the input unchanged.
func stripFence(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// Recover pulls a JSON value out of noisy text. It tries, in order: the whole
// (fence-stripped) text as JSON, the first array-of-objects substring, and the
// first object substring wrapped into a one-element array. On success it
// returns the recovered JSON and true; otherwise the original input unchanged
// and false. It never fails on malformed input.
func Recover(text string) (string, bool) {
	cleaned := strings.TrimSpace(stripFence(text))

	if cleaned != "" && json.Valid([]byte(cleaned)) {
		return cleaned, true
	}

	if m := arrayRe.FindString(cleaned); m != "" && json.Valid([]byte(m)) {
		return m, true
	}

	if m := objectRe.FindString(cleaned); m != "" {
		wrapped := "[" + m + "]"
		if json.Valid([]byte(wrapped)) {
			return wrapped, true
		}
	}

	return text, false
}

// Array recovers a JSON array of objects from model output. A response that
// parses to a single object is wrapped as a one-element array. Returns false
// when nothing usable can be recovered.
func Array(text string) ([]json.RawMessage, bool) {
	raw, ok := Recover(text)
	if !ok {
		return nil, false
	}

	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		return arr, true
	}

	if strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return []json.RawMessage{json.RawMessage(raw)}, true
	}

	// Recovered a scalar; not usable as a question list.
	return nil, false
}

// Page parses the vision model's page-extraction response. The returned shape
// always has text and lines set: when structured parsing fails entirely, text
// carries the raw response and lines is empty, so callers never branch on
// extraction success.
func Page(text string) model.StructuredText {
	if raw, ok := Recover(text); ok {
		var page model.StructuredText
		if err := json.Unmarshal([]byte(raw), &page); err == nil {
			if page.Lines == nil {
				page.Lines = []string{}
			}
			return page
		}
	}
	return model.StructuredText{Text: text, Lines: []string{}}
}
