// Package prompts builds the instructions sent to the vision and text models.
package prompts

import (
	"fmt"
	"strings"

	"github.com/alefedor/notequiz/internal/model"
)

// PageExtraction is the fixed instruction for extracting a handwritten page.
// The model is told to return strict JSON; downstream parsing still tolerates
// non-compliant responses.
const PageExtraction = `
Extract the textual contents of the provided image of handwritten notes and return STRICT JSON only.
Return your answer as a JSON object with exactly these two fields:
JSON format:
{
  "text": "<full extracted text as a single string>",
  "lines": ["line1", "line2", ...]
}
Both fields must always be present, even if empty. Do not add any commentary or extra fields. Return only valid JSON.
`

// Questions builds the generation prompt for one category. The source text is
// wrapped in a DOC tag so the model can cite spans from it.
func Questions(category model.QuestionType, text string, count int) string {
	var sb strings.Builder
	sb.WriteString("<DOC>\n")
	sb.WriteString(text)
	sb.WriteString("\n</DOC>\n")

	switch category {
	case model.TypeMCQ:
		sb.WriteString(fmt.Sprintf("Generate exactly %d multiple-choice questions (MCQs) from the text above.\n", count))
		sb.WriteString("Return a JSON array, where each item has:\n")
		sb.WriteString(`{
"question": "the question text",
"options": ["A) option 1", "B) option 2", "C) option 3", "D) option 4"],
"answer": "the correct option (as text)",
"explanation": "a short explanation",
"sourceSpan": "the relevant text span from the DOC"
}`)
		sb.WriteString("\n")
	case model.TypeShort:
		sb.WriteString(fmt.Sprintf("Generate exactly %d short-answer questions from the text above.\n", count))
		sb.WriteString("Return a JSON array, where each item has:\n")
		sb.WriteString("- question: the question text (expects a short textual answer)\n")
		sb.WriteString("- answer: the short answer text\n")
		sb.WriteString("- explanation: a short explanation or rubric\n")
		sb.WriteString("- sourceSpan: the relevant text span from the DOC\n")
	case model.TypeLong:
		sb.WriteString(fmt.Sprintf("Generate exactly %d long-answer (essay) questions from the text above.\n", count))
		sb.WriteString("Return a JSON array, where each item has:\n")
		sb.WriteString("- question: the question text (expects a longer written answer)\n")
		sb.WriteString("- answer: an exemplar/outline answer (can be multi-paragraph)\n")
		sb.WriteString("- explanation: guidance on marking/expected key points\n")
		sb.WriteString("- sourceSpan: the relevant text span from the DOC\n")
	}

	sb.WriteString("\nReturn ONLY valid JSON, no commentary or markdown.\n")
	return sb.String()
}
