package prompts

import (
	"strings"
	"testing"

	"github.com/alefedor/notequiz/internal/model"
)

func TestPageExtraction(t *testing.T) {
	if !strings.Contains(PageExtraction, "STRICT JSON") {
		t.Error("page prompt should demand strict JSON")
	}
	if !strings.Contains(PageExtraction, `"text"`) || !strings.Contains(PageExtraction, `"lines"`) {
		t.Error("page prompt should name both required fields")
	}
}

func TestQuestions(t *testing.T) {
	tests := []struct {
		name     string
		category model.QuestionType
		count    int
		want     []string
		dontWant []string
	}{
		{
			"mcq",
			model.TypeMCQ, 4,
			[]string{"exactly 4 multiple-choice", `"options"`, `"answer"`, "sourceSpan"},
			[]string{"essay"},
		},
		{
			"short",
			model.TypeShort, 2,
			[]string{"exactly 2 short-answer", "short answer text"},
			[]string{"options", "multiple-choice"},
		},
		{
			"long",
			model.TypeLong, 3,
			[]string{"exactly 3 long-answer", "essay", "multi-paragraph"},
			[]string{"options", "multiple-choice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Questions(tt.category, "the cell membrane is selectively permeable", tt.count)
			if !strings.Contains(got, "<DOC>") || !strings.Contains(got, "</DOC>") {
				t.Error("prompt should wrap source text in DOC tags")
			}
			if !strings.Contains(got, "the cell membrane is selectively permeable") {
				t.Error("prompt should contain the source text")
			}
			if !strings.Contains(got, "Return ONLY valid JSON") {
				t.Error("prompt should forbid commentary")
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("prompt missing %q", w)
				}
			}
			for _, dw := range tt.dontWant {
				if strings.Contains(got, dw) {
					t.Errorf("prompt should not contain %q", dw)
				}
			}
		})
	}
}
