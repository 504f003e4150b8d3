package generate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alefedor/notequiz/internal/model"
)

// stubGenerator returns canned responses or errors per category and records
// the counts it was asked for.
type stubGenerator struct {
	mu        sync.Mutex
	responses map[model.QuestionType]string
	errs      map[model.QuestionType]error
	counts    map[model.QuestionType]int
}

func (s *stubGenerator) GenerateQuestions(_ context.Context, category model.QuestionType, _ string, count int) (string, error) {
	s.mu.Lock()
	if s.counts == nil {
		s.counts = make(map[model.QuestionType]int)
	}
	s.counts[category] = count
	s.mu.Unlock()

	if err := s.errs[category]; err != nil {
		return "", err
	}
	return s.responses[category], nil
}

func mcqArray(n int) string {
	out := "["
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"question":"mcq %d","options":["A) a","B) b"],"answer":"A","explanation":"","sourceSpan":""}`, i)
	}
	return out + "]"
}

func TestGenerateMergesInCategoryOrder(t *testing.T) {
	stub := &stubGenerator{responses: map[model.QuestionType]string{
		model.TypeMCQ:   mcqArray(2),
		model.TypeShort: `[{"question":"s1","answer":"a"},{"question":"s2","answer":"b"}]`,
		model.TypeLong:  `[{"question":"l1","answer":"essay"}]`,
	}}
	agg := New(stub)

	result, err := agg.Generate(context.Background(), "source text", model.QuestionCounts{MCQ: 2, Short: 2, Long: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Failed) != 0 {
		t.Fatalf("unexpected failures: %v", result.Failed)
	}
	if len(result.Questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(result.Questions))
	}

	wantTypes := []model.QuestionType{
		model.TypeMCQ, model.TypeMCQ,
		model.TypeShort, model.TypeShort,
		model.TypeLong,
	}
	for i, q := range result.Questions {
		if q.Type != wantTypes[i] {
			t.Errorf("question %d type = %q, want %q", i, q.Type, wantTypes[i])
		}
	}

	if stub.counts[model.TypeMCQ] != 2 || stub.counts[model.TypeShort] != 2 || stub.counts[model.TypeLong] != 1 {
		t.Errorf("unexpected requested counts: %v", stub.counts)
	}
}

func TestGeneratePartialFailure(t *testing.T) {
	stub := &stubGenerator{
		responses: map[model.QuestionType]string{model.TypeMCQ: mcqArray(3)},
		errs:      map[model.QuestionType]error{model.TypeShort: errors.New("model unreachable")},
	}
	agg := New(stub)

	result, err := agg.Generate(context.Background(), "text", model.QuestionCounts{MCQ: 3, Short: 2})
	if err != nil {
		t.Fatalf("partial failure must not abort the call: %v", err)
	}
	if len(result.Questions) != 3 {
		t.Fatalf("expected 3 mcq questions, got %d", len(result.Questions))
	}
	for i, q := range result.Questions {
		if q.Type != model.TypeMCQ {
			t.Errorf("question %d type = %q, want mcq", i, q.Type)
		}
	}
	if len(result.Failed) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(result.Failed))
	}
	if result.Failed[0].Category != model.TypeShort {
		t.Errorf("failed category = %q, want short", result.Failed[0].Category)
	}
}

func TestGenerateTotalFailure(t *testing.T) {
	stub := &stubGenerator{errs: map[model.QuestionType]error{
		model.TypeMCQ:   errors.New("down"),
		model.TypeShort: errors.New("down"),
	}}
	agg := New(stub)

	_, err := agg.Generate(context.Background(), "text", model.QuestionCounts{MCQ: 1, Short: 1})
	if !errors.Is(err, ErrAllCategoriesFailed) {
		t.Fatalf("expected ErrAllCategoriesFailed, got %v", err)
	}
}

func TestGenerateUnparseableCategory(t *testing.T) {
	stub := &stubGenerator{responses: map[model.QuestionType]string{
		model.TypeMCQ:   "sorry, I cannot help with that",
		model.TypeShort: `[{"question":"s1","answer":"a"}]`,
	}}
	agg := New(stub)

	result, err := agg.Generate(context.Background(), "text", model.QuestionCounts{MCQ: 2, Short: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Questions) != 1 || result.Questions[0].Type != model.TypeShort {
		t.Fatalf("expected only the short question, got %+v", result.Questions)
	}
	if len(result.Failed) != 1 || result.Failed[0].Category != model.TypeMCQ {
		t.Fatalf("expected mcq failure, got %v", result.Failed)
	}
}

func TestGenerateSingleObjectWrapped(t *testing.T) {
	stub := &stubGenerator{responses: map[model.QuestionType]string{
		model.TypeLong: `{"question":"only one","answer":"essay"}`,
	}}
	agg := New(stub)

	result, err := agg.Generate(context.Background(), "text", model.QuestionCounts{Long: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Questions) != 1 {
		t.Fatalf("expected single wrapped question, got %d", len(result.Questions))
	}
	if result.Questions[0].Question != "only one" {
		t.Errorf("question = %q", result.Questions[0].Question)
	}
}

func TestGenerateKeepsDeclaredType(t *testing.T) {
	stub := &stubGenerator{responses: map[model.QuestionType]string{
		model.TypeMCQ: `[{"type":"short","question":"mislabelled"},{"question":"untyped"}]`,
	}}
	agg := New(stub)

	result, err := agg.Generate(context.Background(), "text", model.QuestionCounts{MCQ: 2})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Questions[0].Type != model.TypeShort {
		t.Errorf("declared type must be kept, got %q", result.Questions[0].Type)
	}
	if result.Questions[1].Type != model.TypeMCQ {
		t.Errorf("untyped item must be tagged with requesting category, got %q", result.Questions[1].Type)
	}
}

func TestGenerateInvalidCounts(t *testing.T) {
	agg := New(&stubGenerator{})

	tests := []struct {
		name   string
		counts model.QuestionCounts
	}{
		{"all zero", model.QuestionCounts{}},
		{"negative", model.QuestionCounts{MCQ: -1, Short: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := agg.Generate(context.Background(), "text", tt.counts)
			if !errors.Is(err, ErrInvalidCounts) {
				t.Errorf("expected ErrInvalidCounts, got %v", err)
			}
		})
	}
}

func TestGenerateFencedResponse(t *testing.T) {
	stub := &stubGenerator{responses: map[model.QuestionType]string{
		model.TypeMCQ: "Here are your questions:\n```json\n" + mcqArray(2) + "\n```",
	}}
	agg := New(stub)

	result, err := agg.Generate(context.Background(), "text", model.QuestionCounts{MCQ: 2})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Questions) != 2 {
		t.Fatalf("expected 2 questions from fenced response, got %d", len(result.Questions))
	}
}
