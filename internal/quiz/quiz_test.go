package quiz

import (
	"reflect"
	"testing"
	"time"

	"github.com/alefedor/notequiz/internal/model"
)

func mcq(answer model.Answer, options ...string) model.Question {
	return model.Question{
		Type:     model.TypeMCQ,
		Question: "test question",
		Answer:   answer,
		Options:  options,
	}
}

func textAnswer(s string) model.Answer { return model.Answer{Text: s} }
func indexAnswer(i int) model.Answer   { return model.Answer{Index: i, IsIndex: true} }

func TestCanonicalAnswer(t *testing.T) {
	fourOptions := []string{"A) Paris", "B) Lyon", "C) Nice", "D) Tours"}

	tests := []struct {
		name string
		q    model.Question
		want string
	}{
		{
			name: "letter uppercase",
			q:    mcq(textAnswer("B"), fourOptions...),
			want: "B",
		},
		{
			name: "letter lowercase",
			q:    mcq(textAnswer("c"), fourOptions...),
			want: "C",
		},
		{
			name: "letter out of option range falls through to default",
			q:    mcq(textAnswer("D"), "A) yes", "B) no"),
			want: "A",
		},
		{
			name: "numeric index",
			q:    mcq(indexAnswer(2), fourOptions...),
			want: "C",
		},
		{
			name: "numeric index zero",
			q:    mcq(indexAnswer(0), fourOptions...),
			want: "A",
		},
		{
			name: "numeric index out of range",
			q:    mcq(indexAnswer(7), fourOptions...),
			want: "A",
		},
		{
			name: "digit string index",
			q:    mcq(textAnswer("3"), fourOptions...),
			want: "D",
		},
		{
			name: "digit string out of range",
			q:    mcq(textAnswer("9"), fourOptions...),
			want: "A",
		},
		{
			name: "full text match against prefixed option",
			q:    mcq(textAnswer("Paris"), fourOptions...),
			want: "A",
		},
		{
			name: "full text match ignores case and whitespace",
			q:    mcq(textAnswer("  lyon "), fourOptions...),
			want: "B",
		},
		{
			name: "full text with its own letter prefix",
			q:    mcq(textAnswer("C) Nice"), fourOptions...),
			want: "C",
		},
		{
			name: "digit prefixed options",
			q:    mcq(textAnswer("green"), "1. red", "2. green", "3. blue"),
			want: "B",
		},
		{
			name: "unmatched text defaults to first option",
			q:    mcq(textAnswer("Marseille"), fourOptions...),
			want: "A",
		},
		{
			name: "empty answer defaults",
			q:    mcq(textAnswer(""), fourOptions...),
			want: "A",
		},
		{
			name: "no options defaults",
			q:    mcq(textAnswer("B")),
			want: "A",
		},
		{
			name: "legacy correctAnswer field",
			q: model.Question{
				Type:          model.TypeMCQ,
				CorrectAnswer: textAnswer("D"),
				Options:       fourOptions,
			},
			want: "D",
		},
		{
			name: "answer takes precedence over legacy field",
			q: model.Question{
				Type:          model.TypeMCQ,
				Answer:        textAnswer("B"),
				CorrectAnswer: textAnswer("D"),
				Options:       fourOptions,
			},
			want: "B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalAnswer(tt.q); got != tt.want {
				t.Errorf("CanonicalAnswer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMCQOnly(t *testing.T) {
	mixed := []model.Question{
		mcq(textAnswer("A"), "A) one", "B) two"),
		{Type: model.TypeShort, Question: "define osmosis", Answer: textAnswer("diffusion of water")},
		mcq(textAnswer("B"), "A) one", "B) two"),
		{Type: model.TypeLong, Question: "explain respiration", Answer: textAnswer("essay")},
	}

	got := MCQOnly(mixed)
	if len(got) != 2 {
		t.Fatalf("MCQOnly() kept %d questions, want 2", len(got))
	}
	for i, q := range got {
		if q.Type != model.TypeMCQ {
			t.Errorf("question %d type = %q, want mcq", i, q.Type)
		}
	}

	// Answering every quizzable question correctly is a perfect score; the
	// free-text items must not inflate the denominator.
	result := Score(got, model.QuizSubmission{0: "A", 1: "B"})
	if result.Correct != 2 || len(result.PerItem) != 2 {
		t.Errorf("score = %d/%d, want 2/2", result.Correct, len(result.PerItem))
	}
}

func TestScore(t *testing.T) {
	questions := []model.Question{
		mcq(textAnswer("A"), "A) one", "B) two"),
		mcq(indexAnswer(1), "A) red", "B) green", "C) blue"),
		mcq(textAnswer("Nice"), "A) Paris", "B) Lyon", "C) Nice", "D) Tours"),
	}

	result := Score(questions, model.QuizSubmission{0: "A", 1: "b", 2: "D"})

	if result.Correct != 2 {
		t.Errorf("Correct = %d, want 2", result.Correct)
	}
	if len(result.PerItem) != 3 {
		t.Fatalf("PerItem length = %d, want 3", len(result.PerItem))
	}

	want := []model.ItemResult{
		{Index: 0, UserAnswer: "A", CorrectAnswer: "A", IsCorrect: true},
		{Index: 1, UserAnswer: "B", CorrectAnswer: "B", IsCorrect: true},
		{Index: 2, UserAnswer: "D", CorrectAnswer: "C", IsCorrect: false},
	}
	if !reflect.DeepEqual(result.PerItem, want) {
		t.Errorf("PerItem = %+v, want %+v", result.PerItem, want)
	}
}

func TestScoreEmptySubmission(t *testing.T) {
	questions := []model.Question{
		mcq(textAnswer("A"), "A) one", "B) two"),
		mcq(textAnswer("B"), "A) one", "B) two"),
	}

	result := Score(questions, model.QuizSubmission{})

	if result.Correct != 0 {
		t.Errorf("Correct = %d, want 0", result.Correct)
	}
	for _, item := range result.PerItem {
		if item.IsCorrect {
			t.Errorf("item %d marked correct with no answer", item.Index)
		}
		if item.UserAnswer != "" {
			t.Errorf("item %d UserAnswer = %q, want empty", item.Index, item.UserAnswer)
		}
	}
}

func TestScoreIsPure(t *testing.T) {
	questions := []model.Question{
		mcq(textAnswer("Paris"), "A) Paris", "B) Lyon"),
	}
	submission := model.QuizSubmission{0: "A"}

	first := Score(questions, submission)
	second := Score(questions, submission)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated scoring differs: %+v vs %+v", first, second)
	}
	if questions[0].Answer.Text != "Paris" {
		t.Errorf("questions mutated by scoring")
	}
}

func TestSessionLifecycle(t *testing.T) {
	questions := []model.Question{
		mcq(textAnswer("A"), "A) one", "B) two"),
	}
	s := NewSession(questions)

	if s.State() != StateNotStarted {
		t.Fatalf("State = %q, want %q", s.State(), StateNotStarted)
	}
	if _, err := s.Submit(model.QuizSubmission{0: "A"}); err != ErrNotStarted {
		t.Fatalf("Submit before Start: err = %v, want ErrNotStarted", err)
	}

	if err := s.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.State() != StateInProgress {
		t.Fatalf("State = %q, want %q", s.State(), StateInProgress)
	}
	if err := s.Start(0); err != ErrAlreadyStarted {
		t.Fatalf("second Start: err = %v, want ErrAlreadyStarted", err)
	}

	result, err := s.Submit(model.QuizSubmission{0: "A"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Correct != 1 {
		t.Errorf("Correct = %d, want 1", result.Correct)
	}
	if s.State() != StateSubmitted {
		t.Errorf("State = %q, want %q", s.State(), StateSubmitted)
	}

	if _, err := s.Submit(model.QuizSubmission{0: "A"}); err != ErrAlreadySubmitted {
		t.Errorf("second Submit: err = %v, want ErrAlreadySubmitted", err)
	}

	stored, ok := s.Result()
	if !ok {
		t.Fatalf("Result() not available after submit")
	}
	if !reflect.DeepEqual(stored, result) {
		t.Errorf("stored result %+v differs from returned %+v", stored, result)
	}
}

func TestSessionDeadline(t *testing.T) {
	s := NewSession([]model.Question{mcq(textAnswer("A"), "A) one", "B) two")})

	if err := s.Start(time.Minute); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline, ok := s.Deadline()
	if !ok {
		t.Fatalf("Deadline() reports none set")
	}
	if s.Expired(deadline.Add(-time.Second)) {
		t.Errorf("Expired before deadline")
	}
	if !s.Expired(deadline.Add(time.Second)) {
		t.Errorf("not Expired after deadline")
	}

	// An expired budget still permits the one terminal submission.
	if _, err := s.Submit(model.QuizSubmission{0: "A"}); err != nil {
		t.Errorf("Submit after deadline: %v", err)
	}
}

func TestSessionNoDeadline(t *testing.T) {
	s := NewSession(nil)
	if err := s.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, ok := s.Deadline(); ok {
		t.Errorf("Deadline() set with zero time limit")
	}
	if s.Expired(time.Now().Add(24 * time.Hour)) {
		t.Errorf("Expired with no deadline")
	}
}
