// Package quiz normalizes heterogeneous correct-answer encodings into a
// canonical option letter and grades submissions against it.
package quiz

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alefedor/notequiz/internal/model"
)

// defaultLetter is returned when no resolution rule matches. Upstream data is
// not guaranteed well-formed and grading must never abort on one bad question,
// so an undecidable answer grades as the first option.
const defaultLetter = "A"

var (
	letterPrefixRe = regexp.MustCompile(`^[a-z]\)\s*`)
	digitPrefixRe  = regexp.MustCompile(`^\d\.\s*`)
	digitsRe       = regexp.MustCompile(`^\d+$`)
)

// CanonicalAnswer resolves a question's correct answer to an uppercase option
// letter. Resolution order, first match wins: a letter within the option
// range, a zero-based index (number or digit string), a normalized full-text
// match against the options, and finally the default letter.
func CanonicalAnswer(q model.Question) string {
	ans := q.Answer
	if ans.IsZero() {
		ans = q.CorrectAnswer
	}
	optionCount := len(q.Options)

	if ans.IsIndex {
		if ans.Index >= 0 && ans.Index < optionCount {
			return letterAt(ans.Index)
		}
		return defaultLetter
	}

	text := strings.TrimSpace(ans.Text)

	if len(text) == 1 {
		upper := strings.ToUpper(text)
		if idx := int(upper[0] - 'A'); idx >= 0 && idx < optionCount {
			return upper
		}
	}

	if digitsRe.MatchString(text) {
		if idx, err := strconv.Atoi(text); err == nil && idx >= 0 && idx < optionCount {
			return letterAt(idx)
		}
	}

	normalized := normalizeOption(text)
	lowered := strings.ToLower(text)
	for i, opt := range q.Options {
		if normalizeOption(opt) == normalized || strings.ToLower(strings.TrimSpace(opt)) == lowered {
			return letterAt(i)
		}
	}

	return defaultLetter
}

// normalizeOption lowercases, trims, and strips a leading "A) " or "1. "
// style prefix so answer text and option text compare on content alone.
func normalizeOption(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = letterPrefixRe.ReplaceAllString(s, "")
	s = digitPrefixRe.ReplaceAllString(s, "")
	return s
}

func letterAt(idx int) string {
	return string(rune('A' + idx))
}

// MCQOnly returns the subset of questions answerable by option letter. Short
// and long items carry free-text answers and are excluded from letter-graded
// quizzes entirely rather than graded against the default letter.
func MCQOnly(questions []model.Question) []model.Question {
	out := make([]model.Question, 0, len(questions))
	for _, q := range questions {
		if q.Type == model.TypeMCQ {
			out = append(out, q)
		}
	}
	return out
}

// Score grades a submission against the question sequence. Every index gets a
// per-item verdict; an unanswered index is incorrect, never an error. The
// function is pure: identical inputs always yield identical output and the
// questions are never mutated.
func Score(questions []model.Question, submission model.QuizSubmission) model.QuizResult {
	result := model.QuizResult{PerItem: make([]model.ItemResult, 0, len(questions))}
	for i, q := range questions {
		correct := CanonicalAnswer(q)
		user := strings.ToUpper(strings.TrimSpace(submission[i]))
		isCorrect := user != "" && user == correct
		if isCorrect {
			result.Correct++
		}
		result.PerItem = append(result.PerItem, model.ItemResult{
			Index:         i,
			UserAnswer:    user,
			CorrectAnswer: correct,
			IsCorrect:     isCorrect,
		})
	}
	return result
}

// State represents the lifecycle stage of a quiz session.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateSubmitted  State = "submitted"
)

var (
	// ErrNotStarted is returned when a submission arrives before Start.
	ErrNotStarted = errors.New("quiz not started")
	// ErrAlreadySubmitted is returned on a second submission; a session is
	// terminal once scored and resubmission requires a fresh session.
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("quiz already started")
)

// Session drives one quiz attempt over a fixed question snapshot through
// not-started, in-progress, and submitted. Submission scores exactly once;
// the time budget is tracked by the caller's clock and an expired budget
// still permits the single terminal submission.
type Session struct {
	mu        sync.Mutex
	questions []model.Question
	state     State
	startedAt time.Time
	deadline  time.Time
	result    model.QuizResult
}

// NewSession creates a not-started session over a snapshot of questions.
// The snapshot is fixed: regenerating the document's questions mid-quiz does
// not shift the indexes being graded.
func NewSession(questions []model.Question) *Session {
	return &Session{questions: questions, state: StateNotStarted}
}

// Start moves the session to in-progress. A zero timeLimit means no deadline.
func (s *Session) Start(timeLimit time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateNotStarted {
		return ErrAlreadyStarted
	}
	s.state = StateInProgress
	s.startedAt = time.Now()
	if timeLimit > 0 {
		s.deadline = s.startedAt.Add(timeLimit)
	}
	return nil
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Questions returns the session's question snapshot.
func (s *Session) Questions() []model.Question {
	return s.questions
}

// Deadline returns the submission deadline and whether one is set.
func (s *Session) Deadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline, !s.deadline.IsZero()
}

// Expired reports whether the time budget has run out.
func (s *Session) Expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.deadline.IsZero() && now.After(s.deadline)
}

// Submit scores the submission and moves the session to its terminal state.
// It scores exactly once; later calls fail with ErrAlreadySubmitted.
func (s *Session) Submit(submission model.QuizSubmission) (model.QuizResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateNotStarted:
		return model.QuizResult{}, ErrNotStarted
	case StateSubmitted:
		return model.QuizResult{}, ErrAlreadySubmitted
	}
	s.result = Score(s.questions, submission)
	s.state = StateSubmitted
	return s.result, nil
}

// Result returns the stored score once the session is submitted.
func (s *Session) Result() (model.QuizResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.state == StateSubmitted
}
