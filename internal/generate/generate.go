// Package generate turns one generation request into independent per-category
// model calls and merges their results into a single ordered question set.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alefedor/notequiz/internal/extract"
	"github.com/alefedor/notequiz/internal/model"
)

var (
	// ErrInvalidCounts is returned for malformed count payloads, before any
	// model call is issued.
	ErrInvalidCounts = errors.New("invalid question counts")
	// ErrAllCategoriesFailed is returned only when every requested category
	// failed; a single surviving category makes the call a partial success.
	ErrAllCategoriesFailed = errors.New("all requested categories failed")
)

// Generator is the text-model call the aggregator fans out to.
type Generator interface {
	GenerateQuestions(ctx context.Context, category model.QuestionType, text string, count int) (string, error)
}

// CategoryFailure records one category that yielded no questions.
type CategoryFailure struct {
	Category model.QuestionType `json:"category"`
	Reason   string             `json:"reason"`
}

// Result is the outcome of one aggregate generation call: the merged question
// sequence plus the categories that contributed nothing.
type Result struct {
	Questions []model.Question
	Failed    []CategoryFailure
}

// Aggregator issues one generation call per requested category and merges the
// results in fixed category order.
type Aggregator struct {
	gen Generator
}

func New(gen Generator) *Aggregator {
	return &Aggregator{gen: gen}
}

// Generate runs one model call per category with a requested count > 0. Calls
// run concurrently but results merge in category order (mcq, short, long), so
// repeated runs order identically regardless of completion order. A category
// whose call or parse fails contributes zero questions and one failure record;
// the call errors only if every requested category failed.
func (a *Aggregator) Generate(ctx context.Context, text string, counts model.QuestionCounts) (*Result, error) {
	if counts.MCQ < 0 || counts.Short < 0 || counts.Long < 0 {
		return nil, fmt.Errorf("%w: counts must be non-negative", ErrInvalidCounts)
	}
	if counts.Total() == 0 {
		return nil, fmt.Errorf("%w: at least one category count must be positive", ErrInvalidCounts)
	}

	var requested []model.QuestionType
	for _, cat := range model.Categories() {
		if counts.ByCategory(cat) > 0 {
			requested = append(requested, cat)
		}
	}

	type outcome struct {
		questions []model.Question
		err       error
	}
	slots := make([]outcome, len(requested))

	var g errgroup.Group
	for i, cat := range requested {
		count := counts.ByCategory(cat)
		g.Go(func() error {
			raw, err := a.gen.GenerateQuestions(ctx, cat, text, count)
			if err != nil {
				slots[i].err = err
				return nil
			}
			questions, ok := parseQuestions(raw, cat)
			if !ok {
				slots[i].err = fmt.Errorf("no usable JSON in %s response", cat)
				return nil
			}
			slots[i].questions = questions
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{}
	for i, cat := range requested {
		if slots[i].err != nil {
			slog.Warn("question category failed", "category", cat, "error", slots[i].err)
			result.Failed = append(result.Failed, CategoryFailure{
				Category: cat,
				Reason:   slots[i].err.Error(),
			})
			continue
		}
		result.Questions = append(result.Questions, slots[i].questions...)
	}

	if len(result.Failed) == len(requested) {
		return nil, fmt.Errorf("%w: %d categories", ErrAllCategoriesFailed, len(requested))
	}
	return result, nil
}

// parseQuestions recovers a question list from raw model output. Items keep a
// type they already declare; untyped items are tagged with the requesting
// category. Individually malformed items are skipped, not fatal.
func parseQuestions(raw string, category model.QuestionType) ([]model.Question, bool) {
	items, ok := extract.Array(raw)
	if !ok {
		return nil, false
	}

	questions := make([]model.Question, 0, len(items))
	for _, item := range items {
		var q model.Question
		if err := json.Unmarshal(item, &q); err != nil {
			slog.Debug("skipping malformed question item", "category", category, "error", err)
			continue
		}
		if q.Type == "" {
			q.Type = category
		}
		questions = append(questions, q)
	}
	return questions, true
}
