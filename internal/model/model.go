package model

import (
	"context"
	"encoding/json"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleUser is a regular user who uploads and reviews notes.
	UserRoleUser UserRole = "user"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// QuestionType represents a question-generation category.
type QuestionType string

const (
	TypeMCQ   QuestionType = "mcq"
	TypeShort QuestionType = "short"
	TypeLong  QuestionType = "long"
)

// Categories lists all question categories in their fixed merge order.
func Categories() []QuestionType {
	return []QuestionType{TypeMCQ, TypeShort, TypeLong}
}

// Answer holds a correct-answer value as produced by the generation model.
// The wire encoding is unconstrained: it may be an option letter, a zero-based
// index (number or digit string), or the full option text. Numeric and textual
// forms are kept apart so resolution never has to guess what it was given.
type Answer struct {
	Text    string
	Index   int
	IsIndex bool
}

// UnmarshalJSON accepts a JSON string or number. Anything else is kept as its
// literal text so a malformed answer degrades instead of failing the question.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = Answer{Text: s}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*a = Answer{Index: int(n), IsIndex: true}
		return nil
	}
	*a = Answer{Text: string(data)}
	return nil
}

// MarshalJSON writes the answer back in the form it arrived in.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.IsIndex {
		return json.Marshal(a.Index)
	}
	return json.Marshal(a.Text)
}

// IsZero reports whether the answer carries no value at all.
func (a Answer) IsZero() bool {
	return !a.IsIndex && a.Text == ""
}

// Question is one generated assessment item. It is owned by its Document and
// never addressable on its own.
type Question struct {
	Type     QuestionType `json:"type"`
	Question string       `json:"question"`
	Answer   Answer       `json:"answer"`
	// CorrectAnswer is a legacy alias some model outputs use instead of answer.
	CorrectAnswer Answer   `json:"correctAnswer,omitzero"`
	Options       []string `json:"options,omitempty"`
	Explanation   string   `json:"explanation"`
	SourceSpan    string   `json:"sourceSpan"`
}

// StructuredText is the typed result of page extraction: the full text plus
// the per-line split. Both fields are always present, even on degraded results.
type StructuredText struct {
	Text  string   `json:"text"`
	Lines []string `json:"lines"`
}

// EditEntry records one human correction of a document's text.
type EditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Editor    string    `json:"editor"`
	Accepted  bool      `json:"accepted"`
	Snippet   string    `json:"snippet"`
}

// Document is the persistent record of one uploaded note page and everything
// derived from it.
type Document struct {
	ID                   string         `json:"id"`
	SourceFilename       string         `json:"sourceFilename"`
	SourceMediaType      string         `json:"sourceMediaType"`
	CreatedAt            time.Time      `json:"createdAt"`
	RawText              string         `json:"rawText"`
	RawModelOutput       string         `json:"rawModelOutput"`
	Structured           StructuredText `json:"structured"`
	CleanedText          *string        `json:"cleanedText,omitempty"`
	Accepted             bool           `json:"accepted"`
	LastEditedBy         string         `json:"lastEditedBy,omitempty"`
	EditHistory          []EditEntry    `json:"editHistory,omitempty"`
	Questions            []Question     `json:"questions,omitempty"`
	QuestionsGeneratedAt *time.Time     `json:"questionsGeneratedAt,omitempty"`
	OwnerID              int64          `json:"-"`
}

// SourceText returns the text generation should run against: the human-cleaned
// text when present, otherwise the raw extraction.
func (d Document) SourceText() string {
	if d.CleanedText != nil && *d.CleanedText != "" {
		return *d.CleanedText
	}
	return d.RawText
}

// QuestionCounts holds the per-category item counts of a generation request.
type QuestionCounts struct {
	MCQ   int `json:"mcq"`
	Short int `json:"short"`
	Long  int `json:"long"`
}

// ByCategory returns the count requested for the given category.
func (c QuestionCounts) ByCategory(t QuestionType) int {
	switch t {
	case TypeMCQ:
		return c.MCQ
	case TypeShort:
		return c.Short
	case TypeLong:
		return c.Long
	}
	return 0
}

// Total returns the sum of all requested counts.
func (c QuestionCounts) Total() int {
	return c.MCQ + c.Short + c.Long
}

// QuizSubmission maps a zero-based question index to the chosen option letter.
// It is produced client-side and never persisted.
type QuizSubmission map[int]string

// ItemResult is the grading outcome for a single question.
type ItemResult struct {
	Index         int    `json:"index"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
}

// QuizResult is the outcome of scoring one submission.
type QuizResult struct {
	Correct int          `json:"correct"`
	PerItem []ItemResult `json:"perItem"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	DataDir       string // directory for uploaded page images
	SecureCookies bool   // set Secure flag on cookies (disable for local dev)
}
