package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alefedor/notequiz/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a referenced document id does not exist.
var ErrNotFound = errors.New("document not found")

// editSnippetLen is how many characters of the edited text each history entry keeps.
const editSnippetLen = 200

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		source_filename TEXT NOT NULL,
		source_media_type TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		raw_text TEXT NOT NULL DEFAULT '',
		raw_model_output TEXT NOT NULL DEFAULT '',
		structured TEXT NOT NULL,
		cleaned_text TEXT,
		accepted INTEGER NOT NULL DEFAULT 0,
		last_edited_by TEXT NOT NULL DEFAULT '',
		edit_history TEXT NOT NULL DEFAULT '[]',
		questions TEXT,
		questions_generated_at DATETIME,
		owner_id INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

const documentColumns = `id, source_filename, source_media_type, created_at,
	raw_text, raw_model_output, structured, cleaned_text, accepted,
	last_edited_by, edit_history, questions, questions_generated_at, owner_id`

func getDocument(q querier, id string) (model.Document, error) {
	var (
		doc            model.Document
		structuredJSON string
		historyJSON    string
		questionsJSON  sql.NullString
		cleanedText    sql.NullString
		generatedAt    sql.NullTime
	)
	err := q.QueryRow(
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id,
	).Scan(
		&doc.ID, &doc.SourceFilename, &doc.SourceMediaType, &doc.CreatedAt,
		&doc.RawText, &doc.RawModelOutput, &structuredJSON, &cleanedText,
		&doc.Accepted, &doc.LastEditedBy, &historyJSON, &questionsJSON,
		&generatedAt, &doc.OwnerID,
	)
	if err == sql.ErrNoRows {
		return model.Document{}, ErrNotFound
	}
	if err != nil {
		return model.Document{}, err
	}

	if err := json.Unmarshal([]byte(structuredJSON), &doc.Structured); err != nil {
		return model.Document{}, fmt.Errorf("decode structured for %s: %w", id, err)
	}
	if doc.Structured.Lines == nil {
		doc.Structured.Lines = []string{}
	}
	if err := json.Unmarshal([]byte(historyJSON), &doc.EditHistory); err != nil {
		return model.Document{}, fmt.Errorf("decode edit history for %s: %w", id, err)
	}
	if cleanedText.Valid {
		doc.CleanedText = &cleanedText.String
	}
	if questionsJSON.Valid {
		if err := json.Unmarshal([]byte(questionsJSON.String), &doc.Questions); err != nil {
			return model.Document{}, fmt.Errorf("decode questions for %s: %w", id, err)
		}
	}
	if generatedAt.Valid {
		t := generatedAt.Time
		doc.QuestionsGeneratedAt = &t
	}
	return doc, nil
}

// CreateDocument allocates an id, stamps creation time, and persists a new
// document. cleanedText, editHistory, and questions start absent.
func (s *Store) CreateDocument(doc model.Document) (model.Document, error) {
	doc.ID = uuid.NewString()
	doc.CreatedAt = time.Now().UTC()
	doc.CleanedText = nil
	doc.EditHistory = nil
	doc.Questions = nil
	doc.QuestionsGeneratedAt = nil
	if doc.Structured.Lines == nil {
		doc.Structured.Lines = []string{}
	}

	structuredJSON, err := json.Marshal(doc.Structured)
	if err != nil {
		return model.Document{}, fmt.Errorf("encode structured: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO documents (id, source_filename, source_media_type, created_at,
			raw_text, raw_model_output, structured, edit_history, owner_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, '[]', ?)`,
		doc.ID, doc.SourceFilename, doc.SourceMediaType, doc.CreatedAt,
		doc.RawText, doc.RawModelOutput, string(structuredJSON), doc.OwnerID,
	)
	if err != nil {
		return model.Document{}, err
	}
	return doc, nil
}

// GetDocument returns a document by id, or ErrNotFound.
func (s *Store) GetDocument(id string) (model.Document, error) {
	return getDocument(s.db, id)
}

// ApplyEdit records a human correction: it sets cleanedText and accepted,
// appends exactly one edit history entry, and writes everything in a single
// transaction so readers never see the text without its history entry.
func (s *Store) ApplyEdit(id, cleanedText string, accepted bool, editor string) (model.Document, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return model.Document{}, err
	}
	defer tx.Rollback()

	doc, err := getDocument(tx, id)
	if err != nil {
		return model.Document{}, err
	}

	if editor == "" {
		editor = "unknown"
	}
	now := time.Now().UTC()
	doc.CleanedText = &cleanedText
	doc.Accepted = accepted
	doc.LastEditedBy = editor
	doc.EditHistory = append(doc.EditHistory, model.EditEntry{
		Timestamp: now,
		Editor:    editor,
		Accepted:  accepted,
		Snippet:   snippet(cleanedText),
	})

	historyJSON, err := json.Marshal(doc.EditHistory)
	if err != nil {
		return model.Document{}, fmt.Errorf("encode edit history: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE documents SET cleaned_text = ?, accepted = ?, last_edited_by = ?, edit_history = ?
		 WHERE id = ?`,
		cleanedText, accepted, editor, string(historyJSON), id,
	)
	if err != nil {
		return model.Document{}, err
	}
	return doc, tx.Commit()
}

// ApplyGeneration replaces the document's question set wholesale and stamps
// questionsGeneratedAt. No other field is touched.
func (s *Store) ApplyGeneration(id string, questions []model.Question) (model.Document, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return model.Document{}, err
	}
	defer tx.Rollback()

	doc, err := getDocument(tx, id)
	if err != nil {
		return model.Document{}, err
	}

	now := time.Now().UTC()
	doc.Questions = questions
	doc.QuestionsGeneratedAt = &now

	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return model.Document{}, fmt.Errorf("encode questions: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE documents SET questions = ?, questions_generated_at = ? WHERE id = ?`,
		string(questionsJSON), now, id,
	)
	if err != nil {
		return model.Document{}, err
	}
	return doc, tx.Commit()
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments() ([]model.Document, error) {
	rows, err := s.db.Query(`SELECT id FROM documents ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var docs []model.Document
	for _, id := range ids {
		doc, err := getDocument(s.db, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// DocumentCount returns the number of stored documents.
func (s *Store) DocumentCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) > editSnippetLen {
		return string(runes[:editSnippetLen])
	}
	return text
}
