// Package handler exposes the JSON HTTP API: note upload and extraction,
// document review, question generation, and quiz sessions.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alefedor/notequiz/internal/extract"
	"github.com/alefedor/notequiz/internal/generate"
	appI18n "github.com/alefedor/notequiz/internal/i18n"
	"github.com/alefedor/notequiz/internal/llm"
	"github.com/alefedor/notequiz/internal/model"
	"github.com/alefedor/notequiz/internal/quiz"
	"github.com/alefedor/notequiz/internal/store"
)

// maxUploadBytes caps the multipart form size for page uploads.
const maxUploadBytes = 10 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	llm    *llm.Client
	gen    *generate.Aggregator
	config model.ServerConfig

	mu       sync.Mutex
	sessions map[string]*quiz.Session
}

// New creates a new Handler.
func New(s *store.Store, l *llm.Client, g *generate.Aggregator, cfg model.ServerConfig) *Handler {
	return &Handler{
		store:    s,
		llm:      l,
		gen:      g,
		config:   cfg,
		sessions: make(map[string]*quiz.Session),
	}
}

// Routes registers all API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleHealth)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/upload", h.handleUpload)
		r.Get("/documents", h.handleListDocuments)
		r.Get("/result/{docID}", h.handleGetResult)
		r.Put("/result/{docID}", h.handleUpdateResult)
		r.Post("/generate", h.handleGenerate)
		r.Post("/quiz/start", h.handleQuizStart)
		r.Post("/quiz/{sessionID}/submit", h.handleQuizSubmit)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/users", h.handleListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
		})
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// respondError writes a JSON error body with a localized message.
func respondError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	respondJSON(w, status, map[string]string{"error": appI18n.T(r.Context(), msgID)})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.DocumentCount()
	if err != nil {
		slog.Error("document count", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"documents": count,
	})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, r, http.StatusBadRequest, "UploadFailed")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "UploadFailed")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "UploadFailed")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	rawOutput, err := h.llm.ExtractPage(r.Context(), data, mimeType)
	if err != nil {
		slog.Error("page extraction failed", "filename", header.Filename, "error", err)
		respondError(w, r, http.StatusBadGateway, "UploadFailed")
		return
	}

	page := extract.Page(rawOutput)

	user := model.UserFromContext(r.Context())
	doc := model.Document{
		SourceFilename:  header.Filename,
		SourceMediaType: mimeType,
		RawText:         page.Text,
		RawModelOutput:  rawOutput,
		Structured:      page,
	}
	if user != nil {
		doc.OwnerID = user.ID
	}

	doc, err = h.store.CreateDocument(doc)
	if err != nil {
		slog.Error("create document", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if h.config.DataDir != "" {
		h.saveImage(doc, data)
	}

	slog.Info("page uploaded", "id", doc.ID, "filename", doc.SourceFilename, "lines", len(page.Lines))
	respondJSON(w, http.StatusCreated, doc)
}

// saveImage keeps the original page image next to the database so the review
// UI can show it alongside the extracted text. Failure to save is logged but
// never fails the upload.
func (h *Handler) saveImage(doc model.Document, data []byte) {
	ext := filepath.Ext(doc.SourceFilename)
	if ext == "" {
		ext = ".png"
	}
	path := filepath.Join(h.config.DataDir, doc.ID+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Error("save page image", "path", path, "error", err)
	}
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.ListDocuments()
	if err != nil {
		slog.Error("list documents", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []model.Document{}
	}
	respondJSON(w, http.StatusOK, docs)
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	doc, err := h.store.GetDocument(docID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "DocumentNotFound")
		return
	}
	if err != nil {
		slog.Error("get document", "id", docID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

type updateResultRequest struct {
	CleanedText string `json:"cleanedText"`
	Accepted    bool   `json:"accepted"`
}

func (h *Handler) handleUpdateResult(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	var req updateResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	editor := ""
	if user := model.UserFromContext(r.Context()); user != nil {
		editor = user.Username
	}

	doc, err := h.store.ApplyEdit(docID, req.CleanedText, req.Accepted, editor)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "DocumentNotFound")
		return
	}
	if err != nil {
		slog.Error("apply edit", "id", docID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("document edited", "id", docID, "editor", doc.LastEditedBy, "accepted", doc.Accepted)
	respondJSON(w, http.StatusOK, doc)
}

type generateRequest struct {
	DocID        string               `json:"docId"`
	Counts       model.QuestionCounts `json:"counts"`
	TextOverride string               `json:"text_override,omitempty"`
}

type generateResponse struct {
	Document model.Document             `json:"document"`
	Failed   []generate.CategoryFailure `json:"failedCategories,omitempty"`
	Message  string                     `json:"message,omitempty"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := h.store.GetDocument(req.DocID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "DocumentNotFound")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	text := req.TextOverride
	if text == "" {
		text = doc.SourceText()
	}
	if text == "" {
		respondError(w, r, http.StatusBadRequest, "NoSourceText")
		return
	}

	result, err := h.gen.Generate(r.Context(), text, req.Counts)
	if errors.Is(err, generate.ErrInvalidCounts) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if errors.Is(err, generate.ErrAllCategoriesFailed) {
		respondError(w, r, http.StatusBadGateway, "GenerationFailed")
		return
	}
	if err != nil {
		slog.Error("generation failed", "doc_id", req.DocID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	doc, err = h.store.ApplyGeneration(req.DocID, result.Questions)
	if err != nil {
		slog.Error("apply generation", "doc_id", req.DocID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := generateResponse{Document: doc, Failed: result.Failed}
	if len(result.Failed) > 0 {
		resp.Message = appI18n.T(r.Context(), "GenerationPartial")
	} else {
		resp.Message = appI18n.Tp(r.Context(), "QuestionsGenerated", len(result.Questions))
	}

	slog.Info("questions generated", "doc_id", req.DocID,
		"count", len(result.Questions), "failed_categories", len(result.Failed))
	respondJSON(w, http.StatusOK, resp)
}

type quizStartRequest struct {
	DocID            string `json:"docId"`
	TimeLimitSeconds int    `json:"timeLimitSeconds,omitempty"`
}

type quizStartResponse struct {
	SessionID string           `json:"sessionId"`
	Questions []model.Question `json:"questions"`
	Deadline  *time.Time       `json:"deadline,omitempty"`
}

func (h *Handler) handleQuizStart(w http.ResponseWriter, r *http.Request) {
	var req quizStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := h.store.GetDocument(req.DocID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "DocumentNotFound")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Only multiple-choice items can be answered by option letter.
	questions := quiz.MCQOnly(doc.Questions)
	if len(questions) == 0 {
		http.Error(w, "document has no multiple-choice questions", http.StatusBadRequest)
		return
	}

	h.sweepSessions(time.Now())

	sess := quiz.NewSession(questions)
	if err := sess.Start(time.Duration(req.TimeLimitSeconds) * time.Second); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sessionID := uuid.NewString()
	h.mu.Lock()
	h.sessions[sessionID] = sess
	h.mu.Unlock()

	resp := quizStartResponse{SessionID: sessionID, Questions: sess.Questions()}
	if deadline, ok := sess.Deadline(); ok {
		resp.Deadline = &deadline
	}

	slog.Info("quiz started", "session_id", sessionID, "doc_id", req.DocID, "questions", len(questions))
	respondJSON(w, http.StatusOK, resp)
}

// sweepSessions drops unsubmitted sessions whose time budget ran out, so
// abandoned quizzes do not accumulate for the life of the process.
func (h *Handler) sweepSessions(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sess := range h.sessions {
		if sess.Expired(now) {
			delete(h.sessions, id)
		}
	}
}

type quizSubmitRequest struct {
	Answers model.QuizSubmission `json:"answers"`
}

type quizSubmitResponse struct {
	model.QuizResult
	Message string `json:"message"`
}

func (h *Handler) handleQuizSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	h.mu.Lock()
	sess, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		respondError(w, r, http.StatusNotFound, "QuizNotFound")
		return
	}

	var req quizSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := sess.Submit(req.Answers)
	switch {
	case errors.Is(err, quiz.ErrAlreadySubmitted):
		respondError(w, r, http.StatusConflict, "QuizAlreadySubmitted")
		return
	case errors.Is(err, quiz.ErrNotStarted):
		respondError(w, r, http.StatusConflict, "QuizNotStarted")
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	delete(h.sessions, sessionID)
	h.mu.Unlock()

	msg := appI18n.Td(r.Context(), "QuizScore", map[string]any{
		"Correct": result.Correct,
		"Total":   len(result.PerItem),
	})

	slog.Info("quiz submitted", "session_id", sessionID,
		"correct", result.Correct, "total", len(result.PerItem))
	respondJSON(w, http.StatusOK, quizSubmitResponse{QuizResult: result, Message: msg})
}
