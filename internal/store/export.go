package store

import (
	"fmt"
	"time"

	"github.com/alefedor/notequiz/internal/model"
)

// ExportAllDocuments builds an export-ready snapshot of every stored document,
// including edit histories and generated questions.
func (s *Store) ExportAllDocuments() (model.NotesExport, error) {
	docs, err := s.ListDocuments()
	if err != nil {
		return model.NotesExport{}, fmt.Errorf("list documents: %w", err)
	}
	return model.NotesExport{
		ExportedAt:    time.Now().UTC(),
		DocumentCount: len(docs),
		Documents:     docs,
	}, nil
}
