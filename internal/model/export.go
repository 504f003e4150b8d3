package model

import "time"

// NotesExport is the top-level JSON structure for document export.
type NotesExport struct {
	ExportedAt    time.Time  `json:"exported_at"`
	DocumentCount int        `json:"document_count"`
	Documents     []Document `json:"documents"`
}
