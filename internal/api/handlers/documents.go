package handlers

import (
	"net/http"
	"time"

	"github.com/harbor-analytics/claimlens/internal/api"
	"github.com/harbor-analytics/claimlens/internal/index"
)

type DocumentsHandler struct {
	idx index.Index
}

func NewDocumentsHandler(idx index.Index) *DocumentsHandler {
	return &DocumentsHandler{idx: idx}
}

type DocumentResponse struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	Chunks       int    `json:"chunks"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

type DocumentsResponse struct {
	Documents []*DocumentResponse `json:"documents"`
}

// List returns the indexed document inventory with per-document chunk counts.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	stats, err := h.idx.ListDocuments(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(stats))
	for i, s := range stats {
		updatedAt := ""
		if !s.UpdatedAt.IsZero() {
			updatedAt = s.UpdatedAt.UTC().Format(time.RFC3339Nano)
		}
		responses[i] = &DocumentResponse{
			DocumentID:   s.DocumentID,
			DocumentName: s.DocumentName,
			Chunks:       s.Chunks,
			UpdatedAt:    updatedAt,
		}
	}

	api.Success(w, http.StatusOK, DocumentsResponse{Documents: responses})
}
