package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"stageportal/internal/http/response"
)

type DocumentReader interface {
	Retrieve(ctx context.Context, ref string) ([]byte, error)
}

type DocumentHandler struct {
	documents DocumentReader
}

func NewDocumentHandler(documents DocumentReader) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Get serves a stored PDF by its reference. Unknown or malformed
// references are reported as not found.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	content, err := h.documents.Retrieve(r.Context(), mux.Vars(r)["filename"])
	if err != nil {
		response.Error(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}
