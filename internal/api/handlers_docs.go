package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dgallion1/docchunk/internal/store"
	"github.com/go-chi/chi/v5"
)

// handleListDocuments lists stored documents, newest first.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	docs, err := s.store.ListDocuments(r.Context(), limit)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": docs})
}

// handleDocumentChunks returns a document with its stored chunk records.
func (s *Server) handleDocumentChunks(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	ctx := r.Context()

	doc, err := s.store.Document(ctx, docID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to read document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	chunks, err := s.store.Chunks(ctx, docID)
	if err != nil {
		jsonError(w, "failed to read chunks: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"document": doc,
		"chunks":   chunks,
	})
}

// handleDeleteDocument deletes a document, its chunks and its asset files.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	ctx := r.Context()

	err := s.store.DeleteDocument(ctx, docID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	assetsDeleted := false
	if s.assets != nil {
		if err := s.assets.Remove(docID); err != nil {
			s.log.Warn("asset cleanup failed", "doc_id", docID, "error", err)
		} else {
			assetsDeleted = true
		}
	}

	remoteDeleted := false
	if s.remote != nil {
		if err := s.remote.DeleteDocument(ctx, docID); err != nil {
			s.log.Warn("pathstore cleanup failed", "doc_id", docID, "error", err)
		} else {
			remoteDeleted = true
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id":            docID,
		"deleted":           true,
		"assets_deleted":    assetsDeleted,
		"pathstore_deleted": remoteDeleted,
	})
}
