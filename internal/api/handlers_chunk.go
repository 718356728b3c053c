package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dgallion1/docchunk/internal/docmodel"
	"github.com/dgallion1/docchunk/internal/engine"
	"github.com/dgallion1/docchunk/internal/pipeline"
)

type chunkResponse struct {
	Filename   string            `json:"filename"`
	Format     string            `json:"format"`
	Paragraphs int               `json:"paragraphs"`
	AssetCount int               `json:"asset_count"`
	Chunks     []docmodel.Chunk  `json:"chunks"`
	Unassigned []*docmodel.Asset `json:"unassigned"`
	Warnings   []string          `json:"warnings"`
	DurationMs int64             `json:"duration_ms"`
}

// handleChunk processes an upload synchronously and returns its chunks
// without storing anything.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer r.MultipartForm.RemoveAll()

	cfg := s.orchestrator.WorkerConfig()
	cfg.Engine = pipeline.EngineOptions(cfg.Engine, parseJobOptions(r))

	start := time.Now()
	doc, err := pipeline.Extract(r.Context(), s.log.With("filename", filename), cfg, s.orchestrator.Stats(), filename, data)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, engine.ErrUnsupportedFormat):
			status = http.StatusBadRequest
		case errors.Is(err, engine.ErrMalformedDocument):
			status = http.StatusUnprocessableEntity
		}
		jsonError(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chunkResponse{
		Filename:   filename,
		Format:     doc.Format,
		Paragraphs: len(doc.Paragraphs),
		AssetCount: len(doc.Assets),
		Chunks:     doc.Chunks,
		Unassigned: doc.Unassigned,
		Warnings:   doc.Warnings,
		DurationMs: time.Since(start).Milliseconds(),
	})
}
