package docmodel

import (
	"crypto/sha256"
	"encoding/hex"
)

// Resolution methods recorded on an asset position.
const (
	MethodDirectReference    = "direct_reference"
	MethodRunEmbedding       = "run_embedding"
	MethodStructuralDrawing  = "structural_drawing"
	MethodSequentialFallback = "sequential_fallback"
	MethodUnassigned         = "unassigned"
)

// Asset is one embedded binary object. Position stays nil until the anchoring
// resolver sets it.
type Asset struct {
	Index    int       `json:"index"`
	FileName string    `json:"file_name"`
	Format   string    `json:"format"`
	Data     []byte    `json:"-"`
	Size     int       `json:"size"`
	Hash     string    `json:"hash"`
	RelIDs   []string  `json:"rel_ids"`
	Target   string    `json:"target,omitempty"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
	Sources  []string  `json:"sources"`
	Position *Position `json:"position"`
}

// Position locates an asset inside the paragraph sequence.
type Position struct {
	ParagraphIndex *int   `json:"paragraph_index"`
	RunIndex       *int   `json:"run_index"`
	CharOffset     int    `json:"char_offset"`
	Context        string `json:"context"`
	Method         string `json:"method"`
}

// Anchored reports whether the asset has been attached to a paragraph.
func (a *Asset) Anchored() bool {
	return a.Position != nil && a.Position.ParagraphIndex != nil
}

// ParagraphIndex returns the anchored paragraph index, or -1.
func (a *Asset) ParagraphIndex() int {
	if !a.Anchored() {
		return -1
	}
	return *a.Position.ParagraphIndex
}

// HasRelID reports whether id is one of the asset's relationship ids.
func (a *Asset) HasRelID(id string) bool {
	for _, r := range a.RelIDs {
		if r == id {
			return true
		}
	}
	return false
}

// IntPtr returns a pointer to a copy of v.
func IntPtr(v int) *int {
	return &v
}

// HashBytes is the content identity used to deduplicate and match assets.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
