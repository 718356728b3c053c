package docmodel

import "time"

// Chunk is a contiguous range of paragraphs packaged as one retrieval unit.
type Chunk struct {
	ID             int           `json:"chunk_id"`
	Text           string        `json:"text"`
	StartParagraph int           `json:"start_paragraph_id"`
	EndParagraph   int           `json:"end_paragraph_id"` // inclusive
	Assets         []*Asset      `json:"images"`
	WordCount      int           `json:"word_count"`
	CharCount      int           `json:"char_count"`
	Metadata       ChunkMetadata `json:"metadata"`
}

// ChunkMetadata is the fixed set of chunk facts plus an extension map for
// anything non-contractual.
type ChunkMetadata struct {
	ContainsHeading bool           `json:"contains_headings"`
	AssetCount      int            `json:"image_count"`
	ParagraphIDs    []int          `json:"paragraph_ids"`
	SectionTitle    string         `json:"section_title"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// ParagraphCount is the number of paragraphs the chunk spans.
func (c Chunk) ParagraphCount() int {
	return c.EndParagraph - c.StartParagraph + 1
}

// Document is the stored summary of one processed document.
type Document struct {
	ID             string `json:"doc_id"`
	Name           string `json:"filename"`
	Title          string `json:"title"`
	Format         string `json:"format"`
	ContentHash    string `json:"content_hash"`
	ParagraphCount int    `json:"paragraph_count"`
	ChunkCount     int    `json:"chunk_count"`
	AssetCount     int    `json:"asset_count"`
	// UnassignedImages lists the assets no paragraph claimed, in the same
	// JSON form as a chunk's images. Empty when every asset is anchored.
	UnassignedImages string    `json:"unassigned_images"`
	CreatedAt        time.Time `json:"created_at"`
}
