// Package sanitize turns chunks into flat storage records and guarantees
// every record field holds a value a downstream vector store accepts.
package sanitize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/docchunk/internal/docmodel"
)

// DefaultDimension is the embedding width used when none is configured.
const DefaultDimension = 1024

// Record is one chunk as written to a store.
type Record struct {
	ChunkID      string    `json:"chunk_id"`
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	Text         string    `json:"text"`
	Metadata     string    `json:"metadata"` // JSON object
	Images       string    `json:"images"`   // JSON array, or "" without images
	Vector       []float32 `json:"vector"`
	CreateTime   int64     `json:"create_time"` // unix millis
}

// Image is one entry of a record's images JSON.
type Image struct {
	FileName string         `json:"file_name"`
	FilePath string         `json:"file_path"`
	Format   string         `json:"format"`
	Position *ImagePosition `json:"position,omitempty"`
}

type ImagePosition struct {
	ParagraphIndex *int   `json:"paragraph_index"`
	CharPosition   int    `json:"char_position"`
	ParagraphText  string `json:"paragraph_text"`
}

// PathFunc returns the stored location of an asset, or "" if it was not
// written anywhere.
type PathFunc func(a *docmodel.Asset) string

// FromChunk builds the record for c. The vector is left empty; Sanitize fills
// it with a zero vector when no embedding is attached later.
func FromChunk(c docmodel.Chunk, docID, docName string, paths PathFunc) Record {
	meta := map[string]any{}
	for k, v := range c.Metadata.Extra {
		meta[k] = v
	}
	meta["document_id"] = docID
	meta["document_name"] = docName
	meta["chunk_id"] = c.ID
	meta["start_paragraph_id"] = c.StartParagraph
	meta["end_paragraph_id"] = c.EndParagraph
	meta["word_count"] = c.WordCount
	meta["char_count"] = c.CharCount
	meta["contains_headings"] = c.Metadata.ContainsHeading
	meta["image_count"] = c.Metadata.AssetCount
	meta["has_images"] = len(c.Assets) > 0
	meta["paragraph_ids"] = c.Metadata.ParagraphIDs
	meta["section_title"] = c.Metadata.SectionTitle

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	return Record{
		ChunkID:      strconv.Itoa(c.ID),
		DocumentID:   docID,
		DocumentName: docName,
		Text:         c.Text,
		Metadata:     string(metaJSON),
		Images:       ImagesJSON(c.Assets, paths),
	}
}

// ImagesJSON renders assets in the images column format: a JSON array, or ""
// when there are none.
func ImagesJSON(assets []*docmodel.Asset, paths PathFunc) string {
	if len(assets) == 0 {
		return ""
	}
	images := make([]Image, 0, len(assets))
	for _, a := range assets {
		if a == nil {
			continue
		}
		img := Image{FileName: a.FileName, Format: a.Format}
		if paths != nil {
			img.FilePath = paths(a)
		}
		if a.Position != nil {
			img.Position = &ImagePosition{
				ParagraphIndex: a.Position.ParagraphIndex,
				CharPosition:   a.Position.CharOffset,
				ParagraphText:  a.Position.Context,
			}
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		return ""
	}
	data, err := json.Marshal(images)
	if err != nil {
		return ""
	}
	return string(data)
}

// Sanitizer repairs records before they are written.
type Sanitizer struct {
	Dimension int
	Now       func() time.Time
}

func New(dimension int) *Sanitizer {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Sanitizer{Dimension: dimension, Now: time.Now}
}

// Sanitize returns a copy of r in which no field is null, the metadata is a
// JSON object and the vector has exactly Dimension finite components.
func (s *Sanitizer) Sanitize(r Record) Record {
	r.ChunkID = orDefault(r.ChunkID, "")
	r.DocumentID = orDefault(r.DocumentID, "")
	r.DocumentName = orDefault(r.DocumentName, "")
	r.Text = orDefault(r.Text, "")
	r.Images = orDefault(r.Images, "")
	r.Metadata = FixMetadata(r.Metadata)
	r.Vector = s.Vector(r.Vector)
	if r.CreateTime <= 0 {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		r.CreateTime = now().UnixMilli()
	}
	return r
}

// SanitizeAll sanitizes every record in place and returns the slice.
func (s *Sanitizer) SanitizeAll(records []Record) []Record {
	for i := range records {
		records[i] = s.Sanitize(records[i])
	}
	return records
}

// Vector returns v when it already has the right width, with non-finite
// components zeroed; otherwise a zero vector.
func (s *Sanitizer) Vector(v []float32) []float32 {
	dim := s.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}
	if len(v) != dim {
		return make([]float32, dim)
	}
	out := make([]float32, dim)
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			continue
		}
		out[i] = f
	}
	return out
}

// FixMetadata coerces s into a JSON object string. A non-empty array is
// wrapped as {"data": [...]}; anything else that is not an object becomes {}.
func FixMetadata(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "[]", "null", "undefined":
		return "{}"
	}
	if !json.Valid([]byte(s)) {
		return "{}"
	}

	switch s[0] {
	case '{':
		return s
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(s), &items); err != nil || len(items) == 0 {
			return "{}"
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(s)); err != nil {
			return "{}"
		}
		out, err := json.Marshal(map[string]json.RawMessage{"data": buf.Bytes()})
		if err != nil {
			return "{}"
		}
		return string(out)
	}
	return "{}"
}

// orDefault maps blank and literal "null" strings to def.
func orDefault(s, def string) string {
	t := strings.TrimSpace(s)
	if t == "" || strings.EqualFold(t, "null") {
		return def
	}
	return s
}
