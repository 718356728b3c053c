// Package docmodel holds the paragraph, asset and chunk records shared by the
// extraction, anchoring and chunking stages.
package docmodel

// ParagraphType classifies a paragraph.
type ParagraphType string

const (
	TypeNormal   ParagraphType = "normal"
	TypeHeading  ParagraphType = "heading"
	TypeListItem ParagraphType = "list_item"
	TypeTable    ParagraphType = "table"
	TypeHeader   ParagraphType = "header"
	TypeFooter   ParagraphType = "footer"
)

// Paragraph is one structural text unit, in document order.
type Paragraph struct {
	ID           int            `json:"id"`
	Text         string         `json:"text"`
	StartOffset  int            `json:"start_offset"` // rune offset into the flattened text
	EndOffset    int            `json:"end_offset"`
	Type         ParagraphType  `json:"type"`
	HeadingLevel int            `json:"heading_level"` // 0 unless Type == heading
	Style        ParagraphStyle `json:"style"`
	Runs         []RunInfo      `json:"runs"`
}

// IsHeading reports whether the paragraph is a heading at depth 1..maxDepth.
func (p Paragraph) IsHeading(maxDepth int) bool {
	return p.Type == TypeHeading && p.HeadingLevel >= 1 && p.HeadingLevel <= maxDepth
}

// ParagraphStyle carries the well-known paragraph attributes. Anything else the
// container exposes goes into Extra.
type ParagraphStyle struct {
	Name            string            `json:"name,omitempty"`
	Alignment       string            `json:"alignment,omitempty"`
	IndentLeft      int               `json:"indent_left,omitempty"`
	IndentFirstLine int               `json:"indent_first_line,omitempty"`
	SpacingBefore   int               `json:"spacing_before,omitempty"`
	SpacingLine     int               `json:"spacing_line,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// RunInfo is a formatted sub-span of a paragraph.
type RunInfo struct {
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	FontFamily string  `json:"font_family,omitempty"`
	FontSize   float64 `json:"font_size,omitempty"` // points
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
	Underline  bool    `json:"underline,omitempty"`
}

// NewParagraph builds a paragraph whose offsets start at offset. Non-heading
// types always get level 0.
func NewParagraph(id, offset int, text string, typ ParagraphType, level int) Paragraph {
	if typ != TypeHeading || level < 0 {
		level = 0
	}
	return Paragraph{
		ID:           id,
		Text:         text,
		StartOffset:  offset,
		EndOffset:    offset + len([]rune(text)),
		Type:         typ,
		HeadingLevel: level,
		Runs:         []RunInfo{},
	}
}
