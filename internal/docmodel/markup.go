package docmodel

// Drawing kinds found in paragraph markup.
const (
	DrawingInline = "inline"
	DrawingAnchor = "anchor"
	DrawingVML    = "vml"
)

// Markup is the container-level view of one paragraph: its raw XML and every
// reference to another package part found inside it.
type Markup struct {
	Raw      string       `json:"-"`
	Refs     []RelRef     `json:"refs"`
	Drawings []DrawingRef `json:"drawings"`
	Embeds   []RunEmbed   `json:"embeds"`
}

// RelRef is a relationship-namespace attribute (embed, link, id).
type RelRef struct {
	ID         string `json:"id"`
	Attr       string `json:"attr"`
	Element    string `json:"element"`
	RunIndex   int    `json:"run_index"` // -1 outside a run
	CharOffset int    `json:"char_offset"`
}

// DrawingRef is an inline, floating or VML picture object.
type DrawingRef struct {
	Kind       string `json:"kind"`
	RelID      string `json:"rel_id,omitempty"`
	DocPrID    int    `json:"doc_pr_id,omitempty"`
	Name       string `json:"name,omitempty"`
	RunIndex   int    `json:"run_index"`
	CharOffset int    `json:"char_offset"`
}

// RunEmbed is a picture embedded in a text run, resolved to the content hash
// of the media part it points at.
type RunEmbed struct {
	RunIndex   int    `json:"run_index"`
	CharOffset int    `json:"char_offset"`
	RelID      string `json:"rel_id"`
	Hash       string `json:"hash"`
}

// HasPicture reports whether the markup references any picture object.
func (m Markup) HasPicture() bool {
	return len(m.Drawings) > 0 || len(m.Embeds) > 0
}
