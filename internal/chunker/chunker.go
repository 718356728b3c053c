// Package chunker partitions a paragraph sequence into contiguous,
// size-bounded chunks that carry the assets anchored inside them.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docchunk/internal/docmodel"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize         int // Maximum chunk text length in runes.
	HeadingSplitDepth int // Headings at depth 1..N end their chunk; 0 disables.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:         1000,
		HeadingSplitDepth: 2,
	}
}

// Partition walks the paragraphs once and emits chunks whose paragraph ranges
// cover the sequence exactly. anchors maps a paragraph index to the assets
// anchored there.
//
// A chunk is closed before a paragraph whose text would push it over
// ChunkSize, and right after a heading within HeadingSplitDepth. Paragraphs
// are never split, so a paragraph longer than ChunkSize becomes a chunk of
// its own, headings included.
func Partition(paragraphs []docmodel.Paragraph, anchors map[int][]*docmodel.Asset, cfg Config) []docmodel.Chunk {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.HeadingSplitDepth < 0 {
		cfg.HeadingSplitDepth = 0
	}

	chunks := []docmodel.Chunk{}
	var (
		b       *builder
		section string
	)

	for i := range paragraphs {
		p := &paragraphs[i]

		if b != nil && b.size > 0 && b.size+b.cost(p.Text) > cfg.ChunkSize {
			chunks = append(chunks, b.build())
			b = nil
		}

		if p.Type == docmodel.TypeHeading && p.Text != "" {
			section = p.Text
		}
		if b == nil {
			b = newBuilder(len(chunks), i, section)
		}
		b.add(i, p, anchors[i])

		if p.IsHeading(cfg.HeadingSplitDepth) {
			chunks = append(chunks, b.build())
			b = nil
		}
	}

	if b != nil {
		chunks = append(chunks, b.build())
	}
	return chunks
}

// builder accumulates one chunk. A new builder is created for every chunk and
// discarded once built.
type builder struct {
	id      int
	start   int
	end     int
	text    strings.Builder
	size    int
	assets  []*docmodel.Asset
	seen    map[*docmodel.Asset]bool
	ids     []int
	heading bool
	section string
}

func newBuilder(id, start int, section string) *builder {
	return &builder{
		id:      id,
		start:   start,
		end:     start,
		assets:  []*docmodel.Asset{},
		seen:    make(map[*docmodel.Asset]bool),
		ids:     []int{},
		section: section,
	}
}

// cost is the number of runes text adds to the chunk, separator included.
func (b *builder) cost(text string) int {
	if text == "" {
		return 0
	}
	n := utf8.RuneCountInString(text)
	if b.size > 0 {
		n++
	}
	return n
}

func (b *builder) add(idx int, p *docmodel.Paragraph, assets []*docmodel.Asset) {
	if p.Text != "" {
		b.size += b.cost(p.Text)
		if b.text.Len() > 0 {
			b.text.WriteByte('\n')
		}
		b.text.WriteString(p.Text)
	}
	for _, a := range assets {
		if !b.seen[a] {
			b.seen[a] = true
			b.assets = append(b.assets, a)
		}
	}
	if p.Type == docmodel.TypeHeading {
		b.heading = true
	}
	b.ids = append(b.ids, idx)
	b.end = idx
}

func (b *builder) build() docmodel.Chunk {
	text := b.text.String()
	return docmodel.Chunk{
		ID:             b.id,
		Text:           text,
		StartParagraph: b.start,
		EndParagraph:   b.end,
		Assets:         b.assets,
		WordCount:      len(strings.Fields(text)),
		CharCount:      utf8.RuneCountInString(text),
		Metadata: docmodel.ChunkMetadata{
			ContainsHeading: b.heading,
			AssetCount:      len(b.assets),
			ParagraphIDs:    b.ids,
			SectionTitle:    b.section,
			Extra: map[string]any{
				"estimated_tokens": EstimateTokens(text),
			},
		},
	}
}
