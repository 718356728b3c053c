package anchor

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dgallion1/docchunk/internal/docmodel"
)

// ErrAmbiguous is returned by a strategy when the reference an asset matched
// was already claimed by an earlier asset.
var ErrAmbiguous = errors.New("ambiguous asset reference")

// Candidate is one paragraph offered to a strategy.
type Candidate struct {
	Index     int
	Paragraph *docmodel.Paragraph
	Markup    *docmodel.Markup
}

// Hit locates a match inside a paragraph.
type Hit struct {
	RunIndex   *int
	CharOffset int
}

// Strategy decides whether an asset belongs to a paragraph.
type Strategy interface {
	Name() string
	Match(asset *docmodel.Asset, c Candidate) (Hit, bool, error)
}

// preparer is implemented by strategies that keep per-document state.
type preparer interface {
	Prepare(assets []*docmodel.Asset)
}

// DefaultStrategies returns a fresh strategy chain in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{DirectReference{}, RunEmbedding{}, &StructuralDrawing{}}
}

func runPtr(idx int) *int {
	if idx < 0 {
		return nil
	}
	return docmodel.IntPtr(idx)
}

// DirectReference matches a relationship attribute in the paragraph markup
// against the asset's relationship ids.
type DirectReference struct{}

func (DirectReference) Name() string { return docmodel.MethodDirectReference }

func (DirectReference) Match(a *docmodel.Asset, c Candidate) (Hit, bool, error) {
	for _, ref := range c.Markup.Refs {
		if a.HasRelID(ref.ID) {
			return Hit{RunIndex: runPtr(ref.RunIndex), CharOffset: ref.CharOffset}, true, nil
		}
	}
	return Hit{}, false, nil
}

// RunEmbedding matches pictures embedded in text runs by content hash.
type RunEmbedding struct{}

func (RunEmbedding) Name() string { return docmodel.MethodRunEmbedding }

func (RunEmbedding) Match(a *docmodel.Asset, c Candidate) (Hit, bool, error) {
	for _, e := range c.Markup.Embeds {
		if e.Hash == a.Hash {
			return Hit{RunIndex: runPtr(e.RunIndex), CharOffset: e.CharOffset}, true, nil
		}
	}
	return Hit{}, false, nil
}

type drawingKey struct {
	paragraph int
	drawing   int
}

// StructuralDrawing inspects inline, floating and VML drawing objects. A
// drawing matches by relationship id, or failing that by numeric suffix: the
// digits ending its relationship id equal the number in the asset's file
// name, or its docPr id equals the asset's discovery index plus one.
//
// Each drawing can be claimed by one asset. Suffix matches only consider
// drawings whose relationship id belongs to no known asset.
type StructuralDrawing struct {
	claimed map[drawingKey]int
	known   map[string]bool
}

func (s *StructuralDrawing) Name() string { return docmodel.MethodStructuralDrawing }

func (s *StructuralDrawing) Prepare(assets []*docmodel.Asset) {
	s.claimed = make(map[drawingKey]int)
	s.known = make(map[string]bool)
	for _, a := range assets {
		for _, id := range a.RelIDs {
			s.known[id] = true
		}
	}
}

func (s *StructuralDrawing) Match(a *docmodel.Asset, c Candidate) (Hit, bool, error) {
	if s.claimed == nil {
		s.claimed = make(map[drawingKey]int)
	}

	var ambiguous error
	for i, d := range c.Markup.Drawings {
		key := drawingKey{paragraph: c.Index, drawing: i}
		hit := Hit{RunIndex: runPtr(d.RunIndex), CharOffset: d.CharOffset}

		if d.RelID != "" && a.HasRelID(d.RelID) {
			s.claimed[key] = a.Index
			return hit, true, nil
		}
		if s.known[d.RelID] || !suffixMatch(a, d) {
			continue
		}
		if owner, ok := s.claimed[key]; ok && owner != a.Index {
			ambiguous = fmt.Errorf("%w: drawing %d in paragraph %d already anchors asset %d",
				ErrAmbiguous, i, c.Index, owner)
			continue
		}
		s.claimed[key] = a.Index
		return hit, true, nil
	}
	return Hit{}, false, ambiguous
}

func suffixMatch(a *docmodel.Asset, d docmodel.DrawingRef) bool {
	if n := trailingNumber(d.RelID); n > 0 && n == trailingNumber(strings.TrimSuffix(a.FileName, path.Ext(a.FileName))) {
		return true
	}
	return d.DocPrID > 0 && d.DocPrID == a.Index+1
}

// trailingNumber parses the run of digits ending s, or returns -1.
func trailingNumber(s string) int {
	end := len(s)
	start := end
	for start > 0 && s[start-1] >= '0' && s[start-1] <= '9' {
		start--
	}
	if start == end || end-start > 9 {
		return -1
	}
	n := 0
	for _, ch := range s[start:end] {
		n = n*10 + int(ch-'0')
	}
	return n
}
