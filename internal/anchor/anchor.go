// Package anchor attaches extracted assets to the paragraphs they belong to.
package anchor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/docchunk/internal/docmodel"
)

// Options controls the resolver.
type Options struct {
	// SequentialFallback assigns assets no strategy matched to free
	// paragraphs, one each, in discovery order.
	SequentialFallback bool
	// ContextWindow is the number of paragraphs on each side copied into a
	// position's context.
	ContextWindow int
}

// DefaultOptions returns the resolver defaults.
func DefaultOptions() Options {
	return Options{SequentialFallback: true, ContextWindow: 2}
}

// Anchors is the result of resolution. Every asset is in exactly one place:
// a ByParagraph list or Unassigned.
type Anchors struct {
	ByParagraph map[int][]*docmodel.Asset
	Unassigned  []*docmodel.Asset
	Warnings    []string
}

// Count returns the number of anchored assets.
func (a *Anchors) Count() int {
	n := 0
	for _, list := range a.ByParagraph {
		n += len(list)
	}
	return n
}

// Resolver runs a strategy chain over every asset.
type Resolver struct {
	log        *slog.Logger
	opts       Options
	strategies []Strategy
}

// New returns a resolver. With no strategies, each Resolve call uses a fresh
// DefaultStrategies chain.
func New(log *slog.Logger, opts Options, strategies ...Strategy) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.ContextWindow < 0 {
		opts.ContextWindow = 0
	}
	return &Resolver{log: log, opts: opts, strategies: strategies}
}

// Resolve sets Position on every asset and groups the anchored ones by
// paragraph. markup is parallel to paragraphs; missing entries are treated as
// empty markup.
func (r *Resolver) Resolve(paragraphs []docmodel.Paragraph, markup []docmodel.Markup, assets []*docmodel.Asset) *Anchors {
	out := &Anchors{
		ByParagraph: make(map[int][]*docmodel.Asset),
		Unassigned:  []*docmodel.Asset{},
	}

	strategies := r.strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	for _, s := range strategies {
		if p, ok := s.(preparer); ok {
			p.Prepare(assets)
		}
	}

	empty := docmodel.Markup{}
	cands := make([]Candidate, len(paragraphs))
	for i := range paragraphs {
		m := &empty
		if i < len(markup) {
			m = &markup[i]
		}
		cands[i] = Candidate{Index: i, Paragraph: &paragraphs[i], Markup: m}
	}

	var pending []*docmodel.Asset
	for _, a := range assets {
		a.Position = nil
		placed := false
		for _, s := range strategies {
			idx, hit, ok := r.search(s, a, cands, out)
			if !ok {
				continue
			}
			r.place(out, paragraphs, a, idx, hit, s.Name())
			placed = true
			break
		}
		if !placed {
			pending = append(pending, a)
		}
	}

	if r.opts.SequentialFallback && len(pending) > 0 {
		slots := fallbackSlots(cands, out.ByParagraph)
		n := min(len(slots), len(pending))
		for i := 0; i < n; i++ {
			r.place(out, paragraphs, pending[i], slots[i], Hit{}, docmodel.MethodSequentialFallback)
		}
		pending = pending[n:]
	}

	for _, a := range pending {
		a.Position = &docmodel.Position{Method: docmodel.MethodUnassigned}
		out.Unassigned = append(out.Unassigned, a)
	}

	r.log.Debug("assets anchored", "anchored", out.Count(), "unassigned", len(out.Unassigned))
	return out
}

// search walks the paragraphs in document order; the first match wins.
func (r *Resolver) search(s Strategy, a *docmodel.Asset, cands []Candidate, out *Anchors) (int, Hit, bool) {
	for _, c := range cands {
		hit, ok, err := safeMatch(s, a, c)
		if err != nil {
			msg := "anchor strategy failed"
			if errors.Is(err, ErrAmbiguous) {
				msg = "ambiguous asset anchor"
			}
			r.log.Warn(msg, "strategy", s.Name(), "asset", a.Index, "paragraph", c.Index, "error", err)
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("%s: strategy %s asset %d paragraph %d: %v", msg, s.Name(), a.Index, c.Index, err))
		}
		if ok {
			return c.Index, hit, true
		}
	}
	return 0, Hit{}, false
}

func safeMatch(s Strategy, a *docmodel.Asset, c Candidate) (hit Hit, ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			hit, ok, err = Hit{}, false, fmt.Errorf("panic: %v", rec)
		}
	}()
	return s.Match(a, c)
}

func (r *Resolver) place(out *Anchors, paragraphs []docmodel.Paragraph, a *docmodel.Asset, idx int, hit Hit, method string) {
	a.Position = &docmodel.Position{
		ParagraphIndex: docmodel.IntPtr(idx),
		RunIndex:       hit.RunIndex,
		CharOffset:     hit.CharOffset,
		Context:        contextAround(paragraphs, idx, r.opts.ContextWindow),
		Method:         method,
	}
	out.ByParagraph[idx] = append(out.ByParagraph[idx], a)
}

// fallbackSlots lists paragraphs with no anchored asset: those that carry a
// picture reference first, then the rest, each group in document order.
func fallbackSlots(cands []Candidate, taken map[int][]*docmodel.Asset) []int {
	var withPicture, rest []int
	for _, c := range cands {
		if len(taken[c.Index]) > 0 {
			continue
		}
		if c.Markup.HasPicture() {
			withPicture = append(withPicture, c.Index)
		} else {
			rest = append(rest, c.Index)
		}
	}
	return append(withPicture, rest...)
}

func contextAround(paragraphs []docmodel.Paragraph, idx, window int) string {
	lo := max(idx-window, 0)
	hi := min(idx+window, len(paragraphs)-1)
	var parts []string
	for i := lo; i <= hi; i++ {
		if t := paragraphs[i].Text; t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
