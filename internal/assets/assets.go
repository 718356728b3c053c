// Package assets enumerates the binary objects embedded in a docx package.
package assets

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docchunk/internal/container"
	"github.com/dgallion1/docchunk/internal/docmodel"
)

// Source names recorded on assets.
const (
	SourceRelationships = "relationships"
	SourceMediaParts    = "media_parts"
)

// Candidate is one binary object found by a strategy before deduplication.
type Candidate struct {
	RelID  string
	Target string // relative to word/, e.g. media/image1.png
	Data   []byte
}

// Strategy is one independent way of enumerating embedded objects.
type Strategy interface {
	Name() string
	Enumerate(c *container.Container) ([]Candidate, error)
}

// Extractor merges the candidates of several strategies into one list keyed
// by content hash.
type Extractor struct {
	log        *slog.Logger
	strategies []Strategy
}

// New returns an extractor. With no strategies it uses the relationship table
// followed by the media part listing.
func New(log *slog.Logger, strategies ...Strategy) *Extractor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if len(strategies) == 0 {
		strategies = []Strategy{Relationships{}, MediaParts{}}
	}
	return &Extractor{log: log, strategies: strategies}
}

// Extract returns the deduplicated assets in discovery order plus warnings
// for strategies that failed in whole or in part.
func (x *Extractor) Extract(c *container.Container) ([]*docmodel.Asset, []string) {
	var (
		out      = []*docmodel.Asset{}
		byHash   = make(map[string]*docmodel.Asset)
		warnings []string
	)

	for _, s := range x.strategies {
		cands, err := runStrategy(s, c)
		if err != nil {
			x.log.Warn("asset strategy failed", "strategy", s.Name(), "error", err)
			warnings = append(warnings, fmt.Sprintf("asset strategy %s: %v", s.Name(), err))
		}

		for _, cand := range cands {
			if len(cand.Data) == 0 {
				continue
			}
			hash := docmodel.HashBytes(cand.Data)
			if a, ok := byHash[hash]; ok {
				merge(a, s.Name(), cand)
				continue
			}
			a := &docmodel.Asset{
				Index:   len(out),
				Data:    cand.Data,
				Size:    len(cand.Data),
				Hash:    hash,
				RelIDs:  []string{},
				Target:  cand.Target,
				Sources: []string{},
			}
			merge(a, s.Name(), cand)
			byHash[hash] = a
			out = append(out, a)
		}
	}

	for _, a := range out {
		describe(a)
	}
	x.log.Debug("assets extracted", "count", len(out))
	return out, warnings
}

func runStrategy(s Strategy, c *container.Container) (cands []Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Enumerate(c)
}

func merge(a *docmodel.Asset, source string, cand Candidate) {
	if cand.RelID != "" && !a.HasRelID(cand.RelID) {
		a.RelIDs = append(a.RelIDs, cand.RelID)
	}
	if !contains(a.Sources, source) {
		a.Sources = append(a.Sources, source)
	}
	if a.Target == "" {
		a.Target = cand.Target
	}
}

// describe fills in format, dimensions and file name.
func describe(a *docmodel.Asset) {
	a.Format, a.Width, a.Height = DetectFormat(a.Data, a.Target)
	if a.Target != "" {
		a.FileName = path.Base(a.Target)
	}
	if a.FileName == "" || a.FileName == "." || a.FileName == "/" {
		a.FileName = fmt.Sprintf("image_%d.%s", a.Index+1, a.Format)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Relationships enumerates image relationships of the main document part.
type Relationships struct{}

func (Relationships) Name() string { return SourceRelationships }

func (Relationships) Enumerate(c *container.Container) ([]Candidate, error) {
	var (
		out  []Candidate
		errs []error
	)
	err := c.Doc.RangeRelationships(func(rel *docx.Relationship) error {
		if !isImageRelationship(rel.Type) || strings.EqualFold(rel.TargetMode, "External") {
			return nil
		}
		data, err := c.MediaBytes(rel.Target)
		if err != nil {
			errs = append(errs, fmt.Errorf("relationship %s: %w", rel.ID, err))
			return nil
		}
		out = append(out, Candidate{RelID: rel.ID, Target: rel.Target, Data: data})
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return out, errors.Join(errs...)
}

func isImageRelationship(typ string) bool {
	return typ == docx.REL_IMAGE || strings.HasSuffix(typ, "/image")
}

// MediaParts lists the word/media/ parts of the zip directly, which also finds
// objects no relationship points at.
type MediaParts struct{}

func (MediaParts) Name() string { return SourceMediaParts }

func (MediaParts) Enumerate(c *container.Container) ([]Candidate, error) {
	var (
		out  []Candidate
		errs []error
	)
	for _, part := range c.PartsWithPrefix(container.MediaPrefix) {
		data, err := c.ReadPart(part)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		target := strings.TrimPrefix(part, "word/")
		relID, _ := c.Doc.ReferID(target)
		out = append(out, Candidate{RelID: relID, Target: target, Data: data})
	}
	return out, errors.Join(errs...)
}
