// Package engine turns a docx document into classified paragraphs, anchored
// assets and retrieval chunks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docchunk/internal/anchor"
	"github.com/dgallion1/docchunk/internal/assets"
	"github.com/dgallion1/docchunk/internal/chunker"
	"github.com/dgallion1/docchunk/internal/container"
	"github.com/dgallion1/docchunk/internal/docmodel"
	"github.com/dgallion1/docchunk/internal/parser"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrMalformedDocument = errors.New("malformed document")
)

// Options controls a processing run.
type Options struct {
	ChunkSize          int
	HeadingSplitDepth  int
	ExtractAssets      bool
	SequentialFallback bool
	ContextWindow      int
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	cc := chunker.DefaultConfig()
	ao := anchor.DefaultOptions()
	return Options{
		ChunkSize:          cc.ChunkSize,
		HeadingSplitDepth:  cc.HeadingSplitDepth,
		ExtractAssets:      true,
		SequentialFallback: ao.SequentialFallback,
		ContextWindow:      ao.ContextWindow,
	}
}

// Timings records how long each stage took.
type Timings struct {
	Open      time.Duration `json:"open"`
	Structure time.Duration `json:"structure"`
	Assets    time.Duration `json:"assets"`
	Anchor    time.Duration `json:"anchor"`
	Partition time.Duration `json:"partition"`
}

// Result is the full output of one document.
type Result struct {
	Paragraphs []docmodel.Paragraph `json:"paragraphs"`
	FullText   string               `json:"-"`
	Assets     []*docmodel.Asset    `json:"assets"`
	Chunks     []docmodel.Chunk     `json:"chunks"`
	Unassigned []*docmodel.Asset    `json:"unassigned"`
	Warnings   []string             `json:"warnings"`
	Timings    Timings              `json:"timings"`
}

// Engine is safe for concurrent use; every Process call owns its state.
type Engine struct {
	log      *slog.Logger
	opts     Options
	assets   *assets.Extractor
	resolver *anchor.Resolver
}

func New(log *slog.Logger, opts Options) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	def := DefaultOptions()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.HeadingSplitDepth < 0 {
		opts.HeadingSplitDepth = 0
	}
	if opts.ContextWindow < 0 {
		opts.ContextWindow = 0
	}
	return &Engine{
		log:    log,
		opts:   opts,
		assets: assets.New(log),
		resolver: anchor.New(log, anchor.Options{
			SequentialFallback: opts.SequentialFallback,
			ContextWindow:      opts.ContextWindow,
		}),
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Process runs the full pipeline over data. format is a file extension with
// or without the dot; only docx is accepted. On error no partial result is
// returned.
func (e *Engine) Process(ctx context.Context, data []byte, format string) (*Result, error) {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if format != "docx" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{}
	start := time.Now()
	c, err := open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	res.Timings.Open = time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		wg            sync.WaitGroup
		st            *parser.Structure
		found         []*docmodel.Asset
		assetWarnings []string
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		t0 := time.Now()
		st = parser.ExtractStructure(c, e.log)
		res.Timings.Structure = time.Since(t0)
	}()
	if e.opts.ExtractAssets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t0 := time.Now()
			found, assetWarnings = e.assets.Extract(c)
			res.Timings.Assets = time.Since(t0)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Paragraphs = st.Paragraphs
	res.FullText = st.FullText
	res.Warnings = append(res.Warnings, st.Warnings...)
	res.Warnings = append(res.Warnings, assetWarnings...)
	if found == nil {
		found = []*docmodel.Asset{}
	}
	res.Assets = found

	t0 := time.Now()
	anchors := e.resolver.Resolve(st.Paragraphs, st.Markup, found)
	res.Timings.Anchor = time.Since(t0)
	res.Unassigned = anchors.Unassigned
	res.Warnings = append(res.Warnings, anchors.Warnings...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t0 = time.Now()
	res.Chunks = chunker.Partition(st.Paragraphs, anchors.ByParagraph, e.chunkConfig())
	res.Timings.Partition = time.Since(t0)

	if res.Warnings == nil {
		res.Warnings = []string{}
	}

	e.log.Debug("document processed",
		"paragraphs", len(res.Paragraphs),
		"assets", len(res.Assets),
		"anchored", anchors.Count(),
		"unassigned", len(res.Unassigned),
		"chunks", len(res.Chunks),
		"elapsed", time.Since(start),
	)
	return res, nil
}

// Partition chunks a paragraph sequence that carries no assets, as produced
// by the flat parsers.
func (e *Engine) Partition(paragraphs []docmodel.Paragraph) []docmodel.Chunk {
	return chunker.Partition(paragraphs, nil, e.chunkConfig())
}

func (e *Engine) chunkConfig() chunker.Config {
	return chunker.Config{
		ChunkSize:         e.opts.ChunkSize,
		HeadingSplitDepth: e.opts.HeadingSplitDepth,
	}
}

// open guards against decoder panics on hostile packages.
func open(data []byte) (c *container.Container, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic opening container: %v", r)
		}
	}()
	return container.Open(data)
}
