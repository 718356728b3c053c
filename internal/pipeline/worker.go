package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgallion1/docchunk/internal/assetstore"
	"github.com/dgallion1/docchunk/internal/docmodel"
	"github.com/dgallion1/docchunk/internal/engine"
	"github.com/dgallion1/docchunk/internal/parser"
	"github.com/dgallion1/docchunk/internal/sanitize"
)

// Sink persists processed documents. The first sink of a worker is also the
// duplicate index.
type Sink interface {
	FindByHash(ctx context.Context, hash string) (docID string, found bool, err error)
	PutDocument(ctx context.Context, doc docmodel.Document) error
	ClearChunks(ctx context.Context, docID string) error
	PutChunk(ctx context.Context, docID string, rec sanitize.Record) error
}

// WorkerConfig holds the settings shared by every job a worker runs.
type WorkerConfig struct {
	Engine               engine.Options
	VectorDimension      int
	MaxConcurrentStore   int
	PDFFallbackPdftotext bool
}

// Worker processes a single document job.
type Worker struct {
	sinks     []Sink
	assets    *assetstore.Store
	sanitizer *sanitize.Sanitizer
	stats     *StageStats
	log       *slog.Logger
	cfg       WorkerConfig
	backoff   func(int) time.Duration
}

// NewWorker returns a worker. assets and stats may be nil.
func NewWorker(sinks []Sink, assets *assetstore.Store, stats *StageStats, log *slog.Logger, cfg WorkerConfig) *Worker {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxConcurrentStore <= 0 {
		cfg.MaxConcurrentStore = 1
	}
	return &Worker{
		sinks:     sinks,
		assets:    assets,
		sanitizer: sanitize.New(cfg.VectorDimension),
		stats:     stats,
		log:       log,
		cfg:       cfg,
		backoff:   Backoff,
	}
}

// Extracted is the format-independent output of the parse phase.
type Extracted struct {
	Paragraphs []docmodel.Paragraph `json:"paragraphs"`
	Assets     []*docmodel.Asset    `json:"assets"`
	Unassigned []*docmodel.Asset    `json:"unassigned"`
	Chunks     []docmodel.Chunk     `json:"chunks"`
	Warnings   []string             `json:"warnings"`
	Text       string               `json:"-"`
	Format     string               `json:"format"`
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)
	start := time.Now()
	defer func() {
		job.SetDuration(time.Since(start))
		job.releaseFileData()
		w.record(StageTotal, time.Since(start))
	}()

	// Phase 1: Parse, anchor and chunk.
	job.SetStatus(StatusParsing, "parsing")
	doc, err := w.extract(ctx, job, log)
	if err != nil {
		log.Error("extraction failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.SetContentHash(documentHash(doc))
	job.SetExtracted(len(doc.Paragraphs), len(doc.Assets), len(doc.Unassigned), len(doc.Chunks))

	// Phase 1.5: Dedup check
	if !job.Options.Force {
		exists, existingDocID, err := w.checkDuplicate(ctx, job)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if exists {
			log.Info("duplicate document, skipping", "existing_doc_id", existingDocID)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	job.SetStatus(StatusChunking, "chunking")
	log.Info("chunked document",
		"paragraphs", len(doc.Paragraphs),
		"assets", len(doc.Assets),
		"unassigned", len(doc.Unassigned),
		"chunks", len(doc.Chunks),
	)
	if len(doc.Chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	// Phase 2: Write asset files.
	var paths assetstore.Paths
	assetsFailed := false
	if w.assets != nil && len(doc.Assets) > 0 {
		paths, err = w.assets.WriteAll(job.DocID, doc.Assets)
		if err != nil {
			log.Error("asset write failed", "error", err)
			job.AddError(fmt.Sprintf("assets: %s", err))
			assetsFailed = true
		}
	}

	// Phase 3: Store the document and its chunk records.
	job.SetStatus(StatusStoring, "storing")
	storeStart := time.Now()
	stored, hadErrors := w.store(ctx, job, doc, paths, log)
	w.record(StageStore, time.Since(storeStart))
	log.Info("storage complete", "stored", stored, "total", len(doc.Chunks))

	switch {
	case (hadErrors || assetsFailed) && stored > 0:
		job.SetStatus(StatusPartial, "done")
	case hadErrors:
		job.SetStatus(StatusFailed, "storing")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
}

func (w *Worker) extract(ctx context.Context, job *Job, log *slog.Logger) (*Extracted, error) {
	cfg := w.cfg
	cfg.Engine = EngineOptions(w.cfg.Engine, job.Options)
	doc, err := Extract(ctx, log, cfg, w.stats, job.Filename, job.FileData())
	if err != nil {
		return nil, err
	}
	for _, warning := range doc.Warnings {
		log.Warn("extraction warning", "warning", warning)
	}
	job.AddWarnings(doc.Warnings...)
	return doc, nil
}

// Extract turns a file into chunks. docx goes through the engine; the other
// formats are flattened by their parser and partitioned. stats may be nil.
func Extract(ctx context.Context, log *slog.Logger, cfg WorkerConfig, stats *StageStats, filename string, data []byte) (*Extracted, error) {
	eng := engine.New(log, cfg.Engine)
	format := parser.Format(filename)

	if format == "docx" {
		res, err := eng.Process(ctx, data, format)
		if err != nil {
			return nil, fmt.Errorf("process: %w", err)
		}
		recordStage(stats, StageParse, res.Timings.Open)
		recordStage(stats, StageStructure, res.Timings.Structure)
		recordStage(stats, StageAssets, res.Timings.Assets)
		recordStage(stats, StageAnchor, res.Timings.Anchor)
		recordStage(stats, StagePartition, res.Timings.Partition)
		return &Extracted{
			Paragraphs: res.Paragraphs,
			Assets:     res.Assets,
			Unassigned: res.Unassigned,
			Chunks:     res.Chunks,
			Warnings:   res.Warnings,
			Text:       res.FullText,
			Format:     format,
		}, nil
	}

	p, err := parser.ForFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrUnsupportedFormat, err)
	}
	if pdf, ok := p.(*parser.PDFParser); ok {
		pdf.FallbackPdftotext = cfg.PDFFallbackPdftotext
	}

	t0 := time.Now()
	paragraphs, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	recordStage(stats, StageParse, time.Since(t0))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t0 = time.Now()
	chunks := eng.Partition(paragraphs)
	recordStage(stats, StagePartition, time.Since(t0))

	texts := make([]string, len(paragraphs))
	for i, para := range paragraphs {
		texts[i] = para.Text
	}
	return &Extracted{
		Paragraphs: paragraphs,
		Assets:     []*docmodel.Asset{},
		Unassigned: []*docmodel.Asset{},
		Chunks:     chunks,
		Warnings:   []string{},
		Text:       strings.Join(texts, "\n"),
		Format:     format,
	}, nil
}

// EngineOptions applies per-job overrides to the engine defaults.
func EngineOptions(opts engine.Options, o JobOptions) engine.Options {
	if o.ChunkSize > 0 {
		opts.ChunkSize = o.ChunkSize
	}
	if o.HeadingSplitDepth != nil {
		opts.HeadingSplitDepth = *o.HeadingSplitDepth
	}
	if o.ExtractAssets != nil {
		opts.ExtractAssets = *o.ExtractAssets
	}
	return opts
}

// store writes the document row and drops its previous chunks, then writes
// every chunk record with bounded concurrency. It returns the number of chunks written to every sink.
func (w *Worker) store(ctx context.Context, job *Job, doc *Extracted, paths assetstore.Paths, log *slog.Logger) (int, bool) {
	snap := job.Snapshot()
	meta := docmodel.Document{
		ID:             job.DocID,
		Name:           job.Filename,
		Title:          job.Title,
		Format:         doc.Format,
		ContentHash:    snap.ContentHash,
		ParagraphCount: len(doc.Paragraphs),
		ChunkCount:     len(doc.Chunks),
		AssetCount:     len(doc.Assets),
		CreatedAt:      job.CreatedAt,
	}
	meta.UnassignedImages = sanitize.ImagesJSON(doc.Unassigned, paths.Lookup)
	if meta.Title == "" {
		meta.Title = titleFrom(doc.Paragraphs, job.Filename)
	}

	for _, sink := range w.sinks {
		err := withRetry(ctx, w.backoff, func() error {
			if err := sink.PutDocument(ctx, meta); err != nil {
				return err
			}
			return sink.ClearChunks(ctx, job.DocID)
		})
		if err != nil {
			log.Error("document write failed", "error", err)
			job.AddError(fmt.Sprintf("document: %s", err))
			return 0, true
		}
	}

	records := make([]sanitize.Record, len(doc.Chunks))
	for i, c := range doc.Chunks {
		records[i] = w.sanitizer.Sanitize(sanitize.FromChunk(c, job.DocID, job.Filename, paths.Lookup))
	}

	type storeResult struct {
		chunkID string
		err     error
	}
	storeSem := make(chan struct{}, w.cfg.MaxConcurrentStore)
	storeResults := make(chan storeResult, len(records))

	for _, rec := range records {
		storeSem <- struct{}{}
		go func(rec sanitize.Record) {
			defer func() { <-storeSem }()
			var errs []error
			for _, sink := range w.sinks {
				err := withRetry(ctx, w.backoff, func() error { return sink.PutChunk(ctx, job.DocID, rec) })
				if err != nil {
					errs = append(errs, err)
				}
			}
			storeResults <- storeResult{chunkID: rec.ChunkID, err: errors.Join(errs...)}
		}(rec)
	}

	stored := 0
	hadErrors := false
	for range records {
		r := <-storeResults
		if r.err != nil {
			log.Error("store failed", "chunk", r.chunkID, "error", r.err)
			job.AddError(fmt.Sprintf("chunk %s: %s", r.chunkID, r.err))
			hadErrors = true
			continue
		}
		stored++
		job.IncrChunksStored()
	}
	return stored, hadErrors
}

// documentHash keys duplicate detection on the flattened text plus the
// content hash of every extracted asset, in sorted order.
func documentHash(doc *Extracted) string {
	if len(doc.Assets) == 0 {
		return ContentHashHex([]byte(doc.Text))
	}
	hashes := make([]string, len(doc.Assets))
	for i, a := range doc.Assets {
		hashes[i] = a.Hash
	}
	slices.Sort(hashes)

	var b strings.Builder
	b.WriteString(doc.Text)
	for _, h := range hashes {
		b.WriteByte(0)
		b.WriteString(h)
	}
	return ContentHashHex([]byte(b.String()))
}

// checkDuplicate asks the primary sink whether this content hash is known.
func (w *Worker) checkDuplicate(ctx context.Context, job *Job) (bool, string, error) {
	if len(w.sinks) == 0 {
		return false, "", nil
	}
	docID, found, err := w.sinks[0].FindByHash(ctx, job.Snapshot().ContentHash)
	return found, docID, err
}

func (w *Worker) record(stage string, d time.Duration) {
	recordStage(w.stats, stage, d)
}

func recordStage(stats *StageStats, stage string, d time.Duration) {
	if stats != nil && d > 0 {
		stats.Record(stage, d)
	}
}

// titleFrom picks the first heading, falling back to the file name.
func titleFrom(paragraphs []docmodel.Paragraph, filename string) string {
	for _, p := range paragraphs {
		if p.Type == docmodel.TypeHeading && p.Text != "" {
			return p.Text
		}
	}
	return filename
}
