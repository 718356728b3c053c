package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docchunk/internal/assetstore"
	"github.com/dgallion1/docchunk/internal/pipeline"
	"github.com/dgallion1/docchunk/internal/store"
)

var (
	assetDir string
	dbPath   string
	docID    string
	title    string
)

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Chunk a document",
	Long: `Process a document and print its chunks. With --db the document and its
chunk records are stored in SQLite; with --asset-dir the extracted images are
written to <asset-dir>/<doc-id>/.

Examples:
  docchunk process report.docx
  docchunk process report.docx --chunk-size 500 --heading-depth 1
  docchunk process report.docx --db docchunk.db --asset-dir assets`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&assetDir, "asset-dir", "", "Write extracted images under this directory")
	processCmd.Flags().StringVar(&dbPath, "db", "", "Store the document in this SQLite database")
	processCmd.Flags().StringVar(&docID, "doc-id", "", "Document id (default: derived from the content)")
	processCmd.Flags().StringVar(&title, "title", "", "Document title (default: first heading)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	if dbPath != "" {
		return runStore(args[0])
	}

	ctx, cancel := signalContext()
	defer cancel()
	log := newLogger()

	start := time.Now()
	doc, err := extractFile(ctx, log, args[0])
	if err != nil {
		return err
	}

	if assetDir != "" && len(doc.Assets) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		id := docID
		if id == "" {
			id = pipeline.ContentHashHex(data)[:16]
		}
		paths, err := assetstore.New(assetDir).WriteAll(id, doc.Assets)
		if err != nil {
			return fmt.Errorf("write assets: %w", err)
		}
		log.Info("wrote assets", "count", len(paths), "dir", filepath.Join(assetDir, id))
	}

	if jsonOutput {
		return printJSON(doc)
	}

	for _, c := range doc.Chunks {
		fmt.Printf("--- chunk %d  paragraphs %d-%d  %d chars  %d images", c.ID, c.StartParagraph, c.EndParagraph, c.CharCount, len(c.Assets))
		if c.Metadata.SectionTitle != "" {
			fmt.Printf("  [%s]", c.Metadata.SectionTitle)
		}
		fmt.Println()
		fmt.Println(c.Text)
		for _, a := range c.Assets {
			fmt.Printf("  image %s -> paragraph %d (%s)\n", a.FileName, a.ParagraphIndex(), a.Position.Method)
		}
	}
	fmt.Printf("\n%d paragraphs, %d chunks, %d images (%d unassigned) in %s\n",
		len(doc.Paragraphs), len(doc.Chunks), len(doc.Assets), len(doc.Unassigned),
		time.Since(start).Round(time.Millisecond))
	return nil
}

// runStore runs the ingest pipeline against a local SQLite database.
func runStore(path string) error {
	ctx, cancel := signalContext()
	defer cancel()
	log := newLogger()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	db, err := store.Open(dbPath, store.WithMkdirAll())
	if err != nil {
		return err
	}
	defer db.Close()

	var assets *assetstore.Store
	if assetDir != "" {
		assets = assetstore.New(assetDir)
	}

	job, err := pipeline.NewJob(filepath.Base(path), docID, title, data)
	if err != nil {
		return err
	}
	job.Options.Force = true

	pipeline.NewWorker([]pipeline.Sink{db}, assets, nil, log, workerConfig()).Process(ctx, job)

	snap := job.Snapshot()
	if jsonOutput {
		if err := printJSON(snap); err != nil {
			return err
		}
	} else {
		p := snap.Progress
		fmt.Printf("%s: %s\n", snap.DocID, snap.Status)
		fmt.Printf("%d paragraphs, %d chunks stored of %d, %d images (%d unassigned) in %dms\n",
			p.Paragraphs, p.ChunksStored, p.TotalChunks, p.Assets, p.Unassigned, p.DurationMs)
		for _, w := range p.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
	}

	switch snap.Status {
	case pipeline.StatusCompleted:
		return nil
	default:
		return fmt.Errorf("%s: %s", snap.Status, strings.Join(snap.Progress.Errors, "; "))
	}
}
