package parser

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docchunk/internal/container"
	"github.com/dgallion1/docchunk/internal/docmodel"
)

// Structure is the classified paragraph sequence of a docx document together
// with the per-paragraph markup the anchoring stage matches against.
type Structure struct {
	Paragraphs []docmodel.Paragraph
	Markup     []docmodel.Markup // parallel to Paragraphs
	FullText   string
	Warnings   []string
}

// ExtractStructure walks the body of an opened docx container. A paragraph
// that cannot be decoded is replaced by an empty normal paragraph and a
// warning; it never aborts the document.
func ExtractStructure(c *container.Container, log *slog.Logger) *Structure {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	st := &Structure{}
	warn := func(msg string, args ...any) {
		log.Warn(msg, args...)
		st.Warnings = append(st.Warnings, formatWarning(msg, args...))
	}

	markup, scanErr := scanBody(c.DocumentXML())
	if scanErr != nil {
		warn("document markup scan incomplete", "error", scanErr)
	}

	var seq sequence
	for _, item := range c.Doc.Document.Body.Items {
		switch item.(type) {
		case *docx.Paragraph, *docx.Table:
		default:
			continue
		}

		idx := len(seq.paragraphs)
		m := normalizeMarkup(docmodel.Markup{})
		if idx < len(markup) {
			m = markup[idx]
		}

		content, err := extractItem(c, item)
		if err != nil {
			warn("paragraph extraction failed", "paragraph", idx, "error", err)
			seq.add("", docmodel.TypeNormal, 0)
			st.Markup = append(st.Markup, normalizeMarkup(m))
			continue
		}

		id := seq.add(content.text, content.typ, content.level)
		p := &seq.paragraphs[id]
		p.Style = content.style
		p.Runs = content.runs

		m.Embeds = content.embeds
		st.Markup = append(st.Markup, normalizeMarkup(m))
	}
	if len(markup) != len(seq.paragraphs) && scanErr == nil {
		warn("document markup does not line up with paragraphs",
			"markup", len(markup), "paragraphs", len(seq.paragraphs))
	}

	st.Paragraphs = seq.result()
	st.FullText = seq.text.String()
	if st.Markup == nil {
		st.Markup = []docmodel.Markup{}
	}
	return st
}

// formatWarning renders a log message and its key/value pairs as one line.
func formatWarning(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}

type itemContent struct {
	text   string
	typ    docmodel.ParagraphType
	level  int
	style  docmodel.ParagraphStyle
	runs   []docmodel.RunInfo
	embeds []docmodel.RunEmbed
}

func extractItem(c *container.Container, item any) (content itemContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	w := &runWalker{c: c}
	switch it := item.(type) {
	case *docx.Paragraph:
		w.paragraph(it)
		style, numbered := paragraphStyle(it.Properties)
		content.text = strings.TrimSpace(w.text.String())
		content.typ, content.level = classify(style.Name, numbered, content.text)
		content.style = style
	case *docx.Table:
		content.text = w.table(it)
		content.typ = docmodel.TypeTable
		if it.TableProperties != nil && it.TableProperties.Style != nil {
			content.style.Name = it.TableProperties.Style.Val
		}
	default:
		return content, fmt.Errorf("unexpected body item %T", item)
	}

	content.runs = w.runs
	content.embeds = w.embeds
	if content.runs == nil {
		content.runs = []docmodel.RunInfo{}
	}
	return content, nil
}

// runWalker collects run text, run formatting and run-embedded pictures. Run
// indexes and char offsets continue across every paragraph it visits.
type runWalker struct {
	c      *container.Container
	text   strings.Builder
	pos    int
	runs   []docmodel.RunInfo
	embeds []docmodel.RunEmbed
}

func (w *runWalker) paragraph(para *docx.Paragraph) {
	for _, child := range para.Children {
		switch ch := child.(type) {
		case *docx.Run:
			w.run(ch)
		case *docx.Hyperlink:
			w.run(&ch.Run)
		}
	}
}

func (w *runWalker) run(r *docx.Run) {
	idx := len(w.runs)
	var buf strings.Builder
	for _, rc := range r.Children {
		switch v := rc.(type) {
		case *docx.Text:
			buf.WriteString(v.Text)
		case *docx.Tab:
			buf.WriteByte('\t')
		case *docx.BarterRabbet:
			buf.WriteByte('\n')
		case *docx.Drawing:
			if e, ok := w.embed(v, idx, w.pos+utf8.RuneCountInString(buf.String())); ok {
				w.embeds = append(w.embeds, e)
			}
		}
	}

	text := buf.String()
	w.text.WriteString(text)
	w.pos += utf8.RuneCountInString(text)
	w.runs = append(w.runs, runInfo(idx, text, r.RunProperties))
}

// embed resolves a run's picture to the content hash of its media part.
func (w *runWalker) embed(d *docx.Drawing, runIdx, offset int) (docmodel.RunEmbed, bool) {
	relID := drawingRelID(d)
	if relID == "" {
		return docmodel.RunEmbed{}, false
	}
	target, err := w.c.Doc.ReferTarget(relID)
	if err != nil {
		return docmodel.RunEmbed{}, false
	}
	data, err := w.c.MediaBytes(target)
	if err != nil || len(data) == 0 {
		return docmodel.RunEmbed{}, false
	}
	return docmodel.RunEmbed{
		RunIndex:   runIdx,
		CharOffset: offset,
		RelID:      relID,
		Hash:       docmodel.HashBytes(data),
	}, true
}

func drawingRelID(d *docx.Drawing) string {
	var g *docx.AGraphic
	switch {
	case d.Inline != nil:
		g = d.Inline.Graphic
	case d.Anchor != nil:
		g = d.Anchor.Graphic
	}
	if g == nil || g.GraphicData == nil || g.GraphicData.Pic == nil || g.GraphicData.Pic.BlipFill == nil {
		return ""
	}
	return g.GraphicData.Pic.BlipFill.Blip.Embed
}

// table flattens a table: cells joined by tab, rows by newline.
func (w *runWalker) table(t *docx.Table) string {
	rows := make([]string, 0, len(t.TableRows))
	for _, row := range t.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			cells = append(cells, w.cell(cell))
		}
		rows = append(rows, strings.Join(cells, "\t"))
	}
	return strings.TrimSpace(strings.Join(rows, "\n"))
}

func (w *runWalker) cell(cell *docx.WTableCell) string {
	var parts []string
	for _, para := range cell.Paragraphs {
		start := w.text.Len()
		w.paragraph(para)
		if t := strings.TrimSpace(w.text.String()[start:]); t != "" {
			parts = append(parts, t)
		}
	}
	for _, nested := range cell.Tables {
		if t := w.table(nested); t != "" {
			parts = append(parts, strings.ReplaceAll(strings.ReplaceAll(t, "\n", " "), "\t", " "))
		}
	}
	return strings.Join(parts, " ")
}

func paragraphStyle(pp *docx.ParagraphProperties) (docmodel.ParagraphStyle, bool) {
	var style docmodel.ParagraphStyle
	if pp == nil {
		return style, false
	}
	extra := map[string]string{}

	if pp.Style != nil {
		style.Name = pp.Style.Val
	}
	if pp.Justification != nil {
		style.Alignment = pp.Justification.Val
	}
	if pp.Ind != nil {
		style.IndentLeft = pp.Ind.Left
		style.IndentFirstLine = pp.Ind.FirstLine
		if pp.Ind.Hanging != 0 {
			extra["indent_hanging"] = strconv.Itoa(pp.Ind.Hanging)
		}
	}
	if pp.Spacing != nil {
		style.SpacingBefore = pp.Spacing.Before
		style.SpacingLine = pp.Spacing.Line
		if pp.Spacing.LineRule != "" {
			extra["line_rule"] = pp.Spacing.LineRule
		}
	}

	numbered := false
	if np := pp.NumProperties; np != nil && np.NumID != nil && np.NumID.Val != "" && np.NumID.Val != "0" {
		numbered = true
		extra["num_id"] = np.NumID.Val
		if np.Ilvl != nil {
			extra["num_level"] = np.Ilvl.Val
		}
	}

	if len(extra) > 0 {
		style.Extra = extra
	}
	return style, numbered
}

func runInfo(idx int, text string, rp *docx.RunProperties) docmodel.RunInfo {
	info := docmodel.RunInfo{Index: idx, Text: text}
	if rp == nil {
		return info
	}
	if rp.Fonts != nil {
		switch {
		case rp.Fonts.ASCII != "":
			info.FontFamily = rp.Fonts.ASCII
		case rp.Fonts.EastAsia != "":
			info.FontFamily = rp.Fonts.EastAsia
		default:
			info.FontFamily = rp.Fonts.HAnsi
		}
	}
	if rp.Size != nil {
		// w:sz is in half-points.
		if half, err := strconv.ParseFloat(rp.Size.Val, 64); err == nil {
			info.FontSize = half / 2
		}
	}
	info.Bold = rp.Bold != nil
	info.Italic = rp.Italic != nil
	info.Underline = rp.Underline != nil && rp.Underline.Val != "none"
	return info
}

// DOCXParser is the text-only docx parser used by format dispatch. The engine
// uses ExtractStructure directly.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) ([]docmodel.Paragraph, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	c, err := container.Open(buf.Bytes())
	if err != nil {
		return nil, err
	}
	return ExtractStructure(c, nil).Paragraphs, nil
}
