package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docchunk/internal/docmodel"
)

// Parser converts raw document bytes into a flat paragraph sequence.
type Parser interface {
	Parse(r io.Reader, filename string) ([]docmodel.Paragraph, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Format returns the lowercase extension of filename without the dot.
func Format(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// sequence accumulates paragraphs together with the flattened text their
// offsets point into. Every paragraph text is followed by a newline.
type sequence struct {
	paragraphs []docmodel.Paragraph
	text       strings.Builder
	offset     int
}

// add appends a paragraph and returns its index.
func (s *sequence) add(text string, typ docmodel.ParagraphType, level int) int {
	p := docmodel.NewParagraph(len(s.paragraphs), s.offset, text, typ, level)
	s.paragraphs = append(s.paragraphs, p)
	s.text.WriteString(text)
	s.text.WriteByte('\n')
	s.offset = p.EndOffset + 1
	return p.ID
}

func (s *sequence) result() []docmodel.Paragraph {
	if s.paragraphs == nil {
		return []docmodel.Paragraph{}
	}
	return s.paragraphs
}
