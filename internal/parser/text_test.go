package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docchunk/internal/docmodel"
)

func TestTextParser_BasicParagraphSplitting(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	p := &TextParser{}
	paras, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paras) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d", len(paras))
	}

	want := []string{
		"First paragraph line one.\nFirst paragraph line two.",
		"Second paragraph.",
		"Third paragraph.",
	}
	for i, w := range want {
		if paras[i].Text != w {
			t.Errorf("paragraph[%d]: expected %q, got %q", i, w, paras[i].Text)
		}
		if paras[i].ID != i {
			t.Errorf("paragraph[%d]: expected id %d, got %d", i, i, paras[i].ID)
		}
	}
	if paras[1].StartOffset != paras[0].EndOffset+1 {
		t.Errorf("expected offsets to advance past the newline separator: %d, %d",
			paras[0].EndOffset, paras[1].StartOffset)
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	paras, err := p.Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paras == nil || len(paras) != 0 {
		t.Errorf("expected empty non-nil slice for empty input, got %#v", paras)
	}
}

func TestTextParser_SingleLine(t *testing.T) {
	p := &TextParser{}
	paras, err := p.Parse(strings.NewReader("Hello world"), "single.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paras) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(paras))
	}
	if paras[0].Text != "Hello world" {
		t.Errorf("expected %q, got %q", "Hello world", paras[0].Text)
	}
}

func TestTextParser_MultipleBlankLines(t *testing.T) {
	// Multiple consecutive blank lines should not produce empty paragraphs.
	input := "Para one.\n\n\n\nPara two."
	p := &TextParser{}
	paras, err := p.Parse(strings.NewReader(input), "gaps.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paras) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(paras))
	}
}

func TestTextParser_WhitespaceOnlyLines(t *testing.T) {
	// Lines with only whitespace should be treated as blank.
	input := "Para one.\n   \nPara two."
	p := &TextParser{}
	paras, err := p.Parse(strings.NewReader(input), "ws.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paras) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(paras))
	}
}

func TestTextParser_ClassifiesBlocks(t *testing.T) {
	input := "Requirements:\n\n1. Install the tool\n\nPlain sentence."
	p := &TextParser{}
	paras, err := p.Parse(strings.NewReader(input), "req.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []docmodel.ParagraphType{docmodel.TypeHeading, docmodel.TypeListItem, docmodel.TypeNormal}
	if len(paras) != len(want) {
		t.Fatalf("expected %d paragraphs, got %d", len(want), len(paras))
	}
	for i, w := range want {
		if paras[i].Type != w {
			t.Errorf("paragraph[%d]: expected type %s, got %s", i, w, paras[i].Type)
		}
	}
}
