package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docchunk/internal/docmodel"
)

func TestMarkdownParser_Headings(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

### Subsection A1

Subsection A1 content.

## Section B

Section B content.
`
	p := &MarkdownParser{}
	paras, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct {
		text  string
		level int
	}{
		{"Title", 1},
		{"Intro text.", 0},
		{"Section A", 2},
		{"Section A content.", 0},
		{"Subsection A1", 3},
		{"Subsection A1 content.", 0},
		{"Section B", 2},
		{"Section B content.", 0},
	}
	if len(paras) != len(want) {
		t.Fatalf("expected %d paragraphs, got %d", len(want), len(paras))
	}
	for i, w := range want {
		if paras[i].Text != w.text {
			t.Errorf("paragraph[%d]: expected %q, got %q", i, w.text, paras[i].Text)
		}
		if paras[i].HeadingLevel != w.level {
			t.Errorf("paragraph[%d]: expected level %d, got %d", i, w.level, paras[i].HeadingLevel)
		}
		if w.level > 0 && paras[i].Type != docmodel.TypeHeading {
			t.Errorf("paragraph[%d]: expected heading, got %s", i, paras[i].Type)
		}
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	input := `Just some plain text.

Another paragraph here.`

	p := &MarkdownParser{}
	paras, err := p.Parse(strings.NewReader(input), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paras) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(paras))
	}
	if paras[0].Text != "Just some plain text." || paras[1].Text != "Another paragraph here." {
		t.Errorf("unexpected paragraphs: %q, %q", paras[0].Text, paras[1].Text)
	}
}

func TestMarkdownParser_ListsAndCodeBlocks(t *testing.T) {
	input := "# API Reference\n\n- first\n- second\n\n```\nGET /api/users\nPOST /api/users\n```\n\nMore text after code.\n"

	p := &MarkdownParser{}
	paras, err := p.Parse(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paras) != 5 {
		t.Fatalf("expected 5 paragraphs, got %d", len(paras))
	}
	if paras[1].Type != docmodel.TypeListItem || paras[1].Text != "first" {
		t.Errorf("expected list item %q, got %s %q", "first", paras[1].Type, paras[1].Text)
	}
	if paras[2].Type != docmodel.TypeListItem || paras[2].Text != "second" {
		t.Errorf("expected list item %q, got %s %q", "second", paras[2].Type, paras[2].Text)
	}
	if !strings.Contains(paras[3].Text, "GET /api/users") {
		t.Errorf("expected code block content, got %q", paras[3].Text)
	}
	if paras[4].Text != "More text after code." {
		t.Errorf("expected post-code text, got %q", paras[4].Text)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	paras, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paras) != 0 {
		t.Errorf("expected 0 paragraphs for empty input, got %d", len(paras))
	}
}
