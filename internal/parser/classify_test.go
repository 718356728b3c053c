package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docchunk/internal/docmodel"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		style     string
		numbered  bool
		text      string
		wantType  docmodel.ParagraphType
		wantLevel int
	}{
		{"heading style", "Heading1", false, "Overview", docmodel.TypeHeading, 1},
		{"heading style with space", "heading 2", false, "Scope", docmodel.TypeHeading, 2},
		{"title style", "Title", false, "Annual Report", docmodel.TypeHeading, 1},
		{"subtitle style", "Subtitle", false, "Draft", docmodel.TypeHeading, 2},
		{"localized heading", "标题 3", false, "方法", docmodel.TypeHeading, 3},
		{"numeric style id", "3", false, "Background", docmodel.TypeHeading, 2},
		{"heading style without depth uses pattern", "Heading", false, "第一章 总论", docmodel.TypeHeading, 1},
		{"style beats colon", "Heading2", false, "Notes:", docmodel.TypeHeading, 2},
		{"colon heading", "", false, "Summary:", docmodel.TypeHeading, 0},
		{"colon heading with section number", "", false, "1.2 Scope of work:", docmodel.TypeHeading, 2},
		{"colon heading three levels", "", false, "2.1.4 Limits:", docmodel.TypeHeading, 3},
		{"full-width colon heading", "", false, "１．２ 背景：", docmodel.TypeHeading, 2},
		{"chinese section colon heading", "", false, "第二节 范围：", docmodel.TypeHeading, 2},
		{"numeric list", "", false, "1. First step", docmodel.TypeListItem, 0},
		{"ideographic comma list", "", false, "2、第二步", docmodel.TypeListItem, 0},
		{"chinese numeral list", "", false, "一、概述", docmodel.TypeListItem, 0},
		{"parenthesized list", "", false, "(3) third", docmodel.TypeListItem, 0},
		{"bullet list", "", false, "• point", docmodel.TypeListItem, 0},
		{"numbering property", "", true, "plain text", docmodel.TypeListItem, 0},
		{"list style", "ListParagraph", false, "item", docmodel.TypeListItem, 0},
		{"header style", "Header", false, "ACME Corp", docmodel.TypeHeader, 0},
		{"footer style", "Footer", false, "Page 1", docmodel.TypeFooter, 0},
		{"unknown style falls through", "Normal", false, "Body text.", docmodel.TypeNormal, 0},
		{"unknown style colon", "Normal", false, "Steps:", docmodel.TypeHeading, 0},
		{"decimal number is not a list", "", false, "1.5 million people live here.", docmodel.TypeNormal, 0},
		{"style id 1 is not a heading", "1", false, "Body", docmodel.TypeNormal, 0},
		{"empty", "", false, "", docmodel.TypeNormal, 0},
		{"long colon line", "", false, strings.Repeat("a", 150) + ":", docmodel.TypeNormal, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, level := classify(tt.style, tt.numbered, tt.text)
			if typ != tt.wantType {
				t.Errorf("type = %q, want %q", typ, tt.wantType)
			}
			if level != tt.wantLevel {
				t.Errorf("level = %d, want %d", level, tt.wantLevel)
			}
		})
	}
}

func TestPatternDepth(t *testing.T) {
	tests := map[string]int{
		"第三章 结论":          1,
		"第12节 附录":         2,
		"3.1 Methods":     2,
		"3.1.2 Sampling":  3,
		"3.1.2":           3,
		"3.1":             2,
		"Introduction":    0,
		"10.20.30 Layout": 3,
	}
	for text, want := range tests {
		if got := patternDepth(text); got != want {
			t.Errorf("patternDepth(%q) = %d, want %d", text, got, want)
		}
	}
}
