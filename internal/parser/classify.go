package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"

	"github.com/dgallion1/docchunk/internal/docmodel"
)

// colonHeadingMaxRunes bounds the "short line ending in a colon" heading rule.
const colonHeadingMaxRunes = 150

var (
	chapterPattern    = regexp.MustCompile(`^第[0-9一二三四五六七八九十百零]+章`)
	sectionPattern    = regexp.MustCompile(`^第[0-9一二三四五六七八九十百零]+节`)
	numbered3Pattern  = regexp.MustCompile(`^\d+\.\d+\.\d+(\s|$)`)
	numbered2Pattern  = regexp.MustCompile(`^\d+\.\d+(\s|$)`)
	numericListMarker = regexp.MustCompile(`^\d+(、|\.\s|\)\s?)`)
	cjkListMarker     = regexp.MustCompile(`^[一二三四五六七八九十百]+(、|\.\s?)`)
	parenListMarker   = regexp.MustCompile(`^\(\d+\)`)
	bulletListMarker  = regexp.MustCompile(`^[•·▪◦‣●○■□*-]\s`)
)

// headingStylePrefixes are localized "Heading N" style name prefixes, compared
// lowercase with spaces removed.
var headingStylePrefixes = []string{"heading", "titre", "überschrift", "标题"}

// classify decides a paragraph's type and heading level from its style name,
// its numbering property and its text. Style evidence wins over text
// patterns.
func classify(style string, numbered bool, text string) (docmodel.ParagraphType, int) {
	folded := width.Fold.String(strings.TrimSpace(text))

	if typ, level, ok := classifyStyle(style); ok {
		if typ == docmodel.TypeHeading && level <= 0 {
			level = patternDepth(folded)
		}
		return typ, level
	}

	if isColonHeading(folded) {
		return docmodel.TypeHeading, patternDepth(folded)
	}

	if numbered || hasListMarker(folded) {
		return docmodel.TypeListItem, 0
	}
	return docmodel.TypeNormal, 0
}

// classifyStyle maps a recognized style name to a type. A returned heading
// level of 0 means the style does not carry a depth.
func classifyStyle(style string) (docmodel.ParagraphType, int, bool) {
	s := strings.ToLower(strings.TrimSpace(style))
	compact := strings.ReplaceAll(s, " ", "")
	if compact == "" {
		return "", 0, false
	}

	switch compact {
	case "title", "标题":
		return docmodel.TypeHeading, 1, true
	case "subtitle", "副标题":
		return docmodel.TypeHeading, 2, true
	case "header", "页眉":
		return docmodel.TypeHeader, 0, true
	case "footer", "页脚":
		return docmodel.TypeFooter, 0, true
	}

	for _, prefix := range headingStylePrefixes {
		if rest, ok := strings.CutPrefix(compact, prefix); ok {
			if n, err := strconv.Atoi(rest); err == nil && n >= 1 {
				return docmodel.TypeHeading, n, true
			}
			if rest == "" {
				return docmodel.TypeHeading, 0, true
			}
		}
	}

	// Built-in heading styles are stored by numeric id in some producers:
	// id 2 is Heading 1, id 3 is Heading 2 and so on.
	if n, err := strconv.Atoi(compact); err == nil && n >= 2 {
		return docmodel.TypeHeading, n - 1, true
	}

	if strings.Contains(compact, "list") {
		return docmodel.TypeListItem, 0, true
	}
	return "", 0, false
}

func isColonHeading(folded string) bool {
	if folded == "" || utf8.RuneCountInString(folded) >= colonHeadingMaxRunes {
		return false
	}
	return strings.HasSuffix(folded, ":") || strings.HasSuffix(folded, "：")
}

func hasListMarker(folded string) bool {
	return numericListMarker.MatchString(folded) ||
		cjkListMarker.MatchString(folded) ||
		parenListMarker.MatchString(folded) ||
		bulletListMarker.MatchString(folded)
}

// patternDepth derives a heading depth from chapter and section numbering.
func patternDepth(folded string) int {
	switch {
	case chapterPattern.MatchString(folded):
		return 1
	case sectionPattern.MatchString(folded):
		return 2
	case numbered3Pattern.MatchString(folded):
		return 3
	case numbered2Pattern.MatchString(folded):
		return 2
	}
	return 0
}
