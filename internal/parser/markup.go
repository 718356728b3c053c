package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/dgallion1/docchunk/internal/container"
	"github.com/dgallion1/docchunk/internal/docmodel"
)

const strictRelationshipsNS = "http://purl.oclc.org/ooxml/officeDocument/relationships"

// scanBody walks word/document.xml and returns one Markup per top-level
// paragraph or table of the body, in document order.
//
// Run indexes count the runs go-docx exposes: runs directly inside a
// paragraph, and a hyperlink's runs as a single run. Runs inside drawings and
// text boxes are not counted.
func scanBody(data []byte) ([]docmodel.Markup, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		out       []docmodel.Markup
		depth     int
		bodyDepth int
		bodyDone  bool
		cur       *markupScanner
	)
	for {
		offset := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("scan document body: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case cur != nil:
				cur.start(t)
			case bodyDepth == 0 && !bodyDone && t.Name.Local == "body":
				bodyDepth = depth
			case bodyDepth > 0 && depth == bodyDepth+1 && (t.Name.Local == "p" || t.Name.Local == "tbl"):
				cur = &markupScanner{offset: offset, runIndex: -1}
				cur.start(t)
			}
		case xml.EndElement:
			if cur != nil {
				cur.end(t)
				if depth == bodyDepth+1 {
					out = append(out, cur.finish(data[cur.offset:dec.InputOffset()]))
					cur = nil
				}
			}
			if bodyDepth > 0 && depth == bodyDepth {
				bodyDepth = 0
				bodyDone = true
			}
			depth--
		case xml.CharData:
			if cur != nil {
				cur.chars(t)
			}
		}
	}
	return out, nil
}

type markupScanner struct {
	offset int64
	m      docmodel.Markup

	stack    []string // element local names inside the top element
	skip     int      // depth inside drawing / pict / object
	runIndex int
	runOpen  int // open visible runs
	hlinkRun bool
	inText   bool
	pos      int // runes of visible run text seen so far
	drawing  *docmodel.DrawingRef
}

func (s *markupScanner) parent() string {
	if len(s.stack) == 0 {
		return ""
	}
	return s.stack[len(s.stack)-1]
}

func (s *markupScanner) grandparent() string {
	if len(s.stack) < 2 {
		return ""
	}
	return s.stack[len(s.stack)-2]
}

func (s *markupScanner) currentRun() int {
	if s.runOpen == 0 {
		return -1
	}
	return s.runIndex
}

func (s *markupScanner) start(t xml.StartElement) {
	local := t.Name.Local

	switch local {
	case "r":
		if s.skip == 0 {
			switch {
			case s.parent() == "p":
				s.runIndex++
				s.runOpen++
			case s.parent() == "hyperlink" && s.grandparent() == "p":
				if !s.hlinkRun {
					s.runIndex++
					s.hlinkRun = true
				}
				s.runOpen++
			}
		}
	case "hyperlink":
		s.hlinkRun = false
	case "t":
		s.inText = s.skip == 0 && s.runOpen > 0
	case "tab", "br":
		if s.skip == 0 && s.runOpen > 0 && s.parent() == "r" {
			s.pos++
		}
	case "drawing", "pict", "object":
		s.skip++
	case "inline", "anchor":
		if s.skip > 0 && s.drawing == nil {
			kind := docmodel.DrawingInline
			if local == "anchor" {
				kind = docmodel.DrawingAnchor
			}
			s.drawing = &docmodel.DrawingRef{Kind: kind, RunIndex: s.currentRun(), CharOffset: s.pos}
		}
	case "docPr":
		if s.drawing != nil {
			for _, a := range t.Attr {
				switch a.Name.Local {
				case "id":
					s.drawing.DocPrID, _ = strconv.Atoi(a.Value)
				case "name":
					s.drawing.Name = a.Value
				}
			}
		}
	case "blip":
		if s.drawing != nil && s.drawing.RelID == "" {
			for _, a := range t.Attr {
				if isRelNS(a.Name.Space) && (a.Name.Local == "embed" || a.Name.Local == "link") {
					s.drawing.RelID = a.Value
					break
				}
			}
		}
	case "imagedata":
		d := docmodel.DrawingRef{Kind: docmodel.DrawingVML, RunIndex: s.currentRun(), CharOffset: s.pos}
		for _, a := range t.Attr {
			switch {
			case isRelNS(a.Name.Space) && a.Name.Local == "id":
				d.RelID = a.Value
			case a.Name.Local == "title":
				d.Name = a.Value
			}
		}
		s.m.Drawings = append(s.m.Drawings, d)
	}

	for _, a := range t.Attr {
		if !isRelNS(a.Name.Space) {
			continue
		}
		switch a.Name.Local {
		case "embed", "link", "id":
			s.m.Refs = append(s.m.Refs, docmodel.RelRef{
				ID:         a.Value,
				Attr:       a.Name.Local,
				Element:    local,
				RunIndex:   s.currentRun(),
				CharOffset: s.pos,
			})
		}
	}

	s.stack = append(s.stack, local)
}

func (s *markupScanner) end(t xml.EndElement) {
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}

	switch t.Name.Local {
	case "r":
		if s.skip == 0 && s.runOpen > 0 && (s.parent() == "p" || (s.parent() == "hyperlink" && s.grandparent() == "p")) {
			s.runOpen--
		}
	case "t":
		s.inText = false
	case "drawing", "pict", "object":
		if s.skip > 0 {
			s.skip--
		}
	case "inline", "anchor":
		if s.drawing != nil {
			s.m.Drawings = append(s.m.Drawings, *s.drawing)
			s.drawing = nil
		}
	}
}

func (s *markupScanner) chars(t xml.CharData) {
	if s.inText {
		s.pos += utf8.RuneCount(t)
	}
}

func (s *markupScanner) finish(raw []byte) docmodel.Markup {
	s.m.Raw = string(raw)
	return normalizeMarkup(s.m)
}

func normalizeMarkup(m docmodel.Markup) docmodel.Markup {
	if m.Refs == nil {
		m.Refs = []docmodel.RelRef{}
	}
	if m.Drawings == nil {
		m.Drawings = []docmodel.DrawingRef{}
	}
	if m.Embeds == nil {
		m.Embeds = []docmodel.RunEmbed{}
	}
	return m
}

func isRelNS(space string) bool {
	return space == container.RelationshipsNS || space == strictRelationshipsNS || space == "r"
}
