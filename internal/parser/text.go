package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docchunk/internal/docmodel"
)

// TextParser handles plain text files. Blank lines separate paragraphs.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) ([]docmodel.Paragraph, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var seq sequence
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			addClassified(&seq, current.String())
			current.Reset()
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	addClassified(&seq, current.String())

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return seq.result(), nil
}

// addBlocks splits text on blank lines and adds each block as a classified
// paragraph.
func addBlocks(seq *sequence, text string) {
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			addClassified(seq, current.String())
			current.Reset()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(strings.TrimRight(line, " \t\r"))
	}
	addClassified(seq, current.String())
}

// addClassified adds a non-empty block using the text-pattern rules only.
func addClassified(seq *sequence, block string) {
	block = strings.TrimSpace(block)
	if block == "" {
		return
	}
	typ, level := classify("", false, block)
	seq.add(block, typ, level)
}
