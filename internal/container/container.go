// Package container opens a .docx package once and exposes both the typed
// go-docx tree and the raw zip parts the extraction stages need.
package container

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/fumiama/go-docx"
)

const (
	DocumentPart = "word/document.xml"
	MediaPrefix  = docx.MEDIA_FOLDER

	// RelationshipsNS is the namespace of r:embed / r:link / r:id attributes.
	RelationshipsNS = docx.XMLNS_R
)

// Container is a parsed, read-only docx package.
type Container struct {
	Doc *docx.Docx

	zip         *zip.Reader
	parts       map[string]*zip.File
	documentXML []byte
}

// Open parses data as a docx package.
func Open(data []byte) (*Container, error) {
	r := bytes.NewReader(data)
	zr, err := zip.NewReader(r, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	c := &Container{
		zip:   zr,
		parts: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		c.parts[f.Name] = f
	}
	if _, ok := c.parts[DocumentPart]; !ok {
		return nil, fmt.Errorf("missing required part: %s", DocumentPart)
	}

	c.documentXML, err = c.ReadPart(DocumentPart)
	if err != nil {
		return nil, err
	}

	doc, err := docx.Parse(r, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	c.Doc = doc
	return c, nil
}

// DocumentXML returns the raw word/document.xml bytes.
func (c *Container) DocumentXML() []byte {
	return c.documentXML
}

// ReadPart returns the bytes of a package part.
func (c *Container) ReadPart(name string) ([]byte, error) {
	f, ok := c.parts[name]
	if !ok {
		return nil, fmt.Errorf("part not found: %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open part %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read part %s: %w", name, err)
	}
	return data, nil
}

// PartsWithPrefix lists part names under prefix in archive order.
func (c *Container) PartsWithPrefix(prefix string) []string {
	var names []string
	for _, f := range c.zip.File {
		if strings.HasPrefix(f.Name, prefix) && !strings.HasSuffix(f.Name, "/") {
			names = append(names, f.Name)
		}
	}
	return names
}

// MediaBytes resolves a relationship target such as "media/image1.png" to the
// media bytes, trying the go-docx media table first and the zip part second.
func (c *Container) MediaBytes(target string) ([]byte, error) {
	part := PartName(target)
	if strings.HasPrefix(part, MediaPrefix) {
		if m := c.Doc.Media(strings.TrimPrefix(part, MediaPrefix)); m != nil {
			return m.Data, nil
		}
	}
	return c.ReadPart(part)
}

// PartName turns a relationship target relative to word/ into a package part name.
func PartName(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Clean(path.Join("word", target))
}
