package sanitize

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/dgallion1/docchunk/internal/docmodel"
)

func TestFixMetadata(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", "{}"},
		{"   ", "{}"},
		{"null", "{}"},
		{"NULL", "{}"},
		{"undefined", "{}"},
		{"[]", "{}"},
		{"[ ]", "{}"},
		{"{not json", "{}"},
		{"42", "{}"},
		{`"text"`, "{}"},
		{`{"a":1}`, `{"a":1}`},
		{`  {"a": 1}  `, `{"a": 1}`},
		{`[1, "two"]`, `{"data":[1,"two"]}`},
	}
	for _, tc := range cases {
		if got := FixMetadata(tc.in); got != tc.want {
			t.Errorf("FixMetadata(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitize_Defaults(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	s := New(4)
	s.Now = func() time.Time { return fixed }

	r := s.Sanitize(Record{
		ChunkID:    "null",
		DocumentID: " ",
		Text:       "kept",
		Metadata:   "undefined",
		Images:     "null",
	})

	if r.ChunkID != "" || r.DocumentID != "" {
		t.Errorf("ids = %q, %q", r.ChunkID, r.DocumentID)
	}
	if r.Text != "kept" {
		t.Errorf("text = %q", r.Text)
	}
	if r.Metadata != "{}" {
		t.Errorf("metadata = %q", r.Metadata)
	}
	if r.Images != "" {
		t.Errorf("images = %q", r.Images)
	}
	if len(r.Vector) != 4 {
		t.Errorf("vector length = %d", len(r.Vector))
	}
	if r.CreateTime != fixed.UnixMilli() {
		t.Errorf("create time = %d", r.CreateTime)
	}
}

func TestSanitize_KeepsCreateTime(t *testing.T) {
	r := New(2).Sanitize(Record{CreateTime: 12345})
	if r.CreateTime != 12345 {
		t.Errorf("create time = %d", r.CreateTime)
	}
}

func TestVector(t *testing.T) {
	s := New(3)

	if v := s.Vector(nil); len(v) != 3 || v[0] != 0 {
		t.Errorf("nil vector = %v", v)
	}
	if v := s.Vector([]float32{1, 2}); len(v) != 3 || v[0] != 0 {
		t.Errorf("short vector = %v", v)
	}

	in := []float32{1.5, float32(math.NaN()), float32(math.Inf(-1))}
	v := s.Vector(in)
	if v[0] != 1.5 || v[1] != 0 || v[2] != 0 {
		t.Errorf("vector = %v", v)
	}
	if !math.IsNaN(float64(in[1])) {
		t.Error("input vector was modified")
	}
}

func TestNew_DefaultDimension(t *testing.T) {
	if got := New(0).Dimension; got != DefaultDimension {
		t.Errorf("dimension = %d", got)
	}
}

func TestFromChunk(t *testing.T) {
	idx := 3
	asset := &docmodel.Asset{
		FileName: "image1.png",
		Format:   "png",
		Position: &docmodel.Position{ParagraphIndex: &idx, CharOffset: 7, Context: "near text"},
	}
	c := docmodel.Chunk{
		ID:             2,
		Text:           "hello world",
		StartParagraph: 3,
		EndParagraph:   4,
		Assets:         []*docmodel.Asset{asset},
		WordCount:      2,
		CharCount:      11,
		Metadata: docmodel.ChunkMetadata{
			ContainsHeading: true,
			AssetCount:      1,
			ParagraphIDs:    []int{3, 4},
			SectionTitle:    "Intro",
			Extra:           map[string]any{"estimated_tokens": 2},
		},
	}

	r := FromChunk(c, "doc1", "report.docx", func(a *docmodel.Asset) string {
		return "/assets/doc1/" + a.FileName
	})

	if r.ChunkID != "2" || r.DocumentID != "doc1" || r.DocumentName != "report.docx" || r.Text != "hello world" {
		t.Errorf("record = %+v", r)
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(r.Metadata), &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["start_paragraph_id"] != float64(3) || meta["end_paragraph_id"] != float64(4) {
		t.Errorf("range metadata = %v / %v", meta["start_paragraph_id"], meta["end_paragraph_id"])
	}
	if meta["contains_headings"] != true || meta["has_images"] != true {
		t.Errorf("flags = %v / %v", meta["contains_headings"], meta["has_images"])
	}
	if meta["section_title"] != "Intro" || meta["estimated_tokens"] != float64(2) {
		t.Errorf("metadata = %v", meta)
	}

	var images []Image
	if err := json.Unmarshal([]byte(r.Images), &images); err != nil {
		t.Fatalf("images: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(images))
	}
	img := images[0]
	if img.FilePath != "/assets/doc1/image1.png" || img.Format != "png" {
		t.Errorf("image = %+v", img)
	}
	if img.Position == nil || img.Position.ParagraphIndex == nil || *img.Position.ParagraphIndex != 3 ||
		img.Position.CharPosition != 7 || img.Position.ParagraphText != "near text" {
		t.Errorf("position = %+v", img.Position)
	}
}

func TestFromChunk_NoAssets(t *testing.T) {
	r := FromChunk(docmodel.Chunk{ID: 0, Text: "x"}, "d", "n", nil)
	if r.Images != "" {
		t.Errorf("images = %q", r.Images)
	}
	if FixMetadata(r.Metadata) != r.Metadata {
		t.Errorf("metadata is not a clean object: %q", r.Metadata)
	}
}
