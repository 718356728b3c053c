package assets

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"testing"

	"github.com/fumiama/go-docx"
	"golang.org/x/image/bmp"

	"github.com/dgallion1/docchunk/internal/container"
	"github.com/dgallion1/docchunk/internal/docxtest"
)

func openFixture(t *testing.T, data []byte) *container.Container {
	t.Helper()
	c, err := container.Open(data)
	if err != nil {
		t.Fatalf("open container: %v", err)
	}
	return c
}

func bmpFixture(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 5, 2))
	img.Set(1, 1, color.Gray{Y: 200})
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		t.Fatalf("encode bmp: %v", err)
	}
	return buf.Bytes()
}

func TestExtract_DiscoveryOrderAndMetadata(t *testing.T) {
	first, second := docxtest.PNG(t, 10), docxtest.PNG(t, 200)
	data := docxtest.Build(t, func(doc *docx.Docx) {
		docxtest.AddPicture(t, doc, "one", first)
		docxtest.AddPicture(t, doc, "two", second)
	})

	got, warnings := New(nil).Extract(openFixture(t, data))
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(got))
	}

	for i, a := range got {
		if a.Index != i {
			t.Errorf("asset[%d]: index %d", i, a.Index)
		}
		if a.Format != "png" || a.Width != 4 || a.Height != 3 {
			t.Errorf("asset[%d]: format %q size %dx%d", i, a.Format, a.Width, a.Height)
		}
		if len(a.RelIDs) != 1 {
			t.Errorf("asset[%d]: rel ids %v", i, a.RelIDs)
		}
		if len(a.Sources) != 2 || a.Sources[0] != SourceRelationships || a.Sources[1] != SourceMediaParts {
			t.Errorf("asset[%d]: sources %v", i, a.Sources)
		}
		if a.Position != nil {
			t.Errorf("asset[%d]: position should be unset after extraction", i)
		}
	}
	if got[0].FileName != "image1.png" || got[1].FileName != "image2.png" {
		t.Errorf("file names = %q, %q", got[0].FileName, got[1].FileName)
	}
	if !bytes.Equal(got[0].Data, first) || !bytes.Equal(got[1].Data, second) {
		t.Error("asset bytes do not match the embedded pictures")
	}
	if got[0].Size != len(first) {
		t.Errorf("size = %d, want %d", got[0].Size, len(first))
	}
}

func TestExtract_DeduplicatesIdenticalBytes(t *testing.T) {
	pic := docxtest.PNG(t, 77)
	data := docxtest.Build(t, func(doc *docx.Docx) {
		docxtest.AddPicture(t, doc, "first use", pic)
		docxtest.AddPicture(t, doc, "second use", pic)
	})

	got, _ := New(nil).Extract(openFixture(t, data))
	if len(got) != 1 {
		t.Fatalf("expected identical bytes to collapse into 1 asset, got %d", len(got))
	}
	if len(got[0].RelIDs) != 2 {
		t.Errorf("expected both relationship ids on the asset, got %v", got[0].RelIDs)
	}
}

func TestExtract_OrphanMediaPart(t *testing.T) {
	data := docxtest.Build(t, func(doc *docx.Docx) {
		docxtest.AddPicture(t, doc, "referenced", docxtest.PNG(t, 1))
	})
	data = docxtest.AddPart(t, data, "word/media/orphan.bmp", bmpFixture(t))

	got, _ := New(nil).Extract(openFixture(t, data))
	if len(got) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(got))
	}
	orphan := got[1]
	if orphan.FileName != "orphan.bmp" || orphan.Format != "bmp" {
		t.Errorf("orphan = %q (%s)", orphan.FileName, orphan.Format)
	}
	if orphan.Width != 5 || orphan.Height != 2 {
		t.Errorf("orphan size = %dx%d, want 5x2", orphan.Width, orphan.Height)
	}
	if len(orphan.RelIDs) != 0 {
		t.Errorf("orphan should have no relationship ids, got %v", orphan.RelIDs)
	}
	if len(orphan.Sources) != 1 || orphan.Sources[0] != SourceMediaParts {
		t.Errorf("orphan sources = %v", orphan.Sources)
	}
}

type panicStrategy struct{}

func (panicStrategy) Name() string { return "broken" }
func (panicStrategy) Enumerate(*container.Container) ([]Candidate, error) {
	panic("corrupt table")
}

type fixedStrategy struct {
	cands []Candidate
	err   error
}

func (fixedStrategy) Name() string { return "fixed" }
func (s fixedStrategy) Enumerate(*container.Container) ([]Candidate, error) {
	return s.cands, s.err
}

func TestExtract_FailingStrategyIsSkipped(t *testing.T) {
	data := docxtest.Build(t, func(doc *docx.Docx) {
		docxtest.AddPicture(t, doc, "pic", docxtest.PNG(t, 5))
	})

	got, warnings := New(nil, panicStrategy{}, MediaParts{}).Extract(openFixture(t, data))
	if len(warnings) != 1 {
		t.Errorf("expected 1 warning, got %v", warnings)
	}
	if len(got) != 1 {
		t.Fatalf("expected the media listing to still find 1 asset, got %d", len(got))
	}
}

func TestExtract_PartialStrategyResultsKept(t *testing.T) {
	data := docxtest.Build(t, func(doc *docx.Docx) {})
	s := fixedStrategy{
		cands: []Candidate{{Data: docxtest.PNG(t, 3)}},
		err:   errors.New("one entry unreadable"),
	}

	got, warnings := New(nil, s).Extract(openFixture(t, data))
	if len(warnings) != 1 || len(got) != 1 {
		t.Fatalf("expected 1 asset and 1 warning, got %d and %v", len(got), warnings)
	}
	if got[0].FileName != "image_1.png" {
		t.Errorf("synthesized name = %q, want image_1.png", got[0].FileName)
	}
}

func TestDetectFormat(t *testing.T) {
	var gifBuf bytes.Buffer
	if err := gif.Encode(&gifBuf, image.NewPaletted(image.Rect(0, 0, 3, 7), color.Palette{color.Black, color.White}), nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}

	tests := []struct {
		name   string
		data   []byte
		file   string
		want   string
		width  int
		height int
	}{
		{"png", docxtest.PNG(t, 0), "x.bin", "png", 4, 3},
		{"gif", gifBuf.Bytes(), "", "gif", 3, 7},
		{"bmp", bmpFixture(t), "", "bmp", 5, 2},
		{"extension fallback", []byte("not an image"), "media/image9.EMF", "emf", 0, 0},
		{"jpg extension normalized", []byte("??"), "photo.jpg", "jpeg", 0, 0},
		{"unknown", []byte("??"), "", "bin", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, w, h := DetectFormat(tt.data, tt.file)
			if f != tt.want || w != tt.width || h != tt.height {
				t.Errorf("DetectFormat = %q %dx%d, want %q %dx%d", f, w, h, tt.want, tt.width, tt.height)
			}
		})
	}
}
