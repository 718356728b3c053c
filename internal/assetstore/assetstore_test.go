package assetstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgallion1/docchunk/internal/docmodel"
)

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	a := &docmodel.Asset{Index: 0, FileName: "image1.png", Format: "png", Data: []byte("one")}
	b := &docmodel.Asset{Index: 1, FileName: "image1.png", Format: "png", Data: []byte("two")}
	c := &docmodel.Asset{Index: 2, FileName: "../../evil.gif", Format: "gif", Data: []byte("three")}

	paths, err := s.WriteAll("doc1", []*docmodel.Asset{a, b, c})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	want := map[*docmodel.Asset]string{
		a: filepath.Join(dir, "doc1", "image1.png"),
		b: filepath.Join(dir, "doc1", "1_image1.png"),
		c: filepath.Join(dir, "doc1", "evil.gif"),
	}
	for asset, path := range want {
		if got := paths.Lookup(asset); got != path {
			t.Errorf("asset %d path = %q, want %q", asset.Index, got, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if !bytes.Equal(data, asset.Data) {
			t.Errorf("asset %d content = %q", asset.Index, data)
		}
	}

	entries, err := os.ReadDir(filepath.Join(dir, "doc1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 files, got %d", len(entries))
	}
}

func TestWriteAll_RenameDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	first := &docmodel.Asset{Index: 0, FileName: "image.png", Format: "png", Data: []byte("first")}
	literal := &docmodel.Asset{Index: 2, FileName: "1_image.png", Format: "png", Data: []byte("literal")}
	dup := &docmodel.Asset{Index: 1, FileName: "image.png", Format: "png", Data: []byte("dup")}

	paths, err := s.WriteAll("doc1", []*docmodel.Asset{first, literal, dup})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, want := paths.Lookup(dup), filepath.Join(dir, "doc1", "1_1_image.png"); got != want {
		t.Errorf("renamed duplicate path = %q, want %q", got, want)
	}
	for _, a := range []*docmodel.Asset{first, literal, dup} {
		data, err := os.ReadFile(paths.Lookup(a))
		if err != nil {
			t.Fatalf("read asset %d: %v", a.Index, err)
		}
		if !bytes.Equal(data, a.Data) {
			t.Errorf("asset %d content = %q, want %q", a.Index, data, a.Data)
		}
	}
}

func TestWriteAll_Empty(t *testing.T) {
	dir := t.TempDir()
	paths, err := New(dir).WriteAll("doc1", nil)
	if err != nil || len(paths) != 0 {
		t.Fatalf("paths=%v err=%v", paths, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "doc1")); !os.IsNotExist(err) {
		t.Error("no directory expected for a document without assets")
	}
}

func TestWriteAll_RejectsBadDocID(t *testing.T) {
	s := New(t.TempDir())
	asset := &docmodel.Asset{FileName: "x.png", Data: []byte("x")}
	for _, id := range []string{"", "..", "a/b"} {
		if _, err := s.WriteAll(id, []*docmodel.Asset{asset}); err == nil {
			t.Errorf("expected error for doc id %q", id)
		}
	}
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	if _, err := s.WriteAll("doc1", []*docmodel.Asset{{FileName: "a.png", Data: []byte("a")}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Remove("doc1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "doc1")); !os.IsNotExist(err) {
		t.Error("expected directory removed")
	}
}
