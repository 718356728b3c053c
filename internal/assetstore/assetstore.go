// Package assetstore writes extracted asset bytes to a directory tree laid
// out as <dir>/<docID>/<file name>.
package assetstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docchunk/internal/docmodel"
)

// Store is a filesystem asset writer rooted at Dir.
type Store struct {
	Dir string
}

func New(dir string) *Store {
	return &Store{Dir: dir}
}

// Paths maps each written asset to its file path.
type Paths map[*docmodel.Asset]string

// Lookup returns the stored path of a, or "".
func (p Paths) Lookup(a *docmodel.Asset) string {
	return p[a]
}

// WriteAll writes every asset of a document. File name collisions are
// resolved by prefixing the asset index until the name is free. On error the assets written so far
// are returned with it.
func (s *Store) WriteAll(docID string, assets []*docmodel.Asset) (Paths, error) {
	paths := make(Paths, len(assets))
	if len(assets) == 0 {
		return paths, nil
	}

	dir, err := s.docDir(docID)
	if err != nil {
		return paths, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return paths, fmt.Errorf("create asset dir: %w", err)
	}

	used := make(map[string]bool, len(assets))
	for _, a := range assets {
		name := fileName(a)
		for used[name] {
			name = fmt.Sprintf("%d_%s", a.Index, name)
		}
		used[name] = true

		path := filepath.Join(dir, name)
		if err := writeFile(path, a.Data); err != nil {
			return paths, fmt.Errorf("write asset %s: %w", name, err)
		}
		paths[a] = path
	}
	return paths, nil
}

// Remove deletes every asset stored for docID.
func (s *Store) Remove(docID string) error {
	dir, err := s.docDir(docID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove assets %s: %w", docID, err)
	}
	return nil
}

func (s *Store) docDir(docID string) (string, error) {
	if docID == "" || docID != filepath.Base(docID) || docID == "." || docID == ".." {
		return "", fmt.Errorf("invalid document id %q", docID)
	}
	return filepath.Join(s.Dir, docID), nil
}

// fileName strips any directory part from the asset's name.
func fileName(a *docmodel.Asset) string {
	name := filepath.Base(strings.ReplaceAll(a.FileName, "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		name = fmt.Sprintf("image_%d.%s", a.Index+1, a.Format)
	}
	return name
}

// writeFile writes through a temp file in the same directory so readers never
// see a partial asset.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".asset-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
