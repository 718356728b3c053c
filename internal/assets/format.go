package assets

import (
	"bytes"
	"image"
	"path"
	"strings"

	"github.com/fumiama/imgsz"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DetectFormat infers a format name and pixel size from the bytes, falling
// back to the extension of name and finally to "bin".
func DetectFormat(data []byte, name string) (format string, width, height int) {
	if sz, f, err := imgsz.DecodeSize(bytes.NewReader(data)); err == nil {
		return normalizeFormat(f), sz.Width, sz.Height
	}
	if cfg, f, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return normalizeFormat(f), cfg.Width, cfg.Height
	}
	if ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), "."); ext != "" {
		return normalizeFormat(ext), 0, 0
	}
	return "bin", 0, 0
}

func normalizeFormat(f string) string {
	switch f = strings.ToLower(f); f {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return f
}
