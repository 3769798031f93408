package normalize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/joseph-ayodele/freight-intake/constants"
)

// reencodable maps extensions imaging can write back without a format change.
var reencodable = map[string]string{
	"jpg":  constants.MimeJPEG,
	"jpeg": constants.MimeJPEG,
	"png":  constants.MimePNG,
	"gif":  "image/gif",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"bmp":  "image/bmp",
}

// stripEXIF decodes and re-encodes the image, which drops EXIF/XMP/ICC metadata.
// Orientation is applied to the pixels first so the stripped image still displays upright.
func stripEXIF(in, out string) error {
	ext := constants.NormalizeExt(filepath.Ext(out))
	if _, ok := reencodable[ext]; !ok {
		return fmt.Errorf("cannot re-encode %q images", ext)
	}
	img, err := imaging.Open(in, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if err := imaging.Save(img, out, imaging.JPEGQuality(90)); err != nil {
		_ = os.Remove(out)
		return fmt.Errorf("encode image: %w", err)
	}
	return nil
}

// imageToA4PDF writes a single-page A4 PDF embedding the image.
func imageToA4PDF(in, out string) error {
	// ImportImagesFile appends to an existing file; start from nothing.
	_ = os.Remove(out)
	imp := pdfcpu.DefaultImportConfig()
	if err := api.ImportImagesFile([]string{in}, out, imp, nil); err != nil {
		_ = os.Remove(out)
		return fmt.Errorf("import image into pdf: %w", err)
	}
	return nil
}

func mimeForImageExt(ext string) string {
	if m, ok := reencodable[constants.NormalizeExt(ext)]; ok {
		return m
	}
	return "image/" + strings.ToLower(constants.NormalizeExt(ext))
}
