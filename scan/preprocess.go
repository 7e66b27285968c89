package scan

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

var supportedScanExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsRasterScan checks if the filename has a common raster image extension.
// PDFs and anything else pass to the extraction collaborator untouched.
func IsRasterScan(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedScanExtensions[ext]
}

// Preprocess normalizes a raster report scan before the extraction call:
// bounded to maxSize on the longest side and converted to grayscale, which is
// what the recognition service reads best. Non-raster documents are returned
// unchanged.
func Preprocess(data []byte, filename string, maxSize int) ([]byte, error) {
	if !IsRasterScan(filename) {
		return data, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode scan %s: %w", filename, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxSize || bounds.Dy() > maxSize {
		img = imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	}
	img = imaging.Grayscale(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("failed to encode preprocessed scan %s: %w", filename, err)
	}

	log.Printf("scan: preprocessed %s (%dx%d -> %d bytes)", filename, bounds.Dx(), bounds.Dy(), buf.Len())
	return buf.Bytes(), nil
}

// PreprocessReader is a convenience wrapper over Preprocess for stream input.
func PreprocessReader(r io.Reader, filename string, maxSize int) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan %s: %w", filename, err)
	}
	return Preprocess(data, filename, maxSize)
}
