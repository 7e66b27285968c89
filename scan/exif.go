package scan

import (
	"bytes"
	"log"

	"github.com/rwcarlsen/goexif/exif"
)

// ScannedAt extracts the capture timestamp from a raster scan's EXIF data,
// when the scanner or camera recorded one. Missing or unreadable EXIF is
// normal and yields nil.
func ScannedAt(data []byte, filename string) *int64 {
	if !IsRasterScan(filename) {
		return nil
	}

	exifData, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		// most flatbed scans carry no EXIF at all
		return nil
	}

	taken, err := exifData.DateTime()
	if err != nil {
		return nil
	}

	ts := taken.Unix()
	log.Printf("scan: %s scanned at %s", filename, taken.Format("2006-01-02 15:04:05"))
	return &ts
}
