// Package exiftag reads embedded EXIF tags from JPEG, TIFF and PNG files.
package exiftag

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/anime-shed/image-inspector-go/internal/logger"
	"github.com/anime-shed/image-inspector-go/pkg/models"
)

// maxUndefinedLen skips opaque binary blobs such as maker notes
const maxUndefinedLen = 64

var (
	exifHeader   = []byte("Exif\x00\x00")
	tiffLE       = []byte("II*\x00")
	tiffBE       = []byte("MM\x00*")
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
)

// Source is a TagSource backed by goexif
type Source struct{}

// NewSource creates an EXIF tag source
func NewSource() *Source {
	return &Source{}
}

// Tags returns the file's tags sorted by name. Files without an EXIF block
// yield an empty set and no error; a damaged block is an error.
func (s *Source) Tags(ctx context.Context, data []byte) (models.TagSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, ok := locateTIFF(data)
	if !ok {
		return models.TagSet{}, nil
	}

	x, err := exif.Decode(bytes.NewReader(raw))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		if err == nil {
			err = fmt.Errorf("no EXIF data decoded")
		}
		return nil, fmt.Errorf("decode EXIF: %w", err)
	}
	if err != nil {
		logger.WithComponent("exiftag").WithError(err).Debug("Ignoring non-critical EXIF error")
	}

	w := &collector{}
	if err := x.Walk(w); err != nil {
		return nil, fmt.Errorf("walk EXIF tags: %w", err)
	}

	// goexif walks a map; sort for a stable order
	sort.Slice(w.tags, func(i, j int) bool {
		return w.tags[i].Name < w.tags[j].Name
	})
	return w.tags, nil
}

type collector struct {
	tags models.TagSet
}

func (c *collector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	value, ok := tagValue(tag)
	if !ok {
		return nil
	}
	c.tags = append(c.tags, models.Tag{Name: string(name), Value: value})
	return nil
}

func tagValue(tag *tiff.Tag) (models.TagValue, bool) {
	n := int(tag.Count)

	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return models.TagValue{}, false
		}
		return models.TextValue(strings.TrimSpace(s)), true

	case tiff.RatVal:
		nums := make([]float64, 0, n)
		for i := 0; i < n; i++ {
			num, den, err := tag.Rat2(i)
			if err != nil {
				return models.TagValue{}, false
			}
			if den == 0 {
				nums = append(nums, 0)
				continue
			}
			nums = append(nums, float64(num)/float64(den))
		}
		return models.NumberValue(nums...), true

	case tiff.IntVal:
		nums := make([]float64, 0, n)
		for i := 0; i < n; i++ {
			v, err := tag.Int64(i)
			if err != nil {
				return models.TagValue{}, false
			}
			nums = append(nums, float64(v))
		}
		return models.NumberValue(nums...), true

	case tiff.FloatVal:
		nums := make([]float64, 0, n)
		for i := 0; i < n; i++ {
			v, err := tag.Float(i)
			if err != nil {
				return models.TagValue{}, false
			}
			nums = append(nums, v)
		}
		return models.NumberValue(nums...), true

	default:
		if n > maxUndefinedLen {
			return models.TagValue{}, false
		}
		return models.TextValue(strings.Trim(tag.String(), "\"")), true
	}
}

// locateTIFF finds the TIFF structure holding the EXIF tags
func locateTIFF(data []byte) ([]byte, bool) {
	if bytes.HasPrefix(data, tiffLE) || bytes.HasPrefix(data, tiffBE) {
		return data, true
	}
	if bytes.HasPrefix(data, pngSignature) {
		return pngExif(data)
	}
	if i := bytes.Index(data, exifHeader); i >= 0 {
		return data[i+len(exifHeader):], true
	}
	return nil, false
}

// pngExif returns the payload of the eXIf chunk
func pngExif(data []byte) ([]byte, bool) {
	pos := len(pngSignature)
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		kind := string(data[pos+4 : pos+8])
		start := pos + 8
		end := start + length
		if length < 0 || end > len(data) {
			return nil, false
		}
		switch kind {
		case "eXIf":
			return data[start:end], true
		case "IDAT", "IEND":
			// eXIf must precede image data
			return nil, false
		}
		pos = end + 4 // skip CRC
	}
	return nil, false
}
