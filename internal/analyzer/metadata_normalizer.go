package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/anime-shed/image-inspector-go/pkg/models"
)

// Metadata keys that are always present
const (
	KeyFileName     = "FILE_NAME"
	KeyFileSize     = "FILE_SIZE"
	KeyFileType     = "FILE_TYPE"
	KeyLastModified = "LAST_MODIFIED"
	KeyImageWidth   = "IMAGE_WIDTH"
	KeyImageHeight  = "IMAGE_HEIGHT"
	KeyAspectRatio  = "ASPECT_RATIO"
	KeyTotalPixels  = "TOTAL_PIXELS"

	KeyGPSCoordinates = "GPS_COORDINATES"
	KeyGoogleMapsLink = "GOOGLE_MAPS_LINK"

	ExifKeyPrefix = "EXIF_"

	KeyExifMake             = ExifKeyPrefix + "MAKE"
	KeyExifModel            = ExifKeyPrefix + "MODEL"
	KeyExifDateTime         = ExifKeyPrefix + "DATETIME"
	KeyExifDateTimeOriginal = ExifKeyPrefix + "DATETIMEORIGINAL"
)

// GPS tag names as reported by the tag source
const (
	TagGPSLatitude     = "GPSLatitude"
	TagGPSLatitudeRef  = "GPSLatitudeRef"
	TagGPSLongitude    = "GPSLongitude"
	TagGPSLongitudeRef = "GPSLongitudeRef"
)

// FileInfo describes the uploaded file
type FileInfo struct {
	Name         string
	Size         int64
	MIMEType     string
	LastModified time.Time
}

// ImageSize is the decoded image's dimensions
type ImageSize struct {
	Width  int
	Height int
}

type metadataNormalizer struct {
	location *time.Location
}

// NewMetadataNormalizer renders timestamps in the local time zone
func NewMetadataNormalizer() MetadataNormalizer {
	return NewMetadataNormalizerIn(time.Local)
}

// NewMetadataNormalizerIn renders timestamps in loc
func NewMetadataNormalizerIn(loc *time.Location) MetadataNormalizer {
	if loc == nil {
		loc = time.Local
	}
	return &metadataNormalizer{location: loc}
}

func (n *metadataNormalizer) Normalize(file FileInfo, size ImageSize, tags models.TagSet) *models.Metadata {
	m := models.NewMetadata()

	m.Set(KeyFileName, file.Name)
	m.Set(KeyFileSize, FormatBytes(file.Size))
	m.Set(KeyFileType, file.MIMEType)
	m.Set(KeyLastModified, file.LastModified.In(n.location).Format(DisplayTimeLayout))
	m.Set(KeyImageWidth, fmt.Sprintf("%dpx", size.Width))
	m.Set(KeyImageHeight, fmt.Sprintf("%dpx", size.Height))
	m.Set(KeyAspectRatio, FormatAspectRatio(size.Width, size.Height))
	m.Set(KeyTotalPixels, FormatThousands(int64(size.Width)*int64(size.Height)))

	for _, tag := range tags {
		if tag.Value.IsEmpty() {
			continue
		}
		m.Set(ExifKeyPrefix+strings.ToUpper(tag.Name), tag.Value.String())
	}

	if lat, lon, ok := gpsPosition(tags); ok {
		m.Set(KeyGPSCoordinates, lat+", "+lon)
		m.Set(KeyGoogleMapsLink, fmt.Sprintf("https://maps.google.com/?q=%s,%s", lat, lon))
	}

	return m
}

// gpsPosition converts the latitude/longitude DMS tags; both must be present
func gpsPosition(tags models.TagSet) (lat, lon string, ok bool) {
	latVal, okLat := tags.Lookup(TagGPSLatitude)
	lonVal, okLon := tags.Lookup(TagGPSLongitude)
	if !okLat || !okLon {
		return "", "", false
	}
	latDMS, okLat := latVal.Triple()
	lonDMS, okLon := lonVal.Triple()
	if !okLat || !okLon {
		return "", "", false
	}

	latRef, _ := tags.Lookup(TagGPSLatitudeRef)
	lonRef, _ := tags.Lookup(TagGPSLongitudeRef)
	return ConvertDMSToDD(latDMS, strings.TrimSpace(latRef.Text)),
		ConvertDMSToDD(lonDMS, strings.TrimSpace(lonRef.Text)),
		true
}
