package analyzer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anime-shed/image-inspector-go/pkg/models"
)

// DisplayTimeLayout renders LAST_MODIFIED and EXIF dates
const DisplayTimeLayout = "2006-01-02 15:04:05"

var byteUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatBytes renders a byte count with the largest unit keeping the value
// at or above 1, rounded to two decimals without trailing zeros.
// 2048 gives "2 KB", 1536000 gives "1.46 MB".
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(value, 'f', 2, 64), 64)
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + byteUnits[unit]
}

var fileSizePattern = regexp.MustCompile(`(?i)^([\d.]+)\s*([KMG]B)$`)

// ParseFileSize reverses FormatBytes into kilobytes for sorting. Plain byte
// counts and unparsable strings give 0.
func ParseFileSize(s string) float64 {
	m := fileSizePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	switch strings.ToUpper(m[2]) {
	case "MB":
		return v * 1024
	case "GB":
		return v * 1024 * 1024
	default:
		return v
	}
}

// FormatThousands groups digits with commas: 2073600 gives "2,073,600"
func FormatThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// FormatAspectRatio renders width/height to two decimals
func FormatAspectRatio(width, height int) string {
	if height == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(width)/float64(height))
}

// ConvertDMSToDD converts degrees/minutes/seconds to signed decimal degrees
// with six decimals. South and west references are negative.
func ConvertDMSToDD(dms [3]float64, ref string) string {
	dd := dms[0] + dms[1]/60 + dms[2]/3600
	if (ref == "S" || ref == "W") && dd != 0 {
		dd = -dd
	}
	return strconv.FormatFloat(dd, 'f', 6, 64)
}

var exifDatePattern = regexp.MustCompile(`(\d{4}):(\d{2}):(\d{2})`)

// FormatExifDate turns "2021:06:15 10:30:00" into a display date. Input that
// does not parse is returned unchanged.
func FormatExifDate(exifDate string) string {
	loc := exifDatePattern.FindStringIndex(exifDate)
	if loc == nil {
		return exifDate
	}
	normalized := exifDate[:loc[0]] +
		exifDatePattern.ReplaceAllString(exifDate[loc[0]:loc[1]], "$1-$2-$3") +
		exifDate[loc[1]:]
	normalized = strings.TrimSpace(normalized)

	for _, layout := range []string{DisplayTimeLayout, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, normalized, time.Local); err == nil {
			return t.Format(DisplayTimeLayout)
		}
	}
	return exifDate
}

// CameraOf joins the EXIF make and model, or returns "" when neither is set
func CameraOf(m *models.Metadata) string {
	return strings.TrimSpace(m.Value(KeyExifMake) + " " + m.Value(KeyExifModel))
}

// TakenOf formats the capture date, preferring the original timestamp
func TakenOf(m *models.Metadata) string {
	for _, key := range []string{KeyExifDateTimeOriginal, KeyExifDateTime} {
		if v := m.Value(key); v != "" {
			return FormatExifDate(v)
		}
	}
	return ""
}
