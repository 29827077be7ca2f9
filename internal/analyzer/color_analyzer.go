package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/anime-shed/image-inspector-go/pkg/models"
)

// MaxColorBuckets is the number of dominant colors reported
const MaxColorBuckets = 5

type colorAnalyzer struct {
	limit int
}

// NewColorAnalyzer creates an exact-match color analyzer. Colors differing by
// one unit in any channel land in different buckets.
func NewColorAnalyzer() ColorAnalyzer {
	return &colorAnalyzer{limit: MaxColorBuckets}
}

type colorCount struct {
	c     RGB
	count int
}

func (a *colorAnalyzer) Analyze(buf *PixelBuffer, sampleStride int) []models.ColorBucket {
	if buf == nil || buf.PixelCount() == 0 {
		return []models.ColorBucket{}
	}

	sampler := NewPixelSampler(sampleStride)
	index := make(map[RGB]int)
	var counts []colorCount
	samples := 0

	sampler.Each(buf, func(c RGB) {
		samples++
		if i, ok := index[c]; ok {
			counts[i].count++
			return
		}
		index[c] = len(counts)
		counts = append(counts, colorCount{c: c, count: 1})
	})

	// counts is in first-seen order, so a stable sort keeps ties in that order
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].count > counts[j].count
	})
	if len(counts) > a.limit {
		counts = counts[:a.limit]
	}

	buckets := make([]models.ColorBucket, 0, len(counts))
	for _, cc := range counts {
		buckets = append(buckets, models.ColorBucket{
			Color:    colorKey(cc.c),
			Hex:      hexOf(cc.c),
			Coverage: coverage(cc.count, samples),
		})
	}
	return buckets
}

// coverage is the share of samples matching a bucket, to one decimal. With a
// pixel count divisible by the stride this equals count*stride/pixels.
// Dividing by samples rather than pixels keeps the buckets summing to at most 100.
func coverage(count, samples int) float64 {
	if samples == 0 {
		return 0
	}
	pct := float64(count) / float64(samples) * 100
	return math.Round(pct*10) / 10
}

func colorKey(c RGB) string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

func hexOf(c RGB) string {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex()
}
