package analyzer

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/anime-shed/image-inspector-go/pkg/models"
)

type qualityAnalyzer struct {
	pool      *WorkerPool
	slicePool sync.Pool
}

// NewQualityAnalyzer creates a quality analyzer that splits its passes into
// horizontal strips on pool. A nil pool runs everything on the caller.
func NewQualityAnalyzer(pool *WorkerPool) QualityAnalyzer {
	return &qualityAnalyzer{
		pool: pool,
		slicePool: sync.Pool{
			New: func() interface{} {
				s := make([]float64, 0, 1024)
				return &s
			},
		},
	}
}

func (qa *qualityAnalyzer) Analyze(buf *PixelBuffer) models.QualityReport {
	if buf == nil || buf.PixelCount() == 0 {
		return models.QualityReport{}
	}
	report, err := qa.analyze(buf)
	if err != nil {
		// only reachable with a malformed buffer; the orchestrator recovers it
		panic(err)
	}
	return report
}

func (qa *qualityAnalyzer) analyze(buf *PixelBuffer) (models.QualityReport, error) {
	n := buf.PixelCount()

	sumsPtr := qa.getSlice(n)
	defer qa.slicePool.Put(sumsPtr)
	devPtr := qa.getSlice(n)
	defer qa.slicePool.Put(devPtr)
	sums, dev := *sumsPtr, *devPtr

	// Pass 1: r+g+b of every pixel, held as exact integers
	if err := qa.forEachStrip(0, buf.Height, func(s rowSpan) {
		for y := s.start; y < s.end; y++ {
			row := y * buf.Width
			for x := 0; x < buf.Width; x++ {
				r, g, b := buf.RGB(x, y)
				sums[row+x] = float64(int(r) + int(g) + int(b))
			}
		}
	}); err != nil {
		return models.QualityReport{}, err
	}

	brightness := stat.Mean(sums, nil) / 3

	// Pass 2: absolute deviation of each pixel's brightness from the mean
	if err := qa.forEachStrip(0, buf.Height, func(s rowSpan) {
		for i := s.start * buf.Width; i < s.end*buf.Width; i++ {
			dev[i] = math.Abs(sums[i]/3 - brightness)
		}
	}); err != nil {
		return models.QualityReport{}, err
	}
	contrast := stat.Mean(dev, nil)

	sharpness, err := qa.sharpness(buf, sums)
	if err != nil {
		return models.QualityReport{}, err
	}

	return models.QualityReport{
		Brightness: brightness,
		Contrast:   contrast,
		Sharpness:  sharpness,
	}, nil
}

// sharpness sums |4c - t - b - l - r| of the grayscale values over interior
// pixels and divides by the full image area, not the interior count. The
// stencil runs on channel sums, so the total is divided by 3 once at the end.
func (qa *qualityAnalyzer) sharpness(buf *PixelBuffer, sums []float64) (float64, error) {
	w, h := buf.Width, buf.Height
	if w < 3 || h < 3 {
		return 0, nil
	}

	spans := splitRows(1, h-1, qa.workers())
	partial := make([]float64, len(spans))
	jobs := make([]func(), len(spans))
	for i, s := range spans {
		i, s := i, s
		jobs[i] = func() {
			var sum float64
			for y := s.start; y < s.end; y++ {
				for x := 1; x < w-1; x++ {
					idx := y*w + x
					laplacian := 4*sums[idx] - sums[idx-w] - sums[idx+w] - sums[idx-1] - sums[idx+1]
					sum += math.Abs(laplacian)
				}
			}
			partial[i] = sum
		}
	}
	if err := qa.run(jobs); err != nil {
		return 0, err
	}

	var total float64
	for _, p := range partial {
		total += p
	}
	return total / 3 / float64(w*h), nil
}

func (qa *qualityAnalyzer) forEachStrip(start, end int, fn func(rowSpan)) error {
	spans := splitRows(start, end, qa.workers())
	jobs := make([]func(), len(spans))
	for i, s := range spans {
		s := s
		jobs[i] = func() { fn(s) }
	}
	return qa.run(jobs)
}

func (qa *qualityAnalyzer) run(jobs []func()) error {
	if qa.pool == nil {
		for _, job := range jobs {
			job()
		}
		return nil
	}
	return qa.pool.Run(jobs)
}

func (qa *qualityAnalyzer) workers() int {
	if qa.pool == nil {
		return 1
	}
	return qa.pool.Workers()
}

func (qa *qualityAnalyzer) getSlice(n int) *[]float64 {
	p := qa.slicePool.Get().(*[]float64)
	if cap(*p) < n {
		*p = make([]float64, n)
	}
	*p = (*p)[:n]
	return p
}
