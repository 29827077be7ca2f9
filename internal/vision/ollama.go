// Package vision provides face detectors for the analysis pipeline.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"

	"github.com/anime-shed/image-inspector-go/internal/analyzer"
	"github.com/anime-shed/image-inspector-go/internal/logger"
	"github.com/anime-shed/image-inspector-go/pkg/models"
)

const (
	// DefaultModel is a vision model that follows JSON prompts reliably
	DefaultModel = "llava"

	defaultMaxSide = 768
	defaultTimeout = 60 * time.Second

	facePrompt = `Find every human face in this image.
Respond with JSON only, in this exact shape:
{"faces":[{"x":0,"y":0,"width":0,"height":0}]}
Coordinates are the top-left corner and size of each face box in pixels of the image you see.
If there are no faces respond with {"faces":[]}.`
)

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// OllamaDetector asks a local vision model for face boxes
type OllamaDetector struct {
	client  *api.Client
	model   string
	maxSide int
	timeout time.Duration
}

// OllamaOption configures an OllamaDetector
type OllamaOption func(*OllamaDetector)

// WithMaxSide bounds the longest side of the image sent to the model
func WithMaxSide(px int) OllamaOption {
	return func(d *OllamaDetector) {
		if px > 0 {
			d.maxSide = px
		}
	}
}

// WithRequestTimeout bounds a single detection when the caller's context has no deadline
func WithRequestTimeout(timeout time.Duration) OllamaOption {
	return func(d *OllamaDetector) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewOllamaDetector creates a detector talking to the Ollama server at baseURL
func NewOllamaDetector(baseURL, model string, opts ...OllamaOption) (*OllamaDetector, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid Ollama URL %q", baseURL)
	}
	if model == "" {
		model = DefaultModel
	}

	d := &OllamaDetector{
		client:  api.NewClient(&url.URL{Scheme: parsed.Scheme, Host: parsed.Host}, http.DefaultClient),
		model:   model,
		maxSide: defaultMaxSide,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// DetectFaces returns face boxes in the coordinate space of img
func (d *OllamaDetector) DetectFaces(ctx context.Context, img image.Image) ([]models.FaceBox, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return []models.FaceBox{}, nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	sent := img
	if bounds.Dx() > d.maxSide || bounds.Dy() > d.maxSide {
		sent = imaging.Fit(img, d.maxSide, d.maxSide, imaging.Linear)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, sent, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode image for detector: %w", err)
	}

	stream := false
	req := &api.ChatRequest{
		Model: d.model,
		Messages: []api.Message{{
			Role:    "user",
			Content: facePrompt,
			Images:  []api.ImageData{api.ImageData(buf.Bytes())},
		}},
		Stream:  &stream,
		Options: map[string]any{"temperature": 0},
	}

	start := time.Now()
	var content string
	err := d.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}

	sb := sent.Bounds()
	boxes, err := parseFaces(content, sb.Dx(), sb.Dy())
	if err != nil {
		return nil, err
	}

	scaleX := float64(bounds.Dx()) / float64(sb.Dx())
	scaleY := float64(bounds.Dy()) / float64(sb.Dy())
	for i := range boxes {
		boxes[i] = scaleBox(boxes[i], scaleX, scaleY)
	}

	logger.WithFields(map[string]interface{}{
		"component":   "vision",
		"model":       d.model,
		"faces":       len(boxes),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Face detection completed")

	return boxes, nil
}

type faceReply struct {
	Faces []struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"faces"`
}

// parseFaces reads the model reply. Boxes whose values all lie in [0,1] are
// treated as fractions of the image; everything is clamped to the image.
func parseFaces(raw string, width, height int) ([]models.FaceBox, error) {
	cleaned := sanitizeReply(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, fmt.Errorf("detector reply is not JSON: %q", truncate(raw, 80))
	}

	var reply faceReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return nil, fmt.Errorf("parse detector reply: %w", err)
	}

	w, h := float64(width), float64(height)
	boxes := make([]models.FaceBox, 0, len(reply.Faces))
	for _, f := range reply.Faces {
		box := models.FaceBox{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height}
		if isFractional(box) {
			box = models.FaceBox{X: box.X * w, Y: box.Y * h, Width: box.Width * w, Height: box.Height * h}
		}
		box, ok := clampBox(box, w, h)
		if !ok {
			continue
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

func sanitizeReply(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func isFractional(b models.FaceBox) bool {
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return b.Width > 0 && b.Height > 0
}

func clampBox(b models.FaceBox, w, h float64) (models.FaceBox, bool) {
	x0 := math.Max(0, b.X)
	y0 := math.Max(0, b.Y)
	x1 := math.Min(w, b.X+b.Width)
	y1 := math.Min(h, b.Y+b.Height)
	if x1 <= x0 || y1 <= y0 {
		return models.FaceBox{}, false
	}
	return models.FaceBox{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, true
}

func scaleBox(b models.FaceBox, sx, sy float64) models.FaceBox {
	return models.FaceBox{
		X:      math.Round(b.X * sx),
		Y:      math.Round(b.Y * sy),
		Width:  math.Round(b.Width * sx),
		Height: math.Round(b.Height * sy),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Unavailable is the detector used when no face detection backend is configured
type Unavailable struct{}

// DetectFaces always reports the capability as unsupported
func (Unavailable) DetectFaces(ctx context.Context, img image.Image) ([]models.FaceBox, error) {
	return nil, analyzer.ErrUnsupported
}
