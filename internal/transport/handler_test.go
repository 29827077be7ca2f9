package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/anime-shed/image-inspector-go/internal/analyzer"
	"github.com/anime-shed/image-inspector-go/internal/config"
	"github.com/anime-shed/image-inspector-go/internal/observer"
	"github.com/anime-shed/image-inspector-go/internal/repository"
	"github.com/anime-shed/image-inspector-go/internal/service"
	"github.com/anime-shed/image-inspector-go/internal/storage"
	"github.com/anime-shed/image-inspector-go/pkg/models"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	pool := analyzer.NewWorkerPool(2)
	t.Cleanup(pool.Close)

	store := storage.NewMemoryStore()
	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(metrics)

	svc := service.NewInspectionService(
		analyzer.NewOrchestrator(nil, nil, pool),
		nil,
		repository.NewHistoryRepository(store, repository.DefaultHistoryLimit),
		repository.NewSettingsRepository(store),
		events,
	)

	cfg := &config.Config{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	return NewHandler(svc, metrics, cfg)
}

func createTestPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.NRGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, name, contentType string, data []byte, lastModified string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(data)

	if lastModified != "" {
		w.WriteField("last_modified", lastModified)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Expected JSON body, got %q: %v", rec.Body.String(), err)
	}
}

func TestHealthCheck(t *testing.T) {
	h := newTestRouter(t)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "available" || body["version"] != Version {
		t.Errorf("Unexpected health body %v", body)
	}
	if rec.Header().Get(HeaderRequestID) == "" {
		t.Error("Expected a generated request id header")
	}
}

func TestRequestID_Propagated(t *testing.T) {
	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "req-123")

	rec := serve(h, req)
	if got := rec.Header().Get(HeaderRequestID); got != "req-123" {
		t.Errorf("Expected req-123, got %q", got)
	}
}

func TestAnalyzeUpload(t *testing.T) {
	h := newTestRouter(t)
	rec := serve(h, uploadRequest(t, "blue.png", "image/png", createTestPNG(t), "1704164645000"))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.AnalyzeResponse
	decode(t, rec, &resp)

	if !resp.Archived || resp.HistoryID == 0 {
		t.Errorf("Expected archived result with a history id, got %+v", resp)
	}
	if resp.Result == nil || resp.Result.Metadata.Value(analyzer.KeyFileName) != "blue.png" {
		t.Fatalf("Expected metadata for blue.png, got %+v", resp.Result)
	}
	if len(resp.Result.Colors) != 1 || resp.Result.Colors[0].Color != "rgb(0,0,255)" {
		t.Errorf("Expected a single blue bucket, got %+v", resp.Result.Colors)
	}
	if resp.Result.Faces.Status != models.FacesUnsupported {
		t.Errorf("Expected unsupported faces without a detector, got %s", resp.Result.Faces.Status)
	}
}

func TestAnalyzeUpload_Errors(t *testing.T) {
	h := newTestRouter(t)
	data := createTestPNG(t)

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
		wantType string
	}{
		{
			name:     "not an image",
			req:      uploadRequest(t, "notes.txt", "text/plain", []byte("hello"), ""),
			wantCode: http.StatusUnsupportedMediaType,
			wantType: "input_rejected",
		},
		{
			name:     "bad last_modified",
			req:      uploadRequest(t, "a.png", "image/png", data, "yesterday"),
			wantCode: http.StatusBadRequest,
			wantType: "validation",
		},
		{
			name:     "missing file",
			req:      httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("")),
			wantCode: http.StatusBadRequest,
			wantType: "validation",
		},
		{
			name:     "too large",
			req:      uploadRequest(t, "big.png", "image/png", bytes.Repeat([]byte{0}, 2<<20), ""),
			wantCode: http.StatusRequestEntityTooLarge,
			wantType: "validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.req)
			if rec.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			var resp models.ErrorResponse
			decode(t, rec, &resp)
			if resp.Type != tt.wantType {
				t.Errorf("Expected type %s, got %s", tt.wantType, resp.Type)
			}
			if resp.RequestID == "" {
				t.Error("Expected request id in error body")
			}
		})
	}
}

func TestAnalyzeURL_NotConfigured(t *testing.T) {
	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/analyze/url", strings.NewReader(`{"url":"https://example.com/a.png"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(h, req)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("Expected 501, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHistoryLifecycle(t *testing.T) {
	h := newTestRouter(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/history/export", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 exporting empty history, got %d", rec.Code)
	}

	var analyzed models.AnalyzeResponse
	decode(t, serve(h, uploadRequest(t, "blue.png", "image/png", createTestPNG(t), "")), &analyzed)
	id := analyzed.HistoryID

	var list models.HistoryResponse
	decode(t, serve(h, httptest.NewRequest(http.MethodGet, "/history?q=BLUE&type=image/png&sort=name", nil)), &list)
	if list.Count != 1 || list.Items[0].ID != id {
		t.Fatalf("Expected the uploaded record listed, got %+v", list)
	}

	decode(t, serve(h, httptest.NewRequest(http.MethodGet, "/history?type=image/jpeg", nil)), &list)
	if list.Count != 0 {
		t.Errorf("Expected type filter to exclude png, got %d", list.Count)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/history/%d/export", id), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, metadataExportName) {
		t.Errorf("Expected %s attachment, got %q", metadataExportName, cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "{\n  \"FILE_NAME\": \"blue.png\"") {
		t.Errorf("Expected indented metadata starting with FILE_NAME, got %q", rec.Body.String())
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/history/export", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Disposition"), historyExportName) {
		t.Errorf("Expected history attachment, got %d %q", rec.Code, rec.Header().Get("Content-Disposition"))
	}

	rec = serve(h, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/history/%d", id), nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/history/%d", id), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/history/abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a non-numeric id, got %d", rec.Code)
	}

	rec = serve(h, httptest.NewRequest(http.MethodDelete, "/history", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 clearing history, got %d", rec.Code)
	}
}

func TestSettings(t *testing.T) {
	h := newTestRouter(t)

	var got models.Settings
	decode(t, serve(h, httptest.NewRequest(http.MethodGet, "/settings", nil)), &got)
	if got != models.DefaultSettings() {
		t.Errorf("Expected defaults, got %+v", got)
	}

	req := httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(`{"theme":"blue","enableFaceDetection":false}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(h, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &got)
	if got.Theme != "blue" || got.EnableFaceDetection || !got.EnableColorAnalysis {
		t.Errorf("Expected a merged update, got %+v", got)
	}

	req = httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(`{"animationSpeed":"warp"}`))
	req.Header.Set("Content-Type", "application/json")
	if rec := serve(h, req); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown speed, got %d", rec.Code)
	}

	decode(t, serve(h, httptest.NewRequest(http.MethodPost, "/settings/reset", nil)), &got)
	if got != models.DefaultSettings() {
		t.Errorf("Expected reset to defaults, got %+v", got)
	}
}

func TestMetrics(t *testing.T) {
	h := newTestRouter(t)
	serve(h, uploadRequest(t, "blue.png", "image/png", createTestPNG(t), ""))
	serve(h, uploadRequest(t, "notes.txt", "text/plain", []byte("x"), ""))

	var m observer.Metrics
	decode(t, serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil)), &m)
	if m.TotalAnalyses != 1 || m.SuccessfulAnalyses != 1 || m.RejectedInputs != 1 {
		t.Errorf("Unexpected metrics %+v", m)
	}
}
