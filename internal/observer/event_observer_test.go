package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type recordingObserver struct {
	name   string
	mu     sync.Mutex
	events []EventType
}

func (r *recordingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event.EventType)
}

func (r *recordingObserver) GetObserverName() string {
	return r.name
}

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	panic("observer bug")
}

func (panickingObserver) GetObserverName() string {
	return "panicking"
}

func TestMetricsObserver(t *testing.T) {
	o := NewMetricsObserver()
	ctx := context.Background()

	events := []AnalysisEvent{
		{EventType: AnalysisStarted},
		{EventType: AnalysisCompleted, ProcessingTime: 100 * time.Millisecond, Notices: 2},
		{EventType: AnalysisStarted},
		{EventType: AnalysisCompleted, ProcessingTime: 300 * time.Millisecond},
		{EventType: AnalysisStarted},
		{EventType: AnalysisFailed},
		{EventType: AnalysisStarted},
		{EventType: AnalysisDiscarded},
		{EventType: InputRejected},
		{EventType: ImageFetched},
		{EventType: ImageFetchFailed},
	}
	for _, e := range events {
		o.OnEvent(ctx, e)
	}

	m := o.GetMetrics()
	want := Metrics{
		TotalAnalyses:       4,
		SuccessfulAnalyses:  2,
		FailedAnalyses:      1,
		DiscardedAnalyses:   1,
		RejectedInputs:      1,
		ImagesFetched:       1,
		ImageFetchFailures:  1,
		Notices:             2,
		TotalProcessingMs:   400,
		AvgProcessingTimeMs: 200,
	}
	if m != want {
		t.Errorf("Expected %+v, got %+v", want, m)
	}
}

func TestEventPublisher_NotifiesAllAndSurvivesPanics(t *testing.T) {
	p := NewEventPublisher()
	a := &recordingObserver{name: "a"}
	b := &recordingObserver{name: "b"}
	p.Subscribe(a)
	p.Subscribe(panickingObserver{})
	p.Subscribe(b)

	p.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisStarted})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("Expected both observers notified before return, got %d and %d", len(a.events), len(b.events))
	}

	p.Unsubscribe(&recordingObserver{name: "a"})
	p.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisCompleted})

	if len(a.events) != 1 {
		t.Errorf("Expected unsubscribed observer to stop receiving, got %d events", len(a.events))
	}
	if len(b.events) != 2 {
		t.Errorf("Expected remaining observer to receive 2 events, got %d", len(b.events))
	}
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.DebugLevel)

	o := NewLoggingObserver(l)
	o.OnEvent(context.Background(), AnalysisEvent{
		EventType:    InputRejected,
		FileName:     "notes.pdf",
		ErrorMessage: "Please select an image file",
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Expected one JSON log line, got %q", buf.String())
	}
	if entry["level"] != "warning" {
		t.Errorf("Expected warning level, got %v", entry["level"])
	}
	if entry["file_name"] != "notes.pdf" || !strings.Contains(entry["error"].(string), "image file") {
		t.Errorf("Unexpected fields %v", entry)
	}
	if _, ok := entry["image_url"]; ok {
		t.Error("Expected empty image_url to be omitted")
	}
}
