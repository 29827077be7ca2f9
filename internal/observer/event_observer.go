package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AnalysisEvent describes one step of an inspection
type AnalysisEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	SourceID       string                 `json:"source_id,omitempty"`
	FileName       string                 `json:"file_name,omitempty"`
	ImageURL       string                 `json:"image_url,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Notices        int                    `json:"notices,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType names an inspection step
type EventType string

const (
	AnalysisStarted   EventType = "analysis_started"
	AnalysisCompleted EventType = "analysis_completed"
	AnalysisFailed    EventType = "analysis_failed"
	// AnalysisDiscarded is a result superseded by a newer upload in the same session
	AnalysisDiscarded EventType = "analysis_discarded"
	// InputRejected is a non-image upload; nothing was analyzed
	InputRejected    EventType = "input_rejected"
	ImageFetched     EventType = "image_fetched"
	ImageFetchFailed EventType = "image_fetch_failed"
)

// Observer receives published events
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject publishes events to observers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver writes each event as a structured log line
type LoggingObserver struct {
	logger *logrus.Logger
}

func NewLoggingObserver(logger *logrus.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":         event.EventType,
		"processing_time_ms": event.ProcessingTime.Milliseconds(),
	}
	if event.SourceID != "" {
		fields["source_id"] = event.SourceID
	}
	if event.FileName != "" {
		fields["file_name"] = event.FileName
	}
	if event.ImageURL != "" {
		fields["image_url"] = event.ImageURL
	}
	if event.Notices > 0 {
		fields["notices"] = event.Notices
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case AnalysisStarted:
		entry.Info("Image analysis started")
	case AnalysisCompleted:
		entry.Info("Image analysis completed")
	case AnalysisFailed:
		entry.Error("Image analysis failed")
	case AnalysisDiscarded:
		entry.Info("Stale analysis discarded")
	case InputRejected:
		entry.Warn("Input rejected")
	case ImageFetched:
		entry.Debug("Image fetched successfully")
	case ImageFetchFailed:
		entry.Error("Image fetch failed")
	default:
		entry.Info("Analysis event occurred")
	}
}

func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Metrics is a snapshot of MetricsObserver counters
type Metrics struct {
	TotalAnalyses       int64   `json:"total_analyses"`
	SuccessfulAnalyses  int64   `json:"successful_analyses"`
	FailedAnalyses      int64   `json:"failed_analyses"`
	DiscardedAnalyses   int64   `json:"discarded_analyses"`
	RejectedInputs      int64   `json:"rejected_inputs"`
	ImagesFetched       int64   `json:"images_fetched"`
	ImageFetchFailures  int64   `json:"image_fetch_failures"`
	Notices             int64   `json:"notices"`
	TotalProcessingMs   int64   `json:"total_processing_ms"`
	AvgProcessingTimeMs float64 `json:"avg_processing_ms"`
}

// MetricsObserver counts events
type MetricsObserver struct {
	mu                  sync.RWMutex
	m                   Metrics
	totalProcessingTime time.Duration
}

func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case AnalysisStarted:
		o.m.TotalAnalyses++
	case AnalysisCompleted:
		o.m.SuccessfulAnalyses++
		o.m.Notices += int64(event.Notices)
		o.totalProcessingTime += event.ProcessingTime
	case AnalysisFailed:
		o.m.FailedAnalyses++
	case AnalysisDiscarded:
		o.m.DiscardedAnalyses++
	case InputRejected:
		o.m.RejectedInputs++
	case ImageFetched:
		o.m.ImagesFetched++
	case ImageFetchFailed:
		o.m.ImageFetchFailures++
	}
}

func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns the current counters
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snapshot := o.m
	snapshot.TotalProcessingMs = o.totalProcessingTime.Milliseconds()
	if o.m.SuccessfulAnalyses > 0 {
		avg := o.totalProcessingTime / time.Duration(o.m.SuccessfulAnalyses)
		snapshot.AvgProcessingTimeMs = float64(avg.Microseconds()) / 1000
	}
	return snapshot
}

// EventPublisher fans events out to its observers
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewEventPublisher() *EventPublisher {
	return &EventPublisher{observers: make([]Observer, 0)}
}

func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes the observer with the same name
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers event to every observer concurrently and returns
// once all have handled it. A panicking observer is logged and skipped.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, observer := range observers {
		wg.Add(1)
		go func(obs Observer) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
	wg.Wait()
}
