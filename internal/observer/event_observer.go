package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AnalysisEvent represents a step of a deck analysis
type AnalysisEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id"`
	UserID         string                 `json:"user_id,omitempty"`
	InputKind      string                 `json:"input_kind,omitempty"`
	Premium        bool                   `json:"premium"`
	ProcessingTime time.Duration          `json:"processing_time"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of analysis event
type EventType string

const (
	// AnalysisStarted when a request passed input validation
	AnalysisStarted EventType = "analysis_started"
	// AnalysisRejected when a request is refused before any external call
	AnalysisRejected EventType = "analysis_rejected"
	// VisionExtracted when text and labels were read from the screenshot
	VisionExtracted EventType = "vision_extracted"
	// AICompleted when the language model returned a completion
	AICompleted EventType = "ai_completed"
	// AnalysisCompleted when a parsed counter deck is returned
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when an external call or parsing failed
	AnalysisFailed EventType = "analysis_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver logs analysis events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles analysis events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"request_id": event.RequestID,
		"premium":    event.Premium,
	}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	if event.InputKind != "" {
		fields["input_kind"] = event.InputKind
	}
	if event.ProcessingTime > 0 {
		fields["processing_time"] = event.ProcessingTime
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
		entry.Info("Deck analysis started")
	case AnalysisRejected:
		entry.Warn("Deck analysis rejected")
	case VisionExtracted:
		entry.Debug("Deck screenshot read")
	case AICompleted:
		entry.Debug("AI completion received")
	case AnalysisCompleted:
		entry.Info("Deck analysis completed")
	case AnalysisFailed:
		entry.Error("Deck analysis failed")
	default:
		entry.Info("Analysis event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Metrics is a point-in-time copy of the collected counters
type Metrics struct {
	TotalAnalyses      int64         `json:"total_analyses"`
	SuccessfulAnalyses int64         `json:"successful_analyses"`
	FailedAnalyses     int64         `json:"failed_analyses"`
	RejectedAnalyses   int64         `json:"rejected_analyses"`
	ImageAnalyses      int64         `json:"image_analyses"`
	PremiumAnalyses    int64         `json:"premium_analyses"`
	AvgProcessingTime  time.Duration `json:"avg_processing_time_ns"`
}

// MetricsObserver collects counters from analysis events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalAnalyses       int64
	successfulAnalyses  int64
	failedAnalyses      int64
	rejectedAnalyses    int64
	imageAnalyses       int64
	premiumAnalyses     int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles analysis events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case AnalysisStarted:
		o.totalAnalyses++
		if event.InputKind == "image" {
			o.imageAnalyses++
		}
		if event.Premium {
			o.premiumAnalyses++
		}
	case AnalysisRejected:
		o.rejectedAnalyses++
	case AnalysisCompleted:
		o.successfulAnalyses++
		o.totalProcessingTime += event.ProcessingTime
	case AnalysisFailed:
		o.failedAnalyses++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Snapshot returns the current counters
func (o *MetricsObserver) Snapshot() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avg := time.Duration(0)
	if o.successfulAnalyses > 0 {
		avg = o.totalProcessingTime / time.Duration(o.successfulAnalyses)
	}

	return Metrics{
		TotalAnalyses:      o.totalAnalyses,
		SuccessfulAnalyses: o.successfulAnalyses,
		FailedAnalyses:     o.failedAnalyses,
		RejectedAnalyses:   o.rejectedAnalyses,
		ImageAnalyses:      o.imageAnalyses,
		PremiumAnalyses:    o.premiumAnalyses,
		AvgProcessingTime:  avg,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
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

// NotifyObservers delivers the event to every observer in subscription order.
// Observers run on the caller's goroutine and must not block.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		notify(ctx, obs, event)
	}
}

func notify(ctx context.Context, obs Observer, event AnalysisEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
