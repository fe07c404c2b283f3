package dynobj

import (
	"context"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Event type constants for the sidecar's own CloudEvents, distinct
// from user-level domain signals — these describe dispatch telemetry,
// not the object model. Naming follows the teacher's reverse-domain
// convention in observer.go.
const (
	EventTypeCall   = "com.dynobj.dispatch.call"
	EventTypeResult = "com.dynobj.dispatch.result"
	EventTypeError  = "com.dynobj.dispatch.error"
	EventTypeStats  = "com.dynobj.dispatch.stats"
)

// TraceObserver receives the sidecar's CloudEvents. Grounded in the
// teacher's Observer interface (observer.go), narrowed to this
// package's own telemetry channel.
type TraceObserver interface {
	OnTraceEvent(ctx context.Context, event cloudevents.Event) error
	ObserverID() string
}

// TraceSubject fans dispatch telemetry (Call/Result/Error trace
// events and periodic stats rollups) out to registered TraceObservers
// as CloudEvents, the same role the teacher's Subject plays for module
// lifecycle events. It is the one sanctioned path from the Dispatcher
// sidecar to the outside world; domain signals (signal.go) are a
// separate, user-facing bus.
type TraceSubject struct {
	source string

	mu        sync.RWMutex
	observers map[string]TraceObserver

	statsMu  sync.Mutex
	stats    map[uint32]*methodStats
}

type methodStats struct {
	count            int64
	wallSum, userSum, sysSum float64
}

// NewTraceSubject creates a subject whose emitted CloudEvents carry
// source as their CloudEvents "source" attribute (e.g. an object's
// instance id).
func NewTraceSubject(source string) *TraceSubject {
	return &TraceSubject{
		source:    source,
		observers: make(map[string]TraceObserver),
		stats:     make(map[uint32]*methodStats),
	}
}

// RegisterObserver adds an observer; idempotent re-registration under
// the same ObserverID replaces the prior registration.
func (s *TraceSubject) RegisterObserver(o TraceObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers[o.ObserverID()] = o
}

// UnregisterObserver removes an observer; a no-op if it was not
// registered, matching the teacher's Subject.UnregisterObserver
// contract.
func (s *TraceSubject) UnregisterObserver(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.observers, id)
}

func (s *TraceSubject) notify(event cloudevents.Event) {
	s.mu.RLock()
	observers := make([]TraceObserver, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.RUnlock()
	for _, o := range observers {
		_ = o.OnTraceEvent(context.Background(), event)
	}
}

// RecordTrace converts an EventTrace to a CloudEvent and notifies
// observers, implementing the "Tracer" half of the sidecar described
// in spec.md §4.5.
func (s *TraceSubject) RecordTrace(evt EventTrace) {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource(s.source)
	e.SetTime(evt.Timestamp)
	e.SetSpecVersion(cloudevents.VersionV1)
	e.SetExtension("tracerid", evt.TraceID)
	e.SetExtension("methodid", int64(evt.MethodID))

	switch evt.Kind {
	case EventTraceCall:
		e.SetType(EventTypeCall)
		_ = e.SetData(cloudevents.ApplicationJSON, evt.Value.Value())
	case EventTraceResult:
		e.SetType(EventTypeResult)
		e.SetExtension("usercpu", evt.UserCPU)
		e.SetExtension("syscpu", evt.SysCPU)
		_ = e.SetData(cloudevents.ApplicationJSON, evt.Value.Value())
	case EventTraceError:
		e.SetType(EventTypeError)
		e.SetExtension("usercpu", evt.UserCPU)
		e.SetExtension("syscpu", evt.SysCPU)
		_ = e.SetData(cloudevents.ApplicationJSON, evt.Value.Value())
	}
	s.notify(e)
}

// RecordStats accumulates one timing sample for methodID, to be
// flushed by the StatsAggregator's cron schedule rather than emitted
// immediately — this is the "Stats" half of the sidecar.
func (s *TraceSubject) RecordStats(methodID uint32, wallSeconds, userSeconds, sysSeconds float64) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	m, ok := s.stats[methodID]
	if !ok {
		m = &methodStats{}
		s.stats[methodID] = m
	}
	m.count++
	m.wallSum += wallSeconds
	m.userSum += userSeconds
	m.sysSum += sysSeconds
}

// flushStats emits one aggregate CloudEvent per method with pending
// samples, then clears the accumulator, matching the rolling-window
// behavior a StatsAggregator cron tick expects.
func (s *TraceSubject) flushStats(now time.Time) {
	s.statsMu.Lock()
	snapshot := s.stats
	s.stats = make(map[uint32]*methodStats)
	s.statsMu.Unlock()

	for methodID, m := range snapshot {
		e := cloudevents.NewEvent()
		e.SetID(uuid.NewString())
		e.SetSource(s.source)
		e.SetType(EventTypeStats)
		e.SetTime(now)
		e.SetSpecVersion(cloudevents.VersionV1)
		e.SetExtension("methodid", int64(methodID))
		e.SetExtension("count", m.count)
		payload := map[string]float64{
			"wallSecondsTotal": m.wallSum,
			"userSecondsTotal": m.userSum,
			"sysSecondsTotal":  m.sysSum,
		}
		_ = e.SetData(cloudevents.ApplicationJSON, payload)
		s.notify(e)
	}
}

// FunctionalTraceObserver adapts a plain function to TraceObserver,
// mirroring the teacher's FunctionalObserver convenience constructor.
type FunctionalTraceObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalTraceObserver builds a TraceObserver from id and handler.
func NewFunctionalTraceObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) *FunctionalTraceObserver {
	return &FunctionalTraceObserver{id: id, handler: handler}
}

func (f *FunctionalTraceObserver) OnTraceEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

func (f *FunctionalTraceObserver) ObserverID() string { return f.id }
