// Package profile implements the append-only profiling event sink
// spec.md §6 describes as an external collaborator: the evaluator only
// ever appends events to it, never reads them back to make decisions.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// Event is one recorded profiling event, serialized to the output file
// in insertion order.
type Event struct {
	Tag         string    `json:"tag"`
	Value       int64     `json:"value,omitempty"`
	StringValue string    `json:"stringValue,omitempty"`
	Iteration   int       `json:"iteration,omitempty"`
	Key         string    `json:"key,omitempty"`
	At          time.Time `json:"at"`
}

// EventSink is the interface the evaluator drives (spec.md §6). All
// methods must be safe for concurrent use, since profile events are
// emitted from parallel worker goroutines (e.g. EstimateJoinSize inside
// a Parallel* scan).
type EventSink interface {
	SetOutputFile(path string) error
	StartTimer()
	StopTimer()
	MakeTimeEvent(tag string)
	MakeConfigRecord(key, value string)
	MakeQuantityEvent(tag string, value int64, iteration int)
	MakeRecursiveCountEvent(relation string, total, duplicates int64)
	MakeNonRecursiveCountEvent(relation string, total, duplicates int64)
	Events() []Event
}

// registry backs a Sink's named counters/timers with go-metrics, giving
// callers Metrics-style introspection (mirrors
// open-policy-agent-opa/v1/metrics/metrics.go) in addition to the
// ordered Event log the RAM engine writes to its output file.
type sink struct {
	mu       sync.Mutex
	registry gometrics.Registry
	timer    gometrics.Timer
	started  time.Time
	events   []Event
	out      *os.File
}

// New returns a metrics-backed EventSink.
func New() EventSink {
	r := gometrics.NewRegistry()
	return &sink{
		registry: r,
		timer:    gometrics.GetOrRegisterTimer("run", r),
	}
}

func (s *sink) SetOutputFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out != nil {
		s.out.Close()
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("profile: open output file: %w", err)
	}
	s.out = f
	return nil
}

func (s *sink) StartTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = time.Now()
}

func (s *sink) StopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		return
	}
	s.timer.Update(time.Since(s.started))
	s.started = time.Time{}
}

func (s *sink) record(e Event) {
	e.At = time.Now()
	s.mu.Lock()
	s.events = append(s.events, e)
	out := s.out
	s.mu.Unlock()
	if out != nil {
		if b, err := json.Marshal(e); err == nil {
			out.Write(append(b, '\n'))
		}
	}
}

func (s *sink) MakeTimeEvent(tag string) {
	s.record(Event{Tag: tag, Value: s.timer.Sum()})
}

func (s *sink) MakeConfigRecord(key, value string) {
	s.record(Event{Tag: "@config", Key: key, StringValue: value})
}

func (s *sink) MakeQuantityEvent(tag string, value int64, iteration int) {
	gometrics.GetOrRegisterCounter(tag, s.registry).Inc(value)
	s.record(Event{Tag: tag, Value: value, Iteration: iteration})
}

func (s *sink) MakeRecursiveCountEvent(relation string, total, duplicates int64) {
	s.record(Event{Tag: "@recursive-estimate-join-size;" + relation, Value: total - duplicates})
}

func (s *sink) MakeNonRecursiveCountEvent(relation string, total, duplicates int64) {
	s.record(Event{Tag: "@non-recursive-estimate-join-size;" + relation, Value: total - duplicates})
}

func (s *sink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Metrics tracks the core counters spec.md §6 says the engine emits
// alongside the append-only Event log: relationCount, ruleCount, a
// per-rule frequencies table indexed by loop iteration, and per-relation
// @relation-reads;<name> counts. Grounded on Souffle's
// Engine::frequencies/Engine::reads and its one-time ruleCount/
// relationCount visit (original_source/src/interpreter/Engine.cpp:
// 467-472, 488, 1155-1162, 1534). The scalar counters are set once at
// startup; frequencies/reads grow throughout a run and are read with
// atomic fetch-add so concurrent Query/existence-check evaluation never
// races updating them.
type Metrics struct {
	relationCount int64
	ruleCount     int64

	mu          sync.Mutex
	frequencies map[string][]*int64
	reads       map[string]*int64
}

// NewMetrics returns an empty Metrics ready to accumulate one run's
// counters.
func NewMetrics() *Metrics {
	return &Metrics{
		frequencies: make(map[string][]*int64),
		reads:       make(map[string]*int64),
	}
}

// SetCounts records the relation and rule counts computed once at
// Engine setup (spec.md §6 "relationCount, ruleCount").
func (m *Metrics) SetCounts(relationCount, ruleCount int) {
	atomic.StoreInt64(&m.relationCount, int64(relationCount))
	atomic.StoreInt64(&m.ruleCount, int64(ruleCount))
}

// IncFrequency increments rule's frequency counter for iteration. rule
// empty is a no-op, mirroring Souffle skipping untagged TupleOperation
// nodes.
func (m *Metrics) IncFrequency(rule string, iteration int) {
	if rule == "" {
		return
	}
	m.mu.Lock()
	freq := m.frequencies[rule]
	for len(freq) <= iteration {
		var zero int64
		freq = append(freq, &zero)
	}
	m.frequencies[rule] = freq
	counter := freq[iteration]
	m.mu.Unlock()
	atomic.AddInt64(counter, 1)
}

// IncRelationReads increments relation's existence-check read counter.
func (m *Metrics) IncRelationReads(relation string) {
	m.mu.Lock()
	counter, ok := m.reads[relation]
	if !ok {
		var zero int64
		counter = &zero
		m.reads[relation] = counter
	}
	m.mu.Unlock()
	atomic.AddInt64(counter, 1)
}

// Emit writes every accumulated counter to sink: relationCount and
// ruleCount as config records, then one @frequency-rule;<rule> quantity
// event per iteration a rule ran and one @relation-reads;<name>
// quantity event per relation read.
func (m *Metrics) Emit(sink EventSink) {
	sink.MakeConfigRecord("relationCount", strconv.FormatInt(atomic.LoadInt64(&m.relationCount), 10))
	sink.MakeConfigRecord("ruleCount", strconv.FormatInt(atomic.LoadInt64(&m.ruleCount), 10))

	m.mu.Lock()
	defer m.mu.Unlock()
	for rule, freq := range m.frequencies {
		for iteration, counter := range freq {
			sink.MakeQuantityEvent("@frequency-rule;"+rule, atomic.LoadInt64(counter), iteration)
		}
	}
	for relation, counter := range m.reads {
		sink.MakeQuantityEvent("@relation-reads;"+relation, atomic.LoadInt64(counter), 0)
	}
}

// noop discards every event; used when profiling is disabled (spec.md
// §6 "Process-wide ... in profile mode, profiling is enabled").
type noop struct{}

// NoOp returns an EventSink that records nothing and costs nothing.
func NoOp() EventSink { return noop{} }

func (noop) SetOutputFile(string) error                                 { return nil }
func (noop) StartTimer()                                                {}
func (noop) StopTimer()                                                 {}
func (noop) MakeTimeEvent(string)                                       {}
func (noop) MakeConfigRecord(string, string)                            {}
func (noop) MakeQuantityEvent(string, int64, int)                       {}
func (noop) MakeRecursiveCountEvent(string, int64, int64)                {}
func (noop) MakeNonRecursiveCountEvent(string, int64, int64)             {}
func (noop) Events() []Event                                            { return nil }
