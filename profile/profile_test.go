package profile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuantityEventRecorded(t *testing.T) {
	s := New()
	s.MakeQuantityEvent("relationCount", 3, 0)
	events := s.Events()
	require.Len(t, events, 1)
	require.Equal(t, "relationCount", events[0].Tag)
	require.Equal(t, int64(3), events[0].Value)
}

func TestNoOpDiscardsEverything(t *testing.T) {
	s := NoOp()
	s.MakeQuantityEvent("x", 1, 0)
	s.MakeTimeEvent("y")
	require.Empty(t, s.Events())
}

func TestJoinSizeEvents(t *testing.T) {
	s := New()
	s.MakeRecursiveCountEvent("TC", 10, 3)
	s.MakeNonRecursiveCountEvent("Edge", 5, 0)
	events := s.Events()
	require.Len(t, events, 2)
	require.Equal(t, "@recursive-estimate-join-size;TC", events[0].Tag)
	require.Equal(t, int64(7), events[0].Value)
}

func TestMakeConfigRecordStoresValue(t *testing.T) {
	s := New()
	s.MakeConfigRecord("run_id", "abc-123")
	events := s.Events()
	require.Len(t, events, 1)
	require.Equal(t, "@config", events[0].Tag)
	require.Equal(t, "run_id", events[0].Key)
	require.Equal(t, "abc-123", events[0].StringValue)
}

func TestMetricsEmitsRelationAndRuleCounts(t *testing.T) {
	m := NewMetrics()
	m.SetCounts(4, 2)

	s := New()
	m.Emit(s)

	events := s.Events()
	require.Len(t, events, 2)
	byKey := map[string]string{}
	for _, e := range events {
		byKey[e.Key] = e.StringValue
	}
	require.Equal(t, "4", byKey["relationCount"])
	require.Equal(t, "2", byKey["ruleCount"])
}

func TestMetricsFrequenciesTrackedPerIteration(t *testing.T) {
	m := NewMetrics()
	m.IncFrequency("join.rule", 0)
	m.IncFrequency("join.rule", 0)
	m.IncFrequency("join.rule", 1)
	m.IncFrequency("", 0) // empty label is a no-op

	s := New()
	m.Emit(s)

	var iter0, iter1 int64
	for _, e := range s.Events() {
		if e.Tag != "@frequency-rule;join.rule" {
			continue
		}
		switch e.Iteration {
		case 0:
			iter0 = e.Value
		case 1:
			iter1 = e.Value
		}
	}
	require.Equal(t, int64(2), iter0)
	require.Equal(t, int64(1), iter1)
}

func TestMetricsRelationReadsCounted(t *testing.T) {
	m := NewMetrics()
	m.IncRelationReads("Edge")
	m.IncRelationReads("Edge")
	m.IncRelationReads("TC")

	s := New()
	m.Emit(s)

	reads := map[string]int64{}
	for _, e := range s.Events() {
		switch e.Tag {
		case "@relation-reads;Edge":
			reads["Edge"] = e.Value
		case "@relation-reads;TC":
			reads["TC"] = e.Value
		}
	}
	require.Equal(t, int64(2), reads["Edge"])
	require.Equal(t, int64(1), reads["TC"])
}
