package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
)

type recordedMetric struct {
	kind  string
	name  string
	value float64
	tags  map[string]string
}

type recordingSink struct {
	mu      sync.Mutex
	metrics []recordedMetric
}

func (s *recordingSink) Count(name string, value int64, tags map[string]string) {
	s.record("count", name, float64(value), tags)
}

func (s *recordingSink) Gauge(name string, value float64, tags map[string]string) {
	s.record("gauge", name, value, tags)
}

func (s *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	s.record("timing", name, float64(value), tags)
}

func (s *recordingSink) record(kind, name string, value float64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, recordedMetric{kind: kind, name: name, value: value, tags: tags})
}

func TestEmitAuthTransition(t *testing.T) {
	sink := &recordingSink{}

	EmitAuthTransition(sink, AuthMetric{
		Operation:  "refresh",
		Transition: "anonymous",
		Result:     ResultError,
		Duration:   20 * time.Millisecond,
		Err:        domainauth.ErrSessionExpired,
	})

	require.Len(t, sink.metrics, 2)
	count := sink.metrics[0]
	assert.Equal(t, "count", count.kind)
	assert.Equal(t, "auth.transition", count.name)
	assert.Equal(t, map[string]string{
		"operation":   "refresh",
		"transition":  "anonymous",
		"result":      ResultError,
		"error_class": "session_expired",
	}, count.tags)

	timing := sink.metrics[1]
	assert.Equal(t, "auth.duration", timing.name)
	assert.Equal(t, count.tags, timing.tags)
	timing.tags["mutated"] = "x"
	assert.NotContains(t, count.tags, "mutated")
}

func TestEmitAuthTransitionSuccessSkipsErrorClass(t *testing.T) {
	sink := &recordingSink{}

	EmitAuthTransition(sink, AuthMetric{Operation: "login", Transition: "authenticated", Result: ResultSuccess})

	require.Len(t, sink.metrics, 1)
	assert.NotContains(t, sink.metrics[0].tags, "error_class")
}

func TestEmitNilSink(t *testing.T) {
	EmitAuthTransition(nil, AuthMetric{Operation: "logout"})
	EmitConsecutiveFailures(nil, 2)
}

func TestEmitConsecutiveFailures(t *testing.T) {
	sink := &recordingSink{}
	EmitConsecutiveFailures(sink, 2)
	require.Len(t, sink.metrics, 1)
	assert.Equal(t, recordedMetric{kind: "gauge", name: "auth.consecutive_failures", value: 2}, sink.metrics[0])
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	out := CloneTags(map[string]string{"a": "1", "": "x"})
	assert.Equal(t, map[string]string{"a": "1"}, out)
}
