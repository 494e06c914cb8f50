package metrics

import (
	"maps"
	"time"

	obserrors "github.com/upjv/prospection-ui/internal/observability/errors"
	"github.com/upjv/prospection-ui/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// AuthMetric captures one session lifecycle operation for metric emission.
type AuthMetric struct {
	// Operation is the controller operation: initialize, login, logout, refresh, revalidate.
	Operation string
	// Transition is the resulting session state: authenticated, anonymous or unchanged.
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitAuthTransition emits standardised session lifecycle metrics.
func EmitAuthTransition(sink statsd.Sink, in AuthMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"operation":  in.Operation,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("auth.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("auth.duration", in.Duration, CloneTags(tags))
	}
}

// EmitConsecutiveFailures reports the controller's current failure streak.
func EmitConsecutiveFailures(sink statsd.Sink, n int) {
	if sink == nil {
		return
	}
	sink.Gauge("auth.consecutive_failures", float64(n), nil)
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := maps.Clone(src)
	delete(out, "")
	return out
}
