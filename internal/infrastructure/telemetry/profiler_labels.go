package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// MaxLabelValueLength caps profiling label values
const MaxLabelValueLength = 128

// highCardinalityLabels never become profiling labels
var highCardinalityLabels = map[string]bool{
	"request_id": true,
	"run_id":     true,
	"trace_id":   true,
	"span_id":    true,
	"token":      true,
}

// WithProfilingLabels runs fn with Pyroscope labels attached to its samples.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// SyncLabels returns the profiling labels for a sync run of one family
func SyncLabels(family string) map[string]string {
	return map[string]string{"operation": "sync", "family": family}
}

// sanitizeLabels drops empty and high cardinality labels, truncates long values
// and returns key/value pairs sorted by key.
func sanitizeLabels(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k, v := range labels {
		k = strings.TrimSpace(k)
		if k == "" || v == "" || highCardinalityLabels[strings.ToLower(k)] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		v := labels[k]
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		pairs = append(pairs, k, v)
	}
	return pairs
}
