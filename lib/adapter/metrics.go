package adapter

import (
	"fmt"
	"strings"

	"github.com/VictoriaMetrics/metrics"
)

// countOp bumps the per-operation/status counter. Counters are exposed via
// the metrics package's default registry (metrics.WritePrometheus).
func countOp(op string, status Status) {
	name := fmt.Sprintf(`docbench_ops_total{op=%q,status=%q}`, op, strings.ToLower(status.String()))
	metrics.GetOrCreateCounter(name).Inc()
}
