package adapter

import (
	"bytes"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
)

// The per-operation counters live in the default registry, which is what
// the workload driver exports via WritePrometheus at the end of a phase.
func TestCountOpReachableViaPrometheus(t *testing.T) {
	countOp("insert", StatusOK)
	countOp("read", StatusError)

	var buf bytes.Buffer
	metrics.WritePrometheus(&buf, false)

	assert.Contains(t, buf.String(), `docbench_ops_total{op="insert",status="ok"}`)
	assert.Contains(t, buf.String(), `docbench_ops_total{op="read",status="error"}`)
}
