package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	r.ImportCreated()
	r.ImportCreated()
	r.EnqueueFailed()
	r.RowsStaged(3, 1)
	r.Reenqueued(2)
	r.Materialized("done", 150*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.created))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.enqueueFailures))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.rowsStaged.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rowsStaged.WithLabelValues("false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.reenqueued))
	assert.Equal(t, 1, testutil.CollectAndCount(r.runDuration))
}

func TestNew_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.NoError(t, err)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ImportCreated()
		r.RowsStaged(1, 0)
		r.Materialized("error", time.Second)
	})
}
