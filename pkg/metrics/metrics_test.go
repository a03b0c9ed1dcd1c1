package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")
	require.NotNil(t, m)

	m.SetPartitionSize(12, 34)
	assert.Equal(t, 12.0, testutil.ToFloat64(m.Cells))
	assert.Equal(t, 34.0, testutil.ToFloat64(m.BorderNodes))

	// registering the same collectors twice fails
	assert.Panics(t, func() { NewMetrics(reg, "test") })
}

func TestRecordQuery(t *testing.T) {
	testCases := []struct {
		name      string
		errs      []error
		wantOK    float64
		wantError float64
	}{
		{name: "successful queries", errs: []error{nil, nil}, wantOK: 2},
		{name: "failed query", errs: []error{errors.New("boom")}, wantError: 1},
		{name: "mixed", errs: []error{nil, errors.New("boom"), nil}, wantOK: 2, wantError: 1},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMetrics(prometheus.NewRegistry(), "test")
			for _, err := range tt.errs {
				m.RecordQuery(err, 3, 7)
			}
			assert.Equal(t, tt.wantOK, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(StatusOK)))
			assert.Equal(t, tt.wantError, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(StatusError)))
		})
	}
}

func TestObservePhase(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	m.ObservePhase(PhaseStartCell, 2*time.Millisecond, 10)
	m.ObservePhase(PhaseBorderNode, time.Millisecond, 4)
	m.ObservePhase(PhaseActiveCell, time.Millisecond, 8)

	assert.Equal(t, 3, testutil.CollectAndCount(m.QueryPhaseDuration))
	assert.Equal(t, 3, testutil.CollectAndCount(m.SettledNodes))
}

func TestTimer(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "test")

	timer := NewTimer(m.PreprocessingDuration, StepPartition)
	time.Sleep(5 * time.Millisecond)
	d := timer.ObserveDuration()

	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.PreprocessingDuration))
}
