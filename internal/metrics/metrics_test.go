package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordUpdate(t *testing.T) {
	m := New()

	m.RecordUpdate("success", 0.2)
	m.RecordUpdate("success", 0.3)
	m.RecordUpdate("failure", 0.1)
	m.RecordUpdate("idle", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpdatesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpdatesTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpdatesTotal.WithLabelValues("idle")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.UpdateDuration))
}

func TestRecordImageLookup(t *testing.T) {
	m := New()

	m.RecordImageLookup("provider")
	m.RecordImageLookup("fallback")
	m.RecordImageLookup("fallback")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImageLookupsTotal.WithLabelValues("provider")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ImageLookupsTotal.WithLabelValues("fallback")))
}

func TestSetLocationDegraded(t *testing.T) {
	m := New()

	m.SetLocationDegraded(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LocationDegraded))
	m.SetLocationDegraded(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LocationDegraded))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordUpdate("success", 1)
		m.RecordImageLookup("provider")
		m.SetLocationDegraded(true)
	})
}

func TestRegistryGather(t *testing.T) {
	m := New()
	m.RecordImageLookup("provider")

	families, err := m.Registry.Gather()
	assert.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["opposite_clock_image_lookups_total"])
	assert.True(t, names["go_goroutines"])
}
