package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)

	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.020)
	}
	assert.InDelta(t, 20.0, m.FrameTime(), 1e-9)
}

func TestMetricsFPS(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 101; i++ {
		m.Update(0.010)
	}
	fps, _ := m.Frame()
	assert.Equal(t, float64(100), fps)
}

func TestObjectIDsAreUnique(t *testing.T) {
	a := NewObjectID()
	b := NewObjectID()
	assert.True(t, a.Valid())
	assert.NotEqual(t, a, b)
	assert.False(t, InvalidObjectID.Valid())
}
