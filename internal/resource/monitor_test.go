package resource

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeapMonitorThresholds(t *testing.T) {
	m := NewHeapMonitor(DeviceConditions{})

	// Heap far above any realistic test allocation: no pressure.
	m.SoftLimit = math.MaxUint64 - 1
	m.HardLimit = math.MaxUint64
	assert.Equal(t, PressureNormal, m.MemoryPressure())

	// Soft limit below current heap, hard limit above: low pressure.
	m.SoftLimit = 1
	m.HardLimit = math.MaxUint64
	assert.Equal(t, PressureLow, m.MemoryPressure())

	// Both limits below current heap: critical.
	m.SoftLimit = 1
	m.HardLimit = 1
	assert.Equal(t, PressureCritical, m.MemoryPressure())
}

func TestHeapMonitorConditions(t *testing.T) {
	cond := DeviceConditions{OnWifi: true, LowBattery: true}
	m := NewHeapMonitor(cond)
	assert.Equal(t, cond, m.Conditions())
}

func TestHeapMonitorCleanupDoesNotPanic(t *testing.T) {
	m := NewHeapMonitor(DeviceConditions{})
	m.RequestCleanup()
}

func TestStaticMonitor(t *testing.T) {
	m := &StaticMonitor{
		Level:  PressureLow,
		Device: DeviceConditions{OnWifi: true},
	}

	assert.Equal(t, PressureLow, m.MemoryPressure())
	assert.True(t, m.Conditions().OnWifi)

	m.RequestCleanup()
	m.RequestCleanup()
	assert.Equal(t, 2, m.CleanupCnt)
}

func TestPressureLevelString(t *testing.T) {
	assert.Equal(t, "normal", PressureNormal.String())
	assert.Equal(t, "low", PressureLow.String())
	assert.Equal(t, "critical", PressureCritical.String())
}
