// Package resource reports device pressure to the scan scheduler. The
// scheduler only ever sees the PressureLevel enum, keeping the backoff
// policy independent of how pressure is measured.
package resource

import (
	"runtime"
	"runtime/debug"
)

// PressureLevel 内存压力等级
type PressureLevel int

const (
	PressureNormal PressureLevel = iota
	PressureLow
	PressureCritical
)

func (p PressureLevel) String() string {
	switch p {
	case PressureLow:
		return "low"
	case PressureCritical:
		return "critical"
	default:
		return "normal"
	}
}

// DeviceConditions reports the policy-relevant device state checked before
// a scan is allowed to start.
type DeviceConditions struct {
	OnWifi     bool
	LowBattery bool
}

// Monitor is consumed by the scheduler's backoff policy.
type Monitor interface {
	MemoryPressure() PressureLevel
	// RequestCleanup asks the runtime to shed memory. Called before pausing
	// on low pressure and before aborting on critical pressure.
	RequestCleanup()
	Conditions() DeviceConditions
}

// HeapMonitor derives pressure from live heap size against soft and hard
// limits. Device conditions are injected at construction since the process
// has no portable view of battery or network state.
type HeapMonitor struct {
	SoftLimit  uint64
	HardLimit  uint64
	conditions DeviceConditions
}

const (
	defaultSoftLimit = 256 << 20 // 256 MB
	defaultHardLimit = 512 << 20 // 512 MB
)

func NewHeapMonitor(conditions DeviceConditions) *HeapMonitor {
	return &HeapMonitor{
		SoftLimit:  defaultSoftLimit,
		HardLimit:  defaultHardLimit,
		conditions: conditions,
	}
}

func (m *HeapMonitor) MemoryPressure() PressureLevel {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	switch {
	case stats.HeapAlloc >= m.HardLimit:
		return PressureCritical
	case stats.HeapAlloc >= m.SoftLimit:
		return PressureLow
	default:
		return PressureNormal
	}
}

func (m *HeapMonitor) RequestCleanup() {
	debug.FreeOSMemory()
}

func (m *HeapMonitor) Conditions() DeviceConditions {
	return m.conditions
}

// StaticMonitor returns fixed values. Used in tests and as a no-pressure
// default when monitoring is disabled.
type StaticMonitor struct {
	Level      PressureLevel
	Device     DeviceConditions
	CleanupCnt int
}

func (m *StaticMonitor) MemoryPressure() PressureLevel {
	return m.Level
}

func (m *StaticMonitor) RequestCleanup() {
	m.CleanupCnt++
}

func (m *StaticMonitor) Conditions() DeviceConditions {
	return m.Device
}
