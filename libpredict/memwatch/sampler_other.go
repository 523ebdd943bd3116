//go:build !linux

package memwatch

import (
	"runtime"
)

type runtimeSampler struct{}

// OSSampler returns a Sampler that approximates resident memory with the Go runtime's own
// accounting.  Total RAM is unknown on this platform, so the alarm is never raised.
func OSSampler() Sampler {
	return runtimeSampler{}
}

func (runtimeSampler) ResidentBytes() (uint64, error) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Sys, nil
}

func (runtimeSampler) TotalBytes() (uint64, error) {
	return 0, nil
}
