//go:build windows

package dynobj

// processCPUTimes has no portable stand-in on Windows without cgo or
// a third-party library not present in the example pack; stats/trace
// CPU deltas degrade to zero rather than failing the call.
func processCPUTimes() (userSeconds, sysSeconds float64) {
	return 0, 0
}
