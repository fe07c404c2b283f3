//go:build !windows

package dynobj

import "syscall"

// processCPUTimes returns the process's total user/system CPU time in
// seconds, the Go-idiomatic stand-in for qi::os::cputime() — an OS
// abstraction spec.md treats as out of scope (it sits alongside the
// transport/thread-pool collaborators in §1). No third-party process
// CPU-timing library exists in the example pack, so this uses the
// POSIX rusage syscall directly.
func processCPUTimes() (userSeconds, sysSeconds float64) {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0, 0
	}
	return timevalSeconds(ru.Utime), timevalSeconds(ru.Stime)
}
