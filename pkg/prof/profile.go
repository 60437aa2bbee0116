package prof

import "errors"

// Profiling errors.
var (
	// ErrActive indicates a session is already running.
	ErrActive = errors.New("profiling session already active")

	// ErrStopped indicates a session was stopped twice.
	ErrStopped = errors.New("profiling session stopped")

	// ErrInvalidProfile indicates an unknown snapshot profile, or the CPU
	// profile requested as a snapshot.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Profile names a pprof profile.
type Profile string

// Profile names.
const (
	ProfileCPU       Profile = "cpu"
	ProfileHeap      Profile = "heap"
	ProfileAllocs    Profile = "allocs"
	ProfileGoroutine Profile = "goroutine"
	ProfileBlock     Profile = "block"
	ProfileMutex     Profile = "mutex"
)

// String returns the profile name.
func (p Profile) String() string {
	return string(p)
}

// Config selects what a session records.
type Config struct {
	// Dir receives one <profile>.prof file per recorded profile.
	Dir string

	// CPU records a CPU profile for the lifetime of the session.
	CPU bool

	// Snapshots are written when the session stops.
	Snapshots []Profile

	// BlockRate and MutexFraction are applied for the session and restored
	// to zero on Stop. Zero leaves sampling off.
	BlockRate     int
	MutexFraction int
}
