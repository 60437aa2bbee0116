//go:build profile

package prof

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync"
)

// active guards the single running session.
var (
	activeMu sync.Mutex
	active   *Session
)

// Session is a running profiling session.
type Session struct {
	cfg     Config
	cpu     *os.File
	stopped bool
	files   []string
}

// Enabled reports whether the package was built with profiling support.
func Enabled() bool {
	return true
}

// Start begins a profiling session. It returns ErrActive if another
// session is running.
func Start(cfg Config) (*Session, error) {
	activeMu.Lock()
	defer activeMu.Unlock()

	if active != nil {
		return nil, ErrActive
	}
	for _, p := range cfg.Snapshots {
		if p == ProfileCPU || pprof.Lookup(string(p)) == nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidProfile, p)
		}
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	s := &Session{cfg: cfg}
	if cfg.CPU {
		path := s.path(ProfileCPU)
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, err
		}
		s.cpu = f
		s.files = append(s.files, path)
	}
	runtime.SetBlockProfileRate(cfg.BlockRate)
	runtime.SetMutexProfileFraction(cfg.MutexFraction)

	active = s
	return s, nil
}

func (s *Session) path(p Profile) string {
	return filepath.Join(s.cfg.Dir, string(p)+".prof")
}

// Stop ends CPU profiling and writes the configured snapshots. It returns
// the first error encountered; every snapshot is attempted regardless.
func (s *Session) Stop() error {
	activeMu.Lock()
	defer activeMu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	s.stopped = true
	active = nil

	var first error
	if s.cpu != nil {
		pprof.StopCPUProfile()
		if err := s.cpu.Close(); err != nil {
			first = err
		}
	}
	for _, p := range s.cfg.Snapshots {
		path := s.path(p)
		if err := writeSnapshot(p, path); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		s.files = append(s.files, path)
	}
	runtime.SetBlockProfileRate(0)
	runtime.SetMutexProfileFraction(0)
	return first
}

// Files returns the profile files written so far.
func (s *Session) Files() []string {
	return append([]string(nil), s.files...)
}

func writeSnapshot(p Profile, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return pprof.Lookup(string(p)).WriteTo(f, 0)
}

// Do runs fn with a pprof "step" label attached to ctx.
func Do(ctx context.Context, step string, fn func(context.Context)) {
	pprof.Do(ctx, pprof.Labels("step", step), fn)
}
