//go:build !profile

package prof

import "context"

// Session is a no-op profiling session when built without the "profile"
// tag.
type Session struct {
	stopped bool
}

// Enabled reports whether the package was built with profiling support.
func Enabled() bool {
	return false
}

// Start returns an inert session when built without the "profile" tag.
func Start(Config) (*Session, error) {
	return &Session{}, nil
}

// Stop returns ErrStopped on a second call and nil otherwise.
func (s *Session) Stop() error {
	if s.stopped {
		return ErrStopped
	}
	s.stopped = true
	return nil
}

// Files always returns nil when built without the "profile" tag.
func (s *Session) Files() []string {
	return nil
}

// Do calls fn with ctx.
func Do(ctx context.Context, _ string, fn func(context.Context)) {
	fn(ctx)
}
