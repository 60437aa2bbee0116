// Package prof profiles simulated DMA workloads.
//
// The package is conditionally compiled using the "profile" build tag:
//
//	go run -tags profile ./examples/sim-memcpy -profile-dir /tmp/prof
//
// Without the tag every function is a no-op, so profiling hooks can stay in
// the example programs at no cost.
//
// # Sessions
//
// A [Session] covers one program run. [Start] begins CPU profiling into
// Config.Dir and enables block and mutex sampling; [Session.Stop] ends CPU
// profiling and writes the requested snapshot profiles next to it:
//
//	s, err := prof.Start(prof.Config{
//	    Dir:       "/tmp/prof",
//	    CPU:       true,
//	    Snapshots: []prof.Profile{prof.ProfileHeap, prof.ProfileMutex},
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Stop()
//
// Only one session may be active at a time; a second [Start] returns
// [ErrActive].
//
// # Labels
//
// [Do] runs a workload step under a pprof "step" label, so samples taken
// while the engine programs channels or the simulation moves data can be
// attributed to the step that caused them:
//
//	prof.Do(ctx, "polled copy", func(ctx context.Context) { ... })
package prof
