// Package prof wraps the runtime profilers behind a single session object
// so commands can start and stop them as one unit.
package prof

import (
	"errors"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Options names the profile artifacts to produce. An empty path disables
// the corresponding profiler.
type Options struct {
	CPUPath   string
	MemPath   string
	TracePath string
}

// Session owns the profiler state of one command invocation. Stop must be
// called to flush and close the artifacts.
type Session struct {
	cpu     *os.File
	runtime *os.File
	memPath string
	stopped bool
}

// Start enables the requested profilers. On error every profiler that was
// already started is stopped again, so the caller holds either a full
// session or none.
func Start(opts Options) (*Session, error) {
	s := &Session{memPath: opts.MemPath}

	if opts.CPUPath != "" {
		f, err := os.Create(opts.CPUPath)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, err
		}
		s.cpu = f
	}

	if opts.TracePath != "" {
		f, err := os.Create(opts.TracePath)
		if err != nil {
			s.abort()
			return nil, err
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			s.abort()
			return nil, err
		}
		s.runtime = f
	}

	return s, nil
}

// abort unwinds a partially started session without producing artifacts.
func (s *Session) abort() {
	s.memPath = ""
	_ = s.Stop()
}

// Stop halts the active profilers, writes the heap profile if one was
// requested, and closes the files. Safe to call more than once.
func (s *Session) Stop() error {
	if s == nil || s.stopped {
		return nil
	}
	s.stopped = true

	var errs []error
	if s.runtime != nil {
		trace.Stop()
		if err := s.runtime.Close(); err != nil {
			errs = append(errs, err)
		}
		s.runtime = nil
	}
	if s.cpu != nil {
		pprof.StopCPUProfile()
		if err := s.cpu.Close(); err != nil {
			errs = append(errs, err)
		}
		s.cpu = nil
	}
	if s.memPath != "" {
		if err := writeHeap(s.memPath); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// writeHeap captures a heap profile after a forced GC so the numbers
// reflect live objects rather than garbage.
func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
