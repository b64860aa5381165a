package worker

import (
	"fmt"

	"github.com/cuemby/vigil/pkg/log"
)

// Supervisor owns every worker replica loop for the daemon lifetime
type Supervisor struct {
	workers []Worker
	loops   []*Loop
}

// NewSupervisor creates a supervisor over the given workers
func NewSupervisor(workers ...Worker) *Supervisor {
	return &Supervisor{workers: workers}
}

// Start launches Replicas() loops for every worker
func (s *Supervisor) Start() {
	logger := log.WithComponent("supervisor")
	for _, w := range s.workers {
		replicas := w.Replicas()
		if replicas < 1 {
			replicas = 1
		}
		for i := 0; i < replicas; i++ {
			loop := NewLoop(w)
			loop.Start()
			s.loops = append(s.loops, loop)
		}
		logger.Info().
			Str("worker", w.Name()).
			Int("replicas", replicas).
			Msg("Worker replicas started")
	}
}

// Stop stops every loop and waits for in-flight cycles to drain
func (s *Supervisor) Stop() {
	for _, loop := range s.loops {
		loop.Stop()
	}
	s.loops = nil
	logger := log.WithComponent("supervisor")
	logger.Info().Msg("All workers stopped")
}

// Worker returns the registered worker with the given name
func (s *Supervisor) Worker(name string) (Worker, error) {
	for _, w := range s.workers {
		if w.Name() == name {
			return w, nil
		}
	}
	return nil, fmt.Errorf("unknown worker %q", name)
}

// Names lists the registered worker names
func (s *Supervisor) Names() []string {
	names := make([]string, 0, len(s.workers))
	for _, w := range s.workers {
		names = append(names, w.Name())
	}
	return names
}
