package worker

import (
	"context"
	"time"

	"github.com/cuemby/vigil/pkg/log"
	"github.com/cuemby/vigil/pkg/metrics"
)

// Loop drives one Worker replica on its interval until stopped
type Loop struct {
	worker Worker
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewLoop creates a loop for one worker replica
func NewLoop(w Worker) *Loop {
	return &Loop{
		worker: w,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the loop in its own goroutine
func (l *Loop) Start() {
	go l.run()
}

// Stop signals the loop and waits for the in-flight cycle to finish
func (l *Loop) Stop() {
	close(l.stopCh)
	<-l.doneCh
}

func (l *Loop) run() {
	defer close(l.doneCh)

	logger := log.WithWorker(l.worker.Name())
	logger.Info().Dur("interval", l.worker.Interval()).Msg("Worker started")

	ticker := time.NewTicker(l.worker.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			logger.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			l.cycle()
		}
	}
}

func (l *Loop) cycle() {
	name := l.worker.Name()
	logger := log.WithWorker(name)

	timer := metrics.NewTimer()
	claimed, err := l.worker.RunOnce(context.Background())
	timer.ObserveCycle(name)
	metrics.WorkerBatchSize.WithLabelValues(name).Observe(float64(claimed))

	if err != nil {
		metrics.WorkerErrorsTotal.WithLabelValues(name).Inc()
		logger.Error().Err(err).
			Int("batch_size", claimed).
			Int64("elapsed_ms", timer.Elapsed().Milliseconds()).
			Msg("Worker cycle failed")
		return
	}
	if claimed > 0 {
		logger.Debug().
			Int("batch_size", claimed).
			Int64("elapsed_ms", timer.Elapsed().Milliseconds()).
			Msg("Worker cycle completed")
	}
}
