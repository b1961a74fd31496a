package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Dispatcher fans one event out to the enabled notification channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

// TickCounter is the shared poll-tick counter. The scheduler is its only
// writer; the SNMP responder reads it.
type TickCounter interface {
	IncrementPollCount()
}

// Metric hooks, wired at startup. Kept as plain functions so this package
// does not depend on the metrics registry.
var (
	onEventFired   func(Event)
	onEventCleared func(Event)
	onTickComplete func(time.Duration)
)

// SetMetricHooks registers the functions invoked when an alert fires, when
// one clears, and when a poll tick completes.
func SetMetricHooks(fired, cleared func(Event), tickComplete func(time.Duration)) {
	onEventFired = fired
	onEventCleared = cleared
	onTickComplete = tickComplete
}

// Scheduler drives the monitor on a fixed interval on a dedicated goroutine.
// Ticks are strictly sequential: polling and dispatching run synchronously
// inside the loop, so a new tick cannot start while the previous one is
// still in flight (a slow tick makes the ticker drop intervals instead).
type Scheduler struct {
	monitor    *Monitor
	dispatcher Dispatcher
	counter    TickCounter
	interval   time.Duration
}

// NewScheduler creates a scheduler for the given monitor and dispatcher.
func NewScheduler(m *Monitor, d Dispatcher, counter TickCounter, interval time.Duration) *Scheduler {
	return &Scheduler{
		monitor:    m,
		dispatcher: d,
		counter:    counter,
		interval:   interval,
	}
}

// Run polls until the context is cancelled. The first poll happens
// immediately rather than one interval in.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().Dur("pollingInterval", s.interval).Msg("Starting health poll loop")

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			log.Info().Msg("Health poll loop stopped")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()

	events := s.monitor.Poll(ctx)
	for _, event := range events {
		s.dispatcher.Dispatch(ctx, event)

		switch event.Kind {
		case EventAlert:
			if onEventFired != nil {
				onEventFired(event)
			}
		case EventClear:
			if onEventCleared != nil {
				onEventCleared(event)
			}
		}
	}

	// Counted after the health checks so the exported value reflects
	// completed cycles.
	s.counter.IncrementPollCount()

	if onTickComplete != nil {
		onTickComplete(time.Since(start))
	}
}
