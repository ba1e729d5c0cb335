package timing

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"
)

// Scheduler is the part of an akita engine the timer needs. It is
// implemented by sim.SerialEngine.
type Scheduler interface {
	Schedule(e sim.Event)
	CurrentTime() sim.VTimeInSec
}

// Hook is called on every frame interrupt. It returns false when the frame
// could not be handled and should be retried shortly.
type Hook func() bool

// Stats counts timer activity.
type Stats struct {
	// Frames is the number of interrupts on which the hook succeeded.
	Frames uint64
	// Retries is the number of interrupts on which the hook asked to be
	// called again.
	Retries uint64
	// Cycles is the CPU cycle of the last interrupt.
	Cycles uint64
}

// frameEvent is one frame interrupt. Pruned is the number of cycles the
// event has drifted from the frame period because of retries.
type frameEvent struct {
	*sim.EventBase
	cycle  uint64
	pruned uint64
}

// FrameTimer raises the frame interrupt every CyclesPerFrame cycles. When
// the hook asks for a retry the interrupt is raised again RetryCycles
// later, and the following successful frame is shortened by the time spent
// retrying so the interrupt stays on the frame period.
type FrameTimer struct {
	engine Scheduler
	freq   sim.Freq
	config Config
	hook   Hook
	stats  Stats
	log    logr.Logger
}

// TimerOption is a functional option for configuring the FrameTimer.
type TimerOption func(*FrameTimer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logr.Logger) TimerOption {
	return func(t *FrameTimer) {
		t.log = log
	}
}

// NewFrameTimer creates a timer on engine. The config must be valid.
func NewFrameTimer(engine Scheduler, config Config, hook Hook, opts ...TimerOption) *FrameTimer {
	t := &FrameTimer{
		engine: engine,
		freq:   sim.Freq(config.FrequencyHz),
		config: config,
		hook:   hook,
		log:    logr.Discard(),
	}

	for _, opt := range opts {
		opt(t)
	}

	t.log = t.log.WithName("timer")

	return t
}

// Start schedules the first interrupt one frame period from now.
func (t *FrameTimer) Start() {
	t.schedule(t.engine.CurrentTime(), 0, t.config.CyclesPerFrame, 0)
}

// Handle implements sim.Handler.
func (t *FrameTimer) Handle(e sim.Event) error {
	evt, ok := e.(*frameEvent)
	if !ok {
		return fmt.Errorf("timer cannot handle event of type %T", e)
	}

	t.stats.Cycles = evt.cycle

	interval := t.config.CyclesPerFrame
	pruned := evt.pruned % interval

	var next uint64
	if t.hook() {
		t.stats.Frames++
		next = interval - pruned
		pruned = 0
	} else {
		t.stats.Retries++
		next = t.config.RetryCycles
		pruned += next
		t.log.V(2).Info("frame deferred", "cycle", evt.cycle, "retry_in", next)
	}

	if t.config.Frames > 0 && evt.cycle+next >= (t.config.Frames+1)*interval {
		t.log.V(1).Info("timer stopped",
			"frames", t.stats.Frames,
			"retries", t.stats.Retries,
			"cycle", evt.cycle)
		return nil
	}

	t.schedule(evt.Time(), evt.cycle, next, pruned)

	return nil
}

// Stats returns the timer counters.
func (t *FrameTimer) Stats() Stats {
	return t.stats
}

func (t *FrameTimer) schedule(now sim.VTimeInSec, cycle, delay, pruned uint64) {
	evt := &frameEvent{
		EventBase: sim.NewEventBase(t.freq.NCyclesLater(int(delay), now), t),
		cycle:     cycle + delay,
		pruned:    pruned,
	}
	t.engine.Schedule(evt)
}
