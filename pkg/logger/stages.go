package logger

import (
	"sync"
	"time"
)

// StageTimer records per-stage durations of a settlement run so the log
// stream shows where a slow cycle spent its time (decode, filter, derive,
// enrich, persist).
type StageTimer struct {
	logger    Logger
	run       string
	current   string
	started   time.Time
	runStart  time.Time
	durations map[string]time.Duration
	mutex     sync.Mutex
}

// NewStageTimer creates a timer for one settlement run.
func NewStageTimer(log Logger, run string) *StageTimer {
	if log == nil {
		log = GetGlobalLogger()
	}
	now := time.Now()
	return &StageTimer{
		logger:    log.WithComponent("stage_timer").WithField("run", run),
		run:       run,
		runStart:  now,
		durations: make(map[string]time.Duration),
	}
}

// Stage closes the previous stage, if any, and starts a new one.
func (s *StageTimer) Stage(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.closeCurrentLocked()
	s.current = name
	s.started = time.Now()
	s.logger.WithField("stage", name).Debug("Stage started")
}

// Finish closes the current stage and logs the per-stage breakdown.
func (s *StageTimer) Finish() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.closeCurrentLocked()

	fields := Fields{"total": time.Since(s.runStart).String()}
	for name, d := range s.durations {
		fields[name] = d.String()
	}
	s.logger.WithFields(fields).Info("Run completed")
}

// Durations returns a copy of the recorded stage durations.
func (s *StageTimer) Durations() map[string]time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make(map[string]time.Duration, len(s.durations))
	for name, d := range s.durations {
		out[name] = d
	}
	return out
}

func (s *StageTimer) closeCurrentLocked() {
	if s.current == "" {
		return
	}
	s.durations[s.current] += time.Since(s.started)
	s.current = ""
}
