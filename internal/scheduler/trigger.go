package scheduler

import (
	"time"
)

// armTriggerLocked arms whatever trigger job.Schedule.Kind calls for,
// cancelling any existing one first. Must run inside the serializer lane.
func (s *Service) armTriggerLocked(jobID string) {
	s.cancelTriggerLocked(jobID)
	job, ok := s.jobs[jobID]
	if !ok || !job.Enabled {
		return
	}
	switch job.Schedule.Kind {
	case ScheduleAt, ScheduleEvery:
		s.armAbsoluteLocked(jobID)
	case ScheduleCron:
		s.armCronLocked(jobID)
	}
}

func (s *Service) armAbsoluteLocked(jobID string) {
	job := s.jobs[jobID]
	if job.State.NextRunAtMs <= 0 {
		return
	}
	target := msToTime(job.State.NextRunAtMs)
	expected := job.State.NextRunAtMs
	t := s.clock.ArmAt(target, func() { s.onTimerFire(jobID, expected) })
	s.handles[jobID] = &handle{timer: t, kind: "timer"}
}

// onTimerFire runs on the clock's own goroutine; it only ever enters the
// serializer, never touches shared state directly.
func (s *Service) onTimerFire(jobID string, expectedMs int64) {
	s.lane.enter(func() {
		job, ok := s.jobs[jobID]
		if !ok || job.State.NextRunAtMs != expectedMs {
			return // stale fire: job gone or rescheduled since arming.
		}
		now := s.clock.Now()
		if msToTime(expectedMs).Sub(now) > time.Second {
			// Spurious early fire; re-arm rather than trust it.
			s.armTriggerLocked(jobID)
			return
		}
		source := "timer"
		if job.Schedule.Kind == ScheduleAt && job.State.LastStatus == "error" && job.State.ConsecutiveFailures > 0 {
			source = "retry"
		}
		s.enqueueRunLocked(jobID, source, expectedMs, false)
	})
}

func (s *Service) armCronLocked(jobID string) {
	job := s.jobs[jobID]
	next, err := computeCronNext(job.Schedule, s.clock.Now(), s.minRefireGap)
	if err != nil {
		job.Enabled = false
		job.State.LastStatus = "error"
		job.State.LastError = err.Error()
		job.State.NextRunAtMs = 0
		job.UpdatedAtMs = nowMs(s.clock.Now())
		s.jobs[jobID] = job
		s.persistLocked(s.clock.Now())
		return
	}
	job.State.NextRunAtMs = nowMs(next)
	s.jobs[jobID] = job

	expected := job.State.NextRunAtMs
	t := s.clock.ArmAt(next, func() { s.onCronTick(jobID, expected) })
	s.handles[jobID] = &handle{timer: t, kind: "cron"}
}

func (s *Service) onCronTick(jobID string, expectedMs int64) {
	s.lane.enter(func() {
		job, ok := s.jobs[jobID]
		if !ok || !job.Enabled || job.State.NextRunAtMs != expectedMs {
			return
		}
		firedAt := expectedMs
		s.armCronLocked(jobID) // records the new nextRunAtMs and re-arms.
		s.persistLocked(s.clock.Now())
		s.enqueueRunLocked(jobID, "cron", firedAt, false)
	})
}

func (s *Service) cancelTriggerLocked(jobID string) {
	if h, ok := s.handles[jobID]; ok {
		h.timer.Stop()
		delete(s.handles, jobID)
	}
}

// startupCatchUpLocked runs once, right after recovery, for every loaded
// job: stale one-shots past the lateness window are dropped, due Every
// jobs fire once immediately, cron jobs simply re-arm, and everything else
// is armed normally.
func (s *Service) startupCatchUpLocked(now time.Time) {
	nowMillis := nowMs(now)
	for id, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		switch job.Schedule.Kind {
		case ScheduleAt:
			if job.Schedule.AtMs <= nowMillis {
				lateness := nowMillis - job.Schedule.AtMs
				maxLateness := job.Policy.MaxLatenessMs
				if lateness > maxLateness {
					job.Enabled = false
					job.State.LastStatus = "missed"
					job.State.NextRunAtMs = 0
					job.UpdatedAtMs = nowMillis
					s.jobs[id] = job
					continue
				}
				s.armTriggerLocked(id)
				s.enqueueRunLocked(id, "startup-catchup", job.Schedule.AtMs, false)
				continue
			}
			s.armTriggerLocked(id)
		case ScheduleEvery:
			if job.State.NextRunAtMs <= nowMillis {
				job.State.NextRunAtMs = nowMillis
				s.jobs[id] = job
				s.armTriggerLocked(id)
				s.enqueueRunLocked(id, "startup-catchup", nowMillis, false)
				continue
			}
			s.armTriggerLocked(id)
		case ScheduleCron:
			s.armCronLocked(id)
		}
	}
}
