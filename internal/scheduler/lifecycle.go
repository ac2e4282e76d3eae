package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// drainTimeout bounds how long Stop waits for in-flight runs to finish.
const drainTimeout = 10 * time.Second

// Start loads the store, recovers from any dangling run left by a crashed
// previous process, runs startup catch-up, and arms every enabled job's
// trigger. Idempotent: a second call is a no-op.
func (s *Service) Start() error {
	var loadErr error
	s.lane.do(func() {
		if s.started {
			return
		}
		env, warnings := loadEnvelope(s.store, s.defaultTimezone)
		for _, w := range warnings {
			s.log.Warn().Msg(w)
		}
		now := s.clock.Now()
		for _, job := range env.Jobs {
			s.jobs[job.ID] = job
		}
		s.recoverDanglingRunsLocked(now)
		s.startupCatchUpLocked(now)
		s.persistLocked(now)

		s.started = true
		s.stopping = false
		go s.dispatchLoop()
	})
	return loadErr
}

// recoverDanglingRunsLocked clears runningRunId left over from a process
// that exited mid-dispatch, records the failure, and repopulates
// nextRunAtMs when the schedule left it empty.
func (s *Service) recoverDanglingRunsLocked(now time.Time) {
	for id, job := range s.jobs {
		if job.State.RunningRunID == "" {
			continue
		}
		job.State.RunningRunID = ""
		job.State.RunningAtMs = 0
		job.State.LastStatus = "error"
		job.State.LastError = "previous process exited during run"
		job.State.ConsecutiveFailures++
		job.UpdatedAtMs = nowMs(now)

		if job.Enabled && job.State.NextRunAtMs == 0 {
			switch job.Schedule.Kind {
			case ScheduleAt:
				job.State.NextRunAtMs = job.Schedule.AtMs
			case ScheduleEvery:
				job.State.NextRunAtMs = computeEvery(job.Schedule.AnchorMs, job.Schedule.EveryMs, nowMs(now), false)
			case ScheduleCron:
				// left at 0; armCronLocked (via startup catch-up) populates it.
			}
		}
		s.jobs[id] = job
	}
}

// Stop marks the service stopping, cancels every armed trigger, and waits
// up to drainTimeout for any in-flight dispatch to finish before returning.
// Jobs that are mid-dispatch are left with runningRunId set; the dispatcher
// itself finalizes them when the executor call returns.
func (s *Service) Stop() {
	s.lane.do(func() {
		if !s.started || s.stopping {
			return
		}
		s.stopping = true
		for id := range s.handles {
			s.cancelTriggerLocked(id)
		}
		s.queue = nil
		s.queuedIDs = make(map[string]bool)
	})

	deadline := time.Now().Add(drainTimeout)
	for time.Now().Before(deadline) {
		var active int
		s.lane.do(func() { active = s.active })
		if active == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	close(s.wake)
	s.pers.close()
	s.lane.close()
}

// ServiceStatus is the snapshot returned by Status.
type ServiceStatus struct {
	Enabled     bool
	TotalJobs   int
	EnabledJobs int
	RunningJobs int
	QueuedJobs  int
	NextRunAtMs int64
}

// Status summarizes the jobs matching the optional tenant filter.
func (s *Service) Status(tenant *int64) ServiceStatus {
	var st ServiceStatus
	s.lane.do(func() {
		st.Enabled = s.started && !s.stopping
		var next int64
		for _, job := range s.jobs {
			if tenant != nil && job.Tenant != *tenant {
				continue
			}
			st.TotalJobs++
			if job.Enabled {
				st.EnabledJobs++
			}
			if job.State.RunningRunID != "" {
				st.RunningJobs++
			}
			if s.queuedIDs[job.ID] {
				st.QueuedJobs++
			}
			if job.State.NextRunAtMs > 0 && (next == 0 || job.State.NextRunAtMs < next) {
				next = job.State.NextRunAtMs
			}
		}
		st.NextRunAtMs = next
	})
	return st
}

// List returns a sorted, deep-copied snapshot of jobs matching the optional
// tenant filter, taken inside the serializer lane.
func (s *Service) List(tenant *int64) []Job {
	var out []Job
	s.lane.do(func() {
		out = sortedSnapshot(s.jobs, tenant)
	})
	return out
}

// Get returns a deep copy of a single job, or false if absent.
func (s *Service) Get(id string) (Job, bool) {
	var out Job
	var ok bool
	s.lane.do(func() {
		j, found := s.jobs[id]
		if found {
			out, ok = j.Clone(), true
		}
	})
	return out, ok
}

// CreateInput is the validated argument shape for Create.
type CreateInput struct {
	Tenant   int64
	Name     string
	Prompt   string
	Enabled  *bool
	Schedule Schedule
	Policy   *Policy
}

// Create validates, normalizes, persists, and arms a new job.
func (s *Service) Create(in CreateInput) (Job, error) {
	var out Job
	var outErr error
	s.lane.do(func() {
		prompt := strings.TrimSpace(in.Prompt)
		if prompt == "" {
			outErr = fmt.Errorf("%w: task content empty", ErrInvalidInput)
			return
		}

		count := 0
		for _, j := range s.jobs {
			if j.Tenant == in.Tenant {
				count++
			}
		}
		if count >= s.maxJobsPerChat {
			outErr = fmt.Errorf("%w: tenant %d already has %d jobs", ErrQuotaExceeded, in.Tenant, count)
			return
		}

		schedule, err := validateSchedule(in.Schedule, s.defaultTimezone)
		if err != nil {
			outErr = err
			return
		}

		policy := s.defaultPolicy
		if in.Policy != nil {
			policy = *in.Policy
		}
		policy = clampPolicy(policy, s.defaultPolicy)

		enabled := true
		if in.Enabled != nil {
			enabled = *in.Enabled
		}

		id, err := generateID(func(candidate string) bool {
			_, exists := s.jobs[candidate]
			return exists
		})
		if err != nil {
			outErr = fmt.Errorf("%w: %v", ErrStoreIO, err)
			return
		}

		now := s.clock.Now()
		job := Job{
			ID:          id,
			Tenant:      in.Tenant,
			BotName:     s.botName,
			Name:        normalizeName(in.Name, prompt, id),
			Prompt:      prompt,
			Enabled:     enabled,
			CreatedAtMs: nowMs(now),
			UpdatedAtMs: nowMs(now),
			Schedule:    schedule,
			Policy:      policy,
		}
		if enabled {
			next, err := computeInitialNext(schedule, now, s.minRefireGap)
			if err != nil {
				outErr = err
				return
			}
			job.State.NextRunAtMs = next
		}

		s.jobs[id] = job
		if enabled {
			s.armTriggerLocked(id)
		}
		s.persistLocked(now)
		out = job.Clone()
	})
	return out, outErr
}

// Remove deletes a job and cancels its trigger. Returns false if absent.
func (s *Service) Remove(id string) bool {
	var removed bool
	s.lane.do(func() {
		if _, ok := s.jobs[id]; !ok {
			return
		}
		s.cancelTriggerLocked(id)
		delete(s.jobs, id)
		delete(s.queuedIDs, id)
		filtered := s.queue[:0]
		for _, req := range s.queue {
			if req.jobID != id {
				filtered = append(filtered, req)
			}
		}
		s.queue = filtered
		s.persistLocked(s.clock.Now())
		removed = true
	})
	return removed
}

// SetEnabled flips a job's enabled flag, re-arming or cancelling its
// trigger, and replenishing nextRunAtMs from the schedule on re-enable if
// it had been cleared.
func (s *Service) SetEnabled(id string, enabled bool) (Job, bool) {
	var out Job
	var ok bool
	s.lane.do(func() {
		job, found := s.jobs[id]
		if !found {
			return
		}
		now := s.clock.Now()
		job.Enabled = enabled
		job.UpdatedAtMs = nowMs(now)
		if enabled {
			if job.State.NextRunAtMs == 0 {
				next, err := computeInitialNext(job.Schedule, now, s.minRefireGap)
				if err == nil {
					job.State.NextRunAtMs = next
				}
			}
		} else {
			job.State.NextRunAtMs = 0
		}
		s.jobs[id] = job
		if enabled {
			s.armTriggerLocked(id)
		} else {
			s.cancelTriggerLocked(id)
		}
		s.persistLocked(now)
		out, ok = job.Clone(), true
	})
	return out, ok
}

// Rename updates a job's display name after normalization.
func (s *Service) Rename(id, name string) (Job, bool) {
	var out Job
	var ok bool
	s.lane.do(func() {
		job, found := s.jobs[id]
		if !found {
			return
		}
		job.Name = normalizeName(name, job.Prompt, job.ID)
		job.UpdatedAtMs = nowMs(s.clock.Now())
		s.jobs[id] = job
		s.persistLocked(s.clock.Now())
		out, ok = job.Clone(), true
	})
	return out, ok
}

// RunNow enqueues a forced run if the job exists. Force bypasses the
// disabled gate in the dispatcher but never the at-most-one-in-flight
// invariant.
func (s *Service) RunNow(id string) bool {
	var queued bool
	s.lane.do(func() {
		if _, ok := s.jobs[id]; !ok {
			return
		}
		before := len(s.queue)
		s.enqueueRunLocked(id, "manual", nowMs(s.clock.Now()), true)
		queued = len(s.queue) > before
	})
	return queued
}
