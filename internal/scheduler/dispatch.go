package scheduler

import (
	"context"
	"fmt"
	"time"
)

// runRequest is one entry in the FIFO run queue. The queue dedups per job
// via queuedIDs, not per request — at most one outstanding request per job
// at a time, collapsing redundant triggers.
type runRequest struct {
	jobID         string
	source        string
	scheduledAtMs int64
	force         bool
}

// enqueueRunLocked is a no-op if the job is already queued or already
// running; force only bypasses the enabled gate downstream in the
// dispatcher, never the at-most-one-in-flight invariant.
func (s *Service) enqueueRunLocked(jobID, source string, scheduledAtMs int64, force bool) {
	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	if s.queuedIDs[jobID] || job.State.RunningRunID != "" {
		return
	}
	s.queuedIDs[jobID] = true
	s.queue = append(s.queue, runRequest{jobID: jobID, source: source, scheduledAtMs: scheduledAtMs, force: force})
	s.wakeDispatcher()
}

func (s *Service) popRequest() (runRequest, bool) {
	var req runRequest
	var ok bool
	s.lane.do(func() {
		if len(s.queue) == 0 {
			return
		}
		req = s.queue[0]
		s.queue = s.queue[1:]
		delete(s.queuedIDs, req.jobID)
		ok = true
	})
	return req, ok
}

// dispatchLoop drains the run queue one request at a time; dispatches are
// serial globally, which is acceptable because each run is bounded by
// maxRunMs and the executor itself may be concurrent across jobs.
func (s *Service) dispatchLoop() {
	for {
		select {
		case <-s.wake:
			return
		case <-s.dispatch:
		}
		for {
			req, ok := s.popRequest()
			if !ok {
				break
			}
			s.runOne(req)
		}
	}
}

type claimResult struct {
	job     Job
	runID   string
	aborted bool
}

func (s *Service) runOne(req runRequest) {
	claim := s.claimLocked(req)
	if claim.aborted {
		return
	}

	startedAt := s.clock.Now()
	ok, errMsg := s.invokeExecutor(claim.job, claim.runID, req.source, req.scheduledAtMs)
	finishedAt := s.clock.Now()

	s.finishLocked(req, claim, ok, errMsg, startedAt, finishedAt)
}

// claimLocked is dispatch step 1: re-read, gate, and mark running.
func (s *Service) claimLocked(req runRequest) claimResult {
	var out claimResult
	s.lane.do(func() {
		job, ok := s.jobs[req.jobID]
		if !ok {
			out.aborted = true
			return
		}
		if !job.Enabled && !req.force {
			out.aborted = true
			return
		}
		if job.State.RunningRunID != "" {
			out.aborted = true
			return
		}
		runID, err := generateID(func(id string) bool { return false })
		if err != nil {
			out.aborted = true
			return
		}
		now := s.clock.Now()
		job.State.RunningRunID = runID
		job.State.RunningAtMs = nowMs(now)
		job.UpdatedAtMs = nowMs(now)
		s.jobs[req.jobID] = job
		s.active++
		s.persistLocked(now)

		out.job = job.Clone()
		out.runID = runID
	})
	return out
}

// invokeExecutor is dispatch step 2: race the executor against a timeout
// of max(5s, maxRunMs), outside the serializer lane.
func (s *Service) invokeExecutor(job Job, runID, source string, scheduledAtMs int64) (bool, string) {
	timeout := s.maxRunMs
	if timeout < 5*time.Second {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	exec := s.executor()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{false, fmt.Errorf("executor panic: %v", r)}
			}
		}()
		if exec == nil {
			done <- result{false, fmt.Errorf("no executor configured")}
			return
		}
		ok, err := exec(ctx, RunContext{Job: job, RunID: runID, Source: source, ScheduledAtMs: scheduledAtMs})
		done <- result{ok, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return false, r.err.Error()
		}
		return r.ok, ""
	case <-ctx.Done():
		return false, fmt.Sprintf("run timeout (>%s)", fmtDuration(timeout))
	}
}

// finishLocked is dispatch steps 3-5: re-check ownership, record outcome,
// reschedule per schedule kind, persist, publish, decrement active count.
func (s *Service) finishLocked(req runRequest, claim claimResult, ok bool, errMsg string, startedAt, finishedAt time.Time) {
	var event RunEvent
	var publish bool

	s.lane.do(func() {
		job, present := s.jobs[req.jobID]
		if !present || job.State.RunningRunID != claim.runID {
			s.active--
			return // a concurrent remove (or another run) already cleared us.
		}

		job.State.RunningRunID = ""
		job.State.RunningAtMs = 0
		job.State.LastRunAtMs = nowMs(finishedAt)
		job.State.LastDurationMs = finishedAt.Sub(startedAt).Milliseconds()
		job.UpdatedAtMs = nowMs(finishedAt)

		if ok {
			job.State.LastStatus = "ok"
			job.State.LastError = ""
			job.State.ConsecutiveFailures = 0
		} else {
			job.State.LastStatus = "error"
			job.State.LastError = errMsg
			job.State.ConsecutiveFailures++
		}

		s.rescheduleLocked(&job, ok, finishedAt)

		s.jobs[req.jobID] = job
		s.persistLocked(finishedAt)
		s.active--

		event = RunEvent{
			JobID:      job.ID,
			Tenant:     job.Tenant,
			RunID:      claim.runID,
			Source:     req.source,
			Status:     job.State.LastStatus,
			DurationMs: job.State.LastDurationMs,
		}
		publish = true

		if job.shouldDeleteAfterRun(ok) {
			s.cancelTriggerLocked(req.jobID)
			delete(s.jobs, req.jobID)
			s.persistLocked(finishedAt)
		} else {
			s.armTriggerLocked(req.jobID)
		}
	})

	if publish {
		s.publishEvent(event)
	}
}

func (j Job) shouldDeleteAfterRun(ok bool) bool {
	return j.Schedule.Kind == ScheduleAt && ok && j.Policy.DeleteAfterRun
}

// rescheduleLocked implements the per-variant post-run rescheduling table.
func (s *Service) rescheduleLocked(job *Job, ok bool, finishedAt time.Time) {
	switch job.Schedule.Kind {
	case ScheduleAt:
		if ok {
			if !job.Policy.DeleteAfterRun {
				job.Enabled = false
				job.State.NextRunAtMs = 0
			}
			return
		}
		if job.State.ConsecutiveFailures <= job.Policy.RetryMax {
			backoff := backoffFor(job.Policy.RetryBackoffMs, job.State.ConsecutiveFailures)
			job.State.NextRunAtMs = nowMs(finishedAt) + backoff
		} else {
			job.Enabled = false
			job.State.NextRunAtMs = 0
			job.State.LastStatus = "error"
		}
	case ScheduleEvery:
		job.State.NextRunAtMs = computeEvery(job.Schedule.AnchorMs, job.Schedule.EveryMs, nowMs(finishedAt), true)
	case ScheduleCron:
		// Cron's nextRunAtMs and re-arm are handled by onCronTick before the
		// run was even enqueued; nothing to recompute here.
	}
}

// backoffFor implements retryBackoffMs * 2^(failures-1) for failures >= 1.
func backoffFor(baseMs int64, failures int) int64 {
	if failures < 1 {
		failures = 1
	}
	backoff := baseMs
	for i := 1; i < failures; i++ {
		backoff *= 2
	}
	return backoff
}

func (s *Service) publishEvent(event RunEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("jobId", event.JobID).Msg("notifier publish failed")
	}
}
