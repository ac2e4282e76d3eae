// Package scheduler implements the persistent per-tenant job scheduler:
// job normalization, the single-lane serializer, timer/cron trigger
// sources, the run queue and dispatcher, and the lifecycle controller.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"schedulerd/internal/clock"
	"schedulerd/internal/jobstore"
)

// RunContext is the read-only snapshot handed to the injected Executor.
type RunContext struct {
	Job           Job
	RunID         string
	Source        string // timer | cron | manual | startup-catchup | retry
	ScheduledAtMs int64
}

// Executor is the external collaborator that actually performs a run. Any
// panic or error it produces is treated as {ok:false, error:<message>}; the
// scheduler carries no knowledge of what the executor does.
type Executor func(ctx context.Context, rc RunContext) (ok bool, err error)

// Notifier receives best-effort, fire-and-forget run lifecycle events. It
// never participates in scheduling decisions and its errors are swallowed.
type Notifier interface {
	Publish(ctx context.Context, event RunEvent) error
}

// RunEvent is published after a run's state has been persisted.
type RunEvent struct {
	JobID      string
	Tenant     int64
	RunID      string
	Source     string
	Status     string // ok | error
	DurationMs int64
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, RunEvent) error { return nil }

// Options configures a new Service.
type Options struct {
	BotName         string
	StorePath       string
	DefaultTimezone string
	MaxJobsPerChat  int
	MaxRunMs        int64
	DefaultPolicy   Policy
	MinRefireGap    time.Duration

	Clock    clock.Clock
	Log      zerolog.Logger
	Executor Executor
	Notifier Notifier
}

type handle struct {
	timer *clock.Timer
	kind  string // timer | cron
}

// Service is the scheduler. All of its job-map/handle-table/queue state is
// mutated only from inside the serializer lane. The executor is also read
// and swapped through the lane; the notifier is set once in New and never
// changed.
type Service struct {
	botName         string
	defaultTimezone string
	maxJobsPerChat  int
	maxRunMs        time.Duration
	defaultPolicy   Policy
	minRefireGap    time.Duration

	clock clock.Clock
	log   zerolog.Logger
	store *jobstore.File
	pers  *persister

	lane *serializer

	jobs    map[string]Job
	handles map[string]*handle

	queue     []runRequest
	queuedIDs map[string]bool
	wake      chan struct{}
	dispatch  chan struct{}

	started  bool
	stopping bool
	active   int

	execMu   struct{ v Executor }
	notifier Notifier
}

// New constructs a Service. It does not load the store or start dispatching
// — call Start for that.
func New(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.NewReal()
	}
	if opts.Notifier == nil {
		opts.Notifier = noopNotifier{}
	}
	if opts.MaxRunMs <= 0 {
		opts.MaxRunMs = 10 * 60 * 1000
	}
	if opts.MaxJobsPerChat <= 0 {
		opts.MaxJobsPerChat = 20
	}
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = "Local"
	}

	s := &Service{
		botName:         opts.BotName,
		defaultTimezone: opts.DefaultTimezone,
		maxJobsPerChat:  opts.MaxJobsPerChat,
		maxRunMs:        time.Duration(opts.MaxRunMs) * time.Millisecond,
		defaultPolicy:   opts.DefaultPolicy,
		minRefireGap:    opts.MinRefireGap,
		clock:           opts.Clock,
		log:             opts.Log.With().Str("component", "scheduler").Str("bot", opts.BotName).Logger(),
		store:           jobstore.New(opts.StorePath),
		lane:            newSerializer(),
		jobs:            make(map[string]Job),
		handles:         make(map[string]*handle),
		queuedIDs:       make(map[string]bool),
		dispatch:        make(chan struct{}, 1),
		wake:            make(chan struct{}),
		notifier:        opts.Notifier,
	}
	s.execMu.v = opts.Executor
	s.pers = newPersister(s.store, func(err error) {
		s.log.Error().Err(err).Msg("persist store failed")
	})
	return s
}

// SetExecutor swaps the injected executor. Safe to call at any time,
// including before Start.
func (s *Service) SetExecutor(fn Executor) {
	s.lane.do(func() {
		s.execMu.v = fn
	})
}

func (s *Service) executor() Executor {
	var fn Executor
	s.lane.do(func() { fn = s.execMu.v })
	return fn
}

// IsEnabled reports the service-level kill switch. The scheduler itself has
// no notion of disabled-at-the-service-level beyond Start having been
// called; callers layer a config-driven enabled flag in front of Start.
func (s *Service) IsEnabled() bool {
	var started bool
	s.lane.do(func() { started = s.started && !s.stopping })
	return started
}

// GetDefaultTimezone returns the service's configured default timezone.
func (s *Service) GetDefaultTimezone() string { return s.defaultTimezone }

// SetDefaultPolicy updates the policy new jobs fall back to when none is
// supplied at creation time. Existing jobs keep whatever policy they were
// created with; this never touches a running schedule.
func (s *Service) SetDefaultPolicy(p Policy) {
	s.lane.do(func() { s.defaultPolicy = p })
}

// SetMaxJobsPerChat updates the per-tenant job quota enforced on Create.
// Jobs already over the new, lower limit are left in place — the quota
// only gates future creates.
func (s *Service) SetMaxJobsPerChat(n int) {
	if n <= 0 {
		return
	}
	s.lane.do(func() { s.maxJobsPerChat = n })
}

func (s *Service) persistLocked(now time.Time) {
	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.pers.enqueue(jobs, now)
}

func (s *Service) wakeDispatcher() {
	select {
	case s.dispatch <- struct{}{}:
	default:
	}
}

func fmtDuration(d time.Duration) string {
	return fmt.Sprintf("%.0fs", d.Seconds())
}
