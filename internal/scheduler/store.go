package scheduler

import (
	"os"
	"sort"
	"time"

	"schedulerd/internal/jobstore"
)

// StoreVersion is the envelope format version written to disk.
const StoreVersion = 1

// envelope is the on-disk wire shape: {version, updatedAtMs, jobs}.
type envelope struct {
	Version     int   `json:"version"`
	UpdatedAtMs int64 `json:"updatedAtMs"`
	Jobs        []Job `json:"jobs"`
}

// loadEnvelope reads the store file, failing open (empty envelope) on a
// missing or corrupt file, and skipping individual records that don't pass
// validation rather than aborting the whole load.
func loadEnvelope(file *jobstore.File, defaultTimezone string) (envelope, []string) {
	var env envelope
	var warnings []string

	if err := file.Load(&env); err != nil {
		if !os.IsNotExist(err) {
			warnings = append(warnings, "store unparseable, starting empty: "+err.Error())
		}
		return envelope{Version: StoreVersion}, warnings
	}
	if env.Version <= 0 {
		env.Version = StoreVersion
	}

	kept := make([]Job, 0, len(env.Jobs))
	for _, j := range env.Jobs {
		if _, err := validateSchedule(j.Schedule, defaultTimezone); err != nil {
			warnings = append(warnings, "dropping job "+j.ID+" on load: "+err.Error())
			continue
		}
		kept = append(kept, j)
	}
	env.Jobs = kept
	return env, warnings
}

// persister drains snapshot writes one at a time on its own goroutine so
// disk I/O never blocks the serializer lane, while the order snapshots are
// enqueued in (always from within the serializer) is the order they land
// on disk.
type persister struct {
	file  *jobstore.File
	queue chan envelope
	quit  chan struct{}
	onErr func(error)
}

func newPersister(file *jobstore.File, onErr func(error)) *persister {
	if onErr == nil {
		onErr = func(error) {}
	}
	p := &persister{
		file:  file,
		queue: make(chan envelope, 64),
		quit:  make(chan struct{}),
		onErr: onErr,
	}
	go p.run()
	return p
}

func (p *persister) run() {
	for {
		select {
		case env := <-p.queue:
			if err := p.file.Save(env); err != nil {
				p.onErr(err)
			}
		case <-p.quit:
			return
		}
	}
}

func (p *persister) enqueue(jobs []Job, now time.Time) {
	snapshot := make([]Job, len(jobs))
	copy(snapshot, jobs)
	env := envelope{Version: StoreVersion, UpdatedAtMs: nowMs(now), Jobs: snapshot}
	select {
	case p.queue <- env:
	case <-p.quit:
	}
}

func (p *persister) close() { close(p.quit) }

// sortedSnapshot returns a deep-copied, publicly-ordered view: enabled
// first, then by nextRunAtMs ascending (0 treated as +infinity), then by
// createdAtMs ascending.
func sortedSnapshot(jobs map[string]Job, tenant *int64) []Job {
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if tenant != nil && j.Tenant != *tenant {
			continue
		}
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(i, k int) bool {
		a, b := out[i], out[k]
		if a.Enabled != b.Enabled {
			return a.Enabled
		}
		an, bn := a.State.NextRunAtMs, b.State.NextRunAtMs
		if an == 0 {
			an = 1<<63 - 1
		}
		if bn == 0 {
			bn = 1<<63 - 1
		}
		if an != bn {
			return an < bn
		}
		return a.CreatedAtMs < b.CreatedAtMs
	})
	return out
}
