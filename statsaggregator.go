package dynobj

import (
	"time"

	"github.com/robfig/cron/v3"
)

// StatsAggregator periodically flushes a TraceSubject's accumulated
// per-method timing samples as rollup CloudEvents (one per method)
// instead of leaving them to pile up unbounded, grounded in the teacher's
// modules/scheduler use of cron.Cron for recurring background work.
type StatsAggregator struct {
	subject *TraceSubject
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewStatsAggregator wires subject to a cron schedule (standard cron
// expression, e.g. "* * * * *" for every minute) that calls
// subject.flushStats on each tick. The aggregator is not started
// until Start is called.
func NewStatsAggregator(subject *TraceSubject, schedule string) (*StatsAggregator, error) {
	c := cron.New()
	a := &StatsAggregator{subject: subject, cron: c}
	id, err := c.AddFunc(schedule, func() {
		subject.flushStats(time.Now())
	})
	if err != nil {
		return nil, err
	}
	a.entryID = id
	return a, nil
}

// Start begins the cron scheduler's background goroutine.
func (a *StatsAggregator) Start() { a.cron.Start() }

// Stop stops the cron scheduler and waits for any running job to
// finish, matching cron.Cron's own graceful-shutdown contract.
func (a *StatsAggregator) Stop() { <-a.cron.Stop().Done() }

// NextRun reports when the aggregator's flush job will next fire.
func (a *StatsAggregator) NextRun() time.Time {
	for _, e := range a.cron.Entries() {
		if e.ID == a.entryID {
			return e.Next
		}
	}
	return time.Time{}
}
