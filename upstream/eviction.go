package upstream

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/getsentry/relay-go/infrastructure/logging"
)

// Evictor runs the periodic eviction sweep of spec.md §4.6 ("Eviction")
// against both caches on a cron schedule. robfig/cron/v3 is already a
// teacher dependency, declared in go.mod but never wired into any teacher
// file — this is its intended use: a scheduled sweep rather than a bare
// time.Ticker.
type Evictor struct {
	cron    *cron.Cron
	project *ProjectCache
	relay   *RelayCache
	log     *logging.Logger
}

// NewEvictor schedules project and relay eviction sweeps at spec (a cron
// expression, e.g. "@every 1m").
func NewEvictor(spec string, project *ProjectCache, relay *RelayCache, log *logging.Logger) (*Evictor, error) {
	e := &Evictor{
		cron:    cron.New(),
		project: project,
		relay:   relay,
		log:     log,
	}
	if _, err := e.cron.AddFunc(spec, e.sweep); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Evictor) sweep() {
	if e.project != nil {
		e.project.Evict()
	}
	if e.relay != nil {
		e.relay.Evict()
	}
	if e.log != nil {
		e.log.Info(context.Background(), "upstream: eviction sweep completed", nil)
	}
}

// Start begins the cron scheduler's own goroutine.
func (e *Evictor) Start() { e.cron.Start() }

// Stop cancels scheduled sweeps and waits for any running sweep to finish.
func (e *Evictor) Stop() { <-e.cron.Stop().Done() }
