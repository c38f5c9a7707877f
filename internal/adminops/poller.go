package adminops

import (
	"context"
	"log/slog"
	"time"
)

// Poller re-probes backend health on a fixed cadence. Manual refresh is
// just another CheckHealth call; the two never conflict because the
// workflow serializes its own state.
type Poller struct {
	wf       *Workflow
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller creates a health poller with the given cadence.
func NewPoller(wf *Workflow, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{wf: wf, interval: interval, logger: logger}
}

// Run probes immediately, then on every tick until ctx is done.
// Call in a goroutine.
func (p *Poller) Run(ctx context.Context) {
	probe := func() {
		status := p.wf.CheckHealth(ctx)
		p.logger.Info("health probe", "status", status)
	}

	probe()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
