package connectivity

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell/pkg/clock"
	"github.com/agentstation/inkwell/pkg/constants"
	"github.com/agentstation/inkwell/pkg/logging"
	"github.com/agentstation/inkwell/pkg/schedule"
)

// Prober checks a URL on an interval and reports the result to a
// Monitor. Any HTTP response counts as online; a transport failure
// counts as offline.
type Prober struct {
	url     string
	client  *http.Client
	monitor *Monitor
	task    *schedule.Task
	logger  *zerolog.Logger
}

// ProberConfig configures a Prober.
type ProberConfig struct {
	URL      string
	Interval time.Duration
	Client   *http.Client
	Clock    clock.Clock
	Logger   *zerolog.Logger
}

// NewProber creates a Prober that feeds monitor.
func NewProber(monitor *Monitor, cfg ProberConfig) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = constants.DefaultProbeInterval
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: constants.ProbeTimeout}
	}
	p := &Prober{
		url:     cfg.URL,
		client:  cfg.Client,
		monitor: monitor,
		logger:  logging.Component(cfg.Logger, "prober"),
	}
	p.task = schedule.New("prober", cfg.Interval, func(ctx context.Context) error {
		p.Probe(ctx)
		return nil
	}, cfg.Clock, cfg.Logger)
	return p
}

// Probe performs one check and updates the monitor. It returns the
// observed state.
func (p *Prober) Probe(ctx context.Context) bool {
	online := p.check(ctx)
	if ctx.Err() != nil {
		// Cancelled probes say nothing about the network.
		return p.monitor.IsOnline()
	}
	p.monitor.Set(online)
	return online
}

func (p *Prober) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		p.logger.Error().Err(err).Str("url", p.url).Msg("Invalid probe URL")
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug().Err(err).Str("url", p.url).Msg("Probe failed")
		return false
	}
	_ = resp.Body.Close()
	return true
}

// Start probes once and then on every interval.
func (p *Prober) Start(ctx context.Context) error {
	p.Probe(ctx)
	return p.task.Start()
}

// Stop ends probing and waits for an in-flight probe.
func (p *Prober) Stop() {
	p.task.Stop()
}
