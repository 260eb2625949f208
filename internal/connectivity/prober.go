package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"satchel/internal/config"
	"satchel/internal/logging"
	"satchel/internal/storage"
)

// Prober polls the remote health probe on a fixed interval and edge-detects
// reachability transitions. The first probe after Start always notifies so
// subscribers learn the boot state; after that only flips are pushed.
type Prober struct {
	tester   storage.ConnectionTester
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	subs subscribers

	mu      sync.Mutex
	online  bool
	known   bool
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ Observer = (*Prober)(nil)

// NewProber builds a prober over the remote connection tester using the
// configured probe cadence.
func NewProber(cfg *config.Config, tester storage.ConnectionTester, logger *slog.Logger) *Prober {
	interval := time.Duration(cfg.Connectivity.ProbeInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := time.Duration(cfg.Connectivity.ProbeTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{
		tester:   tester,
		interval: interval,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "connectivity"),
	}
}

// Start begins background probing.
func (p *Prober) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("connectivity prober already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.wg.Add(1)
	p.mu.Unlock()

	go p.loop(runCtx)
	return nil
}

// Stop terminates probing and waits for the loop to exit.
func (p *Prober) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

// Online reports the most recent probe verdict.
func (p *Prober) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// Subscribe registers fn for reachability transitions.
func (p *Prober) Subscribe(fn func(online bool)) (cancel func()) {
	return p.subs.add(fn)
}

func (p *Prober) loop(ctx context.Context) {
	defer p.wg.Done()

	p.probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.tester.TestConnection(probeCtx)
	cancel()
	if ctx.Err() != nil {
		// Shutdown interrupted the probe; that is not a reachability verdict.
		return
	}
	online := err == nil

	p.mu.Lock()
	changed := !p.known || p.online != online
	p.known = true
	p.online = online
	p.mu.Unlock()
	if !changed {
		return
	}

	if online {
		p.logger.Info("remote reachable",
			logging.String(logging.FieldEventType, "connectivity_online"))
	} else {
		p.logger.Info("remote unreachable, writes will queue locally",
			logging.String(logging.FieldEventType, "connectivity_offline"),
			logging.Error(err))
	}
	p.subs.notify(online)
}
