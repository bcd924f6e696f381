package simulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/twin"
	"twinguard-lab/pkg/logger"
)

// SnapshotStore persists the per-tick aggregate state. Optional; a nil
// store disables persistence.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, state *models.SystemState) error
}

// MetricsRecorder receives the per-tick report for instrumentation
type MetricsRecorder interface {
	RecordTick(report *TickReport)
}

// TickReport is what one simulation step produced
type TickReport struct {
	State              *models.SystemState
	ExpiredThreats     []*models.ThreatSimulation
	NewPredictions     []*models.EnhancedPrediction
	NewRecommendations []*models.MitigationRecommendation
	Duration           time.Duration
}

// Step advances the simulation exactly one tick: metric drift under threat
// bias, risk re-scoring, prediction generation and expiry, recommendation
// generation, threat expiry, then the aggregate state. Usable directly for
// headless scenario runs.
func (c *Context) Step(now time.Time) *TickReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepLocked(now)
}

func (c *Context) stepLocked(now time.Time) *TickReport {
	started := time.Now()
	c.tick++

	c.graph.Tick(now, func(nodeID string) twin.Bias {
		n, ok := c.graph.Node(nodeID)
		if !ok {
			return twin.Bias{}
		}
		return c.threats.BiasFor(nodeID, n.Region)
	})

	c.risk.ScoreAll(c.graph, c.threats.RegionExposure)

	// A node that actually dropped offline confirms its forecast
	for _, id := range c.graph.NodeIDs() {
		if n, ok := c.graph.Node(id); ok && n.Status == models.StatusOffline {
			c.risk.MarkNodeFailed(id, now)
		}
	}

	report := &TickReport{}
	report.NewPredictions = c.risk.Generate(c.graph, now)
	c.risk.Sweep(now)
	report.NewRecommendations = c.mitigations.Advise(c.graph, c.risk.ActivePredictions(), now)
	report.ExpiredThreats = c.threats.ExpireDue(now)
	report.State = c.systemStateLocked(now)
	report.Duration = time.Since(started)

	if c.publisher != nil {
		for _, p := range report.NewPredictions {
			c.publisher.PublishPrediction(p)
		}
		for _, t := range report.ExpiredThreats {
			c.publisher.PublishThreatExpired(t)
		}
		c.publisher.PublishState(report.State)
	}
	return report
}

// Running reports whether the tick loop is active
func (c *Context) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Tick returns the current tick counter
func (c *Context) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

func (c *Context) setRunning(running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = running
}

// resetLocked rebuilds the graph from the configured seed and empties
// every engine. Caller holds the lock.
func (c *Context) resetLocked() error {
	g, err := twin.New(c.cfg.Twin.NodeCount, c.cfg.Twin.Seed)
	if err != nil {
		return fmt.Errorf("rebuilding twin graph: %w", err)
	}
	c.graph = g
	c.risk.Reset()
	c.threats.Reset()
	c.mitigations.Reset()
	c.tick = 0
	return nil
}

// Orchestrator drives the simulation loop: Stopped <-> Running, with reset
// allowed only from Stopped.
type Orchestrator struct {
	ctx      *Context
	interval time.Duration
	logger   *logger.Logger

	snapshots SnapshotStore
	metrics   MetricsRecorder

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOrchestrator wires the loop. snapshots and metrics may be nil.
func NewOrchestrator(simCtx *Context, interval time.Duration, snapshots SnapshotStore, metrics MetricsRecorder, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		ctx:       simCtx,
		interval:  interval,
		logger:    log.WithComponent("orchestrator"),
		snapshots: snapshots,
		metrics:   metrics,
	}
}

// Start launches the tick loop. Idempotent failure: starting a running
// simulation returns ErrAlreadyRunning and changes nothing.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		return models.ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.done = make(chan struct{})
	o.ctx.setRunning(true)

	go o.run(loopCtx, o.done)
	o.logger.Info().Dur("interval", o.interval).Msg("simulation started")
	return nil
}

// Stop halts the tick loop and waits for the in-flight tick to finish.
// Stopping a stopped simulation returns ErrNotRunning.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel == nil {
		return models.ErrNotRunning
	}
	o.cancel()
	<-o.done
	o.cancel = nil
	o.done = nil
	o.ctx.setRunning(false)
	o.logger.Info().Msg("simulation stopped")
	return nil
}

// Reset rebuilds the twin from its seed and clears all derived state.
// Only allowed while stopped.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		return models.ErrNotStopped
	}
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	if err := o.ctx.resetLocked(); err != nil {
		return err
	}
	o.logger.Info().Msg("simulation reset")
	return nil
}

// Running reports whether the loop is active
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancel != nil
}

func (o *Orchestrator) run(loopCtx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-loopCtx.Done():
			return
		case now := <-ticker.C:
			report := o.ctx.Step(now.UTC())
			if o.metrics != nil {
				o.metrics.RecordTick(report)
			}
			o.persist(report.State)
			o.logger.Debug().
				Uint64("tick", report.State.Tick).
				Float64("avg_risk", report.State.AverageRisk).
				Float64("max_risk", report.State.MaxRisk).
				Int("active_threats", report.State.ActiveThreats).
				Dur("took", report.Duration).
				Msg("tick")
		}
	}
}

// persist writes the snapshot with a short deadline; a slow or failed
// store never stalls the loop.
func (o *Orchestrator) persist(state *models.SystemState) {
	if o.snapshots == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.snapshots.SaveSnapshot(saveCtx, state); err != nil {
		o.logger.Warn().Err(err).Msg("snapshot save failed")
	}
}
