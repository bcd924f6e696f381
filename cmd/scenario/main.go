package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"twinguard-lab/internal/config"
	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/simulation"
	"twinguard-lab/pkg/logger"
)

// Headless scenario runner. Steps the twin a fixed number of ticks with a
// scripted attack sequence and prints the resulting system state. Useful
// for demos and for eyeballing scoring changes without the API server.
func main() {
	var (
		configPath = flag.String("config", "", "path to config file (defaults to the standard search path)")
		ticks      = flag.Int("ticks", 60, "number of ticks to run")
		seed       = flag.Int64("seed", 0, "override the topology seed (0 keeps the configured seed)")
		nodes      = flag.Int("nodes", 0, "override the node count (0 keeps the configured count)")
		quiet      = flag.Bool("quiet", false, "suppress per-tick output")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *seed != 0 {
		cfg.Twin.Seed = *seed
	}
	if *nodes != 0 {
		cfg.Twin.NodeCount = *nodes
	}

	log := logger.NewDevelopment().WithComponent("scenario")
	logger.SetGlobal(log)

	sim, err := simulation.NewContext(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build the digital twin")
	}

	log.Info().
		Int("nodes", cfg.Twin.NodeCount).
		Int64("seed", cfg.Twin.Seed).
		Int("ticks", *ticks).
		Msg("scenario starting")

	now := time.Now().UTC()
	for tick := 1; tick <= *ticks; tick++ {
		runScriptedEvents(sim, tick, log)

		report := sim.Step(now)
		now = now.Add(cfg.Simulation.TickInterval)

		if !*quiet {
			log.Info().
				Int("tick", tick).
				Float64("avg_risk", report.State.AverageRisk).
				Float64("max_risk", report.State.MaxRisk).
				Int("critical", report.State.StatusCounts[models.StatusCritical]).
				Int("offline", report.State.StatusCounts[models.StatusOffline]).
				Int("active_predictions", report.State.ActivePredictions).
				Msg("tick complete")
		}
	}

	printSummary(sim)
}

// runScriptedEvents injects the canned attack sequence at fixed ticks.
func runScriptedEvents(sim *simulation.Context, tick int, log *logger.Logger) {
	switch tick {
	case 5:
		target := pickTarget(sim)
		if target == "" {
			return
		}
		if _, err := sim.InjectCyberAttack(target, models.CyberSubtypeMalware, 0.8, 30*time.Minute); err != nil {
			log.Warn().Err(err).Msg("scripted cyber attack failed")
		} else {
			log.Info().Str("target", target).Msg("scripted cyber attack injected")
		}
	case 20:
		target := pickTarget(sim)
		if target == "" {
			return
		}
		result, err := sim.TriggerCascade(target, 0.9)
		if err != nil {
			log.Warn().Err(err).Msg("scripted cascade failed")
			return
		}
		log.Info().
			Str("origin", target).
			Int("affected", len(result.AffectedNodes)).
			Float64("impact", result.ImpactScore).
			Msg("scripted cascade triggered")
	case 30:
		batch := sim.AutoMitigate()
		log.Info().
			Int("succeeded", batch.Succeeded).
			Int("failed", batch.Failed).
			Msg("scripted auto mitigation run")
	}
}

// pickTarget chooses the node with the most dependents so the scripted
// events actually ripple.
func pickTarget(sim *simulation.Context) string {
	var best string
	bestFanout := -1
	for _, n := range sim.Nodes() {
		if len(n.Dependents) > bestFanout {
			best = n.ID
			bestFanout = len(n.Dependents)
		}
	}
	return best
}

func printSummary(sim *simulation.Context) {
	summary := map[string]any{
		"state":    sim.SystemState(),
		"accuracy": sim.AccuracyStats(),
		"threats":  len(sim.Threats()),
	}
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode summary: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}
