package twin

import (
	"time"

	"twinguard-lab/internal/domain/models"
)

// Bias is the per-node drift pressure contributed by active threats.
// Zero value means no pressure.
type Bias struct {
	Physical float64 // pushes load, temperature and wear upward
	Cyber    float64 // pushes packet loss, latency and tamper upward
}

// Tick advances every node's metrics one step with a bounded random walk,
// clamped to valid ranges. biasFor supplies the active threat pressure for
// each node; pass nil when no threats are active. Status is NOT recomputed
// here; the orchestrator re-scores risk first and then refreshes status.
func (g *Graph) Tick(now time.Time, biasFor func(nodeID string) Bias) {
	for _, id := range g.order {
		n := g.nodes[id]

		var bias Bias
		if biasFor != nil {
			bias = biasFor(id)
		}

		// Offline nodes hold their state except for slow cooling
		if n.Status == models.StatusOffline {
			n.Temperature = clamp(n.Temperature-0.5, 10, n.ThermalLimit*1.5)
			touch(n, now)
			continue
		}

		// Load wanders, pushed by physical threat pressure
		n.LoadRatio = clamp01(n.LoadRatio + g.rng.NormFloat64()*0.02 + bias.Physical*0.04)
		n.CurrentLoad = n.LoadRatio * n.RatedCapacity
		n.PowerDraw = clamp(n.PowerDraw+g.rng.NormFloat64()*n.RatedCapacity*0.01, 0, n.RatedCapacity*1.3)

		// Temperature follows load and relaxes toward ambient
		target := 30 + n.LoadRatio*(n.ThermalLimit-20)
		n.Temperature += (target-n.Temperature)*0.15 + g.rng.NormFloat64()*0.8 + bias.Physical*1.5
		n.Temperature = clamp(n.Temperature, 10, n.ThermalLimit*1.5)

		// Voltage and frequency are pulled toward nominal
		n.Voltage += (1.0-n.Voltage)*0.2 + g.rng.NormFloat64()*0.004 - bias.Physical*0.01
		n.Voltage = clamp(n.Voltage, 0.5, 1.2)
		n.Frequency += (50.0-n.Frequency)*0.2 + g.rng.NormFloat64()*0.02 - bias.Physical*0.05
		n.Frequency = clamp(n.Frequency, 45, 55)

		// Health erodes under sustained risk and overheating
		wear := 0.0
		if n.RiskScore > 0.6 {
			wear += (n.RiskScore - 0.6) * 0.01
		}
		if n.Temperature > n.ThermalLimit {
			wear += 0.01
		}
		n.Health = clamp01(n.Health - wear + g.rng.NormFloat64()*0.003)

		// Cyber metrics decay toward quiet unless pressured
		n.PacketLoss = clamp01(n.PacketLoss*0.9 + g.rng.Float64()*0.005 + bias.Cyber*0.06)
		n.LatencyMS = clamp(n.LatencyMS*0.95+g.rng.NormFloat64()*2+5*0.05+bias.Cyber*40, 1, 2000)
		n.TamperSignal = clamp01(n.TamperSignal*0.92 + bias.Cyber*0.08)
		n.CyberHealth = clamp01(n.CyberHealth + (1.0-n.CyberHealth)*0.02 - bias.Cyber*0.05)
		if bias.Cyber > 0.3 && g.rng.Float64() < bias.Cyber {
			n.FailedAuthCount++
		} else if n.FailedAuthCount > 0 && g.rng.Float64() < 0.2 {
			n.FailedAuthCount--
		}

		// Maintenance backlog accumulates slowly
		n.MaintenanceDebt = clamp01(n.MaintenanceDebt + 0.0005 + g.rng.Float64()*0.0005)

		touch(n, now)
	}
}
