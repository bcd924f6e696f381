package twin

import (
	"fmt"
	"time"

	"twinguard-lab/internal/domain/models"
)

// region anchor coordinates; node positions jitter around these
var regionAnchors = map[string]models.Coordinates{
	"north":   {Lat: 59.3, Lon: 18.1},
	"south":   {Lat: 55.6, Lon: 13.0},
	"east":    {Lat: 57.8, Lon: 16.6},
	"west":    {Lat: 57.7, Lon: 11.9},
	"central": {Lat: 58.4, Lon: 14.5},
}

var typesByCategory = map[models.Category][]models.NodeType{
	models.CategoryPower:      {models.NodeTypePowerPlant, models.NodeTypeSubstation, models.NodeTypeTransformer},
	models.CategoryTelecom:    {models.NodeTypeCellTower, models.NodeTypeSwitchingCenter, models.NodeTypeFiberHub},
	models.CategoryWater:      {models.NodeTypePumpingStation, models.NodeTypeTreatmentPlant, models.NodeTypeReservoir},
	models.CategoryDataCenter: {models.NodeTypeDataCenter, models.NodeTypeEdgePOP},
}

// edgeTypeFor picks the flow type carried from a provider category
func edgeTypeFor(from models.Category) models.EdgeType {
	switch from {
	case models.CategoryPower:
		return models.EdgePower
	case models.CategoryTelecom:
		return models.EdgeControl
	case models.CategoryWater:
		return models.EdgeThermal
	default:
		return models.EdgeData
	}
}

// generate builds the node set and dependency edges from the graph's RNG.
// Dependencies always point at earlier nodes, so the construction order is
// the topological order and the generated graph is acyclic.
func (g *Graph) generate(nodeCount int) {
	now := time.Unix(0, 0).UTC() // fixed epoch keeps timestamps seed-stable
	regions := models.Regions()

	for i := 0; i < nodeCount; i++ {
		category := g.pickCategory()
		types := typesByCategory[category]
		nodeType := types[g.rng.Intn(len(types))]
		region := regions[g.rng.Intn(len(regions))]
		anchor := regionAnchors[region]

		capacity := 50 + g.rng.Float64()*950
		load := 0.25 + g.rng.Float64()*0.45

		n := &models.DigitalTwinNode{
			ID:       fmt.Sprintf("node-%03d", i+1),
			Name:     fmt.Sprintf("%s %s %d", titleRegion(region), titleType(nodeType), i+1),
			Type:     nodeType,
			Category: category,
			Region:   region,
			Coordinates: models.Coordinates{
				Lat: anchor.Lat + (g.rng.Float64()-0.5)*1.2,
				Lon: anchor.Lon + (g.rng.Float64()-0.5)*1.6,
			},

			Health:      0.85 + g.rng.Float64()*0.15,
			LoadRatio:   load,
			Temperature: 35 + g.rng.Float64()*20,
			Voltage:     0.98 + g.rng.Float64()*0.04,
			Frequency:   49.9 + g.rng.Float64()*0.2,

			CyberHealth:  0.85 + g.rng.Float64()*0.15,
			PacketLoss:   g.rng.Float64() * 0.02,
			LatencyMS:    5 + g.rng.Float64()*40,
			TamperSignal: g.rng.Float64() * 0.05,
			LastAuthTime: now,

			MaintenanceDebt: g.rng.Float64() * 0.3,

			Status:      models.StatusOnline,
			CyberStatus: models.CyberSecure,

			RatedCapacity: capacity,
			CurrentLoad:   load * capacity,
			ThermalLimit:  85 + g.rng.Float64()*15,

			UpdatedAt: now,
		}
		n.PowerDraw = n.CurrentLoad * (0.8 + g.rng.Float64()*0.4)
		g.addNode(n)
	}

	// Dependency edges: each node after the first depends on one to three
	// earlier nodes, preferring providers in its own region.
	edgeSeq := 0
	for i := 1; i < len(g.order); i++ {
		node := g.nodes[g.order[i]]
		wanted := 1 + g.rng.Intn(3)
		seen := map[string]bool{}

		for d := 0; d < wanted; d++ {
			provider := g.pickProvider(i, node.Region)
			if provider == "" || provider == node.ID || seen[provider] {
				continue
			}
			seen[provider] = true

			edgeSeq++
			from := g.nodes[provider]
			e := &models.DependencyEdge{
				ID:        fmt.Sprintf("edge-%04d", edgeSeq),
				From:      provider,
				To:        node.ID,
				Type:      edgeTypeFor(from.Category),
				Weight:    0.2 + g.rng.Float64()*0.7,
				LatencyMS: 1 + g.rng.Float64()*20,
				Bandwidth: 100 + g.rng.Float64()*900,
				IsActive:  true,
			}
			g.addEdge(e)

			// A minority of links carry a standby backup path, inactive
			// until a reroute mitigation brings it up.
			if g.rng.Float64() < 0.12 {
				edgeSeq++
				g.addEdge(&models.DependencyEdge{
					ID:        fmt.Sprintf("edge-%04d", edgeSeq),
					From:      provider,
					To:        node.ID,
					Type:      models.EdgeBackup,
					Weight:    e.Weight * 0.5,
					LatencyMS: e.LatencyMS * 2,
					Bandwidth: e.Bandwidth * 0.5,
					IsActive:  false,
				})
			}
		}
	}
}

// pickCategory draws a category with fixed sector proportions
func (g *Graph) pickCategory() models.Category {
	r := g.rng.Float64()
	switch {
	case r < 0.35:
		return models.CategoryPower
	case r < 0.60:
		return models.CategoryTelecom
	case r < 0.80:
		return models.CategoryWater
	default:
		return models.CategoryDataCenter
	}
}

// pickProvider picks an earlier node for a dependency, same region 70% of
// the time when one exists.
func (g *Graph) pickProvider(limit int, region string) string {
	if limit <= 0 {
		return ""
	}
	if g.rng.Float64() < 0.7 {
		var sameRegion []string
		for j := 0; j < limit; j++ {
			if g.nodes[g.order[j]].Region == region {
				sameRegion = append(sameRegion, g.order[j])
			}
		}
		if len(sameRegion) > 0 {
			return sameRegion[g.rng.Intn(len(sameRegion))]
		}
	}
	return g.order[g.rng.Intn(limit)]
}

func titleRegion(region string) string {
	if region == "" {
		return region
	}
	return string(region[0]-'a'+'A') + region[1:]
}

func titleType(t models.NodeType) string {
	switch t {
	case models.NodeTypePowerPlant:
		return "Power Plant"
	case models.NodeTypeSubstation:
		return "Substation"
	case models.NodeTypeTransformer:
		return "Transformer"
	case models.NodeTypeCellTower:
		return "Cell Tower"
	case models.NodeTypeSwitchingCenter:
		return "Switching Center"
	case models.NodeTypeFiberHub:
		return "Fiber Hub"
	case models.NodeTypePumpingStation:
		return "Pumping Station"
	case models.NodeTypeTreatmentPlant:
		return "Treatment Plant"
	case models.NodeTypeReservoir:
		return "Reservoir"
	case models.NodeTypeDataCenter:
		return "Data Center"
	case models.NodeTypeEdgePOP:
		return "Edge POP"
	default:
		return string(t)
	}
}
