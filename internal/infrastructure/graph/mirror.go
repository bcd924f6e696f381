package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/pkg/logger"
)

// Mirror exports the twin topology into Neo4j
type Mirror struct {
	client *Neo4jClient
	logger *logger.Logger
}

// NewMirror creates a topology mirror over an existing client
func NewMirror(client *Neo4jClient, log *logger.Logger) *Mirror {
	return &Mirror{
		client: client,
		logger: log.WithComponent("graph-mirror"),
	}
}

// ExportTopology upserts every node and dependency edge. Safe to call
// repeatedly; MERGE keeps the mirror idempotent.
func (m *Mirror) ExportTopology(ctx context.Context, nodes []*models.DigitalTwinNode, edges []*models.DependencyEdge) error {
	started := time.Now()
	session := m.client.WriteSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		const nodeCypher = `
			MERGE (n:TwinNode {id: $id})
			SET n.name = $name,
			    n.type = $type,
			    n.category = $category,
			    n.region = $region,
			    n.status = $status,
			    n.risk_score = $risk_score,
			    n.health = $health`
		for _, node := range nodes {
			params := map[string]any{
				"id":         node.ID,
				"name":       node.Name,
				"type":       string(node.Type),
				"category":   string(node.Category),
				"region":     node.Region,
				"status":     string(node.Status),
				"risk_score": node.RiskScore,
				"health":     node.Health,
			}
			if _, err := tx.Run(ctx, nodeCypher, params); err != nil {
				return nil, fmt.Errorf("upserting node %s: %w", node.ID, err)
			}
		}

		const edgeCypher = `
			MATCH (from:TwinNode {id: $from}), (to:TwinNode {id: $to})
			MERGE (from)-[r:FEEDS {id: $id}]->(to)
			SET r.type = $type,
			    r.weight = $weight,
			    r.active = $active`
		for _, edge := range edges {
			params := map[string]any{
				"id":     edge.ID,
				"from":   edge.From,
				"to":     edge.To,
				"type":   string(edge.Type),
				"weight": edge.Weight,
				"active": edge.IsActive,
			}
			if _, err := tx.Run(ctx, edgeCypher, params); err != nil {
				return nil, fmt.Errorf("upserting edge %s: %w", edge.ID, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	m.logger.Info().
		Int("nodes", len(nodes)).
		Int("edges", len(edges)).
		Dur("took", time.Since(started)).
		Msg("topology exported to Neo4j")
	return nil
}

// UpdateStatuses refreshes only the volatile per-node fields
func (m *Mirror) UpdateStatuses(ctx context.Context, nodes []*models.DigitalTwinNode) error {
	session := m.client.WriteSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		const cypher = `
			MATCH (n:TwinNode {id: $id})
			SET n.status = $status, n.risk_score = $risk_score, n.health = $health`
		for _, node := range nodes {
			params := map[string]any{
				"id":         node.ID,
				"status":     string(node.Status),
				"risk_score": node.RiskScore,
				"health":     node.Health,
			}
			if _, err := tx.Run(ctx, cypher, params); err != nil {
				return nil, fmt.Errorf("updating node %s: %w", node.ID, err)
			}
		}
		return nil, nil
	})
	return err
}
