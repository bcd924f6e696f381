// Package graph mirrors the twin topology into Neo4j so operators can run
// ad-hoc Cypher over the dependency structure. The mirror is an optional
// export target, never a source of truth.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"twinguard-lab/internal/config"
	"twinguard-lab/pkg/logger"
)

// Neo4jClient wraps the Neo4j driver
type Neo4jClient struct {
	driver neo4j.DriverWithContext
	config config.GraphMirrorConfig
	logger *logger.Logger
}

// NewNeo4jClient creates a new Neo4j client and verifies connectivity
func NewNeo4jClient(ctx context.Context, cfg config.GraphMirrorConfig, log *logger.Logger) (*Neo4jClient, error) {
	auth := neo4j.BasicAuth(cfg.Username, cfg.Password, "")

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.ConnectionAcquisitionTimeout = 30 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	client := &Neo4jClient{
		driver: driver,
		config: cfg,
		logger: log.WithComponent("neo4j"),
	}

	if err := client.initializeSchema(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to initialize Neo4j schema")
	}

	log.Info().Str("uri", cfg.URI).Msg("connected to Neo4j")
	return client, nil
}

// Close closes the Neo4j driver
func (c *Neo4jClient) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// WriteSession creates a read-write session
func (c *Neo4jClient) WriteSession(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.config.Database,
	})
}

// ReadSession creates a read-only session
func (c *Neo4jClient) ReadSession(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.config.Database,
	})
}

// Health checks Neo4j connectivity
func (c *Neo4jClient) Health(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// initializeSchema creates indexes for the twin labels
func (c *Neo4jClient) initializeSchema(ctx context.Context) error {
	session := c.WriteSession(ctx)
	defer session.Close(ctx)

	indexes := []string{
		"CREATE INDEX twin_node_id IF NOT EXISTS FOR (n:TwinNode) ON (n.id)",
		"CREATE INDEX twin_node_region IF NOT EXISTS FOR (n:TwinNode) ON (n.region)",
		"CREATE INDEX twin_node_category IF NOT EXISTS FOR (n:TwinNode) ON (n.category)",
		"CREATE INDEX twin_node_status IF NOT EXISTS FOR (n:TwinNode) ON (n.status)",
	}

	for _, idx := range indexes {
		if _, err := session.Run(ctx, idx, nil); err != nil {
			c.logger.Warn().Err(err).Str("index", idx).Msg("failed to create index")
		}
	}

	c.logger.Info().Msg("Neo4j schema initialized")
	return nil
}

// Clear removes all mirrored topology data
func (c *Neo4jClient) Clear(ctx context.Context) error {
	session := c.WriteSession(ctx)
	defer session.Close(ctx)

	_, err := session.Run(ctx, "MATCH (n:TwinNode) DETACH DELETE n", nil)
	if err != nil {
		return fmt.Errorf("failed to clear mirror: %w", err)
	}

	c.logger.Warn().Msg("Neo4j mirror cleared")
	return nil
}
