// Package graph is the Neo4j-backed store. Users own vehicles through
// (:User)-[:OWNS]->(:Vehicle); maintenance records, cached recommendations
// and audit entries hang off the vehicle node.
package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/carlog-backend/internal/config"
)

// Client wraps a driver and the target database name.
type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
}

// schema is applied on Open. Statements are idempotent.
var schema = []string{
	`CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`,
	`CREATE CONSTRAINT user_email_unique IF NOT EXISTS FOR (u:User) REQUIRE u.email IS UNIQUE`,
	`CREATE CONSTRAINT vehicle_id_unique IF NOT EXISTS FOR (v:Vehicle) REQUIRE v.id IS UNIQUE`,
	`CREATE CONSTRAINT maintenance_id_unique IF NOT EXISTS FOR (m:Maintenance) REQUIRE m.id IS UNIQUE`,
	`CREATE INDEX user_active_index IF NOT EXISTS FOR (u:User) ON (u.account_active)`,
	`CREATE INDEX recommendation_fp_index IF NOT EXISTS FOR (r:Recommendation) ON (r.vehicle_id, r.mileage_at_generation, r.maintenance_count_at_generation)`,
	`CREATE INDEX recommendation_log_created_index IF NOT EXISTS FOR (l:RecommendationLog) ON (l.created_at)`,
}

// Open connects, verifies connectivity and applies the schema.
func Open(ctx context.Context, cfg config.Neo4jConfig) (*Client, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, fmt.Errorf("graph: NEO4J_URI required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		if cfg.MaxPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
		}
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("graph: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(vctx)
		return nil, fmt.Errorf("graph: verify connectivity: %w", err)
	}

	c := &Client{Driver: driver, Database: cfg.Database}
	c.ensureSchema(vctx)
	return c, nil
}

// ensureSchema is best effort; failures are logged and the client stays usable.
func (c *Client) ensureSchema(ctx context.Context) {
	session := c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	for _, stmt := range schema {
		res, err := session.Run(ctx, stmt, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			log.Warn().Err(err).Str("stmt", stmt).Msg("neo4j schema init failed (continuing)")
		}
	}
}

func (c *Client) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return c.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: c.Database})
}

// Close releases the driver.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}
