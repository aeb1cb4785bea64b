package network

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"
)

const (
	cypherMergeChannels = `
		UNWIND $nodes AS n
		MERGE (c:Channel {id: n.id})
		SET c.label = n.label, c.seed_lists = n.seed_lists,
		    c.in_strength = n.in_strength, c.out_strength = n.out_strength,
		    c.cluster = n.cluster, c.color = n.color`

	cypherMergeDomains = `
		UNWIND $nodes AS n
		MERGE (d:Domain {name: n.id})
		SET d.in_strength = n.in_strength, d.cluster = n.cluster, d.color = n.color`

	cypherMergeForwards = `
		UNWIND $edges AS e
		MATCH (s:Channel {id: e.source}), (t:Channel {id: e.target})
		MERGE (s)-[r:FORWARDS]->(t)
		SET r.weight = e.weight`

	cypherMergeCitations = `
		UNWIND $edges AS e
		MATCH (s:Channel {id: e.source}), (t:Domain {name: e.target})
		MERGE (s)-[r:CITES]->(t)
		SET r.weight = e.weight`
)

type cypherStatement struct {
	query  string
	params map[string]any
}

// Neo4jSink mirrors built networks into a Neo4j database.
type Neo4jSink struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zerolog.Logger
}

// NewNeo4jSink connects to uri and verifies the connection.
func NewNeo4jSink(ctx context.Context, uri, user, password, database string, logger *zerolog.Logger) (*Neo4jSink, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	return &Neo4jSink{driver: driver, database: database, logger: logger}, nil
}

func (s *Neo4jSink) Close(ctx context.Context) error {
	if err := s.driver.Close(ctx); err != nil {
		return fmt.Errorf("close neo4j driver: %w", err)
	}

	return nil
}

// Export merges the nodes and weighted relationships of g in one write transaction.
func (s *Neo4jSink) Export(ctx context.Context, g *Graph) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	statements := cypherStatements(g)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, st := range statements {
			if _, err := tx.Run(ctx, st.query, st.params); err != nil {
				return nil, fmt.Errorf("run cypher: %w", err)
			}
		}

		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("export %s network: %w", g.Kind, err)
	}

	s.logger.Info().
		Str("network", string(g.Kind)).
		Int("nodes", len(g.Nodes)).
		Int("edges", len(g.Edges)).
		Msg("network exported to neo4j")

	return nil
}

// cypherStatements renders g as batched MERGE statements, nodes before edges.
func cypherStatements(g *Graph) []cypherStatement {
	var channels, domains []any

	for _, n := range g.Nodes {
		props := map[string]any{
			"id":           n.ID,
			"label":        n.Label,
			"seed_lists":   n.SeedLists,
			"in_strength":  n.InStrength,
			"out_strength": n.OutStrength,
			"cluster":      n.Community,
			"color":        nodeColor(n),
		}

		if n.Kind == NodeDomain {
			domains = append(domains, props)
			continue
		}

		channels = append(channels, props)
	}

	edges := make([]any, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, map[string]any{
			"source": e.Source,
			"target": e.Target,
			"weight": e.Weight,
		})
	}

	var out []cypherStatement

	if len(channels) > 0 {
		out = append(out, cypherStatement{query: cypherMergeChannels, params: map[string]any{"nodes": channels}})
	}

	if len(domains) > 0 {
		out = append(out, cypherStatement{query: cypherMergeDomains, params: map[string]any{"nodes": domains}})
	}

	if len(edges) > 0 {
		query := cypherMergeForwards
		if g.Kind == KindDomain {
			query = cypherMergeCitations
		}

		out = append(out, cypherStatement{query: query, params: map[string]any{"edges": edges}})
	}

	return out
}
