package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Sheetlar/arxml/engine/topology"
	"github.com/Sheetlar/arxml/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// ErrUnknownLabel is returned for node labels outside Labels.
var ErrUnknownLabel = errors.New("unknown label")

// GraphStore exports topologies to Neo4j and reads them back.
type GraphStore struct {
	opener SessionOpener
	log    *slog.Logger
	nodes  map[string]*repo.Neo4jRepo[Node, string]
}

// Option configures a GraphStore.
type Option func(*GraphStore)

// WithLogger sets the store's logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *GraphStore) { g.log = log }
}

// New creates a GraphStore on driver. An empty database selects the server
// default.
func New(driver neo4j.DriverWithContext, database string, opts ...Option) *GraphStore {
	return NewWithOpener(driverOpener{driver: driver, database: database}, opts...)
}

// NewWithOpener creates a GraphStore whose sessions come from opener.
func NewWithOpener(opener SessionOpener, opts ...Option) *GraphStore {
	g := &GraphStore{
		opener: opener,
		log:    slog.Default(),
		nodes:  make(map[string]*repo.Neo4jRepo[Node, string], len(Labels)),
	}
	for _, o := range opts {
		o(g)
	}
	open := func(ctx context.Context) repo.Runner { return opener.OpenSession(ctx) }
	for _, label := range Labels {
		g.nodes[label] = repo.NewNeo4jRepo[Node, string](
			nil, label, nodeToMap, nodeFromRecord,
			repo.WithSession[Node, string](open),
		)
	}
	return g
}

func (g *GraphStore) repo(label string) (*repo.Neo4jRepo[Node, string], error) {
	r, ok := g.nodes[label]
	if !ok {
		return nil, fmt.Errorf("graph: %w %q", ErrUnknownLabel, label)
	}
	return r, nil
}

// EnsureSchema creates the id constraints and system indexes.
func (g *GraphStore) EnsureSchema(ctx context.Context) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	for _, label := range Labels {
		stmts := []string{
			fmt.Sprintf("CREATE CONSTRAINT %s_id IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE", strings.ToLower(label), label),
			fmt.Sprintf("CREATE INDEX %s_system IF NOT EXISTS FOR (n:%s) ON (n.system)", strings.ToLower(label), label),
		}
		for _, cypher := range stmts {
			if _, err := sess.Run(ctx, cypher, nil); err != nil {
				return fmt.Errorf("graph: schema %s: %w", label, err)
			}
		}
	}
	return nil
}

// SaveStats counts what an export wrote.
type SaveStats struct {
	Nodes map[string]int `json:"nodes"`
	Edges map[string]int `json:"edges"`
}

// SaveTopology merges the projection of sys into the graph.
func (g *GraphStore) SaveTopology(ctx context.Context, sys *topology.System) (SaveStats, error) {
	return g.SaveGraph(ctx, Build(sys))
}

type edgeGroup struct {
	typ, from, to string
}

// SaveGraph merges nodes by label and edges by type in one write
// transaction. Every node and edge endpoint label must be one of Labels.
func (g *GraphStore) SaveGraph(ctx context.Context, gr *Graph) (SaveStats, error) {
	if err := checkLabels(gr); err != nil {
		return SaveStats{}, fmt.Errorf("graph: save %s: %w", gr.System, err)
	}
	stats := SaveStats{Nodes: make(map[string]int), Edges: make(map[string]int)}

	nodeRows := make(map[string][]map[string]any)
	for _, n := range gr.Nodes {
		nodeRows[n.Label] = append(nodeRows[n.Label], map[string]any{"id": n.ID, "props": n.Props})
	}
	var groups []edgeGroup
	edgeRows := make(map[edgeGroup][]map[string]any)
	for _, e := range gr.Edges {
		k := edgeGroup{typ: sanitizeRelType(e.Type), from: e.FromLabel, to: e.ToLabel}
		if _, ok := edgeRows[k]; !ok {
			groups = append(groups, k)
		}
		props := e.Props
		if props == nil {
			props = map[string]any{}
		}
		edgeRows[k] = append(edgeRows[k], map[string]any{"id": e.ID, "from": e.From, "to": e.To, "props": props})
	}

	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		for _, label := range Labels {
			rows := nodeRows[label]
			if len(rows) == 0 {
				continue
			}
			cypher := fmt.Sprintf(`UNWIND $rows AS row
				MERGE (n:%s {id: row.id})
				SET n += row.props`, label)
			if _, err := tx.Run(ctx, cypher, map[string]any{"rows": rows}); err != nil {
				return nil, fmt.Errorf("merge %s nodes: %w", label, err)
			}
			stats.Nodes[label] = len(rows)
		}
		for _, k := range groups {
			rows := edgeRows[k]
			cypher := fmt.Sprintf(`UNWIND $rows AS row
				MATCH (a:%s {id: row.from}), (b:%s {id: row.to})
				MERGE (a)-[r:%s {id: row.id}]->(b)
				SET r += row.props`, k.from, k.to, k.typ)
			if _, err := tx.Run(ctx, cypher, map[string]any{"rows": rows}); err != nil {
				return nil, fmt.Errorf("merge %s edges: %w", k.typ, err)
			}
			stats.Edges[k.typ] += len(rows)
		}
		return nil, nil
	})
	if err != nil {
		return SaveStats{}, fmt.Errorf("graph: save %s: %w", gr.System, err)
	}
	g.log.Info("topology exported", "system", gr.System, "nodes", len(gr.Nodes), "edges", len(gr.Edges))
	return stats, nil
}

func checkLabels(gr *Graph) error {
	for _, n := range gr.Nodes {
		if !slices.Contains(Labels, n.Label) {
			return fmt.Errorf("node %s: %w %q", n.ID, ErrUnknownLabel, n.Label)
		}
	}
	for _, e := range gr.Edges {
		for _, label := range []string{e.FromLabel, e.ToLabel} {
			if !slices.Contains(Labels, label) {
				return fmt.Errorf("edge %s: %w %q", e.ID, ErrUnknownLabel, label)
			}
		}
	}
	return nil
}

// DeleteSystem removes every node exported for systemRef.
func (g *GraphStore) DeleteSystem(ctx context.Context, systemRef string) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `MATCH (n {system: $system}) DETACH DELETE n`, map[string]any{"system": systemRef})
	return err
}

// Get returns the node with id and label.
func (g *GraphStore) Get(ctx context.Context, label, id string) (Node, error) {
	r, err := g.repo(label)
	if err != nil {
		return Node{}, err
	}
	return r.Get(ctx, id)
}

// List returns the nodes with label exported for systemRef.
func (g *GraphStore) List(ctx context.Context, label, systemRef string, opts repo.ListOpts) ([]Node, error) {
	r, err := g.repo(label)
	if err != nil {
		return nil, err
	}
	filter := map[string]any{"system": systemRef}
	for k, v := range opts.Filter {
		filter[k] = v
	}
	opts.Filter = filter
	return r.List(ctx, opts)
}

// FramesSentBy returns the frames the ECU node sends.
func (g *GraphStore) FramesSentBy(ctx context.Context, ecuID string) ([]Node, error) {
	return g.query(ctx, `MATCH (:Ecu {id: $id})-[:SENDS]->(n:Frame) RETURN n ORDER BY n.can_id`, map[string]any{"id": ecuID})
}

// FramesReceivedBy returns the frames the ECU node receives.
func (g *GraphStore) FramesReceivedBy(ctx context.Context, ecuID string) ([]Node, error) {
	return g.query(ctx, `MATCH (:Ecu {id: $id})-[:RECEIVES]->(n:Frame) RETURN n ORDER BY n.can_id`, map[string]any{"id": ecuID})
}

// SignalsOf returns the signals carried by the frame node.
func (g *GraphStore) SignalsOf(ctx context.Context, frameID string) ([]Node, error) {
	return g.query(ctx, `MATCH (:Frame {id: $id})-[c:CARRIES]->(n:Signal) RETURN n ORDER BY c.start_bit`, map[string]any{"id": frameID})
}

// TracePath returns the nodes on a shortest path between two nodes, e.g.
// from a sending to a receiving ECU through the frame they share.
func (g *GraphStore) TracePath(ctx context.Context, fromID, toID string) ([]Node, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH p = shortestPath((a {id: $from})-[*]-(b {id: $to}))
				RETURN nodes(p) AS nodes`
	result, err := sess.Run(ctx, cypher, map[string]any{"from": fromID, "to": toID})
	if err != nil {
		return nil, err
	}
	if !result.Next(ctx) {
		return nil, fmt.Errorf("no path from %s to %s", fromID, toID)
	}
	raw, ok := result.Record().Get("nodes")
	if !ok {
		return nil, fmt.Errorf("no nodes in path result")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected nodes type %T", raw)
	}
	var out []Node
	for _, v := range list {
		if n, ok := v.(dbtype.Node); ok {
			out = append(out, nodeFromDB(n))
		}
	}
	return out, nil
}

func (g *GraphStore) query(ctx context.Context, cypher string, params map[string]any) ([]Node, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	var out []Node
	for result.Next(ctx) {
		n, err := nodeFromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func nodeToMap(n Node) map[string]any {
	m := make(map[string]any, len(n.Props)+1)
	for k, v := range n.Props {
		m[k] = v
	}
	m["id"] = n.ID
	return m
}

func nodeFromRecord(rec *neo4j.Record) (Node, error) {
	n, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Node{}, err
	}
	return nodeFromDB(n), nil
}

func nodeFromDB(n dbtype.Node) Node {
	out := Node{ID: strProp(n.Props, "id"), Props: n.Props}
	if len(n.Labels) > 0 {
		out.Label = n.Labels[0]
	}
	return out
}

// sanitizeRelType ensures the relationship type is a valid Cypher identifier.
func sanitizeRelType(t string) string {
	safe := make([]byte, 0, len(t))
	for i := range t {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "RELATED_TO"
	}
	for i := range safe {
		if safe[i] >= 'a' && safe[i] <= 'z' {
			safe[i] -= 32
		}
	}
	return string(safe)
}
