package graph

import "context"

// NodeCounts returns node counts grouped by label. An empty systemRef counts
// the whole database.
func (g *GraphStore) NodeCounts(ctx context.Context, systemRef string) (map[string]int64, error) {
	cypher := `MATCH (n) WHERE $system = '' OR n.system = $system
		RETURN labels(n)[0] AS type, count(*) AS count`
	return g.counts(ctx, cypher, systemRef)
}

// RelationshipCounts returns relationship counts grouped by type.
func (g *GraphStore) RelationshipCounts(ctx context.Context, systemRef string) (map[string]int64, error) {
	cypher := `MATCH (a)-[r]->() WHERE $system = '' OR a.system = $system
		RETURN type(r) AS type, count(*) AS count`
	return g.counts(ctx, cypher, systemRef)
}

func (g *GraphStore) counts(ctx context.Context, cypher, systemRef string) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, map[string]any{"system": systemRef})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, nil
}

// EcuStats summarises the traffic of one ECU.
type EcuStats struct {
	Name     string `json:"name"`
	Sends    int64  `json:"sends"`
	Receives int64  `json:"receives"`
}

// BusiestEcus returns the ECUs of systemRef ordered by the number of frames
// they send.
func (g *GraphStore) BusiestEcus(ctx context.Context, systemRef string, limit int) ([]EcuStats, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (e:Ecu {system: $system})
		OPTIONAL MATCH (e)-[:SENDS]->(s:Frame)
		OPTIONAL MATCH (e)-[:RECEIVES]->(r:Frame)
		RETURN e.name AS name, count(DISTINCT s) AS sends, count(DISTINCT r) AS receives
		ORDER BY sends DESC, name LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"system": systemRef, "limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	var stats []EcuStats
	for result.Next(ctx) {
		rec := result.Record()
		name, _ := rec.Get("name")
		sends, _ := rec.Get("sends")
		recv, _ := rec.Get("receives")
		s := EcuStats{}
		if n, ok := name.(string); ok {
			s.Name = n
		}
		if v, ok := sends.(int64); ok {
			s.Sends = v
		}
		if v, ok := recv.(int64); ok {
			s.Receives = v
		}
		stats = append(stats, s)
	}
	return stats, nil
}
