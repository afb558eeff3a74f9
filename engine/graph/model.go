// Package graph persists extracted CAN topologies into Neo4j and queries
// them back.
//
// Every system is stored as its own subgraph: node ids are derived from the
// system reference and the element reference, so re-exporting a system
// merges onto the same nodes and two systems sharing an ECU do not collide.
package graph

import (
	"github.com/Sheetlar/arxml/engine/topology"
	"github.com/google/uuid"
)

// Node labels.
const (
	LabelSystem  = "System"
	LabelEcu     = "Ecu"
	LabelChannel = "Channel"
	LabelFrame   = "Frame"
	LabelSignal  = "Signal"
)

// Relationship types.
const (
	RelHasEcu     = "HAS_ECU"     // System -> Ecu
	RelHasChannel = "HAS_CHANNEL" // System -> Channel
	RelSends      = "SENDS"       // Ecu -> Frame
	RelReceives   = "RECEIVES"    // Ecu -> Frame
	RelOnChannel  = "ON_CHANNEL"  // Frame -> Channel
	RelCarries    = "CARRIES"     // Frame -> Signal
)

// Labels lists every node label in export order.
var Labels = []string{LabelSystem, LabelEcu, LabelChannel, LabelFrame, LabelSignal}

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("arxml/topology"))

// NodeID derives the id of the node for ref within the system systemRef.
func NodeID(systemRef, ref string) string {
	return uuid.NewSHA1(namespace, []byte(systemRef+"\x00"+ref)).String()
}

// Node is a labelled graph node. Props always hold "id", "ref", "name" and
// "system".
type Node struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Props map[string]any `json:"props"`
}

// Ref returns the ARXML reference the node was exported from.
func (n Node) Ref() string { return strProp(n.Props, "ref") }

// Name returns the node's display name.
func (n Node) Name() string { return strProp(n.Props, "name") }

// Edge is a typed relationship between two nodes.
type Edge struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	From      string         `json:"from"`
	FromLabel string         `json:"from_label"`
	To        string         `json:"to"`
	ToLabel   string         `json:"to_label"`
	Props     map[string]any `json:"props,omitempty"`
}

// Graph is the projection of one extracted system.
type Graph struct {
	System string
	Nodes  []Node
	Edges  []Edge
}

type builder struct {
	system string
	g      *Graph
	seen   map[string]bool
}

func (b *builder) node(label, ref, name string, props map[string]any) string {
	id := NodeID(b.system, ref)
	if b.seen[id] {
		return id
	}
	b.seen[id] = true
	p := map[string]any{"id": id, "ref": ref, "name": name, "system": b.system}
	for k, v := range props {
		p[k] = v
	}
	b.g.Nodes = append(b.g.Nodes, Node{ID: id, Label: label, Props: p})
	return id
}

func (b *builder) edge(typ, fromLabel, from, toLabel, to string, props map[string]any) {
	id := NodeID(b.system, typ+"\x00"+from+"\x00"+to)
	if b.seen[id] {
		return
	}
	b.seen[id] = true
	b.g.Edges = append(b.g.Edges, Edge{
		ID: id, Type: typ,
		From: from, FromLabel: fromLabel,
		To: to, ToLabel: toLabel,
		Props: props,
	})
}

// Build projects sys onto nodes and edges. The result is deterministic for a
// given system.
func Build(sys *topology.System) *Graph {
	b := &builder{system: sys.Ref(), g: &Graph{System: sys.Ref()}, seen: make(map[string]bool)}
	root := b.node(LabelSystem, sys.Ref(), sys.Name(), nil)

	ecus := make(map[*topology.Ecu]string)
	for _, e := range sys.Ecus() {
		id := b.node(LabelEcu, e.Ref, e.Name, ecuProps(e))
		ecus[e] = id
		b.edge(RelHasEcu, LabelSystem, root, LabelEcu, id, nil)
	}
	signals := make(map[*topology.Signal]string)
	for _, s := range sys.Signals() {
		signals[s] = b.node(LabelSignal, s.Ref, s.Name, signalProps(s))
	}

	for _, ch := range sys.Channels() {
		chID := b.node(LabelChannel, ch.Ref, ch.Name, map[string]any{
			"cluster":         ch.Cluster,
			"baudrate":        int64(ch.Baudrate),
			"can_fd_baudrate": int64(ch.CanFdBaudrate),
		})
		b.edge(RelHasChannel, LabelSystem, root, LabelChannel, chID, nil)

		for _, f := range ch.Frames {
			fID := b.node(LabelFrame, f.Ref, f.Name, frameProps(f))
			b.edge(RelOnChannel, LabelFrame, fID, LabelChannel, chID, nil)
			for _, e := range f.Providers {
				b.edge(RelSends, LabelEcu, b.ecu(ecus, e), LabelFrame, fID, nil)
			}
			for _, e := range f.Consumers {
				b.edge(RelReceives, LabelEcu, b.ecu(ecus, e), LabelFrame, fID, nil)
			}
			for _, p := range f.Signals {
				sID, ok := signals[p.Signal]
				if !ok {
					sID = b.node(LabelSignal, p.Signal.Ref, p.Signal.Name, signalProps(p.Signal))
				}
				props := map[string]any{
					"pdu":        p.Pdu,
					"start_bit":  int64(p.StartBit),
					"byte_order": p.ByteOrder,
				}
				if p.UpdateBit != nil {
					props["update_bit"] = int64(*p.UpdateBit)
				}
				b.edge(RelCarries, LabelFrame, fID, LabelSignal, sID, props)
			}
		}
	}
	return b.g
}

// ecu returns the node of e, adding it for ECUs that reach a frame without
// being listed by the system.
func (b *builder) ecu(known map[*topology.Ecu]string, e *topology.Ecu) string {
	if id, ok := known[e]; ok {
		return id
	}
	id := b.node(LabelEcu, e.Ref, e.Name, ecuProps(e))
	known[e] = id
	return id
}

func ecuProps(e *topology.Ecu) map[string]any {
	if e.DiagnosticAddress == nil {
		return nil
	}
	return map[string]any{"diagnostic_address": int64(*e.DiagnosticAddress)}
}

func frameProps(f *topology.CanFrame) map[string]any {
	return map[string]any{
		"frame_ref":       f.FrameRef,
		"can_id":          int64(f.ID),
		"extended":        f.Extended,
		"addressing_mode": f.AddressingMode,
		"length":          int64(f.Length),
		"sender":          f.Sender(),
		"receiver":        f.Receiver(),
	}
}

func signalProps(s *topology.Signal) map[string]any {
	p := map[string]any{
		"system_signal": s.SystemSignal,
		"policy":        s.Policy,
		"length":        int64(s.Length),
		"unit":          s.Unit,
	}
	if s.InitValue != nil {
		p["init_value"] = *s.InitValue
	}
	if s.DataType != nil {
		p["data_type"] = s.DataType.Name
	}
	if s.Conversion != nil {
		p["conversion"] = s.Conversion.String()
	}
	return p
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
