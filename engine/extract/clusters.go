package extract

import (
	"context"
	"log/slog"

	"github.com/Sheetlar/arxml/engine/model"
	"github.com/Sheetlar/arxml/engine/registry"
	"github.com/Sheetlar/arxml/engine/topology"
	"github.com/Sheetlar/arxml/pkg/fn"
)

// clusterKinds are the fibex groups holding communication clusters.
var clusterKinds = []model.Kind{model.KindCanCluster, model.KindOtherCluster}

const extendedAddressing = "EXTENDED"

func extractTopology(ctx context.Context, r *run) fn.Result[*run] {
	for _, kind := range clusterKinds {
		for _, e := range r.fibex[kind] {
			switch c := e.(type) {
			case *model.CanCluster:
				cond, ok := c.Variants.Single()
				if !ok {
					r.warn(ctx, StageTopology, c.Ref(), "cannot extract cluster %s: expected 1 variant, got %d", c.Name, c.Variants.Len())
					continue
				}
				r.extractCanCluster(ctx, c, cond)
			case *model.OtherCluster:
				r.warn(ctx, StageTopology, c.Ref(), "cluster %s: extraction of %s clusters is not supported", c.Name, c.Bus)
			}
		}
	}
	return fn.Ok(r)
}

func (r *run) extractCanCluster(ctx context.Context, c *model.CanCluster, cond *model.CanClusterConditional) {
	for _, h := range cond.Channels {
		e := r.model.Entity(h)
		ch, ok := e.(*model.CanPhysicalChannel)
		if !ok {
			r.report(ctx, slog.LevelError, StageTopology, e.Ref(), "channel %s: expected CAN physical channel, got %s", e.ShortName(), e.Kind())
			continue
		}

		out := &topology.CanChannel{
			Ref:           ch.Ref(),
			Name:          ch.Name,
			Cluster:       c.Name,
			Baudrate:      cond.Baudrate,
			CanFdBaudrate: cond.CanFdBaudrate,
		}
		for _, te := range r.model.Children(ch, model.RoleFrameTriggerings) {
			ft, ok := te.(*model.CanFrameTriggering)
			if !ok {
				r.report(ctx, slog.LevelError, StageTopology, te.Ref(), "triggering %s: expected CAN frame triggering, got %s", te.ShortName(), te.Kind())
				continue
			}
			if f := r.extractFrame(ctx, ft); f != nil {
				out.Frames = append(out.Frames, f)
			}
		}
		r.channels = append(r.channels, out)
	}
}

// extractFrame builds the frame scheduled by ft, or returns nil when a
// required field is missing.
func (r *run) extractFrame(ctx context.Context, ft *model.CanFrameTriggering) *topology.CanFrame {
	switch {
	case ft.Identifier == nil:
		r.warn(ctx, StageTopology, ft.Ref(), "frame triggering %s has no identifier", ft.Name)
		return nil
	case ft.FrameRef == "":
		r.warn(ctx, StageTopology, ft.Ref(), "frame triggering %s has no frame reference", ft.Name)
		return nil
	case ft.AddressingMode == "":
		r.warn(ctx, StageTopology, ft.Ref(), "frame triggering %s has no addressing mode", ft.Name)
		return nil
	}

	f, _, created := r.frames.GetOrCreate(ft.Ref(), func(registry.Handle) *topology.CanFrame {
		return &topology.CanFrame{
			Ref:            ft.Ref(),
			Name:           ft.Name,
			FrameRef:       ft.FrameRef,
			ID:             *ft.Identifier,
			AddressingMode: ft.AddressingMode,
			Extended:       ft.AddressingMode == extendedAddressing,
			RxBehavior:     ft.RxBehavior,
			TxBehavior:     ft.TxBehavior,
		}
	})
	if !created {
		return f
	}

	for _, ref := range fn.Unique(ft.FramePortRefs) {
		port, ecu, ok := r.portEcu(ctx, ft, ref)
		if !ok {
			continue
		}
		switch port.Direction {
		case model.DirectionOut:
			f.Providers = appendEcu(f.Providers, ecu)
		case model.DirectionIn:
			f.Consumers = appendEcu(f.Consumers, ecu)
		default:
			r.warn(ctx, StageTopology, ref, "port %s has unknown direction %q", port.Name, port.Direction)
		}
	}

	r.layout(ctx, ft, f)
	r.x.metrics.frame()
	return f
}

// portEcu resolves a frame port to the extracted ECU owning it through its
// communication connector.
func (r *run) portEcu(ctx context.Context, ft *model.CanFrameTriggering, ref string) (*model.CommPort, *topology.Ecu, bool) {
	port, err := model.ResolveAs[*model.CommPort](r.model, ref)
	if err != nil {
		r.warn(ctx, StageTopology, ft.Ref(), "frame port: %v", err)
		return nil, nil, false
	}
	conn, ok := r.model.Parent(port)
	if ok {
		_, ok = conn.(*model.CommunicationConnector)
	}
	if !ok {
		r.warn(ctx, StageTopology, ref, "port %s is not owned by a communication connector", port.Name)
		return nil, nil, false
	}
	owner, ok := r.model.Parent(conn)
	inst, isEcu := owner.(*model.EcuInstance)
	if !ok || !isEcu {
		r.warn(ctx, StageTopology, ref, "connector %s is not owned by an ECU instance", conn.ShortName())
		return nil, nil, false
	}
	ecu, ok := r.ecus.Lookup(inst.Ref())
	if !ok {
		r.report(ctx, slog.LevelInfo, StageTopology, ref, "ECU %s is not part of the system", inst.Name)
		return nil, nil, false
	}
	return port, ecu, true
}

func appendEcu(ecus []*topology.Ecu, e *topology.Ecu) []*topology.Ecu {
	for _, x := range ecus {
		if x == e {
			return ecus
		}
	}
	return append(ecus, e)
}

// layout places the extracted signals of every signal PDU mapped into the
// frame. A frame that cannot be resolved keeps an empty layout.
func (r *run) layout(ctx context.Context, ft *model.CanFrameTriggering, f *topology.CanFrame) {
	frame, err := model.ResolveAs[*model.CanFrame](r.model, ft.FrameRef)
	if err != nil {
		r.warn(ctx, StageTopology, ft.Ref(), "frame: %v", err)
		return
	}
	f.Length = frame.Length

	for _, pm := range frame.PduMappings {
		pdu, err := model.ResolveAs[*model.ISignalIPdu](r.model, pm.PduRef)
		if err != nil {
			r.report(ctx, slog.LevelInfo, StageTopology, frame.Ref(), "pdu %s: %v", pm.Name, err)
			continue
		}
		for _, sm := range pdu.SignalMappings {
			sig, ok := r.byRef[sm.SignalRef]
			if !ok {
				continue
			}
			order := sm.ByteOrder
			if order == "" {
				order = pm.ByteOrder
			}
			f.Signals = append(f.Signals, topology.SignalPlacement{
				Signal:    sig,
				Pdu:       pdu.Name,
				StartBit:  pm.StartPosition + sm.StartPosition,
				ByteOrder: string(order),
				UpdateBit: sm.UpdateBit,
			})
		}
	}
}
