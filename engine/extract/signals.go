package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Sheetlar/arxml/engine/conversion"
	"github.com/Sheetlar/arxml/engine/model"
	"github.com/Sheetlar/arxml/engine/registry"
	"github.com/Sheetlar/arxml/engine/topology"
	"github.com/Sheetlar/arxml/pkg/fn"
)

// Data type policies of an ISignal.
const (
	PolicyLegacy              = "legacy"
	PolicyOverride            = "override"
	PolicyNetworkFromComSpec  = "network-representation-from-com-spec"
	PolicyTransformingISignal = "transforming-i-signal"
)

func extractSignals(ctx context.Context, r *run) fn.Result[*run] {
	isignals := r.fibex[model.KindISignal]
	if len(isignals) == 0 {
		return r.fail(StageSignals, ErrNoSignals)
	}
	for _, e := range isignals {
		sig := e.(*model.ISignal)
		switch policy := strings.ToLower(sig.DataTypePolicy); policy {
		case PolicyLegacy, PolicyOverride:
			s := r.buildSignal(ctx, sig)
			r.signals = append(r.signals, s)
			r.byRef[s.Ref] = s
			r.x.metrics.signal()
		case PolicyNetworkFromComSpec, PolicyTransformingISignal:
			r.warn(ctx, StageSignals, sig.Ref(), "data type policy %s is not supported, signal %s ignored", policy, sig.Name)
			r.x.metrics.skip("policy")
		default:
			r.warn(ctx, StageSignals, sig.Ref(), "signal %s has unknown data type policy %q, ignored", sig.Name, sig.DataTypePolicy)
			r.x.metrics.skip("unknown_policy")
		}
	}
	return fn.Ok(r)
}

// buildSignal names the signal after its system signal and attaches data type,
// unit and conversion from the single network representation, falling back to
// the system signal's physical properties.
func (r *run) buildSignal(ctx context.Context, sig *model.ISignal) *topology.Signal {
	out := &topology.Signal{
		Ref:          sig.Ref(),
		Name:         sig.Name,
		SystemSignal: sig.SystemSignalRef,
		Policy:       strings.ToLower(sig.DataTypePolicy),
		Length:       sig.Length,
		InitValue:    sig.InitValue,
	}

	var sys *model.SystemSignal
	if sig.SystemSignalRef != "" {
		s, err := model.ResolveAs[*model.SystemSignal](r.model, sig.SystemSignalRef)
		if err != nil {
			r.warn(ctx, StageSignals, sig.Ref(), "system signal: %v", err)
		} else {
			sys = s
			out.Name = s.Name
		}
	}

	props, ok := sig.NetworkRepresentation.Single()
	if !ok && sys != nil {
		props, ok = sys.PhysicalProps.Single()
	}
	if !ok {
		r.warn(ctx, StageSignals, sig.Ref(), "signal %s has no single data definition, data type unknown", out.Name)
		return out
	}
	r.applyDataDef(ctx, sig.Ref(), out, props)
	return out
}

func (r *run) applyDataDef(ctx context.Context, ref string, out *topology.Signal, props model.SwDataDefProps) {
	if props.BaseTypeRef != "" {
		bt, err := model.ResolveAs[*model.SwBaseType](r.model, props.BaseTypeRef)
		if err != nil {
			r.warn(ctx, StageSignals, ref, "base type: %v", err)
		} else {
			out.DataType, _, _ = r.dataTypes.GetOrCreate(bt.Ref(), func(registry.Handle) *topology.DataType {
				return &topology.DataType{
					Ref:         bt.Ref(),
					Name:        bt.Name,
					Declaration: bt.NativeDeclaration,
					Size:        bt.Size,
					Encoding:    bt.Encoding,
				}
			})
		}
	}

	unitRef := props.UnitRef
	if props.CompuMethodRef != "" {
		cm, err := model.ResolveAs[*model.CompuMethod](r.model, props.CompuMethodRef)
		if err != nil {
			r.warn(ctx, StageSignals, ref, "compu method: %v", err)
		} else {
			out.Conversion = r.conversion(ctx, cm)
			if unitRef == "" {
				unitRef = cm.UnitRef
			}
		}
	}

	if unitRef != "" {
		u, err := model.ResolveAs[*model.Unit](r.model, unitRef)
		if err != nil {
			r.report(ctx, slog.LevelInfo, StageSignals, ref, "unit: %v", err)
			return
		}
		out.Unit = u.DisplayName
		if out.Unit == "" {
			out.Unit = u.Name
		}
	}
}

// conversion translates cm once per extraction. Untranslatable methods are
// reported and leave the signal without a conversion.
func (r *run) conversion(ctx context.Context, cm *model.CompuMethod) conversion.Conversion {
	if c, ok := r.compus[cm.Ref()]; ok {
		return c
	}
	c, err := TranslateCompu(cm)
	if err != nil {
		r.warn(ctx, StageSignals, cm.Ref(), "compu method %s (%s): %v", cm.Name, cm.Category, err)
		c = nil
	}
	r.compus[cm.Ref()] = c
	return c
}
