package extract

import (
	"testing"

	"github.com/Sheetlar/arxml/engine/model"
	"github.com/Sheetlar/arxml/engine/registry"
)

// world builds small models for extraction tests. Every element lives in a
// root package named after its kind, so references have the form
// "/<Package>/<Name>[/<Child>...]".
type world struct {
	s     *model.Session
	pkgs  map[string]*model.Package
	fibex []string
}

func newWorld(t *testing.T) *world {
	t.Helper()
	return &world{s: model.NewSession(nil), pkgs: make(map[string]*model.Package)}
}

func (w *world) pkg(name string) *model.Package {
	if p, ok := w.pkgs[name]; ok {
		return p
	}
	p := model.Add(w.s, nil, model.RolePackages, "/"+name, func() *model.Package {
		return &model.Package{Element: model.Element{Name: name}}
	})
	w.pkgs[name] = p
	return p
}

func (w *world) ecu(name string) *model.EcuInstance {
	e := model.Add(w.s, w.pkg("Ecus"), model.RoleElements, "/Ecus/"+name, func() *model.EcuInstance {
		return &model.EcuInstance{Element: model.Element{Name: name}}
	})
	w.fibex = append(w.fibex, e.Ref())
	return e
}

// port adds a frame port on the ECU's single connector and returns its
// reference.
func (w *world) port(ecu *model.EcuInstance, name string, dir model.Direction) string {
	conn := model.Add(w.s, ecu, model.RoleConnectors, ecu.Ref()+"/Conn", func() *model.CommunicationConnector {
		return &model.CommunicationConnector{Element: model.Element{Name: "Conn"}}
	})
	p := model.Add(w.s, conn, model.RolePorts, conn.Ref()+"/"+name, func() *model.CommPort {
		return &model.CommPort{Element: model.Element{Name: name}, Port: model.FramePort, Direction: dir}
	})
	return p.Ref()
}

func (w *world) baseType(name string, size int) *model.SwBaseType {
	return model.Add(w.s, w.pkg("Types"), model.RoleElements, "/Types/"+name, func() *model.SwBaseType {
		return &model.SwBaseType{Element: model.Element{Name: name}, Size: size, Encoding: "NONE", NativeDeclaration: name}
	})
}

func (w *world) unit(name, display string) *model.Unit {
	return model.Add(w.s, w.pkg("Units"), model.RoleElements, "/Units/"+name, func() *model.Unit {
		return &model.Unit{Element: model.Element{Name: name}, DisplayName: display}
	})
}

func (w *world) compu(name, category, unitRef string, scales ...model.CompuScale) *model.CompuMethod {
	return model.Add(w.s, w.pkg("Compu"), model.RoleElements, "/Compu/"+name, func() *model.CompuMethod {
		return &model.CompuMethod{
			Element:   model.Element{Name: name, Category: category},
			UnitRef:   unitRef,
			IntToPhys: scales,
		}
	})
}

// signal adds an ISignal and its system signal named sys. props become the
// single network representation unless nil.
func (w *world) signal(name, sys, policy string, length int, props *model.SwDataDefProps) *model.ISignal {
	ss := model.Add(w.s, w.pkg("SystemSignals"), model.RoleElements, "/SystemSignals/"+sys, func() *model.SystemSignal {
		return &model.SystemSignal{Element: model.Element{Name: sys}}
	})
	sig := model.Add(w.s, w.pkg("Signals"), model.RoleElements, "/Signals/"+name, func() *model.ISignal {
		s := &model.ISignal{
			Element:         model.Element{Name: name},
			SystemSignalRef: ss.Ref(),
			DataTypePolicy:  policy,
			Length:          length,
		}
		if props != nil {
			s.NetworkRepresentation = model.VariantsOf(*props)
		}
		return s
	})
	w.fibex = append(w.fibex, sig.Ref())
	return sig
}

// canCluster adds a cluster with one channel per name. variants controls how
// many identical conditional variants the cluster declares.
func (w *world) canCluster(name string, variants int, channels ...string) (*model.CanCluster, []*model.CanPhysicalChannel) {
	c := model.Add(w.s, w.pkg("Clusters"), model.RoleElements, "/Clusters/"+name, func() *model.CanCluster {
		return &model.CanCluster{Element: model.Element{Name: name}}
	})
	var chs []*model.CanPhysicalChannel
	var handles []registry.Handle
	for _, chName := range channels {
		ch := model.Add(w.s, c, model.RoleChannels, c.Ref()+"/"+chName, func() *model.CanPhysicalChannel {
			return &model.CanPhysicalChannel{Element: model.Element{Name: chName}}
		})
		chs = append(chs, ch)
		handles = append(handles, ch.Handle())
	}
	conds := make([]*model.CanClusterConditional, variants)
	for i := range conds {
		conds[i] = &model.CanClusterConditional{Baudrate: 500000, Channels: handles}
	}
	c.Variants = model.VariantsOf(conds...)
	w.fibex = append(w.fibex, c.Ref())
	return c, chs
}

func (w *world) triggering(ch *model.CanPhysicalChannel, name string, id uint32, mode, frameRef string, ports ...string) *model.CanFrameTriggering {
	return model.Add(w.s, ch, model.RoleFrameTriggerings, ch.Ref()+"/"+name, func() *model.CanFrameTriggering {
		return &model.CanFrameTriggering{
			Element:        model.Element{Name: name},
			Identifier:     &id,
			AddressingMode: mode,
			FrameRef:       frameRef,
			FramePortRefs:  ports,
		}
	})
}

func (w *world) frame(name string, length int, pdus ...model.PduToFrameMapping) *model.CanFrame {
	return model.Add(w.s, w.pkg("Frames"), model.RoleElements, "/Frames/"+name, func() *model.CanFrame {
		return &model.CanFrame{Element: model.Element{Name: name}, Length: length, PduMappings: pdus}
	})
}

func (w *world) pdu(name string, length int, signals ...model.SignalToPduMapping) *model.ISignalIPdu {
	return model.Add(w.s, w.pkg("Pdus"), model.RoleElements, "/Pdus/"+name, func() *model.ISignalIPdu {
		return &model.ISignalIPdu{Element: model.Element{Name: name}, Length: length, SignalMappings: signals}
	})
}

// system registers a system over every fibex reference added so far, plus
// extra, and resets the pending list.
func (w *world) system(name string, extra ...string) *model.System {
	refs := append(append([]string(nil), w.fibex...), extra...)
	w.fibex = nil
	return model.Add(w.s, w.pkg("Systems"), model.RoleElements, "/Systems/"+name, func() *model.System {
		return &model.System{Element: model.Element{Name: name}, FibexElementRefs: refs}
	})
}
